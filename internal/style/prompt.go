package style

import (
	"fmt"
	"math"
	"strings"
)

const (
	stylePreamble    = "You are writing in the user's personal style."
	maxPromptPhrases = 8
)

// Synthesize renders p as the instruction block that is prepended to a
// generation request. Output is deterministic and has no trailing newline.
func Synthesize(p Profile) string {
	lines := []string{
		stylePreamble,
		fmt.Sprintf("Tone: %s.", EffectiveTone(p)),
		fmt.Sprintf("Structure: %s.", EffectiveStructure(p)),
		fmt.Sprintf("Verbosity: %s.", EffectiveVerbosity(p)),
		fmt.Sprintf("Avg words per sentence: %d.", roundInt(p.Metrics.AvgWordsPerSentence)),
		fmt.Sprintf("Formality score: %d/100.", roundInt(p.Metrics.FormalityScore)),
		fmt.Sprintf("Brevity score: %d/100.", roundInt(p.Metrics.BrevityScore)),
	}
	if phrases := p.UserOverrides.PreferredPhrases; len(phrases) > 0 {
		lines = append(lines, fmt.Sprintf("Prefer phrases: %s.", joinFirst(phrases, maxPromptPhrases)))
	}
	if phrases := p.UserOverrides.AvoidedPhrases; len(phrases) > 0 {
		lines = append(lines, fmt.Sprintf("Avoid phrases: %s.", joinFirst(phrases, maxPromptPhrases)))
	}
	return strings.Join(lines, "\n")
}

func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

func roundInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
