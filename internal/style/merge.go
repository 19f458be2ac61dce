package style

import (
	"math"
	"time"
)

// Merge folds a fresh analysis into an existing profile and returns the
// result as a new value. A nil prev starts from DefaultProfile.
//
// Metrics and confidence are averaged weighted by sample count:
//
//	w_prev = prevN / (prevN + newN), w_new = newN / (prevN + newN)
//
// with w_new = 1 when both counts are zero. Sample and token counters are
// summed. Tags are taken from the analysis rather than blended. Overrides,
// settings, schema version and creation time pass through unchanged.
func Merge(prev *Profile, a Analysis, now time.Time) Profile {
	now = now.UTC()

	var out Profile
	if prev == nil {
		out = DefaultProfile(now)
	} else {
		out = prev.Clone()
	}

	prevN := out.Training.SamplesAnalyzed
	newN := a.Training.SamplesAnalyzed
	wPrev, wNew := 0.0, 1.0
	if total := prevN + newN; total > 0 {
		wPrev = float64(prevN) / float64(total)
		wNew = float64(newN) / float64(total)
	}
	blend := func(p, n float64) float64 { return p*wPrev + n*wNew }

	pm, nm := out.Metrics, a.Metrics
	out.Metrics = Metrics{
		AvgWordsPerSentence: blend(pm.AvgWordsPerSentence, nm.AvgWordsPerSentence),
		AvgWordsPerSample:   blend(pm.AvgWordsPerSample, nm.AvgWordsPerSample),
		PunctuationRate:     blend(pm.PunctuationRate, nm.PunctuationRate),
		EmojiRate:           blend(pm.EmojiRate, nm.EmojiRate),
		QuestionRate:        blend(pm.QuestionRate, nm.QuestionRate),
		ExclamationRate:     blend(pm.ExclamationRate, nm.ExclamationRate),
		CapitalizationRate:  blend(pm.CapitalizationRate, nm.CapitalizationRate),
		BulletRate:          blend(pm.BulletRate, nm.BulletRate),
		FormalityScore:      blend(pm.FormalityScore, nm.FormalityScore),
		BrevityScore:        blend(pm.BrevityScore, nm.BrevityScore),
	}

	out.Training.Confidence = clamp(math.Round(blend(out.Training.Confidence, a.Training.Confidence)), 0, 100)
	out.Training.SamplesAnalyzed = prevN + newN
	out.Training.TotalTokens += a.Training.TotalTokens

	switch {
	case a.Training.LastTrainedAt != nil:
		t := a.Training.LastTrainedAt.UTC()
		out.Training.LastTrainedAt = &t
	case out.Training.LastTrainedAt == nil:
		out.Training.LastTrainedAt = &now
	}

	out.StyleTags = mergeTags(out.StyleTags, a.StyleTags)
	out.UpdatedAt = now
	return out
}

func mergeTags(prev, next Tags) Tags {
	def := DefaultTags()
	return Tags{
		Tone:      pick(next.Tone, prev.Tone, def.Tone),
		Structure: pick(next.Structure, prev.Structure, def.Structure),
		Verbosity: pick(next.Verbosity, prev.Verbosity, def.Verbosity),
	}
}

func pick[T ~string](candidates ...T) T {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	var zero T
	return zero
}
