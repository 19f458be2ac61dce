// Package style turns raw writing samples into a style profile and renders
// that profile as an instruction block for a text-generation model.
//
// Everything in this package is pure: no I/O, no globals that change after
// init, and no goroutines. Callers own persistence and the clock.
package style

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	// emojiPattern covers the pictograph and dingbat blocks only. Multi-codepoint
	// sequences and modifiers are counted per matching codepoint, if at all.
	emojiPattern = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}]`)

	// bulletPattern matches "-", "*", "•" or "12." list markers followed by whitespace.
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+\.)\s+`)
)

const punctuationChars = ".,;:!?"

// confidenceTokens is the token volume at which batch confidence saturates at 100.
const confidenceTokens = 900

// counts accumulates raw observations across every sample of a batch.
type counts struct {
	samples          int
	totalTokens      int
	sampleLengths    []int
	sentenceLengths  []int
	totalSentences   int
	questionCount    int
	exclamationCount int
	punctuationCount int
	emojiCount       int
	capsCount        int
	totalLines       int
	bulletLines      int
}

// Analyze computes style features for a batch of samples. Empty and
// whitespace-only samples are ignored; if nothing is left, the documented
// fallback values are returned. Analyze never fails and never produces
// NaN or Inf.
func Analyze(samples []string, now time.Time) Analysis {
	var c counts
	for _, s := range samples {
		if strings.TrimSpace(s) == "" {
			continue
		}
		c.add(s)
	}

	m := Metrics{
		AvgWordsPerSentence: mean(c.sentenceLengths, fallbackWordsPerSentence),
		AvgWordsPerSample:   mean(c.sampleLengths, fallbackWordsPerSample),
		PunctuationRate:     ratio(c.punctuationCount, c.totalTokens),
		EmojiRate:           ratio(c.emojiCount, c.totalTokens),
		CapitalizationRate:  ratio(c.capsCount, c.totalTokens),
		QuestionRate:        ratio(c.questionCount, c.totalSentences),
		ExclamationRate:     ratio(c.exclamationCount, c.totalSentences),
		BulletRate:          ratio(c.bulletLines, c.totalLines),
	}
	m.FormalityScore = formalityScore(m)
	m.BrevityScore = brevityScore(m)

	trainedAt := now.UTC()
	return Analysis{
		Training: Training{
			Confidence:      batchConfidence(c.totalTokens),
			SamplesAnalyzed: c.samples,
			TotalTokens:     c.totalTokens,
			LastTrainedAt:   &trainedAt,
		},
		Metrics:   m,
		StyleTags: classify(m),
	}
}

func (c *counts) add(sample string) {
	c.samples++

	tokens := strings.Fields(sample)
	c.totalTokens += len(tokens)
	c.sampleLengths = append(c.sampleLengths, len(tokens))

	for _, sentence := range splitSentences(sample) {
		c.totalSentences++
		if n := len(strings.Fields(sentence)); n > 0 {
			c.sentenceLengths = append(c.sentenceLengths, n)
		}
		c.questionCount += strings.Count(sentence, "?")
		c.exclamationCount += strings.Count(sentence, "!")
	}

	for _, r := range sample {
		if strings.ContainsRune(punctuationChars, r) {
			c.punctuationCount++
		}
	}
	c.emojiCount += len(emojiPattern.FindAllStringIndex(sample, -1))

	for _, tok := range tokens {
		if isShouted(tok) {
			c.capsCount++
		}
	}

	lines := strings.Split(sample, "\n")
	c.totalLines += len(lines)
	for _, line := range lines {
		if bulletPattern.MatchString(line) {
			c.bulletLines++
		}
	}
}

// splitSentences splits text at every whitespace run that directly follows
// '.', '!' or '?'. The whitespace is dropped; everything else is kept, so
// abbreviations over-split and unterminated text stays one sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) || i == 0 || !isTerminal(text[i-1]) {
			i += size
			continue
		}
		j := i
		for j < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r2) {
				break
			}
			j += s2
		}
		out = append(out, text[start:i])
		start, i = j, j
	}
	return append(out, text[start:])
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// isShouted reports whether tok is at least three characters long, has a
// letter, and is unchanged by upper-casing.
func isShouted(tok string) bool {
	if utf8.RuneCountInString(tok) < 3 {
		return false
	}
	hasLetter := false
	for _, r := range tok {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter && tok == strings.ToUpper(tok)
}

func formalityScore(m Metrics) float64 {
	raw := 50 + (m.PunctuationRate*120 - m.EmojiRate*200 - m.ExclamationRate*80) + m.CapitalizationRate*(-60)
	return clamp(raw, 0, 100)
}

func brevityScore(m Metrics) float64 {
	return clamp(70-m.AvgWordsPerSentence*2-m.AvgWordsPerSample*0.15, 0, 100)
}

func classify(m Metrics) Tags {
	t := Tags{Tone: ToneNeutral, Structure: StructureMixed, Verbosity: VerbosityMedium}

	switch {
	case m.FormalityScore >= 65:
		t.Tone = ToneFormal
	case m.FormalityScore <= 40:
		t.Tone = ToneCasual
	}

	switch {
	case m.BulletRate >= 0.25:
		t.Structure = StructureBullets
	case m.BulletRate <= 0.05:
		t.Structure = StructureParagraphs
	}

	switch {
	case m.AvgWordsPerSample >= 180:
		t.Verbosity = VerbosityLong
	case m.AvgWordsPerSample <= 70:
		t.Verbosity = VerbosityShort
	}
	return t
}

func batchConfidence(totalTokens int) float64 {
	return clamp(math.Round(float64(totalTokens)/confidenceTokens*100), 0, 100)
}

func mean(values []int, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
