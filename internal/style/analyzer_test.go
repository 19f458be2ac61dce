package style

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// AnalyzerSuite exercises Analyze with a fixed clock.
type AnalyzerSuite struct {
	suite.Suite
	now time.Time
}

func (s *AnalyzerSuite) SetupTest() {
	s.now = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func repeat(text string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = text
	}
	return out
}

func (s *AnalyzerSuite) TestAnalyze_EmptyInputUsesFallbacks() {
	for name, input := range map[string][]string{
		"nil":        nil,
		"empty":      {},
		"blank":      {""},
		"whitespace": {"   \n\t  ", ""},
	} {
		a := Analyze(input, s.now)

		s.Equal(14.0, a.Metrics.AvgWordsPerSentence, name)
		s.Equal(80.0, a.Metrics.AvgWordsPerSample, name)
		s.Zero(a.Metrics.PunctuationRate, name)
		s.Zero(a.Metrics.EmojiRate, name)
		s.Zero(a.Metrics.QuestionRate, name)
		s.Zero(a.Metrics.ExclamationRate, name)
		s.Zero(a.Metrics.CapitalizationRate, name)
		s.Zero(a.Metrics.BulletRate, name)
		s.Equal(50.0, a.Metrics.FormalityScore, name)
		// 70 - 14*2 - 80*0.15
		s.InDelta(30.0, a.Metrics.BrevityScore, 1e-9, name)
		s.Zero(a.Training.Confidence, name)
		s.Zero(a.Training.SamplesAnalyzed, name)
		s.Zero(a.Training.TotalTokens, name)
		s.Equal(Tags{Tone: ToneNeutral, Structure: StructureParagraphs, Verbosity: VerbosityMedium}, a.StyleTags, name)
	}
}

func (s *AnalyzerSuite) TestAnalyze_ExcitedShouting() {
	a := Analyze(repeat("Hello! This is great!! :) AMAZING.", 50), s.now)

	// Per sample: 6 tokens, 3 sentences ("Hello!", "This is great!!", ":) AMAZING."),
	// 3 exclamation marks, 5 punctuation characters, 1 shouted token.
	s.Equal(50, a.Training.SamplesAnalyzed)
	s.Equal(300, a.Training.TotalTokens)
	s.Equal(33.0, a.Training.Confidence)

	defaults := DefaultMetrics()
	s.Greater(a.Metrics.ExclamationRate, defaults.ExclamationRate)
	s.Greater(a.Metrics.CapitalizationRate, defaults.CapitalizationRate)
	s.InDelta(1.0, a.Metrics.ExclamationRate, 1e-9)
	s.InDelta(1.0/6, a.Metrics.CapitalizationRate, 1e-9)
	s.InDelta(5.0/6, a.Metrics.PunctuationRate, 1e-9)
	s.InDelta(2.0, a.Metrics.AvgWordsPerSentence, 1e-9)
	s.InDelta(6.0, a.Metrics.AvgWordsPerSample, 1e-9)

	// 50 + (5/6*120 - 0 - 1*80) - 1/6*60: exclamations and caps take back
	// 90 of the 100 points the punctuation adds.
	s.InDelta(60.0, a.Metrics.FormalityScore, 1e-9)
	s.Less(a.Metrics.FormalityScore, 50+a.Metrics.PunctuationRate*120)
	s.Equal(ToneNeutral, a.StyleTags.Tone)
	s.Equal(VerbosityShort, a.StyleTags.Verbosity)
}

func (s *AnalyzerSuite) TestAnalyze_BulletList() {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "- item number"
	}
	a := Analyze([]string{strings.Join(lines, "\n")}, s.now)

	s.Equal(1.0, a.Metrics.BulletRate)
	s.Equal(StructureBullets, a.StyleTags.Structure)
	// No terminal punctuation: the whole list is one sentence.
	s.Equal(30.0, a.Metrics.AvgWordsPerSentence)
}

func (s *AnalyzerSuite) TestAnalyze_NumberedAndMixedLists() {
	text := "Plan:\n1. draft\n2. review\n* ship it\n•  celebrate\nno marker here\n-missing space"
	a := Analyze([]string{text}, s.now)

	// 4 of 7 lines carry a marker followed by whitespace.
	s.InDelta(4.0/7, a.Metrics.BulletRate, 1e-9)
	s.Equal(StructureBullets, a.StyleTags.Structure)
}

func (s *AnalyzerSuite) TestAnalyze_Emoji() {
	a := Analyze([]string{"great \U0001F389 day ☀"}, s.now)

	s.InDelta(0.5, a.Metrics.EmojiRate, 1e-9)
	// 50 - 0.5*200 clamps to 0.
	s.Equal(0.0, a.Metrics.FormalityScore)
	s.Equal(ToneCasual, a.StyleTags.Tone)
}

func (s *AnalyzerSuite) TestAnalyze_Capitalization() {
	a := Analyze([]string{"OK WOW NASA abc 123 ABC1"}, s.now)

	// WOW, NASA and ABC1 qualify; OK is too short and 123 has no letter.
	s.InDelta(0.5, a.Metrics.CapitalizationRate, 1e-9)
}

func (s *AnalyzerSuite) TestAnalyze_Questions() {
	a := Analyze([]string{"Why? Really?? Fine."}, s.now)

	s.InDelta(1.0, a.Metrics.QuestionRate, 1e-9)
	s.Zero(a.Metrics.ExclamationRate)
}

func (s *AnalyzerSuite) TestAnalyze_LongFormal() {
	sentence := "The committee has reviewed the proposal, and it concurs with the findings; however, further analysis is required."
	sample := strings.Repeat(sentence+" ", 12)
	a := Analyze([]string{sample}, s.now)

	s.Equal(ToneFormal, a.StyleTags.Tone)
	s.Equal(VerbosityLong, a.StyleTags.Verbosity)
	s.Equal(StructureParagraphs, a.StyleTags.Structure)
	// 17 tokens per sentence, 204 per sample: 70 - 34 - 30.6.
	s.InDelta(5.4, a.Metrics.BrevityScore, 1e-9)
	s.Equal(23.0, a.Training.Confidence)
}

func (s *AnalyzerSuite) TestAnalyze_Deterministic() {
	input := []string{"First sample. With two sentences!", "- a\n- b\nplain line?"}

	s.Equal(Analyze(input, s.now), Analyze(input, s.now))
}

func (s *AnalyzerSuite) TestAnalyze_StampsTrainingTime() {
	a := Analyze([]string{"hello there"}, s.now)

	s.Require().NotNil(a.Training.LastTrainedAt)
	s.True(a.Training.LastTrainedAt.Equal(s.now))
}

func TestAnalyze_NoNaNOrInf(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inputs := [][]string{
		nil,
		{""},
		{"a"},
		{"!"},
		{"...", "???"},
		{"\n\n\n"},
		{"x\n"},
		{strings.Repeat("WOW!!! ", 500)},
		{strings.Repeat("\U0001F600", 40)},
		{"- \n- \n- "},
	}

	for _, in := range inputs {
		a := Analyze(in, now)
		m := a.Metrics
		values := []float64{
			m.AvgWordsPerSentence, m.AvgWordsPerSample, m.PunctuationRate, m.EmojiRate,
			m.QuestionRate, m.ExclamationRate, m.CapitalizationRate, m.BulletRate,
			m.FormalityScore, m.BrevityScore, a.Training.Confidence,
		}
		for i, v := range values {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "input %q value %d = %v", in, i, v)
			assert.GreaterOrEqual(t, v, 0.0, "input %q value %d", in, i)
		}
		assert.LessOrEqual(t, m.FormalityScore, 100.0)
		assert.LessOrEqual(t, m.BrevityScore, 100.0)
		assert.LessOrEqual(t, a.Training.Confidence, 100.0)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"one sentence", []string{"one sentence"}},
		{"Dr. Smith arrived. Then left", []string{"Dr.", "Smith arrived.", "Then left"}},
		{"Wait?!  Really", []string{"Wait?!", "Really"}},
		{"end. ", []string{"end.", ""}},
		{"line one.\nline two", []string{"line one.", "line two"}},
		{"no.break", []string{"no.break"}},
		{"", []string{""}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, splitSentences(tt.in), "splitSentences(%q)", tt.in)
	}
}
