package style

import "time"

// CurrentSchemaVersion is the profile schema this package reads and writes.
const CurrentSchemaVersion = 1

// Tone is the derived or pinned register of the user's writing.
type Tone string

const (
	ToneFormal  Tone = "formal"
	ToneNeutral Tone = "neutral"
	ToneCasual  Tone = "casual"
)

// Valid reports whether t is a known tone.
func (t Tone) Valid() bool {
	switch t {
	case ToneFormal, ToneNeutral, ToneCasual:
		return true
	}
	return false
}

// Structure describes how much the user leans on lists versus prose.
type Structure string

const (
	StructureBullets    Structure = "bullets"
	StructureMixed      Structure = "mixed"
	StructureParagraphs Structure = "paragraphs"
)

// Valid reports whether s is a known structure.
func (s Structure) Valid() bool {
	switch s {
	case StructureBullets, StructureMixed, StructureParagraphs:
		return true
	}
	return false
}

// Verbosity buckets the typical sample length.
type Verbosity string

const (
	VerbosityShort  Verbosity = "short"
	VerbosityMedium Verbosity = "medium"
	VerbosityLong   Verbosity = "long"
)

// Valid reports whether v is a known verbosity.
func (v Verbosity) Valid() bool {
	switch v {
	case VerbosityShort, VerbosityMedium, VerbosityLong:
		return true
	}
	return false
}

// Profile is the durable, evolving summary of a user's writing. It is
// created by DefaultProfile and afterwards only changed through Merge,
// an explicit reset, or an import.
type Profile struct {
	SchemaVersion int       `json:"schemaVersion" yaml:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"updatedAt"`
	Training      Training  `json:"training" yaml:"training"`
	Metrics       Metrics   `json:"metrics" yaml:"metrics"`
	StyleTags     Tags      `json:"styleTags" yaml:"styleTags"`
	UserOverrides Overrides `json:"userOverrides" yaml:"userOverrides"`
	Settings      Settings  `json:"settings" yaml:"settings"`
}

// Training tracks how much text the profile is based on.
type Training struct {
	Confidence      float64    `json:"confidence" yaml:"confidence"`
	SamplesAnalyzed int        `json:"samplesAnalyzed" yaml:"samplesAnalyzed"`
	TotalTokens     int        `json:"totalTokens" yaml:"totalTokens"`
	LastTrainedAt   *time.Time `json:"lastTrainedAt" yaml:"lastTrainedAt"`
}

// Metrics holds the continuous style scores. Rates are non-negative ratios;
// FormalityScore and BrevityScore are always within [0,100].
type Metrics struct {
	AvgWordsPerSentence float64 `json:"avgWordsPerSentence" yaml:"avgWordsPerSentence"`
	AvgWordsPerSample   float64 `json:"avgWordsPerSample" yaml:"avgWordsPerSample"`
	PunctuationRate     float64 `json:"punctuationRate" yaml:"punctuationRate"`
	EmojiRate           float64 `json:"emojiRate" yaml:"emojiRate"`
	QuestionRate        float64 `json:"questionRate" yaml:"questionRate"`
	ExclamationRate     float64 `json:"exclamationRate" yaml:"exclamationRate"`
	CapitalizationRate  float64 `json:"capitalizationRate" yaml:"capitalizationRate"`
	BulletRate          float64 `json:"bulletRate" yaml:"bulletRate"`
	FormalityScore      float64 `json:"formalityScore" yaml:"formalityScore"`
	BrevityScore        float64 `json:"brevityScore" yaml:"brevityScore"`
}

// Tags is the categorical summary derived from Metrics. Never edited directly.
type Tags struct {
	Tone      Tone      `json:"tone" yaml:"tone"`
	Structure Structure `json:"structure" yaml:"structure"`
	Verbosity Verbosity `json:"verbosity" yaml:"verbosity"`
}

// Overrides are manual pins set by the user. A nil tag pointer means
// "use the derived tag".
type Overrides struct {
	Tone               *Tone      `json:"tone" yaml:"tone"`
	Structure          *Structure `json:"structure" yaml:"structure"`
	Verbosity          *Verbosity `json:"verbosity" yaml:"verbosity"`
	PreferredPhrases   []string   `json:"preferredPhrases" yaml:"preferredPhrases"`
	AvoidedPhrases     []string   `json:"avoidedPhrases" yaml:"avoidedPhrases"`
	CustomInstructions string     `json:"customInstructions" yaml:"customInstructions"`
}

// Settings are behavioral flags read by the training pipeline, not by this package.
type Settings struct {
	AutoTrain           bool `json:"autoTrain" yaml:"autoTrain"`
	IncludeNotesOnTrain bool `json:"includeNotesOnTrain" yaml:"includeNotesOnTrain"`
	PrivacyMode         bool `json:"privacyMode" yaml:"privacyMode"`
}

// Analysis is the transient output of Analyze for one batch of samples.
// It is folded into a Profile by Merge and never persisted on its own.
type Analysis struct {
	Training  Training `json:"training"`
	Metrics   Metrics  `json:"metrics"`
	StyleTags Tags     `json:"styleTags"`
}
