package style

import "time"

// Fallbacks used by Analyze when a denominator is zero.
const (
	fallbackWordsPerSentence = 14
	fallbackWordsPerSample   = 80
)

// DefaultMetrics returns the neutral midpoint metrics of a fresh profile.
// They also stand in for any metric missing from an imported profile.
func DefaultMetrics() Metrics {
	return Metrics{
		AvgWordsPerSentence: fallbackWordsPerSentence,
		AvgWordsPerSample:   fallbackWordsPerSample,
		PunctuationRate:     0.1,
		EmojiRate:           0,
		QuestionRate:        0.05,
		ExclamationRate:     0.02,
		CapitalizationRate:  0.08,
		BulletRate:          0.1,
		FormalityScore:      50,
		BrevityScore:        50,
	}
}

// DefaultTags returns the tags of an untrained profile.
func DefaultTags() Tags {
	return Tags{
		Tone:      ToneNeutral,
		Structure: StructureMixed,
		Verbosity: VerbosityMedium,
	}
}

// DefaultSettings returns the settings of a freshly created profile.
func DefaultSettings() Settings {
	return Settings{
		AutoTrain:           true,
		IncludeNotesOnTrain: true,
		PrivacyMode:         false,
	}
}

// DefaultProfile builds a new untrained profile. Every call returns an
// independent value; nothing is shared between callers.
func DefaultProfile(now time.Time) Profile {
	now = now.UTC()
	return Profile{
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
		Training:      Training{},
		Metrics:       DefaultMetrics(),
		StyleTags:     DefaultTags(),
		UserOverrides: Overrides{
			PreferredPhrases: []string{},
			AvoidedPhrases:   []string{},
		},
		Settings: DefaultSettings(),
	}
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	cp := p
	if p.Training.LastTrainedAt != nil {
		t := *p.Training.LastTrainedAt
		cp.Training.LastTrainedAt = &t
	}
	if p.UserOverrides.Tone != nil {
		v := *p.UserOverrides.Tone
		cp.UserOverrides.Tone = &v
	}
	if p.UserOverrides.Structure != nil {
		v := *p.UserOverrides.Structure
		cp.UserOverrides.Structure = &v
	}
	if p.UserOverrides.Verbosity != nil {
		v := *p.UserOverrides.Verbosity
		cp.UserOverrides.Verbosity = &v
	}
	if p.UserOverrides.PreferredPhrases != nil {
		cp.UserOverrides.PreferredPhrases = make([]string, len(p.UserOverrides.PreferredPhrases))
		copy(cp.UserOverrides.PreferredPhrases, p.UserOverrides.PreferredPhrases)
	}
	if p.UserOverrides.AvoidedPhrases != nil {
		cp.UserOverrides.AvoidedPhrases = make([]string, len(p.UserOverrides.AvoidedPhrases))
		copy(cp.UserOverrides.AvoidedPhrases, p.UserOverrides.AvoidedPhrases)
	}
	return cp
}

// EffectiveTone returns the pinned tone if set, else the derived one.
func EffectiveTone(p Profile) Tone {
	if o := p.UserOverrides.Tone; o != nil && *o != "" {
		return *o
	}
	if p.StyleTags.Tone != "" {
		return p.StyleTags.Tone
	}
	return ToneNeutral
}

// EffectiveStructure returns the pinned structure if set, else the derived one.
func EffectiveStructure(p Profile) Structure {
	if o := p.UserOverrides.Structure; o != nil && *o != "" {
		return *o
	}
	if p.StyleTags.Structure != "" {
		return p.StyleTags.Structure
	}
	return StructureMixed
}

// EffectiveVerbosity returns the pinned verbosity if set, else the derived one.
func EffectiveVerbosity(p Profile) Verbosity {
	if o := p.UserOverrides.Verbosity; o != nil && *o != "" {
		return *o
	}
	if p.StyleTags.Verbosity != "" {
		return p.StyleTags.Verbosity
	}
	return VerbosityMedium
}
