package style

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidProfile is returned (wrapped) when imported or stored profile
// JSON does not have the expected shape.
var ErrInvalidProfile = errors.New("invalid profile data")

// ValidationError names the offending field of a rejected profile.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile data: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidProfile }

// The wire* types mirror Profile with pointer leaves so that absent fields
// can be told apart from zero values.
type wireProfile struct {
	SchemaVersion *int           `json:"schemaVersion"`
	CreatedAt     *time.Time     `json:"createdAt"`
	UpdatedAt     *time.Time     `json:"updatedAt"`
	Training      *wireTraining  `json:"training"`
	Metrics       *wireMetrics   `json:"metrics"`
	StyleTags     *wireTags      `json:"styleTags"`
	UserOverrides *wireOverrides `json:"userOverrides"`
	Settings      *wireSettings  `json:"settings"`
}

type wireTraining struct {
	Confidence      *float64   `json:"confidence"`
	SamplesAnalyzed *int       `json:"samplesAnalyzed"`
	TotalTokens     *int       `json:"totalTokens"`
	LastTrainedAt   *time.Time `json:"lastTrainedAt"`
}

type wireMetrics struct {
	AvgWordsPerSentence *float64 `json:"avgWordsPerSentence"`
	AvgWordsPerSample   *float64 `json:"avgWordsPerSample"`
	PunctuationRate     *float64 `json:"punctuationRate"`
	EmojiRate           *float64 `json:"emojiRate"`
	QuestionRate        *float64 `json:"questionRate"`
	ExclamationRate     *float64 `json:"exclamationRate"`
	CapitalizationRate  *float64 `json:"capitalizationRate"`
	BulletRate          *float64 `json:"bulletRate"`
	FormalityScore      *float64 `json:"formalityScore"`
	BrevityScore        *float64 `json:"brevityScore"`
}

type wireTags struct {
	Tone      *string `json:"tone"`
	Structure *string `json:"structure"`
	Verbosity *string `json:"verbosity"`
}

type wireOverrides struct {
	Tone               *string  `json:"tone"`
	Structure          *string  `json:"structure"`
	Verbosity          *string  `json:"verbosity"`
	PreferredPhrases   []string `json:"preferredPhrases"`
	AvoidedPhrases     []string `json:"avoidedPhrases"`
	CustomInstructions *string  `json:"customInstructions"`
}

type wireSettings struct {
	AutoTrain           *bool `json:"autoTrain"`
	IncludeNotesOnTrain *bool `json:"includeNotesOnTrain"`
	PrivacyMode         *bool `json:"privacyMode"`
}

// Decode parses and validates profile JSON. The top level must be an object
// with "training" and "metrics" objects; any other missing field is filled
// from DefaultProfile(now). Unknown enum values, negative counters or rates,
// and unsupported schema versions are rejected with a *ValidationError.
func Decode(data []byte, now time.Time) (Profile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Profile{}, &ValidationError{Field: "profile", Reason: "expected a JSON object"}
	}

	var w wireProfile
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	p := DefaultProfile(now)

	if w.SchemaVersion != nil {
		if *w.SchemaVersion < 1 || *w.SchemaVersion > CurrentSchemaVersion {
			return Profile{}, &ValidationError{Field: "schemaVersion", Reason: fmt.Sprintf("unsupported version %d", *w.SchemaVersion)}
		}
		p.SchemaVersion = *w.SchemaVersion
	}
	if w.CreatedAt != nil {
		p.CreatedAt = w.CreatedAt.UTC()
	}
	if w.UpdatedAt != nil {
		p.UpdatedAt = w.UpdatedAt.UTC()
	}

	if w.Training == nil {
		return Profile{}, &ValidationError{Field: "training", Reason: "missing"}
	}
	if err := decodeTraining(w.Training, &p.Training); err != nil {
		return Profile{}, err
	}

	if w.Metrics == nil {
		return Profile{}, &ValidationError{Field: "metrics", Reason: "missing"}
	}
	if err := decodeMetrics(w.Metrics, &p.Metrics); err != nil {
		return Profile{}, err
	}

	if w.StyleTags != nil {
		if err := decodeTags(w.StyleTags, &p.StyleTags); err != nil {
			return Profile{}, err
		}
	}
	if w.UserOverrides != nil {
		if err := decodeOverrides(w.UserOverrides, &p.UserOverrides); err != nil {
			return Profile{}, err
		}
	}
	if s := w.Settings; s != nil {
		setBool(&p.Settings.AutoTrain, s.AutoTrain)
		setBool(&p.Settings.IncludeNotesOnTrain, s.IncludeNotesOnTrain)
		setBool(&p.Settings.PrivacyMode, s.PrivacyMode)
	}
	return p, nil
}

func decodeTraining(w *wireTraining, t *Training) error {
	if w.Confidence != nil {
		t.Confidence = clamp(*w.Confidence, 0, 100)
	}
	if w.SamplesAnalyzed != nil {
		if *w.SamplesAnalyzed < 0 {
			return &ValidationError{Field: "training.samplesAnalyzed", Reason: "must not be negative"}
		}
		t.SamplesAnalyzed = *w.SamplesAnalyzed
	}
	if w.TotalTokens != nil {
		if *w.TotalTokens < 0 {
			return &ValidationError{Field: "training.totalTokens", Reason: "must not be negative"}
		}
		t.TotalTokens = *w.TotalTokens
	}
	if w.LastTrainedAt != nil {
		ts := w.LastTrainedAt.UTC()
		t.LastTrainedAt = &ts
	}
	return nil
}

func decodeMetrics(w *wireMetrics, m *Metrics) error {
	rates := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"avgWordsPerSentence", w.AvgWordsPerSentence, &m.AvgWordsPerSentence},
		{"avgWordsPerSample", w.AvgWordsPerSample, &m.AvgWordsPerSample},
		{"punctuationRate", w.PunctuationRate, &m.PunctuationRate},
		{"emojiRate", w.EmojiRate, &m.EmojiRate},
		{"questionRate", w.QuestionRate, &m.QuestionRate},
		{"exclamationRate", w.ExclamationRate, &m.ExclamationRate},
		{"capitalizationRate", w.CapitalizationRate, &m.CapitalizationRate},
		{"bulletRate", w.BulletRate, &m.BulletRate},
	}
	for _, r := range rates {
		if r.src == nil {
			continue
		}
		if *r.src < 0 {
			return &ValidationError{Field: "metrics." + r.name, Reason: "must not be negative"}
		}
		*r.dst = *r.src
	}
	if w.FormalityScore != nil {
		m.FormalityScore = clamp(*w.FormalityScore, 0, 100)
	}
	if w.BrevityScore != nil {
		m.BrevityScore = clamp(*w.BrevityScore, 0, 100)
	}
	return nil
}

func decodeTags(w *wireTags, t *Tags) error {
	if v := w.Tone; v != nil && *v != "" {
		if !Tone(*v).Valid() {
			return &ValidationError{Field: "styleTags.tone", Reason: fmt.Sprintf("unknown value %q", *v)}
		}
		t.Tone = Tone(*v)
	}
	if v := w.Structure; v != nil && *v != "" {
		if !Structure(*v).Valid() {
			return &ValidationError{Field: "styleTags.structure", Reason: fmt.Sprintf("unknown value %q", *v)}
		}
		t.Structure = Structure(*v)
	}
	if v := w.Verbosity; v != nil && *v != "" {
		if !Verbosity(*v).Valid() {
			return &ValidationError{Field: "styleTags.verbosity", Reason: fmt.Sprintf("unknown value %q", *v)}
		}
		t.Verbosity = Verbosity(*v)
	}
	return nil
}

func decodeOverrides(w *wireOverrides, o *Overrides) error {
	var err error
	if o.Tone, err = parseOverride[Tone]("userOverrides.tone", w.Tone); err != nil {
		return err
	}
	if o.Structure, err = parseOverride[Structure]("userOverrides.structure", w.Structure); err != nil {
		return err
	}
	if o.Verbosity, err = parseOverride[Verbosity]("userOverrides.verbosity", w.Verbosity); err != nil {
		return err
	}
	if w.PreferredPhrases != nil {
		o.PreferredPhrases = w.PreferredPhrases
	}
	if w.AvoidedPhrases != nil {
		o.AvoidedPhrases = w.AvoidedPhrases
	}
	if w.CustomInstructions != nil {
		o.CustomInstructions = *w.CustomInstructions
	}
	return nil
}

type tagValue interface {
	~string
	Valid() bool
}

// ParseOverride converts a raw override value into a tag pointer. Empty
// input clears the override.
func ParseOverride[T tagValue](raw string) (*T, error) {
	return parseOverride[T]("override", &raw)
}

func parseOverride[T tagValue](field string, raw *string) (*T, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	v := T(*raw)
	if !v.Valid() {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("unknown value %q", *raw)}
	}
	return &v, nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
