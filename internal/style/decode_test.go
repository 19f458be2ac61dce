package style

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RoundTrip(t *testing.T) {
	p := Merge(nil, Analyze([]string{"Hello! This is great!! :) AMAZING.", "- a\n- b"}, t0), t1)
	tone := ToneCasual
	p.UserOverrides.Tone = &tone
	p.UserOverrides.PreferredPhrases = []string{"cheers", "thanks!"}
	p.UserOverrides.CustomInstructions = "Keep it short."
	p.Settings.AutoTrain = false

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var viaStdlib Profile
	require.NoError(t, json.Unmarshal(data, &viaStdlib))
	if diff := cmp.Diff(p, viaStdlib); diff != "" {
		t.Errorf("json round trip mismatch (-want +got):\n%s", diff)
	}

	decoded, err := Decode(data, time.Now())
	require.NoError(t, err)
	if diff := cmp.Diff(p, decoded); diff != "" {
		t.Errorf("Decode round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_FillsMissingFields(t *testing.T) {
	data := []byte(`{
		"training": {"samplesAnalyzed": 4, "confidence": 150},
		"metrics": {"emojiRate": 0.3, "formalityScore": -12}
	}`)

	p, err := Decode(data, t1)
	require.NoError(t, err)

	want := DefaultProfile(t1)
	want.Training.SamplesAnalyzed = 4
	want.Training.Confidence = 100
	want.Metrics.EmojiRate = 0.3
	want.Metrics.FormalityScore = 0
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_NormalizesTimesToUTC(t *testing.T) {
	data := []byte(`{
		"createdAt": "2025-01-02T10:00:00+02:00",
		"training": {"lastTrainedAt": "2025-01-03T00:30:00-05:00"},
		"metrics": {}
	}`)

	p, err := Decode(data, t1)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, p.CreatedAt.Location())
	assert.True(t, p.CreatedAt.Equal(time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, p.Training.LastTrainedAt)
	assert.Equal(t, time.UTC, p.Training.LastTrainedAt.Location())
	assert.True(t, p.UpdatedAt.Equal(t1))
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"empty", ``, "profile"},
		{"null", `null`, "profile"},
		{"array", `[]`, "profile"},
		{"string", `"profile"`, "profile"},
		{"missing training", `{"metrics":{}}`, "training"},
		{"missing metrics", `{"training":{}}`, "metrics"},
		{"null training", `{"training":null,"metrics":{}}`, "training"},
		{"future schema", `{"schemaVersion":2,"training":{},"metrics":{}}`, "schemaVersion"},
		{"zero schema", `{"schemaVersion":0,"training":{},"metrics":{}}`, "schemaVersion"},
		{"negative samples", `{"training":{"samplesAnalyzed":-1},"metrics":{}}`, "training.samplesAnalyzed"},
		{"negative tokens", `{"training":{"totalTokens":-5},"metrics":{}}`, "training.totalTokens"},
		{"negative rate", `{"training":{},"metrics":{"bulletRate":-0.1}}`, "metrics.bulletRate"},
		{"unknown tone", `{"training":{},"metrics":{},"styleTags":{"tone":"angry"}}`, "styleTags.tone"},
		{"unknown structure", `{"training":{},"metrics":{},"styleTags":{"structure":"table"}}`, "styleTags.structure"},
		{"unknown override", `{"training":{},"metrics":{},"userOverrides":{"verbosity":"epic"}}`, "userOverrides.verbosity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), t1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProfile))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestDecode_TypeMismatchIsInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"training":"lots","metrics":{}}`), t1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidProfile))
}

func TestParseOverride(t *testing.T) {
	v, err := ParseOverride[Tone]("formal")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, ToneFormal, *v)

	v, err = ParseOverride[Tone]("")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseOverride[Structure]("grid")
	assert.ErrorIs(t, err, ErrInvalidProfile)
}
