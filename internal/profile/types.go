package profile

// OverridesPatch is a partial update of the user's manual pins. Nil fields
// are left alone; an empty tag string clears that pin.
type OverridesPatch struct {
	Tone               *string   `json:"tone,omitempty"`
	Structure          *string   `json:"structure,omitempty"`
	Verbosity          *string   `json:"verbosity,omitempty"`
	PreferredPhrases   *[]string `json:"preferredPhrases,omitempty"`
	AvoidedPhrases     *[]string `json:"avoidedPhrases,omitempty"`
	CustomInstructions *string   `json:"customInstructions,omitempty"`
}

// SettingsPatch is a partial update of the profile's behavioral flags.
type SettingsPatch struct {
	AutoTrain           *bool `json:"autoTrain,omitempty"`
	IncludeNotesOnTrain *bool `json:"includeNotesOnTrain,omitempty"`
	PrivacyMode         *bool `json:"privacyMode,omitempty"`
}

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)
