package config

import "fmt"

// KeyInfo is one row of `quill config show`.
type KeyInfo struct {
	Key    string `json:"key"`
	EnvVar string `json:"env"`
	Value  string `json:"value"`
}

// ShowAll lists every non-secret key with its effective value in cfg.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.get(cfg))})
		}
	}
	return out
}

// SetKey persists value for key in the platform backend after checking it
// parses as the key's type.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), key, value)
}

func setKeyWith(b ConfigBackend, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("%s is a secret; use `quill config set-api-key` or %s", key, s.env)
	}

	v, err := s.typ.parse(value)
	if err != nil {
		return fmt.Errorf("%s expects a %s: %w", key, s.typ, err)
	}
	switch v := v.(type) {
	case int:
		return b.SetInt(key, v)
	case bool:
		return b.SetBool(key, v)
	case float64:
		return b.SetFloat(key, v)
	default:
		return b.SetString(key, value)
	}
}

// ValidKeys returns the keys accepted by SetKey.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
