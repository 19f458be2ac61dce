//go:build !darwin

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// secretsPath is a 0600 YAML file of service -> account -> secret, kept
// next to the database rather than the config so config dumps never carry it.
func secretsPath() string {
	return filepath.Join(defaultDataDir(), "secrets.yaml")
}

type secretsFile map[string]map[string]string

func readSecrets() (secretsFile, error) {
	raw, err := os.ReadFile(secretsPath())
	if err != nil {
		return nil, err
	}
	var s secretsFile
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", secretsPath(), err)
	}
	return s, nil
}

func keychainGet(service, account string) (string, error) {
	s, err := readSecrets()
	if err != nil {
		return "", fmt.Errorf("secret store unavailable: %w", err)
	}
	v, ok := s[service][account]
	if !ok {
		return "", fmt.Errorf("no secret %s/%s", service, account)
	}
	return v, nil
}

func keychainSet(service, account, value string) error {
	s, err := readSecrets()
	if err != nil || s == nil {
		s = secretsFile{}
	}
	if s[service] == nil {
		s[service] = map[string]string{}
	}
	s[service][account] = value

	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}
	return writePrivateFile(secretsPath(), out)
}
