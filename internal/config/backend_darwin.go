//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.quill.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "quill-data"
	}
	return filepath.Join(home, "Library", "Application Support", "quill")
}

func newPlatformBackend() ConfigBackend {
	return userDefaults(defaultsDomain)
}

// userDefaults stores settings in a UserDefaults domain through defaults(1).
type userDefaults string

func (d userDefaults) run(verb, key string, extra ...string) (string, error) {
	args := append([]string{verb, string(d), key}, extra...)
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (d userDefaults) GetString(key string) (string, bool, error) {
	out, err := d.run("read", key)
	if err == nil {
		return out, true, nil
	}
	// defaults exits 1 when the key does not exist.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", false, nil
	}
	return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, out)
}

func (d userDefaults) GetInt(key string) (int, bool, error) {
	s, ok, err := d.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

func (d userDefaults) write(key, kind, val string) error {
	if out, err := d.run("write", key, kind, val); err != nil {
		return fmt.Errorf("defaults write %s: %w (%s)", key, err, out)
	}
	return nil
}

func (d userDefaults) SetString(key, val string) error {
	return d.write(key, "-string", val)
}

func (d userDefaults) SetInt(key string, val int) error {
	return d.write(key, "-int", strconv.Itoa(val))
}

func (d userDefaults) SetFloat(key string, val float64) error {
	return d.write(key, "-float", strconv.FormatFloat(val, 'f', -1, 64))
}

func (d userDefaults) SetBool(key string, val bool) error {
	return d.write(key, "-bool", strconv.FormatBool(val))
}

func (d userDefaults) Delete(key string) error {
	_, err := d.run("delete", key)
	return err
}
