//go:build !darwin

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// xdgDir resolves an XDG base directory: the env var when set, otherwise
// home/fallback, otherwise the working directory.
func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, fallback)
	}
	return "."
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "quill")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "quill", "config.yaml")
}

func newPlatformBackend() ConfigBackend {
	return openYAMLBackend(configFilePath())
}

// yamlBackend keeps flat dotted keys ("server.port: 4050") in a YAML file.
// Every write rewrites the whole file.
type yamlBackend struct {
	path   string
	values map[string]any
}

// openYAMLBackend loads path. A missing or unreadable file yields an empty
// backend so that defaults still apply.
func openYAMLBackend(path string) *yamlBackend {
	b := &yamlBackend{path: path, values: map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
	default:
		if err := yaml.Unmarshal(raw, &b.values); err != nil {
			slog.Warn("config file malformed, using defaults", "path", path, "error", err)
			b.values = map[string]any{}
		}
		if b.values == nil {
			b.values = map[string]any{}
		}
	}
	return b
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *yamlBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: unexpected %T value", key, v)
}

func (b *yamlBackend) set(key string, v any) error {
	b.values[key] = v
	return b.flush()
}

func (b *yamlBackend) SetString(key, val string) error        { return b.set(key, val) }
func (b *yamlBackend) SetInt(key string, val int) error       { return b.set(key, val) }
func (b *yamlBackend) SetFloat(key string, val float64) error { return b.set(key, val) }
func (b *yamlBackend) SetBool(key string, val bool) error     { return b.set(key, val) }

func (b *yamlBackend) Delete(key string) error {
	if _, ok := b.values[key]; !ok {
		return nil
	}
	delete(b.values, key)
	return b.flush()
}

func (b *yamlBackend) flush() error {
	out, err := yaml.Marshal(b.values)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return writePrivateFile(b.path, out)
}

// writePrivateFile writes data with owner-only permissions, creating the
// parent directory as needed.
func writePrivateFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o600)
}
