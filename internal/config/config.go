// Package config loads quill settings from the platform backend, QUILL_*
// environment variables and the platform secret store.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Proxy    ProxyConfig
	Log      LogConfig
	Style    StyleConfig
	Generate GenerateConfig
}

type ServerConfig struct {
	Port int
	// MCPStdio serves the MCP protocol on stdin/stdout next to HTTP.
	MCPStdio bool
}

type StorageConfig struct {
	DataDir string
}

type ProxyConfig struct {
	OpenRouterAPIKey string
	BaseURL          string
	DefaultModel     string
}

type LogConfig struct {
	Level string
}

type StyleConfig struct {
	MaxSamples    int
	TrainDebounce string
}

type GenerateConfig struct {
	Timeout   string
	RateLimit float64
	Burst     int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     4100,
			MCPStdio: true,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Proxy: ProxyConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			DefaultModel: "anthropic/claude-sonnet-4",
		},
		Log: LogConfig{
			Level: "info",
		},
		Style: StyleConfig{
			MaxSamples:    50,
			TrainDebounce: "3s",
		},
		Generate: GenerateConfig{
			Timeout:   "30s",
			RateLimit: 2,
			Burst:     4,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.quill.app).
// On Linux the backend is a YAML file at $XDG_CONFIG_HOME/quill/config.yaml.
//
// Environment variables (QUILL_*) override backend values on all platforms.
// The OpenRouter API key is optional: without it generation uses canned
// fallback replies.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Proxy.OpenRouterAPIKey == "" && kc != nil {
		if key, err := kc.Get(secretService, apiKeyAccount); err == nil && key != "" {
			cfg.Proxy.OpenRouterAPIKey = key
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d is out of range", c.Server.Port)
	}
	if c.Style.MaxSamples < 0 {
		return fmt.Errorf("invalid config: style.max_samples must not be negative")
	}
	if c.Generate.Burst < 0 {
		return fmt.Errorf("invalid config: generate.burst must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid config: log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	return nil
}

// LogLevel maps log.level to a slog level.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TrainDebounce returns style.train_debounce, or 3s if it does not parse.
func (c Config) TrainDebounce() time.Duration {
	return parseDuration("style.train_debounce", c.Style.TrainDebounce, 3*time.Second)
}

// GenerateTimeout returns generate.timeout, or 30s if it does not parse.
func (c Config) GenerateTimeout() time.Duration {
	return parseDuration("generate.timeout", c.Generate.Timeout, 30*time.Second)
}

func parseDuration(key, raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}
