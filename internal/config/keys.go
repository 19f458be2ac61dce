package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

func (t keyType) String() string {
	return [...]string{"string", "integer", "boolean", "number"}[t]
}

// parse converts raw text into the Go value stored under this key type.
func (t keyType) parse(raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	}
	return raw, nil
}

// keySpec binds a dotted config key and its QUILL_* variable to a Config
// field. field returns a pointer whose type matches typ.
type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	field  func(cfg *Config) any
}

func (s keySpec) set(cfg *Config, v any) {
	switch p := s.field(cfg).(type) {
	case *string:
		*p = v.(string)
	case *int:
		*p = v.(int)
	case *bool:
		*p = v.(bool)
	case *float64:
		*p = v.(float64)
	}
}

func (s keySpec) get(cfg Config) any {
	switch p := s.field(&cfg).(type) {
	case *string:
		return *p
	case *int:
		return *p
	case *bool:
		return *p
	case *float64:
		return *p
	}
	return nil
}

var specs = []keySpec{
	{key: "server.port", typ: kInt, env: "QUILL_SERVER_PORT",
		field: func(c *Config) any { return &c.Server.Port }},
	{key: "server.mcp_stdio", typ: kBool, env: "QUILL_SERVER_MCP_STDIO",
		field: func(c *Config) any { return &c.Server.MCPStdio }},
	{key: "storage.data_dir", typ: kString, env: "QUILL_STORAGE_DATA_DIR",
		field: func(c *Config) any { return &c.Storage.DataDir }},
	{key: "proxy.openrouter_api_key", typ: kString, env: "QUILL_OPENROUTER_API_KEY", secret: true,
		field: func(c *Config) any { return &c.Proxy.OpenRouterAPIKey }},
	{key: "proxy.base_url", typ: kString, env: "QUILL_PROXY_BASE_URL",
		field: func(c *Config) any { return &c.Proxy.BaseURL }},
	{key: "proxy.default_model", typ: kString, env: "QUILL_PROXY_DEFAULT_MODEL",
		field: func(c *Config) any { return &c.Proxy.DefaultModel }},
	{key: "log.level", typ: kString, env: "QUILL_LOG_LEVEL",
		field: func(c *Config) any { return &c.Log.Level }},
	{key: "style.max_samples", typ: kInt, env: "QUILL_STYLE_MAX_SAMPLES",
		field: func(c *Config) any { return &c.Style.MaxSamples }},
	{key: "style.train_debounce", typ: kString, env: "QUILL_STYLE_TRAIN_DEBOUNCE",
		field: func(c *Config) any { return &c.Style.TrainDebounce }},
	{key: "generate.timeout", typ: kString, env: "QUILL_GENERATE_TIMEOUT",
		field: func(c *Config) any { return &c.Generate.Timeout }},
	{key: "generate.rate_limit", typ: kFloat, env: "QUILL_GENERATE_RATE_LIMIT",
		field: func(c *Config) any { return &c.Generate.RateLimit }},
	{key: "generate.burst", typ: kInt, env: "QUILL_GENERATE_BURST",
		field: func(c *Config) any { return &c.Generate.Burst }},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// applyBackend copies persisted values into cfg. Secrets never come from
// the backend. Unparseable bool and float values keep their default with a
// warning; a backend read error aborts.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			n, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.set(cfg, n)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			slog.Warn("ignoring config value", "key", s.key, "value", raw, "want", s.typ.String())
			continue
		}
		s.set(cfg, v)
	}
	return nil
}

// applyEnvOverrides lets QUILL_* variables win over persisted values.
// Empty variables are ignored.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			slog.Warn("ignoring environment override", "env", s.env, "value", raw, "want", s.typ.String())
			continue
		}
		s.set(cfg, v)
	}
}
