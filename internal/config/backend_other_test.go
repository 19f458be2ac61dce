//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestYAMLBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill", "config.yaml")

	b := openYAMLBackend(path)
	if _, ok, err := b.GetString("server.port"); ok || err != nil {
		t.Fatalf("empty backend returned ok=%v err=%v", ok, err)
	}

	if err := b.SetInt("server.port", 5001); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("proxy.model", "anthropic/claude-3.5-haiku"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetFloat("generate.rate_limit", 1.5); err != nil {
		t.Fatalf("SetFloat: %v", err)
	}
	if err := b.SetBool("server.mcp_stdio", true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	reopened := openYAMLBackend(path)
	if port, ok, err := reopened.GetInt("server.port"); !ok || err != nil || port != 5001 {
		t.Errorf("server.port = %d, %v, %v", port, ok, err)
	}
	if m, _, _ := reopened.GetString("proxy.model"); m != "anthropic/claude-3.5-haiku" {
		t.Errorf("proxy.model = %q", m)
	}
	if r, _, _ := reopened.GetString("generate.rate_limit"); r != "1.5" {
		t.Errorf("generate.rate_limit = %q, want 1.5", r)
	}
	if v, _, _ := reopened.GetString("server.mcp_stdio"); v != "true" {
		t.Errorf("server.mcp_stdio = %q, want true", v)
	}

	if err := reopened.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := openYAMLBackend(path).GetInt("server.port"); ok {
		t.Error("deleted key still present after reload")
	}
}

func TestYAMLBackend_BadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server.port: abc\nlog.level: [1, 2]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openYAMLBackend(path)
	if _, ok, err := b.GetInt("server.port"); !ok || err == nil {
		t.Errorf("non-numeric port: ok=%v err=%v, want error", ok, err)
	}
	if _, ok, err := b.GetInt("log.level"); !ok || err == nil {
		t.Errorf("list value: ok=%v err=%v, want error", ok, err)
	}
}

func TestYAMLBackend_MalformedFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server.port: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openYAMLBackend(path)
	if _, ok, _ := b.GetString("server.port"); ok {
		t.Error("malformed file should load as empty")
	}
	if err := b.SetInt("server.port", 4050); err != nil {
		t.Fatalf("SetInt on recovered backend: %v", err)
	}
}

func TestSecretsFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if _, err := keychainGet(secretService, apiKeyAccount); err == nil {
		t.Fatal("expected error before any secret is stored")
	}
	if err := keychainSet(secretService, apiKeyAccount, "sk-or-test"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	if err := keychainSet(secretService, apiTokenAccount, "tok"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	if v, err := keychainGet(secretService, apiKeyAccount); err != nil || v != "sk-or-test" {
		t.Errorf("api key = %q, %v", v, err)
	}

	info, err := os.Stat(secretsPath())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}
