package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoadReadsFileConfig(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	configDir := filepath.Join(home, ".stageflow")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte(`api_keys:
  anthropic: file-ant
  deepseek: file-deepseek
defaults:
  adapter: anthropic
  trace_dir: /tmp/traces
  cache_ttl: 5m
`)
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "file-ant" || cfg.DeepSeekAPIKey != "file-deepseek" {
		t.Fatalf("file API keys not read: %+v", cfg)
	}
	if cfg.DefaultAdapter != "anthropic" || cfg.TraceDir != "/tmp/traces" {
		t.Fatalf("defaults not read: %+v", cfg)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("cache TTL = %v", cfg.CacheTTL)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	configDir := filepath.Join(home, ".stageflow")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte("api_keys:\n  anthropic: file-ant\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-ant")
	t.Setenv("STAGEFLOW_ADAPTER", "openai")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-ant" {
		t.Fatalf("env key did not take precedence: %q", cfg.AnthropicAPIKey)
	}
	if cfg.DefaultAdapter != "openai" {
		t.Fatalf("env default did not take precedence: %q", cfg.DefaultAdapter)
	}
}

func TestLoadRejectsBadCacheTTL(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	t.Setenv("STAGEFLOW_CACHE_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid cache TTL")
	}
}

func TestHasAdapter(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "key"}
	if !cfg.HasAdapter("openai") {
		t.Fatalf("openai should be available")
	}
	if cfg.HasAdapter("anthropic") {
		t.Fatalf("anthropic should be unavailable without a key")
	}
	if !cfg.HasAdapter("mock") {
		t.Fatalf("mock needs no key")
	}
	if cfg.HasAdapter("unknown") {
		t.Fatalf("unknown adapter reported available")
	}
}

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "DEEPSEEK_API_KEY",
		"STAGEFLOW_ADAPTER", "STAGEFLOW_MODEL", "STAGEFLOW_TRACE_DIR", "STAGEFLOW_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}
