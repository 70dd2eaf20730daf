// Package config loads API keys and defaults from ~/.stageflow and the
// environment. Environment variables take precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string

	DefaultAdapter string
	DefaultModel   string
	TraceDir       string
	CacheTTL       time.Duration

	ConfigDir string
}

// FileConfig represents the structure of ~/.stageflow/config.yaml.
type FileConfig struct {
	APIKeys  APIKeysConfig  `yaml:"api_keys"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
}

// DefaultsConfig holds default adapter, model, and run settings.
type DefaultsConfig struct {
	Adapter  string `yaml:"adapter"`
	Model    string `yaml:"model"`
	TraceDir string `yaml:"trace_dir"`
	CacheTTL string `yaml:"cache_ttl"`
}

// Load reads configuration from the config file and environment
// variables. Environment variables take precedence.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", fileConfig.APIKeys.DeepSeek),
		DefaultAdapter:  getEnvOrDefault("STAGEFLOW_ADAPTER", fileConfig.Defaults.Adapter),
		DefaultModel:    getEnvOrDefault("STAGEFLOW_MODEL", fileConfig.Defaults.Model),
		TraceDir:        getEnvOrDefault("STAGEFLOW_TRACE_DIR", fileConfig.Defaults.TraceDir),
		ConfigDir:       configDir,
	}

	if raw := getEnvOrDefault("STAGEFLOW_CACHE_TTL", fileConfig.Defaults.CacheTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid cache TTL %q: %w", raw, err)
		}
		cfg.CacheTTL = ttl
	}

	return cfg, nil
}

// HasAdapter returns true if the API key for the given adapter is
// configured. The mock adapter needs no key.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	case "mock":
		return true
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg)
	return cfg
}

func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".stageflow")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
