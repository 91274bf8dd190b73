// Package config provides configuration loading and structs for the metricmap server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Mapping MappingConfig `yaml:"mapping"`
	Remote  RemoteConfig  `yaml:"remote"`
	Local   LocalConfig   `yaml:"local"`
	Cache   CacheConfig   `yaml:"cache"`
	Store   StoreConfig   `yaml:"store"`
	Vocab   VocabConfig   `yaml:"vocab"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MappingConfig holds similarity and confidence thresholds for metric mapping.
type MappingConfig struct {
	Enabled             *bool            `yaml:"enabled"`
	SimilarityThreshold float64          `yaml:"similarity_threshold"`
	Confidence          ConfidenceConfig `yaml:"confidence"`
	ResolveWorkers      int              `yaml:"resolve_workers"`
	Suggestions         *bool            `yaml:"suggestions"`
	SuggestionLimit     int              `yaml:"suggestion_limit"`
}

// ConfidenceConfig holds the three confidence band thresholds.
type ConfidenceConfig struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
	Low    float64 `yaml:"low"`
}

// RemoteConfig holds settings for the remote GPU embedding endpoint.
// An empty URL disables the remote tier.
type RemoteConfig struct {
	URL             string `yaml:"url"`
	APIKey          string `yaml:"api_key"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	FallbackToLocal *bool  `yaml:"fallback_to_local"`
}

// Timeout returns the remote request timeout as a duration.
func (r *RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// FallbackEnabled reports whether local fallback is enabled; defaults to true when unset.
func (r *RemoteConfig) FallbackEnabled() bool {
	if r.FallbackToLocal != nil {
		return *r.FallbackToLocal
	}
	return true
}

// LocalConfig holds ONNX local inference engine settings.
type LocalConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// CacheConfig holds embedding cache settings. The cache is bounded by entry
// count, not byte size.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// StoreConfig holds the persistent embedding store settings.
// An empty path disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// VocabConfig holds canonical vocabulary settings. An empty path uses the
// built-in vocabulary.
type VocabConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// MappingEnabled reports whether AI mapping is enabled; defaults to true when unset.
func (m *MappingConfig) MappingEnabled() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// SuggestionsEnabled reports whether lexical suggestions are enabled; defaults to true.
func (m *MappingConfig) SuggestionsEnabled() bool {
	if m.Suggestions != nil {
		return *m.Suggestions
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Local.ModelPath = expandPath(cfg.Local.ModelPath, configDir)
	if cfg.Store.Path != "" {
		cfg.Store.Path = expandPath(cfg.Store.Path, configDir)
	}
	if cfg.Vocab.Path != "" {
		cfg.Vocab.Path = expandPath(cfg.Vocab.Path, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
