// Package config holds the process-wide configuration snapshot for skillsmith.
// The snapshot is built once at startup (DefaultConfig + Load + env overrides)
// and passed explicitly to every component; nothing reads it from a package
// global at call time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all skillsmith configuration.
type Config struct {
	// CatalogDir is the base directory for persisted state (see the
	// persisted state layout).
	CatalogDir string `yaml:"catalog_dir"`

	Fetch      FetchConfig      `yaml:"fetch"`
	Validation ValidationConfig `yaml:"validation"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	Sync       SyncConfig       `yaml:"sync"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Flags is a single configuration record read by every component; no
	// module-level mutable singletons or runtime-discovered wrappers.
	Flags FeatureFlags `yaml:"flags"`
}

// FetchConfig configures the upstream fetch client.
type FetchConfig struct {
	AppID             string   `yaml:"-"`
	AppInstallationID string   `yaml:"-"`
	AppPrivateKeyPath string   `yaml:"-"`
	Token             string   `yaml:"-"`
	RequestTimeout    string   `yaml:"request_timeout"`
	MaxRetries        int      `yaml:"max_retries"`
	RateLimitMargin   int      `yaml:"rate_limit_margin"`
	AllowedURLHosts   []string `yaml:"allowed_url_hosts"`
}

// ValidationConfig configures the validator.
type ValidationConfig struct {
	MinContentLength int  `yaml:"min_content_length"`
	Strict           bool `yaml:"strict"`
}

// ScannerConfig configures the scanner.
type ScannerConfig struct {
	ScannerVersion string `yaml:"scanner_version"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	// UseLogarithmicPopularity is loaded from the config file and
	// LOGARITHMIC_SCORING, but the scoring package does not read it:
	// Popularity always uses the log10 curve.
	UseLogarithmicPopularity bool     `yaml:"use_logarithmic_popularity"`
	RecognizedLicenses       []string `yaml:"recognized_licenses"`
	RecognizedTopics         []string `yaml:"recognized_topics"`
}

// EmbeddingConfig configures the dense-vector embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "genai"
	Dimensions     int    `yaml:"dimensions"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"-"`
	GenAIModel     string `yaml:"genai_model"`
}

// SearchConfig configures the hybrid search engine.
type SearchConfig struct {
	DefaultLimit     int     `yaml:"default_limit"`
	MaxLimit         int     `yaml:"max_limit"`
	RRFk             int     `yaml:"rrf_k"`
	RRFAlpha         float64 `yaml:"rrf_alpha"`
	LocalOverlayPath string  `yaml:"local_overlay_path"`
	EnableLocal      bool    `yaml:"enable_local_overlay"`
	DeadlineMillis   int     `yaml:"deadline_millis"`
}

// SyncConfig configures the sync scheduler.
type SyncConfig struct {
	BackgroundEnabled bool   `yaml:"background_enabled"`
	PollSeconds       int    `yaml:"poll_seconds"`
	Frequency         string `yaml:"frequency"` // "daily" | "weekly"
	Workers           int    `yaml:"workers"`
}

// LoggingConfig configures the zap-based application logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// FeatureFlags are boolean toggles read by components at call time.
type FeatureFlags struct {
	TelemetryEnabled bool `yaml:"telemetry_enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		CatalogDir: filepath.Join(home, ".skillsmith"),
		Fetch: FetchConfig{
			RequestTimeout:  "30s",
			MaxRetries:      5,
			RateLimitMargin: 50,
			AllowedURLHosts: []string{"github.com", "raw.githubusercontent.com", "api.github.com"},
		},
		Validation: ValidationConfig{
			MinContentLength: 100,
			Strict:           false,
		},
		Scanner: ScannerConfig{
			ScannerVersion: "1.0.0",
		},
		Scoring: ScoringConfig{
			UseLogarithmicPopularity: true,
			RecognizedLicenses:       []string{"mit", "apache-2.0", "bsd-3-clause", "bsd-2-clause", "mpl-2.0", "isc"},
			RecognizedTopics:         []string{"agent-skill", "claude", "mcp", "llm-tooling"},
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			Dimensions:     384,
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Search: SearchConfig{
			DefaultLimit:   20,
			MaxLimit:       100,
			RRFk:           60,
			RRFAlpha:       1.0,
			EnableLocal:    true,
			DeadlineMillis: 500,
		},
		Sync: SyncConfig{
			BackgroundEnabled: false,
			PollSeconds:       60,
			Frequency:         "daily",
			Workers:           6,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		Flags: FeatureFlags{
			TelemetryEnabled: true,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then layers environment variable overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the recognized environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APP_ID"); v != "" {
		c.Fetch.AppID = v
	}
	if v := os.Getenv("APP_INSTALLATION_ID"); v != "" {
		c.Fetch.AppInstallationID = v
	}
	if v := os.Getenv("APP_PRIVATE_KEY"); v != "" {
		c.Fetch.AppPrivateKeyPath = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Fetch.Token = v
	}
	if v := os.Getenv("CATALOG_DIR"); v != "" {
		c.CatalogDir = v
	}
	if v := os.Getenv("BACKGROUND_SYNC"); v != "" {
		c.Sync.BackgroundEnabled = v == "on"
	}
	if v := os.Getenv("SYNC_FREQUENCY"); v == "daily" || v == "weekly" {
		c.Sync.Frequency = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TELEMETRY"); v != "" {
		c.Flags.TelemetryEnabled = v == "on"
	}
	if v := os.Getenv("STRICT_VALIDATION"); v != "" {
		c.Validation.Strict = v == "on"
	}
	if v := os.Getenv("LOGARITHMIC_SCORING"); v != "" {
		c.Scoring.UseLogarithmicPopularity = v == "on"
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
}

// GetFetchTimeout returns the parsed fetch request timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate sanity-checks the configuration.
func (c *Config) Validate() error {
	if c.CatalogDir == "" {
		return fmt.Errorf("catalog_dir must not be empty")
	}
	if c.Validation.MinContentLength < 0 {
		return fmt.Errorf("validation.min_content_length must be >= 0")
	}
	if c.Search.MaxLimit <= 0 || c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("invalid search limit configuration")
	}
	if c.Sync.Frequency != "daily" && c.Sync.Frequency != "weekly" {
		return fmt.Errorf("sync.frequency must be 'daily' or 'weekly'")
	}
	return nil
}

// AuditPath returns the path to the hash-chained audit log file.
func (c *Config) AuditPath() string {
	return filepath.Join(c.CatalogDir, "audit", "chain.log")
}

// CatalogPath returns the path to the catalog database file.
func (c *Config) CatalogPath(version string) string {
	return filepath.Join(c.CatalogDir, "catalog", version+".db")
}

// QuarantinePath returns the path to the quarantine store file.
func (c *Config) QuarantinePath() string {
	return filepath.Join(c.CatalogDir, "quarantine", "state.db")
}

// SyncStatePath returns the path to the sync scheduler's checkpoint file.
func (c *Config) SyncStatePath() string {
	return filepath.Join(c.CatalogDir, "sync", "state.json")
}
