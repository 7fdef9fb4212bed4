package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         App         `mapstructure:"app"`
	AI          AI          `mapstructure:"ai"`
	Scrape      Scrape      `mapstructure:"scrape"`
	Dedup       Dedup       `mapstructure:"dedup"`
	Classify    Classify    `mapstructure:"classify"`
	Entitlement Entitlement `mapstructure:"entitlement"`
	Dispatch    Dispatch    `mapstructure:"dispatch"`
}

// App holds general application configuration.
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
	Owner   string `mapstructure:"owner"` // default owner for CLI invocations
}

// AI holds Gemini configuration.
type AI struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxRetries  int     `mapstructure:"max_retries"`
	RetryDelay  string  `mapstructure:"retry_delay"`
	Temperature float32 `mapstructure:"temperature"`
}

// Scrape holds scrape normalizer configuration.
type Scrape struct {
	Timeout   string `mapstructure:"timeout"`
	UserAgent string `mapstructure:"user_agent"`
}

// Dedup holds deduplication ledger configuration.
type Dedup struct {
	Retention string `mapstructure:"retention"`
}

// Classify holds the category taxonomy. Categories is an ordered list; the
// order is the classifier's tie-break. Keywords maps category -> keyword list.
// Loaded once at startup, immutable thereafter.
type Classify struct {
	Categories []string            `mapstructure:"categories"`
	Keywords   map[string][]string `mapstructure:"keywords"`
}

// Entitlement holds tier configuration.
type Entitlement struct {
	DefaultTier string          `mapstructure:"default_tier"`
	Tiers       map[string]Tier `mapstructure:"tiers"`
	Owners      map[string]string `mapstructure:"owners"` // owner id -> tier name
}

// Tier is one entitlement level.
type Tier struct {
	BatchLimit int  `mapstructure:"batch_limit"`
	AIAllowed  bool `mapstructure:"ai_allowed"`
}

// Dispatch holds async work dispatcher configuration.
type Dispatch struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// SetDefaults registers every configuration key with viper so a bare run
// works without a config file.
func SetDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".stash")
	viper.SetDefault("app.owner", "local")

	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.max_retries", 2)
	viper.SetDefault("ai.retry_delay", "1s")
	viper.SetDefault("ai.temperature", 0.3)

	viper.SetDefault("scrape.timeout", "20s")
	viper.SetDefault("scrape.user_agent", "stash/1.0")

	viper.SetDefault("dedup.retention", "720h") // 30 days

	viper.SetDefault("classify.categories", DefaultCategories)
	viper.SetDefault("classify.keywords", DefaultKeywords)

	viper.SetDefault("entitlement.default_tier", "free")
	viper.SetDefault("entitlement.tiers", map[string]any{
		"free": map[string]any{"batch_limit": 0, "ai_allowed": false},
		"pro":  map[string]any{"batch_limit": 10, "ai_allowed": true},
	})

	viper.SetDefault("dispatch.max_concurrent", 4)
}

// Load unmarshals the active viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Duration parses a duration config value, falling back to def on error or
// empty input.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
