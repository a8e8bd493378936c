package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Undated item handling for the freshness filter.
const (
	UndatedPolicyDrop        = "drop"
	UndatedPolicyAssumeFresh = "assume_fresh"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	SourcesFile string `envconfig:"SOURCES_FILE" default:""`

	PipelineInterval   time.Duration `envconfig:"PIPELINE_INTERVAL" default:"5m"`
	PipelineRunOnStart bool          `envconfig:"PIPELINE_RUN_ON_START" default:"true"`
	MaxPerSource       int           `envconfig:"MAX_PER_SOURCE" default:"3"`
	HardLimit          int           `envconfig:"HARD_LIMIT" default:"20"`

	FreshnessMaxAgeHours   int    `envconfig:"FRESHNESS_MAX_AGE_HOURS" default:"24"`
	FreshnessUndatedPolicy string `envconfig:"FRESHNESS_UNDATED_POLICY" default:"drop"`

	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	FetchUserAgent string        `envconfig:"FETCH_USER_AGENT" default:"allball/1.0 (+https://horse.fit)"`

	NewsAPIKey      string `envconfig:"NEWSAPI_KEY" default:""`
	NewsAPIEndpoint string `envconfig:"NEWSAPI_ENDPOINT" default:"https://newsapi.org"`

	AIEnabled     bool          `envconfig:"AI_ENABLED" default:"true"`
	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" default:""`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"900"`
	AITemperature float32       `envconfig:"AI_TEMPERATURE" default:"0.5"`
	MaxAIChars    int           `envconfig:"MAX_AI_CHARS" default:"3000"`
	MaxAIArticles int           `envconfig:"MAX_AI_ARTICLES" default:"5"`

	ReaderExpandEnabled bool `envconfig:"READER_EXPAND_ENABLED" default:"false"`
	ReaderMinChars      int  `envconfig:"READER_MIN_CHARS" default:"280"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks everything except DATABASE_URL, which only commands that
// open the database require (see RequireDatabase).
func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.PipelineInterval < time.Second {
		return fmt.Errorf("PIPELINE_INTERVAL must be >= 1s")
	}
	if c.MaxPerSource < 0 {
		return fmt.Errorf("MAX_PER_SOURCE must be >= 0")
	}
	if c.HardLimit < 0 {
		return fmt.Errorf("HARD_LIMIT must be >= 0")
	}
	if c.FreshnessMaxAgeHours < 0 {
		return fmt.Errorf("FRESHNESS_MAX_AGE_HOURS must be >= 0")
	}
	switch c.UndatedPolicy() {
	case UndatedPolicyDrop, UndatedPolicyAssumeFresh:
	default:
		return fmt.Errorf("FRESHNESS_UNDATED_POLICY must be %q or %q", UndatedPolicyDrop, UndatedPolicyAssumeFresh)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be > 0")
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be > 0")
	}
	if c.AIMaxTokens < 1 {
		return fmt.Errorf("AI_MAX_TOKENS must be >= 1")
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2")
	}
	if c.MaxAIChars < 1 {
		return fmt.Errorf("MAX_AI_CHARS must be >= 1")
	}
	if c.AIEnabled && strings.TrimSpace(c.OpenAIModel) == "" {
		return fmt.Errorf("OPENAI_MODEL is required when AI_ENABLED=true")
	}
	if c.ReaderMinChars < 0 {
		return fmt.Errorf("READER_MIN_CHARS must be >= 0")
	}
	return nil
}

func (c *Config) RequireDatabase() error {
	if c == nil || strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// UndatedPolicy returns the normalized FRESHNESS_UNDATED_POLICY value.
func (c *Config) UndatedPolicy() string {
	return strings.ToLower(strings.TrimSpace(c.FreshnessUndatedPolicy))
}

// RewriteConfigured reports whether an external rewrite service can be used.
func (c *Config) RewriteConfigured() bool {
	return c != nil && c.AIEnabled && strings.TrimSpace(c.OpenAIAPIKey) != ""
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
