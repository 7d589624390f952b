package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration. Nested structs use
// underscore delimiters (e.g. OPENAI_API_KEY).
type EnvConfig struct {
	// DBURL is the database connection URL.
	// Env: DB_URL (default: sqlite:///embedq.db)
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// PollIntervalSeconds is how often the scheduler checks for due
	// vectorizers.
	// Env: POLL_INTERVAL_SECONDS (default: 5)
	PollIntervalSeconds float64 `envconfig:"POLL_INTERVAL_SECONDS" default:"5"`

	// TickConcurrency is how many vectorizers one scheduler tick may
	// process concurrently.
	// Env: TICK_CONCURRENCY (default: 4)
	TickConcurrency int `envconfig:"TICK_CONCURRENCY" default:"4"`

	// DefaultScheduling resolves the scheduling "default" sentinel:
	// interval or none.
	// Env: DEFAULT_SCHEDULING
	DefaultScheduling string `envconfig:"DEFAULT_SCHEDULING"`

	// DefaultIndexing resolves the indexing "default" sentinel:
	// diskann, hnsw, or none.
	// Env: DEFAULT_INDEXING
	DefaultIndexing string `envconfig:"DEFAULT_INDEXING"`

	// GrantRead is a comma-separated list of roles granted read access to
	// destination objects.
	// Env: GRANT_READ
	GrantRead string `envconfig:"GRANT_READ"`

	// GrantWrite is a comma-separated list of roles granted write access to
	// destination objects.
	// Env: GRANT_WRITE
	GrantWrite string `envconfig:"GRANT_WRITE"`

	// OpenAI configures the embedding endpoint.
	OpenAI OpenAIEnv `envconfig:"OPENAI"`
}

// OpenAIEnv holds environment configuration for the OpenAI-compatible
// embedding endpoint.
type OpenAIEnv struct {
	// APIKey is the API key for authentication.
	// Env: OPENAI_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// BaseURL overrides the endpoint base URL.
	// Env: OPENAI_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Timeout is the request timeout in seconds.
	// Env: OPENAI_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of request retries.
	// Env: OPENAI_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: OPENAI_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: OPENAI_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
