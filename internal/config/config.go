// Package config provides application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/embedq/embedq/domain/vectorizer"
)

// Default configuration values.
const (
	DefaultLogLevel          = "INFO"
	DefaultLogFormat         = "pretty"
	DefaultDBURL             = "sqlite:///embedq.db"
	DefaultPollInterval      = 5 * time.Second
	DefaultEmbedTimeout      = 60 * time.Second
	DefaultEmbedMaxRetries   = 5
	DefaultEmbedInitialDelay = 2 * time.Second
	DefaultEmbedBackoff      = 2.0
	DefaultTickConcurrency   = 4
)

// AppConfig holds resolved application configuration. Values are read once
// at the entry boundary; nothing reads the environment after construction.
type AppConfig struct {
	dbURL             string
	logLevel          string
	logFormat         string
	pollInterval      time.Duration
	tickConcurrency   int
	openAIAPIKey      string
	openAIBaseURL     string
	embedTimeout      time.Duration
	embedMaxRetries   int
	embedInitialDelay time.Duration
	embedBackoff      float64
	defaultScheduling string
	defaultIndexing   string
	grantRead         []string
	grantWrite        []string
}

// LoadConfig loads configuration from a .env file (if present) and the
// environment.
func LoadConfig(envFile string) (AppConfig, error) {
	if err := LoadDotEnv(envFile); err != nil {
		return AppConfig{}, fmt.Errorf("load env file: %w", err)
	}

	env, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, fmt.Errorf("load environment: %w", err)
	}

	return newAppConfig(env), nil
}

func newAppConfig(env EnvConfig) AppConfig {
	cfg := AppConfig{
		dbURL:             env.DBURL,
		logLevel:          env.LogLevel,
		logFormat:         env.LogFormat,
		pollInterval:      secondsToDuration(env.PollIntervalSeconds, DefaultPollInterval),
		tickConcurrency:   env.TickConcurrency,
		openAIAPIKey:      env.OpenAI.APIKey,
		openAIBaseURL:     env.OpenAI.BaseURL,
		embedTimeout:      secondsToDuration(env.OpenAI.Timeout, DefaultEmbedTimeout),
		embedMaxRetries:   env.OpenAI.MaxRetries,
		embedInitialDelay: secondsToDuration(env.OpenAI.InitialDelay, DefaultEmbedInitialDelay),
		embedBackoff:      env.OpenAI.BackoffFactor,
		defaultScheduling: env.DefaultScheduling,
		defaultIndexing:   env.DefaultIndexing,
		grantRead:         splitList(env.GrantRead),
		grantWrite:        splitList(env.GrantWrite),
	}
	if cfg.dbURL == "" {
		cfg.dbURL = DefaultDBURL
	}
	if cfg.tickConcurrency < 1 {
		cfg.tickConcurrency = DefaultTickConcurrency
	}
	return cfg
}

func secondsToDuration(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log verbosity level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() string { return c.logFormat }

// PollInterval returns how often the scheduler checks for due vectorizers.
func (c AppConfig) PollInterval() time.Duration { return c.pollInterval }

// TickConcurrency returns how many vectorizers one scheduler tick may
// process concurrently.
func (c AppConfig) TickConcurrency() int { return c.tickConcurrency }

// OpenAIAPIKey returns the OpenAI API key.
func (c AppConfig) OpenAIAPIKey() string { return c.openAIAPIKey }

// OpenAIBaseURL returns the OpenAI-compatible endpoint base URL.
func (c AppConfig) OpenAIBaseURL() string { return c.openAIBaseURL }

// EmbedTimeout returns the embedding request timeout.
func (c AppConfig) EmbedTimeout() time.Duration { return c.embedTimeout }

// EmbedMaxRetries returns the embedding request retry ceiling.
func (c AppConfig) EmbedMaxRetries() int { return c.embedMaxRetries }

// EmbedInitialDelay returns the first embedding retry delay.
func (c AppConfig) EmbedInitialDelay() time.Duration { return c.embedInitialDelay }

// EmbedBackoffFactor returns the embedding retry backoff multiplier.
func (c AppConfig) EmbedBackoffFactor() float64 { return c.embedBackoff }

// GrantRead returns roles granted read access to destination objects.
func (c AppConfig) GrantRead() []string { return c.grantRead }

// GrantWrite returns roles granted write access to destination objects.
func (c AppConfig) GrantWrite() []string { return c.grantWrite }

// Defaults resolves the configured process-level defaults for the
// indexing/scheduling sentinels. An unset or unknown value resolves to nil,
// which the config model treats as the safest no-op implementation.
func (c AppConfig) Defaults() vectorizer.Defaults {
	d := vectorizer.Defaults{}
	switch c.defaultScheduling {
	case vectorizer.SchedulingImplInterval:
		d.Scheduling = vectorizer.NewSchedulingInterval(vectorizer.DefaultScheduleInterval)
	case vectorizer.SchedulingImplNone:
		d.Scheduling = vectorizer.NewSchedulingNone()
	}
	switch c.defaultIndexing {
	case vectorizer.IndexingImplDiskANN:
		d.Indexing = vectorizer.NewIndexingDiskANN()
	case vectorizer.IndexingImplHNSW:
		d.Indexing = vectorizer.NewIndexingHNSW()
	case vectorizer.IndexingImplNone:
		d.Indexing = vectorizer.NewIndexingNone()
	}
	return d
}
