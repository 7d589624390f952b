package embedq

import (
	"errors"
	"log/slog"
	"time"

	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/embedder"
	"github.com/embedq/embedq/internal/config"
)

// ErrNoDatabase indicates no database was configured.
var ErrNoDatabase = errors.New("embedq: no database configured")

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	dbURL           string
	apiKey          string
	baseURL         string
	embedder        embedder.Embedder
	logger          *slog.Logger
	pollInterval    time.Duration
	tickConcurrency int
	grantRead       []string
	grantWrite      []string
	defaults        vectorizer.Defaults
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		pollInterval:    config.DefaultPollInterval,
		tickConcurrency: config.DefaultTickConcurrency,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres configures PostgreSQL as the database.
func WithPostgres(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithDatabaseURL configures the database from a URL of either scheme.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithOpenAI sets the OpenAI API key used by openai embedding configs that
// do not name their own key variable.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		c.apiKey = apiKey
	}
}

// WithOpenAIBaseURL points openai embedding configs at a compatible
// endpoint.
func WithOpenAIBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithEmbedder overrides the embedding backend for every vectorizer.
// Intended for tests and custom collaborators.
func WithEmbedder(e embedder.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithPollInterval sets how often the periodic driver looks for due
// vectorizers.
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		c.pollInterval = d
	}
}

// WithTickConcurrency bounds how many vectorizers tick simultaneously.
func WithTickConcurrency(n int) Option {
	return func(c *clientConfig) {
		c.tickConcurrency = n
	}
}

// WithGrants names database roles granted access to destination objects on
// PostgreSQL.
func WithGrants(read, write []string) Option {
	return func(c *clientConfig) {
		c.grantRead = read
		c.grantWrite = write
	}
}

// WithDefaults sets the sentinel-resolution defaults applied at vectorizer
// creation.
func WithDefaults(d vectorizer.Defaults) Option {
	return func(c *clientConfig) {
		c.defaults = d
	}
}

// WithConfig applies an AppConfig loaded from the environment.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.dbURL = cfg.DBURL()
		c.apiKey = cfg.OpenAIAPIKey()
		c.baseURL = cfg.OpenAIBaseURL()
		c.pollInterval = cfg.PollInterval()
		c.tickConcurrency = cfg.TickConcurrency()
		c.grantRead = cfg.GrantRead()
		c.grantWrite = cfg.GrantWrite()
		c.defaults = cfg.Defaults()
	}
}
