// Package embedder provides the external embedding collaborators invoked by
// the worker's batch processing.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/embedq/embedq/domain/vectorizer"
)

// Embedder computes embedding vectors for a batch of texts. Implementations
// may be slow and unreliable; callers own retry bookkeeping at the queue
// level, implementations own transport-level retries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimensions() int
}

// ErrMissingAPIKey indicates the environment variable named by the
// embedding config holds no API key.
var ErrMissingAPIKey = errors.New("embedding api key not set")

// Factory builds Embedders for embedding stage configurations.
type Factory struct {
	apiKey  string
	baseURL string
}

// NewFactory creates a Factory. apiKey and baseURL are process-level
// fallbacks for configs that do not name their own.
func NewFactory(apiKey, baseURL string) *Factory {
	return &Factory{apiKey: apiKey, baseURL: baseURL}
}

// ForConfig returns the Embedder implementing the given embedding config.
func (f *Factory) ForConfig(cfg vectorizer.Embedding) (Embedder, error) {
	switch e := cfg.(type) {
	case vectorizer.EmbeddingOpenAI:
		apiKey := f.apiKey
		if e.APIKeyName != "" {
			if v := os.Getenv(e.APIKeyName); v != "" {
				apiKey = v
			}
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, e.APIKeyName)
		}
		baseURL := e.BaseURL
		if baseURL == "" {
			baseURL = f.baseURL
		}
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     apiKey,
			BaseURL:    baseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
		}), nil
	case vectorizer.EmbeddingOllama:
		// Ollama exposes an OpenAI-compatible surface under /v1; reuse the
		// same client with a dummy key.
		baseURL := e.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     "ollama",
			BaseURL:    baseURL + "/v1",
			Model:      e.Model,
			Dimensions: e.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding implementation %q", vectorizer.ErrInvalidConfig, cfg.Implementation())
	}
}

// Func adapts a function to the Embedder interface. Used by tests and by
// callers that supply their own collaborator.
type Func struct {
	EmbedFunc func(ctx context.Context, texts []string) ([][]float64, error)
	Dims      int
}

// Embed calls the wrapped function.
func (f Func) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return f.EmbedFunc(ctx, texts)
}

// Dimensions returns the configured vector width.
func (f Func) Dimensions() int { return f.Dims }
