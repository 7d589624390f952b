package vectorizer

import (
	"encoding/json"
	"fmt"
)

// Embedding stage implementations.
const (
	EmbeddingImplOpenAI = "openai"
	EmbeddingImplOllama = "ollama"
)

// DefaultOpenAIKeyName is the environment variable consulted for the OpenAI
// API key when the embedding document does not name one.
const DefaultOpenAIKeyName = "OPENAI_API_KEY"

// Embedding configures the external embedding collaborator.
type Embedding interface {
	ConfigType() string
	Implementation() string
	ModelName() string
	// VectorDimensions is the width of the destination embedding column.
	VectorDimensions() int
	validate() error
}

// EmbeddingOpenAI embeds via an OpenAI-compatible endpoint.
type EmbeddingOpenAI struct {
	Type       string `json:"config_type"`
	Impl       string `json:"implementation"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	BaseURL    string `json:"base_url,omitempty"`
	APIKeyName string `json:"api_key_name"`
}

// NewEmbeddingOpenAI creates an OpenAI embedding config.
func NewEmbeddingOpenAI(model string, dimensions int) EmbeddingOpenAI {
	return EmbeddingOpenAI{
		Type:       StageEmbedding,
		Impl:       EmbeddingImplOpenAI,
		Model:      model,
		Dimensions: dimensions,
		APIKeyName: DefaultOpenAIKeyName,
	}
}

// ConfigType returns the stage tag.
func (e EmbeddingOpenAI) ConfigType() string { return e.Type }

// Implementation returns the implementation name.
func (e EmbeddingOpenAI) Implementation() string { return e.Impl }

// ModelName returns the embedding model identifier.
func (e EmbeddingOpenAI) ModelName() string { return e.Model }

// VectorDimensions returns the embedding width.
func (e EmbeddingOpenAI) VectorDimensions() int { return e.Dimensions }

func (e EmbeddingOpenAI) validate() error {
	if err := checkStageTag(StageEmbedding, e.Type); err != nil {
		return err
	}
	return validateEmbeddingFields(e.Model, e.Dimensions)
}

// EmbeddingOllama embeds via a local Ollama server.
type EmbeddingOllama struct {
	Type       string `json:"config_type"`
	Impl       string `json:"implementation"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	BaseURL    string `json:"base_url,omitempty"`
}

// NewEmbeddingOllama creates an Ollama embedding config.
func NewEmbeddingOllama(model string, dimensions int) EmbeddingOllama {
	return EmbeddingOllama{
		Type:       StageEmbedding,
		Impl:       EmbeddingImplOllama,
		Model:      model,
		Dimensions: dimensions,
	}
}

// ConfigType returns the stage tag.
func (e EmbeddingOllama) ConfigType() string { return e.Type }

// Implementation returns the implementation name.
func (e EmbeddingOllama) Implementation() string { return e.Impl }

// ModelName returns the embedding model identifier.
func (e EmbeddingOllama) ModelName() string { return e.Model }

// VectorDimensions returns the embedding width.
func (e EmbeddingOllama) VectorDimensions() int { return e.Dimensions }

func (e EmbeddingOllama) validate() error {
	if err := checkStageTag(StageEmbedding, e.Type); err != nil {
		return err
	}
	return validateEmbeddingFields(e.Model, e.Dimensions)
}

func validateEmbeddingFields(model string, dimensions int) error {
	if model == "" {
		return fmt.Errorf("%w: embedding: model is required", ErrInvalidConfig)
	}
	if dimensions < 1 {
		return fmt.Errorf("%w: embedding: dimensions must be >= 1", ErrInvalidConfig)
	}
	return nil
}

func parseEmbedding(raw json.RawMessage) (Embedding, error) {
	impl, err := peekImplementation(StageEmbedding, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case EmbeddingImplOpenAI:
		e := NewEmbeddingOpenAI("", 0)
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: embedding: %v", ErrInvalidConfig, err)
		}
		return e, nil
	case EmbeddingImplOllama:
		e := NewEmbeddingOllama("", 0)
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: embedding: %v", ErrInvalidConfig, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: embedding: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
