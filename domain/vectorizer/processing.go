package vectorizer

import (
	"encoding/json"
	"fmt"
)

// Processing stage implementations.
const (
	ProcessingImplDefault = "default"
)

// Processing batch bounds.
const (
	DefaultProcessingBatchSize   = 50
	MaxProcessingBatchSize       = 2048
	DefaultProcessingConcurrency = 1
	MaxProcessingConcurrency     = 50
)

// Processing configures how the worker drains the queue.
type Processing interface {
	ConfigType() string
	Implementation() string
	QueueBatchSize() int
	EmbedConcurrency() int
	validate() error
}

// ProcessingDefault is the standard batch processing configuration.
type ProcessingDefault struct {
	Type        string `json:"config_type"`
	Impl        string `json:"implementation"`
	BatchSize   int    `json:"batch_size"`
	Concurrency int    `json:"concurrency"`
}

// NewProcessingDefault creates a processing config with default batch size
// and concurrency.
func NewProcessingDefault() ProcessingDefault {
	return ProcessingDefault{
		Type:        StageProcessing,
		Impl:        ProcessingImplDefault,
		BatchSize:   DefaultProcessingBatchSize,
		Concurrency: DefaultProcessingConcurrency,
	}
}

// ConfigType returns the stage tag.
func (p ProcessingDefault) ConfigType() string { return p.Type }

// Implementation returns the implementation name.
func (p ProcessingDefault) Implementation() string { return p.Impl }

// QueueBatchSize returns how many queue rows one batch claims.
func (p ProcessingDefault) QueueBatchSize() int { return p.BatchSize }

// EmbedConcurrency returns how many embedding requests may be in flight for
// one batch.
func (p ProcessingDefault) EmbedConcurrency() int { return p.Concurrency }

func (p ProcessingDefault) validate() error {
	if err := checkStageTag(StageProcessing, p.Type); err != nil {
		return err
	}
	if p.BatchSize < 1 || p.BatchSize > MaxProcessingBatchSize {
		return fmt.Errorf("%w: processing: batch_size must be in [1, %d]", ErrInvalidConfig, MaxProcessingBatchSize)
	}
	if p.Concurrency < 1 || p.Concurrency > MaxProcessingConcurrency {
		return fmt.Errorf("%w: processing: concurrency must be in [1, %d]", ErrInvalidConfig, MaxProcessingConcurrency)
	}
	return nil
}

func parseProcessing(raw json.RawMessage) (Processing, error) {
	impl, err := peekImplementation(StageProcessing, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case ProcessingImplDefault:
		p := NewProcessingDefault()
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: processing: %v", ErrInvalidConfig, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: processing: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
