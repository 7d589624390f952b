package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/embedq/embedq/domain/vectorizer"
)

// VectorizerMapper maps between the domain Vectorizer and VectorizerModel.
type VectorizerMapper struct{}

// ToDomain converts a VectorizerModel to a domain Vectorizer.
func (m VectorizerMapper) ToDomain(e VectorizerModel) (vectorizer.Vectorizer, error) {
	var pk []vectorizer.PKColumn
	if err := json.Unmarshal([]byte(e.SourcePK), &pk); err != nil {
		return vectorizer.Vectorizer{}, fmt.Errorf("decode source pk for vectorizer %d: %w", e.ID, err)
	}

	var cfg vectorizer.Config
	if err := json.Unmarshal([]byte(e.Config), &cfg); err != nil {
		return vectorizer.Vectorizer{}, fmt.Errorf("decode config for vectorizer %d: %w", e.ID, err)
	}

	return vectorizer.NewVectorizerWithID(
		e.ID,
		e.Name,
		e.SourceTable,
		pk,
		e.TriggerName,
		e.QueueTable,
		e.FailedQueueTable,
		cfg,
		e.Enabled,
		e.CreatedAt,
		e.UpdatedAt,
	), nil
}

// ToModel converts a domain Vectorizer to a VectorizerModel.
func (m VectorizerMapper) ToModel(v vectorizer.Vectorizer) (VectorizerModel, error) {
	pk, err := json.Marshal(v.SourcePK())
	if err != nil {
		return VectorizerModel{}, fmt.Errorf("encode source pk: %w", err)
	}

	cfg, err := json.Marshal(v.Config())
	if err != nil {
		return VectorizerModel{}, fmt.Errorf("encode config: %w", err)
	}

	return VectorizerModel{
		ID:               v.ID(),
		Name:             v.Name(),
		SourceTable:      v.SourceTable(),
		SourcePK:         string(pk),
		TriggerName:      v.TriggerName(),
		QueueTable:       v.QueueTable(),
		FailedQueueTable: v.FailedQueueTable(),
		Config:           string(cfg),
		Enabled:          v.Enabled(),
		CreatedAt:        v.CreatedAt(),
		UpdatedAt:        v.UpdatedAt(),
	}, nil
}
