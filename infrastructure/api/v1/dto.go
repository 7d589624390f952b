package v1

import (
	"encoding/json"
	"time"

	"github.com/embedq/embedq/application/service"
	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
)

// CreateVectorizerRequest is the POST body for vectorizer creation. Config
// carries the raw pipeline document; omitted stages resolve to defaults.
type CreateVectorizerRequest struct {
	Name        string          `json:"name"`
	SourceTable string          `json:"source_table"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// VectorizerResponse is the API view of a vectorizer.
type VectorizerResponse struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	SourceTable      string          `json:"source_table"`
	TriggerName      string          `json:"trigger_name"`
	QueueTable       string          `json:"queue_table"`
	FailedQueueTable string          `json:"failed_queue_table"`
	Enabled          bool            `json:"enabled"`
	Config           json.RawMessage `json:"config"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// VectorizerListResponse wraps the vectorizer list.
type VectorizerListResponse struct {
	Data []VectorizerResponse `json:"data"`
}

// StatusResponse reports a vectorizer's queue state. Pending of -1 means
// the backlog exceeds the probe bound.
type StatusResponse struct {
	Vectorizer VectorizerResponse `json:"vectorizer"`
	Pending    int64              `json:"pending"`
	Overflow   bool               `json:"pending_overflow"`
	Failed     int64              `json:"failed"`
}

// QueueDepthResponse reports the queue depth.
type QueueDepthResponse struct {
	Depth int64 `json:"depth"`
	Exact bool  `json:"exact"`
}

// FailedItemResponse is one failed-queue entry.
type FailedItemResponse struct {
	Key       []any     `json:"key"`
	Stage     string    `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

// FailedListResponse wraps the failed-queue list.
type FailedListResponse struct {
	Data []FailedItemResponse `json:"data"`
}

// RunResponse reports a manual run.
type RunResponse struct {
	Processed int `json:"processed"`
}

func vectorizerToDTO(v vectorizer.Vectorizer) VectorizerResponse {
	cfg, _ := json.Marshal(v.Config())
	return VectorizerResponse{
		ID:               v.ID(),
		Name:             v.Name(),
		SourceTable:      v.SourceTable(),
		TriggerName:      v.TriggerName(),
		QueueTable:       v.QueueTable(),
		FailedQueueTable: v.FailedQueueTable(),
		Enabled:          v.Enabled(),
		Config:           cfg,
		CreatedAt:        v.CreatedAt(),
		UpdatedAt:        v.UpdatedAt(),
	}
}

func statusToDTO(s service.Status) StatusResponse {
	resp := StatusResponse{
		Vectorizer: vectorizerToDTO(s.Vectorizer),
		Pending:    s.Pending,
		Failed:     s.Failed,
	}
	if s.Pending == queue.ApproxOverflow {
		resp.Pending = -1
		resp.Overflow = true
	}
	return resp
}
