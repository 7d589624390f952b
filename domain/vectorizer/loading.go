package vectorizer

import (
	"encoding/json"
	"fmt"
)

// Stage tags carried in the config_type field of every stage document.
const (
	StageLoading     = "loading"
	StageParsing     = "parsing"
	StageChunking    = "chunking"
	StageFormatting  = "formatting"
	StageEmbedding   = "embedding"
	StageIndexing    = "indexing"
	StageScheduling  = "scheduling"
	StageProcessing  = "processing"
	StageDestination = "destination"
)

// Loading stage implementations.
const (
	LoadingImplColumn = "column"
	LoadingImplURI    = "uri"
)

// DefaultLoadingRetries is the per-row retry ceiling applied when the
// loading document does not set one.
const DefaultLoadingRetries = 6

// Loading configures how source content is obtained for a row.
type Loading interface {
	ConfigType() string
	Implementation() string
	ColumnName() string
	Retries() int
	validate(source SourceTable) error
}

// LoadingColumn loads content directly from a source column. The column may
// be text-like or binary; binary columns require a parsing implementation
// other than "none".
type LoadingColumn struct {
	Type   string `json:"config_type"`
	Impl   string `json:"implementation"`
	Column string `json:"column_name"`
	Retry  int    `json:"retries"`
}

// NewLoadingColumn creates a column loading config with the default retry
// ceiling.
func NewLoadingColumn(column string) LoadingColumn {
	return LoadingColumn{
		Type:   StageLoading,
		Impl:   LoadingImplColumn,
		Column: column,
		Retry:  DefaultLoadingRetries,
	}
}

// ConfigType returns the stage tag.
func (l LoadingColumn) ConfigType() string { return l.Type }

// Implementation returns the implementation name.
func (l LoadingColumn) Implementation() string { return l.Impl }

// ColumnName returns the source column to load from.
func (l LoadingColumn) ColumnName() string { return l.Column }

// Retries returns the per-row retry ceiling.
func (l LoadingColumn) Retries() int { return l.Retry }

func (l LoadingColumn) validate(source SourceTable) error {
	if err := checkStageTag(StageLoading, l.Type); err != nil {
		return err
	}
	if l.Column == "" {
		return fmt.Errorf("%w: loading: column_name is required", ErrInvalidConfig)
	}
	if l.Retry < 0 {
		return fmt.Errorf("%w: loading: retries must be >= 0", ErrInvalidConfig)
	}
	col, ok := source.Column(l.Column)
	if !ok {
		return fmt.Errorf("%w: loading: column %q does not exist in %q", ErrInvalidConfig, l.Column, source.Name)
	}
	if !col.IsTextLike() && !col.IsBinary() {
		return fmt.Errorf("%w: loading: column %q has type %q, need a text or binary column", ErrInvalidConfig, l.Column, col.Type)
	}
	return nil
}

// LoadingURI loads content from the location named by a text column
// (a file path or URL). The referenced column must be text-like.
type LoadingURI struct {
	Type   string `json:"config_type"`
	Impl   string `json:"implementation"`
	Column string `json:"column_name"`
	Retry  int    `json:"retries"`
}

// NewLoadingURI creates a URI loading config with the default retry ceiling.
func NewLoadingURI(column string) LoadingURI {
	return LoadingURI{
		Type:   StageLoading,
		Impl:   LoadingImplURI,
		Column: column,
		Retry:  DefaultLoadingRetries,
	}
}

// ConfigType returns the stage tag.
func (l LoadingURI) ConfigType() string { return l.Type }

// Implementation returns the implementation name.
func (l LoadingURI) Implementation() string { return l.Impl }

// ColumnName returns the source column holding the URI.
func (l LoadingURI) ColumnName() string { return l.Column }

// Retries returns the per-row retry ceiling.
func (l LoadingURI) Retries() int { return l.Retry }

func (l LoadingURI) validate(source SourceTable) error {
	if err := checkStageTag(StageLoading, l.Type); err != nil {
		return err
	}
	if l.Column == "" {
		return fmt.Errorf("%w: loading: column_name is required", ErrInvalidConfig)
	}
	if l.Retry < 0 {
		return fmt.Errorf("%w: loading: retries must be >= 0", ErrInvalidConfig)
	}
	col, ok := source.Column(l.Column)
	if !ok {
		return fmt.Errorf("%w: loading: column %q does not exist in %q", ErrInvalidConfig, l.Column, source.Name)
	}
	if !col.IsTextLike() {
		return fmt.Errorf("%w: loading: uri column %q has type %q, need a text column", ErrInvalidConfig, l.Column, col.Type)
	}
	return nil
}

func parseLoading(raw json.RawMessage) (Loading, error) {
	impl, err := peekImplementation(StageLoading, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case LoadingImplColumn:
		l := NewLoadingColumn("")
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("%w: loading: %v", ErrInvalidConfig, err)
		}
		return l, nil
	case LoadingImplURI:
		l := NewLoadingURI("")
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("%w: loading: %v", ErrInvalidConfig, err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%w: loading: unknown implementation %q", ErrInvalidConfig, impl)
	}
}

// checkStageTag verifies a document's config_type matches the stage it was
// supplied for.
func checkStageTag(want, got string) error {
	if got != want {
		return fmt.Errorf("%w: expected config_type %q, got %q", ErrInvalidConfig, want, got)
	}
	return nil
}

// stageProbe extracts the tag pair from a raw stage document.
type stageProbe struct {
	ConfigType     string `json:"config_type"`
	Implementation string `json:"implementation"`
}

func peekImplementation(stage string, raw json.RawMessage) (string, error) {
	var probe stageProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidConfig, stage, err)
	}
	// An absent config_type is implied by the document key the stage sits
	// under; a present one must match it.
	if probe.ConfigType != "" && probe.ConfigType != stage {
		return "", fmt.Errorf("%w: expected config_type %q, got %q", ErrInvalidConfig, stage, probe.ConfigType)
	}
	if probe.Implementation == "" {
		return "", fmt.Errorf("%w: %s: implementation is required", ErrInvalidConfig, stage)
	}
	return probe.Implementation, nil
}
