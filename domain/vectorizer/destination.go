package vectorizer

import (
	"encoding/json"
	"fmt"
)

// Destination stage implementations.
const (
	DestinationImplTable  = "table"
	DestinationImplColumn = "column"
)

// Destination configures where computed embeddings are stored: a side table
// with a read view, or a single column added to the source table.
type Destination interface {
	ConfigType() string
	Implementation() string
	validate() error
}

// DestinationTable stores embeddings in a side table joined back to the
// source by a read view. Empty names are derived from the source table name
// at creation time and persisted resolved.
type DestinationTable struct {
	Type        string `json:"config_type"`
	Impl        string `json:"implementation"`
	TargetTable string `json:"target_table,omitempty"`
	ViewName    string `json:"view_name,omitempty"`
}

// NewDestinationTable creates a table destination with convention-derived
// names.
func NewDestinationTable() DestinationTable {
	return DestinationTable{Type: StageDestination, Impl: DestinationImplTable}
}

// ConfigType returns the stage tag.
func (d DestinationTable) ConfigType() string { return d.Type }

// Implementation returns the implementation name.
func (d DestinationTable) Implementation() string { return d.Impl }

func (d DestinationTable) validate() error {
	if err := checkStageTag(StageDestination, d.Type); err != nil {
		return err
	}
	if d.TargetTable != "" && d.TargetTable == d.ViewName {
		return fmt.Errorf("%w: destination: target_table and view_name must differ", ErrInvalidConfig)
	}
	return nil
}

// DestinationColumn stores at most one embedding per row in a column added
// to the source table. Incompatible with chunking.
type DestinationColumn struct {
	Type            string `json:"config_type"`
	Impl            string `json:"implementation"`
	EmbeddingColumn string `json:"embedding_column"`
}

// NewDestinationColumn creates a column destination.
func NewDestinationColumn(embeddingColumn string) DestinationColumn {
	return DestinationColumn{
		Type:            StageDestination,
		Impl:            DestinationImplColumn,
		EmbeddingColumn: embeddingColumn,
	}
}

// ConfigType returns the stage tag.
func (d DestinationColumn) ConfigType() string { return d.Type }

// Implementation returns the implementation name.
func (d DestinationColumn) Implementation() string { return d.Impl }

func (d DestinationColumn) validate() error {
	if err := checkStageTag(StageDestination, d.Type); err != nil {
		return err
	}
	if d.EmbeddingColumn == "" {
		return fmt.Errorf("%w: destination: embedding_column is required", ErrInvalidConfig)
	}
	return nil
}

func parseDestination(raw json.RawMessage) (Destination, error) {
	impl, err := peekImplementation(StageDestination, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case DestinationImplTable:
		d := NewDestinationTable()
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%w: destination: %v", ErrInvalidConfig, err)
		}
		return d, nil
	case DestinationImplColumn:
		d := NewDestinationColumn("")
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%w: destination: %v", ErrInvalidConfig, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: destination: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
