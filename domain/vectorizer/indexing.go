package vectorizer

import (
	"encoding/json"
	"fmt"
)

// Indexing stage implementations.
const (
	IndexingImplNone    = "none"
	IndexingImplDefault = "default"
	IndexingImplDiskANN = "diskann"
	IndexingImplHNSW    = "hnsw"
)

// DiskANN storage layouts.
const (
	StorageLayoutMemoryOptimized = "memory_optimized"
	StorageLayoutPlain           = "plain"
)

// HNSW operator classes.
const (
	OpClassCosine = "vector_cosine_ops"
	OpClassL1     = "vector_l1_ops"
	OpClassIP     = "vector_ip_ops"
)

// DefaultIndexMinRows is the destination row threshold below which no index
// is built unless the config overrides it.
const DefaultIndexMinRows = 100000

// Indexing configures whether and how an ANN index is built over the
// destination embedding column. The "default" sentinel is resolved once at
// creation time and never persisted.
type Indexing interface {
	ConfigType() string
	Implementation() string
	validate() error
}

// IndexingNone disables index maintenance.
type IndexingNone struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewIndexingNone creates the no-index config.
func NewIndexingNone() IndexingNone {
	return IndexingNone{Type: StageIndexing, Impl: IndexingImplNone}
}

// ConfigType returns the stage tag.
func (i IndexingNone) ConfigType() string { return i.Type }

// Implementation returns the implementation name.
func (i IndexingNone) Implementation() string { return i.Impl }

func (i IndexingNone) validate() error {
	return checkStageTag(StageIndexing, i.Type)
}

// IndexingDefault is the sentinel resolved against the client's configured
// default at creation time. Resolution replaces it before persistence; a
// persisted config never carries it.
type IndexingDefault struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewIndexingDefault creates the sentinel indexing config.
func NewIndexingDefault() IndexingDefault {
	return IndexingDefault{Type: StageIndexing, Impl: IndexingImplDefault}
}

// ConfigType returns the stage tag.
func (i IndexingDefault) ConfigType() string { return i.Type }

// Implementation returns the implementation name.
func (i IndexingDefault) Implementation() string { return i.Impl }

func (i IndexingDefault) validate() error {
	return checkStageTag(StageIndexing, i.Type)
}

// IndexingDiskANN builds a graph-based DiskANN index. Tuning fields are
// pointers: only fields the user actually set are passed to the index DDL.
type IndexingDiskANN struct {
	Type                 string   `json:"config_type"`
	Impl                 string   `json:"implementation"`
	MinRows              int64    `json:"min_rows"`
	CreateWhenQueueEmpty bool     `json:"create_when_queue_empty"`
	StorageLayout        *string  `json:"storage_layout,omitempty"`
	NumNeighbors         *int     `json:"num_neighbors,omitempty"`
	SearchListSize       *int     `json:"search_list_size,omitempty"`
	MaxAlpha             *float64 `json:"max_alpha,omitempty"`
	NumDimensions        *int     `json:"num_dimensions,omitempty"`
	NumBitsPerDimension  *int     `json:"num_bits_per_dimension,omitempty"`
}

// NewIndexingDiskANN creates a DiskANN indexing config with defaults.
func NewIndexingDiskANN() IndexingDiskANN {
	return IndexingDiskANN{
		Type:                 StageIndexing,
		Impl:                 IndexingImplDiskANN,
		MinRows:              DefaultIndexMinRows,
		CreateWhenQueueEmpty: true,
	}
}

// ConfigType returns the stage tag.
func (i IndexingDiskANN) ConfigType() string { return i.Type }

// Implementation returns the implementation name.
func (i IndexingDiskANN) Implementation() string { return i.Impl }

func (i IndexingDiskANN) validate() error {
	if err := checkStageTag(StageIndexing, i.Type); err != nil {
		return err
	}
	if i.MinRows < 0 {
		return fmt.Errorf("%w: indexing: min_rows must be >= 0", ErrInvalidConfig)
	}
	if i.StorageLayout != nil {
		switch *i.StorageLayout {
		case StorageLayoutMemoryOptimized, StorageLayoutPlain:
		default:
			return fmt.Errorf("%w: indexing: storage_layout must be %q or %q", ErrInvalidConfig, StorageLayoutMemoryOptimized, StorageLayoutPlain)
		}
	}
	if i.NumNeighbors != nil && *i.NumNeighbors < 1 {
		return fmt.Errorf("%w: indexing: num_neighbors must be >= 1", ErrInvalidConfig)
	}
	if i.SearchListSize != nil && *i.SearchListSize < 1 {
		return fmt.Errorf("%w: indexing: search_list_size must be >= 1", ErrInvalidConfig)
	}
	if i.MaxAlpha != nil && *i.MaxAlpha < 1.0 {
		return fmt.Errorf("%w: indexing: max_alpha must be >= 1.0", ErrInvalidConfig)
	}
	if i.NumDimensions != nil && *i.NumDimensions < 1 {
		return fmt.Errorf("%w: indexing: num_dimensions must be >= 1", ErrInvalidConfig)
	}
	if i.NumBitsPerDimension != nil && *i.NumBitsPerDimension < 1 {
		return fmt.Errorf("%w: indexing: num_bits_per_dimension must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// IndexingHNSW builds a hierarchical navigable small world index.
type IndexingHNSW struct {
	Type                 string  `json:"config_type"`
	Impl                 string  `json:"implementation"`
	MinRows              int64   `json:"min_rows"`
	CreateWhenQueueEmpty bool    `json:"create_when_queue_empty"`
	OpClass              *string `json:"opclass,omitempty"`
	M                    *int    `json:"m,omitempty"`
	EfConstruction       *int    `json:"ef_construction,omitempty"`
}

// NewIndexingHNSW creates an HNSW indexing config with defaults.
func NewIndexingHNSW() IndexingHNSW {
	return IndexingHNSW{
		Type:                 StageIndexing,
		Impl:                 IndexingImplHNSW,
		MinRows:              DefaultIndexMinRows,
		CreateWhenQueueEmpty: true,
	}
}

// ConfigType returns the stage tag.
func (i IndexingHNSW) ConfigType() string { return i.Type }

// Implementation returns the implementation name.
func (i IndexingHNSW) Implementation() string { return i.Impl }

func (i IndexingHNSW) validate() error {
	if err := checkStageTag(StageIndexing, i.Type); err != nil {
		return err
	}
	if i.MinRows < 0 {
		return fmt.Errorf("%w: indexing: min_rows must be >= 0", ErrInvalidConfig)
	}
	if i.OpClass != nil {
		switch *i.OpClass {
		case OpClassCosine, OpClassL1, OpClassIP:
		default:
			return fmt.Errorf("%w: indexing: opclass must be one of %q, %q, %q", ErrInvalidConfig, OpClassCosine, OpClassL1, OpClassIP)
		}
	}
	if i.M != nil && *i.M < 2 {
		return fmt.Errorf("%w: indexing: m must be >= 2", ErrInvalidConfig)
	}
	if i.EfConstruction != nil && *i.EfConstruction < 4 {
		return fmt.Errorf("%w: indexing: ef_construction must be >= 4", ErrInvalidConfig)
	}
	return nil
}

func parseIndexing(raw json.RawMessage) (Indexing, error) {
	impl, err := peekImplementation(StageIndexing, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case IndexingImplNone:
		i := NewIndexingNone()
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("%w: indexing: %v", ErrInvalidConfig, err)
		}
		return i, nil
	case IndexingImplDefault:
		i := NewIndexingDefault()
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("%w: indexing: %v", ErrInvalidConfig, err)
		}
		return i, nil
	case IndexingImplDiskANN:
		i := NewIndexingDiskANN()
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("%w: indexing: %v", ErrInvalidConfig, err)
		}
		return i, nil
	case IndexingImplHNSW:
		i := NewIndexingHNSW()
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("%w: indexing: %v", ErrInvalidConfig, err)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("%w: indexing: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
