package vectorizer

import (
	"encoding/json"
	"fmt"
)

// Chunking stage implementations.
const (
	ChunkingImplNone               = "none"
	ChunkingImplCharacter          = "character_text_splitter"
	ChunkingImplRecursiveCharacter = "recursive_character_text_splitter"
)

// Default splitter parameters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 400
)

// DefaultChunkingSeparators is the separator cascade tried by the recursive
// splitter, most structural first. The empty string means "split anywhere".
func DefaultChunkingSeparators() []string {
	return []string{"\n\n", "\n", ".", "?", "!", " ", ""}
}

// Chunking configures how parsed text is split into embedding-sized pieces.
type Chunking interface {
	ConfigType() string
	Implementation() string
	validate() error
}

// ChunkingNone produces exactly one chunk per row: the whole text. It is the
// only chunking compatible with a column destination.
type ChunkingNone struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewChunkingNone creates the single-chunk config.
func NewChunkingNone() ChunkingNone {
	return ChunkingNone{Type: StageChunking, Impl: ChunkingImplNone}
}

// ConfigType returns the stage tag.
func (c ChunkingNone) ConfigType() string { return c.Type }

// Implementation returns the implementation name.
func (c ChunkingNone) Implementation() string { return c.Impl }

func (c ChunkingNone) validate() error {
	return checkStageTag(StageChunking, c.Type)
}

// ChunkingCharacter splits on a single separator, then packs the pieces into
// chunks of at most ChunkSize runes with ChunkOverlap runes of overlap.
type ChunkingCharacter struct {
	Type         string `json:"config_type"`
	Impl         string `json:"implementation"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Separator    string `json:"separator"`
}

// NewChunkingCharacter creates a character splitter config with default
// size and overlap.
func NewChunkingCharacter() ChunkingCharacter {
	return ChunkingCharacter{
		Type:         StageChunking,
		Impl:         ChunkingImplCharacter,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separator:    "\n\n",
	}
}

// ConfigType returns the stage tag.
func (c ChunkingCharacter) ConfigType() string { return c.Type }

// Implementation returns the implementation name.
func (c ChunkingCharacter) Implementation() string { return c.Impl }

func (c ChunkingCharacter) validate() error {
	if err := checkStageTag(StageChunking, c.Type); err != nil {
		return err
	}
	return validateSplitterBounds(c.ChunkSize, c.ChunkOverlap)
}

// ChunkingRecursive tries a cascade of separators, recursing into oversized
// pieces with the next separator down until every chunk fits.
type ChunkingRecursive struct {
	Type         string   `json:"config_type"`
	Impl         string   `json:"implementation"`
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
	Separators   []string `json:"separators"`
}

// NewChunkingRecursive creates a recursive splitter config with default
// size, overlap, and separator cascade.
func NewChunkingRecursive() ChunkingRecursive {
	return ChunkingRecursive{
		Type:         StageChunking,
		Impl:         ChunkingImplRecursiveCharacter,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultChunkingSeparators(),
	}
}

// ConfigType returns the stage tag.
func (c ChunkingRecursive) ConfigType() string { return c.Type }

// Implementation returns the implementation name.
func (c ChunkingRecursive) Implementation() string { return c.Impl }

func (c ChunkingRecursive) validate() error {
	if err := checkStageTag(StageChunking, c.Type); err != nil {
		return err
	}
	if len(c.Separators) == 0 {
		return fmt.Errorf("%w: chunking: separators must not be empty", ErrInvalidConfig)
	}
	return validateSplitterBounds(c.ChunkSize, c.ChunkOverlap)
}

func validateSplitterBounds(size, overlap int) error {
	if size < 1 {
		return fmt.Errorf("%w: chunking: chunk_size must be >= 1", ErrInvalidConfig)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunking: chunk_overlap must be >= 0", ErrInvalidConfig)
	}
	if overlap >= size {
		return fmt.Errorf("%w: chunking: chunk_overlap (%d) must be smaller than chunk_size (%d)", ErrInvalidConfig, overlap, size)
	}
	return nil
}

func parseChunking(raw json.RawMessage) (Chunking, error) {
	impl, err := peekImplementation(StageChunking, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case ChunkingImplNone:
		c := NewChunkingNone()
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: chunking: %v", ErrInvalidConfig, err)
		}
		return c, nil
	case ChunkingImplCharacter:
		c := NewChunkingCharacter()
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: chunking: %v", ErrInvalidConfig, err)
		}
		return c, nil
	case ChunkingImplRecursiveCharacter:
		c := NewChunkingRecursive()
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: chunking: %v", ErrInvalidConfig, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: chunking: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
