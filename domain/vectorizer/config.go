package vectorizer

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConfigVersion is written into every serialized configuration document.
const ConfigVersion = "1.0"

// Config is the full per-stage pipeline configuration of one vectorizer.
// Loading and Embedding are mandatory; nil optional stages are filled with
// their defaults by Resolve.
type Config struct {
	Loading     Loading
	Parsing     Parsing
	Chunking    Chunking
	Formatting  Formatting
	Embedding   Embedding
	Indexing    Indexing
	Scheduling  Scheduling
	Processing  Processing
	Destination Destination
}

// Defaults carries the process-level defaults the "default" sentinels
// resolve against. They are passed down explicitly from the client at
// creation time; an unset field resolves to the safest no-op
// implementation.
type Defaults struct {
	Indexing   Indexing
	Scheduling Scheduling
}

// Resolve fills unset optional stages and replaces the indexing/scheduling
// "default" sentinels using the given defaults. Resolution happens exactly
// once, at creation time; the persisted config carries only concrete
// implementations.
func (c Config) Resolve(defaults Defaults) Config {
	if c.Parsing == nil {
		c.Parsing = NewParsingAuto()
	}
	if c.Chunking == nil {
		c.Chunking = NewChunkingRecursive()
	}
	if c.Formatting == nil {
		c.Formatting = NewFormattingChunkValue()
	}
	if c.Indexing == nil {
		c.Indexing = NewIndexingDefault()
	}
	if c.Scheduling == nil {
		c.Scheduling = NewSchedulingDefault()
	}
	if c.Processing == nil {
		c.Processing = NewProcessingDefault()
	}
	if c.Destination == nil {
		c.Destination = NewDestinationTable()
	}

	if _, ok := c.Scheduling.(SchedulingDefault); ok {
		if defaults.Scheduling != nil {
			c.Scheduling = defaults.Scheduling
		} else {
			c.Scheduling = NewSchedulingNone()
		}
	}
	if _, ok := c.Indexing.(IndexingDefault); ok {
		if defaults.Indexing != nil {
			c.Indexing = defaults.Indexing
		} else {
			c.Indexing = NewIndexingNone()
		}
		// Index upkeep requires a periodic driver. A sentinel that resolved
		// to a real implementation degrades to none when scheduling is
		// none; an explicitly configured indexing does not, and fails
		// cross-stage validation instead.
		if _, none := c.Scheduling.(SchedulingNone); none {
			c.Indexing = NewIndexingNone()
		}
	}

	return c
}

// Validate checks every stage document, then the cross-stage constraints.
// It is called after Resolve; sentinels must already be gone.
func (c Config) Validate(source SourceTable) error {
	if c.Loading == nil {
		return fmt.Errorf("%w: loading configuration is required", ErrInvalidConfig)
	}
	if c.Embedding == nil {
		return fmt.Errorf("%w: embedding configuration is required", ErrInvalidConfig)
	}

	if err := c.Loading.validate(source); err != nil {
		return err
	}
	if err := c.Parsing.validate(source, c.Loading); err != nil {
		return err
	}
	if err := c.Chunking.validate(); err != nil {
		return err
	}
	if err := c.Formatting.validate(source); err != nil {
		return err
	}
	if err := c.Embedding.validate(); err != nil {
		return err
	}
	if err := c.Indexing.validate(); err != nil {
		return err
	}
	if err := c.Scheduling.validate(); err != nil {
		return err
	}
	if err := c.Processing.validate(); err != nil {
		return err
	}
	if err := c.Destination.validate(); err != nil {
		return err
	}

	return c.validateCrossStage()
}

// validateCrossStage checks constraints spanning multiple stages, after all
// per-stage validation has passed.
func (c Config) validateCrossStage() error {
	if _, sentinel := c.Indexing.(IndexingDefault); sentinel {
		return fmt.Errorf("%w: indexing sentinel %q was not resolved", ErrInvalidConfig, IndexingImplDefault)
	}
	if _, sentinel := c.Scheduling.(SchedulingDefault); sentinel {
		return fmt.Errorf("%w: scheduling sentinel %q was not resolved", ErrInvalidConfig, SchedulingImplDefault)
	}

	if _, ok := c.Destination.(DestinationColumn); ok {
		if _, none := c.Chunking.(ChunkingNone); !none {
			return fmt.Errorf("%w: a column destination holds at most one embedding per row and requires chunking %q", ErrInvalidConfig, ChunkingImplNone)
		}
	}

	if _, none := c.Scheduling.(SchedulingNone); none {
		if _, alsoNone := c.Indexing.(IndexingNone); !alsoNone {
			return fmt.Errorf("%w: indexing requires a periodic driver; scheduling %q forces indexing %q", ErrInvalidConfig, SchedulingImplNone, IndexingImplNone)
		}
	}

	return nil
}

// configDoc is the serialized form. Field order here fixes the byte layout
// of the persisted document, so parse followed by serialize is the
// identity on anything this package produced.
type configDoc struct {
	Version     string          `json:"version"`
	Loading     json.RawMessage `json:"loading"`
	Parsing     json.RawMessage `json:"parsing"`
	Chunking    json.RawMessage `json:"chunking"`
	Formatting  json.RawMessage `json:"formatting"`
	Embedding   json.RawMessage `json:"embedding"`
	Indexing    json.RawMessage `json:"indexing"`
	Scheduling  json.RawMessage `json:"scheduling"`
	Processing  json.RawMessage `json:"processing"`
	Destination json.RawMessage `json:"destination"`
}

// MarshalJSON serializes the config as a versioned document of tagged stage
// objects.
func (c Config) MarshalJSON() ([]byte, error) {
	doc := configDoc{Version: ConfigVersion}

	stages := []struct {
		name  string
		value any
		out   *json.RawMessage
	}{
		{StageLoading, c.Loading, &doc.Loading},
		{StageParsing, c.Parsing, &doc.Parsing},
		{StageChunking, c.Chunking, &doc.Chunking},
		{StageFormatting, c.Formatting, &doc.Formatting},
		{StageEmbedding, c.Embedding, &doc.Embedding},
		{StageIndexing, c.Indexing, &doc.Indexing},
		{StageScheduling, c.Scheduling, &doc.Scheduling},
		{StageProcessing, c.Processing, &doc.Processing},
		{StageDestination, c.Destination, &doc.Destination},
	}
	for _, s := range stages {
		if s.value == nil {
			return nil, fmt.Errorf("marshal config: %s stage is nil", s.name)
		}
		raw, err := json.Marshal(s.value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s config: %w", s.name, err)
		}
		*s.out = raw
	}

	return json.Marshal(doc)
}

// UnmarshalJSON parses a serialized configuration document back into the
// stage sum types. Absent or null stage documents parse to nil stages;
// Resolve fills them with their defaults, and Validate rejects a config
// still missing loading or embedding.
func (c *Config) UnmarshalJSON(data []byte) error {
	var doc configDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	*c = Config{}
	var err error
	if stagePresent(doc.Loading) {
		if c.Loading, err = parseLoading(doc.Loading); err != nil {
			return err
		}
	}
	if stagePresent(doc.Parsing) {
		if c.Parsing, err = parseParsing(doc.Parsing); err != nil {
			return err
		}
	}
	if stagePresent(doc.Chunking) {
		if c.Chunking, err = parseChunking(doc.Chunking); err != nil {
			return err
		}
	}
	if stagePresent(doc.Formatting) {
		if c.Formatting, err = parseFormatting(doc.Formatting); err != nil {
			return err
		}
	}
	if stagePresent(doc.Embedding) {
		if c.Embedding, err = parseEmbedding(doc.Embedding); err != nil {
			return err
		}
	}
	if stagePresent(doc.Indexing) {
		if c.Indexing, err = parseIndexing(doc.Indexing); err != nil {
			return err
		}
	}
	if stagePresent(doc.Scheduling) {
		if c.Scheduling, err = parseScheduling(doc.Scheduling); err != nil {
			return err
		}
	}
	if stagePresent(doc.Processing) {
		if c.Processing, err = parseProcessing(doc.Processing); err != nil {
			return err
		}
	}
	if stagePresent(doc.Destination) {
		if c.Destination, err = parseDestination(doc.Destination); err != nil {
			return err
		}
	}
	return nil
}

// stagePresent reports whether a stage document was supplied at all.
func stagePresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// EmbeddingColumn returns the destination embedding column name: the
// configured column in column mode, "embedding" in table mode.
func (c Config) EmbeddingColumn() string {
	if d, ok := c.Destination.(DestinationColumn); ok {
		return d.EmbeddingColumn
	}
	return "embedding"
}

// TableDestination returns the table destination config and true when the
// destination is a side table.
func (c Config) TableDestination() (DestinationTable, bool) {
	d, ok := c.Destination.(DestinationTable)
	return d, ok
}

// ColumnDestination returns the column destination config and true when the
// destination is an in-place column.
func (c Config) ColumnDestination() (DestinationColumn, bool) {
	d, ok := c.Destination.(DestinationColumn)
	return d, ok
}

// ScheduleInterval returns the periodic driver interval and true when a
// periodic driver is configured.
func (c Config) ScheduleInterval() (time.Duration, bool) {
	if s, ok := c.Scheduling.(SchedulingInterval); ok {
		return s.Interval(), true
	}
	return 0, false
}
