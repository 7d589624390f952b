package vectorizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSource returns a source table with the column shapes the validation
// rules care about.
func testSource() SourceTable {
	return SourceTable{
		Name: "articles",
		Columns: []SourceColumn{
			{Name: "id", Type: "INTEGER", IsPrimaryKey: true},
			{Name: "title", Type: "TEXT"},
			{Name: "body", Type: "TEXT"},
			{Name: "pdf", Type: "BLOB"},
			{Name: "views", Type: "INTEGER"},
		},
	}
}

// minimalConfig returns a valid resolved config built from the mandatory
// stages only.
func minimalConfig() Config {
	return Config{
		Loading:   NewLoadingColumn("body"),
		Embedding: NewEmbeddingOpenAI("text-embedding-3-small", 1536),
	}.Resolve(Defaults{})
}

func TestConfigResolve(t *testing.T) {
	t.Run("fills optional stages", func(t *testing.T) {
		cfg := minimalConfig()

		assert.Equal(t, ParsingImplAuto, cfg.Parsing.Implementation())
		assert.Equal(t, ChunkingImplRecursiveCharacter, cfg.Chunking.Implementation())
		assert.Equal(t, FormattingImplChunkValue, cfg.Formatting.Implementation())
		assert.Equal(t, ProcessingImplDefault, cfg.Processing.Implementation())
		assert.Equal(t, DestinationImplTable, cfg.Destination.Implementation())
	})

	t.Run("sentinels resolve to configured defaults", func(t *testing.T) {
		cfg := Config{
			Loading:   NewLoadingColumn("body"),
			Embedding: NewEmbeddingOpenAI("text-embedding-3-small", 1536),
		}.Resolve(Defaults{
			Indexing:   NewIndexingDiskANN(),
			Scheduling: NewSchedulingInterval(time.Minute),
		})

		assert.Equal(t, IndexingImplDiskANN, cfg.Indexing.Implementation())
		assert.Equal(t, SchedulingImplInterval, cfg.Scheduling.Implementation())
	})

	t.Run("sentinels resolve to none without defaults", func(t *testing.T) {
		cfg := minimalConfig()

		assert.Equal(t, IndexingImplNone, cfg.Indexing.Implementation())
		assert.Equal(t, SchedulingImplNone, cfg.Scheduling.Implementation())
	})

	t.Run("manual scheduling degrades sentinel indexing to none", func(t *testing.T) {
		cfg := Config{
			Loading:    NewLoadingColumn("body"),
			Embedding:  NewEmbeddingOpenAI("text-embedding-3-small", 1536),
			Scheduling: NewSchedulingNone(),
		}.Resolve(Defaults{Indexing: NewIndexingDiskANN()})

		assert.Equal(t, IndexingImplNone, cfg.Indexing.Implementation())
	})

	t.Run("explicit stages survive resolution", func(t *testing.T) {
		cfg := Config{
			Loading:   NewLoadingColumn("body"),
			Embedding: NewEmbeddingOpenAI("text-embedding-3-small", 1536),
			Chunking:  NewChunkingNone(),
			Indexing:  NewIndexingHNSW(),
		}.Resolve(Defaults{})

		assert.Equal(t, ChunkingImplNone, cfg.Chunking.Implementation())
		assert.Equal(t, IndexingImplHNSW, cfg.Indexing.Implementation())
	})
}

func TestConfigValidate(t *testing.T) {
	source := testSource()

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid minimal config",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing loading",
			mutate:  func(cfg *Config) { cfg.Loading = nil },
			wantErr: "loading configuration is required",
		},
		{
			name:    "missing embedding",
			mutate:  func(cfg *Config) { cfg.Embedding = nil },
			wantErr: "embedding configuration is required",
		},
		{
			name:    "loading column missing from source",
			mutate:  func(cfg *Config) { cfg.Loading = NewLoadingColumn("nope") },
			wantErr: `column "nope" does not exist`,
		},
		{
			name:    "loading column wrong type",
			mutate:  func(cfg *Config) { cfg.Loading = NewLoadingColumn("views") },
			wantErr: "need a text or binary column",
		},
		{
			name:    "uri loading needs text column",
			mutate:  func(cfg *Config) { cfg.Loading = NewLoadingURI("pdf") },
			wantErr: "need a text column",
		},
		{
			name: "parsing none rejects binary loading",
			mutate: func(cfg *Config) {
				cfg.Loading = NewLoadingColumn("pdf")
				cfg.Parsing = NewParsingNone()
			},
			wantErr: "binary column",
		},
		{
			name: "chunk overlap must be below size",
			mutate: func(cfg *Config) {
				c := NewChunkingRecursive()
				c.ChunkSize = 100
				c.ChunkOverlap = 100
				cfg.Chunking = c
			},
			wantErr: "chunk_overlap",
		},
		{
			name: "column destination requires chunking none",
			mutate: func(cfg *Config) {
				cfg.Destination = NewDestinationColumn("body_embedding")
			},
			wantErr: `requires chunking "none"`,
		},
		{
			name: "manual scheduling rejects explicit indexing",
			mutate: func(cfg *Config) {
				cfg.Scheduling = NewSchedulingNone()
				cfg.Indexing = NewIndexingDiskANN()
			},
			wantErr: "periodic driver",
		},
		{
			name:    "unresolved indexing sentinel",
			mutate:  func(cfg *Config) { cfg.Indexing = NewIndexingDefault() },
			wantErr: "was not resolved",
		},
		{
			name: "embedding dimensions must be positive",
			mutate: func(cfg *Config) {
				cfg.Embedding = NewEmbeddingOpenAI("text-embedding-3-small", 0)
			},
			wantErr: "dimensions",
		},
		{
			name: "interval below one second",
			mutate: func(cfg *Config) {
				s := NewSchedulingInterval(time.Minute)
				s.IntervalSeconds = 0
				cfg.Scheduling = s
			},
			wantErr: "interval_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalConfig()
			tt.mutate(&cfg)

			err := cfg.Validate(source)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := Config{
		Loading:     NewLoadingURI("title"),
		Parsing:     NewParsingNone(),
		Chunking:    NewChunkingCharacter(),
		Formatting:  NewFormattingTemplate("title: $title\n$chunk"),
		Embedding:   NewEmbeddingOllama("nomic-embed-text", 768),
		Indexing:    NewIndexingHNSW(),
		Scheduling:  NewSchedulingInterval(10 * time.Minute),
		Destination: NewDestinationTable(),
	}.Resolve(Defaults{})

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var parsed Config
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, cfg, parsed)

	// Parse followed by serialize is the identity on produced documents.
	again, err := json.Marshal(parsed)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestConfigUnmarshalRejectsUnknownImplementation(t *testing.T) {
	doc := `{
		"version": "1.0",
		"loading": {"config_type": "loading", "implementation": "carrier_pigeon"}
	}`

	var cfg Config
	err := json.Unmarshal([]byte(doc), &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigUnmarshalMandatoryStagesOnly(t *testing.T) {
	doc := `{
		"version": "1.0",
		"loading": {"config_type": "loading", "implementation": "column", "column_name": "body"},
		"parsing": null,
		"embedding": {"config_type": "embedding", "implementation": "openai", "model": "text-embedding-3-small", "dimensions": 1536}
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(doc), &cfg))

	assert.Nil(t, cfg.Parsing)
	assert.Nil(t, cfg.Chunking)
	assert.Nil(t, cfg.Formatting)
	assert.Nil(t, cfg.Indexing)
	assert.Nil(t, cfg.Scheduling)
	assert.Nil(t, cfg.Processing)
	assert.Nil(t, cfg.Destination)

	resolved := cfg.Resolve(Defaults{})
	require.NoError(t, resolved.Validate(testSource()))
	assert.Equal(t, ChunkingImplRecursiveCharacter, resolved.Chunking.Implementation())
}

func TestConfigUnmarshalImpliesStageTag(t *testing.T) {
	t.Run("omitted config_type comes from the document key", func(t *testing.T) {
		doc := `{
			"loading": {"implementation": "column", "column_name": "body"},
			"embedding": {"implementation": "openai", "model": "text-embedding-3-small", "dimensions": 1536}
		}`

		var cfg Config
		require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
		assert.Equal(t, StageLoading, cfg.Loading.ConfigType())
		assert.Equal(t, StageEmbedding, cfg.Embedding.ConfigType())
		require.NoError(t, cfg.Resolve(Defaults{}).Validate(testSource()))
	})

	t.Run("mismatched config_type is rejected", func(t *testing.T) {
		doc := `{
			"loading": {"config_type": "chunking", "implementation": "column", "column_name": "body"}
		}`

		var cfg Config
		err := json.Unmarshal([]byte(doc), &cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("missing implementation is rejected", func(t *testing.T) {
		doc := `{"loading": {"column_name": "body"}}`

		var cfg Config
		err := json.Unmarshal([]byte(doc), &cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "implementation is required")
	})
}

func TestConfigUnmarshalFillsOmittedFields(t *testing.T) {
	t.Run("loading keeps default retries", func(t *testing.T) {
		doc := `{"loading": {"implementation": "column", "column_name": "body"}}`

		var cfg Config
		require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
		assert.Equal(t, DefaultLoadingRetries, cfg.Loading.Retries())
	})

	t.Run("sparse diskann keeps build gates", func(t *testing.T) {
		doc := `{"indexing": {"implementation": "diskann"}}`

		var cfg Config
		require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
		idx, ok := cfg.Indexing.(IndexingDiskANN)
		require.True(t, ok)
		assert.Equal(t, int64(DefaultIndexMinRows), idx.MinRows)
		assert.True(t, idx.CreateWhenQueueEmpty)
	})

	t.Run("sparse processing keeps batch bounds", func(t *testing.T) {
		doc := `{"processing": {"implementation": "default"}}`

		var cfg Config
		require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
		assert.Equal(t, DefaultProcessingBatchSize, cfg.Processing.QueueBatchSize())
		assert.Equal(t, DefaultProcessingConcurrency, cfg.Processing.EmbedConcurrency())
	})

	t.Run("sparse recursive chunking keeps splitter defaults", func(t *testing.T) {
		doc := `{"chunking": {"implementation": "recursive_character_text_splitter"}}`

		var cfg Config
		require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
		chk, ok := cfg.Chunking.(ChunkingRecursive)
		require.True(t, ok)
		assert.Equal(t, DefaultChunkSize, chk.ChunkSize)
		assert.Equal(t, DefaultChunkOverlap, chk.ChunkOverlap)
		assert.Equal(t, DefaultChunkingSeparators(), chk.Separators)
	})

	t.Run("sparse openai embedding keeps key name", func(t *testing.T) {
		doc := `{"embedding": {"implementation": "openai", "model": "text-embedding-3-small", "dimensions": 1536}}`

		var cfg Config
		require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
		emb, ok := cfg.Embedding.(EmbeddingOpenAI)
		require.True(t, ok)
		assert.Equal(t, DefaultOpenAIKeyName, emb.APIKeyName)
	})

	t.Run("explicit values override defaults", func(t *testing.T) {
		doc := `{"indexing": {"implementation": "hnsw", "min_rows": 0, "create_when_queue_empty": false}}`

		var cfg Config
		require.NoError(t, json.Unmarshal([]byte(doc), &cfg))
		idx, ok := cfg.Indexing.(IndexingHNSW)
		require.True(t, ok)
		assert.Equal(t, int64(0), idx.MinRows)
		assert.False(t, idx.CreateWhenQueueEmpty)
	})
}

func TestConfigEmbeddingColumn(t *testing.T) {
	table := minimalConfig()
	assert.Equal(t, "embedding", table.EmbeddingColumn())

	column := Config{
		Loading:     NewLoadingColumn("body"),
		Embedding:   NewEmbeddingOpenAI("text-embedding-3-small", 1536),
		Chunking:    NewChunkingNone(),
		Destination: NewDestinationColumn("body_embedding"),
	}.Resolve(Defaults{})
	assert.Equal(t, "body_embedding", column.EmbeddingColumn())
}

func TestConfigScheduleInterval(t *testing.T) {
	cfg := minimalConfig()
	_, ok := cfg.ScheduleInterval()
	assert.False(t, ok, "manual scheduling has no interval")

	cfg.Scheduling = NewSchedulingInterval(90 * time.Second)
	every, ok := cfg.ScheduleInterval()
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, every)
}
