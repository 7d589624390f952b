package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/infrastructure/chunking"
	"github.com/embedq/embedq/infrastructure/embedder"
	"github.com/embedq/embedq/infrastructure/persistence"
	"github.com/embedq/embedq/internal/database"
	"log/slog"
)

// maxURIDocumentSize caps documents fetched by uri loading.
const maxURIDocumentSize = 10 << 20

// Processor drains one vectorizer's queue: it claims items, runs them
// through loading, parsing, chunking, formatting and embedding, and writes
// the results to the destination atomically with queue settlement.
type Processor struct {
	db        database.Database
	embedders *embedder.Factory
	override  embedder.Embedder
	http      *http.Client
	logger    *slog.Logger
}

// NewProcessor creates a Processor. override, when non-nil, replaces the
// configured embedding backend for every vectorizer.
func NewProcessor(db database.Database, embedders *embedder.Factory, override embedder.Embedder, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		db:        db,
		embedders: embedders,
		override:  override,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// ProcessBatch claims and processes up to batchSize items. Returns how many
// items were claimed; zero means the queue had nothing eligible.
func (p *Processor) ProcessBatch(ctx context.Context, v vectorizer.Vectorizer, q queue.Store, batchSize int) (int, error) {
	reader, err := persistence.NewSourceReader(p.db, v)
	if err != nil {
		return 0, err
	}
	dest, err := persistence.NewDestinationStore(p.db, v)
	if err != nil {
		return 0, err
	}

	emb := p.override
	if emb == nil {
		emb, err = p.embedders.ForConfig(v.Config().Embedding)
		if err != nil {
			return 0, err
		}
	}

	splitter := chunking.ForConfig(v.Config().Chunking)

	return q.ProcessBatch(ctx, batchSize, func(ctx context.Context, items []queue.Item) ([]queue.Result, error) {
		results := make([]queue.Result, 0, len(items))
		for _, item := range items {
			results = append(results, p.processItem(ctx, v, item, reader, dest, splitter, emb))
		}
		return results, nil
	})
}

// processItem runs one item through the pipeline. Failures never abort the
// batch; they come back as a Failed result naming the stage, and the queue
// store handles retry or demotion.
func (p *Processor) processItem(
	ctx context.Context,
	v vectorizer.Vectorizer,
	item queue.Item,
	reader persistence.SourceReader,
	dest persistence.DestinationStore,
	splitter chunking.Splitter,
	emb embedder.Embedder,
) queue.Result {
	key := item.Key()

	row, found, err := reader.Load(ctx, key)
	if err != nil {
		return failed(item, vectorizer.StageLoading, err)
	}
	if !found {
		// Row deleted while queued; clear any stale embeddings and settle.
		if err := dest.Delete(ctx, key); err != nil {
			return failed(item, vectorizer.StageLoading, err)
		}
		return done(item)
	}

	text, err := p.loadText(ctx, v.Config().Loading, row)
	if err != nil {
		return failed(item, vectorizer.StageLoading, err)
	}

	chunks := splitter.Split(text)
	if len(chunks) == 0 {
		// Nothing to embed; an empty document still replaces prior state.
		if err := dest.Replace(ctx, key, nil); err != nil {
			return failed(item, vectorizer.StageChunking, err)
		}
		return done(item)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = renderChunk(v.Config().Formatting, row, chunk)
	}

	vectors, err := emb.Embed(ctx, texts)
	if err != nil {
		return failed(item, vectorizer.StageEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return failed(item, vectorizer.StageEmbedding, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(texts)))
	}

	rows := make([]persistence.EmbeddingRow, len(texts))
	for i := range texts {
		rows[i] = persistence.EmbeddingRow{Seq: i, Chunk: texts[i], Embedding: vectors[i]}
	}
	if err := dest.Replace(ctx, key, rows); err != nil {
		return failed(item, vectorizer.StageDestination, err)
	}

	return done(item)
}

// loadText resolves the document text for a row per the loading config.
func (p *Processor) loadText(ctx context.Context, loading vectorizer.Loading, row persistence.SourceRow) (string, error) {
	if loading == nil {
		return "", fmt.Errorf("%w: no loading configured", vectorizer.ErrInvalidConfig)
	}

	value, ok := row.Column(loading.ColumnName())
	if !ok {
		return "", fmt.Errorf("column %s is null or missing", loading.ColumnName())
	}

	switch loading.Implementation() {
	case vectorizer.LoadingImplColumn:
		return value, nil
	case vectorizer.LoadingImplURI:
		return p.fetchURI(ctx, value)
	default:
		return "", fmt.Errorf("%w: unknown loading implementation %q", vectorizer.ErrInvalidConfig, loading.Implementation())
	}
}

// fetchURI retrieves a document referenced by the loading column. http(s)
// and file schemes are supported.
func (p *Processor) fetchURI(ctx context.Context, uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", uri, err)
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", uri, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxURIDocumentSize))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", uri, err)
		}
		return string(body), nil
	case strings.HasPrefix(uri, "file://"):
		body, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", uri, err)
		}
		return string(body), nil
	default:
		return "", fmt.Errorf("unsupported uri scheme: %s", uri)
	}
}

// templateRefPattern matches $name references in formatting templates.
var templateRefPattern = regexp.MustCompile(`\$[a-zA-Z_][a-zA-Z0-9_]*`)

// renderChunk applies the formatting stage to one chunk.
func renderChunk(formatting vectorizer.Formatting, row persistence.SourceRow, chunk string) string {
	tmpl, ok := formatting.(vectorizer.FormattingTemplate)
	if !ok {
		return chunk
	}

	return templateRefPattern.ReplaceAllStringFunc(tmpl.Template, func(ref string) string {
		if ref == vectorizer.ChunkPlaceholder {
			return chunk
		}
		if value, ok := row.Column(strings.TrimPrefix(ref, "$")); ok {
			return value
		}
		return ""
	})
}

func done(item queue.Item) queue.Result {
	return queue.Result{Item: item, Disposition: queue.Done}
}

func failed(item queue.Item, stage string, err error) queue.Result {
	return queue.Result{Item: item, Disposition: queue.Failed, Stage: stage, Err: err}
}
