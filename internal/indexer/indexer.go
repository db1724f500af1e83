// Package indexer implements the Memory Indexer: it turns a
// finished DailySummary into chunks, embeds them in batches through the
// shared embedding model, and upserts the resulting vectors into the
// vector store. It is the concrete implementation the orchestrator's
// Indexer interface is satisfied by.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lifestream/core/internal/chunk"
	"github.com/lifestream/core/internal/modelclient"
	"github.com/lifestream/core/internal/summary"
	"github.com/lifestream/core/internal/vectorstore"
)

// transcriptWindowSeconds bounds a transcript_block chunk by time; a
// window this long is split further by characterLimit if needed.
const transcriptWindowSeconds = 600 // 10 minutes

// characterLimit bounds a transcript_block chunk by length when a
// window's text would otherwise exceed it.
const characterLimit = 2000

// embedder is the narrow slice of modelclient.Embedder the indexer
// depends on, so tests can substitute a fake.
type embedder interface {
	Invoke(ctx context.Context, texts []string) ([][]float32, error)
}

// Config configures an Indexer.
type Config struct {
	// BatchSize is how many chunk texts are embedded per model call (default 64).
	BatchSize int
	// MaxBatchRetries bounds retries of a batch that fails even after the
	// embedding client's own per-request backoff is exhausted.
	MaxBatchRetries int
}

// DefaultConfig returns the default indexer configuration.
func DefaultConfig() Config {
	return Config{BatchSize: 64, MaxBatchRetries: 2}
}

// Indexer implements orchestrator.Indexer: generate chunks, embed them in
// batches, and upsert into the vector store. Degradable at the caller:
// partial batch failure is retried up to MaxBatchRetries and then logged
// as a warning, never returned as a job-failing error by the orchestrator.
type Indexer struct {
	embedder embedder
	store    vectorstore.Store
	logger   *slog.Logger
	cfg      Config
}

// New creates a new Indexer.
func New(embedder *modelclient.Embedder, store vectorstore.Store, logger *slog.Logger, cfg Config) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.MaxBatchRetries <= 0 {
		cfg.MaxBatchRetries = 2
	}
	return &Indexer{embedder: embedder, store: store, logger: logger, cfg: cfg}
}

// Index generates chunks from ds, embeds them in batches, and upserts the
// resulting vectors. Batches that fail after MaxBatchRetries are logged
// and skipped; Index only returns an error when every batch failed.
func (ix *Indexer) Index(ctx context.Context, ds summary.DailySummary) error {
	chunks := GenerateChunks(ds)
	if len(chunks) == 0 {
		return nil
	}

	log := ix.logger.With(slog.String("video_id", ds.VideoID))

	var (
		indexed  int
		lastErr  error
		batches  = batchChunks(chunks, ix.cfg.BatchSize)
	)

	for i, batch := range batches {
		vectors, err := ix.embedAndBuild(ctx, batch)
		if err != nil {
			for attempt := 1; attempt <= ix.cfg.MaxBatchRetries && err != nil; attempt++ {
				log.Warn("embedding batch failed, retrying",
					slog.Int("batch", i), slog.Int("attempt", attempt), slog.String("error", err.Error()))
				vectors, err = ix.embedAndBuild(ctx, batch)
			}
		}
		if err != nil {
			log.Warn("embedding batch exhausted retries, skipping",
				slog.Int("batch", i), slog.String("error", err.Error()))
			lastErr = err
			continue
		}

		if err := ix.store.Upsert(ctx, vectors); err != nil {
			log.Warn("vector store upsert failed, skipping batch",
				slog.Int("batch", i), slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		indexed += len(vectors)
	}

	if indexed == 0 && lastErr != nil {
		return fmt.Errorf("indexer: all batches failed: %w", lastErr)
	}
	if lastErr != nil {
		log.Warn("indexing completed with partial failures",
			slog.Int("chunks_indexed", indexed), slog.Int("chunks_total", len(chunks)))
	}
	return nil
}

func (ix *Indexer) embedAndBuild(ctx context.Context, batch []chunk.Chunk) ([]vectorstore.Vector, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	embeddings, err := ix.embedder.Invoke(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(embeddings) != len(batch) {
		return nil, fmt.Errorf("embed batch: got %d embeddings for %d texts", len(embeddings), len(batch))
	}

	vectors := make([]vectorstore.Vector, len(batch))
	for i, c := range batch {
		vectors[i] = vectorstore.Vector{
			ChunkID:      c.ID(),
			VideoID:      c.VideoID,
			Date:         c.Date,
			Embedding:    embeddings[i],
			StartSeconds: c.StartSeconds,
			EndSeconds:   c.EndSeconds,
			Speakers:     c.Speakers,
			Source:       string(c.Source),
			Text:         c.Text,
		}
	}
	return vectors, nil
}

func batchChunks(chunks []chunk.Chunk, size int) [][]chunk.Chunk {
	var batches [][]chunk.Chunk
	for i := 0; i < len(chunks); i += size {
		end := i + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}
	return batches
}
