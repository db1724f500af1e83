package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store against Postgres with the pgvector
// extension, using an HNSW index for approximate cosine-similarity search.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore against an already-open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the chunks table and its HNSW index if they do not
// already exist. Safe to call on every process start.
func (s *PostgresStore) EnsureSchema(ctx context.Context, embeddingDim int) error {
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS chunks (
			chunk_id      TEXT PRIMARY KEY,
			video_id      TEXT NOT NULL,
			date          TEXT NOT NULL,
			start_seconds DOUBLE PRECISION NOT NULL,
			end_seconds   DOUBLE PRECISION NOT NULL,
			speakers      TEXT[] NOT NULL DEFAULT '{}',
			source        TEXT NOT NULL,
			text          TEXT NOT NULL,
			embedding     vector(%d) NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_video_date ON chunks(video_id, date);

		CREATE INDEX IF NOT EXISTS idx_chunks_embedding_hnsw ON chunks
		USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64);
	`, embeddingDim)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("vectorstore: ensure schema: %w", err)
	}
	return nil
}

// Upsert indexes or re-indexes a batch of vectors in a single transaction.
func (s *PostgresStore) Upsert(ctx context.Context, vectors []Vector) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, v := range vectors {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (chunk_id, video_id, date, start_seconds, end_seconds, speakers, source, text, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (chunk_id) DO UPDATE SET
				video_id = EXCLUDED.video_id,
				date = EXCLUDED.date,
				start_seconds = EXCLUDED.start_seconds,
				end_seconds = EXCLUDED.end_seconds,
				speakers = EXCLUDED.speakers,
				source = EXCLUDED.source,
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding
		`, v.ChunkID, v.VideoID, v.Date, v.StartSeconds, v.EndSeconds, v.Speakers, v.Source, v.Text, pgvector.NewVector(v.Embedding))
		if err != nil {
			return fmt.Errorf("vectorstore: upsert chunk %s: %w", v.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("vectorstore: commit upsert tx: %w", err)
	}
	return nil
}

// Query returns the topK highest-scoring matches against embedding,
// restricted to vectors passing filter. Score is cosine similarity,
// derived from pgvector's cosine-distance operator (<=>): similarity = 1 - distance.
func (s *PostgresStore) Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]Match, error) {
	query := `
		SELECT chunk_id, video_id, date, start_seconds, end_seconds, speakers, source, text,
		       1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE ($2 = '' OR video_id = $2)
		  AND ($3 = '' OR date >= $3)
		  AND ($4 = '' OR date <= $4)
		  AND (cardinality($5::text[]) = 0 OR speakers && $5::text[])
		ORDER BY embedding <=> $1
		LIMIT $6
	`

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding),
		filter.VideoID, filter.DateGTE, filter.DateLTE, filter.Speakers, topK)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var v Vector
		var score float64
		if err := rows.Scan(&v.ChunkID, &v.VideoID, &v.Date, &v.StartSeconds, &v.EndSeconds,
			&v.Speakers, &v.Source, &v.Text, &score); err != nil {
			return nil, fmt.Errorf("vectorstore: scan row: %w", err)
		}
		matches = append(matches, Match{Vector: v, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: row iteration: %w", err)
	}
	return matches, nil
}

// Delete removes the given chunk IDs from the index, if present.
func (s *PostgresStore) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE chunk_id = ANY($1)`, chunkIDs)
	if err != nil {
		return fmt.Errorf("vectorstore: delete chunks: %w", err)
	}
	return nil
}
