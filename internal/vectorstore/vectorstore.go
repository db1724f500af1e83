// Package vectorstore provides the VectorStore port over the embedding
// index that backs the search service.
package vectorstore

import "context"

// Vector holds one chunk's embedding plus the metadata needed to answer a
// search query and render a result without a second round-trip.
type Vector struct {
	ChunkID   string
	VideoID   string
	Date      string
	Embedding []float32

	StartSeconds float64
	EndSeconds   float64
	Speakers     []string
	Source       string
	Text         string
}

// Filter narrows a Query to a subset of indexed chunks.
type Filter struct {
	VideoID  string   // empty means no constraint
	DateGTE  string   // inclusive lower bound, "" means no constraint
	DateLTE  string   // inclusive upper bound, "" means no constraint
	Speakers []string // empty means no constraint; a vector matches if any of its Speakers is in this list
}

// Match is one retrieval result, ranked by descending score.
type Match struct {
	Vector Vector
	Score  float64 // cosine similarity, in [-1, 1]
}

// Store is the VectorStore port. The indexer writes to it; the search
// service reads from it.
type Store interface {
	// Upsert indexes or re-indexes a batch of vectors, keyed by ChunkID.
	Upsert(ctx context.Context, vectors []Vector) error

	// Query returns the topK highest-scoring matches against embedding,
	// restricted to vectors passing filter.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]Match, error)

	// Delete removes the given chunk IDs from the index, if present.
	Delete(ctx context.Context, chunkIDs []string) error
}
