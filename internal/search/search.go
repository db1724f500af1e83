// Package search embeds a query, translates filters, retrieves top-k
// chunks from the vector store, and optionally synthesizes a
// natural-language answer from the retrieved passages.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lifestream/core/internal/metrics"
	"github.com/lifestream/core/internal/modelclient"
	"github.com/lifestream/core/internal/vectorstore"
)

// ErrServiceUnavailable wraps embedding and vector-store failures, which
// surface to the API gateway as a 503.
var ErrServiceUnavailable = errors.New("search: service unavailable")

// ErrEmptyQuery is returned when query text is blank.
var ErrEmptyQuery = errors.New("search: query text must not be empty")

// embedder is the narrow slice of modelclient.Embedder this package needs.
type embedder interface {
	Invoke(ctx context.Context, texts []string) ([][]float32, error)
}

// synthesizer is the narrow slice of modelclient.Synthesizer this package needs.
type synthesizer interface {
	Invoke(ctx context.Context, query string, contextPassages []string) (string, error)
}

// Filters narrows a query to a subset of indexed chunks by video,
// date, speaker, and source type.
type Filters struct {
	VideoID     string
	Date        string
	SpeakerIDs  []string
	SourceTypes []string
}

// Query is one call to Service.Search.
type Query struct {
	Text       string
	TopK       int // default 10, clamped to [1, 50]
	MinScore   float64
	WithAnswer bool
	Filters    Filters
}

// Result is one retrieved chunk, ranked by descending score.
type Result struct {
	ChunkID      string
	VideoID      string
	Date         string
	StartSeconds float64
	EndSeconds   float64
	Speakers     []string
	Source       string
	Text         string
	Score        float64
}

// Response is returned from Search. Answer is empty when no answer was
// requested, results were empty, or synthesis degraded on error.
type Response struct {
	Results []Result
	Answer  string
}

const (
	defaultTopK = 10
	maxTopK     = 50
)

// Service implements query(text, top_k, min_score, filters).
type Service struct {
	embedder    embedder
	store       vectorstore.Store
	synthesizer synthesizer
	cache       *embeddingCache
	logger      *slog.Logger
	metrics     *metrics.Registry
}

// WithMetrics attaches a metrics registry the service records query
// counts and latency against. Optional.
func (s *Service) WithMetrics(reg *metrics.Registry) *Service {
	s.metrics = reg
	return s
}

// New creates a new search Service. synth may be nil, in which case
// WithAnswer requests degrade to results-only.
func New(embedder *modelclient.Embedder, store vectorstore.Store, synth *modelclient.Synthesizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{embedder: embedder, store: store, logger: logger, cache: newEmbeddingCache(256)}
	if synth != nil {
		s.synthesizer = synth
	}
	return s
}

// Search embeds the query, retrieves filtered top-k matches, drops
// anything below MinScore, and optionally synthesizes an answer.
func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	if q.Text == "" {
		return Response{}, ErrEmptyQuery
	}
	start := time.Now()
	topK := q.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	embedding, err := s.embed(ctx, q.Text)
	if err != nil {
		return Response{}, fmt.Errorf("%w: embed query: %v", ErrServiceUnavailable, err)
	}

	filter := vectorstore.Filter{
		VideoID:  q.Filters.VideoID,
		DateGTE:  q.Filters.Date,
		DateLTE:  q.Filters.Date,
		Speakers: q.Filters.SpeakerIDs,
	}

	matches, err := s.store.Query(ctx, embedding, topK, filter)
	if err != nil {
		return Response{}, fmt.Errorf("%w: vector store query: %v", ErrServiceUnavailable, err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < q.MinScore {
			continue
		}
		results = append(results, Result{
			ChunkID:      m.Vector.ChunkID,
			VideoID:      m.Vector.VideoID,
			Date:         m.Vector.Date,
			StartSeconds: m.Vector.StartSeconds,
			EndSeconds:   m.Vector.EndSeconds,
			Speakers:     m.Vector.Speakers,
			Source:       m.Vector.Source,
			Text:         m.Vector.Text,
			Score:        m.Score,
		})
	}
	if len(q.Filters.SourceTypes) > 0 {
		results = filterBySource(results, q.Filters.SourceTypes)
	}

	resp := Response{Results: results}
	if q.WithAnswer && len(results) > 0 && s.synthesizer != nil {
		passages := make([]string, len(results))
		for i, r := range results {
			passages[i] = r.Text
		}
		answer, err := s.synthesizer.Invoke(ctx, q.Text, passages)
		if err != nil {
			s.logger.Warn("answer synthesis degraded, returning results only", slog.String("error", err.Error()))
		} else {
			resp.Answer = answer
		}
	}
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(strconv.FormatBool(resp.Answer != "")).Inc()
		s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	}
	return resp, nil
}

func filterBySource(results []Result, sourceTypes []string) []Result {
	allowed := make(map[string]bool, len(sourceTypes))
	for _, st := range sourceTypes {
		allowed[st] = true
	}
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if allowed[r.Source] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// embed returns the cached embedding for text if present, otherwise
// invokes the embedding model and caches the result (see DESIGN.md).
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.cache.get(text); ok {
		return v, nil
	}
	embeddings, err := s.embedder.Invoke(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding model returned no vectors")
	}
	s.cache.put(text, embeddings[0])
	return embeddings[0], nil
}
