package vectorstore

import (
	"context"
	"testing"
)

func TestMemoryStore_UpsertAndQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Upsert(ctx, []Vector{
		{ChunkID: "c1", VideoID: "v1", Date: "2026-07-01", Embedding: []float32{1, 0, 0}},
		{ChunkID: "c2", VideoID: "v1", Date: "2026-07-01", Embedding: []float32{0, 1, 0}},
		{ChunkID: "c3", VideoID: "v1", Date: "2026-07-01", Embedding: []float32{-1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 3, Filter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Vector.ChunkID != "c1" {
		t.Errorf("top match = %q, want c1", matches[0].Vector.ChunkID)
	}
	if matches[0].Score < matches[1].Score || matches[1].Score < matches[2].Score {
		t.Error("expected matches sorted by descending score")
	}
	if matches[2].Vector.ChunkID != "c3" {
		t.Errorf("worst match = %q, want c3 (opposite vector)", matches[2].Vector.ChunkID)
	}
}

func TestMemoryStore_Query_RespectsTopK(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, []Vector{
		{ChunkID: "c1", Embedding: []float32{1, 0}},
		{ChunkID: "c2", Embedding: []float32{0.9, 0.1}},
		{ChunkID: "c3", Embedding: []float32{0, 1}},
	})

	matches, err := s.Query(ctx, []float32{1, 0}, 1, Filter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
}

func TestMemoryStore_Query_FiltersByVideoIDDateAndSpeaker(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, []Vector{
		{ChunkID: "c1", VideoID: "v1", Date: "2026-07-01", Speakers: []string{"alice"}, Embedding: []float32{1, 0}},
		{ChunkID: "c2", VideoID: "v2", Date: "2026-07-01", Speakers: []string{"bob"}, Embedding: []float32{1, 0}},
		{ChunkID: "c3", VideoID: "v1", Date: "2026-06-01", Speakers: []string{"alice"}, Embedding: []float32{1, 0}},
	})

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"by video", Filter{VideoID: "v1"}, []string{"c1", "c3"}},
		{"by date range", Filter{DateGTE: "2026-07-01"}, []string{"c1", "c2"}},
		{"by speaker", Filter{Speakers: []string{"bob"}}, []string{"c2"}},
		{"by multiple speakers", Filter{Speakers: []string{"alice", "bob"}}, []string{"c1", "c2", "c3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := s.Query(ctx, []float32{1, 0}, 10, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(matches) != len(tt.want) {
				t.Fatalf("got %d matches, want %d", len(matches), len(tt.want))
			}
			got := make(map[string]bool)
			for _, m := range matches {
				got[m.Vector.ChunkID] = true
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("expected chunk %q in results", id)
				}
			}
		})
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, []Vector{{ChunkID: "c1", Embedding: []float32{1, 0}}})

	if err := s.Delete(ctx, []string{"c1"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0}, 10, Filter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want 0 after delete", len(matches))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched lengths", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
