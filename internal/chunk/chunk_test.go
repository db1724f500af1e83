package chunk

import "testing"

func TestChunk_ID_Deterministic(t *testing.T) {
	c := Chunk{VideoID: "vid-1", StartSeconds: 0, EndSeconds: 300, Source: SourceSummaryBlock}

	id1 := c.ID()
	id2 := c.ID()
	if id1 != id2 {
		t.Errorf("expected stable id across calls, got %s and %s", id1, id2)
	}

	other := Chunk{VideoID: "vid-1", StartSeconds: 0, EndSeconds: 300, Source: SourceSummaryBlock, Text: "different text"}
	if other.ID() != id1 {
		t.Error("expected id to be independent of Text and other non-identity fields")
	}
}

func TestChunk_ID_VariesByIdentityFields(t *testing.T) {
	base := Chunk{VideoID: "vid-1", StartSeconds: 0, EndSeconds: 300, Source: SourceSummaryBlock}
	variants := []Chunk{
		{VideoID: "vid-2", StartSeconds: 0, EndSeconds: 300, Source: SourceSummaryBlock},
		{VideoID: "vid-1", StartSeconds: 10, EndSeconds: 300, Source: SourceSummaryBlock},
		{VideoID: "vid-1", StartSeconds: 0, EndSeconds: 301, Source: SourceSummaryBlock},
		{VideoID: "vid-1", StartSeconds: 0, EndSeconds: 300, Source: SourceTranscriptBlock},
	}

	baseID := base.ID()
	for i, v := range variants {
		if v.ID() == baseID {
			t.Errorf("variant %d unexpectedly produced the same id as base", i)
		}
	}
}

func TestChunk_Valid(t *testing.T) {
	tests := []struct {
		name  string
		chunk Chunk
		want  bool
	}{
		{"end after start", Chunk{StartSeconds: 0, EndSeconds: 10}, true},
		{"end equal start", Chunk{StartSeconds: 5, EndSeconds: 5}, false},
		{"end before start", Chunk{StartSeconds: 10, EndSeconds: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chunk.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
