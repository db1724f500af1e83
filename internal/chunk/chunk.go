// Package chunk defines the indexable unit produced from a DailySummary
// and its deterministic identity contract: chunk_id is a hash of
// (video_id, start_seconds, end_seconds, source_type), stable across
// re-runs of identical input so re-indexing is a pure upsert.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SourceType classifies what kind of content a Chunk carries.
type SourceType string

const (
	// SourceSummaryBlock is the per-time-block summary text.
	SourceSummaryBlock SourceType = "summary_block"
	// SourceTranscriptBlock is a windowed slice of raw transcript.
	SourceTranscriptBlock SourceType = "transcript_block"
	// SourceActionItem is a single extracted action item.
	SourceActionItem SourceType = "action_item"
	// SourceScene is a detected visual scene description.
	SourceScene SourceType = "scene"
)

// Chunk is the indexable, embedded unit of text derived from a time block
// of a daily summary.
type Chunk struct {
	// VideoID identifies the source video.
	VideoID string
	// Date is the calendar date the video belongs to, "YYYY-MM-DD".
	Date string
	// StartSeconds and EndSeconds bound the chunk's time window.
	StartSeconds float64
	EndSeconds   float64
	// Speakers is the set of speaker identifiers present in the chunk.
	Speakers []string
	// Source classifies the chunk's origin.
	Source SourceType
	// Text is the content to embed.
	Text string
	// Metadata is a flat map used for vector-store filtering (location,
	// activity, meeting-or-vlog classification, etc.).
	Metadata map[string]string
}

// ID computes the chunk's deterministic identity: a sha256 hash of the
// canonical, UTF-8, fixed-field-order tuple (video_id, start, end,
// source_type). Preserving this exact contract matters — index
// maintenance and re-run tests rely on byte-identical input producing
// byte-identical ids.
func (c Chunk) ID() string {
	canonical := fmt.Sprintf("%s|%.6f|%.6f|%s", c.VideoID, c.StartSeconds, c.EndSeconds, c.Source)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether the chunk satisfies the end > start invariant.
func (c Chunk) Valid() bool {
	return c.EndSeconds > c.StartSeconds
}
