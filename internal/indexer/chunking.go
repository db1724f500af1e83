package indexer

import (
	"fmt"
	"strings"

	"github.com/lifestream/core/internal/chunk"
	"github.com/lifestream/core/internal/summary"
)

// GenerateChunks implements the stage-9 chunking contract: one
// summary_block chunk per TimeBlock, transcript_block chunks split by
// time window or character count when the transcript is long, and one
// action_item chunk per action item. Chunk IDs are deterministic, so
// calling this twice on byte-identical input produces byte-identical
// chunk sets and re-indexing is a pure upsert.
func GenerateChunks(ds summary.DailySummary) []chunk.Chunk {
	var chunks []chunk.Chunk
	for _, block := range ds.TimeBlocks {
		chunks = append(chunks, summaryBlockChunk(ds, block))
		chunks = append(chunks, transcriptBlockChunks(ds, block)...)
		chunks = append(chunks, actionItemChunks(ds, block)...)
	}
	return chunks
}

func speakerIDs(participants []summary.Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.SpeakerID)
	}
	return ids
}

func blockMetadata(block summary.TimeBlock) map[string]string {
	return map[string]string{
		"location":     block.Location,
		"activity":     block.Activity,
		"context_type": block.ContextType,
	}
}

func summaryBlockChunk(ds summary.DailySummary, block summary.TimeBlock) chunk.Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "activity: %s\n", block.Activity)
	if block.Location != "" {
		fmt.Fprintf(&b, "location: %s\n", block.Location)
	}
	fmt.Fprintf(&b, "context: %s\n", block.ContextType)
	b.WriteString(block.TranscriptSummary)

	return chunk.Chunk{
		VideoID:      ds.VideoID,
		Date:         ds.Date,
		StartSeconds: block.StartSeconds,
		EndSeconds:   block.EndSeconds,
		Speakers:     speakerIDs(block.Participants),
		Source:       chunk.SourceSummaryBlock,
		Text:         b.String(),
		Metadata:     blockMetadata(block),
	}
}

// transcriptBlockChunks splits block.TranscriptSummary into one or more
// transcript_block chunks when it exceeds characterLimit, at boundaries
// no wider than transcriptWindowSeconds.
func transcriptBlockChunks(ds summary.DailySummary, block summary.TimeBlock) []chunk.Chunk {
	text := block.TranscriptSummary
	if len(text) <= characterLimit {
		return nil
	}

	duration := block.EndSeconds - block.StartSeconds
	windows := splitWindows(block.StartSeconds, block.EndSeconds, transcriptWindowSeconds)
	if duration <= 0 || len(windows) <= 1 {
		windows = []window{{start: block.StartSeconds, end: block.EndSeconds}}
	}

	n := len(windows)
	if duration > 0 {
		n = 0 // no cap: as many segments as characterLimit needs
	}
	segments := splitByCharacterLimit(text, characterLimit, n)
	if len(segments) > len(windows) {
		step := duration / float64(len(segments))
		windows = make([]window, len(segments))
		for i := range windows {
			windows[i] = window{start: block.StartSeconds + step*float64(i), end: block.StartSeconds + step*float64(i+1)}
		}
		windows[len(windows)-1].end = block.EndSeconds
	}

	chunks := make([]chunk.Chunk, 0, len(segments))
	for i, segText := range segments {
		w := windows[i%len(windows)]
		chunks = append(chunks, chunk.Chunk{
			VideoID:      ds.VideoID,
			Date:         ds.Date,
			StartSeconds: w.start,
			EndSeconds:   w.end,
			Speakers:     speakerIDs(block.Participants),
			Source:       chunk.SourceTranscriptBlock,
			Text:         segText,
			Metadata:     blockMetadata(block),
		})
	}
	return chunks
}

func actionItemChunks(ds summary.DailySummary, block summary.TimeBlock) []chunk.Chunk {
	chunks := make([]chunk.Chunk, 0, len(block.ActionItems))
	for _, item := range block.ActionItems {
		chunks = append(chunks, chunk.Chunk{
			VideoID:      ds.VideoID,
			Date:         ds.Date,
			StartSeconds: block.StartSeconds,
			EndSeconds:   block.EndSeconds,
			Speakers:     speakerIDs(block.Participants),
			Source:       chunk.SourceActionItem,
			Text:         item,
			Metadata:     blockMetadata(block),
		})
	}
	return chunks
}

type window struct {
	start float64
	end   float64
}

func splitWindows(start, end, size float64) []window {
	var windows []window
	for s := start; s < end; s += size {
		e := s + size
		if e > end {
			e = end
		}
		windows = append(windows, window{start: s, end: e})
	}
	return windows
}

// splitByCharacterLimit divides text into at most n contiguous segments,
// each no longer than limit characters, splitting on the nearest
// preceding whitespace so words are not cut mid-token.
func splitByCharacterLimit(text string, limit, n int) []string {
	var segments []string
	remaining := text
	for len(remaining) > limit && (n <= 0 || len(segments) < n-1) {
		cut := limit
		if idx := strings.LastIndexByte(remaining[:limit], ' '); idx > 0 {
			cut = idx
		}
		segments = append(segments, strings.TrimSpace(remaining[:cut]))
		remaining = remaining[cut:]
	}
	if strings.TrimSpace(remaining) != "" {
		segments = append(segments, strings.TrimSpace(remaining))
	}
	if len(segments) == 0 {
		segments = []string{text}
	}
	return segments
}
