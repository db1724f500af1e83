// Package server provides the HTTP API gateway: handlers,
// middleware, routes, and DTOs separated from domain types.
package server

import "time"

// PresignUploadRequest is the body of POST /upload/presigned-url.
type PresignUploadRequest struct {
	Filename    string `json:"filename" validate:"required"`
	Size        int64  `json:"size" validate:"required,gt=0"`
	ContentType string `json:"content_type" validate:"required"`
}

// PresignUploadResponse is returned from presign_upload.
type PresignUploadResponse struct {
	JobID     string    `json:"job_id"`
	UploadURL string    `json:"upload_url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfirmUploadRequest is the body of POST /upload/confirm. ObjectVersion
// is the content version the client observed on its presigned PUT (e.g.
// an S3 ETag) and is the second half of the idempotency key alongside
// ObjectKey.
type ConfirmUploadRequest struct {
	JobID              string  `json:"job_id" validate:"required"`
	ObjectKey          string  `json:"object_key" validate:"required"`
	ObjectVersion      string  `json:"object_version" validate:"required"`
	ClientDurationHint float64 `json:"client_duration_hint,omitempty"`
}

// ConfirmUploadResponse is returned from confirm_upload.
type ConfirmUploadResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

// JobStatusResponse mirrors the Job row, minus secrets, per get_status.
type JobStatusResponse struct {
	JobID     string             `json:"job_id"`
	State     string             `json:"state"`
	Stage     string             `json:"stage,omitempty"`
	Progress  float64            `json:"progress"`
	Timings   map[string]float64 `json:"timings,omitempty"`
	ResultKey string             `json:"result_key,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// SummaryResponse is returned from get_summary.
type SummaryResponse struct {
	SummaryMarkdown string `json:"summary_markdown"`
	TimeBlocks      any    `json:"time_blocks"`
	VideoMetadata   any    `json:"video_metadata"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query    string           `json:"query" validate:"required"`
	TopK     int              `json:"top_k,omitempty"`
	MinScore float64          `json:"min_score,omitempty"`
	Filters  QueryFilterInput `json:"filters,omitempty"`
}

// QueryFilterInput mirrors search.Filters in wire form.
type QueryFilterInput struct {
	VideoID     string   `json:"video_id,omitempty"`
	Date        string   `json:"date,omitempty"`
	SpeakerIDs  []string `json:"speaker_ids,omitempty"`
	SourceTypes []string `json:"source_types,omitempty"`
}

// QueryResponse is returned from query.
type QueryResponse struct {
	Query        string        `json:"query"`
	Results      []QueryResult `json:"results"`
	Answer       string        `json:"answer,omitempty"`
	TotalResults int           `json:"total_results"`
}

// QueryResult is one search.Result in wire form.
type QueryResult struct {
	ChunkID      string   `json:"chunk_id"`
	VideoID      string   `json:"video_id"`
	Date         string   `json:"date"`
	StartSeconds float64  `json:"start_seconds"`
	EndSeconds   float64  `json:"end_seconds"`
	Speakers     []string `json:"speakers,omitempty"`
	Source       string   `json:"source"`
	Text         string   `json:"text"`
	Score        float64  `json:"score"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
