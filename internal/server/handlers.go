package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lifestream/core/internal/blobstore"
	"github.com/lifestream/core/internal/idempotency"
	"github.com/lifestream/core/internal/job"
	"github.com/lifestream/core/internal/job/id"
	"github.com/lifestream/core/internal/queue"
	"github.com/lifestream/core/internal/search"
	"github.com/lifestream/core/internal/summary"
)

// presignExpiry is how long a presigned upload URL remains valid.
const presignExpiry = 15 * time.Minute

// Handlers contains the HTTP handlers for the API gateway.
type Handlers struct {
	blobs       blobstore.Store
	jobs        job.Table
	idempotency idempotency.Table
	queue       queue.Queue
	search      *search.Service
	maxUploadBytes int64
	validator   *validator.Validate
	logger      *slog.Logger
}

// Option configures a Handlers instance.
type Option func(*Handlers)

// WithMaxUploadBytes sets the maximum allowed upload size for presign_upload.
func WithMaxUploadBytes(max int64) Option {
	return func(h *Handlers) { h.maxUploadBytes = max }
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(blobs blobstore.Store, jobs job.Table, idem idempotency.Table, q queue.Queue, svc *search.Service, logger *slog.Logger, opts ...Option) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		blobs: blobs, jobs: jobs, idempotency: idem, queue: q, search: svc,
		maxUploadBytes: 2 << 30, // 2 GiB default
		validator:      validator.New(),
		logger:         logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// PresignUpload handles POST /api/v1/upload/presigned-url.
// Generates a job id and object key, obtains a signed PUT URL, and
// returns. It does not write to the job table.
func (h *Handlers) PresignUpload(w http.ResponseWriter, r *http.Request) {
	var req PresignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if !strings.HasPrefix(req.ContentType, "video/") {
		writeError(w, http.StatusBadRequest, "content_type must start with video/", "UNSUPPORTED_CONTENT_TYPE")
		return
	}
	if req.Size > h.maxUploadBytes {
		writeError(w, http.StatusBadRequest, "file exceeds the configured maximum size", "FILE_TOO_LARGE")
		return
	}

	jobID := id.Generate()
	objectKey := "uploads/" + jobID

	expires := time.Now().Add(presignExpiry)
	uploadURL, err := h.blobs.PresignPut(r.Context(), objectKey, presignExpiry)
	if err != nil {
		h.logger.Error("failed to presign upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to presign upload", "PRESIGN_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, PresignUploadResponse{
		JobID:     jobID,
		UploadURL: uploadURL,
		ObjectKey: objectKey,
		ExpiresAt: expires,
	})
}

// ConfirmUpload handles POST /api/v1/upload/confirm. On success it
// creates a queued job row and enqueues a work-queue message; on a
// conditional-write conflict it treats the request as an idempotent
// retry and returns the existing job id.
func (h *Handlers) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var req ConfirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	exists, err := h.blobs.Exists(r.Context(), req.ObjectKey)
	if err != nil {
		h.logger.Error("failed to check object existence", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to verify upload", "BLOB_CHECK_FAILED")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "uploaded object not found", "OBJECT_NOT_FOUND")
		return
	}

	j := job.NewWithID(req.JobID, req.ObjectKey, req.ObjectVersion)
	j.ClientDurationHint = req.ClientDurationHint

	if err := h.idempotency.Create(r.Context(), req.ObjectKey, req.ObjectVersion, j.ID); err != nil {
		if errors.Is(err, idempotency.ErrAlreadyExists) {
			existing, getErr := h.idempotency.Get(r.Context(), req.ObjectKey, req.ObjectVersion)
			if getErr != nil {
				h.logger.Error("failed to fetch existing idempotency record", slog.String("error", getErr.Error()))
				writeError(w, http.StatusInternalServerError, "failed to confirm upload", "IDEMPOTENCY_LOOKUP_FAILED")
				return
			}
			existingJob, findErr := h.jobs.FindByID(r.Context(), existing.JobID)
			if findErr != nil {
				h.logger.Error("failed to fetch existing job", slog.String("error", findErr.Error()))
				writeError(w, http.StatusInternalServerError, "failed to confirm upload", "JOB_FETCH_FAILED")
				return
			}
			writeJSON(w, http.StatusOK, ConfirmUploadResponse{JobID: existingJob.ID, State: string(existingJob.GetStatus())})
			return
		}
		h.logger.Error("failed to create idempotency record", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to confirm upload", "IDEMPOTENCY_CREATE_FAILED")
		return
	}

	if err := h.jobs.Save(r.Context(), j); err != nil {
		h.logger.Error("failed to save job row", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to confirm upload", "JOB_SAVE_FAILED")
		return
	}

	msg := queue.Message{
		JobID:              j.ID,
		ObjectKey:          j.ObjectKey,
		ObjectVersion:       j.ObjectVersion,
		ClientDurationHint: j.ClientDurationHint,
	}
	if err := h.queue.Send(r.Context(), msg); err != nil {
		h.logger.Error("failed to enqueue job", slog.String("job_id", j.ID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to enqueue job", "ENQUEUE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, ConfirmUploadResponse{JobID: j.ID, State: string(j.GetStatus())})
}

// GetStatus handles GET /api/v1/status/{job_id}.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required", "MISSING_JOB_ID")
		return
	}

	j, err := h.jobs.FindByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to fetch job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, JobStatusResponse{
		JobID:     j.ID,
		State:     string(j.GetStatus()),
		Stage:     j.Stage,
		Progress:  j.Progress,
		Timings:   j.Timings,
		ResultKey: j.ResultKey,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	})
}

// GetSummary handles GET /api/v1/summary/{job_id}.
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required", "MISSING_JOB_ID")
		return
	}

	j, err := h.jobs.FindByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to fetch job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch job", "JOB_FETCH_FAILED")
		return
	}
	if j.GetStatus() != job.StatusCompleted {
		writeError(w, http.StatusConflict, "job has not completed", "JOB_NOT_COMPLETE")
		return
	}

	rc, err := h.blobs.Get(r.Context(), j.ResultKey)
	if err != nil {
		h.logger.Error("failed to fetch summary artifact", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch summary", "SUMMARY_FETCH_FAILED")
		return
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		h.logger.Error("failed to read summary artifact", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read summary", "SUMMARY_READ_FAILED")
		return
	}

	var ds summary.DailySummary
	if err := json.Unmarshal(data, &ds); err != nil {
		h.logger.Error("failed to parse summary artifact", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to parse summary", "SUMMARY_PARSE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		SummaryMarkdown: summary.RenderMarkdown(ds),
		TimeBlocks:      ds.TimeBlocks,
		VideoMetadata:   map[string]string{"video_id": ds.VideoID, "date": ds.Date},
	})
}

// Query handles POST /api/v1/query, delegating to the search service.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	resp, err := h.search.Search(r.Context(), search.Query{
		Text:       req.Query,
		TopK:       req.TopK,
		MinScore:   req.MinScore,
		WithAnswer: true,
		Filters: search.Filters{
			VideoID:     req.Filters.VideoID,
			Date:        req.Filters.Date,
			SpeakerIDs:  req.Filters.SpeakerIDs,
			SourceTypes: req.Filters.SourceTypes,
		},
	})
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_QUERY")
			return
		}
		if errors.Is(err, search.ErrServiceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error(), "SERVICE_UNAVAILABLE")
			return
		}
		h.logger.Error("query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "query failed", "QUERY_FAILED")
		return
	}

	results := make([]QueryResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = QueryResult{
			ChunkID: r.ChunkID, VideoID: r.VideoID, Date: r.Date,
			StartSeconds: r.StartSeconds, EndSeconds: r.EndSeconds,
			Speakers: r.Speakers, Source: r.Source, Text: r.Text, Score: r.Score,
		}
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Query: req.Query, Results: results, Answer: resp.Answer, TotalResults: len(results),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
