package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lifestream/core/internal/blobstore"
	"github.com/lifestream/core/internal/job"
	"github.com/lifestream/core/internal/metrics"
	"github.com/lifestream/core/internal/modelclient"
	"github.com/lifestream/core/internal/speaker"
	"github.com/lifestream/core/internal/summary"
)

// Indexer is the stage-9 dependency: converts a finished DailySummary into
// chunks, embeds them, and upserts into the vector store. It is
// degradable: its failure is logged and does not fail the job.
type Indexer interface {
	Index(ctx context.Context, ds summary.DailySummary) error
}

// The following interfaces mirror the modelclient adapters' Invoke
// signatures so tests can substitute fakes without standing up an HTTP
// server, per the "model components as strategies" design.
type (
	diarizer interface {
		Invoke(ctx context.Context, waveform []byte) ([]modelclient.SpeakerSegment, error)
	}
	asrModel interface {
		Invoke(ctx context.Context, input modelclient.ASRInput) ([]modelclient.TranscriptSegment, error)
	}
	sceneDetector interface {
		Invoke(ctx context.Context, videoBytes []byte, frameSkip int) ([]float64, error)
	}
	keyframer interface {
		Invoke(ctx context.Context, videoBytes []byte, boundarySeconds []float64) ([]modelclient.Keyframe, error)
	}
	meetingClassifier interface {
		Invoke(ctx context.Context, transcriptLines []string) (string, error)
	}
	summarizerModel interface {
		Invoke(ctx context.Context, input modelclient.SummarizeInput) (modelclient.SummarizeOutput, error)
	}
)

// Config configures an Orchestrator run.
type Config struct {
	// ChunkWindowSeconds is the default SynchronizedContext window (default 300).
	ChunkWindowSeconds float64
	// SceneDetectionFrameSkip trades speed for granularity (default 2).
	SceneDetectionFrameSkip int
	// ParallelMaxWorkers bounds the audio/visual branch worker pool (default 2).
	ParallelMaxWorkers int
	// StageTimeouts maps stage name to its timeout; zero means no timeout.
	StageTimeouts map[string]time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		ChunkWindowSeconds:      300,
		SceneDetectionFrameSkip: 2,
		ParallelMaxWorkers:      2,
	}
}

// Orchestrator runs the fixed-stage pipeline for one dispatched job.
type Orchestrator struct {
	jobs       job.Table
	blobs      blobstore.Store
	registry   *speaker.Registry
	diarizer   diarizer
	asr        asrModel
	sceneDet   sceneDetector
	keyframer  keyframer
	classifier meetingClassifier
	summarizer summarizerModel
	audio      AudioExtractor
	indexer    Indexer
	logger     *slog.Logger
	cfg        Config
	metrics    *metrics.Registry
}

// WithMetrics attaches a metrics registry the orchestrator records
// per-stage durations and failures against. Optional.
func (o *Orchestrator) WithMetrics(reg *metrics.Registry) *Orchestrator {
	o.metrics = reg
	return o
}

// New creates a new Orchestrator.
func New(
	jobs job.Table,
	blobs blobstore.Store,
	registry *speaker.Registry,
	diarizer *modelclient.Diarizer,
	asr *modelclient.ASR,
	sceneDet *modelclient.SceneDetector,
	keyframer *modelclient.Keyframer,
	classifier *modelclient.MeetingClassifier,
	summarizer *modelclient.Summarizer,
	audio AudioExtractor,
	indexer Indexer,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.ChunkWindowSeconds <= 0 {
		cfg.ChunkWindowSeconds = 300
	}
	if cfg.ParallelMaxWorkers <= 0 {
		cfg.ParallelMaxWorkers = 2
	}
	return &Orchestrator{
		jobs: jobs, blobs: blobs, registry: registry,
		diarizer: diarizer, asr: asr, sceneDet: sceneDet, keyframer: keyframer,
		classifier: classifier, summarizer: summarizer, audio: audio, indexer: indexer,
		logger: logger, cfg: cfg,
	}
}

// Run executes the full pipeline for one job. Any non-recovered error
// transitions the job to failed and uploads a failure report before
// returning.
func (o *Orchestrator) Run(ctx context.Context, input Input) error {
	log := o.logger.With(slog.String("job_id", input.JobID))
	timings := make(map[string]float64)

	j, err := o.jobs.FindByID(ctx, input.JobID)
	if err != nil {
		return fmt.Errorf("orchestrator: find job: %w", err)
	}

	if j.GetStatus() == job.StatusDispatched {
		if err := j.TransitionTo(job.StatusProcessing); err != nil {
			return fmt.Errorf("orchestrator: transition to processing: %w", err)
		}
		if err := o.jobs.Save(ctx, j); err != nil {
			return fmt.Errorf("orchestrator: save processing transition: %w", err)
		}
	}

	ds, stage, err := o.process(ctx, log, j, timings, input)
	if err != nil {
		o.fail(ctx, log, j, stage, err, timings)
		o.recordTimings(timings)
		if o.metrics != nil {
			o.metrics.StageFailures.WithLabelValues(stage, "true").Inc()
		}
		return err
	}

	if err := j.Complete(ds.resultKey); err != nil {
		log.Error("failed to transition to completed", slog.String("error", err.Error()))
	}
	if err := o.jobs.Save(ctx, j); err != nil {
		log.Error("failed to save completed job", slog.String("error", err.Error()))
	}

	o.recordTimings(timings)
	log.Info("job completed", slog.Any("timings", timings))
	return nil
}

// recordTimings pushes every stage's measured duration into the
// metrics registry, if one is attached. Durations are collected in
// the timings map throughout process() regardless of whether a
// registry is attached, so this is the single point that decides
// whether to publish them.
func (o *Orchestrator) recordTimings(timings map[string]float64) {
	if o.metrics == nil {
		return
	}
	for stage, seconds := range timings {
		o.metrics.StageDuration.WithLabelValues(stage).Observe(seconds)
	}
}

// pipelineResult carries the blob-store key the summary was uploaded to,
// alongside the summary itself for the indexing stage.
type pipelineResult struct {
	ds        summary.DailySummary
	resultKey string
}

func (o *Orchestrator) process(ctx context.Context, log *slog.Logger, j *job.Job, timings map[string]float64, input Input) (pipelineResult, string, error) {
	downloadCtx, cancel := o.stageCtx(ctx, StageDownload)
	defer cancel()
	downloadStart := time.Now()
	videoPath, err := o.download(downloadCtx, input.ObjectKey)
	timings[StageDownload] = time.Since(downloadStart).Seconds()
	if err != nil {
		log.Error("stage failed", slog.String("stage", StageDownload), slog.String("error", err.Error()))
		return pipelineResult{}, StageDownload, err
	}
	defer func() { _ = os.Remove(videoPath) }()
	o.advance(ctx, j, StageDownload)

	audioCtx, cancelAudio := o.stageCtx(ctx, StageAudioExtraction)
	defer cancelAudio()
	waveform, observedDuration, err := o.extractAudio(audioCtx, log, timings, videoPath)
	if err != nil {
		return pipelineResult{}, StageAudioExtraction, err
	}
	o.advance(ctx, j, StageAudioExtraction)
	o.checkDurationDivergence(log, j.ClientDurationHint, observedDuration)

	videoBytes, err := os.ReadFile(videoPath) // #nosec G304 - our own downloaded temp file
	if err != nil {
		return pipelineResult{}, StageDownload, fmt.Errorf("orchestrator: read downloaded video: %w", err)
	}

	var (
		transcript []modelclient.TranscriptSegment
		keyframes  []modelclient.Keyframe
	)
	var branchErr error
	var wg sync.WaitGroup
	workers := o.cfg.ParallelMaxWorkers
	if workers <= 0 {
		workers = 2
	}
	sem := make(chan struct{}, workers)
	wg.Add(2)

	go func() {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		asrCtx, cancel := o.stageCtx(ctx, StageASR)
		defer cancel()
		t, err := o.audioBranch(asrCtx, log, timings, waveform)
		if err != nil {
			branchErr = err
			return
		}
		transcript = t
	}()

	go func() {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		k, err := o.visualBranch(ctx, log, timings, videoBytes, observedDuration)
		keyframes = k
		_ = err // visual branch stages are all degradable; errors already logged
	}()

	wg.Wait()
	if branchErr != nil {
		return pipelineResult{}, StageASR, branchErr
	}
	o.advance(ctx, j, StageASR)
	o.advance(ctx, j, StageKeyframes)

	syncStart := time.Now()
	contexts := o.synchronize(transcript, keyframes, observedDuration)
	timings[StageSynchronization] = time.Since(syncStart).Seconds()
	o.advance(ctx, j, StageSynchronization)

	contexts = o.classify(ctx, log, timings, contexts)
	o.advance(ctx, j, StageMeetingClassification)

	summarizeCtx, cancelSummarize := o.stageCtx(ctx, StageSummarization)
	defer cancelSummarize()
	ds, err := o.summarize(summarizeCtx, log, timings, j, contexts)
	if err != nil {
		return pipelineResult{}, StageSummarization, err
	}
	o.advance(ctx, j, StageSummarization)

	resultKey, err := o.uploadSummary(ctx, log, timings, input.JobID, ds)
	if err != nil {
		return pipelineResult{}, StageUpload, err
	}
	o.advance(ctx, j, StageUpload)

	o.index(ctx, log, timings, ds)
	o.advance(ctx, j, StageIndexing)

	return pipelineResult{ds: ds, resultKey: resultKey}, "", nil
}

// stageCtx applies the configured timeout for stage, if any.
func (o *Orchestrator) stageCtx(ctx context.Context, stage string) (context.Context, context.CancelFunc) {
	timeout, ok := o.cfg.StageTimeouts[stage]
	if !ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (o *Orchestrator) advance(ctx context.Context, j *job.Job, stage string) {
	j.UpdateStage(stage, progressFor(stage))
	if err := o.jobs.Save(ctx, j); err != nil {
		o.logger.Warn("failed to persist stage advance",
			slog.String("job_id", j.ID), slog.String("stage", stage), slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) download(ctx context.Context, objectKey string) (string, error) {
	rc, err := o.blobs.Get(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("orchestrator: download: %w", err)
	}
	defer func() { _ = rc.Close() }()

	f, err := os.CreateTemp("", "lifestream-download-*.mp4")
	if err != nil {
		return "", fmt.Errorf("orchestrator: create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, rc); err != nil {
		return "", fmt.Errorf("orchestrator: write downloaded video: %w", err)
	}
	return f.Name(), nil
}

func (o *Orchestrator) extractAudio(ctx context.Context, log *slog.Logger, timings map[string]float64, videoPath string) ([]byte, float64, error) {
	start := time.Now()
	waveform, duration, err := o.audio.Extract(ctx, videoPath)
	timings[StageAudioExtraction] = time.Since(start).Seconds()
	if err != nil {
		log.Error("stage failed", slog.String("stage", StageAudioExtraction), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("orchestrator: %s: %w", StageAudioExtraction, err)
	}
	return waveform, duration, nil
}

func (o *Orchestrator) checkDurationDivergence(log *slog.Logger, hint, observed float64) {
	if hint <= 0 || observed <= 0 {
		return
	}
	divergence := math.Abs(hint-observed) / observed
	if divergence > 0.20 {
		log.Warn("client duration hint diverges from observed stream duration by more than 20%",
			slog.Float64("client_duration_hint", hint),
			slog.Float64("observed_duration", observed),
		)
	}
}

func (o *Orchestrator) audioBranch(ctx context.Context, log *slog.Logger, timings map[string]float64, waveform []byte) ([]modelclient.TranscriptSegment, error) {
	start := time.Now()
	segments, err := o.diarizer.Invoke(ctx, waveform)
	timings[StageDiarization] = time.Since(start).Seconds()
	if err != nil {
		log.Warn("diarization degraded to single-speaker", slog.String("error", err.Error()))
		segments = nil // single-speaker degrade: ASR proceeds without per-segment speaker IDs
	}

	start = time.Now()
	transcript, err := o.asr.Invoke(ctx, modelclient.ASRInput{Waveform: waveform, Diarized: segments})
	timings[StageASR] = time.Since(start).Seconds()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %s: %w", StageASR, err)
	}
	return transcript, nil
}

func (o *Orchestrator) visualBranch(ctx context.Context, log *slog.Logger, timings map[string]float64, videoBytes []byte, observedDuration float64) ([]modelclient.Keyframe, error) {
	start := time.Now()
	boundaries, err := o.sceneDet.Invoke(ctx, videoBytes, o.cfg.SceneDetectionFrameSkip)
	timings[StageSceneDetection] = time.Since(start).Seconds()
	if err != nil {
		log.Warn("scene detection degraded to fixed 5s interval", slog.String("error", err.Error()))
		boundaries = fixedIntervalBoundaries(observedDuration, 5*time.Second)
	}

	start = time.Now()
	keyframes, err := o.keyframer.Invoke(ctx, videoBytes, boundaries)
	timings[StageKeyframes] = time.Since(start).Seconds()
	if err != nil {
		log.Warn("keyframe extraction degraded to empty", slog.String("error", err.Error()))
		return nil, nil
	}
	return keyframes, nil
}

// fixedIntervalBoundaries generates scene boundaries at a fixed
// interval across the observed stream duration: [0, interval,
// 2*interval, ...], stopping once a boundary would reach or pass
// duration. Used when the scene detector fails, so the keyframer
// still gets evenly spaced sample points instead of none at all. A
// non-positive duration (unknown, e.g. duration probe also failed)
// yields no boundaries, since there is nothing to space them across.
func fixedIntervalBoundaries(duration float64, interval time.Duration) []float64 {
	if duration <= 0 {
		return nil
	}
	step := interval.Seconds()
	boundaries := make([]float64, 0, int(duration/step)+1)
	for t := 0.0; t < duration; t += step {
		boundaries = append(boundaries, t)
	}
	return boundaries
}

func (o *Orchestrator) synchronize(transcript []modelclient.TranscriptSegment, keyframes []modelclient.Keyframe, observedDuration float64) []SynchronizedContext {
	window := o.cfg.ChunkWindowSeconds
	if observedDuration > 0 && observedDuration < window {
		window = observedDuration
	}
	if window <= 0 {
		window = o.cfg.ChunkWindowSeconds
	}

	total := observedDuration
	if total <= 0 {
		total = window
	}

	var contexts []SynchronizedContext
	for start := 0.0; start < total; start += window {
		end := start + window
		if end > total {
			end = total
		}
		ctx := SynchronizedContext{StartSeconds: start, EndSeconds: end, Metadata: map[string]string{}}
		for _, seg := range transcript {
			if seg.StartSeconds >= start && seg.StartSeconds < end {
				ctx.Transcript = append(ctx.Transcript, seg)
			}
		}
		for _, kf := range keyframes {
			if kf.TimestampSeconds >= start && kf.TimestampSeconds < end {
				ctx.Keyframes = append(ctx.Keyframes, kf)
			}
		}
		contexts = append(contexts, ctx)
	}
	if len(contexts) == 0 {
		contexts = append(contexts, SynchronizedContext{StartSeconds: 0, EndSeconds: total, Metadata: map[string]string{}})
	}
	return contexts
}

func (o *Orchestrator) classify(ctx context.Context, log *slog.Logger, timings map[string]float64, contexts []SynchronizedContext) []SynchronizedContext {
	start := time.Now()
	for i := range contexts {
		lines := transcriptLines(contexts[i].Transcript)
		contextType, err := o.classifier.Invoke(ctx, lines)
		if err != nil {
			log.Warn("meeting classification degraded to heuristic fallback", slog.String("error", err.Error()))
			contextType = heuristicContextType(contexts[i])
		}
		contexts[i].ContextType = contextType
	}
	timings[StageMeetingClassification] = time.Since(start).Seconds()
	return contexts
}

func heuristicContextType(c SynchronizedContext) string {
	switch {
	case len(c.Transcript) == 0 && len(c.Keyframes) == 0:
		return "idle"
	case len(c.Transcript) > 0 && len(c.Keyframes) == 0:
		return "call"
	case len(c.Transcript) == 0:
		return "solo_work"
	default:
		return "meeting"
	}
}

func transcriptLines(segments []modelclient.TranscriptSegment) []string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("%s: %s", s.SpeakerID, s.Text))
	}
	return lines
}

func (o *Orchestrator) summarize(ctx context.Context, log *slog.Logger, timings map[string]float64, j *job.Job, contexts []SynchronizedContext) (summary.DailySummary, error) {
	start := time.Now()
	defer func() { timings[StageSummarization] = time.Since(start).Seconds() }()

	ds := summary.DailySummary{VideoID: j.ID, Date: j.CreatedAt.Format("2006-01-02")}

	for _, c := range contexts {
		block, err := o.summarizeContext(ctx, c)
		if err != nil {
			return summary.DailySummary{}, fmt.Errorf("orchestrator: %s: %w", StageSummarization, err)
		}
		ds.TimeBlocks = append(ds.TimeBlocks, block)
	}
	return ds, nil
}

// summarizeContext applies the full summarization contract for one
// SynchronizedContext: degenerate-activity rejection, HH:MM:SS
// normalization (handled by summary.RenderMarkdown at render time, not
// stored), speaker resolution, and the empty-content default block.
func (o *Orchestrator) summarizeContext(ctx context.Context, c SynchronizedContext) (summary.TimeBlock, error) {
	if len(c.Transcript) == 0 && len(c.Keyframes) == 0 {
		return summary.TimeBlock{
			StartSeconds:      c.StartSeconds,
			EndSeconds:        c.EndSeconds,
			Activity:          "No speech detected",
			ContextType:       c.ContextType,
			SourceReliability: "low",
		}, nil
	}

	lines := transcriptLines(c.Transcript)
	visual := make([]string, 0, len(c.Keyframes))
	for range c.Keyframes {
		visual = append(visual, "keyframe")
	}

	out, err := o.summarizer.Invoke(ctx, modelclient.SummarizeInput{
		StartSeconds:       c.StartSeconds,
		EndSeconds:         c.EndSeconds,
		TranscriptLines:    lines,
		VisualDescriptions: visual,
	})
	if err != nil {
		return summary.TimeBlock{}, err
	}

	activity := out.Activity
	if activity == "Activity" || strings.TrimSpace(activity) == "" {
		activity = deriveActivity(lines)
	}

	participants := make([]summary.Participant, 0, len(out.Participants))
	for _, speakerID := range out.Participants {
		displayName, role := o.resolveSpeaker(speakerID)
		participants = append(participants, summary.Participant{
			SpeakerID: speakerID, DisplayName: displayName, Role: role,
		})
	}

	return summary.TimeBlock{
		StartSeconds:      c.StartSeconds,
		EndSeconds:        c.EndSeconds,
		Activity:          activity,
		Location:          out.Location,
		Participants:      participants,
		TranscriptSummary: out.TranscriptSummary,
		ActionItems:       out.ActionItems,
		ContextType:       valueOr(out.ContextType, c.ContextType),
		SourceReliability: out.SourceReliability,
	}, nil
}

func (o *Orchestrator) resolveSpeaker(speakerID string) (string, string) {
	if o.registry == nil {
		return speaker.UnidentifiedSpeaker, ""
	}
	return o.registry.Resolve(speakerID)
}

// deriveActivity rejects the known-degenerate "Activity" placeholder by
// falling back to the first ~80 characters of the transcript, or the
// empty-speech placeholder if there is none.
func deriveActivity(transcriptLines []string) string {
	joined := strings.Join(transcriptLines, " ")
	if strings.TrimSpace(joined) == "" {
		return "No speech detected"
	}
	if len(joined) > 80 {
		return joined[:80]
	}
	return joined
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (o *Orchestrator) uploadSummary(ctx context.Context, log *slog.Logger, timings map[string]float64, jobID string, ds summary.DailySummary) (string, error) {
	start := time.Now()
	defer func() { timings[StageUpload] = time.Since(start).Seconds() }()

	data, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("orchestrator: marshal summary: %w", err)
	}

	resultKey := fmt.Sprintf("results/%s/summary.json", jobID)
	if err := o.blobs.Put(ctx, resultKey, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("orchestrator: upload summary: %w", err)
	}

	markdownKey := fmt.Sprintf("results/%s/summary.md", jobID)
	if err := o.blobs.Put(ctx, markdownKey, strings.NewReader(summary.RenderMarkdown(ds))); err != nil {
		log.Warn("failed to upload markdown rendering", slog.String("error", err.Error()))
	}

	return resultKey, nil
}

func (o *Orchestrator) index(ctx context.Context, log *slog.Logger, timings map[string]float64, ds summary.DailySummary) {
	start := time.Now()
	defer func() { timings[StageIndexing] = time.Since(start).Seconds() }()

	if o.indexer == nil {
		return
	}
	if err := o.indexer.Index(ctx, ds); err != nil {
		log.Warn("indexing failed, job still completes", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, j *job.Job, stage string, cause error, timings map[string]float64) {
	report := FailureReport{
		JobID:      j.ID,
		Stage:      stage,
		ErrorClass: fmt.Sprintf("%T", cause),
		Message:    cause.Error(),
		Timings:    timings,
		OccurredAt: time.Now(),
	}

	failureReportKey := fmt.Sprintf("results/%s/failure_report.json", j.ID)
	if data, err := json.Marshal(report); err == nil {
		if err := o.blobs.Put(ctx, failureReportKey, bytes.NewReader(data)); err != nil {
			log.Error("failed to upload failure report", slog.String("error", err.Error()))
		}
	}

	if err := j.Fail(cause.Error(), failureReportKey); err != nil {
		log.Error("failed to transition to failed", slog.String("error", err.Error()))
	}
	if err := o.jobs.Save(ctx, j); err != nil {
		log.Error("failed to save failed job", slog.String("error", err.Error()))
	}

	log.Error("job failed", slog.String("stage", stage), slog.String("error", cause.Error()))
}
