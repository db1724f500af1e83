package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/lifestream/core/internal/blobstore"
	"github.com/lifestream/core/internal/job"
	"github.com/lifestream/core/internal/modelclient"
	"github.com/lifestream/core/internal/summary"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAudioExtractor struct {
	waveform []byte
	duration float64
	err      error
}

func (f *fakeAudioExtractor) Extract(_ context.Context, _ string) ([]byte, float64, error) {
	return f.waveform, f.duration, f.err
}

type fakeDiarizer struct {
	segments []modelclient.SpeakerSegment
	err      error
}

func (f *fakeDiarizer) Invoke(_ context.Context, _ []byte) ([]modelclient.SpeakerSegment, error) {
	return f.segments, f.err
}

type fakeASR struct {
	segments []modelclient.TranscriptSegment
	err      error
}

func (f *fakeASR) Invoke(_ context.Context, _ modelclient.ASRInput) ([]modelclient.TranscriptSegment, error) {
	return f.segments, f.err
}

type fakeSceneDetector struct {
	boundaries []float64
	err        error
}

func (f *fakeSceneDetector) Invoke(_ context.Context, _ []byte, _ int) ([]float64, error) {
	return f.boundaries, f.err
}

type fakeKeyframer struct {
	keyframes      []modelclient.Keyframe
	err            error
	lastBoundaries []float64
}

func (f *fakeKeyframer) Invoke(_ context.Context, _ []byte, boundaries []float64) ([]modelclient.Keyframe, error) {
	f.lastBoundaries = boundaries
	return f.keyframes, f.err
}

type fakeClassifier struct {
	contextType string
	err         error
}

func (f *fakeClassifier) Invoke(_ context.Context, _ []string) (string, error) {
	return f.contextType, f.err
}

type fakeSummarizer struct {
	output modelclient.SummarizeOutput
	err    error
}

func (f *fakeSummarizer) Invoke(_ context.Context, _ modelclient.SummarizeInput) (modelclient.SummarizeOutput, error) {
	return f.output, f.err
}

type fakeIndexer struct {
	called bool
	err    error
}

func (f *fakeIndexer) Index(_ context.Context, _ summary.DailySummary) error {
	f.called = true
	return f.err
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *job.MemoryTable, *blobstore.LocalStore) {
	t.Helper()
	jobs := job.NewMemoryTable()
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	o := &Orchestrator{
		jobs:  jobs,
		blobs: blobs,
		audio: &fakeAudioExtractor{waveform: []byte("pcm"), duration: 120},
		diarizer: &fakeDiarizer{segments: []modelclient.SpeakerSegment{
			{StartSeconds: 0, EndSeconds: 10, SpeakerID: "Speaker_01"},
		}},
		asr: &fakeASR{segments: []modelclient.TranscriptSegment{
			{StartSeconds: 0, EndSeconds: 10, SpeakerID: "Speaker_01", Text: "hello there"},
		}},
		sceneDet:  &fakeSceneDetector{boundaries: []float64{0, 30}},
		keyframer: &fakeKeyframer{},
		classifier: &fakeClassifier{contextType: "meeting"},
		summarizer: &fakeSummarizer{output: modelclient.SummarizeOutput{
			Activity:          "Standup",
			Location:          "Office",
			Participants:      []string{"Speaker_01"},
			TranscriptSummary: "Daily standup",
			ActionItems:       []string{"Follow up with design"},
			SourceReliability: "high",
			ContextType:       "meeting",
		}},
		indexer: &fakeIndexer{},
		logger:  newTestLogger(),
		cfg:     DefaultConfig(),
	}
	return o, jobs, blobs
}

func TestOrchestrator_Run_HappyPath(t *testing.T) {
	o, jobs, blobs := newTestOrchestrator(t)
	ctx := context.Background()

	j := job.New("uploads/a.mp4", "v1", 115)
	if err := j.TransitionTo(job.StatusDispatched); err != nil {
		t.Fatalf("TransitionTo() error = %v", err)
	}
	if err := jobs.Save(ctx, j); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := blobs.Put(ctx, "uploads/a.mp4", bytes.NewReader([]byte("fake video bytes"))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	err := o.Run(ctx, Input{JobID: j.ID, ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	updated, err := jobs.FindByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if updated.GetStatus() != job.StatusCompleted {
		t.Errorf("status = %v, want completed", updated.GetStatus())
	}
	if updated.ResultKey == "" {
		t.Error("expected a non-empty result key")
	}

	rc, err := blobs.Get(ctx, updated.ResultKey)
	if err != nil {
		t.Fatalf("Get(result) error = %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if len(data) == 0 {
		t.Error("expected non-empty summary JSON")
	}
}

func TestOrchestrator_Run_FatalASRFailureFailsJob(t *testing.T) {
	o, jobs, blobs := newTestOrchestrator(t)
	o.asr = &fakeASR{err: errors.New("asr backend unavailable")}
	ctx := context.Background()

	j := job.New("uploads/a.mp4", "v1", 0)
	_ = j.TransitionTo(job.StatusDispatched)
	_ = jobs.Save(ctx, j)
	_ = blobs.Put(ctx, "uploads/a.mp4", bytes.NewReader([]byte("bytes")))

	err := o.Run(ctx, Input{JobID: j.ID, ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"})
	if err == nil {
		t.Fatal("expected Run() to return an error on fatal ASR failure")
	}

	updated, findErr := jobs.FindByID(ctx, j.ID)
	if findErr != nil {
		t.Fatalf("FindByID() error = %v", findErr)
	}
	if updated.GetStatus() != job.StatusFailed {
		t.Errorf("status = %v, want failed", updated.GetStatus())
	}
	if updated.FailureReportKey == "" {
		t.Error("expected a failure report key to be set")
	}

	exists, err := blobs.Exists(ctx, updated.FailureReportKey)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("expected a failure report to be uploaded")
	}
}

func TestOrchestrator_Run_DegradableDiarizationFailureStillCompletes(t *testing.T) {
	o, jobs, blobs := newTestOrchestrator(t)
	o.diarizer = &fakeDiarizer{err: errors.New("diarizer unavailable")}
	ctx := context.Background()

	j := job.New("uploads/a.mp4", "v1", 0)
	_ = j.TransitionTo(job.StatusDispatched)
	_ = jobs.Save(ctx, j)
	_ = blobs.Put(ctx, "uploads/a.mp4", bytes.NewReader([]byte("bytes")))

	err := o.Run(ctx, Input{JobID: j.ID, ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"})
	if err != nil {
		t.Fatalf("Run() error = %v, want success despite degradable diarization failure", err)
	}

	updated, _ := jobs.FindByID(ctx, j.ID)
	if updated.GetStatus() != job.StatusCompleted {
		t.Errorf("status = %v, want completed", updated.GetStatus())
	}
}

func TestFixedIntervalBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		interval time.Duration
		want     []float64
	}{
		{"evenly divides", 15, 5 * time.Second, []float64{0, 5, 10}},
		{"remainder dropped", 12, 5 * time.Second, []float64{0, 5, 10}},
		{"zero duration", 0, 5 * time.Second, nil},
		{"negative duration", -10, 5 * time.Second, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fixedIntervalBoundaries(tt.duration, tt.interval)
			if len(got) != len(tt.want) {
				t.Fatalf("fixedIntervalBoundaries() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("boundary[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOrchestrator_Run_SceneDetectionFailureDegradesToFixedInterval(t *testing.T) {
	o, jobs, blobs := newTestOrchestrator(t)
	o.sceneDet = &fakeSceneDetector{err: errors.New("scene detector unavailable")}
	keyframer := &fakeKeyframer{}
	o.keyframer = keyframer
	ctx := context.Background()

	j := job.New("uploads/a.mp4", "v1", 0)
	_ = j.TransitionTo(job.StatusDispatched)
	_ = jobs.Save(ctx, j)
	_ = blobs.Put(ctx, "uploads/a.mp4", bytes.NewReader([]byte("bytes")))

	err := o.Run(ctx, Input{JobID: j.ID, ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"})
	if err != nil {
		t.Fatalf("Run() error = %v, want success despite degradable scene detection failure", err)
	}

	updated, _ := jobs.FindByID(ctx, j.ID)
	if updated.GetStatus() != job.StatusCompleted {
		t.Errorf("status = %v, want completed", updated.GetStatus())
	}

	if len(keyframer.lastBoundaries) == 0 {
		t.Fatal("expected non-empty fixed-interval boundaries to reach the keyframer")
	}
	for i, b := range keyframer.lastBoundaries {
		want := float64(i) * 5
		if b != want {
			t.Errorf("boundary[%d] = %v, want %v (5s spacing)", i, b, want)
		}
	}
}

func TestOrchestrator_Run_DegradableIndexingFailureStillCompletes(t *testing.T) {
	o, jobs, blobs := newTestOrchestrator(t)
	o.indexer = &fakeIndexer{err: errors.New("vector store unavailable")}
	ctx := context.Background()

	j := job.New("uploads/a.mp4", "v1", 0)
	_ = j.TransitionTo(job.StatusDispatched)
	_ = jobs.Save(ctx, j)
	_ = blobs.Put(ctx, "uploads/a.mp4", bytes.NewReader([]byte("bytes")))

	err := o.Run(ctx, Input{JobID: j.ID, ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"})
	if err != nil {
		t.Fatalf("Run() error = %v, want success despite degradable indexing failure", err)
	}

	updated, _ := jobs.FindByID(ctx, j.ID)
	if updated.GetStatus() != job.StatusCompleted {
		t.Errorf("status = %v, want completed", updated.GetStatus())
	}
}

func TestOrchestrator_SummarizeContext_RejectsDegenerateActivity(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	o.summarizer = &fakeSummarizer{output: modelclient.SummarizeOutput{
		Activity: "Activity",
	}}

	block, err := o.summarizeContext(context.Background(), SynchronizedContext{
		StartSeconds: 0, EndSeconds: 10,
		Transcript: []modelclient.TranscriptSegment{{Text: "let's get started with the plan"}},
	})
	if err != nil {
		t.Fatalf("summarizeContext() error = %v", err)
	}
	if block.Activity == "Activity" {
		t.Error("expected degenerate \"Activity\" value to be rejected")
	}
	if block.Activity == "" {
		t.Error("expected a derived activity")
	}
}

func TestOrchestrator_SummarizeContext_EmptyContentSkipsLLMCall(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	calledLLM := false
	o.summarizer = &fakeSummarizerFunc{fn: func(modelclient.SummarizeInput) (modelclient.SummarizeOutput, error) {
		calledLLM = true
		return modelclient.SummarizeOutput{}, nil
	}}

	block, err := o.summarizeContext(context.Background(), SynchronizedContext{StartSeconds: 0, EndSeconds: 10})
	if err != nil {
		t.Fatalf("summarizeContext() error = %v", err)
	}
	if calledLLM {
		t.Error("expected the LLM call to be skipped for an empty context")
	}
	if block.Activity != "No speech detected" {
		t.Errorf("Activity = %q, want default placeholder", block.Activity)
	}
}

type fakeSummarizerFunc struct {
	fn func(modelclient.SummarizeInput) (modelclient.SummarizeOutput, error)
}

func (f *fakeSummarizerFunc) Invoke(_ context.Context, input modelclient.SummarizeInput) (modelclient.SummarizeOutput, error) {
	return f.fn(input)
}

func TestOrchestrator_CheckDurationDivergence_LogsWarningAboveThreshold(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	// |100-200|/200 = 0.5, above the 20% threshold.
	o.checkDurationDivergence(log, 100, 200)
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected a warning for 50%% divergence, got log output %q", buf.String())
	}

	// |100-105|/105 is under 5%, below the threshold.
	buf.Reset()
	o.checkDurationDivergence(log, 100, 105)
	if buf.Len() != 0 {
		t.Errorf("expected no log output for small divergence, got %q", buf.String())
	}
}
