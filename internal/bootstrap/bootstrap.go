// Package bootstrap wires concrete adapters to the ports each binary
// depends on, selecting cloud-backed or in-memory/local implementations
// based on configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifestream/core/internal/blobstore"
	"github.com/lifestream/core/internal/config"
	"github.com/lifestream/core/internal/idempotency"
	"github.com/lifestream/core/internal/indexer"
	"github.com/lifestream/core/internal/job"
	"github.com/lifestream/core/internal/metrics"
	"github.com/lifestream/core/internal/modelclient"
	"github.com/lifestream/core/internal/orchestrator"
	"github.com/lifestream/core/internal/queue"
	"github.com/lifestream/core/internal/search"
	"github.com/lifestream/core/internal/speaker"
	"github.com/lifestream/core/internal/tasklauncher"
	"github.com/lifestream/core/internal/vectorstore"
)

// ServerDependencies holds everything cmd/server needs to build its
// HTTP handlers.
type ServerDependencies struct {
	Blobs       blobstore.Store
	Jobs        job.Table
	Idempotency idempotency.Table
	Queue       queue.Queue
	Search      *search.Service
	Metrics     *metrics.Registry
}

// NewServerDependencies wires the API gateway's dependencies.
func NewServerDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ServerDependencies, error) {
	blobs, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	jobs, idem, err := newTables(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	q, err := newQueue(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	vstore, err := newVectorStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	synthesizer, err := newSynthesizer(cfg)
	if err != nil {
		return nil, err
	}
	reg := metrics.New()
	searchSvc := search.New(embedder, vstore, synthesizer, logger).WithMetrics(reg)

	return &ServerDependencies{Blobs: blobs, Jobs: jobs, Idempotency: idem, Queue: q, Search: searchSvc, Metrics: reg}, nil
}

// DispatcherDependencies holds everything cmd/dispatcher needs to build
// its poll loop.
type DispatcherDependencies struct {
	Queue       queue.Queue
	Jobs        job.Table
	Idempotency idempotency.Table
	Launcher    tasklauncher.Launcher
}

// NewDispatcherDependencies wires the dispatcher's dependencies. If no
// ECS cluster is configured, Launcher runs orchestrator passes
// in-process via runOrchestrator — intended for local development.
func NewDispatcherDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, runOrchestrator tasklauncher.RunFunc) (*DispatcherDependencies, error) {
	q, err := newQueue(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	jobs, idem, err := newTables(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	launcher, err := newTaskLauncher(ctx, cfg, logger, runOrchestrator)
	if err != nil {
		return nil, err
	}

	return &DispatcherDependencies{Queue: q, Jobs: jobs, Idempotency: idem, Launcher: launcher}, nil
}

// OrchestratorDependencies holds everything cmd/orchestrator needs to
// process a single dispatched job.
type OrchestratorDependencies struct {
	Jobs    job.Table
	Blobs   blobstore.Store
	Orch    *orchestrator.Orchestrator
	Metrics *metrics.Registry
}

// NewOrchestratorDependencies wires the orchestrator's model clients,
// blob store, job table, speaker registry, and memory indexer.
func NewOrchestratorDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*OrchestratorDependencies, error) {
	blobs, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	jobs, _, err := newTables(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	vstore, err := newVectorStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	registry, err := speaker.Load(cfg.SpeakerRegistryPath, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load speaker registry: %w", err)
	}

	diarizerClient, err := modelclient.New(cfg.DiarizerEndpoint, cfg.DiarizerAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: diarizer client: %w", err)
	}
	asrClient, err := modelclient.New(cfg.ASREndpoint, cfg.ASRAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: asr client: %w", err)
	}
	sceneClient, err := modelclient.New(cfg.SceneDetectorEndpoint, cfg.SceneDetectorAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: scene detector client: %w", err)
	}
	keyframerClient, err := modelclient.New(cfg.KeyframerEndpoint, cfg.KeyframerAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: keyframer client: %w", err)
	}
	classifierClient, err := modelclient.New(cfg.ClassifierEndpoint, cfg.ClassifierAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: classifier client: %w", err)
	}
	summarizerClient, err := modelclient.New(cfg.SummarizerEndpoint, cfg.SummarizerAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: summarizer client: %w", err)
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	idxCfg := indexer.DefaultConfig()
	if cfg.EmbeddingBatchSize > 0 {
		idxCfg.BatchSize = cfg.EmbeddingBatchSize
	}
	if cfg.MaxBatchRetries > 0 {
		idxCfg.MaxBatchRetries = cfg.MaxBatchRetries
	}
	idx := indexer.New(embedder, vstore, logger, idxCfg)

	orchCfg := orchestrator.DefaultConfig()
	if cfg.ChunkWindowSeconds > 0 {
		orchCfg.ChunkWindowSeconds = cfg.ChunkWindowSeconds
	}
	if cfg.SceneDetectionFrameSkip > 0 {
		orchCfg.SceneDetectionFrameSkip = cfg.SceneDetectionFrameSkip
	}
	if cfg.ParallelMaxWorkers > 0 {
		orchCfg.ParallelMaxWorkers = cfg.ParallelMaxWorkers
	}
	orchCfg.StageTimeouts = map[string]time.Duration{
		orchestrator.StageDownload:        time.Duration(cfg.StageTimeoutDownloadSec) * time.Second,
		orchestrator.StageAudioExtraction: time.Duration(cfg.StageTimeoutAudioExtractSec) * time.Second,
		orchestrator.StageASR:             time.Duration(cfg.StageTimeoutASRSec) * time.Second,
		orchestrator.StageSummarization:   time.Duration(cfg.StageTimeoutSummarizeSec) * time.Second,
	}

	reg := metrics.New()
	orch := orchestrator.New(
		jobs, blobs, registry,
		modelclient.NewDiarizer(diarizerClient),
		modelclient.NewASR(asrClient),
		modelclient.NewSceneDetector(sceneClient),
		modelclient.NewKeyframer(keyframerClient),
		modelclient.NewMeetingClassifier(classifierClient),
		modelclient.NewSummarizer(summarizerClient),
		orchestrator.NewFFmpegAudioExtractor(""),
		idx,
		logger, orchCfg,
	).WithMetrics(reg)

	return &OrchestratorDependencies{Jobs: jobs, Blobs: blobs, Orch: orch, Metrics: reg}, nil
}

func newEmbedder(cfg *config.Config) (*modelclient.Embedder, error) {
	client, err := modelclient.New(cfg.EmbeddingEndpoint, cfg.EmbeddingAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: embedding client: %w", err)
	}
	return modelclient.NewEmbedder(client), nil
}

// newSynthesizer returns nil when no synthesizer endpoint is configured;
// search.Service treats a nil synthesizer as "answer synthesis disabled"
// and degrades query requests to results-only.
func newSynthesizer(cfg *config.Config) (*modelclient.Synthesizer, error) {
	if cfg.SynthesizerEndpoint == "" {
		return nil, nil
	}
	client, err := modelclient.New(cfg.SynthesizerEndpoint, cfg.SynthesizerAPIKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: synthesizer client: %w", err)
	}
	return modelclient.NewSynthesizer(client), nil
}

func newBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobstore.Store, error) {
	if cfg.S3Enabled() {
		store, err := blobstore.NewS3Store(ctx, blobstore.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: create S3 store: %w", err)
		}
		logger.Info("S3 blob store configured", slog.String("bucket", cfg.S3Bucket), slog.String("region", cfg.S3Region))
		return store, nil
	}

	localStore, err := blobstore.NewLocalStore(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create local blob store: %w", err)
	}
	logger.Info("local blob store configured", slog.String("temp_dir", cfg.TempDir))
	return localStore, nil
}

func newTables(ctx context.Context, cfg *config.Config, logger *slog.Logger) (job.Table, idempotency.Table, error) {
	if !cfg.S3Enabled() {
		logger.Info("in-memory job and idempotency tables configured")
		return job.NewMemoryTable(), idempotency.NewMemoryTable(), nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB tables configured",
		slog.String("job_table", cfg.JobTableName),
		slog.String("idempotency_table", cfg.IdempotencyTableName))
	return job.NewDynamoTable(client, cfg.JobTableName), idempotency.NewDynamoTable(client, cfg.IdempotencyTableName), nil
}

func newQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Queue, error) {
	if !cfg.QueueEnabled() {
		logger.Info("in-memory queue configured")
		return queue.NewMemoryQueue(64), nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsCfg)
	logger.Info("SQS queue configured", slog.String("queue_url", cfg.QueueURL))
	return queue.NewSQSQueue(client, cfg.QueueURL, int32(cfg.QueueVisibilitySeconds)), nil
}

func newVectorStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (vectorstore.Store, error) {
	if !cfg.VectorStoreEnabled() {
		logger.Info("in-memory vector store configured")
		return vectorstore.NewMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.VectorStoreDSN)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect vector store: %w", err)
	}
	logger.Info("Postgres vector store configured")
	return vectorstore.NewPostgresStore(pool), nil
}

// newTaskLauncher returns an ECSLauncher when a cluster is configured,
// otherwise a LocalLauncher that runs the orchestrator in-process — the
// dispatcher and orchestrator then run as one binary for local development.
func newTaskLauncher(ctx context.Context, cfg *config.Config, logger *slog.Logger, run tasklauncher.RunFunc) (tasklauncher.Launcher, error) {
	if !cfg.TaskLauncherEnabled() {
		logger.Info("local task launcher configured; orchestrator runs in-process")
		return tasklauncher.NewLocalLauncher(run, logger), nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := ecs.NewFromConfig(awsCfg)
	logger.Info("ECS task launcher configured", slog.String("cluster", cfg.ECSClusterARN))
	return tasklauncher.NewECSLauncher(client, tasklauncher.ECSConfig{
		Cluster:        cfg.ECSClusterARN,
		TaskDefinition: cfg.ECSTaskDefinitionARN,
		ContainerName:  "orchestrator",
		Subnets:        splitCSV(cfg.ECSSubnets),
		AssignPublicIP: false,
	}), nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: load AWS config: %w", err)
	}
	return awsCfg, nil
}

// splitCSV splits a comma-separated list of ECS subnet IDs, dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
