// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrS3BucketRequired is returned when S3_BUCKET is not set.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required")
	// ErrEmbeddingAPIKeyRequired is returned when EMBEDDING_API_KEY is not set.
	ErrEmbeddingAPIKeyRequired = errors.New("config: EMBEDDING_API_KEY is required")
	// ErrSummarizerAPIKeyRequired is returned when SUMMARIZER_API_KEY is not set.
	ErrSummarizerAPIKeyRequired = errors.New("config: SUMMARIZER_API_KEY is required")
)

// Config holds all configuration for the application. All three binaries
// (server, dispatcher, orchestrator) load the same Config and use the
// subset of fields relevant to them.
type Config struct {
	// HTTP server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Object storage (BlobStore)
	S3Bucket           string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Region           string `env:"S3_REGION, default=us-east-1" json:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"` // non-empty to point at a local/minio endpoint
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"`

	// Job table and idempotency table (DynamoDB)
	JobTableName         string `env:"JOB_TABLE_NAME, default=lifestream-jobs" json:"job_table_name"`
	IdempotencyTableName string `env:"IDEMPOTENCY_TABLE_NAME, default=lifestream-idempotency" json:"idempotency_table_name"`

	// Work queue (SQS)
	QueueURL               string `env:"QUEUE_URL" json:"queue_url,omitempty"`
	QueueVisibilitySeconds int    `env:"QUEUE_VISIBILITY_SECONDS, default=120" json:"queue_visibility_seconds"`

	// Task launcher (ECS)
	ECSClusterARN        string `env:"ECS_CLUSTER_ARN" json:"ecs_cluster_arn,omitempty"`
	ECSTaskDefinitionARN string `env:"ECS_TASK_DEFINITION_ARN" json:"ecs_task_definition_arn,omitempty"`
	ECSSubnets           string `env:"ECS_SUBNETS" json:"ecs_subnets,omitempty"` // comma-separated

	// Vector store (Postgres + pgvector)
	VectorStoreDSN string `env:"VECTOR_STORE_DSN" json:"-"`

	// Dispatcher settings
	MaxConcurrentTasks int `env:"MAX_CONCURRENT_TASKS, default=10" json:"max_concurrent_tasks"`
	MetricsPort        int `env:"METRICS_PORT, default=9090" json:"metrics_port"`

	// Orchestrator pipeline settings
	ChunkWindowSeconds      float64 `env:"CHUNK_WINDOW_SECONDS, default=300" json:"chunk_window_seconds"`
	SceneDetectionFrameSkip int     `env:"SCENE_DETECTION_FRAME_SKIP, default=2" json:"scene_detection_frame_skip"`
	ParallelMaxWorkers      int     `env:"PARALLEL_MAX_WORKERS, default=2" json:"parallel_max_workers"`
	UseFasterASR            bool    `env:"USE_FASTER_ASR, default=true" json:"use_faster_asr"`
	TempDir                 string  `env:"TEMP_DIR, default=/tmp/lifestream" json:"temp_dir"`

	// Per-stage timeouts, in seconds. Zero means no timeout for that stage.
	StageTimeoutDownloadSec       int `env:"STAGE_TIMEOUT_DOWNLOAD_SEC, default=600" json:"stage_timeout_download_sec"`
	StageTimeoutAudioExtractSec   int `env:"STAGE_TIMEOUT_AUDIO_EXTRACT_SEC, default=300" json:"stage_timeout_audio_extract_sec"`
	StageTimeoutASRSec            int `env:"STAGE_TIMEOUT_ASR_SEC, default=900" json:"stage_timeout_asr_sec"`
	StageTimeoutSummarizeSec      int `env:"STAGE_TIMEOUT_SUMMARIZE_SEC, default=600" json:"stage_timeout_summarize_sec"`

	// Memory indexer settings
	EmbeddingBatchSize  int `env:"EMBEDDING_BATCH_SIZE, default=64" json:"embedding_batch_size"`
	MaxBatchRetries     int `env:"MAX_BATCH_RETRIES, default=2" json:"max_batch_retries"`

	// Speaker registry
	SpeakerRegistryPath string `env:"SPEAKER_REGISTRY_PATH, default=/etc/lifestream/speakers.json" json:"speaker_registry_path"`

	// Model endpoints and credentials
	DiarizerEndpoint    string `env:"DIARIZER_ENDPOINT" json:"diarizer_endpoint,omitempty"`
	DiarizerAPIKey      string `env:"DIARIZER_API_KEY" json:"-"`
	ASREndpoint         string `env:"ASR_ENDPOINT" json:"asr_endpoint,omitempty"`
	ASRAPIKey           string `env:"ASR_API_KEY" json:"-"`
	SceneDetectorEndpoint string `env:"SCENE_DETECTOR_ENDPOINT" json:"scene_detector_endpoint,omitempty"`
	SceneDetectorAPIKey   string `env:"SCENE_DETECTOR_API_KEY" json:"-"`
	KeyframerEndpoint   string `env:"KEYFRAMER_ENDPOINT" json:"keyframer_endpoint,omitempty"`
	KeyframerAPIKey     string `env:"KEYFRAMER_API_KEY" json:"-"`
	ClassifierEndpoint  string `env:"CLASSIFIER_ENDPOINT" json:"classifier_endpoint,omitempty"`
	ClassifierAPIKey    string `env:"CLASSIFIER_API_KEY" json:"-"`
	SummarizerEndpoint  string `env:"SUMMARIZER_ENDPOINT" json:"summarizer_endpoint,omitempty"`
	SummarizerAPIKey    string `env:"SUMMARIZER_API_KEY, required" json:"-"`
	EmbeddingEndpoint   string `env:"EMBEDDING_ENDPOINT" json:"embedding_endpoint,omitempty"`
	EmbeddingAPIKey     string `env:"EMBEDDING_API_KEY, required" json:"-"`
	SynthesizerEndpoint string `env:"SYNTHESIZER_ENDPOINT" json:"synthesizer_endpoint,omitempty"`
	SynthesizerAPIKey   string `env:"SYNTHESIZER_API_KEY" json:"-"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`

	// CORS settings for the HTTP API gateway
	AllowedOrigins string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"` // comma-separated
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// QueueEnabled returns true if an SQS queue URL is configured; when
// false, callers should fall back to an in-memory queue (local dev).
func (c *Config) QueueEnabled() bool {
	return c.QueueURL != ""
}

// VectorStoreEnabled returns true if a Postgres DSN is configured.
func (c *Config) VectorStoreEnabled() bool {
	return c.VectorStoreDSN != ""
}

// TaskLauncherEnabled returns true if ECS launch configuration is present.
func (c *Config) TaskLauncherEnabled() bool {
	return c.ECSClusterARN != "" && c.ECSTaskDefinitionARN != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "S3_BUCKET") {
			return nil, ErrS3BucketRequired
		}
		if strings.Contains(err.Error(), "EMBEDDING_API_KEY") {
			return nil, ErrEmbeddingAPIKeyRequired
		}
		if strings.Contains(err.Error(), "SUMMARIZER_API_KEY") {
			return nil, ErrSummarizerAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.S3Bucket == "" {
		return ErrS3BucketRequired
	}
	if c.EmbeddingAPIKey == "" {
		return ErrEmbeddingAPIKeyRequired
	}
	if c.SummarizerAPIKey == "" {
		return ErrSummarizerAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// Origins splits AllowedOrigins on commas into a slice suitable for
// server.Config.AllowedOrigins.
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return []string{"*"}
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, S3Bucket: %s, S3Region: %s, QueueURL: %s, MaxConcurrentTasks: %d, ChunkWindowSeconds: %.0f, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.S3Bucket,
		c.S3Region,
		c.QueueURL,
		c.MaxConcurrentTasks,
		c.ChunkWindowSeconds,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
