package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv() {
	for _, k := range []string{
		"PORT", "S3_BUCKET", "S3_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"QUEUE_URL", "MAX_CONCURRENT_TASKS", "CHUNK_WINDOW_SECONDS", "EMBEDDING_BATCH_SIZE",
		"EMBEDDING_API_KEY", "SUMMARIZER_API_KEY", "LOG_FORMAT", "LOG_LEVEL", "ALLOWED_ORIGINS",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_RequiredVariables(t *testing.T) {
	t.Run("missing S3_BUCKET returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("EMBEDDING_API_KEY", "embed-key")
		t.Setenv("SUMMARIZER_API_KEY", "summarize-key")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrS3BucketRequired)
	})

	t.Run("missing EMBEDDING_API_KEY returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("S3_BUCKET", "bucket")
		t.Setenv("SUMMARIZER_API_KEY", "summarize-key")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmbeddingAPIKeyRequired)
	})

	t.Run("missing SUMMARIZER_API_KEY returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("S3_BUCKET", "bucket")
		t.Setenv("EMBEDDING_API_KEY", "embed-key")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSummarizerAPIKeyRequired)
	})

	t.Run("all required variables present succeeds", func(t *testing.T) {
		clearEnv()
		t.Setenv("S3_BUCKET", "bucket")
		t.Setenv("EMBEDDING_API_KEY", "embed-key")
		t.Setenv("SUMMARIZER_API_KEY", "summarize-key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "embed-key", cfg.EmbeddingAPIKey)
		assert.Equal(t, "summarize-key", cfg.SummarizerAPIKey)
	})
}

func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("S3_BUCKET", "bucket")
	t.Setenv("EMBEDDING_API_KEY", "embed-key")
	t.Setenv("SUMMARIZER_API_KEY", "summarize-key")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()
	requiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, 10, cfg.MaxConcurrentTasks)
	assert.Equal(t, 300.0, cfg.ChunkWindowSeconds)
	assert.Equal(t, 2, cfg.SceneDetectionFrameSkip)
	assert.Equal(t, 2, cfg.ParallelMaxWorkers)
	assert.Equal(t, 120, cfg.QueueVisibilitySeconds)
	assert.Equal(t, 64, cfg.EmbeddingBatchSize)
	assert.Equal(t, 2, cfg.MaxBatchRetries)
	assert.True(t, cfg.UseFasterASR)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	requiredEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("MAX_CONCURRENT_TASKS", "20")
	t.Setenv("CHUNK_WINDOW_SECONDS", "600")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, 20, cfg.MaxConcurrentTasks)
	assert.Equal(t, 600.0, cfg.ChunkWindowSeconds)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidIntegerDefaults(t *testing.T) {
	clearEnv()
	requiredEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("MAX_CONCURRENT_TASKS", "invalid")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{S3Bucket: tt.bucket, S3Region: tt.region}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_QueueEnabled(t *testing.T) {
	assert.True(t, (&Config{QueueURL: "https://sqs.example.com/q"}).QueueEnabled())
	assert.False(t, (&Config{}).QueueEnabled())
}

func TestConfig_VectorStoreEnabled(t *testing.T) {
	assert.True(t, (&Config{VectorStoreDSN: "postgres://localhost/db"}).VectorStoreEnabled())
	assert.False(t, (&Config{}).VectorStoreEnabled())
}

func TestConfig_TaskLauncherEnabled(t *testing.T) {
	assert.True(t, (&Config{ECSClusterARN: "arn:aws:ecs:cluster", ECSTaskDefinitionARN: "arn:aws:ecs:task"}).TaskLauncherEnabled())
	assert.False(t, (&Config{ECSClusterARN: "arn:aws:ecs:cluster"}).TaskLauncherEnabled())
}

func TestConfig_Origins(t *testing.T) {
	assert.Equal(t, []string{"*"}, (&Config{}).Origins())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"},
		(&Config{AllowedOrigins: "https://a.example.com, https://b.example.com"}).Origins())
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		S3Bucket:           "bucket",
		S3Region:           "us-east-1",
		EmbeddingAPIKey:    "secret-key",
		MaxConcurrentTasks: 10,
		ChunkWindowSeconds: 300,
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "bucket")
	assert.Contains(t, str, "us-east-1")
	assert.NotContains(t, str, "secret-key")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{LogFormat: "json", LogLevel: "info"}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.IsType(t, &slog.JSONHandler{}, logger.Handler())

	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	testLogger := slog.New(handler)
	testLogger.Info("test message")

	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{LogFormat: "text", LogLevel: "debug"}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{S3Bucket: "bucket", EmbeddingAPIKey: "embed-key", SummarizerAPIKey: "summarize-key"}
		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("missing S3 bucket", func(t *testing.T) {
		cfg := &Config{EmbeddingAPIKey: "embed-key", SummarizerAPIKey: "summarize-key"}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrS3BucketRequired)
	})

	t.Run("missing embedding key", func(t *testing.T) {
		cfg := &Config{S3Bucket: "bucket", SummarizerAPIKey: "summarize-key"}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrEmbeddingAPIKeyRequired)
	})

	t.Run("missing summarizer key", func(t *testing.T) {
		cfg := &Config{S3Bucket: "bucket", EmbeddingAPIKey: "embed-key"}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrSummarizerAPIKeyRequired)
	})
}
