package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// AudioExtractor pulls a 16 kHz mono PCM waveform (and its observed
// duration) out of a downloaded video file, per stage 2.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath string) (waveform []byte, durationSeconds float64, err error)
}

// FFmpegAudioExtractor implements AudioExtractor using the ffmpeg CLI.
type FFmpegAudioExtractor struct {
	ffmpegPath string
}

// NewFFmpegAudioExtractor creates a new FFmpegAudioExtractor. If
// ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegAudioExtractor(ffmpegPath string) *FFmpegAudioExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegAudioExtractor{ffmpegPath: ffmpegPath}
}

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// Extract runs ffmpeg to resample the video's audio track to 16 kHz mono
// PCM and reports the stream-observed duration for the divergence check
// against client_duration_hint.
func (e *FFmpegAudioExtractor) Extract(ctx context.Context, videoPath string) ([]byte, float64, error) {
	outPath := videoPath + ".pcm.wav"
	defer func() { _ = os.Remove(outPath) }()

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-i", videoPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"-hide_banner",
		"-y",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("orchestrator: ffmpeg audio extraction: %w: %s", err, stderr.String())
	}

	duration, err := parseDuration(stderr.String())
	if err != nil {
		return nil, 0, fmt.Errorf("orchestrator: parse observed duration: %w", err)
	}

	waveform, err := os.ReadFile(outPath) // #nosec G304 - path is our own temp file
	if err != nil {
		return nil, 0, fmt.Errorf("orchestrator: read extracted waveform: %w", err)
	}

	return waveform, duration, nil
}

func parseDuration(ffmpegOutput string) (float64, error) {
	matches := durationPattern.FindStringSubmatch(ffmpegOutput)
	if len(matches) < 5 {
		return 0, fmt.Errorf("could not parse duration from ffmpeg output")
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	ms, _ := strconv.ParseFloat(matches[4], 64)

	msDivisor := 1.0
	for i := 0; i < len(matches[4]); i++ {
		msDivisor *= 10
	}

	return hours*3600 + minutes*60 + seconds + ms/msDivisor, nil
}
