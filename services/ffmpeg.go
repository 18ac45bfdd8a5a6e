package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"language-toolkit/internal/errs"
	"language-toolkit/internal/limiter"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/transcription"
)

// FFmpeg shrinks audio that exceeds the transcription upload limit.
type FFmpeg struct {
	binary  string
	run     commandRunner
	timeout time.Duration
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" || path == "ffmpeg" {
		path = findExecutable("ffmpeg")
	}
	return &FFmpeg{binary: path, run: execRunner}
}

// Path returns the resolved binary.
func (f *FFmpeg) Path() string {
	return f.binary
}

// CheckInstalled verifies ffmpeg runs.
func (f *FFmpeg) CheckInstalled(ctx context.Context) error {
	if _, err := f.run(ctx, f.binary, "-version"); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", f.binary, err)
	}
	return nil
}

// CompressForUpload re-encodes audioPath as 16 kHz mono 64 kbps MP3 into
// outDir. Speech stays intelligible at that rate and an hour of audio fits
// well under the upload limit.
func (f *FFmpeg) CompressForUpload(ctx context.Context, audioPath, outDir string) (string, error) {
	const op = "compress"

	if err := limiter.AcquireConversionSlot(ctx); err != nil {
		return "", err
	}
	defer limiter.ReleaseConversionSlot()

	limit := execTimeout(f.timeout)
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", errs.Wrap(errs.KindInternal, op, err)
	}
	name := filepath.Base(audioPath)
	outPath := filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name))+".compressed.mp3")

	args := []string{
		"-i", audioPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-b:a", "64k",
		"-y",
		outPath,
	}
	logger.Debug("Compressing %s for upload", name)

	output, err := f.run(runCtx, f.binary, args...)
	if runCtx.Err() != nil {
		return "", commandTimedOut(ctx, runCtx, op, "compression of "+name, limit)
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
			return "", errs.E(errs.KindProviderUnavailable, op,
				fmt.Sprintf("ffmpeg not found (%s): install it or set LT_FFMPEG_PATH", f.binary))
		}
		return "", errs.Wrap(errs.KindUpstreamFailed, op,
			fmt.Errorf("ffmpeg failed: %w: %s", err, truncate(strings.TrimSpace(string(output)), 300)))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", errs.E(errs.KindUpstreamFailed, op, "ffmpeg produced no output for "+name)
	}
	if info.Size() > transcription.MaxUploadBytes {
		os.Remove(outPath)
		return "", errs.E(errs.KindInvalidParams, op,
			fmt.Sprintf("%s is still %d MB after compression (limit %d MB); split the recording",
				name, info.Size()>>20, transcription.MaxUploadBytes>>20))
	}
	return outPath, nil
}
