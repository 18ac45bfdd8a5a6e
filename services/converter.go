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

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/limiter"
	"language-toolkit/internal/logger"
)

// ConvertFormats lists the output formats accepted by convert-format.
var ConvertFormats = []string{"pdf", "png", "docx", "odt", "html", "txt"}

// ValidConvertFormat reports whether format is a supported output format.
func ValidConvertFormat(format string) bool {
	for _, f := range ConvertFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func execTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return config.ExecTimeoutConvert
	}
	return d
}

// commandTimedOut maps a run that hit its own exec deadline to an upstream
// failure. The parent's deadline or cancellation is returned as is.
func commandTimedOut(parent, runCtx context.Context, op, what string, limit time.Duration) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return errs.E(errs.KindUpstreamFailed, op, fmt.Sprintf("%s timed out after %s", what, limit))
	}
	return runCtx.Err()
}

// Converter drives a headless LibreOffice to convert office documents.
type Converter struct {
	binary  string
	run     commandRunner
	timeout time.Duration
}

// NewConverter locates the office binary. An empty path or a bare
// "soffice" triggers a search of the usual install locations.
func NewConverter(path string) *Converter {
	if path == "" || path == "soffice" {
		path = findExecutable("soffice", "libreoffice")
	}
	return &Converter{binary: path, run: execRunner}
}

// Path returns the resolved binary.
func (c *Converter) Path() string {
	return c.binary
}

// CheckInstalled verifies the converter binary runs.
func (c *Converter) CheckInstalled(ctx context.Context) error {
	if _, err := c.run(ctx, c.binary, "--version"); err != nil {
		return fmt.Errorf("LibreOffice not found at %s: %w", c.binary, err)
	}
	return nil
}

// Convert writes inputPath converted to format into outDir and returns the
// output path. Conversions share a process-wide slot limit.
func (c *Converter) Convert(ctx context.Context, inputPath, outDir, format string) (string, error) {
	const op = "convert"
	format = strings.ToLower(format)
	if !ValidConvertFormat(format) {
		return "", errs.E(errs.KindInvalidParams, op, fmt.Sprintf("unsupported output format %q", format))
	}

	if err := limiter.AcquireConversionSlot(ctx); err != nil {
		return "", err
	}
	defer limiter.ReleaseConversionSlot()

	limit := execTimeout(c.timeout)
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", errs.Wrap(errs.KindInternal, op, err)
	}

	// Each run gets its own profile; concurrent instances sharing one
	// profile exit immediately without converting.
	profile, err := os.MkdirTemp("", config.TempDirPrefix+"lo_")
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, op, err)
	}
	defer os.RemoveAll(profile)

	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
		"--headless", "--norestore",
		"--convert-to", format,
		"--outdir", outDir,
		inputPath,
	}
	logger.Debug("Converting %s to %s", filepath.Base(inputPath), format)

	output, err := c.run(runCtx, c.binary, args...)
	if runCtx.Err() != nil {
		return "", commandTimedOut(ctx, runCtx, op, "conversion of "+filepath.Base(inputPath), limit)
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
			return "", errs.E(errs.KindProviderUnavailable, op,
				fmt.Sprintf("LibreOffice not found (%s): install it or set LT_CONVERTER_PATH", c.binary))
		}
		return "", errs.Wrap(errs.KindUpstreamFailed, op,
			fmt.Errorf("conversion failed: %w: %s", err, truncate(strings.TrimSpace(string(output)), 300)))
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(outDir, stem+"."+format)
	if _, err := os.Stat(outPath); err != nil {
		return "", errs.E(errs.KindUpstreamFailed, op,
			fmt.Sprintf("converter produced no %s output for %s", format, filepath.Base(inputPath)))
	}
	return outPath, nil
}
