package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/infrastructure/logger"
	"github.com/bnema/convqueue/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
	ErrTimeout     = errors.New("encoding tool timed out")
)

const (
	// maxOutput caps how much tool output is kept for the status detail.
	maxOutput = 64 * 1024
	// waitDelay bounds how long a killed process may keep its output pipes open.
	waitDelay = 5 * time.Second
)

// Executor runs ffmpeg and ffprobe as child processes.
type Executor struct {
	ffmpegPath  string
	ffprobePath string
}

func NewExecutor(ffmpegPath, ffprobePath string) *Executor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Executor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Available reports whether the ffmpeg binary can be found. The lookup runs
// on every call so a tool installed after startup is picked up.
func (e *Executor) Available() bool {
	if _, err := exec.LookPath(e.ffmpegPath); err != nil {
		logger.Debug().Err(err).Str("path", e.ffmpegPath).Msg("ffmpeg not found")
		return false
	}
	return true
}

// Execute runs ffmpeg with the already rendered arguments. A zero timeout means
// no limit. When ctx is canceled the process is killed and ctx.Err() returned.
func (e *Executor) Execute(ctx context.Context, req domain.ConversionRequest, timeout time.Duration) (string, error) {
	if err := validatePath(req.SourcePath); err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	if err := validatePath(req.DestinationPath); err != nil {
		return "", fmt.Errorf("destination: %w", err)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.ffmpegPath, req.Arguments...)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	output := truncateOutput(string(out))

	switch {
	case ctx.Err() != nil:
		return output, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return output, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case err != nil:
		return output, fmt.Errorf("ffmpeg: %w", err)
	}
	return output, nil
}

// Probe reads stream information with ffprobe.
func (e *Executor) Probe(ctx context.Context, inputPath string) (*domain.ProbeResult, error) {
	if err := validatePath(inputPath); err != nil {
		return nil, err
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (*domain.ProbeResult, error) {
	var result domain.ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	result.RawJSON = string(output)
	return &result, nil
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

// truncateOutput keeps the tail of the output, where ffmpeg reports errors.
func truncateOutput(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return "..." + s[len(s)-maxOutput:]
}

var _ port.ConversionExecutor = (*Executor)(nil)
