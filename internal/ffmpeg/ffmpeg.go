// Package ffmpeg shells out to ffmpeg and ffprobe for probing, segmenting,
// frame extraction, and digest concatenation.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Executor runs ffmpeg operations. Construct it once per run so missing
// binaries fail before any scoring work starts.
type Executor struct {
	ffmpegPath  string
	ffprobePath string
}

// New resolves the ffmpeg and ffprobe binaries from PATH.
func New() (*Executor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// HasNVENC reports whether the resolved ffmpeg build carries the h264_nvenc
// encoder. Hardware runs must verify this before queueing any encode.
func (e *Executor) HasNVENC(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return bytes.Contains(output, []byte("h264_nvenc"))
}

// run executes ffmpeg with args. On failure the tail of stderr is folded into
// the error since ffmpeg reports its diagnosis there.
func (e *Executor) run(ctx context.Context, args ...string) error {
	log.Debug().Strs("args", args).Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, stderrTail(stderr.String()))
	}
	return nil
}

// stderrTail keeps the last few lines of ffmpeg stderr, which carry the
// actual failure after pages of stream banners.
func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}
