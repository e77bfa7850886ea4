package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ConcatOptions controls joining selected clips into one digest file.
// ListPath names the concat demuxer list file; it is left on disk so a failed
// run can be inspected, and removed with the rest of the temp tree.
type ConcatOptions struct {
	Inputs   []string
	Output   string
	ListPath string
	HWAccel  bool
}

// Concat re-encodes the inputs into a single MP4 via the concat demuxer.
// Inputs are re-encoded, not stream-copied, so clips whose encoder
// parameters differ still join.
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input clips provided")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	if err := writeConcatList(opts.ListPath, opts.Inputs); err != nil {
		return err
	}

	log.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Bool("hwaccel", opts.HWAccel).
		Msg("concatenating clips")

	return e.run(ctx, concatArgs(opts.ListPath, opts.Output, opts.HWAccel)...)
}

func writeConcatList(listPath string, inputs []string) error {
	if err := os.MkdirAll(filepath.Dir(listPath), 0o755); err != nil {
		return fmt.Errorf("failed to create concat list directory: %w", err)
	}

	var b strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("failed to resolve clip path: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", filepath.ToSlash(abs))
	}

	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

func concatArgs(listPath, output string, hwaccel bool) []string {
	if hwaccel {
		return []string{
			"-y",
			"-f", "concat",
			"-safe", "0",
			"-i", listPath,
			"-c:v", "h264_nvenc",
			"-preset", "p4",
			"-rc", "vbr",
			"-cq", "19",
			"-b:v", "10M",
			"-maxrate", "20M",
			"-bufsize", "20M",
			"-pix_fmt", "yuv420p",
			"-profile:v", "high",
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
			output,
		}
	}

	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-crf", "20",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		output,
	}
}
