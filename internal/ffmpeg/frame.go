package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ExtractFrame writes the frame at the clip's midpoint to outputPath as a
// high-quality JPEG. The midpoint avoids the fade-ins and transitions that
// cluster at clip boundaries.
func (e *Executor) ExtractFrame(ctx context.Context, clipPath, outputPath string) error {
	info, err := e.Probe(ctx, clipPath)
	if err != nil {
		return err
	}

	timestamp := info.Duration / 2
	if timestamp < 0 {
		timestamp = 0
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create frame directory: %w", err)
	}

	return e.run(ctx,
		"-y",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", clipPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	)
}
