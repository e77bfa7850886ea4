package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Clip describes one segment produced by Split. Start and End are offsets on
// the source timeline in seconds, accumulated from the kept segments.
type Clip struct {
	SourcePath string
	Path       string
	Start      float64
	End        float64
	Duration   float64
	Width      int
	Height     int
	FPS        float64
}

// SplitOptions controls segmenting one source video.
type SplitOptions struct {
	Source    string
	OutputDir string
	MinClip   float64
	MaxClip   float64
	HWAccel   bool
}

// Split re-encodes the source into fixed-length segments, forcing keyframes on
// the segment grid so every clip starts clean. Segments shorter than MinClip
// (usually the remainder at the end) are dropped.
func (e *Executor) Split(ctx context.Context, opts SplitOptions) ([]Clip, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clip directory: %w", err)
	}

	pattern := filepath.Join(opts.OutputDir, "clip_%04d.mp4")
	if err := e.run(ctx, segmentArgs(opts.Source, pattern, opts.MaxClip, opts.HWAccel)...); err != nil {
		return nil, err
	}

	clipPaths, err := filepath.Glob(filepath.Join(opts.OutputDir, "clip_*.mp4"))
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	sort.Strings(clipPaths)

	clips := make([]Clip, 0, len(clipPaths))
	start := 0.0
	for _, clipPath := range clipPaths {
		info, err := e.Probe(ctx, clipPath)
		if err != nil {
			return nil, fmt.Errorf("failed to probe clip %s: %w", clipPath, err)
		}
		if info.Duration < opts.MinClip {
			log.Debug().Str("clip", clipPath).Float64("duration", info.Duration).Msg("dropping short segment")
			continue
		}

		end := start + info.Duration
		clips = append(clips, Clip{
			SourcePath: opts.Source,
			Path:       clipPath,
			Start:      start,
			End:        end,
			Duration:   info.Duration,
			Width:      info.Width,
			Height:     info.Height,
			FPS:        info.FPS,
		})
		start = end
	}

	log.Info().Str("source", opts.Source).Int("clips", len(clips)).Msg("split video into clips")
	return clips, nil
}

func segmentArgs(source, pattern string, maxClip float64, hwaccel bool) []string {
	segTime := strconv.FormatFloat(maxClip, 'f', -1, 64)
	keyframes := fmt.Sprintf("expr:gte(t,n_forced*%s)", segTime)

	if hwaccel {
		return []string{
			"-y",
			"-hwaccel", "cuda",
			"-i", source,
			"-c:v", "h264_nvenc",
			"-preset", "p4",
			"-rc", "vbr",
			"-cq", "19",
			"-b:v", "10M",
			"-maxrate", "20M",
			"-bufsize", "20M",
			"-pix_fmt", "yuv420p",
			"-force_key_frames", keyframes,
			"-c:a", "aac",
			"-b:a", "128k",
			"-f", "segment",
			"-segment_time", segTime,
			"-reset_timestamps", "1",
			pattern,
		}
	}

	return []string{
		"-y",
		"-i", source,
		"-c:v", "libx264",
		"-crf", "22",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-force_key_frames", keyframes,
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "segment",
		"-segment_time", segTime,
		"-reset_timestamps", "1",
		pattern,
	}
}
