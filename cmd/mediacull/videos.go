package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mediacull/internal/ffmpeg"
	"mediacull/internal/pipeline"
)

// CLI flags
var (
	targetSecondsFlag  float64
	minClipFlag        float64
	maxClipFlag        float64
	maxClipsFlag       int
	presetFlag         string
	keepTempFlag       bool
	concatInFolderFlag bool
	hwaccelFlag        bool
	deleteSplitFlag    bool
	videoDedupeFlag    bool
	videoThresholdFlag int
	dedupeScopeFlag    string
	minBrightnessFlag  float64
)

// videosCmd condenses source videos into a highlight digest.
var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Split source videos into clips and stitch the best into a digest",
	Long: `Videos splits each source video into short clips, scores the midpoint
frame of every clip with a vision model, drops near-duplicate and
near-black clips, and concatenates the best clips in chronological order
into <output>/<source>_digest.mp4. The selected clips are also copied
under <output>/digest_clips/<source>/.

The input may be a single video file or a folder of videos. Each source
gets its own digest; progress per source is tracked step by step (split,
score, select, concat) so an interrupted batch resumes with --resume.

Examples:
  mediacull videos -i ./gopro -o ./digest
  mediacull videos -i clip.mp4 -o ./out --target-digest-seconds 30
  mediacull videos -i ./gopro -o ./digest --preset shorts9x16
  mediacull videos -i ./gopro -o ./digest --preset clips_only --keep-temp
  mediacull videos -i ./gopro -o ./digest --dedupe-scope global --resume`,
	RunE: runVideos,
}

func init() {
	registerCommonFlags(videosCmd)
	videosCmd.Flags().Float64Var(&targetSecondsFlag, "target-digest-seconds", 0, "Digest duration budget in seconds (default: preset)")
	videosCmd.Flags().Float64Var(&minClipFlag, "min-clip", 2, "Drop split clips shorter than this many seconds")
	videosCmd.Flags().Float64Var(&maxClipFlag, "max-clip", 6, "Split the source into clips of at most this many seconds")
	videosCmd.Flags().IntVar(&maxClipsFlag, "max-selected-clips", 20, "Hard cap on clips admitted into one digest")
	videosCmd.Flags().StringVar(&presetFlag, "preset", "youtube16x9", "Output preset: youtube16x9, shorts9x16, or clips_only")
	videosCmd.Flags().BoolVar(&keepTempFlag, "keep-temp", false, "Keep the temp working directory after a successful run")
	videosCmd.Flags().BoolVar(&concatInFolderFlag, "concat-in-digest-folder", false, "Also write a digest.mp4 inside each source's clip folder")
	videosCmd.Flags().BoolVar(&hwaccelFlag, "use-hwaccel", false, "Encode with h264_nvenc when available")
	videosCmd.Flags().BoolVar(&deleteSplitFlag, "delete-split-files", false, "Remove a source's split clips once it finishes cleanly")
	videosCmd.Flags().BoolVar(&videoDedupeFlag, "dedupe", true, "Drop near-duplicate clips before selecting")
	videosCmd.Flags().IntVar(&videoThresholdFlag, "dedupe-threshold", 6, "Max Hamming distance between frame hashes to call two clips duplicates")
	videosCmd.Flags().StringVar(&dedupeScopeFlag, "dedupe-scope", "per_source_video", "Deduplicate within each source or across the batch: per_source_video or global")
	videosCmd.Flags().Float64Var(&minBrightnessFlag, "min-brightness", 15, "Reject clips whose frame's mean brightness falls below this (0-255)")
	rootCmd.AddCommand(videosCmd)
}

func runVideos(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fl := cmd.Flags()
	if fl.Changed("target-digest-seconds") {
		cfg.Video.TargetDigestSeconds = targetSecondsFlag
	}
	if fl.Changed("min-clip") {
		cfg.Video.MinClip = minClipFlag
	}
	if fl.Changed("max-clip") {
		cfg.Video.MaxClip = maxClipFlag
	}
	if fl.Changed("max-selected-clips") {
		cfg.Video.MaxSelectedClips = maxClipsFlag
	}
	if fl.Changed("preset") {
		cfg.Video.Preset = presetFlag
	}
	if fl.Changed("keep-temp") {
		cfg.KeepTemp = keepTempFlag
	}
	if fl.Changed("use-hwaccel") {
		cfg.Video.HWAccel = hwaccelFlag
	}
	if fl.Changed("delete-split-files") {
		cfg.Video.DeleteSplitFiles = deleteSplitFlag
	}
	if fl.Changed("dedupe") {
		cfg.Video.Dedupe = videoDedupeFlag
	}
	if fl.Changed("dedupe-threshold") {
		cfg.Video.DedupeHammingThreshold = videoThresholdFlag
	}
	if fl.Changed("dedupe-scope") {
		cfg.Video.DedupeScope = dedupeScopeFlag
	}
	if fl.Changed("min-brightness") {
		cfg.MinBrightness = minBrightnessFlag
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}

	input := inputFlag
	if input == "" {
		input = promptForDirectory()
	}
	input, err = resolveInputPath(input)
	if err != nil {
		return err
	}
	output, err := resolveOutputDir(outputFlag, !dryRunFlag)
	if err != nil {
		return err
	}

	opts := pipeline.VideoOptions{
		Input:                input,
		Output:               output,
		Config:               cfg,
		Resume:               resumeFlag,
		Force:                forceFlag,
		ConcatInDigestFolder: concatInFolderFlag,
	}

	if dryRunFlag {
		plan, err := pipeline.BuildVideoPlan(opts)
		if err != nil {
			return err
		}
		return printJSON(plan)
	}

	opts.FFmpeg, err = ffmpeg.New()
	if err != nil {
		return err
	}
	if cfg.Video.HWAccel && !opts.FFmpeg.HasNVENC(cmd.Context()) {
		log.Warn().Msg("h264_nvenc not available, falling back to software encoding")
		cfg.Video.HWAccel = false
	}

	if err := resolveModel(cfg); err != nil {
		return err
	}
	opts.Scorer, err = initScorer(cmd, cfg)
	if err != nil {
		return err
	}

	started := time.Now()
	m, err := pipeline.RunVideos(cmd.Context(), opts)
	if err != nil {
		return err
	}

	log.Info().
		Str("took", formatDurationShort(time.Since(started))).
		Int("sources", len(m.Sources)).
		Msg("Video run complete")
	return printJSON(m.Summary)
}
