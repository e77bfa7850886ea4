package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mediacull/internal/pipeline"
)

// CLI flags
var (
	targetCountFlag    int
	photoDedupeFlag    bool
	photoThresholdFlag int
	zipFlag            string
)

// photosCmd selects the best photos from a directory.
var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "Score a directory of photos and keep the best ones",
	Long: `Photos scores every image in the input directory with a vision model,
drops near-duplicate shots, and copies the top-scoring photos into
<output>/selected/ with rank-prefixed names. A manifest with every score
and the selection is written under <output>/scores/.

Scores are cached by content fingerprint in a local SQLite database.
Rerun with --resume to pick up where an interrupted run stopped, or
--force to rescore everything.

Examples:
  mediacull photos -i ./shoot -o ./culled --target-count 20
  mediacull photos -i ./shoot -o ./culled --resume
  mediacull photos -i ./shoot -o ./culled --zip ./culled/best.zip
  mediacull photos -i ./shoot -o ./culled --provider gemini -m gemini-3-flash-preview
  mediacull photos -i ./shoot -o ./culled --dry-run`,
	RunE: runPhotos,
}

func init() {
	registerCommonFlags(photosCmd)
	photosCmd.Flags().IntVar(&targetCountFlag, "target-count", 10, "Number of photos to select")
	photosCmd.Flags().BoolVar(&photoDedupeFlag, "dedupe", true, "Drop near-duplicate photos before selecting")
	photosCmd.Flags().IntVar(&photoThresholdFlag, "dedupe-threshold", 6, "Max Hamming distance between perceptual hashes to call two photos duplicates")
	photosCmd.Flags().StringVar(&zipFlag, "zip", "", "Also archive the selected photos into this zip file")
	rootCmd.AddCommand(photosCmd)
}

func runPhotos(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fl := cmd.Flags()
	if fl.Changed("target-count") {
		cfg.Photo.TargetCount = targetCountFlag
	}
	if fl.Changed("dedupe") {
		cfg.Photo.Dedupe = photoDedupeFlag
	}
	if fl.Changed("dedupe-threshold") {
		cfg.Photo.DedupeHammingThreshold = photoThresholdFlag
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}

	input := inputFlag
	if input == "" {
		input = promptForDirectory()
	}
	input, err = resolveInputDir(input)
	if err != nil {
		return err
	}
	output, err := resolveOutputDir(outputFlag, !dryRunFlag)
	if err != nil {
		return err
	}

	opts := pipeline.PhotoOptions{
		Input:   input,
		Output:  output,
		Config:  cfg,
		Resume:  resumeFlag,
		Force:   forceFlag,
		ZipPath: zipFlag,
	}

	if dryRunFlag {
		plan, err := pipeline.BuildPhotoPlan(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(plan)
	}

	if err := resolveModel(cfg); err != nil {
		return err
	}
	opts.Scorer, err = initScorer(cmd, cfg)
	if err != nil {
		return err
	}

	started := time.Now()
	m, err := pipeline.RunPhotos(cmd.Context(), opts)
	if err != nil {
		return err
	}

	selected := 0
	for _, p := range m.Photos {
		if p.Selected {
			selected++
		}
	}
	log.Info().
		Str("took", formatDurationShort(time.Since(started))).
		Int("selected", selected).
		Msg("Photo run complete")
	return printJSON(m.Summary)
}
