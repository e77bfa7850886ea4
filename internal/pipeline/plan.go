package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"mediacull/internal/config"
	"mediacull/internal/dedupe"
	"mediacull/internal/fingerprint"
	"mediacull/internal/jobstate"
	"mediacull/internal/manifest"
	"mediacull/internal/mediafile"
	"mediacull/internal/phash"
	"mediacull/internal/selection"
)

// PhotoPlan is the dry-run report for a photo batch: what would be scored,
// what the cache already covers, and where outputs would land. Building it
// touches nothing but the score cache, read-only.
type PhotoPlan struct {
	Type                 string   `json:"type"`
	Resume               bool     `json:"resume"`
	FilesToProcess       []string `json:"files_to_process"`
	FilesToSkip          []string `json:"files_to_skip"`
	EstimatedOutputPaths []string `json:"estimated_output_paths"`

	// CachedSelection previews the dedupe and selection outcome over the
	// files whose scores are already cached. It matches what a real resumed
	// run would pick if no new files scored higher.
	CachedSelection []string `json:"cached_selection,omitempty"`
}

// VideoPlan is the dry-run report for a video batch.
type VideoPlan struct {
	Type                 string   `json:"type"`
	Preset               string   `json:"preset"`
	ConcatInDigestFolder bool     `json:"concat_in_digest_folder"`
	Resume               bool     `json:"resume"`
	FilesToProcess       []string `json:"files_to_process"`
	FilesToSkip          []string `json:"files_to_skip"`
	EstimatedOutputPaths []string `json:"estimated_output_paths"`
}

// BuildPhotoPlan computes the photo plan. With resume enabled and a score
// cache on disk, each file's fingerprint decides process versus skip exactly
// as the real run would; without a cache every file processes.
func BuildPhotoPlan(ctx context.Context, opts PhotoOptions) (*PhotoPlan, error) {
	cfg := opts.Config
	paths := PhotoPathsIn(opts.Output)
	resumeEnabled := opts.Resume && !opts.Force

	files, err := mediafile.Scan(opts.Input, mediafile.ScanOptions{Kind: mediafile.KindImage})
	if err != nil {
		return nil, err
	}

	plan := &PhotoPlan{
		Type:           "photos",
		Resume:         resumeEnabled,
		FilesToProcess: []string{},
		FilesToSkip:    []string{},
		EstimatedOutputPaths: []string{
			paths.SelectedDir,
			paths.ManifestPath,
			paths.DBPath,
		},
	}
	if opts.ZipPath != "" {
		plan.EstimatedOutputPaths = append(plan.EstimatedOutputPaths, opts.ZipPath)
	}

	var store *fingerprint.Store
	if resumeEnabled {
		if _, err := os.Stat(paths.DBPath); err == nil {
			store, err = fingerprint.Open(paths.DBPath)
			if err != nil {
				return nil, err
			}
			defer store.Close()
		}
	}

	var cached []mediafile.ScoredCandidate
	for _, f := range files {
		if store == nil {
			plan.FilesToProcess = append(plan.FilesToProcess, f.Path)
			continue
		}
		identity, err := fingerprint.Compute(f.Path)
		if err != nil {
			plan.FilesToProcess = append(plan.FilesToProcess, f.Path)
			continue
		}
		rec, ok, err := store.Lookup(ctx, identity)
		if err != nil {
			return nil, err
		}
		if !ok {
			plan.FilesToProcess = append(plan.FilesToProcess, f.Path)
			continue
		}
		plan.FilesToSkip = append(plan.FilesToSkip, f.Path)

		cand := mediafile.ScoredCandidate{
			Candidate: mediafile.Candidate{Identity: identity, Path: f.Path},
			Score:     rec,
		}
		if stats, err := phash.AnalyzeFile(f.Path); err == nil {
			cand.PerceptualHash = stats.HashHex
		} else {
			log.Debug().Err(err).Str("path", f.Path).Msg("Hash unavailable for plan preview")
		}
		cached = append(cached, cand)
	}

	if len(cached) > 0 {
		var clusters []dedupe.Cluster
		if cfg.Photo.Dedupe {
			clusters = dedupe.ClusterCandidates(cached, cfg.Photo.DedupeHammingThreshold)
		} else {
			clusters = dedupe.Singletons(cached)
		}
		for _, c := range selection.Photos(dedupe.Representatives(clusters), cfg.Photo.TargetCount) {
			plan.CachedSelection = append(plan.CachedSelection, c.Path)
		}
	}

	return plan, nil
}

// BuildVideoPlan computes the video plan. Sources whose previous run
// completed and whose outputs still exist land in files_to_skip; everything
// else would execute. Estimated paths mirror the real run's layout per
// source, with a glob standing in for the clip names that only splitting can
// determine.
func BuildVideoPlan(opts VideoOptions) (*VideoPlan, error) {
	cfg := opts.Config
	paths := VideoPathsIn(opts.Output)
	resumeEnabled := opts.Resume && !opts.Force

	sources, err := videoSources(opts.Input)
	if err != nil {
		return nil, err
	}

	prev, err := manifest.LoadVideos(paths.ManifestPath)
	if err != nil {
		return nil, err
	}

	machine := jobstate.New(jobstate.VideoSteps)
	plan := &VideoPlan{
		Type:                 "videos",
		Preset:               cfg.Video.Preset,
		ConcatInDigestFolder: opts.ConcatInDigestFolder,
		Resume:               resumeEnabled,
		FilesToProcess:       []string{},
		FilesToSkip:          []string{},
		EstimatedOutputPaths: []string{paths.ManifestPath, paths.DBPath},
	}

	for _, f := range sources {
		unit := f.Path
		prevSrc := prev.Source(unit)
		if resumeEnabled && prevSrc != nil {
			machine.Restore(unit, stepStatuses(prevSrc.Steps))
			if machine.UnitComplete(unit) && completedArtifactsPresent(prevSrc) {
				plan.FilesToSkip = append(plan.FilesToSkip, unit)
				continue
			}
		}
		plan.FilesToProcess = append(plan.FilesToProcess, unit)

		stem := sourceStem(unit)
		clipsDir := paths.DigestClipsSourceDir(stem)
		plan.EstimatedOutputPaths = append(plan.EstimatedOutputPaths,
			filepath.Join(clipsDir, "clip_*.mp4"))
		if cfg.Video.Preset != config.PresetClipsOnly {
			plan.EstimatedOutputPaths = append(plan.EstimatedOutputPaths,
				paths.FinalDigestPath(stem))
			if opts.ConcatInDigestFolder {
				plan.EstimatedOutputPaths = append(plan.EstimatedOutputPaths,
					filepath.Join(clipsDir, "digest.mp4"))
			}
		}
	}

	return plan, nil
}
