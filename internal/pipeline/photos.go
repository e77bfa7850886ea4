package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mediacull/internal/config"
	"mediacull/internal/dedupe"
	"mediacull/internal/export"
	"mediacull/internal/fingerprint"
	"mediacull/internal/manifest"
	"mediacull/internal/mediafile"
	"mediacull/internal/phash"
	"mediacull/internal/scorer"
	"mediacull/internal/selection"
)

// PhotoOptions configures one photo run.
type PhotoOptions struct {
	Input  string
	Output string
	Config *config.Config
	Resume bool
	Force  bool
	Scorer scorer.Scorer

	// ZipPath, when set, archives the selected photos after the run.
	ZipPath string
}

// RunPhotos scores every image under Input, deduplicates, selects the top
// target_count, copies the winners into selected/, and writes the manifest.
// A single photo's failure is recorded and counted, never fatal to the batch.
func RunPhotos(ctx context.Context, opts PhotoOptions) (*manifest.PhotoManifest, error) {
	started := time.Now()
	cfg := opts.Config

	paths := PhotoPathsIn(opts.Output)
	for _, dir := range []string{paths.SelectedDir, paths.ScoresDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	store, err := fingerprint.Open(paths.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	files, err := mediafile.Scan(opts.Input, mediafile.ScanOptions{Kind: mediafile.KindImage})
	if err != nil {
		return nil, err
	}

	m := &manifest.PhotoManifest{
		Version:   manifest.Version,
		RunID:     newRunID(),
		CreatedAt: time.Now().UTC(),
		Input:     opts.Input,
		Config:    photoRunConfig(cfg, opts),
	}
	writer := manifest.NewWriter(paths.ManifestPath)
	resumeEnabled := opts.Resume && !opts.Force

	log.Info().
		Str("run_id", m.RunID).
		Int("files", len(files)).
		Bool("resume", resumeEnabled).
		Bool("force", opts.Force).
		Msg("Photo run started")

	records := make([]manifest.PhotoRecord, len(files))
	finished := make([]bool, len(files))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	sem := make(chan struct{}, cfg.Workers)

	for i, f := range files {
		wg.Add(1)
		go func(idx int, file mediafile.File) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			rec := scoreOnePhoto(ctx, store, opts.Scorer, file, resumeEnabled)

			mu.Lock()
			records[idx] = rec
			finished[idx] = true
			m.Photos = finishedOnly(records, finished)
			m.Summary = photoSummary(m.Photos, len(files))
			if err := writer.Flush(m); err != nil {
				log.Warn().Err(err).Msg("Incremental manifest flush failed")
			}
			mu.Unlock()
		}(i, f)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.Photos = records

	// Dedup and selection run over the records that scored cleanly.
	cands := photoCandidates(records)
	var clusters []dedupe.Cluster
	if cfg.Photo.Dedupe {
		clusters = dedupe.ClusterCandidates(cands, cfg.Photo.DedupeHammingThreshold)
	} else {
		clusters = dedupe.Singletons(cands)
	}
	reps := dedupe.Representatives(clusters)

	idxByPath := make(map[string]int, len(records))
	for i := range records {
		idxByPath[records[i].Path] = i
	}
	for _, cl := range clusters {
		for _, dup := range cl.Duplicates() {
			if i, ok := idxByPath[dup.Path]; ok {
				records[i].DuplicateOf = cl.Representative.Path
			}
		}
	}

	picked := selection.Photos(reps, cfg.Photo.TargetCount)
	for rank, c := range picked {
		i, ok := idxByPath[c.Path]
		if !ok {
			continue
		}
		dst := filepath.Join(paths.SelectedDir, fmt.Sprintf("%03d_%s", rank+1, filepath.Base(c.Path)))
		if err := copyFile(c.Path, dst); err != nil {
			log.Error().Err(err).Str("path", c.Path).Msg("Failed to copy selected photo")
			if records[i].Error == "" {
				records[i].Error = err.Error()
			}
			continue
		}
		records[i].Selected = true
	}

	m.Summary = photoSummary(records, len(files))
	m.Summary.RemovedDuplicates = len(cands) - len(reps)
	m.Summary.DurationSeconds = roundSeconds(time.Since(started))
	if err := writer.Flush(m); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if opts.ZipPath != "" {
		if err := export.Archive(opts.ZipPath, paths.SelectedDir); err != nil {
			return nil, fmt.Errorf("failed to export selected photos: %w", err)
		}
		log.Info().Str("archive", opts.ZipPath).Msg("Selected photos archived")
	}

	log.Info().
		Int("total", m.Summary.TotalFiles).
		Int("processed", m.Summary.Processed).
		Int("skipped", m.Summary.Skipped).
		Int("failed", m.Summary.Failed).
		Int("selected", len(picked)).
		Int("removed_duplicates", m.Summary.RemovedDuplicates).
		Msg("Photo run complete")

	return m, nil
}

// scoreOnePhoto takes one image through identity, hashing, EXIF, the cache
// gate, and the scorer. Failures land in the record's Error field.
func scoreOnePhoto(ctx context.Context, store *fingerprint.Store, sc scorer.Scorer, file mediafile.File, resume bool) manifest.PhotoRecord {
	rec := manifest.PhotoRecord{Path: file.Path}

	identity, err := fingerprint.Compute(file.Path)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Identity = identity

	stats, err := phash.AnalyzeFile(file.Path)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Hash = stats.HashHex
	rec.Width = stats.Width
	rec.Height = stats.Height

	meta, err := mediafile.ExtractCaptureMetadata(file.Path)
	if err != nil {
		log.Debug().Err(err).Str("path", file.Path).Msg("No usable EXIF metadata")
		meta = nil
	}
	if meta != nil && meta.HasTakenAt {
		rec.TakenAt = meta.TakenAt
	}

	if resume {
		cached, ok, err := store.Lookup(ctx, identity)
		if err != nil {
			rec.Error = err.Error()
			return rec
		}
		if ok {
			rec.Score = cached
			rec.Cached = true
			log.Debug().Str("path", file.Path).Msg("Score cache hit")
			return rec
		}
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	scored, raw, err := sc.Score(ctx, scorer.Frame{Data: data, MIME: file.MIME}, meta.PromptContext())
	if err != nil {
		rec.Error = err.Error()
		log.Error().Err(err).Str("path", file.Path).Msg("Scoring failed")
		return rec
	}
	rec.Score = scored

	if err := store.Put(ctx, identity, file.Path, scored, raw); err != nil {
		rec.Error = err.Error()
		return rec
	}

	log.Debug().
		Str("path", file.Path).
		Float64("overall_score", scored.OverallScore).
		Msg("Photo scored")
	return rec
}

func photoRunConfig(cfg *config.Config, opts PhotoOptions) manifest.RunConfig {
	return manifest.RunConfig{
		Provider:         cfg.Provider,
		Model:            cfg.Model,
		TargetCount:      cfg.Photo.TargetCount,
		Dedupe:           cfg.Photo.Dedupe,
		HammingThreshold: cfg.Photo.DedupeHammingThreshold,
		Resume:           opts.Resume,
		Force:            opts.Force,
	}
}

// photoCandidates converts clean records into dedupe/selection candidates.
// Photos have no timeline, so candidate order is the scan's path order.
func photoCandidates(records []manifest.PhotoRecord) []mediafile.ScoredCandidate {
	var cands []mediafile.ScoredCandidate
	for i := range records {
		r := &records[i]
		if r.Error != "" {
			continue
		}
		cands = append(cands, mediafile.ScoredCandidate{
			Candidate: mediafile.Candidate{
				Identity:       r.Identity,
				Path:           r.Path,
				PerceptualHash: r.Hash,
			},
			Score: r.Score,
		})
	}
	return cands
}

// finishedOnly compacts the records that have completed, keeping scan order,
// so incremental flushes never persist half-built entries.
func finishedOnly(records []manifest.PhotoRecord, finished []bool) []manifest.PhotoRecord {
	out := make([]manifest.PhotoRecord, 0, len(records))
	for i := range records {
		if finished[i] {
			out = append(out, records[i])
		}
	}
	return out
}

// photoSummary tallies records into mutually exclusive buckets: failed beats
// skipped beats processed.
func photoSummary(records []manifest.PhotoRecord, totalFiles int) manifest.Summary {
	s := manifest.Summary{TotalFiles: totalFiles}
	for i := range records {
		switch {
		case records[i].Error != "":
			s.Failed++
		case records[i].Cached:
			s.Skipped++
		default:
			s.Processed++
		}
	}
	return s
}
