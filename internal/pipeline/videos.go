package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mediacull/internal/config"
	"mediacull/internal/dedupe"
	"mediacull/internal/ffmpeg"
	"mediacull/internal/fingerprint"
	"mediacull/internal/jobstate"
	"mediacull/internal/manifest"
	"mediacull/internal/mediafile"
	"mediacull/internal/phash"
	"mediacull/internal/scorer"
	"mediacull/internal/selection"
)

// VideoOptions configures one video run.
type VideoOptions struct {
	Input  string
	Output string
	Config *config.Config
	Resume bool
	Force  bool

	// ConcatInDigestFolder additionally writes a digest.mp4 next to the
	// copied clips of each source.
	ConcatInDigestFolder bool

	Scorer scorer.Scorer
	FFmpeg *ffmpeg.Executor
}

// sourceWork is the in-flight state of one source video.
type sourceWork struct {
	file  mediafile.File
	stem  string
	res   *manifest.SourceResult
	cands []mediafile.ScoredCandidate

	// reuse marks a source whose previous run finished completely; its
	// recorded outputs are kept verbatim and nothing is re-executed.
	reuse bool
	// needsSelect marks a source whose selection must be (re)computed this
	// run, the population phase B feeds into clustering.
	needsSelect bool
}

// RunVideos splits every source video into clips, scores a representative
// frame per clip, deduplicates within the configured scope, selects a digest's
// worth of clips per source, and concatenates them. Each source video is an
// independent unit: its failure is recorded and the batch moves on.
func RunVideos(ctx context.Context, opts VideoOptions) (*manifest.VideoManifest, error) {
	started := time.Now()
	cfg := opts.Config

	paths := VideoPathsIn(opts.Output)
	if err := os.MkdirAll(paths.ScoresDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	sources, err := videoSources(opts.Input)
	if err != nil {
		return nil, err
	}

	store, err := fingerprint.Open(paths.DBPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	prev, err := manifest.LoadVideos(paths.ManifestPath)
	if err != nil {
		return nil, err
	}

	m := &manifest.VideoManifest{
		Version:   manifest.Version,
		RunID:     newRunID(),
		CreatedAt: time.Now().UTC(),
		Input:     opts.Input,
		Config:    videoRunConfig(cfg, opts),
	}
	writer := manifest.NewWriter(paths.ManifestPath)
	resumeEnabled := opts.Resume && !opts.Force

	machine := jobstate.New(jobstate.VideoSteps)
	for _, f := range sources {
		if prevSrc := prev.Source(f.Path); resumeEnabled && prevSrc != nil {
			machine.Restore(f.Path, stepStatuses(prevSrc.Steps))
		} else {
			machine.Add(f.Path)
		}
	}

	log.Info().
		Str("run_id", m.RunID).
		Int("sources", len(sources)).
		Bool("resume", resumeEnabled).
		Bool("force", opts.Force).
		Msg("Video run started")

	// Phase A: split and score each source. Clips within a source are scored
	// in parallel; sources proceed one at a time.
	works := make([]*sourceWork, 0, len(sources))
	for _, f := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w := &sourceWork{file: f, stem: sourceStem(f.Path)}
		works = append(works, w)
		unit := f.Path
		prevSrc := prev.Source(unit)

		if resumeEnabled && machine.UnitComplete(unit) && prevSrc != nil && completedArtifactsPresent(prevSrc) {
			w.reuse = true
			m.UpsertSource(*prevSrc)
			log.Info().Str("source", unit).Msg("Source already complete, reusing outputs")
			continue
		}

		res := manifest.SourceResult{SourceVideo: unit, Steps: map[string]string{}}
		if resumeEnabled && prevSrc != nil {
			if restoredArtifactsPresent(machine, unit, prevSrc) {
				res = cloneSourceResult(*prevSrc)
				res.Error = ""
			} else {
				log.Warn().Str("source", unit).Msg("Restored progress has missing artifacts, restarting source")
				machine.Reset(unit)
			}
		}
		w.res = &res
		flush := func() {
			res.Steps = stepStrings(machine.SnapshotUnit(unit))
			m.UpsertSource(res)
			if err := writer.Flush(m); err != nil {
				log.Warn().Err(err).Msg("Incremental manifest flush failed")
			}
		}

		// split
		if machine.Status(unit, jobstate.StepSplit) == jobstate.StatusDone {
			log.Info().Str("source", unit).Int("clips", len(res.Clips)).Msg("Reusing split clips from previous run")
		} else {
			recordTransition(machine.Start(unit, jobstate.StepSplit))
			clips, err := opts.FFmpeg.Split(ctx, ffmpeg.SplitOptions{
				Source:    unit,
				OutputDir: paths.ClipsDir(w.stem),
				MinClip:   cfg.Video.MinClip,
				MaxClip:   cfg.Video.MaxClip,
				HWAccel:   cfg.Video.HWAccel,
			})
			if err != nil {
				recordTransition(machine.Fail(unit, jobstate.StepSplit))
				res.Error = err.Error()
				log.Error().Err(err).Str("source", unit).Msg("Split failed")
				flush()
				continue
			}
			recordTransition(machine.Done(unit, jobstate.StepSplit))
			res.Clips = clipRecords(clips)
		}
		flush()

		// score
		if machine.Status(unit, jobstate.StepScore) == jobstate.StatusDone {
			log.Info().Str("source", unit).Msg("Reusing clip scores from previous run")
		} else {
			if err := scoreClips(ctx, opts, store, machine, w, paths, resumeEnabled); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					flush()
					return nil, ctxErr
				}
				res.Error = err.Error()
				log.Error().Err(err).Str("source", unit).Msg("Scoring failed")
				flush()
				continue
			}
		}

		if machine.Status(unit, jobstate.StepSelect) != jobstate.StatusDone {
			w.needsSelect = true
		}
		w.cands = clipCandidates(unit, res.Clips)
		flush()
	}

	// Phase B: dedupe over the configured scope. Only sources still needing
	// selection contribute candidates; completed selections stay fixed.
	repsBySource, groupsBySource := clusterWorks(works, cfg)

	// Phase C: select, copy, concat per source.
	for _, w := range works {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.reuse || w.res == nil {
			continue
		}
		unit := w.file.Path
		res := w.res
		flush := func() {
			res.Steps = stepStrings(machine.SnapshotUnit(unit))
			m.UpsertSource(*res)
			if err := writer.Flush(m); err != nil {
				log.Warn().Err(err).Msg("Incremental manifest flush failed")
			}
		}

		if machine.Status(unit, jobstate.StepScore) != jobstate.StatusDone {
			continue // split or score already failed and was recorded
		}

		var copied []string
		if w.needsSelect {
			reps := repsBySource[unit]
			res.DuplicateGroups = groupsBySource[unit]
			res.RemovedDuplicates = len(w.cands) - len(reps)

			recordTransition(machine.Start(unit, jobstate.StepSelect))
			sel := selection.Clips(reps, cfg.Video.MaxSelectedClips, cfg.Video.TargetDigestSeconds)
			res.SkippedClips = sel.Skipped
			res.TotalSelectedSeconds = sel.TotalSeconds

			selected, dests, err := copySelectedClips(sel.Clips, paths.DigestClipsSourceDir(w.stem))
			if err != nil {
				recordTransition(machine.Fail(unit, jobstate.StepSelect))
				res.Error = err.Error()
				log.Error().Err(err).Str("source", unit).Msg("Failed to copy selected clips")
				flush()
				continue
			}
			res.SelectedClips = selected
			copied = dests
			recordTransition(machine.Done(unit, jobstate.StepSelect))
			log.Info().
				Str("source", unit).
				Int("selected", len(selected)).
				Float64("seconds", sel.TotalSeconds).
				Int("removed_duplicates", res.RemovedDuplicates).
				Msg("Clips selected")
		} else {
			copied = selectedClipPaths(res.SelectedClips)
			log.Info().Str("source", unit).Int("selected", len(copied)).Msg("Reusing selection from previous run")
		}
		flush()

		switch {
		case len(copied) == 0:
			recordTransition(machine.Skip(unit, jobstate.StepConcat))
			log.Info().Str("source", unit).Msg("Empty selection, digest skipped")
		case cfg.Video.Preset == config.PresetClipsOnly:
			recordTransition(machine.Skip(unit, jobstate.StepConcat))
		default:
			recordTransition(machine.Start(unit, jobstate.StepConcat))
			digest := paths.FinalDigestPath(w.stem)
			err := opts.FFmpeg.Concat(ctx, ffmpeg.ConcatOptions{
				Inputs:   copied,
				Output:   digest,
				ListPath: paths.ConcatListPath(w.stem + "_root"),
				HWAccel:  cfg.Video.HWAccel,
			})
			if err == nil {
				res.DigestPath = digest
				if opts.ConcatInDigestFolder {
					err = opts.FFmpeg.Concat(ctx, ffmpeg.ConcatOptions{
						Inputs:   copied,
						Output:   filepath.Join(paths.DigestClipsSourceDir(w.stem), "digest.mp4"),
						ListPath: paths.ConcatListPath(w.stem + "_folder"),
						HWAccel:  cfg.Video.HWAccel,
					})
				}
			}
			if err != nil {
				recordTransition(machine.Fail(unit, jobstate.StepConcat))
				res.Error = err.Error()
				log.Error().Err(err).Str("source", unit).Msg("Concat failed")
			} else {
				recordTransition(machine.Done(unit, jobstate.StepConcat))
				log.Info().Str("source", unit).Str("digest", res.DigestPath).Msg("Digest written")
			}
		}

		if cfg.Video.DeleteSplitFiles && !machine.UnitFailed(unit) {
			if err := os.RemoveAll(paths.ClipsDir(w.stem)); err != nil {
				log.Warn().Err(err).Str("source", unit).Msg("Failed to delete split files")
			}
		}
		flush()
	}

	m.Summary = videoSummary(works, machine, m.Sources)
	m.Summary.DurationSeconds = roundSeconds(time.Since(started))
	if err := writer.Flush(m); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	// Failed units keep their scratch clips so a resumed run can pick up
	// from the split step instead of redoing it.
	if !cfg.KeepTemp && m.Summary.Failed == 0 {
		if err := removeTemp(paths); err != nil {
			log.Warn().Err(err).Msg("Temp cleanup skipped")
		}
	}

	log.Info().
		Int("sources", m.Summary.TotalFiles).
		Int("processed", m.Summary.Processed).
		Int("skipped", m.Summary.Skipped).
		Int("failed", m.Summary.Failed).
		Float64("selected_seconds", m.Summary.TotalSelectedSeconds).
		Msg("Video run complete")

	return m, nil
}

// scoreClips runs the score step for one source: frame extraction, the
// brightness gate, the cache gate, and the scorer, in parallel across clips.
// Any clip's hard failure fails the step; the gate and malformed model output
// do not.
func scoreClips(ctx context.Context, opts VideoOptions, store *fingerprint.Store, machine *jobstate.Machine, w *sourceWork, paths VideoPaths, resume bool) error {
	unit := w.file.Path
	recordTransition(machine.Start(unit, jobstate.StepScore))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, opts.Config.Workers)

	for i := range w.res.Clips {
		wg.Add(1)
		go func(rec *manifest.ClipRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			if err := scoreOneClip(ctx, opts, store, rec, paths.FramesDir(w.stem), resume); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(&w.res.Clips[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if firstErr != nil {
		recordTransition(machine.Fail(unit, jobstate.StepScore))
		return firstErr
	}
	recordTransition(machine.Done(unit, jobstate.StepScore))
	return nil
}

// scoreOneClip fills one clip record. A nil Score afterward means the clip was
// gated out, not that it failed; failures set rec.Error and return the error.
func scoreOneClip(ctx context.Context, opts VideoOptions, store *fingerprint.Store, rec *manifest.ClipRecord, framesDir string, resume bool) error {
	rec.Error = ""
	rec.Cached = false
	cfg := opts.Config

	identity, err := fingerprint.Compute(rec.ClipPath)
	if err != nil {
		rec.Error = err.Error()
		return err
	}
	rec.Identity = identity

	clipBase := strings.TrimSuffix(filepath.Base(rec.ClipPath), filepath.Ext(rec.ClipPath))
	framePath := filepath.Join(framesDir, clipBase+".jpg")
	if err := opts.FFmpeg.ExtractFrame(ctx, rec.ClipPath, framePath); err != nil {
		rec.Error = err.Error()
		return err
	}
	rec.FramePath = framePath

	stats, err := phash.AnalyzeFile(framePath)
	if err != nil {
		rec.Error = err.Error()
		return err
	}
	rec.FrameHash = stats.HashHex
	rec.Brightness = stats.Brightness

	if stats.Brightness < cfg.MinBrightness {
		log.Debug().
			Str("clip", rec.ClipPath).
			Float64("brightness", stats.Brightness).
			Float64("floor", cfg.MinBrightness).
			Msg("Frame under brightness floor, clip not scored")
		return nil
	}

	if resume {
		cached, ok, err := store.Lookup(ctx, identity)
		if err != nil {
			rec.Error = err.Error()
			return err
		}
		if ok {
			rec.Score = &cached
			rec.Cached = true
			return nil
		}
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		rec.Error = err.Error()
		return err
	}

	hints := fmt.Sprintf("Representative frame from a %.1f second video clip.", rec.Duration)
	scored, raw, err := opts.Scorer.Score(ctx, scorer.Frame{Data: data, MIME: "image/jpeg"}, hints)
	if err != nil {
		rec.Error = err.Error()
		return err
	}
	rec.Score = &scored

	if err := store.Put(ctx, identity, rec.ClipPath, scored, raw); err != nil {
		rec.Error = err.Error()
		return err
	}
	return nil
}

// clusterWorks runs scope-aware dedup over the sources that still need
// selection, returning representatives and duplicate groups keyed by source.
// With global scope one cluster may span sources; its representative's source
// records the group, and other sources simply lose the duplicate members.
func clusterWorks(works []*sourceWork, cfg *config.Config) (map[string][]mediafile.ScoredCandidate, map[string][]manifest.DuplicateGroup) {
	reps := make(map[string][]mediafile.ScoredCandidate)
	groups := make(map[string][]manifest.DuplicateGroup)

	active := make([]*sourceWork, 0, len(works))
	for _, w := range works {
		if w.needsSelect {
			active = append(active, w)
		}
	}

	collect := func(clusters []dedupe.Cluster) {
		for _, cl := range clusters {
			src := cl.Representative.SourceID
			reps[src] = append(reps[src], cl.Representative)
			if dups := cl.Duplicates(); len(dups) > 0 {
				groups[src] = append(groups[src], manifest.DuplicateGroup{
					Representative: cl.Representative.Path,
					Duplicates:     candidatePaths(dups),
				})
			}
		}
	}

	switch {
	case !cfg.Video.Dedupe:
		for _, w := range active {
			collect(dedupe.Singletons(w.cands))
		}
	case dedupe.Scope(cfg.Video.DedupeScope) == dedupe.ScopeGlobal:
		var all []mediafile.ScoredCandidate
		for _, w := range active {
			all = append(all, w.cands...)
		}
		collect(dedupe.ClusterCandidates(all, cfg.Video.DedupeHammingThreshold))
	default:
		for _, w := range active {
			collect(dedupe.ClusterCandidates(w.cands, cfg.Video.DedupeHammingThreshold))
		}
	}

	return reps, groups
}

// copySelectedClips copies the admitted clips into the digest folder as
// clip_0001, clip_0002, ... in playback order and builds their manifest
// entries.
func copySelectedClips(clips []mediafile.ScoredCandidate, destDir string) ([]manifest.SelectedClip, []string, error) {
	var (
		selected []manifest.SelectedClip
		dests    []string
	)
	for i, c := range clips {
		dst := filepath.Join(destDir, fmt.Sprintf("clip_%04d%s", i+1, filepath.Ext(c.Path)))
		if err := copyFile(c.Path, dst); err != nil {
			return nil, nil, err
		}
		dests = append(dests, dst)
		selected = append(selected, manifest.SelectedClip{
			Path:  dst,
			Start: c.StartTime,
			End:   c.EndTime,
			Score: c.Score.OverallScore,
		})
	}
	return selected, dests, nil
}

// clipRecords converts split output into manifest clip records.
func clipRecords(clips []ffmpeg.Clip) []manifest.ClipRecord {
	out := make([]manifest.ClipRecord, 0, len(clips))
	for _, c := range clips {
		out = append(out, manifest.ClipRecord{
			ClipPath: c.Path,
			Start:    c.Start,
			End:      c.End,
			Duration: c.Duration,
		})
	}
	return out
}

// clipCandidates converts scored clip records into dedup/selection
// candidates. Gated and failed clips carry no score and are excluded.
func clipCandidates(sourceID string, clips []manifest.ClipRecord) []mediafile.ScoredCandidate {
	var cands []mediafile.ScoredCandidate
	for i := range clips {
		c := &clips[i]
		if c.Score == nil || c.Error != "" {
			continue
		}
		cands = append(cands, mediafile.ScoredCandidate{
			Candidate: mediafile.Candidate{
				Identity:       c.Identity,
				SourceID:       sourceID,
				Path:           c.ClipPath,
				StartTime:      c.Start,
				EndTime:        c.End,
				PerceptualHash: c.FrameHash,
			},
			Score: *c.Score,
		})
	}
	return cands
}

// videoSources resolves the input to a list of source videos: either one
// file, or every video under a directory.
func videoSources(input string) ([]mediafile.File, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input not found: %s", input)
	}
	if info.IsDir() {
		return mediafile.Scan(input, mediafile.ScanOptions{Kind: mediafile.KindVideo})
	}

	ext := strings.ToLower(filepath.Ext(input))
	if !mediafile.IsVideo(ext) {
		return nil, fmt.Errorf("input is not a supported video file: %s", input)
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input path: %w", err)
	}
	mime, _ := mediafile.GetMIMEType(ext)
	return []mediafile.File{{Path: abs, Size: info.Size(), MIME: mime}}, nil
}

// completedArtifactsPresent verifies that a fully completed source's durable
// outputs still exist before the run trusts and reuses them.
func completedArtifactsPresent(res *manifest.SourceResult) bool {
	if !filesPresent(selectedClipPaths(res.SelectedClips)) {
		return false
	}
	if res.DigestPath != "" {
		return filesPresent([]string{res.DigestPath})
	}
	return true
}

// restoredArtifactsPresent checks each restored done step against the files
// it should have left behind.
func restoredArtifactsPresent(machine *jobstate.Machine, unit string, res *manifest.SourceResult) bool {
	if machine.Status(unit, jobstate.StepSplit) == jobstate.StatusDone {
		if len(res.Clips) == 0 || !filesPresent(clipPaths(res.Clips)) {
			return false
		}
	}
	if machine.Status(unit, jobstate.StepSelect) == jobstate.StatusDone {
		if !filesPresent(selectedClipPaths(res.SelectedClips)) {
			return false
		}
	}
	return true
}

func filesPresent(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func clipPaths(clips []manifest.ClipRecord) []string {
	out := make([]string, 0, len(clips))
	for _, c := range clips {
		out = append(out, c.ClipPath)
	}
	return out
}

func selectedClipPaths(clips []manifest.SelectedClip) []string {
	out := make([]string, 0, len(clips))
	for _, c := range clips {
		out = append(out, c.Path)
	}
	return out
}

func candidatePaths(cands []mediafile.ScoredCandidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Path)
	}
	return out
}

// videoSummary tallies the run. Reused sources count as skipped; a unit with
// any failed step counts as failed; the rest processed. Duplicate and
// duration aggregates come from the manifest blocks so reused sources keep
// contributing their recorded numbers.
func videoSummary(works []*sourceWork, machine *jobstate.Machine, sources []manifest.SourceResult) manifest.Summary {
	s := manifest.Summary{TotalFiles: len(works)}
	for _, w := range works {
		switch {
		case w.reuse:
			s.Skipped++
		case machine.UnitFailed(w.file.Path):
			s.Failed++
		default:
			s.Processed++
		}
	}
	for i := range sources {
		s.RemovedDuplicates += sources[i].RemovedDuplicates
		s.TotalSelectedSeconds += sources[i].TotalSelectedSeconds
	}
	return s
}

func videoRunConfig(cfg *config.Config, opts VideoOptions) manifest.RunConfig {
	return manifest.RunConfig{
		Provider:            cfg.Provider,
		Model:               cfg.Model,
		Preset:              cfg.Video.Preset,
		TargetDigestSeconds: cfg.Video.TargetDigestSeconds,
		MaxSelectedClips:    cfg.Video.MaxSelectedClips,
		MinClip:             cfg.Video.MinClip,
		MaxClip:             cfg.Video.MaxClip,
		Dedupe:              cfg.Video.Dedupe,
		HammingThreshold:    cfg.Video.DedupeHammingThreshold,
		DedupeScope:         cfg.Video.DedupeScope,
		Resume:              opts.Resume,
		Force:               opts.Force,
	}
}

func stepStrings(unit map[jobstate.Step]jobstate.Status) map[string]string {
	out := make(map[string]string, len(unit))
	for step, status := range unit {
		out[string(step)] = string(status)
	}
	return out
}

func stepStatuses(steps map[string]string) map[jobstate.Step]jobstate.Status {
	out := make(map[jobstate.Step]jobstate.Status, len(steps))
	for step, status := range steps {
		out[jobstate.Step(step)] = jobstate.Status(status)
	}
	return out
}

func cloneSourceResult(res manifest.SourceResult) manifest.SourceResult {
	out := res
	out.Steps = make(map[string]string, len(res.Steps))
	for k, v := range res.Steps {
		out.Steps[k] = v
	}
	out.Clips = append([]manifest.ClipRecord(nil), res.Clips...)
	out.DuplicateGroups = append([]manifest.DuplicateGroup(nil), res.DuplicateGroups...)
	out.SelectedClips = append([]manifest.SelectedClip(nil), res.SelectedClips...)
	return out
}

// recordTransition surfaces a rejected job state transition. The pipeline
// drives the machine in its legal order, so a rejection here is a bug worth a
// loud log line rather than a silent drop.
func recordTransition(err error) {
	if err != nil {
		log.Error().Err(err).Msg("Job state transition rejected")
	}
}
