package pipeline

import (
	"path/filepath"
	"strings"
)

// PhotoPaths is the output layout of a photo run. Everything lives under one
// output directory so a run's artifacts travel together.
type PhotoPaths struct {
	OutputDir    string
	SelectedDir  string
	ScoresDir    string
	ManifestPath string
	DBPath       string
}

// PhotoPathsIn lays out the photo run under outputDir.
func PhotoPathsIn(outputDir string) PhotoPaths {
	scores := filepath.Join(outputDir, "scores")
	return PhotoPaths{
		OutputDir:    outputDir,
		SelectedDir:  filepath.Join(outputDir, "selected"),
		ScoresDir:    scores,
		ManifestPath: filepath.Join(scores, "manifest.photos.json"),
		DBPath:       filepath.Join(scores, "score_cache.sqlite"),
	}
}

// VideoPaths is the output layout of a video run. Scratch space (split clips,
// extracted frames, concat lists) lives under temp/ and is removed after a
// successful run unless keep_temp is set.
type VideoPaths struct {
	OutputDir      string
	ScoresDir      string
	TempDir        string
	DigestClipsDir string
	ManifestPath   string
	DBPath         string
}

// VideoPathsIn lays out the video run under outputDir.
func VideoPathsIn(outputDir string) VideoPaths {
	scores := filepath.Join(outputDir, "scores")
	return VideoPaths{
		OutputDir:      outputDir,
		ScoresDir:      scores,
		TempDir:        filepath.Join(outputDir, "temp"),
		DigestClipsDir: filepath.Join(outputDir, "digest_clips"),
		ManifestPath:   filepath.Join(scores, "manifest.videos.json"),
		DBPath:         filepath.Join(scores, "score_cache.sqlite"),
	}
}

// ClipsDir is the scratch directory holding one source's split clips.
func (p VideoPaths) ClipsDir(stem string) string {
	return filepath.Join(p.TempDir, "clips", stem)
}

// FramesDir is the scratch directory holding one source's extracted frames.
func (p VideoPaths) FramesDir(stem string) string {
	return filepath.Join(p.TempDir, "frames", stem)
}

// ConcatListPath is the concat demuxer list file for one labeled concat.
func (p VideoPaths) ConcatListPath(label string) string {
	return filepath.Join(p.TempDir, "concat", label+".txt")
}

// DigestClipsSourceDir holds the selected clips copied out for one source.
func (p VideoPaths) DigestClipsSourceDir(stem string) string {
	return filepath.Join(p.DigestClipsDir, stem)
}

// FinalDigestPath is the concatenated digest video for one source.
func (p VideoPaths) FinalDigestPath(stem string) string {
	return filepath.Join(p.OutputDir, stem+"_digest.mp4")
}

// sourceStem returns the file name without extension, the key used for all
// per-source subdirectories and digest names.
func sourceStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
