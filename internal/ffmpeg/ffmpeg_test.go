package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

// makeTestVideo synthesizes a short clip so tests need no checked-in media.
func makeTestVideo(t *testing.T, dir string, seconds string) string {
	t.Helper()
	path := filepath.Join(dir, "source.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=duration="+seconds+":size=320x240:rate=24",
		"-pix_fmt", "yuv420p", "-y", path)
	if err := cmd.Run(); err != nil {
		t.Skipf("could not generate test video: %v", err)
	}
	return path
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997002997},
		{"0/0", 0},
		{"", 0},
		{"24", 24},
		{"bad", 0},
		{"1/0", 0},
	}

	for _, tt := range tests {
		if got := parseFrameRate(tt.in); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSegmentArgs(t *testing.T) {
	args := segmentArgs("in.mp4", "out/clip_%04d.mp4", 6, false)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f segment",
		"-segment_time 6",
		"-reset_timestamps 1",
		"-force_key_frames expr:gte(t,n_forced*6)",
		"-c:v libx264",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("segmentArgs missing %q in %q", want, joined)
		}
	}

	hw := strings.Join(segmentArgs("in.mp4", "out/clip_%04d.mp4", 6, true), " ")
	if !strings.Contains(hw, "-c:v h264_nvenc") || !strings.Contains(hw, "-hwaccel cuda") {
		t.Errorf("hwaccel segmentArgs = %q, want nvenc encode with cuda decode", hw)
	}
}

func TestConcatArgs(t *testing.T) {
	sw := strings.Join(concatArgs("list.txt", "digest.mp4", false), " ")
	for _, want := range []string{
		"-f concat",
		"-safe 0",
		"-c:v libx264",
		"-profile:v high",
		"-movflags +faststart",
	} {
		if !strings.Contains(sw, want) {
			t.Errorf("concatArgs missing %q in %q", want, sw)
		}
	}

	hw := strings.Join(concatArgs("list.txt", "digest.mp4", true), " ")
	if !strings.Contains(hw, "-c:v h264_nvenc") || !strings.Contains(hw, "-cq 19") {
		t.Errorf("hwaccel concatArgs = %q, want nvenc settings", hw)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "concat", "source_root.txt")

	err := writeConcatList(listPath, []string{
		filepath.Join(dir, "clip_0001.mp4"),
		filepath.Join(dir, "clip_0002.mp4"),
	})
	if err != nil {
		t.Fatalf("writeConcatList() error = %v", err)
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
			t.Errorf("line %d = %q, want concat demuxer file directive", i, line)
		}
	}
	if !strings.Contains(lines[0], "clip_0001.mp4") {
		t.Errorf("lines[0] = %q, want first clip first", lines[0])
	}
}

func TestStderrTail(t *testing.T) {
	long := "a\nb\nc\nd\ne\nf"
	got := stderrTail(long)
	if got != "c | d | e | f" {
		t.Errorf("stderrTail() = %q, want last four lines", got)
	}
	if got := stderrTail("only line\n"); got != "only line" {
		t.Errorf("stderrTail() = %q, want %q", got, "only line")
	}
}

func TestNew(t *testing.T) {
	skipIfNoFFmpeg(t)

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.ffmpegPath == "" || e.ffprobePath == "" {
		t.Error("New() resolved empty binary paths")
	}
}

func TestProbe(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	source := makeTestVideo(t, dir, "2")

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	info, err := e.Probe(context.Background(), source)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.Width != 320 || info.Height != 240 {
		t.Errorf("dimensions = %dx%d, want 320x240", info.Width, info.Height)
	}
	if info.Duration < 1.5 || info.Duration > 2.5 {
		t.Errorf("Duration = %.2f, want about 2 seconds", info.Duration)
	}
}

func TestProbeMissingFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := e.Probe(context.Background(), "no-such-file.mp4"); err == nil {
		t.Error("Probe() expected error for missing file, got nil")
	}
}

func TestSplitTimeline(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	source := makeTestVideo(t, dir, "5")

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	clips, err := e.Split(context.Background(), SplitOptions{
		Source:    source,
		OutputDir: filepath.Join(dir, "clips"),
		MinClip:   1,
		MaxClip:   2,
	})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(clips) < 2 {
		t.Fatalf("len(clips) = %d, want at least 2 from a 5s source at 2s segments", len(clips))
	}

	prevEnd := 0.0
	for i, clip := range clips {
		if clip.Start != prevEnd {
			t.Errorf("clips[%d].Start = %.3f, want %.3f (contiguous timeline)", i, clip.Start, prevEnd)
		}
		if clip.Duration < 1 {
			t.Errorf("clips[%d].Duration = %.3f, want at least MinClip", i, clip.Duration)
		}
		if clip.SourcePath != source {
			t.Errorf("clips[%d].SourcePath = %q, want %q", i, clip.SourcePath, source)
		}
		prevEnd = clip.End
	}
}

func TestExtractFrameAndConcat(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	source := makeTestVideo(t, dir, "4")

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	clips, err := e.Split(ctx, SplitOptions{
		Source:    source,
		OutputDir: filepath.Join(dir, "clips"),
		MinClip:   1,
		MaxClip:   2,
	})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(clips) == 0 {
		t.Fatal("Split() produced no clips")
	}

	framePath := filepath.Join(dir, "frames", "clip_0000.jpg")
	if err := e.ExtractFrame(ctx, clips[0].Path, framePath); err != nil {
		t.Fatalf("ExtractFrame() error = %v", err)
	}
	if stat, err := os.Stat(framePath); err != nil || stat.Size() == 0 {
		t.Fatalf("frame not written: err=%v", err)
	}

	inputs := make([]string, len(clips))
	for i, clip := range clips {
		inputs[i] = clip.Path
	}
	digest := filepath.Join(dir, "digest.mp4")
	err = e.Concat(ctx, ConcatOptions{
		Inputs:   inputs,
		Output:   digest,
		ListPath: filepath.Join(dir, "concat", "source_root.txt"),
	})
	if err != nil {
		t.Fatalf("Concat() error = %v", err)
	}

	info, err := e.Probe(ctx, digest)
	if err != nil {
		t.Fatalf("Probe(digest) error = %v", err)
	}
	if info.Duration < 3 {
		t.Errorf("digest duration = %.2f, want about the sum of clip durations", info.Duration)
	}
}
