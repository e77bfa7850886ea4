package phash

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// gradient builds a horizontal luma ramp so the hash has both set and unset bits.
func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (w - 1))})
		}
	}
	return img
}

func TestAverageHashDeterministic(t *testing.T) {
	img := gradient(64, 48)
	if got, again := AverageHash(img), AverageHash(img); got != again {
		t.Errorf("AverageHash not deterministic: %016x vs %016x", got, again)
	}
}

func TestAverageHashDistinguishes(t *testing.T) {
	left := gradient(64, 48)

	right := image.NewGray(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			right.SetGray(x, y, color.Gray{Y: uint8(255 - x*255/63)})
		}
	}

	a, b := AverageHash(left), AverageHash(right)
	if Distance(a, b) == 0 {
		t.Errorf("mirrored gradients hashed identically: %016x", a)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xffff, 0xffff, 0},
		{"one bit", 0x01, 0x00, 1},
		{"all bits", 0, ^uint64(0), 64},
		{"four bits", 0xf0, 0x00, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, h := range []uint64{0, 1, 0xdeadbeefcafef00d, ^uint64(0)} {
		s := FormatHex(h)
		if len(s) != 16 {
			t.Errorf("FormatHex(%x) = %q, want 16 chars", h, s)
		}
		got, ok := ParseHex(s)
		if !ok || got != h {
			t.Errorf("ParseHex(FormatHex(%x)) = %x, ok=%v", h, got, ok)
		}
	}
}

func TestParseHexRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "zzzz", "0x12", "not a hash"} {
		if _, ok := ParseHex(s); ok {
			t.Errorf("ParseHex(%q) accepted, want rejection", s)
		}
	}
}

func TestBrightness(t *testing.T) {
	uniform := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range uniform.Pix {
		uniform.Pix[i] = 200
	}
	if got := Brightness(uniform); got != 200 {
		t.Errorf("Brightness(uniform 200) = %v, want 200", got)
	}

	dark := image.NewGray(image.Rect(0, 0, 16, 16))
	if got := Brightness(dark); got != 0 {
		t.Errorf("Brightness(black) = %v, want 0", got)
	}
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, gradient(32, 24)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	stats, err := AnalyzeFile(path)
	if err != nil {
		t.Fatalf("AnalyzeFile() error: %v", err)
	}
	if stats.Width != 32 || stats.Height != 24 {
		t.Errorf("dimensions = %dx%d, want 32x24", stats.Width, stats.Height)
	}
	if _, ok := ParseHex(stats.HashHex); !ok {
		t.Errorf("AnalyzeFile hash %q does not parse", stats.HashHex)
	}
	if stats.Brightness <= 0 || stats.Brightness >= 255 {
		t.Errorf("gradient brightness = %v, want interior of (0, 255)", stats.Brightness)
	}

	if _, err := AnalyzeFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("AnalyzeFile() on missing file expected error")
	}
}
