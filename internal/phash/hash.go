// Package phash computes 64-bit perceptual hashes and basic luma statistics
// for candidate images and extracted video frames.
package phash

import (
	"fmt"
	"image"
	"math/bits"
	"os"
	"strconv"

	// Decoders for the formats the pipeline feeds through this package.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const hashSize = 8

// Stats bundles the per-image measurements taken in a single decode pass.
type Stats struct {
	HashHex    string  `json:"hash"`
	Brightness float64 `json:"brightness"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// AverageHash computes the 8x8 average hash of img: grayscale, bilinear
// downscale, then one bit per pixel set when the pixel is at or above the
// mean. Bit i corresponds to pixel i in row-major order.
func AverageHash(img image.Image) uint64 {
	gray := grayscale(img)
	small := image.NewGray(image.Rect(0, 0, hashSize, hashSize))
	draw.BiLinear.Scale(small, small.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	var sum int
	for _, px := range small.Pix {
		sum += int(px)
	}
	avg := float64(sum) / float64(len(small.Pix))

	var hash uint64
	for idx, px := range small.Pix {
		if float64(px) >= avg {
			hash |= 1 << uint(idx)
		}
	}
	return hash
}

// Brightness returns the mean luma of img in [0, 255].
func Brightness(img image.Image) float64 {
	gray := grayscale(img)
	if len(gray.Pix) == 0 {
		return 0
	}
	var sum int
	for _, px := range gray.Pix {
		sum += int(px)
	}
	return float64(sum) / float64(len(gray.Pix))
}

// AnalyzeFile decodes the image at path once and returns its perceptual hash
// together with the luma statistics used by the quality gate.
func AnalyzeFile(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	b := img.Bounds()
	return Stats{
		HashHex:    FormatHex(AverageHash(img)),
		Brightness: Brightness(img),
		Width:      b.Dx(),
		Height:     b.Dy(),
	}, nil
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FormatHex renders a hash as a fixed-width 16-character hex string, the
// form stored in manifests and the score cache.
func FormatHex(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHex parses a hex hash string. The second return is false for empty or
// malformed input, which callers treat as "no hash available".
func ParseHex(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}

func grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
