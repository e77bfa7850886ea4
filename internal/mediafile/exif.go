package mediafile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// CaptureMetadata is the subset of EXIF data the pipeline records per photo
// and offers to the scoring prompt.
type CaptureMetadata struct {
	TakenAt     time.Time `json:"taken_at,omitzero"`
	HasTakenAt  bool      `json:"-"`
	CameraMake  string    `json:"camera_make,omitempty"`
	CameraModel string    `json:"camera_model,omitempty"`
}

// ExtractCaptureMetadata reads EXIF metadata from an image file. The library
// auto-detects JPEG, HEIC, and TIFF containers and only reads the metadata
// bytes, not the whole file.
func ExtractCaptureMetadata(filePath string) (*CaptureMetadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	exifData, err := imagemeta.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	meta := &CaptureMetadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}

	// Timestamp fallback chain: DateTimeOriginal > CreateDate > ModifyDate.
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		meta.TakenAt = exifData.DateTimeOriginal()
		meta.HasTakenAt = true
	case !exifData.CreateDate().IsZero():
		meta.TakenAt = exifData.CreateDate()
		meta.HasTakenAt = true
	case !exifData.ModifyDate().IsZero():
		meta.TakenAt = exifData.ModifyDate()
		meta.HasTakenAt = true
	}

	log.Debug().
		Str("path", filePath).
		Bool("has_date", meta.HasTakenAt).
		Str("camera", meta.CameraModel).
		Msg("EXIF metadata extracted")

	return meta, nil
}

// PromptContext formats the metadata as a short text block for inclusion in
// scoring prompts. Returns "" when nothing useful was extracted.
func (m *CaptureMetadata) PromptContext() string {
	if m == nil {
		return ""
	}

	var sb strings.Builder
	if m.HasTakenAt {
		fmt.Fprintf(&sb, "Taken: %s\n", m.TakenAt.Format("Monday, January 2, 2006 3:04 PM"))
	}
	if m.CameraMake != "" || m.CameraModel != "" {
		fmt.Fprintf(&sb, "Camera: %s %s\n", m.CameraMake, m.CameraModel)
	}
	return sb.String()
}
