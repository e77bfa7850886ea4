// Package mediafile provides candidate types, media type detection, directory
// scanning, and EXIF extraction for the curation pipeline.
package mediafile

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SupportedImageExtensions maps image file extensions to their MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// SupportedVideoExtensions maps video file extensions to their MIME types.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)

	if mimeType, ok := SupportedImageExtensions[ext]; ok {
		return mimeType, nil
	}
	if mimeType, ok := SupportedVideoExtensions[ext]; ok {
		return mimeType, nil
	}

	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage reports whether the file extension belongs to a supported image format.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo reports whether the file extension belongs to a supported video format.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// PathMIME returns the MIME type for a file path, defaulting to JPEG when the
// extension is unknown (extracted frames are always JPEG).
func PathMIME(path string) string {
	if m, err := GetMIMEType(filepath.Ext(path)); err == nil {
		return m
	}
	return "image/jpeg"
}
