package mediafile

import "testing"

func TestIsImage(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".jpg", true},
		{".JPEG", true},
		{".png", true},
		{".heic", true},
		{".webp", true},
		{".mp4", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := IsImage(tt.ext); got != tt.expected {
				t.Errorf("IsImage(%q) = %v, want %v", tt.ext, got, tt.expected)
			}
		})
	}
}

func TestIsVideo(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".mp4", true},
		{".MOV", true},
		{".mkv", true},
		{".webm", true},
		{".jpg", false},
		{".wav", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := IsVideo(tt.ext); got != tt.expected {
				t.Errorf("IsVideo(%q) = %v, want %v", tt.ext, got, tt.expected)
			}
		})
	}
}

func TestGetMIMEType(t *testing.T) {
	tests := []struct {
		ext      string
		expected string
		wantErr  bool
	}{
		{".jpg", "image/jpeg", false},
		{".mov", "video/quicktime", false},
		{".heic", "image/heic", false},
		{".xyz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := GetMIMEType(tt.ext)
			if tt.wantErr {
				if err == nil {
					t.Errorf("GetMIMEType(%q) expected error", tt.ext)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetMIMEType(%q) unexpected error: %v", tt.ext, err)
			}
			if got != tt.expected {
				t.Errorf("GetMIMEType(%q) = %q, want %q", tt.ext, got, tt.expected)
			}
		})
	}
}

func TestPathMIME(t *testing.T) {
	if got := PathMIME("/tmp/a.png"); got != "image/png" {
		t.Errorf("PathMIME(a.png) = %q, want image/png", got)
	}
	if got := PathMIME("/tmp/frame.unknown"); got != "image/jpeg" {
		t.Errorf("PathMIME(unknown ext) = %q, want image/jpeg fallback", got)
	}
}
