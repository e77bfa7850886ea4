// Package fingerprint computes stable content identities for media files and
// persists cached score records keyed by identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Compute creates a content fingerprint: SHA-256(fileSize || first64KB || last64KB).
// The identity depends only on file bytes, so renamed or relocated files are
// recognized as already processed. Only the head and tail chunks are hashed;
// an edit confined to the middle of a large file keeps its identity.
func Compute(filePath string) (string, error) {
	const chunkSize = 64 * 1024

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file for fingerprinting: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file for fingerprinting: %w", err)
	}
	fileSize := info.Size()

	h := sha256.New()
	if err := binary.Write(h, binary.BigEndian, fileSize); err != nil {
		return "", err
	}

	buf := make([]byte, chunkSize)
	n, _ := io.ReadFull(f, buf)
	h.Write(buf[:n])

	if fileSize > int64(chunkSize) {
		if _, err := f.Seek(-int64(chunkSize), io.SeekEnd); err == nil {
			n, _ = io.ReadFull(f, buf)
			h.Write(buf[:n])
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
