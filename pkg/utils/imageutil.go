package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var validImageTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// IsValidImageType checks if content type is a valid image type
func IsValidImageType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, validType := range validImageTypes {
		if strings.Contains(ct, validType) {
			return true
		}
	}
	return false
}

// GenerateStorageKey returns a unique bucket key for an archived original.
func GenerateStorageKey(filename string) string {
	filename = filepath.Base(filename)
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	timestamp := time.Now().Unix()
	id := uuid.New().String()[:8]

	return fmt.Sprintf("originals/%s_%d_%s%s", name, timestamp, id, ext)
}

// SpoolFileName returns the base name an upload is spooled under. uploads.im
// shows this name to viewers, so the client's base name is kept whenever it
// names a regular file.
func SpoolFileName(original string) string {
	base := filepath.Base(original)
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "upload"
	}
	return base
}
