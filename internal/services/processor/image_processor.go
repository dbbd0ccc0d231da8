package processor

import (
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Formats accepted by default, as reported by image.DecodeConfig.
var defaultFormats = []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"}

// DefaultMaxPixels bounds the decoded size of an image, roughly 200MB of
// NRGBA pixels.
const DefaultMaxPixels int64 = 50_000_000

// ImageProcessor checks local files before they are sent upstream.
type ImageProcessor struct {
	maxSize   int64
	maxPixels int64
	formats   map[string]bool
}

// ImageInfo describes a file that passed validation.
type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// NewImageProcessor returns a processor rejecting files above maxSize bytes.
// A zero maxSize disables the size check.
func NewImageProcessor(maxSize int64, formats ...string) *ImageProcessor {
	if len(formats) == 0 {
		formats = defaultFormats
	}

	allowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		allowed[f] = true
	}

	return &ImageProcessor{
		maxSize:   maxSize,
		maxPixels: DefaultMaxPixels,
		formats:   allowed,
	}
}

// WithMaxPixels replaces the width*height limit checked before decoding.
// A zero or negative n disables it.
func (p *ImageProcessor) WithMaxPixels(n int64) *ImageProcessor {
	p.maxPixels = n
	return p
}
