package processor

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
)

var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrImageTooLarge     = errors.New("image dimensions too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidImage      = errors.New("invalid image")
)

func (p *ImageProcessor) ValidateFile(path string) (*ImageInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	return p.ValidateImage(file, stat.Size())
}

// ValidateImage checks the declared dimensions, decodes r fully and leaves it rewound to the start.
func (p *ImageProcessor) ValidateImage(r io.ReadSeeker, size int64) (*ImageInfo, error) {
	if p.maxSize > 0 && size > p.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum allowed size %d", ErrFileTooLarge, size, p.maxSize)
	}

	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if !p.formats[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	// Checked against the header so a tiny file cannot force a huge decode.
	if pixels := int64(cfg.Width) * int64(cfg.Height); p.maxPixels > 0 && pixels > p.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, p.maxPixels)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind image: %w", err)
	}

	// Orientation is applied so the reported size matches what viewers show.
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind image: %w", err)
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   size,
	}, nil
}
