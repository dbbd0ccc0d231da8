package uploadsim

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// FullSizeDimension is the integral type full-size image dimensions use.
type FullSizeDimension = uint64

// ThumbnailDimension is the integral type thumbnail dimensions use.
type ThumbnailDimension = uint32

// Dimension restricts rectangles to the two widths the API reports.
type Dimension interface {
	FullSizeDimension | ThumbnailDimension
}

// Rectangle is a rectangular area.
type Rectangle[T Dimension] struct {
	Height T `json:"height"`
	Width  T `json:"width"`
}

// ImageReference points at one rendition of an uploaded image.
type ImageReference[T Dimension] struct {
	URL        *url.URL
	Dimensions Rectangle[T]
}

// UploadedImage is a completed upload.
//
// Name is assigned by the service and usually does not match the uploaded
// file name: "something.jpg" may come back as "vwk7b.jpg".
type UploadedImage struct {
	Name       string
	FullSize   ImageReference[FullSizeDimension]
	ViewURL    *url.URL
	Thumbnail  ImageReference[ThumbnailDimension]
	WasResized bool
}

type imageReferenceJSON[T Dimension] struct {
	URL        string       `json:"url"`
	Dimensions Rectangle[T] `json:"dimensions"`
}

type uploadedImageJSON struct {
	Name       string                                 `json:"name"`
	FullSize   imageReferenceJSON[FullSizeDimension]  `json:"full_size"`
	ViewURL    string                                 `json:"view_url"`
	Thumbnail  imageReferenceJSON[ThumbnailDimension] `json:"thumbnail"`
	WasResized bool                                   `json:"was_resized"`
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

// MarshalJSON renders URLs as plain strings.
func (img UploadedImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(uploadedImageJSON{
		Name: img.Name,
		FullSize: imageReferenceJSON[FullSizeDimension]{
			URL:        urlString(img.FullSize.URL),
			Dimensions: img.FullSize.Dimensions,
		},
		ViewURL: urlString(img.ViewURL),
		Thumbnail: imageReferenceJSON[ThumbnailDimension]{
			URL:        urlString(img.Thumbnail.URL),
			Dimensions: img.Thumbnail.Dimensions,
		},
		WasResized: img.WasResized,
	})
}

// UnmarshalJSON reads the form produced by MarshalJSON.
func (img *UploadedImage) UnmarshalJSON(data []byte) error {
	var raw uploadedImageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fullURL, err := parseAbsoluteURL(raw.FullSize.URL)
	if err != nil {
		return fmt.Errorf("full_size.url: %w", err)
	}
	viewURL, err := parseAbsoluteURL(raw.ViewURL)
	if err != nil {
		return fmt.Errorf("view_url: %w", err)
	}
	thumbURL, err := parseAbsoluteURL(raw.Thumbnail.URL)
	if err != nil {
		return fmt.Errorf("thumbnail.url: %w", err)
	}

	*img = UploadedImage{
		Name: raw.Name,
		FullSize: ImageReference[FullSizeDimension]{
			URL:        fullURL,
			Dimensions: raw.FullSize.Dimensions,
		},
		ViewURL: viewURL,
		Thumbnail: ImageReference[ThumbnailDimension]{
			URL:        thumbURL,
			Dimensions: raw.Thumbnail.Dimensions,
		},
		WasResized: raw.WasResized,
	}
	return nil
}

// parseAbsoluteURL accepts only URLs with a scheme.
func parseAbsoluteURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("relative URL without a base: %q", s)
	}
	return u, nil
}
