package uploadsim

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// DefaultHost is the production host of the uploads.im service.
const DefaultHost = "uploads.im"

// UploadOptions models the options exposed by the upload API.
type UploadOptions struct {
	// Host is the domain hosting the service.
	Host string
	// ResizeWidth is the width the uploaded image should be resized to.
	ResizeWidth *FullSizeDimension
	// ThumbnailWidth is the width of the generated thumbnail.
	ThumbnailWidth *ThumbnailDimension
	// FamilyUnsafe marks the image as adult content.
	FamilyUnsafe *bool
}

// Option configures UploadOptions built by NewUploadOptions.
type Option func(*UploadOptions)

// DefaultUploadOptions targets DefaultHost with every optional field absent.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{Host: DefaultHost}
}

// NewUploadOptions applies opts on top of DefaultUploadOptions.
func NewUploadOptions(opts ...Option) UploadOptions {
	o := DefaultUploadOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithHost(host string) Option {
	return func(o *UploadOptions) {
		o.Host = host
	}
}

func WithResizeWidth(width FullSizeDimension) Option {
	return func(o *UploadOptions) {
		o.ResizeWidth = &width
	}
}

func WithThumbnailWidth(width ThumbnailDimension) Option {
	return func(o *UploadOptions) {
		o.ThumbnailWidth = &width
	}
}

func WithFamilyUnsafe(unsafe bool) Option {
	return func(o *UploadOptions) {
		o.FamilyUnsafe = &unsafe
	}
}

// uploadParams is the query string form of UploadOptions. The thumbnail
// width travels as thumb_width.
type uploadParams struct {
	ResizeWidth  *FullSizeDimension  `url:"resize_width,omitempty"`
	FamilyUnsafe *bool               `url:"family_unsafe,omitempty"`
	ThumbWidth   *ThumbnailDimension `url:"thumb_width,omitempty"`
}

var (
	errEmptyHost    = errors.New("empty host")
	errHostMismatch = errors.New("host is not a plain authority")
)

// BuildUploadURL builds the multipart upload endpoint for options. Absent
// options are left out of the query string entirely.
func BuildUploadURL(options UploadOptions) (*url.URL, error) {
	values, err := query.Values(uploadParams{
		ResizeWidth:  options.ResizeWidth,
		FamilyUnsafe: options.FamilyUnsafe,
		ThumbWidth:   options.ThumbnailWidth,
	})
	if err != nil {
		return nil, &URLBuildError{Kind: ErrParamsEncodingFailed, Err: err}
	}

	params := values.Encode()
	separator := ""
	if params != "" {
		separator = "&"
	}

	raw := fmt.Sprintf("http://%s/api?upload%s%s", options.Host, separator, params)

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &URLBuildError{Kind: ErrURLValidationFailed, Err: err}
	}
	if u.Host == "" {
		return nil, &URLBuildError{Kind: ErrURLValidationFailed, Err: errEmptyHost}
	}
	// A host carrying '/', '?' or '#' would move "api?upload" out of the path.
	if u.Host != options.Host {
		return nil, &URLBuildError{Kind: ErrURLValidationFailed, Err: fmt.Errorf("%w: %q", errHostMismatch, options.Host)}
	}
	return u, nil
}
