// Package uploadsim is a client for the uploads.im image upload API.
//
// The only endpoint the service exposes is the multipart upload:
//
//	img, err := uploadsim.UploadWithDefaultOptions(ctx, http.DefaultClient, "my_image.jpg")
//	if err != nil {
//		return err
//	}
//	fmt.Println("view it at", img.ViewURL)
package uploadsim

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileFieldName is the multipart field carrying the uploaded file.
const FileFieldName = "fileupload"

// HTTPClient performs upload requests. *http.Client satisfies it; timeouts,
// TLS and proxies are its concern.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client uploads images. It holds no per-upload state and is safe for
// concurrent use when its HTTPClient is.
type Client struct {
	httpClient HTTPClient
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for upload progress. The default discards
// everything.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a Client sending requests through httpClient, or
// http.DefaultClient when it is nil.
func NewClient(httpClient HTTPClient, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload uploads the image file at filePath using options.
func (c *Client) Upload(ctx context.Context, filePath string, options UploadOptions) (*UploadedImage, error) {
	c.logger.Info("Beginning upload",
		zap.String("file", filePath),
		zap.String("host", options.Host),
		zap.Uint64p("resize_width", options.ResizeWidth),
		zap.Uint32p("thumbnail_width", options.ThumbnailWidth),
		zap.Boolp("family_unsafe", options.FamilyUnsafe),
	)

	body, err := c.send(ctx, filePath, options)
	if err != nil {
		return nil, err
	}

	img, err := DecodeResponse(body)
	if err != nil {
		c.logger.Debug("Upload response rejected", zap.Error(err))
		return nil, err
	}

	c.logger.Debug("Parsed response",
		zap.String("name", img.Name),
		zap.Stringer("view_url", img.ViewURL),
		zap.Bool("was_resized", img.WasResized),
	)
	return img, nil
}

// UploadWithDefaultOptions uploads filePath to DefaultHost with no optional
// parameters.
func (c *Client) UploadWithDefaultOptions(ctx context.Context, filePath string) (*UploadedImage, error) {
	return c.Upload(ctx, filePath, DefaultUploadOptions())
}

// Upload uploads filePath through client using options.
func Upload(ctx context.Context, client HTTPClient, filePath string, options UploadOptions) (*UploadedImage, error) {
	return NewClient(client).Upload(ctx, filePath, options)
}

// UploadWithDefaultOptions uploads filePath through client using
// DefaultUploadOptions.
func UploadWithDefaultOptions(ctx context.Context, client HTTPClient, filePath string) (*UploadedImage, error) {
	return NewClient(client).UploadWithDefaultOptions(ctx, filePath)
}

// send posts the file and returns the raw response body. The body is read
// in full before any parsing so that decode failures can report it.
func (c *Client) send(ctx context.Context, filePath string, options UploadOptions) (string, error) {
	fileName, ok := fileNameOf(filePath)
	if !ok {
		return "", &UploadError{Kind: ErrInvalidFilename, Path: filePath}
	}

	endpoint, err := BuildUploadURL(options)
	if err != nil {
		return "", newUploadError(ErrBuildingRequest, err)
	}
	c.logger.Debug("Upload URL", zap.String("url", endpoint.String()))

	file, err := os.Open(filePath)
	if err != nil {
		return "", newUploadError(ErrIo, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), pr)
	if err != nil {
		return "", newUploadError(ErrSendingRequest, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	src := &readTracker{r: file}
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeForm(form, fileName, src))
	}()

	c.logger.Debug("Request built, sending now")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		<-done
		if src.err != nil {
			return "", newUploadError(ErrIo, src.err)
		}
		return "", newUploadError(ErrSendingRequest, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Got upload response",
		zap.Int("status", resp.StatusCode),
		zap.Int64("content_length", resp.ContentLength),
	)

	data, err := io.ReadAll(resp.Body)
	pr.Close()
	<-done
	if src.err != nil {
		return "", newUploadError(ErrIo, src.err)
	}
	if err != nil {
		return "", newUploadError(ErrSendingRequest, err)
	}

	c.logger.Debug("Upload response data", zap.ByteString("body", data))
	return string(data), nil
}

func writeForm(form *multipart.Writer, fileName string, src io.Reader) error {
	part, err := form.CreateFormFile(FileFieldName, fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return form.Close()
}

// readTracker remembers the first read error of the local file so it is not
// mistaken for a transport failure.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// fileNameOf returns the last element of path. Empty paths, roots, "." and
// ".." and paths ending in a separator have no file name.
func fileNameOf(path string) (string, bool) {
	if path == "" || os.IsPathSeparator(path[len(path)-1]) {
		return "", false
	}
	name := filepath.Base(path)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", false
	}
	return name, true
}
