package uploader

import (
	"context"
	"errors"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/phambaophuc/uploads-im-client/internal/services/processor"
	"github.com/phambaophuc/uploads-im-client/internal/services/queue"
	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const uploadResponse = `{"data":{"img_name":"vwk7b.png","img_url":"http://s1.uploads.im/vwk7b.png",
	"img_view":"http://uploads.im/vwk7b.png","img_height":"30","img_width":"40",
	"thumb_url":"http://s1.uploads.im/t/vwk7b.png","thumb_height":75,"thumb_width":100,"resized":"0"}}`

// upstream fakes the uploads.im API and counts requests.
type upstream struct {
	srv   *httptest.Server
	calls atomic.Int32
}

func newUpstream(t *testing.T, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) options(t *testing.T) uploadsim.UploadOptions {
	t.Helper()
	parsed, err := url.Parse(u.srv.URL)
	require.NoError(t, err)
	return uploadsim.NewUploadOptions(uploadsim.WithHost(parsed.Host))
}

func (u *upstream) client() *uploadsim.Client {
	return uploadsim.NewClient(u.srv.Client())
}

func savePNG(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, imaging.Save(imaging.New(40, 30, color.NRGBA{B: 255, A: 255}), path))
	return path
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*uploadsim.UploadedImage
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*uploadsim.UploadedImage{}}
}

func (c *memoryCache) GetFromCache(_ context.Context, key string) (*uploadsim.UploadedImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[key], nil
}

func (c *memoryCache) SetCache(_ context.Context, key string, img *uploadsim.UploadedImage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = img
	return nil
}

type recordingArchiver struct {
	names []string
	data  [][]byte
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, content io.Reader, filename string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	a.names = append(a.names, filename)
	a.data = append(a.data, data)
	return "https://project.supabase.co/storage/v1/object/public/originals/" + filename, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*queue.UploadedEvent
	err    error
}

func (p *recordingPublisher) PublishUploaded(_ context.Context, event *queue.UploadedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestUploadRunsFullPipeline(t *testing.T) {
	up := newUpstream(t, uploadResponse)
	path := savePNG(t, "cat.png")

	cache := newMemoryCache()
	archiver := &recordingArchiver{}
	events := &recordingPublisher{}

	svc := NewService(up.client(), zap.NewNop(),
		WithValidator(processor.NewImageProcessor(0)),
		WithCache(cache),
		WithArchiver(archiver),
		WithEventPublisher(events),
	)

	result, err := svc.Upload(context.Background(), path, up.options(t))
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, "vwk7b.png", result.Image.Name)
	require.NotNil(t, result.Local)
	assert.Equal(t, "png", result.Local.Format)
	assert.Equal(t, 40, result.Local.Width)
	assert.Contains(t, result.ArchiveURL, "cat.png")

	assert.Len(t, cache.entries, 1)
	assert.Equal(t, []string{"cat.png"}, archiver.names)
	assert.NotEmpty(t, archiver.data[0])

	require.Len(t, events.events, 1)
	assert.Equal(t, "cat.png", events.events[0].Source)
	assert.Equal(t, result.ArchiveURL, events.events[0].ArchiveURL)
	assert.EqualValues(t, 1, up.calls.Load())
}

func TestUploadServesRepeatsFromCache(t *testing.T) {
	up := newUpstream(t, uploadResponse)
	path := savePNG(t, "cat.png")
	events := &recordingPublisher{}

	svc := NewService(up.client(), zap.NewNop(), WithCache(newMemoryCache()), WithEventPublisher(events))
	opts := up.options(t)

	first, err := svc.Upload(context.Background(), path, opts)
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), path, opts)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Image.ViewURL.String(), second.Image.ViewURL.String())
	assert.EqualValues(t, 1, up.calls.Load())
	require.Len(t, events.events, 2)
	assert.False(t, events.events[0].Cached)
	assert.True(t, events.events[1].Cached)
	assert.Empty(t, events.events[1].ArchiveURL)
	assert.Equal(t, first.Image, events.events[1].Image)

	_, err = svc.Upload(context.Background(), path, uploadsim.NewUploadOptions(
		uploadsim.WithHost(opts.Host), uploadsim.WithThumbnailWidth(50)))
	require.NoError(t, err)
	assert.EqualValues(t, 2, up.calls.Load())
}

func TestUploadIgnoresSideEffectFailures(t *testing.T) {
	up := newUpstream(t, uploadResponse)
	path := savePNG(t, "cat.png")

	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")

	svc := NewService(up.client(), zap.NewNop(),
		WithCache(cache),
		WithArchiver(&recordingArchiver{err: errors.New("bucket missing")}),
		WithEventPublisher(&recordingPublisher{err: errors.New("broker down")}),
	)

	result, err := svc.Upload(context.Background(), path, up.options(t))
	require.NoError(t, err)
	assert.Equal(t, "vwk7b.png", result.Image.Name)
	assert.Empty(t, result.ArchiveURL)
}

func TestUploadRejectsInvalidImageBeforeSending(t *testing.T) {
	up := newUpstream(t, uploadResponse)
	path := filepath.Join(t.TempDir(), "fake.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	svc := NewService(up.client(), zap.NewNop(), WithValidator(processor.NewImageProcessor(0)))

	_, err := svc.Upload(context.Background(), path, up.options(t))
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.ErrorIs(t, err, processor.ErrInvalidImage)
	assert.Zero(t, up.calls.Load())
}

func TestUploadPassesUpstreamFailureThrough(t *testing.T) {
	up := newUpstream(t, `{"status_code":"403","status_txt":"Forbidden"}`)
	path := savePNG(t, "cat.png")
	events := &recordingPublisher{}
	cache := newMemoryCache()

	svc := NewService(up.client(), zap.NewNop(), WithCache(cache), WithEventPublisher(events))

	_, err := svc.Upload(context.Background(), path, up.options(t))

	var uploadErr *uploadsim.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, uploadsim.ErrResponseReturnedFailure, uploadErr.Kind)
	assert.Equal(t, 403, uploadErr.StatusCode)
	assert.Empty(t, cache.entries)
	assert.Empty(t, events.events)
}
