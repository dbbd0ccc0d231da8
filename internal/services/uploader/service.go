package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phambaophuc/uploads-im-client/internal/services/processor"
	"github.com/phambaophuc/uploads-im-client/internal/services/queue"
	"github.com/phambaophuc/uploads-im-client/internal/services/storage"
	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"go.uber.org/zap"
)

// ErrInvalidImage marks files rejected locally before any request is sent.
var ErrInvalidImage = errors.New("image rejected")

type Validator interface {
	ValidateFile(path string) (*processor.ImageInfo, error)
}

type ResultCache interface {
	GetFromCache(ctx context.Context, cacheKey string) (*uploadsim.UploadedImage, error)
	SetCache(ctx context.Context, cacheKey string, img *uploadsim.UploadedImage) error
}

type Archiver interface {
	Archive(ctx context.Context, content io.Reader, filename string) (string, error)
}

type EventPublisher interface {
	PublishUploaded(ctx context.Context, event *queue.UploadedEvent) error
}

// Result is what one upload produced.
type Result struct {
	Image      *uploadsim.UploadedImage `json:"image"`
	Local      *processor.ImageInfo     `json:"local,omitempty"`
	ArchiveURL string                   `json:"archive_url,omitempty"`
	Cached     bool                     `json:"cached"`
}

type Service struct {
	client    *uploadsim.Client
	validator Validator
	cache     ResultCache
	archiver  Archiver
	events    EventPublisher
	logger    *zap.Logger
}

type Option func(*Service)

func WithValidator(v Validator) Option {
	return func(s *Service) { s.validator = v }
}

func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(client *uploadsim.Client, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		client: client,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload validates the file, answers from the cache when possible, and
// otherwise sends it upstream. Cache, archive and event failures are logged
// and never fail an upload that already succeeded.
func (s *Service) Upload(ctx context.Context, path string, options uploadsim.UploadOptions) (*Result, error) {
	result := &Result{}

	if s.validator != nil {
		info, err := s.validator.ValidateFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		result.Local = info
	}

	cacheKey := s.cacheKey(path, options)
	if cacheKey != "" {
		cached, err := s.cache.GetFromCache(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("Cache lookup failed", zap.String("cache_key", cacheKey), zap.Error(err))
		} else if cached != nil {
			s.logger.Info("Cache hit", zap.String("cache_key", cacheKey))
			result.Image = cached
			result.Cached = true
			s.publish(ctx, path, result)
			return result, nil
		}
	}

	img, err := s.client.Upload(ctx, path, options)
	if err != nil {
		return nil, err
	}
	result.Image = img

	if cacheKey != "" {
		if err := s.cache.SetCache(ctx, cacheKey, img); err != nil {
			s.logger.Warn("Failed to cache upload", zap.String("cache_key", cacheKey), zap.Error(err))
		}
	}

	result.ArchiveURL = s.archive(ctx, path)
	s.publish(ctx, path, result)

	return result, nil
}

func (s *Service) cacheKey(path string, options uploadsim.UploadOptions) string {
	if s.cache == nil {
		return ""
	}

	file, err := os.Open(path)
	if err != nil {
		// The upload itself reports the open failure.
		return ""
	}
	defer file.Close()

	key, err := storage.GenerateCacheKey(file, options)
	if err != nil {
		s.logger.Warn("Failed to derive cache key", zap.String("path", path), zap.Error(err))
		return ""
	}
	return key
}

func (s *Service) archive(ctx context.Context, path string) string {
	if s.archiver == nil {
		return ""
	}

	file, err := os.Open(path)
	if err != nil {
		s.logger.Warn("Failed to reopen file for archive", zap.String("path", path), zap.Error(err))
		return ""
	}
	defer file.Close()

	archiveURL, err := s.archiver.Archive(ctx, file, filepath.Base(path))
	if err != nil {
		s.logger.Warn("Failed to archive original", zap.String("path", path), zap.Error(err))
		return ""
	}
	return archiveURL
}

func (s *Service) publish(ctx context.Context, path string, result *Result) {
	if s.events == nil {
		return
	}

	event := queue.NewUploadedEvent(filepath.Base(path), result.Image)
	event.ArchiveURL = result.ArchiveURL
	event.Cached = result.Cached
	if err := s.events.PublishUploaded(ctx, event); err != nil {
		s.logger.Warn("Failed to publish upload event", zap.String("path", path), zap.Error(err))
	}
}
