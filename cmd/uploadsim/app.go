package main

import (
	"net/http"

	"github.com/phambaophuc/uploads-im-client/internal/config"
	"github.com/phambaophuc/uploads-im-client/internal/http/handlers"
	"github.com/phambaophuc/uploads-im-client/internal/http/routes"
	"github.com/phambaophuc/uploads-im-client/internal/services/processor"
	"github.com/phambaophuc/uploads-im-client/internal/services/queue"
	"github.com/phambaophuc/uploads-im-client/internal/services/storage"
	"github.com/phambaophuc/uploads-im-client/internal/services/uploader"
	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"go.uber.org/zap"
)

// app holds the services shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	storage  *storage.StorageService
	queue    *queue.QueueService
	uploader *uploader.Service
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		storage: storage.NewStorageService(cfg, logger),
	}

	if cfg.RabbitMQ.URL != "" {
		q, err := queue.NewQueueService(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		if err != nil {
			// Continue without upload events
			logger.Warn("Failed to initialize queue service", zap.Error(err))
		} else {
			a.queue = q
		}
	}

	client := uploadsim.NewClient(
		&http.Client{Timeout: cfg.Uploads.HTTPTimeout},
		uploadsim.WithLogger(logger),
	)

	opts := []uploader.Option{
		uploader.WithValidator(processor.NewImageProcessor(cfg.Storage.MaxFileSize).WithMaxPixels(cfg.Storage.MaxPixels)),
	}
	if a.storage.CacheEnabled() {
		opts = append(opts, uploader.WithCache(a.storage))
	}
	if a.storage.ArchiveEnabled() {
		opts = append(opts, uploader.WithArchiver(a.storage))
	}
	if a.queue != nil {
		opts = append(opts, uploader.WithEventPublisher(a.queue))
	}
	a.uploader = uploader.NewService(client, logger, opts...)

	return a
}

func (a *app) router() http.Handler {
	// Typed nil pointers must not reach the handler's interfaces.
	var queueBackend handlers.QueueBackend
	if a.queue != nil {
		queueBackend = a.queue
	}

	handler := handlers.NewUploadHandler(a.uploader, a.storage, queueBackend, a.logger, a.cfg)
	return routes.NewRouter(handler, a.logger).SetupRoutes()
}

func (a *app) close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Warn("Failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}
