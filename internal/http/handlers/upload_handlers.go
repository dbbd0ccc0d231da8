package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/uploads-im-client/internal/config"
	"github.com/phambaophuc/uploads-im-client/internal/models"
	"github.com/phambaophuc/uploads-im-client/internal/services/uploader"
	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"go.uber.org/zap"
)

const imageParamKey = "image"

type Uploader interface {
	Upload(ctx context.Context, path string, options uploadsim.UploadOptions) (*uploader.Result, error)
}

type StorageBackend interface {
	HealthCheck(ctx context.Context) map[string]string
	GetCacheStats(ctx context.Context) (map[string]interface{}, error)
}

type QueueBackend interface {
	HealthCheck() string
	GetQueueStats() (map[string]interface{}, error)
}

type UploadHandler struct {
	uploader Uploader
	storage  StorageBackend
	queue    QueueBackend
	logger   *zap.Logger
	config   *config.Config
}

// NewUploadHandler wires the handler. storage and queue may be nil when the
// backends are not configured.
func NewUploadHandler(
	uploader Uploader,
	storage StorageBackend,
	queue QueueBackend,
	logger *zap.Logger,
	config *config.Config,
) *UploadHandler {
	return &UploadHandler{
		uploader: uploader,
		storage:  storage,
		queue:    queue,
		logger:   logger,
		config:   config,
	}
}

func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile(imageParamKey)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "missing_file", "No image file provided")
		return
	}

	if err := h.checkFile(header); err != nil {
		h.respondAPIError(c, err)
		return
	}

	options, err := h.parseUploadOptions(c)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	path, cleanup, err := h.saveUpload(c, header)
	if err != nil {
		h.logger.Error("Failed to spool upload", zap.Error(err))
		h.respondError(c, http.StatusInternalServerError, "internal_error", "Internal file error")
		return
	}
	defer cleanup()

	result, err := h.uploader.Upload(c.Request.Context(), path, options)
	if err != nil {
		status, apiErr := errorResponse(err)
		h.logger.Warn("Upload failed",
			zap.String("filename", header.Filename),
			zap.Int("status", status),
			zap.Error(err))
		c.JSON(status, models.APIResponse{Success: false, Error: apiErr})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    result,
	})
}

// HealthCheck
func (h *UploadHandler) HealthCheck(c *gin.Context) {
	services := map[string]string{
		"redis":    models.StatusNotConfigured,
		"supabase": models.StatusNotConfigured,
		"rabbitmq": models.StatusNotConfigured,
	}
	if h.storage != nil {
		for name, status := range h.storage.HealthCheck(c.Request.Context()) {
			services[name] = status
		}
	}
	if h.queue != nil {
		services["rabbitmq"] = h.queue.HealthCheck()
	}

	health := models.NewHealthCheck(services)

	statusCode := http.StatusOK
	if !health.Healthy() {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.APIResponse{
		Success: health.Healthy(),
		Data:    health,
	})
}

func (h *UploadHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now(),
	}

	if h.storage != nil {
		cacheStats, err := h.storage.GetCacheStats(c.Request.Context())
		if err != nil {
			h.logger.Error("Failed to get cache stats", zap.Error(err))
		}
		stats["cache"] = cacheStats
	}

	if h.queue != nil {
		queueStats, err := h.queue.GetQueueStats()
		if err != nil {
			h.logger.Error("Failed to get queue stats", zap.Error(err))
		}
		stats["queue"] = queueStats
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    stats,
	})
}
