package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/uploads-im-client/internal/models"
	"github.com/phambaophuc/uploads-im-client/internal/services/processor"
	"github.com/phambaophuc/uploads-im-client/internal/services/uploader"
	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"github.com/phambaophuc/uploads-im-client/pkg/utils"
)

// === REQUEST PARSING ===

func (h *UploadHandler) parseUploadOptions(c *gin.Context) (uploadsim.UploadOptions, error) {
	opts := []uploadsim.Option{uploadsim.WithHost(h.config.Uploads.Host)}

	if value := c.PostForm("resize_width"); value != "" {
		width, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return uploadsim.UploadOptions{}, errors.New("invalid resize_width: must be a non-negative integer")
		}
		opts = append(opts, uploadsim.WithResizeWidth(width))
	}

	if value := c.PostForm("thumb_width"); value != "" {
		width, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return uploadsim.UploadOptions{}, fmt.Errorf("invalid thumb_width: must be an integer between 0 and %d", uint64(math.MaxUint32))
		}
		opts = append(opts, uploadsim.WithThumbnailWidth(uint32(width)))
	}

	if value := c.PostForm("family_unsafe"); value != "" {
		unsafe, err := strconv.ParseBool(value)
		if err != nil {
			return uploadsim.UploadOptions{}, errors.New("invalid family_unsafe: must be a boolean")
		}
		opts = append(opts, uploadsim.WithFamilyUnsafe(unsafe))
	}

	return uploadsim.NewUploadOptions(opts...), nil
}

// === FILE OPERATIONS ===

// checkFile applies the checks possible without reading the part.
func (h *UploadHandler) checkFile(header *multipart.FileHeader) *models.APIError {
	if limit := h.config.Storage.MaxFileSize; limit > 0 && header.Size > limit {
		return &models.APIError{
			Code:    "file_too_large",
			Message: fmt.Sprintf("file size %d exceeds maximum allowed size %d", header.Size, limit),
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !utils.IsValidImageType(contentType) {
		return &models.APIError{
			Code:    "unsupported_media_type",
			Message: fmt.Sprintf("unsupported content type %q", contentType),
		}
	}

	return nil
}

// saveUpload spools the part into a fresh directory under its original base
// name, which is the name uploads.im records. cleanup removes only that
// directory.
func (h *UploadHandler) saveUpload(c *gin.Context, header *multipart.FileHeader) (string, func(), error) {
	if err := os.MkdirAll(h.config.Storage.UploadPath, 0o700); err != nil {
		return "", nil, fmt.Errorf("failed to create spool dir: %w", err)
	}

	dir, err := os.MkdirTemp(h.config.Storage.UploadPath, "upload-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create spool dir: %w", err)
	}
	path := filepath.Join(dir, utils.SpoolFileName(header.Filename))

	cleanup := func() { os.RemoveAll(dir) }
	if err := c.SaveUploadedFile(header, path); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to save upload: %w", err)
	}

	return path, cleanup, nil
}

// === RESPONSE HANDLING ===

func (h *UploadHandler) respondError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Error:   &models.APIError{Code: code, Message: message},
	})
}

func (h *UploadHandler) respondAPIError(c *gin.Context, apiErr *models.APIError) {
	status := http.StatusBadRequest
	switch apiErr.Code {
	case "file_too_large":
		status = http.StatusRequestEntityTooLarge
	case "unsupported_media_type":
		status = http.StatusUnsupportedMediaType
	}
	c.JSON(status, models.APIResponse{Success: false, Error: apiErr})
}

// errorResponse maps an upload failure to the HTTP status and body sent to
// the caller.
func errorResponse(err error) (int, *models.APIError) {
	if errors.Is(err, uploader.ErrInvalidImage) {
		status := http.StatusBadRequest
		code := "invalid_image"
		switch {
		case errors.Is(err, processor.ErrFileTooLarge):
			status, code = http.StatusRequestEntityTooLarge, "file_too_large"
		case errors.Is(err, processor.ErrImageTooLarge):
			status, code = http.StatusRequestEntityTooLarge, "image_too_large"
		}
		return status, &models.APIError{Code: code, Message: err.Error()}
	}

	var uploadErr *uploadsim.UploadError
	if !errors.As(err, &uploadErr) {
		return http.StatusInternalServerError, &models.APIError{Code: "internal_error", Message: "Internal server error"}
	}

	apiErr := &models.APIError{Message: err.Error()}
	switch uploadErr.Kind {
	case uploadsim.ErrInvalidFilename:
		apiErr.Code = "invalid_filename"
		return http.StatusBadRequest, apiErr
	case uploadsim.ErrSendingRequest:
		if isTimeout(err) {
			apiErr.Code = "upstream_timeout"
			return http.StatusGatewayTimeout, apiErr
		}
		apiErr.Code = "upstream_unreachable"
		return http.StatusBadGateway, apiErr
	case uploadsim.ErrResponseReturnedFailure:
		apiErr.Code = "upstream_rejected"
		apiErr.Upstream = &models.UpstreamStatus{
			StatusCode: uploadErr.StatusCode,
			StatusText: uploadErr.StatusText,
		}
		return http.StatusBadGateway, apiErr
	case uploadsim.ErrParsingResponse:
		apiErr.Code = "upstream_bad_response"
		return http.StatusBadGateway, apiErr
	case uploadsim.ErrBuildingRequest:
		apiErr.Code = "invalid_upstream_host"
		return http.StatusInternalServerError, apiErr
	default:
		apiErr.Code = "io_error"
		return http.StatusInternalServerError, apiErr
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
