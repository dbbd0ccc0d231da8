package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/uploads-im-client/internal/models"
)

// RequireMultipart rejects requests whose body is not multipart/form-data.
func RequireMultipart() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		contentType := ctx.GetHeader("Content-Type")

		if !strings.HasPrefix(strings.ToLower(contentType), "multipart/form-data") {
			ctx.AbortWithStatusJSON(http.StatusUnsupportedMediaType, models.APIResponse{
				Success: false,
				Error: &models.APIError{
					Code:    "unsupported_media_type",
					Message: "expected multipart/form-data",
				},
			})
			return
		}

		ctx.Next()
	}
}
