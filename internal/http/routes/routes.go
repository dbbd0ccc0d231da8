package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/uploads-im-client/internal/http/handlers"
	"github.com/phambaophuc/uploads-im-client/internal/http/middleware"
	"go.uber.org/zap"
)

type Router struct {
	uploadHandler *handlers.UploadHandler
	logger        *zap.Logger
}

func NewRouter(
	uploadHandler *handlers.UploadHandler,
	logger *zap.Logger,
) *Router {
	return &Router{
		uploadHandler: uploadHandler,
		logger:        logger,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	// API version 1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.uploadHandler.HealthCheck)
		v1.GET("/stats", r.uploadHandler.GetStats)

		uploads := v1.Group("/uploads", middleware.RequireMultipart())
		{
			uploads.POST("", r.uploadHandler.Upload)
		}
	}

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "uploads.im proxy is running",
		})
	})

	return router
}
