package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/face-compare/internal/config"
	"github.com/example/face-compare/internal/imaging"
	"github.com/example/face-compare/internal/usecase"
	"github.com/example/face-compare/internal/workerpool"
)

// Comparer is the single business operation the transport exposes.
type Comparer interface {
	CompareFaces(ctx context.Context, image1, image2 string) (*usecase.ComparisonResult, error)
}

// EngineStatus is what the health endpoint needs to know about the shared
// engine handle.
type EngineStatus interface {
	Loaded() bool
	ModelName() string
}

type compareRequest struct {
	Image1 string `json:"image1" binding:"required"`
	Image2 string `json:"image2" binding:"required"`
}

// RegisterRoutes wires the HTTP surface to the Gin router. metricsHandler
// serves the Prometheus exposition; authGuard may be nil for an open API.
func RegisterRoutes(router *gin.Engine, uc Comparer, engine EngineStatus, cfg *config.Config, metricsHandler http.Handler, authGuard gin.HandlerFunc) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.AppName,
			"version": cfg.AppVersion,
			"status":  "running",
			"endpoints": gin.H{
				"compare_faces": "/api/v1/compare_faces",
				"info":          "/api/v1/info",
				"health":        "/health",
				"metrics":       "/metrics",
			},
		})
	})

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if !engine.Loaded() {
			status = "initializing"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       status,
			"model_loaded": engine.Loaded(),
			"model_name":   engine.ModelName(),
		})
	})

	router.GET("/api/v1/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"model":                cfg.ModelName,
			"detection_size":       cfg.DetectionSize,
			"similarity_threshold": cfg.SimilarityThreshold,
			"max_file_size_mb":     cfg.MaxFileSize / (1024 * 1024),
			"supported_formats":    cfg.SupportedFormats,
			"worker_pool_size":     cfg.WorkerPoolSize,
			"provider":             cfg.Provider,
		})
	})

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	compare := func(c *gin.Context) {
		var req compareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "image1 and image2 are required base64 strings"})
			return
		}

		result, err := uc.CompareFaces(c.Request.Context(), req.Image1, req.Image2)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("X-Process-Time", fmt.Sprintf("%.2fms", result.ProcessingTime))
		c.JSON(http.StatusOK, result)
	}

	if authGuard != nil {
		router.POST("/api/v1/compare_faces", authGuard, compare)
	} else {
		router.POST("/api/v1/compare_faces", compare)
	}
}

// writeError maps pipeline errors onto transport status codes. Client-caused
// validation failures carry enough detail to self-correct; everything else
// is opaque to the caller and detailed only in the logs.
func writeError(c *gin.Context, err error) {
	var decodeErr *imaging.DecodeError
	var sizeErr *imaging.SizeLimitError
	var formatErr *imaging.UnsupportedFormatError
	switch {
	case errors.As(err, &decodeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &sizeErr):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.As(err, &formatErr):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, workerpool.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is busy, retry later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
