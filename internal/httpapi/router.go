// Package httpapi exposes releases over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/image-release-tools/internal/logging"
	"github.com/ironsheep/image-release-tools/internal/telemetry"
)

// SetupRouter wires the release API. metrics may be nil, in which case
// /metrics is not served.
func SetupRouter(h *ReleaseHandler, metrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logging.L().With("component", "http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/transforms", h.ListTransforms)
		api.POST("/plan", h.Plan)

		releases := api.Group("/releases")
		{
			releases.POST("", h.StartRelease)
			releases.GET("", h.ListReleases)
			releases.GET("/:id", h.GetRelease)
			releases.GET("/:id/progress", h.GetProgress)
		}
	}

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
