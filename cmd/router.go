package cmd

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/sprt/internal/metrics"
	"github.com/luma/sprt/storage"
)

func setupRouter(debugHTTP bool, log *zap.Logger, store storage.Store, m *metrics.Metrics) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	// Ping test
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/stats", func(c *gin.Context) {
		snap, err := store.Snapshot(c.Request.Context())
		if err != nil {
			log.Error("Failed to snapshot stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
			return
		}

		c.JSON(http.StatusOK, snap)
	})

	r.GET("/metrics", gin.WrapH(m.Handler()))

	return r
}
