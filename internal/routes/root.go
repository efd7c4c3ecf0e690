package routes

import (
	"radworklist/internal/core"

	"github.com/gin-gonic/gin"
)

type Options struct {
	AuthDisabled   bool
	AuthorizedKeys []string
	MaxUploadBytes int64
}

// RootRoutes mounts the worklist API under /api.
func RootRoutes(r *gin.Engine, server *core.WorklistServer, opts Options) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	if opts.MaxUploadBytes > 0 {
		api.Use(MaxBodySize(opts.MaxUploadBytes))
	}
	if !opts.AuthDisabled {
		api.Use(NostrAuthMiddleware(opts.AuthorizedKeys))
	}

	ExamRoutes(api, server)
	PatientRoutes(api, server)
	DicomRoutes(api, server)
}
