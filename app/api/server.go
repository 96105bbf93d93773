package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/health", handler.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/regions", handler.ListRegions)

		api.POST("/sessions", handler.CreateSession)
		api.GET("/sessions/:id", handler.GetSession)
		api.DELETE("/sessions/:id", handler.DeleteSession)

		api.POST("/sessions/:id/next", handler.FetchNext)
		api.POST("/sessions/:id/retry", handler.Retry)

		api.PUT("/sessions/:id/filter", handler.SetFilter)
		api.POST("/sessions/:id/query", handler.SetQuery)
		api.POST("/sessions/:id/keywords", handler.ApplyKeywords)
		api.POST("/sessions/:id/reset", handler.ResetFilters)

		api.POST("/sessions/:id/details", handler.RequestDetails)
		api.PUT("/sessions/:id/details/:itemID", handler.ReportDetail)

		api.GET("/sessions/:id/feed.xml", handler.GetFeed)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "Festival Comb",
			"version":     handler.version,
			"description": "Incrementally loaded festival catalog with detail-aware filtering",
			"endpoints": map[string]string{
				"health":   "/health",
				"regions":  "/api/regions",
				"sessions": "/api/sessions (POST to start browsing)",
				"session":  "/api/sessions/<id>",
				"feed":     "/api/sessions/<id>/feed.xml",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
