package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter mounts every CRM route on a fresh gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log()), cors)

	a := r.Group("/api")
	{
		a.POST("/session", h.Login)
		a.DELETE("/session", h.Logout)
		a.GET("/theme", h.GetTheme)
		a.PUT("/theme", h.SetTheme)
	}

	auth := a.Group("", h.RequireIdentity)
	{
		auth.GET("/session", h.GetSession)

		auth.GET("/clients", h.ListClients)
		auth.GET("/clients/tags", h.ListTags)
		auth.GET("/clients/export", h.ExportClients)
		auth.POST("/clients/import", h.ImportClients)
		auth.POST("/clients", h.CreateClient)
		auth.GET("/clients/:id", h.GetClient)
		auth.PATCH("/clients/:id", h.UpdateClient)
		auth.DELETE("/clients/:id", h.DeleteClient)

		auth.GET("/activities", h.ListActivities)
		auth.POST("/activities", h.CreateActivity)
		auth.PATCH("/activities/:id", h.UpdateActivity)
		auth.DELETE("/activities/:id", h.DeleteActivity)

		auth.GET("/dashboard", h.GetDashboard)

		auth.GET("/persistence", h.GetPersistence)
		auth.POST("/persistence/retry", h.RetryPersistence)
	}

	if opts.MetricsPath != "" {
		g := opts.Gatherer
		if g == nil {
			g = prometheus.DefaultGatherer
		}
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
