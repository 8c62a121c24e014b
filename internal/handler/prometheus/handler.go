package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/appointment-web/pkg/metrics"
)

type Handler struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// New exposes registry and records request metrics into m.
func New(registry *prometheus.Registry, m *metrics.Metrics) *Handler {
	return &Handler{registry: registry, metrics: m}
}

// Middleware records duration and count of every request by route pattern.
// Requests that match no route share the "unmatched" path label.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		h.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		h.metrics.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		for _, e := range c.Errors {
			h.metrics.ErrorTotal.WithLabelValues(c.Request.Method, path, errorType(e)).Inc()
		}
	}
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}

func errorType(e *gin.Error) string {
	switch {
	case e.IsType(gin.ErrorTypeBind):
		return "bind"
	case e.IsType(gin.ErrorTypeRender):
		return "render"
	case e.IsType(gin.ErrorTypePublic):
		return "public"
	default:
		return "private"
	}
}
