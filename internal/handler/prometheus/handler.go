package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/carelink-api/pkg/metrics"
)

type Handler struct {
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
}

// New serves gatherer on /metrics and records request metrics into m.
func New(gatherer prometheus.Gatherer, m *metrics.Metrics) *Handler {
	return &Handler{gatherer: gatherer, metrics: m}
}

// Middleware labels requests by route template so ids do not explode
// cardinality. Unmatched routes are grouped under "unmatched".
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
	}
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/metrics", h.Handler())
}
