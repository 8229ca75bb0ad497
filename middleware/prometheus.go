package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homezy_http_requests_total",
			Help: "Total number of HTTP requests by module",
		},
		[]string{"module", "method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homezy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by module",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"module", "method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// routeModule 取 /api/v1/<module>/... 中的业务模块，积分和优惠券分开统计
func routeModule(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "system"
	}
	module, _, _ := strings.Cut(rest, "/")
	if module == "" {
		return "system"
	}
	return module
}

func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath() // 路由模板，避免优惠码等参数撑爆标签
		if path == "" {
			path = "unknown"
		}
		module := routeModule(path)

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(module, c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(module, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
