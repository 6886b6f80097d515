// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// method, the registered Gin route (raw path when nothing matched) and the
// status code, which keeps cardinality bounded.
//
// Live WebSocket sessions hold their request open for as long as the page is
// shown, so they are measured separately: an open-session gauge and a
// session-length histogram. They are left out of the request latency and size
// histograms.
package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// wsKey marks a request whose connection was upgraded.
const wsKey = "websocket"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// No status label: keeps the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds, WebSocket sessions excluded.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Wish lists are small JSON; the upper buckets cover a full wall.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"method", "path"},
	)

	wsSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_websocket_sessions",
			Help: "Current number of open WebSocket sessions.",
		},
	)

	wsSessionLen = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "http_websocket_session_seconds",
			Help:    "Length of closed WebSocket sessions in seconds.",
			Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 4 * 3600},
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, wsSessions, wsSessionLen)
}

// TrackWebSocket counts an open session on c and returns the func that ends
// it. done is safe to call more than once.
func TrackWebSocket(c *gin.Context) (done func()) {
	if c != nil {
		c.Set(wsKey, true)
	}
	start := time.Now()
	wsSessions.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			wsSessions.Dec()
			wsSessionLen.Observe(time.Since(start).Seconds())
		})
	}
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()

		if c.GetBool(wsKey) {
			return
		}
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
