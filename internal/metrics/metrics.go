package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render job metrics
var (
	RenderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidecast_render_jobs_total",
			Help: "Total number of render jobs by terminal status",
		},
		[]string{"status"},
	)

	RenderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slidecast_render_job_duration_seconds",
			Help:    "Wall-clock render job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FramesCapturedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slidecast_frames_captured_total",
			Help: "Total number of frames captured and written to the encoder",
		},
	)

	RenderJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slidecast_render_jobs_in_flight",
			Help: "Number of render jobs currently running",
		},
	)
)

// Session pool metrics
var (
	PoolRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slidecast_pool_restarts_total",
			Help: "Total number of browser pool restarts",
		},
	)
)

// PoolStats is the occupancy snapshot consumed by RegisterPool.
type PoolStats struct {
	Free    int
	Busy    int
	Waiting int
}

// RegisterPool exposes live pool occupancy gauges backed by the given
// snapshot function. Call once at daemon start.
func RegisterPool(stats func() PoolStats) {
	for _, g := range []struct {
		name, help string
		value      func(PoolStats) float64
	}{
		{"slidecast_pool_sessions_free", "Number of free browser sessions", func(s PoolStats) float64 { return float64(s.Free) }},
		{"slidecast_pool_sessions_busy", "Number of busy browser sessions", func(s PoolStats) float64 { return float64(s.Busy) }},
		{"slidecast_pool_waiting", "Number of callers waiting for a session", func(s PoolStats) float64 { return float64(s.Waiting) }},
	} {
		value := g.value
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return value(stats()) },
		))
	}
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
