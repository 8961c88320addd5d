package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuttle_run_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shuttle_run_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var heartRateDesc = prometheus.NewDesc(
	"shuttle_run_heart_rate_bpm",
	"Latest heart rate per player.",
	[]string{"player"}, nil,
)

// newRegistry builds the registry served on /metrics. Each server gets its
// own so the test gauges read from that server's driver and roster.
func newRegistry(s *Server) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequestsTotal,
		httpRequestDuration,
		&testCollector{s: s},
	)
	return reg
}

// testCollector reports the current test and roster at scrape time.
type testCollector struct {
	s *Server
}

var (
	levelDesc     = prometheus.NewDesc("shuttle_run_level", "Current level.", nil, nil)
	shuttleDesc   = prometheus.NewDesc("shuttle_run_shuttle", "Current shuttle within the level.", nil, nil)
	distanceDesc  = prometheus.NewDesc("shuttle_run_distance_meters", "Distance covered in the current test.", nil, nil)
	speedDesc     = prometheus.NewDesc("shuttle_run_speed_kmh", "Current running speed.", nil, nil)
	runningDesc   = prometheus.NewDesc("shuttle_run_running", "1 while a test is counting down or running.", nil, nil)
	completedDesc = prometheus.NewDesc("shuttle_run_players_completed", "Players marked complete.", nil, nil)
	playersDesc   = prometheus.NewDesc("shuttle_run_players", "Players on the roster.", nil, nil)
)

func (c *testCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{levelDesc, shuttleDesc, distanceDesc, speedDesc, runningDesc, completedDesc, playersDesc, heartRateDesc} {
		ch <- d
	}
}

func (c *testCollector) Collect(ch chan<- prometheus.Metric) {
	f := c.s.frames.Frame()
	running := 0.0
	if f.Phase.Active() {
		running = 1
	}
	stats := c.s.roster.Stats()

	ch <- prometheus.MustNewConstMetric(levelDesc, prometheus.GaugeValue, float64(f.State.Level))
	ch <- prometheus.MustNewConstMetric(shuttleDesc, prometheus.GaugeValue, float64(f.State.Shuttle))
	ch <- prometheus.MustNewConstMetric(distanceDesc, prometheus.GaugeValue, f.State.DistanceMeters)
	ch <- prometheus.MustNewConstMetric(speedDesc, prometheus.GaugeValue, f.State.SpeedKmh)
	ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.GaugeValue, running)
	ch <- prometheus.MustNewConstMetric(completedDesc, prometheus.GaugeValue, float64(stats.Completed))
	ch <- prometheus.MustNewConstMetric(playersDesc, prometheus.GaugeValue, float64(stats.Players))

	if c.s.heartRates != nil {
		for id, rd := range c.s.heartRates.Latest() {
			ch <- prometheus.MustNewConstMetric(heartRateDesc, prometheus.GaugeValue, float64(rd.BPM), strconv.Itoa(id))
		}
	}
}

// metricsMiddleware records request count and duration for every HTTP request.
// Uses the chi route pattern (not the raw path) to avoid unbounded cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
