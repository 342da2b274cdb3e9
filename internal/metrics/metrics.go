package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenith_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zenith_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	tleRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenith_tle_refreshes_total",
			Help: "Element set refresh attempts by result (ok, error, timeout).",
		},
		[]string{"result"},
	)

	tleAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zenith_tle_age_seconds",
			Help: "Age of the cached element set per satellite.",
		},
		[]string{"satellite_id"},
	)

	predictionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zenith_prediction_duration_seconds",
			Help:    "Wall time of a full pass-prediction scan.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	passesComputedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_passes_computed_total",
			Help: "Total passes emitted by prediction scans.",
		},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zenith_ws_clients",
			Help: "Currently connected live-tracking WebSocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(tleRefreshesTotal)
	prometheus.MustRegister(tleAgeSeconds)
	prometheus.MustRegister(predictionSeconds)
	prometheus.MustRegister(passesComputedTotal)
	prometheus.MustRegister(wsClients)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncTLERefresh records one refresh attempt outcome.
func IncTLERefresh(result string) {
	tleRefreshesTotal.WithLabelValues(result).Inc()
}

// SetTLEAge records the current element set age for one satellite.
func SetTLEAge(satelliteID string, seconds float64) {
	tleAgeSeconds.WithLabelValues(satelliteID).Set(seconds)
}

// RecordPrediction records one completed prediction scan.
func RecordPrediction(d time.Duration, passes int) {
	predictionSeconds.Observe(d.Seconds())
	passesComputedTotal.Add(float64(passes))
}

// WSClientConnected and WSClientDisconnected track the live client gauge.
func WSClientConnected()    { wsClients.Inc() }
func WSClientDisconnected() { wsClients.Dec() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
