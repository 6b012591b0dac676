package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the request collectors. Register them once per registry.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"handler", "method", "status"}
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docvault",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests served.",
		}, labels),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docvault",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}

// Metrics counts and times requests under the handler label name.
func Metrics(name string, m *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			defer func(start time.Time) {
				label := prometheus.Labels{
					"handler": name,
					"method":  r.Method,
					"status":  fmt.Sprintf("%dXX", rw.statusCode/100),
				}
				m.Duration.With(label).Observe(time.Since(start).Seconds())
				m.Requests.With(label).Inc()
			}(time.Now())

			next.ServeHTTP(rw, r)
		})
	}
}
