// Package metrics implements the comparison pipeline's metrics recorder on
// top of Prometheus. Recording is side-effect only and never errors into
// the request path.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts requests and outcomes and tracks the latency
// distribution. All underlying collectors are safe for concurrent use.
type Recorder struct {
	requests *prometheus.CounterVec
	results  *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewRecorder builds a recorder and registers its collectors. Registration
// happens once at startup; a duplicate registration is a programming error
// and panics there, never during request handling.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "face_comparison_requests_total",
			Help: "Total face comparison requests by status.",
		}, []string{"status"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "face_comparison_results_total",
			Help: "Completed comparisons by verdict and confidence tier.",
		}, []string{"same_person", "confidence"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "face_comparison_failures_total",
			Help: "Failed comparisons by error kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "face_comparison_duration_seconds",
			Help:    "End-to-end comparison latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	reg.MustRegister(r.requests, r.results, r.failures, r.latency)
	return r
}

// RequestStarted counts an accepted comparison request.
func (r *Recorder) RequestStarted() {
	r.requests.WithLabelValues("started").Inc()
}

// RequestSucceeded counts a completed comparison and its outcome.
func (r *Recorder) RequestSucceeded(confidence string, samePerson bool) {
	r.requests.WithLabelValues("success").Inc()
	r.results.WithLabelValues(strconv.FormatBool(samePerson), confidence).Inc()
}

// RequestFailed counts a failed comparison by error kind.
func (r *Recorder) RequestFailed(kind string) {
	r.requests.WithLabelValues("error").Inc()
	r.failures.WithLabelValues(kind).Inc()
}

// ObserveLatency records one end-to-end latency sample in milliseconds.
func (r *Recorder) ObserveLatency(ms float64) {
	r.latency.Observe(ms / 1000)
}
