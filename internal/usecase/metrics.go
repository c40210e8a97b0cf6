package usecase

// MetricsRecorder receives typed observations from the comparison path.
// Implementations must be safe for concurrent use and must never block or
// propagate failures into a comparison.
type MetricsRecorder interface {
	RequestStarted()
	RequestSucceeded(confidence string, samePerson bool)
	RequestFailed(kind string)
	ObserveLatency(ms float64)
}

// NopMetrics discards every observation. Used in tests and as the fallback
// when no recorder is wired.
type NopMetrics struct{}

func (NopMetrics) RequestStarted()               {}
func (NopMetrics) RequestSucceeded(string, bool) {}
func (NopMetrics) RequestFailed(string)          {}
func (NopMetrics) ObserveLatency(float64)        {}
