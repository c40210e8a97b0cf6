package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/example/face-compare/internal/face"
	"github.com/example/face-compare/internal/imaging"
)

// Handle is the single shared, effectively-immutable handle to the loaded
// embedding capability. It is constructed once at process start and
// borrowed by every request; inference calls are stateless reads. When the
// underlying detector is not safe for concurrent use, the handle serializes
// calls instead of allowing data races, at the cost of inference
// throughput.
type Handle struct {
	detector  face.Detector
	modelName string
	detSize   [2]int
	serialize bool
	mu        sync.Mutex
	loaded    atomic.Bool
}

// NewHandle wraps a detector. Warmup must succeed before the handle reports
// itself loaded.
func NewHandle(detector face.Detector, modelName string, detSize [2]int, serialize bool) *Handle {
	return &Handle{
		detector:  detector,
		modelName: modelName,
		detSize:   detSize,
		serialize: serialize,
	}
}

// Warmup verifies the capability is ready. Detectors that expose a Ping are
// probed; others are assumed ready once constructed.
func (h *Handle) Warmup(ctx context.Context) error {
	if p, ok := h.detector.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return &Failure{Err: err}
		}
	}
	h.loaded.Store(true)
	return nil
}

// Detect runs detection through the shared handle.
func (h *Handle) Detect(ctx context.Context, img *imaging.Image) ([]face.Face, error) {
	if h.serialize {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	return h.detector.Detect(ctx, img)
}

// Loaded reports whether Warmup has completed.
func (h *Handle) Loaded() bool { return h.loaded.Load() }

// ModelName returns the configured model identifier.
func (h *Handle) ModelName() string { return h.modelName }

// DetectionSize returns the configured detection input size.
func (h *Handle) DetectionSize() [2]int { return h.detSize }
