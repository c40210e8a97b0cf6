// Package face holds the domain model of the comparison pipeline: detected
// faces, the selection policy, similarity scoring, and confidence
// classification. The embedding engine is consumed through the Detector
// interface and implemented by infrastructure adapters.
package face

import (
	"context"

	"github.com/example/face-compare/internal/imaging"
)

// EmbeddingSize is the dimensionality produced by the default model.
const EmbeddingSize = 512

// BoundingBox locates a detected face within an image as two corner
// coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Area returns the box area. Degenerate boxes count as zero.
func (b BoundingBox) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Face is one detection: a bounding region, the identity embedding, and the
// detector's own confidence. The detector confidence is carried but plays
// no part in the comparison decision.
type Face struct {
	Box        BoundingBox
	Embedding  []float32
	Confidence float32
}

// Detector is the embedding-engine capability consumed by the pipeline.
// An empty result means no face was found; that is a valid outcome, not an
// error. Implementations must be safe for concurrent use or be wrapped in
// a serializing handle.
type Detector interface {
	Detect(ctx context.Context, img *imaging.Image) ([]Face, error)
}
