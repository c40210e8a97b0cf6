package face

// Confidence is the discrete tier derived from a similarity score.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Thresholds carries the two independent cut points of the classifier: the
// same-person decision threshold and the tier band boundaries. The decision
// threshold deliberately falls inside the medium band.
type Thresholds struct {
	Decision float64
	High     float64
	Medium   float64
}

// DefaultThresholds mirrors the buffalo_l tuning.
var DefaultThresholds = Thresholds{Decision: 0.65, High: 0.75, Medium: 0.60}

// Classify maps a similarity score to a same-person verdict and a tier.
// Boundaries are closed on the lower edge: a score of exactly High is high,
// exactly Medium is medium.
func Classify(score float64, t Thresholds) (bool, Confidence) {
	same := score >= t.Decision
	switch {
	case score >= t.High:
		return same, ConfidenceHigh
	case score >= t.Medium:
		return same, ConfidenceMedium
	default:
		return same, ConfidenceLow
	}
}
