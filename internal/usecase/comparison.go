package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/face-compare/internal/face"
	"github.com/example/face-compare/internal/imaging"
	"github.com/example/face-compare/internal/logging"
	"github.com/example/face-compare/internal/workerpool"
)

// ComparisonResult is the immutable outcome of one compare call. Similarity
// is meaningful only when both detection flags are true; otherwise it is
// reported as 0 with confidence "none".
type ComparisonResult struct {
	IsSamePerson   bool            `json:"is_same_person"`
	Similarity     float64         `json:"similarity"`
	Confidence     face.Confidence `json:"confidence"`
	Face1Detected  bool            `json:"face1_detected"`
	Face2Detected  bool            `json:"face2_detected"`
	Message        string          `json:"message"`
	ProcessingTime float64         `json:"processing_time"`
}

// Options carries the tunables the orchestrator needs from the service
// configuration.
type Options struct {
	MaxFileSize int
	Thresholds  face.Thresholds
	CacheTTL    time.Duration
}

// ComparisonUseCase composes decode, detection, selection, scoring, and
// classification into the end-to-end compare operation. CPU-bound steps run
// on the worker pool so callers' goroutines stay free to accept requests.
type ComparisonUseCase struct {
	detector face.Detector
	pool     *workerpool.Pool
	cache    Cache
	metrics  MetricsRecorder
	logger   *zap.Logger
	opts     Options
}

// NewComparisonUseCase constructs the orchestrator. cache may be nil to
// disable result caching.
func NewComparisonUseCase(detector face.Detector, pool *workerpool.Pool, cache Cache, rec MetricsRecorder, logger *zap.Logger, opts Options) *ComparisonUseCase {
	if rec == nil {
		rec = NopMetrics{}
	}
	return &ComparisonUseCase{
		detector: detector,
		pool:     pool,
		cache:    cache,
		metrics:  rec,
		logger:   logger.Named("comparison_usecase"),
		opts:     opts,
	}
}

// pipelineResult is the outcome of one per-image decode+detect+select pass.
type pipelineResult struct {
	face     face.Face
	detected bool
	err      error
}

// CompareFaces decides whether the faces in two base64-encoded images
// belong to the same identity. Validation failures propagate as errors;
// "no face detected" is folded into a successful result.
func (uc *ComparisonUseCase) CompareFaces(ctx context.Context, image1, image2 string) (*ComparisonResult, error) {
	start := time.Now()
	uc.metrics.RequestStarted()

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.compare_faces", requestID)

	if uc.cache != nil {
		if cached, ok := uc.cacheLookup(ctx, opLogger, image1, image2); ok {
			uc.metrics.RequestSucceeded(string(cached.Confidence), cached.IsSamePerson)
			uc.metrics.ObserveLatency(elapsedMillis(start))
			return cached, nil
		}
	}

	// The two per-image pipelines are independent; both are dispatched to
	// the pool and joined before any scoring happens.
	var r1, r2 pipelineResult
	var wg sync.WaitGroup
	var submit1, submit2 error
	wg.Add(2)
	go func() {
		defer wg.Done()
		submit1 = uc.pool.Do(ctx, uc.imagePipeline(ctx, 1, image1, requestID, &r1))
	}()
	go func() {
		defer wg.Done()
		submit2 = uc.pool.Do(ctx, uc.imagePipeline(ctx, 2, image2, requestID, &r2))
	}()
	wg.Wait()

	for _, err := range []error{submit1, r1.err, submit2, r2.err} {
		if err != nil {
			return nil, uc.fail(opLogger, err)
		}
	}

	var score float64
	if r1.detected && r2.detected {
		if err := uc.pool.Do(ctx, func() {
			score = face.Similarity(r1.face.Embedding, r2.face.Embedding)
		}); err != nil {
			return nil, uc.fail(opLogger, err)
		}
	}

	same := false
	confidence := face.ConfidenceNone
	if r1.detected && r2.detected {
		same, confidence = face.Classify(score, uc.opts.Thresholds)
	}

	elapsed := elapsedMillis(start)
	result := &ComparisonResult{
		IsSamePerson:   same,
		Similarity:     round(score, 4),
		Confidence:     confidence,
		Face1Detected:  r1.detected,
		Face2Detected:  r2.detected,
		Message:        buildMessage(same, score, r1.detected, r2.detected),
		ProcessingTime: round(elapsed, 2),
	}

	uc.metrics.RequestSucceeded(string(confidence), same)
	uc.metrics.ObserveLatency(elapsed)
	opLogger.Info("comparison completed",
		zap.Bool("same_person", same),
		zap.Float64("similarity", result.Similarity),
		zap.String("confidence", string(confidence)),
		zap.Float64("processing_time_ms", result.ProcessingTime),
	)

	if uc.cache != nil {
		uc.cacheStore(ctx, opLogger, image1, image2, result)
	}
	return result, nil
}

// imagePipeline builds the pool task for one image: decode, detect, select.
func (uc *ComparisonUseCase) imagePipeline(ctx context.Context, index int, encoded, requestID string, out *pipelineResult) func() {
	return func() {
		img, err := imaging.Decode(encoded, uc.opts.MaxFileSize)
		if err != nil {
			out.err = fmt.Errorf("image %d: %w", index, err)
			return
		}
		faces, err := uc.detector.Detect(ctx, img)
		if err != nil {
			out.err = logging.NewOperationError("usecase.detect_faces", requestID, err)
			return
		}
		out.face, out.detected = face.SelectLargest(faces)
	}
}

func (uc *ComparisonUseCase) fail(opLogger *zap.Logger, err error) error {
	kind := errorKind(err)
	uc.metrics.RequestFailed(kind)
	if kind == kindEngineFailure {
		opLogger.Error("comparison failed", zap.String("kind", kind), zap.Error(err))
	} else {
		opLogger.Warn("comparison rejected", zap.String("kind", kind), zap.Error(err))
	}
	return err
}

func buildMessage(same bool, score float64, det1, det2 bool) string {
	switch {
	case !det1 && !det2:
		return "no face detected in either image"
	case !det1:
		return "no face detected in image 1"
	case !det2:
		return "no face detected in image 2"
	case same:
		return fmt.Sprintf("the two images show the same person (similarity: %.2f%%)", score*100)
	default:
		return fmt.Sprintf("the two images show different people (similarity: %.2f%%)", score*100)
	}
}

// Error kinds reported to the metrics recorder and used for transport
// status mapping.
const (
	kindDecodeError       = "decode_error"
	kindSizeLimit         = "size_limit"
	kindUnsupportedFormat = "unsupported_format"
	kindQueueFull         = "queue_full"
	kindCanceled          = "canceled"
	kindEngineFailure     = "engine_failure"
)

func errorKind(err error) string {
	var decodeErr *imaging.DecodeError
	var sizeErr *imaging.SizeLimitError
	var formatErr *imaging.UnsupportedFormatError
	switch {
	case errors.As(err, &decodeErr):
		return kindDecodeError
	case errors.As(err, &sizeErr):
		return kindSizeLimit
	case errors.As(err, &formatErr):
		return kindUnsupportedFormat
	case errors.Is(err, workerpool.ErrQueueFull):
		return kindQueueFull
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return kindCanceled
	default:
		return kindEngineFailure
	}
}

func elapsedMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
