// Package engine provides the infrastructure side of the embedding
// capability: an HTTP client for the inference sidecar and the shared
// process-wide handle every request borrows.
package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/face-compare/internal/face"
	"github.com/example/face-compare/internal/imaging"
)

// Failure wraps an unexpected fault raised by the embedding capability.
// Callers surface it as an internal error; the detail stays in the logs.
type Failure struct {
	Err error
}

func (e *Failure) Error() string { return fmt.Sprintf("embedding engine failure: %v", e.Err) }

func (e *Failure) Unwrap() error { return e.Err }

// HTTPConfig configures the sidecar client.
type HTTPConfig struct {
	Addr          string
	ModelName     string
	DetectionSize [2]int
	Timeout       time.Duration
}

// HTTPDetector talks to an InsightFace inference sidecar over HTTP JSON.
// The sidecar handles resizing to the detection size internally; this
// client only moves bytes and parses detections.
type HTTPDetector struct {
	baseURL string
	model   string
	detSize [2]int
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPDetector builds a detector client for the given sidecar address.
func NewHTTPDetector(cfg HTTPConfig, logger *zap.Logger) *HTTPDetector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDetector{
		baseURL: strings.TrimSuffix(cfg.Addr, "/"),
		model:   cfg.ModelName,
		detSize: cfg.DetectionSize,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("engine"),
	}
}

type detectRequest struct {
	Image         string `json:"image"`
	Model         string `json:"model"`
	DetectionSize [2]int `json:"det_size"`
}

type detectResponse struct {
	Faces []struct {
		Box        [4]float64 `json:"bbox"`
		Embedding  []float32  `json:"embedding"`
		Confidence float32    `json:"confidence"`
	} `json:"faces"`
}

// Detect sends the raw image to the sidecar and returns the detected faces.
// Zero faces is a normal response, not an error.
func (d *HTTPDetector) Detect(ctx context.Context, img *imaging.Image) ([]face.Face, error) {
	payload, err := json.Marshal(detectRequest{
		Image:         base64.StdEncoding.EncodeToString(img.Data),
		Model:         d.model,
		DetectionSize: d.detSize,
	})
	if err != nil {
		return nil, &Failure{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/detect", bytes.NewReader(payload))
	if err != nil {
		return nil, &Failure{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Failure{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &Failure{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		d.logger.Error("sidecar returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 512)),
		)
		return nil, &Failure{Err: fmt.Errorf("sidecar status %d", resp.StatusCode)}
	}

	var parsed detectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Failure{Err: fmt.Errorf("malformed sidecar response: %w", err)}
	}

	faces := make([]face.Face, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		faces = append(faces, face.Face{
			Box:        face.BoundingBox{X1: f.Box[0], Y1: f.Box[1], X2: f.Box[2], Y2: f.Box[3]},
			Embedding:  f.Embedding,
			Confidence: f.Confidence,
		})
	}
	return faces, nil
}

// Ping checks that the sidecar is reachable and has its model loaded.
func (d *HTTPDetector) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar health status %d", resp.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
