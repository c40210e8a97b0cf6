package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/face-compare/internal/auth"
	"github.com/example/face-compare/internal/config"
	"github.com/example/face-compare/internal/face"
	"github.com/example/face-compare/internal/imaging"
	"github.com/example/face-compare/internal/usecase"
	"github.com/example/face-compare/internal/workerpool"
)

type stubDetector struct {
	faces []face.Face
}

func (s *stubDetector) Detect(ctx context.Context, img *imaging.Image) ([]face.Face, error) {
	return s.faces, nil
}

type stubEngineStatus struct {
	loaded bool
	model  string
}

func (s *stubEngineStatus) Loaded() bool      { return s.loaded }
func (s *stubEngineStatus) ModelName() string { return s.model }

func testConfig() *config.Config {
	return &config.Config{
		AppName:             "face-compare-api",
		AppVersion:          "1.0.0",
		ModelName:           "buffalo_l",
		DetectionSize:       [2]int{640, 640},
		Provider:            "CPUExecutionProvider",
		SimilarityThreshold: 0.65,
		MaxFileSize:         10 * 1024 * 1024,
		SupportedFormats:    []string{"jpeg", "png", "webp"},
		WorkerPoolSize:      8,
	}
}

func newTestRouter(t *testing.T, detector face.Detector, authGuard gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool := workerpool.New(2, 0)
	t.Cleanup(pool.Close)

	uc := usecase.NewComparisonUseCase(detector, pool, nil, usecase.NopMetrics{}, zap.NewNop(), usecase.Options{
		MaxFileSize: 10 * 1024 * 1024,
		Thresholds:  face.DefaultThresholds,
	})

	router := gin.New()
	RegisterRoutes(router, uc, &stubEngineStatus{loaded: true, model: "buffalo_l"}, testConfig(), nil, authGuard)
	return router
}

func encodedPNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postCompare(t *testing.T, router *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/compare_faces", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCompareFacesEndpoint(t *testing.T) {
	detector := &stubDetector{faces: []face.Face{{
		Box:       face.BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100},
		Embedding: []float32{1, 0},
	}}}
	router := newTestRouter(t, detector, nil)

	img := encodedPNG(t)
	body, _ := json.Marshal(map[string]string{"image1": img, "image2": img})

	resp := postCompare(t, router, string(body), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Process-Time") == "" {
		t.Fatal("expected X-Process-Time header")
	}

	var result usecase.ComparisonResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !result.IsSamePerson || result.Similarity != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Confidence != face.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", result.Confidence)
	}
}

func TestCompareFacesMissingField(t *testing.T) {
	router := newTestRouter(t, &stubDetector{}, nil)

	resp := postCompare(t, router, `{"image1":"aGVsbG8="}`, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCompareFacesInvalidBase64(t *testing.T) {
	router := newTestRouter(t, &stubDetector{}, nil)

	body, _ := json.Marshal(map[string]string{"image1": "!!!", "image2": encodedPNG(t)})
	resp := postCompare(t, router, string(body), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "image 1") {
		t.Fatalf("error should name the failing image: %s", resp.Body.String())
	}
}

func TestCompareFacesUnsupportedFormat(t *testing.T) {
	router := newTestRouter(t, &stubDetector{}, nil)

	text := base64.StdEncoding.EncodeToString([]byte("just some text"))
	body, _ := json.Marshal(map[string]string{"image1": text, "image2": encodedPNG(t)})
	resp := postCompare(t, router, string(body), nil)
	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "jpeg") {
		t.Fatalf("error should list accepted formats: %s", resp.Body.String())
	}
}

func TestCompareFacesPayloadTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pool := workerpool.New(2, 0)
	t.Cleanup(pool.Close)

	uc := usecase.NewComparisonUseCase(&stubDetector{}, pool, nil, usecase.NopMetrics{}, zap.NewNop(), usecase.Options{
		MaxFileSize: 16, // tiny limit for the test
		Thresholds:  face.DefaultThresholds,
	})
	router := gin.New()
	RegisterRoutes(router, uc, &stubEngineStatus{loaded: true, model: "buffalo_l"}, testConfig(), nil, nil)

	body, _ := json.Marshal(map[string]string{"image1": encodedPNG(t), "image2": encodedPNG(t)})
	resp := postCompare(t, router, string(body), nil)
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubDetector{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
		ModelName   string `json:"model_name"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if payload.Status != "healthy" || !payload.ModelLoaded || payload.ModelName != "buffalo_l" {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
}

func TestInfoEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubDetector{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload struct {
		Model               string   `json:"model"`
		SimilarityThreshold float64  `json:"similarity_threshold"`
		MaxFileSizeMB       int      `json:"max_file_size_mb"`
		SupportedFormats    []string `json:"supported_formats"`
		WorkerPoolSize      int      `json:"worker_pool_size"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if payload.Model != "buffalo_l" || payload.MaxFileSizeMB != 10 || payload.WorkerPoolSize != 8 {
		t.Fatalf("unexpected info payload: %+v", payload)
	}
}

func TestCompareFacesRequiresTokenWhenGuarded(t *testing.T) {
	router := newTestRouter(t, &stubDetector{}, auth.JWTMiddleware("test-secret", ""))

	img := encodedPNG(t)
	body, _ := json.Marshal(map[string]string{"image1": img, "image2": img})

	resp := postCompare(t, router, string(body), nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.Code)
	}

	claims := jwt.RegisteredClaims{
		Subject:   "client-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	resp = postCompare(t, router, string(body), map[string]string{"Authorization": "Bearer " + token})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d: %s", resp.Code, resp.Body.String())
	}
}
