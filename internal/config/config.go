package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-wide configuration snapshot. It is built once at
// startup from defaults plus environment overrides and is never mutated
// afterwards; every component reads from the same instance.
type Config struct {
	AppName    string
	AppVersion string
	Addr       string

	// Embedding engine.
	ModelName     string
	DetectionSize [2]int
	Provider      string
	EngineAddr    string
	EngineTimeout time.Duration
	// SerializeInference forces per-call locking around the engine when the
	// backing runtime is not safe for concurrent use.
	SerializeInference bool

	// Decision thresholds.
	SimilarityThreshold       float64
	HighConfidenceThreshold   float64
	MediumConfidenceThreshold float64

	// Input limits.
	MaxFileSize      int
	SupportedFormats []string

	// Worker pool. QueueSize 0 means submissions queue without bound.
	WorkerPoolSize int
	QueueSize      int

	// Optional result cache.
	EnableCache bool
	RedisAddr   string
	CacheTTL    time.Duration

	// Optional bearer-token guard for the compare endpoint. Auth stays off
	// unless a secret is configured.
	JWTSecret   string
	JWTAudience string

	ShutdownTimeout time.Duration
}

// Load builds the configuration from defaults overridden by environment
// variables.
func Load() *Config {
	return &Config{
		AppName:    "face-compare-api",
		AppVersion: "1.0.0",
		Addr:       getEnv("LISTEN_ADDR", ":8080"),

		ModelName:          getEnv("MODEL_NAME", "buffalo_l"),
		DetectionSize:      getEnvSize("DET_SIZE", [2]int{640, 640}),
		Provider:           getEnv("INFERENCE_PROVIDER", "CPUExecutionProvider"),
		EngineAddr:         getEnv("ENGINE_ADDR", "http://localhost:50051"),
		EngineTimeout:      getEnvDuration("ENGINE_TIMEOUT", 30*time.Second),
		SerializeInference: getEnvBool("SERIALIZE_INFERENCE", false),

		SimilarityThreshold:       getEnvFloat("SIMILARITY_THRESHOLD", 0.65),
		HighConfidenceThreshold:   getEnvFloat("HIGH_CONFIDENCE_THRESHOLD", 0.75),
		MediumConfidenceThreshold: getEnvFloat("MEDIUM_CONFIDENCE_THRESHOLD", 0.60),

		MaxFileSize:      getEnvInt("MAX_FILE_SIZE", 10*1024*1024),
		SupportedFormats: []string{"jpeg", "png", "webp"},

		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 8),
		QueueSize:      getEnvInt("WORKER_QUEUE_SIZE", 0),

		EnableCache: getEnvBool("ENABLE_CACHE", false),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:    getEnvDuration("CACHE_TTL", time.Hour),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getEnvSize parses values like "640,640" or "(640, 640)".
func getEnvSize(key string, fallback [2]int) [2]int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	value = strings.Trim(value, "()")
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return fallback
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return fallback
	}
	return [2]int{w, h}
}
