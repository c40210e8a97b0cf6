package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/face-compare/internal/auth"
	"github.com/example/face-compare/internal/config"
	"github.com/example/face-compare/internal/engine"
	"github.com/example/face-compare/internal/face"
	"github.com/example/face-compare/internal/handlers"
	"github.com/example/face-compare/internal/logging"
	"github.com/example/face-compare/internal/metrics"
	"github.com/example/face-compare/internal/usecase"
	"github.com/example/face-compare/internal/workerpool"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	detector := engine.NewHTTPDetector(engine.HTTPConfig{
		Addr:          cfg.EngineAddr,
		ModelName:     cfg.ModelName,
		DetectionSize: cfg.DetectionSize,
		Timeout:       cfg.EngineTimeout,
	}, logger)

	handle := engine.NewHandle(detector, cfg.ModelName, cfg.DetectionSize, cfg.SerializeInference)
	if err := handle.Warmup(startupCtx); err != nil {
		logger.Fatal("embedding engine warmup failed", zap.Error(err), zap.String("addr", cfg.EngineAddr))
	}
	logger.Info("embedding engine ready",
		zap.String("model", cfg.ModelName),
		zap.Ints("det_size", cfg.DetectionSize[:]),
	)

	pool := workerpool.New(cfg.WorkerPoolSize, cfg.QueueSize)
	defer pool.Close()

	var cache usecase.Cache
	if cfg.EnableCache {
		cache = usecase.NewRedisCache(initRedis(startupCtx, logger, cfg.RedisAddr))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	recorder := metrics.NewRecorder(registry)

	uc := usecase.NewComparisonUseCase(handle, pool, cache, recorder, logger, usecase.Options{
		MaxFileSize: cfg.MaxFileSize,
		Thresholds: face.Thresholds{
			Decision: cfg.SimilarityThreshold,
			High:     cfg.HighConfidenceThreshold,
			Medium:   cfg.MediumConfidenceThreshold,
		},
		CacheTTL: cfg.CacheTTL,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// Two base64 images at ~4/3 expansion plus JSON framing.
	bodyLimit := int64(cfg.MaxFileSize)*2*4/3 + 64*1024
	router.Use(gin.Recovery(), handlers.RequestLogger(logger), handlers.BodyLimit(bodyLimit))

	var authGuard gin.HandlerFunc
	if cfg.JWTSecret != "" {
		authGuard = auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	}
	handlers.RegisterRoutes(router, uc, handle, cfg, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), authGuard)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	logger.Info("face comparison API listening", zap.String("addr", cfg.Addr))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initRedis(ctx context.Context, zapLogger *zap.Logger, addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err), zap.String("addr", addr))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
