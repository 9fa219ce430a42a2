package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/config"
	dbRedis "github.com/omegavid/validator/internal/db/redis"
	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/identity"
	logpkg "github.com/omegavid/validator/internal/logger"
	"github.com/omegavid/validator/internal/metrics"
	"github.com/omegavid/validator/internal/repository/embcache"
	"github.com/omegavid/validator/internal/transport/encoder"
	ledgerTransport "github.com/omegavid/validator/internal/transport/ledger"
	minerTransport "github.com/omegavid/validator/internal/transport/miner"
	openaiEmb "github.com/omegavid/validator/internal/transport/openai"
	"github.com/omegavid/validator/internal/transport/ops"
	"github.com/omegavid/validator/internal/transport/validatorapi"
	"github.com/omegavid/validator/internal/transport/ytdlp"
	embeddinguc "github.com/omegavid/validator/internal/usecase/embedding"
	roundus "github.com/omegavid/validator/internal/usecase/round"
	scoringuc "github.com/omegavid/validator/internal/usecase/scoring"
	weightsuc "github.com/omegavid/validator/internal/usecase/weights"
	"github.com/omegavid/validator/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting validator",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("netuid", cfg.Validator.Netuid),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.Register()

	signer := identity.NewSigner(cfg.Validator.Key, []byte(cfg.Validator.Secret))

	// Embedder chain: OpenAI -> Cached -> Instrumented
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.Text.APIKey,
		BaseURL:    cfg.Embedding.Text.BaseURL,
		Model:      cfg.Embedding.Text.Model,
		Dimensions: cfg.Embedding.Text.Dimensions,
		Logger:     logger,
	})
	cacheTTL := time.Duration(cfg.Database.CacheTTLSec) * time.Second
	var embedder domain.Embedder = embcache.New(base, store, cfg.Database.KeyPrefix, cacheTTL, logger)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, "openai", cfg.Embedding.Text.Model, logger)

	encoderClient := encoder.NewClient(&encoder.Config{
		BaseURL: cfg.Embedding.Encoder.BaseURL,
		APIKey:  cfg.Embedding.Encoder.APIKey,
		Timeout: time.Duration(cfg.Embedding.Encoder.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	api := validatorapi.NewClient(&validatorapi.Config{
		BaseURL: cfg.API.BaseURL,
		Signer:  signer,
		Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	downloader := ytdlp.NewDownloader(&ytdlp.Config{
		BinPath:     cfg.Media.YTDLPPath,
		WorkDir:     cfg.Media.WorkDir,
		Concurrency: cfg.Media.DownloadConcurrency,
		Timeout:     time.Duration(cfg.Media.DownloadTimeoutSec) * time.Second,
		Logger:      logger,
	})

	ledgerClient := ledgerTransport.NewClient(&ledgerTransport.Config{
		BaseURL: cfg.Ledger.URL,
		Signer:  signer,
		Timeout: time.Duration(cfg.Ledger.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	minerClient := minerTransport.NewClient(signer, logger)

	gate := embeddinguc.NewGate()
	scorer := scoringuc.New(embedder, encoderClient, gate, downloader, api, api, api, logger)
	normalizer := weightsuc.New(cfg.Validator.MaxAllowedWeights).
		WithDropZero(cfg.Validator.DropZeroWeights)
	versions := validatorapi.NewVersionChecker(api, version.Version)

	roundSvc := roundus.New(
		ledgerClient, minerClient, api, scorer, normalizer, versions,
		roundus.Settings{
			Netuid:              cfg.Validator.Netuid,
			ValidatorKey:        cfg.Validator.Key,
			ModuleNamePrefix:    cfg.Validator.ModuleNamePrefix,
			SampleSize:          cfg.Validator.SampleSize,
			NumVideos:           cfg.Validator.NumVideos,
			DispatchWidth:       cfg.Validator.DispatchWidth,
			CallTimeout:         time.Duration(cfg.Validator.CallTimeoutSec) * time.Second,
			IterationInterval:   time.Duration(cfg.Validator.IterationIntervalSec) * time.Second,
			UpdateCheckInterval: time.Duration(cfg.Validator.UpdateCheckIntervalSec) * time.Second,
		},
		logger,
	)

	// Operational HTTP server
	opsServer := ops.NewServer(map[string]ops.Checker{
		"database": ops.CheckerFunc(store.Ping),
		"embedder": ops.CheckerFunc(base.HealthCheck),
		"encoder":  ops.CheckerFunc(encoderClient.HealthCheck),
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	opsServer.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting ops HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Round loop
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- roundSvc.Run(loopCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	restart := false
	select {
	case <-quit:
		logger.Info("Received shutdown signal")
		cancelLoop()
		<-loopDone
	case err := <-loopDone:
		switch {
		case errors.Is(err, domain.ErrRestartRequired):
			logger.Info("Stale build, exiting for restart on the new release")
			restart = true
		case err != nil && !errors.Is(err, context.Canceled):
			logger.Error("Round loop stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Validator stopped gracefully")
	if restart {
		_ = logger.Sync()
		os.Exit(3) // supervisor restarts the process on the new release
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line -- one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
