package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/content/wordpress"
	dbRedis "github.com/kailas-cloud/asksite/internal/db/redis"
	logpkg "github.com/kailas-cloud/asksite/internal/logger"
	"github.com/kailas-cloud/asksite/internal/metrics"
	"github.com/kailas-cloud/asksite/internal/provider"
	"github.com/kailas-cloud/asksite/internal/rag"
	indexrepo "github.com/kailas-cloud/asksite/internal/repository/index"
	progressrepo "github.com/kailas-cloud/asksite/internal/repository/progress"
	"github.com/kailas-cloud/asksite/internal/repository/ratelimit"
	"github.com/kailas-cloud/asksite/internal/repository/usagelog"
	chiTransport "github.com/kailas-cloud/asksite/internal/transport/chi"
	chatuc "github.com/kailas-cloud/asksite/internal/usecase/chat"
	"github.com/kailas-cloud/asksite/internal/version"
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

	logger.Info("Starting asksite API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("site", cfg.Site.BaseURL),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register chat metrics explicitly (no init())
	metrics.RegisterChatMetrics()

	// Content store and retrieval service
	contentStore := wordpress.New(cfg.Site.ContentAPIURL, cfg.Site.PostTypes)

	prefix := cfg.Database.KeyPrefix
	indexStore := indexrepo.New(store, prefix)
	progressStore := progressrepo.New(store, prefix)
	usageStore := usagelog.New(store, prefix)
	limiter := ratelimit.New(store, prefix, cfg.Chat.RateLimitHourly)

	origin, err := rag.NewOrigin(cfg.Site.BaseURL)
	if err != nil {
		logger.Fatal("Invalid site base URL", zap.Error(err))
	}
	fetcher := rag.NewFetcher(origin, cfg.RAG.FetchRatePerSec, logger)

	ragSvc, err := rag.New(cfg.RAG, cfg.Site, contentStore, indexStore, fetcher, logger)
	if err != nil {
		logger.Fatal("Failed to create retrieval service", zap.Error(err))
	}

	// Provider adapter
	adapter, err := provider.New(cfg.LLM, cfg.Site.BaseURL, cfg.Chat.BotName, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM provider", zap.Error(err))
	}
	logger.Info("LLM provider ready",
		zap.String("provider", adapter.Name()),
		zap.Bool("tools", adapter.SupportsTools()),
		zap.Bool("images", adapter.SupportsImages()),
		zap.Bool("streaming", adapter.SupportsStreaming()),
	)

	chatSvc := chatuc.New(cfg, adapter, ragSvc, progressStore, usageStore, logger)

	server := chiTransport.NewServer(
		chatSvc, progressStore, usageStore, ragSvc, store,
		limiter, cfg.Site.BaseURL, cfg.HTTP.AdminAPIKeys, logger,
	)

	handler := chiMiddleware.RequestID(wideEventMiddleware(logger)(server.Router()))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Background index refresher keeps retrieval warm without admin action.
	refreshCtx, stopRefresh := context.WithCancel(ctx)
	go refreshIndex(refreshCtx, ragSvc, time.Duration(cfg.RAG.RefreshSec)*time.Second, logger)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// refreshIndex rebuilds the content index on a fixed interval. The first
// build runs immediately so early chats have context.
func refreshIndex(ctx context.Context, svc *rag.Service, interval time.Duration, logger *zap.Logger) {
	build := func() {
		snap, err := svc.Index(ctx, false)
		if err != nil {
			metrics.IndexRebuildsTotal.WithLabelValues("scheduled", "error").Inc()
			logger.Warn("scheduled index refresh failed", zap.Error(err))
			return
		}
		metrics.IndexRebuildsTotal.WithLabelValues("scheduled", "success").Inc()
		logger.Info("content index refreshed", zap.Int("documents", len(snap.Documents)))
	}

	build()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			build()
		}
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
