package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/relay-gateway/internal/admin"
	"github.com/af-corp/relay-gateway/internal/auth"
	"github.com/af-corp/relay-gateway/internal/config"
	"github.com/af-corp/relay-gateway/internal/gateway"
	"github.com/af-corp/relay-gateway/internal/pricing"
	"github.com/af-corp/relay-gateway/internal/router"
	"github.com/af-corp/relay-gateway/internal/router/upstream"
	"github.com/af-corp/relay-gateway/internal/secrets"
	"github.com/af-corp/relay-gateway/internal/telemetry"
	"github.com/af-corp/relay-gateway/internal/usage"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	// A missing .env file is fine; real deployments set the environment
	// directly.
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()
	setLogLevel(cfg.Telemetry.LogLevel)

	if cfg.Crypto.MasterKey == "" {
		logger.Error("crypto.master_key is required")
		os.Exit(1)
	}
	cipher := secrets.NewCipher(cfg.Crypto.MasterKey)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (gateway will start but requests will fail)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Redis only backs the missing-model tally; the gateway runs fine
	// without it.
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (missing-model tally disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	usageStore := usage.NewPGStore(dbPool)
	guard := usage.NewGuard(usageStore, usageStore)
	recorder := usage.NewRecorder(usageStore)

	priceStore := pricing.NewPGStore(dbPool)
	resolver := pricing.NewResolver(priceStore)
	tally := pricing.NewMissingModelTally(rdb)

	exchanger := &swappableExchanger{}
	exchanger.swap(cfg.Upstream)
	loader.OnReload(func() {
		exchanger.swap(loader.Config().Upstream)
		logger.Info("upstream client rebuilt")
	})

	evaluator := router.NewEvaluator(router.NewPGRuleStore(dbPool))
	dispatcher := router.NewDispatcher(router.NewPGProviderStore(dbPool), cipher, exchanger, metrics)
	handler := gateway.NewHandler(evaluator, dispatcher, resolver, tally, guard, recorder, metrics)

	adminHandler := admin.NewHandler(admin.NewPGStore(dbPool), usageStore, tally, cipher, cfg.Admin.Token)
	credStore := auth.NewPGCredentialStore(dbPool)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/health", healthHandler)
	r.Mount("/admin", adminHandler.Routes())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(credStore))
		r.Post("/v1/chat/completions", handler.ChatCompletions)
	})

	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listener starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

// swappableExchanger lets a config reload replace the upstream HTTP
// client without restarting in-flight request handling.
type swappableExchanger struct {
	v atomic.Pointer[upstream.Exchanger]
}

func (s *swappableExchanger) swap(cfg config.UpstreamConfig) {
	s.v.Store(upstream.NewExchanger(cfg.RequestTimeout, cfg.MaxIdleConns))
}

func (s *swappableExchanger) Exchange(ctx context.Context, plan upstream.Plan, body []byte) (*upstream.Result, error) {
	return s.v.Load().Exchange(ctx, plan, body)
}

func setLogLevel(level string) {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv})))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
