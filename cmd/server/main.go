package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/prepaidrecon/internal/audit"
	"github.com/mmynk/prepaidrecon/internal/auth"
	"github.com/mmynk/prepaidrecon/internal/config"
	"github.com/mmynk/prepaidrecon/internal/ingest"
	"github.com/mmynk/prepaidrecon/internal/lock"
	"github.com/mmynk/prepaidrecon/internal/middleware"
	"github.com/mmynk/prepaidrecon/internal/recon"
	"github.com/mmynk/prepaidrecon/internal/service"
	"github.com/mmynk/prepaidrecon/internal/storage"
	"github.com/mmynk/prepaidrecon/internal/storage/memory"
	"github.com/mmynk/prepaidrecon/internal/storage/sqlite"
	"github.com/mmynk/prepaidrecon/pkg/api/apiconnect"
	"github.com/mmynk/prepaidrecon/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "store", cfg.Store, "database", cfg.DBPath)

	var engineOpts []recon.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		engineOpts = append(engineOpts, recon.WithLocker(lock.NewRedisLocker(rdb, lock.RedisOptions{
			Prefix: "prepaidrecon:",
			TTL:    cfg.LockTTL,
		})))
		slog.Info("Using redis record locks", "addr", cfg.RedisAddr)
	}

	authenticator := auth.NewPasswordAuthenticator(store)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTDuration)

	if cfg.SeedPath != "" {
		seed, err := config.LoadSeed(cfg.SeedPath)
		if err != nil {
			slog.Error("Failed to load seed", "path", cfg.SeedPath, "error", err)
			os.Exit(1)
		}
		if err := seed.Apply(context.Background(), store, authenticator); err != nil {
			slog.Error("Failed to apply seed", "path", cfg.SeedPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Seed applied", "path", cfg.SeedPath)
	}

	engine := recon.NewEngine(store, engineOpts...)
	recorder := audit.NewStoreRecorder(store)

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager, apiconnect.AuthServiceLoginProcedure),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()

	// Register Connect services
	mux.Handle(apiconnect.NewAuthServiceHandler(
		service.NewAuthService(authenticator, store, jwtManager, recorder, slog.Default()), interceptors))
	mux.Handle(apiconnect.NewReconciliationServiceHandler(
		service.NewReconciliationService(engine, store, recorder), interceptors))
	mux.Handle(apiconnect.NewAdjustmentServiceHandler(
		service.NewAdjustmentService(recon.NewWorkflow(engine), store, recorder), interceptors))
	mux.Handle(apiconnect.NewLineServiceHandler(
		service.NewLineService(ingest.NewImporter(store), recorder), interceptors))
	mux.Handle(apiconnect.NewSettingsServiceHandler(
		service.NewSettingsService(store, recorder), interceptors))

	mux.Handle("/metrics", promhttp.Handler())

	if cfg.StaticPath != "" {
		staticDir, err := filepath.Abs(cfg.StaticPath)
		if err != nil {
			slog.Error("Failed to resolve static path", "error", err)
			os.Exit(1)
		}
		slog.Info("Serving static files", "path", staticDir)
		mux.HandleFunc("/", staticHandler(staticDir))
	}

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Connect server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(), nil
	}
	s, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// staticHandler serves the frontend, falling back to index.html.
func staticHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/prepaidrecon.v1.") {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
