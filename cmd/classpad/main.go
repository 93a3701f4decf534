package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	cphttp "github.com/classpad/classpad/internal/adapter/http"
	cpnats "github.com/classpad/classpad/internal/adapter/nats"
	cpotel "github.com/classpad/classpad/internal/adapter/otel"
	"github.com/classpad/classpad/internal/adapter/postgres"
	"github.com/classpad/classpad/internal/adapter/ristretto"
	"github.com/classpad/classpad/internal/adapter/ws"
	"github.com/classpad/classpad/internal/config"
	"github.com/classpad/classpad/internal/logger"
	"github.com/classpad/classpad/internal/middleware"
	"github.com/classpad/classpad/internal/realtime"
	"github.com/classpad/classpad/internal/resilience"
	"github.com/classpad/classpad/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"telemetry", cfg.Telemetry.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := cpotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	bus, err := cpnats.Connect(ctx, cfg.NATS)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = bus.Close() }()
	log.Info("nats connected")

	cache, err := ristretto.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// --- Services ---
	store := postgres.NewStore(pool)

	sender := realtime.NewSender(realtime.Config{URL: cfg.NATS.URL, Key: cfg.NATS.Key}, bus.Dial)
	sender.Timeout = cfg.Realtime.BroadcastTimeout
	breaker := resilience.NewBreaker(cfg.Breaker)

	authSvc := service.NewAuthService(store, &cfg.Auth)
	classSvc := service.NewClassService(store)
	sectionSvc := service.NewSectionService(store, cache)
	enrollmentSvc := service.NewEnrollmentService(store, sectionSvc)
	sessionSvc := service.NewSessionService(store, enrollmentSvc, sectionSvc, sender, bus, breaker)

	metrics, err := cpotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	sessionSvc.SetMetrics(metrics)

	if err := authSvc.SeedDefaultAdmin(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	authSvc.StartTokenCleanup(ctx, time.Hour)

	// --- Realtime fan-out ---
	hub := ws.NewHub()
	stopBridge, err := hub.Bridge(ctx, bus)
	if err != nil {
		return fmt.Errorf("ws bridge: %w", err)
	}
	defer stopBridge()

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(cfg.Rate)
	stopLimiter := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopLimiter()

	handlers := &cphttp.Handlers{
		Auth:        authSvc,
		Classes:     classSvc,
		Sections:    sectionSvc,
		Enrollments: enrollmentSvc,
		Sessions:    sessionSvc,
		Hub:         hub,
		AuthCfg:     cfg.Auth,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cphttp.Logger)
	r.Use(cphttp.SecurityHeaders)
	r.Use(cphttp.CORS(cfg.Server.CORSOrigin))
	if cfg.Telemetry.Enabled {
		r.Use(cpotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(limiter.Handler)
	r.Use(middleware.Auth(authSvc))

	r.Get("/health", healthHandler())
	r.Get("/health/ready", readyHandler(pool, bus, breaker))

	cphttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthHandler reports liveness.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// readyHandler reports readiness: database reachable, bus connected, and
// the broadcast breaker not open.
func readyHandler(pool *pgxpool.Pool, bus *cpnats.Bus, breaker *resilience.Breaker) http.HandlerFunc {
	type readiness struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
		Breaker  string `json:"breaker"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		st := readiness{Status: "ok", Postgres: "ok", NATS: "ok", Breaker: string(breaker.State())}

		if err := pool.Ping(r.Context()); err != nil {
			st.Status = "degraded"
			st.Postgres = "unreachable"
		}
		if !bus.IsConnected() {
			st.Status = "degraded"
			st.NATS = "disconnected"
		}
		if st.Breaker == string(resilience.StateOpen) {
			st.Status = "degraded"
		}

		code := http.StatusOK
		if st.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(st)
	}
}
