// Package main is the entrypoint for the Gatehouse API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/broker"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/handler"
	"github.com/gatehouse/gatehouse/internal/mail"
	"github.com/gatehouse/gatehouse/internal/metrics"
	"github.com/gatehouse/gatehouse/internal/middleware"
	"github.com/gatehouse/gatehouse/internal/repository"
	"github.com/gatehouse/gatehouse/internal/server"
	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/sweeper"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize task broker
	brk, err := broker.New(ctx, cfg.BrokerURL)
	if err != nil {
		logger.Error(
			"failed to connect to broker",
			slog.String("error", sanitizeError(err, cfg.BrokerURL)),
			slog.String("broker_url", redactURL(cfg.BrokerURL)),
		)
		os.Exit(1)
	}
	defer brk.Close()
	logger.Info("connected to broker")

	// Initialize services
	recorder := metrics.NewInMemory()
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTLeeway)
	notifier := mail.NewMailgun(cfg.MailgunAPIKey, cfg.MailgunDomain, cfg.BaseURL, logger)
	sweepPublisher := sweeper.NewPublisher(brk.Client(), logger, recorder)

	accountService, err := service.NewAccountService(
		repo,
		notifier,
		sweepPublisher,
		issuer,
		service.Config{
			AccessTokenTTL:     cfg.AccessTokenTTL,
			RefreshTokenTTL:    cfg.RefreshTokenTTL,
			ActivationTokenTTL: cfg.ActivationTokenTTL,
		},
		logger,
		recorder,
	)
	if err != nil {
		logger.Error("failed to initialize account service", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, brk)
	metricsHandler := handler.NewMetricsHandler(recorder)
	authHandler := handler.NewAuthHandler(accountService, logger)

	// Setup router
	r := setupRouter(h, healthHandler, metricsHandler, authHandler, issuer, cfg, logger)

	// Create server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Start the sweeper worker; it stops during graceful shutdown.
	sweepWorker := sweeper.NewWorker(brk.Client(), repo, logger, consumerID(), recorder)
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	go func() {
		if err := sweepWorker.Run(workerCtx); err != nil && err != context.Canceled {
			logger.Error("sweeper worker exited", "error", err)
		}
	}()
	srv.OnShutdown("sweeper-worker", sweepWorker.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	metricsHandler *handler.MetricsHandler,
	authHandler *handler.AuthHandler,
	issuer *auth.TokenIssuer,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(chimiddleware.RequestSize(cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Hello)

	// Account lifecycle and session endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/activate", authHandler.Activate)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	// API v1 routes (require a bearer access token)
	authCfg := middleware.AuthConfig{
		Logger: logger,
		Issuer: issuer,
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Get("/me", authHandler.Me)
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// consumerID identifies this process in the sweeper consumer group.
func consumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "sweeper-" + uuid.New().String()[:8]
	}
	return host
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
