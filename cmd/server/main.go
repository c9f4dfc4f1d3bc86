package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/mattn/go-sqlite3"

	"crewsync/internal/api"
	"crewsync/internal/config"
	internaldb "crewsync/internal/db"
	"crewsync/internal/db/repository"
	"crewsync/internal/directory"
	"crewsync/internal/middleware"
	"crewsync/internal/service/reconcile"
)

func main() {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Single-writer/multi-reader SQLite pools, migrations on the write pool.
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.DBPath, 4)
	if err != nil {
		return err
	}
	defer writeDB.Close()
	defer readDB.Close()
	if err := internaldb.RunMigrations(writeDB); err != nil {
		return err
	}

	tripRepo := repository.NewTripRepo(writeDB)
	trackRepo := repository.NewTrackedGroupRepo(writeDB)
	metaRepo := repository.NewMetadataRepo(writeDB)

	var tokens directory.TokenSource
	switch cfg.Directory.AuthMode {
	case "delegated":
		tokens = directory.NewDelegatedTokenSource(metaRepo, repository.MetaKeyUserToken, cfg.Directory.TokenRefreshBuffer)
		logger.Info("directory auth: delegated (sign in via /auth/login)")
	default:
		tokens = directory.NewAppTokenSource(
			cfg.Directory.TokenURL,
			cfg.Directory.ClientID,
			cfg.Directory.ClientSecret,
			cfg.Directory.Scopes,
			cfg.Directory.TokenRefreshBuffer,
		)
		logger.Info("directory auth: application credentials")
	}
	dirClient := directory.NewClient(cfg.Directory.BaseURL, tokens, logger)

	loc := time.UTC
	if cfg.Reconcile.DisplayTimezone != "" {
		l, err := time.LoadLocation(cfg.Reconcile.DisplayTimezone)
		if err != nil {
			logger.Warn("invalid DISPLAY_TIMEZONE, using UTC", "zone", cfg.Reconcile.DisplayTimezone)
		} else {
			loc = l
		}
	}

	engine := reconcile.New(tripRepo, trackRepo, dirClient, reconcile.Config{
		ArchiveAfter:    cfg.Reconcile.ArchiveAfter,
		MonitorWindow:   cfg.Reconcile.MonitorWindow,
		CreateBefore:    cfg.Reconcile.CreateBefore,
		SettleDelay:     cfg.Reconcile.SettleDelay,
		ArchiveOwnerUPN: cfg.Reconcile.ArchiveOwnerUPN,
		ActiveOwnerUPN:  cfg.Reconcile.ActiveOwnerUPN,
		MaxConcurrent:   cfg.Reconcile.MaxConcurrent,
		DisplayLocation: loc,
	}, logger)

	var scheduler *reconcile.Scheduler
	if cfg.Reconcile.Schedule != "" {
		scheduler, err = reconcile.NewScheduler(engine, cfg.Reconcile.Schedule, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("scheduler enabled", "schedule", cfg.Reconcile.Schedule)
	}

	// Bearer validation for the dashboard routes: OIDC when an issuer is
	// configured, HS256 shared secret for local development, open otherwise.
	var authMW func(http.Handler) http.Handler
	switch {
	case cfg.Auth.OIDCEnabled():
		validator, err := middleware.NewOIDCValidator(ctx, cfg.Auth.IssuerURL, cfg.Auth.Audience, cfg.Auth.AllowedIssuers)
		if err != nil {
			return err
		}
		authMW = middleware.NewAuthenticator(validator, logger).Middleware()
	case cfg.Auth.JWTSecret != "":
		validator, err := middleware.NewHS256Validator(cfg.Auth.JWTSecret)
		if err != nil {
			return err
		}
		authMW = middleware.NewAuthenticator(validator, logger).Middleware()
	default:
		logger.Warn("dashboard routes are unauthenticated; set AUTH_ISSUER_URL or JWT_SECRET")
	}

	var oauth *api.OAuthHandler
	if cfg.Directory.AuthMode == "delegated" {
		oauth = api.NewOAuthHandler(cfg.Directory, metaRepo, logger)
	}

	handler := api.NewHandler(engine, trackRepo, tripRepo, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Trigger-Secret", middleware.RequestIDHeader},
		AllowCredentials: false,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))
	r.Mount("/", handler.Routes(oauth, api.RouterConfig{
		Auth:         authMW,
		Trigger:      middleware.TriggerAuth(cfg.TriggerSecret),
		DevEndpoints: !cfg.IsProduction(),
	}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
