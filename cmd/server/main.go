// Package main starts the GlycoKeeper reference backend: configuration,
// logging, database, repositories, services, handlers and an optional TLS
// listener with graceful shutdown.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GlycoKeeper/internal/config"
	"github.com/atinyakov/GlycoKeeper/internal/db"
	"github.com/atinyakov/GlycoKeeper/internal/logger"
	"github.com/atinyakov/GlycoKeeper/internal/repository"
	"github.com/atinyakov/GlycoKeeper/internal/server/handler/http"
	"github.com/atinyakov/GlycoKeeper/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse flags, config file and environment.
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	if err := options.Validate(); err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Purge dashboard snapshots nobody has refreshed for a while.
	db.StartSnapshotCleaner(ctx, postgresDB,
		options.CleanInterval,
		options.SnapshotRetention,
		zapLogger,
	)

	// Repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	glycemiaRepo := repository.NewPostgresGlycemiaRepository(postgresDB)
	profileRepo := repository.NewPostgresProfileRepository(postgresDB)
	snapshotRepo := repository.NewPostgresSnapshotRepository(postgresDB)

	// Business-logic services.
	tokens, err := service.NewTokenManager(options.JWTSecret, options.AccessTTL, options.RefreshTTL)
	if err != nil {
		zapLogger.Fatal("cannot init token manager", zap.Error(err))
	}
	authService := service.NewAuthService(userRepo, tokens)
	profileService := service.NewProfileService(profileRepo)
	glycemiaService := service.NewGlycemiaService(glycemiaRepo, profileRepo)
	dashboardService := service.NewDashboardService(snapshotRepo, glycemiaService)

	// Build the router with middleware and routes.
	router := http.NewRouter(http.Handlers{
		Auth:      &http.AuthHandler{AuthService: authService},
		Glycemia:  &http.GlycemiaHandler{GlycemiaService: glycemiaService},
		Dashboard: &http.DashboardHandler{DashboardService: dashboardService},
		Profile:   &http.ProfileHandler{ProfileService: profileService},
	}, authService, http.RouterOptions{AuthRateLimit: options.AuthRateLimit}, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tlsEnabled := options.TLSCert != ""
	if tlsEnabled {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("starting server", zap.String("addr", options.Addr), zap.Bool("tls", tlsEnabled))
		if tlsEnabled {
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
