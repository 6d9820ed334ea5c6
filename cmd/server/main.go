package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/bookkeeper/internal/server/handlers"
	"github.com/iudanet/bookkeeper/internal/server/middleware"
	"github.com/iudanet/bookkeeper/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", ":8080", "Listen address")
	dbPath := flag.String("db", "bookkeeper-server.db", "Path to SQLite database")
	authSecret := flag.String("auth-secret", "", "JWT signing secret (required)")
	devUser := flag.String("dev-user", "admin", "Username accepted by the login endpoint")
	devPassword := flag.String("dev-password", "", "Password accepted by the login endpoint (required)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *authSecret == "" || *devPassword == "" {
		logger.Error("both -auth-secret and -dev-password are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := sqlite.New(ctx, *dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	jwtConfig := handlers.JWTConfig{
		Secret:         []byte(*authSecret),
		AccessTokenTTL: 24 * time.Hour,
	}

	authHandler := handlers.NewAuthHandler(logger, jwtConfig, *devUser, *devPassword)
	bookingsHandler := handlers.NewBookingsHandler(logger, store)
	healthHandler := handlers.NewHealthHandler(logger, Version)

	// Открытые маршруты
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	// Маршруты бронирований за auth middleware
	protected := http.NewServeMux()
	bookingsHandler.Register(protected)
	mux.Handle("/api/v1/bookings", middleware.AuthMiddleware(logger, jwtConfig)(protected))
	mux.Handle("/api/v1/bookings/", middleware.AuthMiddleware(logger, jwtConfig)(protected))

	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingMiddleware(logger, "/health")(
			middleware.RateLimitMiddleware(300, time.Minute, logger)(mux),
		),
	)

	server := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", *addr, "version", Version)
		errC <- server.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func printVersion() {
	fmt.Printf("Bookkeeper Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
