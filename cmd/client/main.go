package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	gosync "sync"

	"github.com/iudanet/bookkeeper/internal/client/api"
	"github.com/iudanet/bookkeeper/internal/client/booking"
	"github.com/iudanet/bookkeeper/internal/client/cli"
	"github.com/iudanet/bookkeeper/internal/client/iocli"
	"github.com/iudanet/bookkeeper/internal/client/netmon"
	"github.com/iudanet/bookkeeper/internal/client/outbox"
	"github.com/iudanet/bookkeeper/internal/client/scheduler"
	"github.com/iudanet/bookkeeper/internal/client/session"
	"github.com/iudanet/bookkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/bookkeeper/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "bookkeeper.db", "Path to local database")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	ctx := context.Background()

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Открываем BoltDB storage
	store, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	// Сессия и API клиент
	sessions := session.NewStore(store)
	apiClient := api.NewClient(*serverURL, sessions)

	// Общий лок логических транзакций хранилища: write API и движок
	// синхронизации не должны чередовать шаги внутри одной транзакции
	var storeMu gosync.Mutex

	queue := outbox.NewQueue(store, store, store, logger)
	engine := sync.NewService(&storeMu, apiClient, store, store, store, store, store, nil, logger)

	monitor := netmon.NewMonitor(logger, netmon.DefaultDebounce)
	defer monitor.Stop()

	coordinator := scheduler.New(ctx, engine, monitor, logger)
	defer coordinator.Close()

	bookings := booking.NewService(&storeMu, store, store, store, queue, coordinator, monitor, logger)

	c := cli.New(iocli.NewStdio(), apiClient, sessions, bookings, engine, coordinator, monitor, store)
	c.Run(ctx, command, args[1:])
}

func printVersion() {
	fmt.Printf("Bookkeeper Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
