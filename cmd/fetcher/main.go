// Command fetcher downloads the five raw source tables into the
// downloads directory. It is the only binary that touches the network;
// the processor and web feed work entirely from disk.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/kpritch24/johns-hopkins-covid19/internal/config"
	"github.com/kpritch24/johns-hopkins-covid19/internal/fetch"
	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
)

func main() {
	dataDir := flag.String("data", "", "data directory (defaults to ./data)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}

	paths, err := cfg.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx := infrastructure.EnsureTraceID(context.Background())
	logger.InfoContext(ctx, "Starting source table fetch",
		slog.String("downloads_dir", paths.DownloadsDir))

	client := fetch.NewClient(cfg.Fetch, logger)
	if err := client.DownloadAll(ctx, cfg.Sources, paths); err != nil {
		logger.ErrorContext(ctx, "Fetch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "All source tables downloaded")
}
