// Command web runs the pipeline once and serves the derived tables and
// fitted model over a read-only JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kpritch24/johns-hopkins-covid19/internal/config"
	"github.com/kpritch24/johns-hopkins-covid19/internal/covid"
	"github.com/kpritch24/johns-hopkins-covid19/internal/fetch"
	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
	"github.com/kpritch24/johns-hopkins-covid19/internal/regression"
	transport "github.com/kpritch24/johns-hopkins-covid19/internal/transport/http"
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

	raw, err := fetch.LoadRawTables(ctx, paths)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load raw tables", slog.String("error", err.Error()))
		os.Exit(1)
	}

	results, err := covid.Run(ctx, raw)
	if err != nil {
		logger.ErrorContext(ctx, "Pipeline failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var model *regression.Model
	var eval *regression.Evaluation
	points := regression.PointsFromSummaries(results.StateSummaries)
	if model, err = regression.Fit(ctx, points); err != nil {
		logger.WarnContext(ctx, "Model fit failed, serving tables only",
			slog.String("error", err.Error()))
		model = nil
	} else {
		e := model.Evaluate(points)
		eval = &e
	}

	handler := transport.NewDataHandler(results, model, eval, logger)
	server := &nethttp.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.InfoContext(ctx, "Serving derived tables",
			slog.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.ErrorContext(ctx, "Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "Shutdown failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.InfoContext(ctx, "Server stopped")
}
