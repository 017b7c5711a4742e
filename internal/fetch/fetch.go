// Package fetch retrieves the five raw source tables and loads them back
// from disk. The pipeline itself never performs I/O; it consumes the
// RawTables this package produces.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kpritch24/johns-hopkins-covid19/internal/config"
	"github.com/kpritch24/johns-hopkins-covid19/internal/errors"
)

// Client downloads the published source CSVs. Downloads are
// all-or-nothing: the pipeline requires every source, so any failure
// aborts the whole fetch.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a download client with the configured timeout and
// request rate.
func NewClient(cfg config.FetchConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.RateBurst, 1)),
		logger:     logger.With(slog.String("component", "fetch")),
	}
}

// DownloadAll fetches the four time-series tables plus the population
// lookup into the downloads directory.
func (c *Client) DownloadAll(ctx context.Context, sources config.SourcesConfig, paths *config.Paths) error {
	if err := paths.EnsureDirectories(); err != nil {
		return errors.NewStorageError("failed to create download directory", err)
	}

	targets := []struct {
		url  string
		dest string
	}{
		{sources.USCases, paths.USCasesCSV},
		{sources.USDeaths, paths.USDeathsCSV},
		{sources.GlobalCases, paths.GlobalCasesCSV},
		{sources.GlobalDeaths, paths.GlobalDeathsCSV},
		{sources.Lookup, paths.LookupCSV},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			return c.download(ctx, target.url, target.dest)
		})
	}
	return g.Wait()
}

// download fetches one URL into dest, writing through a temp file so a
// partial download never replaces a previous complete one.
func (c *Client) download(ctx context.Context, url, dest string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewNetworkError("rate limiter interrupted", err)
	}

	c.logger.InfoContext(ctx, "downloading source table",
		slog.String("url", url),
		slog.String("dest", filepath.Base(dest)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.NewNetworkError(fmt.Sprintf("invalid source URL %s", url), err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewNetworkError(fmt.Sprintf("failed to fetch %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewNetworkError(
			fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, url), nil)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return errors.NewStorageError("failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to write %s", dest), err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to move %s into place", dest), err)
	}

	c.logger.InfoContext(ctx, "downloaded source table",
		slog.String("dest", filepath.Base(dest)),
		slog.Int64("bytes", written))

	return nil
}
