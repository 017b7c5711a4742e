// Command processor runs the full transformation pipeline over the
// downloaded source tables, fits the deaths-per-thousand regression, and
// writes the derived tables as CSVs plus a combined workbook.
//
// A failed model fit is reported but does not fail the run: the derived
// tables are still written, with the prediction columns left empty.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/kpritch24/johns-hopkins-covid19/internal/config"
	"github.com/kpritch24/johns-hopkins-covid19/internal/covid"
	"github.com/kpritch24/johns-hopkins-covid19/internal/exporter"
	"github.com/kpritch24/johns-hopkins-covid19/internal/fetch"
	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
	"github.com/kpritch24/johns-hopkins-covid19/internal/regression"
)

func main() {
	dataDir := flag.String("data", "", "data directory (defaults to ./data)")
	download := flag.Bool("download", false, "download the source tables before processing")
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
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx := infrastructure.EnsureTraceID(context.Background())
	logger.InfoContext(ctx, "Starting pipeline run",
		slog.String("data_dir", paths.DataDir),
		slog.Bool("download", *download))

	if *download {
		client := fetch.NewClient(cfg.Fetch, logger)
		if err := client.DownloadAll(ctx, cfg.Sources, paths); err != nil {
			logger.ErrorContext(ctx, "Fetch failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

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

	// The tables are already valid at this point, so a degenerate fit
	// only costs the prediction columns and the model endpoint.
	var model *regression.Model
	var eval *regression.Evaluation
	points := regression.PointsFromSummaries(results.StateSummaries)
	model, err = regression.Fit(ctx, points)
	if err != nil {
		logger.WarnContext(ctx, "Model fit failed, exporting tables without predictions",
			slog.String("error", err.Error()))
		model = nil
	} else {
		e := model.Evaluate(points)
		eval = &e
		logger.InfoContext(ctx, "Fitted regression model",
			slog.Float64("intercept", model.Intercept),
			slog.Float64("slope", model.Slope),
			slog.Int("observations", model.N),
			slog.Float64("rmse", eval.RMSE),
			slog.Float64("r_squared", eval.RSquared))
	}

	set := exporter.NewTableSet(results, model, eval)
	writer := exporter.NewCSVWriter(logger)
	if err := set.WriteCSVs(ctx, writer, paths); err != nil {
		logger.ErrorContext(ctx, "Failed to write derived tables", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := set.WriteWorkbook(ctx, paths.AnalysisWorkbook); err != nil {
		logger.ErrorContext(ctx, "Failed to write workbook", slog.String("error", err.Error()))
		os.Exit(1)
	}

	printRunSummary(results, model, eval)
}

// printRunSummary writes a human-readable recap of the run to stdout; the
// structured log carries the same information for machines.
func printRunSummary(results *covid.Results, model *regression.Model, eval *regression.Evaluation) {
	fmt.Println("Pipeline run complete")

	counts := tablewriter.NewWriter(os.Stdout)
	counts.SetHeader([]string{"Table", "Rows"})
	counts.SetBorder(false)
	counts.SetAlignment(tablewriter.ALIGN_LEFT)
	counts.Append([]string{"unified_us", fmt.Sprintf("%d", len(results.UnifiedUS.Records))})
	counts.Append([]string{"unified_global", fmt.Sprintf("%d", len(results.UnifiedGlobal.Records))})
	counts.Append([]string{"us_region_day", fmt.Sprintf("%d", len(results.USRegionDays))})
	counts.Append([]string{"us_country_day", fmt.Sprintf("%d", len(results.USCountryDays))})
	counts.Append([]string{"global_country_day", fmt.Sprintf("%d", len(results.GlobalCountryDays))})
	counts.Append([]string{"state_summary", fmt.Sprintf("%d", len(results.StateSummaries))})
	counts.Render()

	if model == nil || eval == nil {
		fmt.Println("\nNo regression model was fit for this run")
		return
	}

	fmt.Println("\nDeaths per thousand ~ cases per thousand")
	fit := tablewriter.NewWriter(os.Stdout)
	fit.SetHeader([]string{"Metric", "Value"})
	fit.SetBorder(false)
	fit.SetAlignment(tablewriter.ALIGN_LEFT)
	fit.Append([]string{"intercept", fmt.Sprintf("%.6f", model.Intercept)})
	fit.Append([]string{"slope", fmt.Sprintf("%.6f", model.Slope)})
	fit.Append([]string{"observations", fmt.Sprintf("%d", model.N)})
	fit.Append([]string{"rmse", fmt.Sprintf("%.6f", eval.RMSE)})
	fit.Append([]string{"r_squared", fmt.Sprintf("%.4f", eval.RSquared)})
	fit.Render()

	printTopResiduals(results.StateSummaries, eval)
}

// printTopResiduals lists the states the fitted line explains worst.
func printTopResiduals(summaries []covid.StateSummary, eval *regression.Evaluation) {
	if len(eval.Residuals) != len(summaries) {
		return
	}

	order := make([]int, len(summaries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return math.Abs(eval.Residuals[order[a]]) > math.Abs(eval.Residuals[order[b]])
	})

	limit := 5
	if len(order) < limit {
		limit = len(order)
	}

	fmt.Println("\nLargest residuals")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"State", "Actual", "Predicted", "Residual"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, i := range order[:limit] {
		table.Append([]string{
			summaries[i].ProvinceState,
			fmt.Sprintf("%.4f", summaries[i].DeathsPerThousand),
			fmt.Sprintf("%.4f", eval.Predictions[i]),
			fmt.Sprintf("%.4f", eval.Residuals[i]),
		})
	}
	table.Render()
}
