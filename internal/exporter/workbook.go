package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
)

// WriteWorkbook writes every derived table into one xlsx workbook, one
// sheet per table, plus a model sheet when a fit is available. Analysts
// who work in Excel get the whole run in a single file.
func (t *TableSet) WriteWorkbook(ctx context.Context, path string) error {
	logger := infrastructure.LoggerWithContext(ctx)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	for _, table := range t.Tables() {
		if err := writeSheet(f, table); err != nil {
			return err
		}
	}

	if t.model != nil && t.eval != nil {
		if err := t.writeModelSheet(f); err != nil {
			return err
		}
	}

	// Drop the default sheet excelize creates
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	logger.InfoContext(ctx, "wrote analysis workbook",
		slog.String("path", path))
	return nil
}

func writeSheet(f *excelize.File, table Table) error {
	if _, err := f.NewSheet(table.Name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", table.Name, err)
	}

	if err := setStringRow(f, table.Name, 1, table.Headers); err != nil {
		return err
	}
	for i, record := range table.Records {
		if err := setStringRow(f, table.Name, i+2, record); err != nil {
			return err
		}
	}
	return nil
}

// writeModelSheet records the fitted coefficients and goodness-of-fit
// metrics so the workbook is self-describing about its prediction columns.
func (t *TableSet) writeModelSheet(f *excelize.File) error {
	const sheet = "model"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]string{
		{"metric", "value"},
		{"intercept", formatFloat(t.model.Intercept)},
		{"slope", formatFloat(t.model.Slope)},
		{"observations", fmt.Sprintf("%d", t.model.N)},
		{"rmse", formatFloat(t.eval.RMSE)},
		{"r_squared", formatFloat(t.eval.RSquared)},
	}
	for i, row := range rows {
		if err := setStringRow(f, sheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func setStringRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to compute cell name: %w", err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
