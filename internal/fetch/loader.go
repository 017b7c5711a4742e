package fetch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kpritch24/johns-hopkins-covid19/internal/config"
	"github.com/kpritch24/johns-hopkins-covid19/internal/covid"
	"github.com/kpritch24/johns-hopkins-covid19/internal/errors"
	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
)

// LoadRawTables reads the five previously downloaded CSVs from the
// downloads directory. All five must be present and readable; there is no
// partial mode.
func LoadRawTables(ctx context.Context, paths *config.Paths) (covid.RawTables, error) {
	logger := infrastructure.LoggerWithContext(ctx)

	var raw covid.RawTables
	var err error

	if raw.USCases, err = ReadCSVTable(paths.USCasesCSV, "us_cases"); err != nil {
		return raw, err
	}
	if raw.USDeaths, err = ReadCSVTable(paths.USDeathsCSV, "us_deaths"); err != nil {
		return raw, err
	}
	if raw.GlobalCases, err = ReadCSVTable(paths.GlobalCasesCSV, "global_cases"); err != nil {
		return raw, err
	}
	if raw.GlobalDeaths, err = ReadCSVTable(paths.GlobalDeathsCSV, "global_deaths"); err != nil {
		return raw, err
	}
	if raw.Lookup, err = ReadCSVTable(paths.LookupCSV, "lookup"); err != nil {
		return raw, err
	}

	logger.InfoContext(ctx, "loaded raw tables",
		slog.Int("us_case_rows", len(raw.USCases.Rows)),
		slog.Int("us_death_rows", len(raw.USDeaths.Rows)),
		slog.Int("global_case_rows", len(raw.GlobalCases.Rows)),
		slog.Int("global_death_rows", len(raw.GlobalDeaths.Rows)),
		slog.Int("lookup_rows", len(raw.Lookup.Rows)))

	return raw, nil
}

// ReadCSVTable decodes one CSV file into a raw table, stripping a UTF-8
// BOM if present. The published tables have ragged trailing columns in
// some revisions, so records of varying length are accepted here and
// validated against the schema during melt.
func ReadCSVTable(path, name string) (*covid.RawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("failed to open %s table", name), err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("failed to read %s table", name), err)
	}

	// Remove BOM if present
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		content = content[3:]
	}

	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to decode %s CSV", name), err)
	}
	if len(records) == 0 {
		return nil, errors.NewSchemaError(fmt.Sprintf("%s table is empty", name), nil)
	}

	return &covid.RawTable{
		Name:   name,
		Header: records[0],
		Rows:   records[1:],
	}, nil
}
