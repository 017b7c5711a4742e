package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for file locations: raw downloads live
// under data/downloads, derived tables under data/reports.
type Paths struct {
	DataDir      string
	DownloadsDir string
	ReportsDir   string
	LogsDir      string

	// Well-known raw input files (written by the fetcher, read by the processor)
	USCasesCSV      string
	USDeathsCSV     string
	GlobalCasesCSV  string
	GlobalDeathsCSV string
	LookupCSV       string

	// Well-known derived table files
	UnifiedUSCSV     string
	UnifiedGlobalCSV string
	RegionDayCSV     string
	CountryDayCSV    string
	StateSummaryCSV  string
	AnalysisWorkbook string
}

// NewPaths builds the path layout rooted at the given data directory.
// Relative directories are resolved against the current working directory.
func NewPaths(dataDir, logsDir string) (*Paths, error) {
	if dataDir == "" {
		dataDir = "data"
	}
	if logsDir == "" {
		logsDir = "logs"
	}

	absData, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	absLogs, err := filepath.Abs(logsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs dir: %w", err)
	}

	downloadsDir := filepath.Join(absData, "downloads")
	reportsDir := filepath.Join(absData, "reports")

	return &Paths{
		DataDir:      absData,
		DownloadsDir: downloadsDir,
		ReportsDir:   reportsDir,
		LogsDir:      absLogs,

		USCasesCSV:      filepath.Join(downloadsDir, "time_series_covid19_confirmed_US.csv"),
		USDeathsCSV:     filepath.Join(downloadsDir, "time_series_covid19_deaths_US.csv"),
		GlobalCasesCSV:  filepath.Join(downloadsDir, "time_series_covid19_confirmed_global.csv"),
		GlobalDeathsCSV: filepath.Join(downloadsDir, "time_series_covid19_deaths_global.csv"),
		LookupCSV:       filepath.Join(downloadsDir, "UID_ISO_FIPS_LookUp_Table.csv"),

		UnifiedUSCSV:     filepath.Join(reportsDir, "unified_us.csv"),
		UnifiedGlobalCSV: filepath.Join(reportsDir, "unified_global.csv"),
		RegionDayCSV:     filepath.Join(reportsDir, "us_by_state_day.csv"),
		CountryDayCSV:    filepath.Join(reportsDir, "us_by_country_day.csv"),
		StateSummaryCSV:  filepath.Join(reportsDir, "state_summary.csv"),
		AnalysisWorkbook: filepath.Join(reportsDir, "covid19_analysis.xlsx"),
	}, nil
}

// GetPaths returns the path layout for the given configuration
func (c *Config) GetPaths() (*Paths, error) {
	return NewPaths(c.Paths.DataDir, c.Paths.LogsDir)
}

// EnsureDirectories creates all required directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.DownloadsDir, p.ReportsDir, p.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetLogPath returns the full path for a log file name
func (p *Paths) GetLogPath(name string) string {
	return filepath.Join(p.LogsDir, name)
}
