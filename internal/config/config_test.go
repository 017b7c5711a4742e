package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Point the loader at a config file that does not exist so only
	// env defaults apply.
	t.Setenv("COVID_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.Sources.USCases, "time_series_covid19_confirmed_US.csv")
	assert.Contains(t, cfg.Sources.USDeaths, "time_series_covid19_deaths_US.csv")
	assert.Contains(t, cfg.Sources.GlobalCases, "time_series_covid19_confirmed_global.csv")
	assert.Contains(t, cfg.Sources.GlobalDeaths, "time_series_covid19_deaths_global.csv")
	assert.Contains(t, cfg.Sources.Lookup, "UID_ISO_FIPS_LookUp_Table.csv")

	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Greater(t, cfg.Fetch.RatePerSecond, 0.0)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COVID_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("COVID_SOURCES_US_CASES", "https://example.com/us_cases.csv")
	t.Setenv("COVID_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/us_cases.csv", cfg.Sources.USCases)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidSourceURL(t *testing.T) {
	t.Setenv("COVID_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("COVID_SOURCES_LOOKUP", "not-a-url")

	_, err := Load()
	assert.Error(t, err)
}

func TestNewPaths_Layout(t *testing.T) {
	dataDir := t.TempDir()

	paths, err := NewPaths(dataDir, filepath.Join(dataDir, "logs"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "downloads"), paths.DownloadsDir)
	assert.Equal(t, filepath.Join(dataDir, "reports"), paths.ReportsDir)
	assert.Equal(t, filepath.Join(paths.DownloadsDir, "time_series_covid19_confirmed_US.csv"), paths.USCasesCSV)
	assert.Equal(t, filepath.Join(paths.ReportsDir, "state_summary.csv"), paths.StateSummaryCSV)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DownloadsDir, paths.ReportsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestNewPaths_DefaultDataDir(t *testing.T) {
	paths, err := NewPaths("", "")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(paths.DataDir))
	assert.Equal(t, "data", filepath.Base(paths.DataDir))
}
