package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"filmdw/internal/config"
	"filmdw/internal/warehouse"
	"filmdw/pkg/contracts"
)

var fullHeader = []interface{}{
	"FilmID", "Title", "BudgetDollars", "BoxOfficeDollars", "RunTimeMinutes",
	"Genre", "Studio", "Country", "Language", "Director",
	"ReleaseDate", "OscarWins", "OscarNominations", "Certificate", "Review",
}

// fixture is a workbook, a config pointing at it and the files the run writes.
type fixture struct {
	dir        string
	configPath string
	dbPath     string
	logPath    string
	exportDir  string
}

func writeWorkbook(t *testing.T, path string, rows ...[]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "Films"))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Films", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

// clearEnv unsets every FILMDW_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix+"_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

func newFixture(t *testing.T, header []interface{}, rows ...[]interface{}) fixture {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	fx := fixture{
		dir:        dir,
		configPath: filepath.Join(dir, "filmdw.yaml"),
		dbPath:     filepath.Join(dir, "MovieDW.db"),
		logPath:    filepath.Join(dir, "logs", "etl.log"),
		exportDir:  filepath.Join(dir, "export"),
	}

	writeWorkbook(t, filepath.Join(dir, "films.xlsx"), append([][]interface{}{header}, rows...)...)

	yaml := fmt.Sprintf(`source:
  path: %q
  sheet: Films
database:
  driver: sqlite
  name: %q
  batch_size: 2
logging:
  level: debug
  output: file
  file_path: %q
telemetry:
  enable_metrics: true
`, filepath.Join(dir, "films.xlsx"), fx.dbPath, fx.logPath)
	require.NoError(t, os.WriteFile(fx.configPath, []byte(yaml), 0o644))
	return fx
}

// logEntries reads the JSON log lines with the given message.
func (fx fixture) logEntries(t *testing.T, msg string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(fx.logPath)
	require.NoError(t, err)

	var out []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var entry map[string]interface{}
		if json.Unmarshal(scanner.Bytes(), &entry) != nil {
			continue
		}
		if entry["msg"] == msg {
			out = append(out, entry)
		}
	}
	return out
}

func (fx fixture) openWarehouse(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fx.dbPath), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, contracts.Version)
}

func TestRun_BadFlag(t *testing.T) {
	code, _, stderr := runCLI(t, "-no-such-flag")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "no-such-flag")
}

func TestRun_ConfigError(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o644))

	code, _, stderr := runCLI(t, "-config", path, "-in", "films.xlsx")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, `"stage":"config"`)
}

func TestRun_EndToEnd(t *testing.T) {
	release := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, fullHeader,
		[]interface{}{1, "Film A", 100, 250, 120, "Drama", "Acme", "USA", "English", "Jane Doe", release, 1, 3, "PG", "Good"},
		[]interface{}{2, "Film B", 0, "$40", 95, "drama", "Acme", "UK", "English", "John Roe", "2021-11-03", 0, 0, "R", ""},
		[]interface{}{3, "", 10, 20, 90, "Comedy", "Acme", "USA", "English", "Jane Doe", "2020-01-01", 0, 0, "", ""},
		[]interface{}{4, "Film D", 50, 20, "", "Comedy", "", "USA", "French", "Jane Doe", "", 0, 1, "", ""},
	)
	// shell variables sharing a field name must not reach the config
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("USER", "root")

	code, _, stderr := runCLI(t, "-config", fx.configPath, "-export", fx.exportDir, "-status-addr", "127.0.0.1:0")
	require.Equal(t, exitOK, code, stderr)

	db := fx.openWarehouse(t)
	var facts []warehouse.FactFilmPerformance
	require.NoError(t, db.Order("fact_key").Find(&facts).Error)
	require.Len(t, facts, 3)
	require.NotNil(t, facts[0].Profit)
	assert.Equal(t, 150.0, *facts[0].Profit)
	assert.Equal(t, 1.5, *facts[0].ROI)
	assert.Nil(t, facts[1].ROI)
	assert.Nil(t, facts[2].StudioKey)
	assert.Nil(t, facts[2].TimeKey)

	var genres []warehouse.DimGenre
	require.NoError(t, db.Order("genre_key").Find(&genres).Error)
	assert.Equal(t, []warehouse.DimGenre{{GenreKey: 1, Name: "Drama"}, {GenreKey: 2, Name: "Comedy"}}, genres)

	for _, table := range warehouse.TableNames {
		assert.FileExists(t, filepath.Join(fx.exportDir, table+".csv"))
	}

	completed := fx.logEntries(t, "ETL run completed")
	require.Len(t, completed, 1)
	assert.Equal(t, "completed", completed[0]["status"])
	assert.Equal(t, float64(3), completed[0]["total_films"])
	assert.Equal(t, 150.0, completed[0]["total_budget"])
	assert.NotEmpty(t, completed[0]["run_id"])
}

func TestRun_MissingBudgetColumn(t *testing.T) {
	header := []interface{}{
		"Title", "Box Office", "Runtime", "Genre", "Studio", "Country",
		"Language", "Director", "Release Date", "Oscar Wins", "Oscar Nominations",
	}
	fx := newFixture(t, header,
		[]interface{}{"Film A", 250, 120, "Drama", "Acme", "USA", "English", "Jane Doe", "2020-05-01", 1, 3},
	)

	code, _, _ := runCLI(t, "-config", fx.configPath)
	require.Equal(t, exitFailure, code)

	// nothing reached the warehouse
	_, err := os.Stat(fx.dbPath)
	assert.True(t, os.IsNotExist(err))

	failed := fx.logEntries(t, "ETL run failed")
	require.Len(t, failed, 1)
	assert.Equal(t, "clean", failed[0]["stage"])
	assert.Equal(t, "transform", failed[0]["step"])
	assert.Contains(t, failed[0]["error"], "budget")
}

func TestRun_UnreachableDatabase(t *testing.T) {
	fx := newFixture(t, fullHeader,
		[]interface{}{1, "Film A", 100, 250, 120, "Drama", "Acme", "USA", "English", "Jane Doe", "2020-05-01", 1, 3, "PG", ""},
	)
	missing := filepath.Join(fx.dir, "no", "such", "dir", "MovieDW.db")
	t.Setenv(config.EnvPrefix+"_DATABASE_NAME", missing)

	code, _, _ := runCLI(t, "-config", fx.configPath)
	require.Equal(t, exitFailure, code)

	failed := fx.logEntries(t, "ETL run failed")
	require.Len(t, failed, 1)
	assert.Equal(t, "load", failed[0]["stage"])
	assert.Equal(t, "load", failed[0]["step"])
}

func TestOptionsApply(t *testing.T) {
	opts, err := parseFlags([]string{"-in", "a.xlsx", "-sheet", "Movies", "-sheets-id", "abc", "-export", "out", "-status-addr", ":9090"}, &bytes.Buffer{})
	require.NoError(t, err)

	cfg := config.Default()
	opts.apply(cfg)
	assert.Equal(t, "a.xlsx", cfg.Source.Path)
	assert.Equal(t, "Movies", cfg.Source.Sheet)
	assert.Equal(t, "abc", cfg.Source.SheetsID)
	assert.Equal(t, "out", cfg.Export.Dir)
	assert.Equal(t, ":9090", cfg.Telemetry.StatusAddr)

	empty, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)
	cfg = config.Default()
	empty.apply(cfg)
	assert.Equal(t, "Films", cfg.Source.Sheet)
	assert.Empty(t, cfg.Source.Path)
}
