package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "filmdw/internal/errors"
	"filmdw/internal/shared/testutil"
	"filmdw/internal/warehouse"
	"filmdw/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStar(t *testing.T) *warehouse.Star {
	t.Helper()
	budget, box, profit, roi := 100.0, 250.0, 150.0, 1.5
	year, quarter, month := 2020, 2, 5
	release := time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC)

	star, err := warehouse.BuildStar([]domain.FilmRecord{
		{
			Title: "Film A", Budget: &budget, BoxOffice: &box, ReleaseDate: &release,
			Genre: "Drama", Director: "Jane Doe", OscarWins: 2,
			Metrics: domain.FilmMetrics{Profit: &profit, ROI: &roi, Year: &year, Quarter: &quarter, Month: &month, MonthName: "May"},
		},
		{Title: "Film C, Part 2"},
	})
	require.NoError(t, err)
	return star
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(content) >= 3)

	records, err := csv.NewReader(bytes.NewReader(content[3:])).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSnapshotExporter_Export(t *testing.T) {
	dir := t.TempDir()
	star := testStar(t)

	logger, logs := testutil.NewLogCapture()
	result, err := NewSnapshotExporter(dir, logger).Export(context.Background(), star)
	require.NoError(t, err)

	entry := testutil.RequireLog(t, logs, slog.LevelInfo, "Warehouse snapshot exported")
	assert.Equal(t, int64(len(warehouse.TableNames)), entry.Attrs["files"])
	testutil.AssertNoErrors(t, logs)

	assert.Len(t, result.Files, len(warehouse.TableNames))
	for _, table := range warehouse.TableNames {
		assert.FileExists(t, filepath.Join(dir, table+".csv"))
	}
	assert.Equal(t, 2, result.Rows[warehouse.TableFact])
	assert.Equal(t, 1, result.Rows[warehouse.TableGenre])
	assert.Equal(t, 0, result.Rows[warehouse.TableStudio])

	facts := readCSV(t, result.Files[warehouse.TableFact])
	require.Len(t, facts, 3)
	assert.Equal(t, "fact_key", facts[0][0])
	assert.Equal(t, []string{"1", "1", "1", "1", "", "1", "", "", "100", "250", "150", "1.5", "2", "0", ""}, facts[1])
	// no measures, no categories
	assert.Equal(t, []string{"2", "2", "", "", "", "", "", "", "", "", "", "", "0", "0", ""}, facts[2])

	films := readCSV(t, result.Files[warehouse.TableFilm])
	assert.Equal(t, "Film C, Part 2", films[2][1])

	times := readCSV(t, result.Files[warehouse.TableTime])
	assert.Equal(t, []string{"1", "2020-05-01", "2020", "2", "5", "May"}, times[1])
}

func TestSnapshotExporter_Errors(t *testing.T) {
	t.Run("nil star", func(t *testing.T) {
		_, err := NewSnapshotExporter(t.TempDir(), nil).Export(context.Background(), nil)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeExport))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewSnapshotExporter(t.TempDir(), quietLogger()).Export(ctx, testStar(t))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeExport))
		assert.Equal(t, apperrors.StageExport, apperrors.StageOf(err))
	})

	t.Run("unwritable dir", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		_, err := NewSnapshotExporter(blocker, quietLogger()).Export(context.Background(), testStar(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrExport)
	})
}
