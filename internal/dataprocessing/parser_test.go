package dataprocessing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "filmdw/internal/errors"
)

var filmHeader = []interface{}{
	"FilmID", "Title", "BudgetDollars", "BoxOfficeDollars", "RunTimeMinutes",
	"Genre", "Studio", "Country", "Language", "Director",
	"ReleaseDate", "OscarWins", "OscarNominations", "Certificate", "Review",
}

// writeWorkbook saves rows to a new workbook whose only sheet is named sheet.
func writeWorkbook(t *testing.T, sheet string, rows ...[]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))

	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	path := filepath.Join(t.TempDir(), "films.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseFile(t *testing.T) {
	release := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	path := writeWorkbook(t, "Films",
		filmHeader,
		[]interface{}{1, "Film A", 100, 250, 120, "Drama", "Acme", "USA", "English", "Jane Doe", release, 1, 3, "PG", "Good"},
		[]interface{}{2, "Film B", "1,000", "$2,500", 95, "Drama", "Acme", "UK", "English", "John Roe", "2019-11-20", 0, 0, "R", ""},
	)

	table, err := ParseFile(path, "Films")
	require.NoError(t, err)

	assert.Equal(t, "Films", table.Sheet)
	assert.Equal(t, "FilmID", table.Header[0])
	assert.Len(t, table.Header, len(filmHeader))
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []int{2, 3}, table.RowNumbers)

	assert.Equal(t, "Film A", table.Cell(0, 1))
	assert.Equal(t, "100", table.Cell(0, 2))
	assert.Equal(t, "$2,500", table.Cell(1, 3))

	// dates come back as raw serial numbers
	got, ok := ParseDate(table.Cell(0, 10))
	require.True(t, ok)
	assert.Equal(t, release, got)
}

func TestParseFile_FallsBackToFirstSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1",
		[]interface{}{"Title"},
		[]interface{}{"Only Film"},
	)

	table, err := ParseFile(path, "Films")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", table.Sheet)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Only Film", table.Cell(0, 0))
}

func TestParseFile_SkipsLeadingAndBlankRows(t *testing.T) {
	path := writeWorkbook(t, "Films",
		nil,
		[]interface{}{"Title", "Genre"},
		[]interface{}{"First", "Drama"},
		[]interface{}{"", "  "},
		[]interface{}{"Second", "Comedy"},
	)

	table, err := ParseFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "Genre"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []int{3, 5}, table.RowNumbers)
	assert.Equal(t, "Second", table.Cell(1, 0))
	assert.Equal(t, "", table.Cell(1, 5))
}

func TestParseFile_Errors(t *testing.T) {
	dir := t.TempDir()

	notWorkbook := filepath.Join(dir, "films.xlsx")
	require.NoError(t, os.WriteFile(notWorkbook, []byte("not a zip"), 0o644))

	csvFile := filepath.Join(dir, "films.csv")
	require.NoError(t, os.WriteFile(csvFile, []byte("Title\nFilm A\n"), 0o644))

	empty := writeWorkbook(t, "Films")

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.xlsx")},
		{"corrupt workbook", notWorkbook},
		{"not a workbook", csvFile},
		{"no header row", empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile(tt.path, "Films")
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrSourceRead)
			assert.Equal(t, apperrors.StageExtract, apperrors.StageOf(err))
		})
	}
}

func TestExcelSource_Extract(t *testing.T) {
	path := writeWorkbook(t, "Films", []interface{}{"Title"}, []interface{}{"A"})
	src := NewExcelSource(path, "Films")

	assert.Equal(t, "excel:"+path, src.Describe())

	table, err := src.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Extract(ctx)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceRead))
}

func TestExcelSource_Directory(t *testing.T) {
	path := writeWorkbook(t, "Films", []interface{}{"Title"}, []interface{}{"From Dir"})

	table, err := NewExcelSource(filepath.Dir(path), "Films").Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "From Dir", table.Cell(0, 0))

	_, err = NewExcelSource(t.TempDir(), "Films").Extract(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSourceRead)
}
