package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "filmdw/internal/errors"
	"filmdw/internal/files"
	"filmdw/internal/validation"
	"filmdw/pkg/contracts/domain"
)

// Source produces the raw film table for one ETL run.
type Source interface {
	Extract(ctx context.Context) (*domain.RawTable, error)
	Describe() string
}

// ExcelSource reads films from a local .xlsx workbook. When Path is a
// directory the most recently modified workbook in it is read.
type ExcelSource struct {
	Path  string
	Sheet string
}

// NewExcelSource creates a workbook source. An empty sheet means the first sheet.
func NewExcelSource(path, sheet string) *ExcelSource {
	return &ExcelSource{Path: path, Sheet: sheet}
}

// Extract implements Source
func (s *ExcelSource) Extract(ctx context.Context) (*domain.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewSourceReadError("extraction cancelled", err)
	}
	path, err := files.NewDiscovery("").ResolveWorkbook(s.Path)
	if err != nil {
		return nil, apperrors.NewSourceReadError("no workbook to read", err).
			WithContext("path", s.Path)
	}
	return ParseFile(path, s.Sheet)
}

// Describe implements Source
func (s *ExcelSource) Describe() string {
	return "excel:" + s.Path
}

// ParseFile reads the film sheet of an Excel workbook. When the requested sheet
// does not exist the first sheet is used instead.
func ParseFile(filePath, sheet string) (*domain.RawTable, error) {
	if err := validation.NewFileValidator(nil).ValidateWorkbook(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewSourceReadError("source file not found", err).
				WithContext("path", filePath)
		}
		return nil, apperrors.NewSourceReadError("source file is not a readable workbook", err).
			WithContext("path", filePath)
	}

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, apperrors.NewSourceReadError("failed to open workbook", err).
			WithContext("path", filePath)
	}
	defer f.Close()

	sheetName, serr := selectSheet(f, sheet)
	if serr != nil {
		return nil, serr.WithContext("path", filePath)
	}

	rows, rerr := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if rerr != nil {
		return nil, apperrors.NewSourceReadError("failed to read sheet rows", rerr).
			WithContext("path", filePath).
			WithContext("sheet", sheetName)
	}

	table, terr := tableFromRows(filePath, sheetName, rows)
	if terr != nil {
		return nil, terr.WithContext("path", filePath)
	}

	slog.Info("Workbook extracted",
		slog.String("path", filePath),
		slog.String("sheet", sheetName),
		slog.Int("columns", len(table.Header)),
		slog.Int("rows", len(table.Rows)))

	return table, nil
}

// selectSheet returns the requested sheet if present, else the first sheet.
func selectSheet(f *excelize.File, requested string) (string, *apperrors.AppError) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", apperrors.NewSourceReadError("workbook has no sheets", nil)
	}
	if requested == "" {
		return sheets[0], nil
	}
	for _, name := range sheets {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(requested)) {
			return name, nil
		}
	}

	slog.Warn("Requested sheet not found, falling back to first sheet",
		slog.String("requested", requested),
		slog.String("using", sheets[0]),
		slog.Any("available", sheets))
	return sheets[0], nil
}

// tableFromRows splits raw rows into header and data. The header is the first
// row with any non-blank cell; fully blank rows after it are skipped.
func tableFromRows(source, sheet string, rows [][]string) (*domain.RawTable, *apperrors.AppError) {
	headerRow := -1
	for i, row := range rows {
		if !isBlankRow(row) {
			headerRow = i
			break
		}
	}
	if headerRow == -1 {
		return nil, apperrors.NewSourceReadError(
			fmt.Sprintf("sheet %q has no header row", sheet), nil).
			WithContext("sheet", sheet)
	}

	header := make([]string, len(rows[headerRow]))
	for i, cell := range rows[headerRow] {
		header[i] = strings.TrimSpace(cell)
	}

	table := &domain.RawTable{
		Source: source,
		Sheet:  sheet,
		Header: header,
	}

	skipped := 0
	for i := headerRow + 1; i < len(rows); i++ {
		if isBlankRow(rows[i]) {
			skipped++
			continue
		}
		table.Rows = append(table.Rows, rows[i])
		table.RowNumbers = append(table.RowNumbers, i+1)
	}

	if skipped > 0 {
		slog.Debug("Blank rows skipped", slog.String("sheet", sheet), slog.Int("count", skipped))
	}

	return table, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
