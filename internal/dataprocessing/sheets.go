package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"filmdw/internal/config"
	apperrors "filmdw/internal/errors"
	"filmdw/pkg/contracts/domain"
)

// SheetsSource reads films from a Google Sheets spreadsheet. Values are
// requested unformatted with dates as serial numbers so they go through the
// same cleaning path as an Excel workbook.
type SheetsSource struct {
	SpreadsheetID string
	Sheet         string
	Range         string

	credentialsFile string
	opts            []option.ClientOption
}

// NewSheetsSource creates a Google Sheets source from the source config.
// Extra client options are appended after the credentials option.
func NewSheetsSource(cfg config.SourceConfig, opts ...option.ClientOption) *SheetsSource {
	return &SheetsSource{
		SpreadsheetID:   cfg.SheetsID,
		Sheet:           cfg.Sheet,
		Range:           cfg.SheetsRange,
		credentialsFile: cfg.CredentialsFile,
		opts:            opts,
	}
}

// Describe implements Source
func (s *SheetsSource) Describe() string {
	return "sheets:" + s.SpreadsheetID
}

// Extract implements Source
func (s *SheetsSource) Extract(ctx context.Context) (*domain.RawTable, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	readRange := s.Range
	if readRange == "" {
		sheet, err := s.resolveSheet(ctx, svc)
		if err != nil {
			return nil, err
		}
		readRange = quoteSheet(sheet)
	}

	resp, err := svc.Spreadsheets.Values.Get(s.SpreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.NewSourceReadError("failed to read spreadsheet values", err).
			WithContext("spreadsheet_id", s.SpreadsheetID).
			WithContext("range", readRange)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = cellString(v)
		}
	}

	table, terr := tableFromRows(s.Describe(), readRange, rows)
	if terr != nil {
		return nil, terr.WithContext("spreadsheet_id", s.SpreadsheetID)
	}

	slog.InfoContext(ctx, "Spreadsheet extracted",
		slog.String("spreadsheet_id", s.SpreadsheetID),
		slog.String("range", readRange),
		slog.Int("columns", len(table.Header)),
		slog.Int("rows", len(table.Rows)))

	return table, nil
}

func (s *SheetsSource) service(ctx context.Context) (*sheets.Service, error) {
	var opts []option.ClientOption
	if s.credentialsFile != "" {
		credentialsJSON, err := os.ReadFile(s.credentialsFile)
		if err != nil {
			return nil, apperrors.NewSourceReadError("failed to read credentials file", err).
				WithContext("path", s.credentialsFile)
		}
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	opts = append(opts, s.opts...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewSourceReadError("failed to create sheets service", err)
	}
	return svc, nil
}

// resolveSheet picks the configured sheet if the spreadsheet has it, else the first one.
func (s *SheetsSource) resolveSheet(ctx context.Context, svc *sheets.Service) (string, error) {
	meta, err := svc.Spreadsheets.Get(s.SpreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return "", apperrors.NewSourceReadError("failed to read spreadsheet metadata", err).
			WithContext("spreadsheet_id", s.SpreadsheetID)
	}
	if len(meta.Sheets) == 0 {
		return "", apperrors.NewSourceReadError("spreadsheet has no sheets", nil).
			WithContext("spreadsheet_id", s.SpreadsheetID)
	}

	first := ""
	for _, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		if first == "" {
			first = sh.Properties.Title
		}
		if s.Sheet != "" && strings.EqualFold(sh.Properties.Title, s.Sheet) {
			return sh.Properties.Title, nil
		}
	}

	if s.Sheet != "" {
		slog.WarnContext(ctx, "Requested sheet not found, falling back to first sheet",
			slog.String("requested", s.Sheet),
			slog.String("using", first))
	}
	return first, nil
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
