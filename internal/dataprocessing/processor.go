package dataprocessing

import (
	"log/slog"

	"filmdw/internal/config"
	"filmdw/pkg/contracts/domain"
)

// FilmProcessor runs the cleaner and the metric deriver back to back.
type FilmProcessor struct {
	cleaner *Cleaner
	deriver *MetricDeriver
}

// NewFilmProcessor creates a processor that logs through logger
func NewFilmProcessor(logger *slog.Logger) *FilmProcessor {
	return &FilmProcessor{
		cleaner: NewCleaner(logger),
		deriver: NewMetricDeriver(logger),
	}
}

// Process implements Processor
func (p *FilmProcessor) Process(table *domain.RawTable) ([]domain.FilmRecord, ProcessingStatistics, error) {
	records, report, err := p.cleaner.Clean(table)
	if err != nil {
		return nil, ProcessingStatistics{Clean: report}, err
	}
	records, stats := p.deriver.Derive(records)
	return records, ProcessingStatistics{Clean: report, Derive: stats}, nil
}

// NewSource picks the spreadsheet source described by cfg. A local path takes
// precedence over a Google Sheets id.
func NewSource(cfg config.SourceConfig) Source {
	if cfg.Path == "" && cfg.SheetsID != "" {
		return NewSheetsSource(cfg)
	}
	return NewExcelSource(cfg.Path, cfg.Sheet)
}
