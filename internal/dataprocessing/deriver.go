package dataprocessing

import (
	"log/slog"

	"filmdw/pkg/contracts/domain"
)

// MetricDeriver computes profit, ROI and release-date parts for cleaned records.
type MetricDeriver struct {
	logger *slog.Logger
}

// DeriveStatistics counts how many records received each derived value.
type DeriveStatistics struct {
	Records     int
	WithProfit  int
	WithROI     int
	WithRelease int
}

// NewMetricDeriver creates a deriver that logs through logger.
func NewMetricDeriver(logger *slog.Logger) *MetricDeriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricDeriver{logger: logger}
}

// Derive fills Metrics on every record in place and returns the slice.
func (d *MetricDeriver) Derive(records []domain.FilmRecord) ([]domain.FilmRecord, DeriveStatistics) {
	stats := DeriveStatistics{Records: len(records)}

	for i := range records {
		records[i].Metrics = DeriveMetrics(records[i])
		m := records[i].Metrics
		if m.Profit != nil {
			stats.WithProfit++
		}
		if m.ROI != nil {
			stats.WithROI++
		}
		if m.Year != nil {
			stats.WithRelease++
		}
	}

	d.logger.Info("Derived measures calculated",
		slog.Int("records", stats.Records),
		slog.Int("valid_profit", stats.WithProfit),
		slog.Int("valid_roi", stats.WithROI),
		slog.Int("valid_dates", stats.WithRelease))

	return records, stats
}

// DeriveMetrics computes the derived fields of a single record. Profit needs
// both measures; ROI additionally needs a positive budget.
func DeriveMetrics(rec domain.FilmRecord) domain.FilmMetrics {
	var m domain.FilmMetrics

	if rec.Budget != nil && rec.BoxOffice != nil {
		profit := *rec.BoxOffice - *rec.Budget
		m.Profit = &profit
		if *rec.Budget > 0 {
			roi := profit / *rec.Budget
			m.ROI = &roi
		}
	}

	if rec.ReleaseDate != nil {
		year := rec.ReleaseDate.Year()
		month := int(rec.ReleaseDate.Month())
		quarter := (month-1)/3 + 1
		m.Year = &year
		m.Month = &month
		m.Quarter = &quarter
		m.MonthName = rec.ReleaseDate.Month().String()
	}

	return m
}
