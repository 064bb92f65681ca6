package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	apperrors "filmdw/internal/errors"
	"filmdw/pkg/contracts/domain"
)

type factAggregates struct {
	FactRows       int64    `gorm:"column:fact_rows"`
	TotalBudget    *float64 `gorm:"column:total_budget"`
	TotalBoxOffice *float64 `gorm:"column:total_box_office"`
	AvgROI         *float64 `gorm:"column:avg_roi"`
}

// Verifier reads a loaded warehouse back and checks it against the star it
// was loaded from.
type Verifier struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewVerifier creates a verifier reading through db.
func NewVerifier(db *gorm.DB, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{db: db, logger: logger}
}

// Summarize reads row counts of every table and the fact table aggregates.
func (v *Verifier) Summarize(ctx context.Context) (domain.LoadSummary, error) {
	db := v.db.WithContext(ctx)
	summary := domain.LoadSummary{TableRows: make(map[string]int64, len(TableNames))}

	for _, table := range TableNames {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			return summary, verifyError(fmt.Sprintf("failed to count %s", table), err).
				WithContext("table", table)
		}
		summary.TableRows[table] = n
	}

	var agg factAggregates
	err := db.Table(TableFact).
		Select("COUNT(*) AS fact_rows, SUM(budget_dollars) AS total_budget, " +
			"SUM(box_office_dollars) AS total_box_office, AVG(roi) AS avg_roi").
		Scan(&agg).Error
	if err != nil {
		return summary, verifyError("failed to aggregate fact table", err)
	}

	summary.FactRows = agg.FactRows
	if agg.TotalBudget != nil {
		summary.TotalBudget = *agg.TotalBudget
	}
	if agg.TotalBoxOffice != nil {
		summary.TotalBoxOffice = *agg.TotalBoxOffice
	}
	summary.AverageROI = agg.AvgROI
	return summary, nil
}

// Verify summarises the warehouse and fails with a load error when any row
// count or total differs from what star holds.
func (v *Verifier) Verify(ctx context.Context, star *Star) (domain.LoadSummary, error) {
	got, err := v.Summarize(ctx)
	if err != nil {
		return got, err
	}
	want := star.Summary()

	for _, table := range TableNames {
		if got.TableRows[table] != want.TableRows[table] {
			return got, verifyError(fmt.Sprintf("%s has %d rows, expected %d",
				table, got.TableRows[table], want.TableRows[table]), nil).
				WithContext("table", table)
		}
	}
	if !almostEqual(got.TotalBudget, want.TotalBudget) {
		return got, verifyError(fmt.Sprintf("total budget %.2f, expected %.2f",
			got.TotalBudget, want.TotalBudget), nil)
	}
	if !almostEqual(got.TotalBoxOffice, want.TotalBoxOffice) {
		return got, verifyError(fmt.Sprintf("total box office %.2f, expected %.2f",
			got.TotalBoxOffice, want.TotalBoxOffice), nil)
	}

	attrs := []any{
		slog.Int64("total_films", got.FactRows),
		slog.Float64("total_budget", got.TotalBudget),
		slog.Float64("total_box_office", got.TotalBoxOffice),
	}
	if got.AverageROI != nil {
		attrs = append(attrs, slog.Float64("average_roi", *got.AverageROI))
	}
	v.logger.InfoContext(ctx, "Warehouse verified", attrs...)

	return got, nil
}

func verifyError(msg string, cause error) *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrTypeLoad, apperrors.StageVerify, msg, cause)
}
