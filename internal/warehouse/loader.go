package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "filmdw/internal/errors"
)

const defaultBatchSize = 500

// Loader rebuilds the warehouse tables from a Star.
type Loader struct {
	db        *gorm.DB
	batchSize int
	logger    *slog.Logger
}

// NewLoader creates a loader writing through db in batches of batchSize rows.
func NewLoader(db *gorm.DB, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, batchSize: batchSize, logger: logger}
}

// tableLoad is one table's model and rows in load order.
type tableLoad struct {
	name  string
	model interface{}
	rows  interface{}
	count int
}

func (s *Star) loadPlan() []tableLoad {
	return []tableLoad{
		{TableFilm, &DimFilm{}, &s.Films, len(s.Films)},
		{TableTime, &DimTime{}, &s.Times, len(s.Times)},
		{TableDirector, &DimDirector{}, &s.Directors, len(s.Directors)},
		{TableStudio, &DimStudio{}, &s.Studios, len(s.Studios)},
		{TableGenre, &DimGenre{}, &s.Genres, len(s.Genres)},
		{TableCountry, &DimCountry{}, &s.Countries, len(s.Countries)},
		{TableLanguage, &DimLanguage{}, &s.Languages, len(s.Languages)},
		{TableFact, &FactFilmPerformance{}, &s.Facts, len(s.Facts)},
	}
}

// StagingName is the per-run table a live table is built under before the swap.
func StagingName(table, runID string) string {
	suffix := strings.ToLower(strings.ReplaceAll(runID, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if suffix == "" {
		suffix = "run"
	}
	return table + "__stg_" + suffix
}

// Load replaces every warehouse table with the contents of star. All tables are
// first written under staging names, then the live tables are dropped and the
// staging tables renamed over them, in one transaction. Any failure rolls the
// transaction back and is returned as a load error.
func (l *Loader) Load(ctx context.Context, star *Star, runID string) error {
	if star == nil {
		return apperrors.NewLoadError("nothing to load", nil)
	}
	start := time.Now()
	plan := star.loadPlan()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range plan {
			if err := l.stage(ctx, tx, t, StagingName(t.name, runID)); err != nil {
				return err
			}
		}
		for _, t := range plan {
			if err := l.swap(ctx, tx, t, StagingName(t.name, runID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.NewLoadError("warehouse transaction failed", err)
	}

	l.logger.InfoContext(ctx, "Warehouse tables rebuilt",
		slog.Int("tables", len(plan)),
		slog.Int("fact_rows", len(star.Facts)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// stage creates the staging table for t and fills it.
func (l *Loader) stage(ctx context.Context, tx *gorm.DB, t tableLoad, staging string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewLoadError("load cancelled", err).WithContext("table", t.name)
	}

	if err := tx.Table(staging).Migrator().DropTable(t.model); err != nil {
		return tableError("failed to clear staging table", t.name, staging, err)
	}
	if err := tx.Table(staging).Migrator().CreateTable(t.model); err != nil {
		return tableError("failed to create staging table", t.name, staging, err)
	}

	if t.count > 0 {
		if err := tx.Table(staging).CreateInBatches(t.rows, l.batchSize).Error; err != nil {
			return tableError("failed to insert rows", t.name, staging, err)
		}
	}

	l.logger.DebugContext(ctx, "Staging table loaded",
		slog.String("table", t.name),
		slog.String("staging", staging),
		slog.Int("rows", t.count))
	return nil
}

// swap drops the live table and renames staging over it.
func (l *Loader) swap(ctx context.Context, tx *gorm.DB, t tableLoad, staging string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewLoadError("load cancelled", err).WithContext("table", t.name)
	}

	if err := tx.Migrator().DropTable(t.model); err != nil {
		return tableError("failed to drop live table", t.name, staging, err)
	}
	if err := tx.Migrator().RenameTable(staging, t.name); err != nil {
		return tableError("failed to rename staging table", t.name, staging, err)
	}

	l.logger.InfoContext(ctx, "Table loaded",
		slog.String("table", t.name),
		slog.Int("rows", t.count))
	return nil
}

func tableError(msg, table, staging string, err error) error {
	return apperrors.NewLoadError(fmt.Sprintf("%s %s", msg, table), err).
		WithContext("table", table).
		WithContext("staging_table", staging)
}
