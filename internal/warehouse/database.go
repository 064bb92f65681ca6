package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"filmdw/internal/config"
	apperrors "filmdw/internal/errors"
)

// Open connects to the warehouse described by cfg and verifies the connection
// with a ping. Failures are connection errors.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.ConnectionString())
	case "sqlite":
		dialector = sqlite.Open(cfg.ConnectionString())
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}

	db, err := OpenDialector(ctx, dialector, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// one writer; staging DDL and inserts share the transaction connection anyway
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// OpenDialector opens gorm over an already chosen dialector.
func OpenDialector(ctx context.Context, dialector gorm.Dialector, cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(logger, cfg.LogSQL),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, apperrors.NewConnectionError("failed to open warehouse", err).
			WithContext("target", cfg.Redacted())
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.NewConnectionError("failed to access connection pool", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.NewConnectionError("warehouse is unreachable", err).
			WithContext("target", cfg.Redacted())
	}

	logger.InfoContext(ctx, "Warehouse connection established",
		slog.String("driver", cfg.Driver),
		slog.String("target", cfg.Redacted()))
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newGormLogger routes gorm's SQL log through slog. Statements are logged at
// debug level only when logSQL is set; slow queries and errors always are.
func newGormLogger(logger *slog.Logger, logSQL bool) gormlogger.Interface {
	level := gormlogger.Warn
	if logSQL {
		level = gormlogger.Info
	}
	return gormlogger.New(slog.NewLogLogger(logger.Handler(), slog.LevelDebug), gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
