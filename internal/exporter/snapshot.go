package exporter

import (
	"context"
	"log/slog"
	"time"

	apperrors "filmdw/internal/errors"
	"filmdw/internal/validation"
	"filmdw/internal/warehouse"
)

// ExportResult lists the files a snapshot produced
type ExportResult struct {
	Dir   string
	Files map[string]string
	Rows  map[string]int
}

// SnapshotExporter writes one CSV file per warehouse table
type SnapshotExporter struct {
	writer *CSVWriter
	dir    string
	logger *slog.Logger
}

// NewSnapshotExporter creates an exporter writing into dir
func NewSnapshotExporter(dir string, logger *slog.Logger) *SnapshotExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotExporter{writer: NewCSVWriter(dir), dir: dir, logger: logger}
}

// Export writes every table of star as <Table>.csv. Existing files are replaced.
func (e *SnapshotExporter) Export(ctx context.Context, star *warehouse.Star) (*ExportResult, error) {
	if star == nil {
		return nil, apperrors.NewExportError("nothing to export", nil)
	}
	if e.dir != "" {
		if err := validation.NewFileValidator(e.logger).ValidateOutputDirectory(e.dir); err != nil {
			return nil, apperrors.NewExportError("export directory is not usable", err).WithContext("dir", e.dir)
		}
	}
	start := time.Now()
	result := &ExportResult{
		Dir:   e.dir,
		Files: make(map[string]string),
		Rows:  make(map[string]int),
	}

	for _, table := range star.Snapshot() {
		if err := ctx.Err(); err != nil {
			return result, apperrors.NewExportError("export cancelled", err).WithContext("table", table.Name)
		}

		name := table.Name + ".csv"
		stream, err := e.writer.CreateStreamWriter(name, table.Header)
		if err != nil {
			return result, apperrors.NewExportError("failed to create "+name, err).WithContext("table", table.Name)
		}
		for _, row := range table.Rows {
			if err := stream.WriteRecord(row); err != nil {
				stream.Close()
				return result, apperrors.NewExportError("failed to write "+name, err).WithContext("table", table.Name)
			}
		}
		if err := stream.Close(); err != nil {
			return result, apperrors.NewExportError("failed to flush "+name, err).WithContext("table", table.Name)
		}

		result.Files[table.Name] = e.writer.resolvePath(name)
		result.Rows[table.Name] = stream.Rows()
	}

	e.logger.InfoContext(ctx, "Warehouse snapshot exported",
		slog.String("dir", e.dir),
		slog.Int("files", len(result.Files)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}
