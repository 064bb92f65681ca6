// Package exporter writes CSV snapshots of the film warehouse.
//
// CSVWriter is the low-level writer: UTF-8 BOM for Excel, headers, and a
// streaming mode for large tables. SnapshotExporter renders a warehouse.Star
// as one <Table>.csv file per dimension and fact table.
//
// Example usage:
//
//	exp := exporter.NewSnapshotExporter("exports/latest", logger)
//	result, err := exp.Export(ctx, star)
package exporter
