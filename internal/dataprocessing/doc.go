// Package dataprocessing covers the extract and transform halves of the film
// warehouse ETL.
//
// # Architecture
//
//  1. Source: reads a spreadsheet into a domain.RawTable (ExcelSource for
//     .xlsx workbooks, SheetsSource for Google Sheets)
//  2. Cleaner: maps headers to logical columns, coerces types and applies the
//     missing-value policy
//  3. MetricDeriver: computes Profit, ROI and release-date parts
//
// # Usage
//
//	table, err := dataprocessing.ParseFile("films.xlsx", "Films")
//	if err != nil {
//	    return err
//	}
//	records, stats, err := dataprocessing.NewFilmProcessor(logger).Process(table)
//
// # Missing values
//
// A row whose title is empty is dropped and its sheet row number is listed in
// CleanReport.DroppedRows. Every other row is kept: unparseable numbers and
// dates become nil, missing Oscar counts become zero. A nil budget or box
// office leaves Profit and ROI nil; a budget of zero or less leaves ROI nil.
//
// # Error Handling
//
// Extraction failures are SOURCE_READ app errors. A header lacking any of the
// required columns is a SCHEMA_MISMATCH app error whose context lists the
// missing columns.
package dataprocessing
