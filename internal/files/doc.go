// Package files locates source workbooks on disk. A source path that names a
// directory resolves to the most recently modified workbook inside it.
package files
