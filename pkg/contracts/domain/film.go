package domain

import (
	"time"
)

// RawTable is a spreadsheet sheet exactly as read from the source.
// Header holds the first non-empty row; Rows hold every non-blank row after
// it, and RowNumbers the 1-based sheet row each of them came from.
type RawTable struct {
	Source     string     `json:"source"`
	Sheet      string     `json:"sheet"`
	Header     []string   `json:"header"`
	Rows       [][]string `json:"rows"`
	RowNumbers []int      `json:"row_numbers"`
}

// Cell returns the value at row/col, or "" when the row is shorter than col.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// FilmRecord is one cleaned film row. Pointer fields are nil when the source
// value was missing or could not be parsed.
type FilmRecord struct {
	SourceRow        int        `json:"source_row"`
	SourceFilmID     string     `json:"source_film_id,omitempty"`
	Title            string     `json:"title" validate:"required"`
	Certificate      string     `json:"certificate,omitempty"`
	Review           string     `json:"review,omitempty"`
	Budget           *float64   `json:"budget,omitempty"`
	BoxOffice        *float64   `json:"box_office,omitempty"`
	RuntimeMinutes   *int       `json:"runtime_minutes,omitempty"`
	Genre            string     `json:"genre"`
	Studio           string     `json:"studio"`
	Country          string     `json:"country"`
	Language         string     `json:"language"`
	Director         string     `json:"director"`
	ReleaseDate      *time.Time `json:"release_date,omitempty"`
	OscarWins        int        `json:"oscar_wins"`
	OscarNominations int        `json:"oscar_nominations"`

	Metrics FilmMetrics `json:"metrics"`
}

// FilmMetrics holds the values derived from a FilmRecord's raw measures.
type FilmMetrics struct {
	Profit    *float64 `json:"profit,omitempty"`
	ROI       *float64 `json:"roi,omitempty"`
	Year      *int     `json:"year,omitempty"`
	Quarter   *int     `json:"quarter,omitempty"`
	Month     *int     `json:"month,omitempty"`
	MonthName string   `json:"month_name,omitempty"`
}

// CleanReport summarises what the cleaner did to a raw table.
type CleanReport struct {
	InputRows      int            `json:"input_rows"`
	OutputRows     int            `json:"output_rows"`
	DroppedRows    []int          `json:"dropped_rows,omitempty"`
	InvalidValues  map[string]int `json:"invalid_values,omitempty"`
	CanonicalMerge map[string]int `json:"canonical_merge,omitempty"`
}

// LoadSummary is read back from the warehouse after a load.
type LoadSummary struct {
	TableRows      map[string]int64 `json:"table_rows"`
	FactRows       int64            `json:"fact_rows"`
	TotalBudget    float64          `json:"total_budget"`
	TotalBoxOffice float64          `json:"total_box_office"`
	AverageROI     *float64         `json:"average_roi,omitempty"`
}
