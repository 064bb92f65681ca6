package dataprocessing

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	apperrors "filmdw/internal/errors"
	"filmdw/pkg/contracts/domain"
)

// Column identifies a logical film column independent of its header spelling.
type Column string

const (
	ColTitle            Column = "title"
	ColBudget           Column = "budget"
	ColBoxOffice        Column = "box_office"
	ColRuntime          Column = "runtime"
	ColGenre            Column = "genre"
	ColStudio           Column = "studio"
	ColCountry          Column = "country"
	ColLanguage         Column = "language"
	ColDirector         Column = "director"
	ColReleaseDate      Column = "release_date"
	ColOscarWins        Column = "oscar_wins"
	ColOscarNominations Column = "oscar_nominations"
	ColFilmID           Column = "film_id"
	ColCertificate      Column = "certificate"
	ColReview           Column = "review"
)

const (
	maxTitleLength  = 200
	maxReviewLength = 500

	// maxExcelSerial is 9999-12-31, the last date a worksheet can hold.
	maxExcelSerial = 2958465
)

// RequiredColumns must all be present in the source header.
var RequiredColumns = []Column{
	ColTitle, ColBudget, ColBoxOffice, ColRuntime,
	ColGenre, ColStudio, ColCountry, ColLanguage, ColDirector,
	ColReleaseDate, ColOscarWins, ColOscarNominations,
}

// headerAliases maps normalized header text to a column.
var headerAliases = map[string]Column{
	"title":            ColTitle,
	"filmtitle":        ColTitle,
	"movietitle":       ColTitle,
	"film":             ColTitle,
	"budget":           ColBudget,
	"budgetdollars":    ColBudget,
	"budgetusd":        ColBudget,
	"boxoffice":        ColBoxOffice,
	"boxofficedollars": ColBoxOffice,
	"boxofficeusd":     ColBoxOffice,
	"gross":            ColBoxOffice,
	"runtime":          ColRuntime,
	"runtimeminutes":   ColRuntime,
	"runtimemins":      ColRuntime,
	"duration":         ColRuntime,
	"genre":            ColGenre,
	"genreid":          ColGenre,
	"studio":           ColStudio,
	"studioid":         ColStudio,
	"country":          ColCountry,
	"countryid":        ColCountry,
	"language":         ColLanguage,
	"languageid":       ColLanguage,
	"director":         ColDirector,
	"directorid":       ColDirector,
	"releasedate":      ColReleaseDate,
	"release":          ColReleaseDate,
	"oscarwins":        ColOscarWins,
	"oscarswon":        ColOscarWins,
	"oscarnominations": ColOscarNominations,
	"oscarsnominated":  ColOscarNominations,
	"nominations":      ColOscarNominations,
	"filmid":           ColFilmID,
	"id":               ColFilmID,
	"certificate":      ColCertificate,
	"certificateid":    ColCertificate,
	"certification":    ColCertificate,
	"review":           ColReview,
}

// categoricalColumns are canonicalised case-insensitively across the table.
var categoricalColumns = []Column{
	ColGenre, ColStudio, ColCountry, ColLanguage, ColDirector, ColCertificate,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Cleaner coerces a raw table into typed film records.
type Cleaner struct {
	logger   *slog.Logger
	fold     cases.Caser
	validate *validator.Validate
}

// NewCleaner creates a cleaner that logs through logger.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger, fold: cases.Fold(), validate: validator.New()}
}

// cleanState is the per-run mutable state of Clean.
type cleanState struct {
	report    domain.CleanReport
	canonical map[Column]map[string]string
}

// Clean converts table into film records. Rows whose title fails validation
// are dropped and reported; every other row is kept with unparseable values
// set to nil.
func (c *Cleaner) Clean(table *domain.RawTable) ([]domain.FilmRecord, domain.CleanReport, error) {
	if table == nil {
		return nil, domain.CleanReport{}, apperrors.NewSchemaMismatchError([]string{"header"})
	}

	index, err := MapHeader(table.Header)
	if err != nil {
		return nil, domain.CleanReport{}, err
	}

	st := &cleanState{
		report: domain.CleanReport{
			InputRows:      len(table.Rows),
			InvalidValues:  make(map[string]int),
			CanonicalMerge: make(map[string]int),
		},
		canonical: make(map[Column]map[string]string, len(categoricalColumns)),
	}
	for _, col := range categoricalColumns {
		st.canonical[col] = make(map[string]string)
	}

	records := make([]domain.FilmRecord, 0, len(table.Rows))
	for i := range table.Rows {
		rowNumber := i + 2
		if i < len(table.RowNumbers) {
			rowNumber = table.RowNumbers[i]
		}

		get := func(col Column) string {
			idx, ok := index[col]
			if !ok {
				return ""
			}
			return table.Cell(i, idx)
		}

		rec := domain.FilmRecord{
			SourceRow:    rowNumber,
			SourceFilmID: normalizeText(get(ColFilmID)),
			Title:        truncateRunes(normalizeText(get(ColTitle)), maxTitleLength),
			Review:       truncateRunes(normalizeText(get(ColReview)), maxReviewLength),
		}
		if err := c.validate.StructPartial(rec, "Title"); err != nil {
			c.logger.Debug("Row rejected",
				slog.Int("row", rowNumber),
				slog.String("error", err.Error()))
			st.report.DroppedRows = append(st.report.DroppedRows, rowNumber)
			continue
		}

		rec.Budget = c.number(st, ColBudget, get(ColBudget))
		rec.BoxOffice = c.number(st, ColBoxOffice, get(ColBoxOffice))
		rec.RuntimeMinutes = c.integer(st, ColRuntime, get(ColRuntime))
		rec.OscarWins = c.count(st, ColOscarWins, get(ColOscarWins))
		rec.OscarNominations = c.count(st, ColOscarNominations, get(ColOscarNominations))
		rec.ReleaseDate = c.date(st, get(ColReleaseDate))

		rec.Genre = c.categorical(st, ColGenre, get(ColGenre))
		rec.Studio = c.categorical(st, ColStudio, get(ColStudio))
		rec.Country = c.categorical(st, ColCountry, get(ColCountry))
		rec.Language = c.categorical(st, ColLanguage, get(ColLanguage))
		rec.Director = c.categorical(st, ColDirector, get(ColDirector))
		rec.Certificate = c.categorical(st, ColCertificate, get(ColCertificate))

		records = append(records, rec)
	}

	st.report.OutputRows = len(records)

	if len(st.report.DroppedRows) > 0 {
		c.logger.Warn("Rows without title dropped",
			slog.Int("count", len(st.report.DroppedRows)),
			slog.Any("rows", st.report.DroppedRows))
	}
	c.logger.Info("Data cleaning complete",
		slog.Int("input_rows", st.report.InputRows),
		slog.Int("output_rows", st.report.OutputRows),
		slog.Any("invalid_values", st.report.InvalidValues),
		slog.Any("canonical_merges", st.report.CanonicalMerge))

	return records, st.report, nil
}

// MapHeader resolves each logical column to its index in header. It fails with
// a schema mismatch naming every required column that is absent.
func MapHeader(header []string) (map[Column]int, error) {
	index := make(map[Column]int, len(header))
	for i, h := range header {
		col, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := index[col]; !seen {
			index[col] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.NewSchemaMismatchError(missing).
			WithContext("header", header)
	}
	return index, nil
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Cleaner) invalid(st *cleanState, col Column) {
	st.report.InvalidValues[string(col)]++
}

func (c *Cleaner) number(st *cleanState, col Column, raw string) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	v, ok := ParseNumber(raw)
	if !ok {
		c.invalid(st, col)
		return nil
	}
	return &v
}

func (c *Cleaner) integer(st *cleanState, col Column, raw string) *int {
	f := c.number(st, col, raw)
	if f == nil {
		return nil
	}
	if *f < 0 {
		c.invalid(st, col)
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

// count is integer with missing values resolved to zero.
func (c *Cleaner) count(st *cleanState, col Column, raw string) int {
	if n := c.integer(st, col, raw); n != nil {
		return *n
	}
	return 0
}

func (c *Cleaner) date(st *cleanState, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, ok := ParseDate(raw)
	if !ok {
		c.invalid(st, ColReleaseDate)
		return nil
	}
	return &t
}

// categorical returns the first-seen spelling of raw's case-folded value.
func (c *Cleaner) categorical(st *cleanState, col Column, raw string) string {
	v := normalizeText(raw)
	if v == "" {
		return ""
	}
	key := c.fold.String(v)
	if canon, ok := st.canonical[col][key]; ok {
		if canon != v {
			st.report.CanonicalMerge[string(col)]++
		}
		return canon
	}
	st.canonical[col][key] = v
	return v
}

// ParseNumber parses a numeric cell, tolerating currency symbols, thousands
// separators and surrounding whitespace.
func ParseNumber(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseDate parses an Excel serial date or one of the accepted text layouts.
// The result is a UTC calendar date.
func ParseDate(raw string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial <= 0 || serial > maxExcelSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return truncateToDate(t), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return truncateToDate(t), true
		}
	}
	return time.Time{}, false
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// normalizeText applies NFC, trims, and collapses internal whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
