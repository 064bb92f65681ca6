package warehouse

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	apperrors "filmdw/internal/errors"
	"filmdw/pkg/contracts/domain"
)

// dimensionIndex assigns surrogate keys 1, 2, 3... to distinct tuples in
// first-seen order.
type dimensionIndex[T comparable] struct {
	keys  map[T]int64
	order []T
}

func newDimensionIndex[T comparable]() *dimensionIndex[T] {
	return &dimensionIndex[T]{keys: make(map[T]int64)}
}

func (d *dimensionIndex[T]) keyFor(v T) int64 {
	if k, ok := d.keys[v]; ok {
		return k
	}
	k := int64(len(d.order) + 1)
	d.keys[v] = k
	d.order = append(d.order, v)
	return k
}

// optionalKey returns nil for the zero tuple.
func (d *dimensionIndex[T]) optionalKey(v T) *int64 {
	var zero T
	if v == zero {
		return nil
	}
	k := d.keyFor(v)
	return &k
}

type filmTuple struct {
	title, sourceID, certificate, review string
}

// Star is the fact table and its seven dimensions, ready to load.
type Star struct {
	Films     []DimFilm
	Times     []DimTime
	Directors []DimDirector
	Studios   []DimStudio
	Genres    []DimGenre
	Countries []DimCountry
	Languages []DimLanguage
	Facts     []FactFilmPerformance
}

// SchemaMapper splits cleaned film records into a star schema.
type SchemaMapper struct {
	logger *slog.Logger
}

// NewSchemaMapper creates a mapper that logs through logger.
func NewSchemaMapper(logger *slog.Logger) *SchemaMapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaMapper{logger: logger}
}

// Map builds and validates the star for records.
func (m *SchemaMapper) Map(records []domain.FilmRecord) (*Star, error) {
	star, err := BuildStar(records)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Star schema mapped",
		slog.Int("facts", len(star.Facts)),
		slog.Int("films", len(star.Films)),
		slog.Int("dates", len(star.Times)),
		slog.Int("directors", len(star.Directors)),
		slog.Int("studios", len(star.Studios)),
		slog.Int("genres", len(star.Genres)),
		slog.Int("countries", len(star.Countries)),
		slog.Int("languages", len(star.Languages)))

	return star, nil
}

// BuildStar deduplicates each dimension by exact tuple, assigns keys in input
// order and replaces descriptive columns in the facts with those keys. The
// result is deterministic for a fixed record order.
func BuildStar(records []domain.FilmRecord) (*Star, error) {
	films := newDimensionIndex[filmTuple]()
	times := newDimensionIndex[time.Time]()
	directors := newDimensionIndex[string]()
	studios := newDimensionIndex[string]()
	genres := newDimensionIndex[string]()
	countries := newDimensionIndex[string]()
	languages := newDimensionIndex[string]()

	star := &Star{Facts: make([]FactFilmPerformance, 0, len(records))}

	for i, rec := range records {
		if rec.Title == "" {
			return nil, apperrors.NewSchemaMappingError(
				fmt.Sprintf("record %d has no title", i), nil).
				WithContext("source_row", rec.SourceRow)
		}

		var release time.Time
		if rec.ReleaseDate != nil {
			release = dateOnly(*rec.ReleaseDate)
		}

		star.Facts = append(star.Facts, FactFilmPerformance{
			FactKey: int64(i + 1),
			FilmKey: films.keyFor(filmTuple{
				title:       rec.Title,
				sourceID:    rec.SourceFilmID,
				certificate: rec.Certificate,
				review:      rec.Review,
			}),
			TimeKey:          times.optionalKey(release),
			DirectorKey:      directors.optionalKey(rec.Director),
			StudioKey:        studios.optionalKey(rec.Studio),
			GenreKey:         genres.optionalKey(rec.Genre),
			CountryKey:       countries.optionalKey(rec.Country),
			LanguageKey:      languages.optionalKey(rec.Language),
			Budget:           rec.Budget,
			BoxOffice:        rec.BoxOffice,
			Profit:           rec.Metrics.Profit,
			ROI:              rec.Metrics.ROI,
			OscarWins:        rec.OscarWins,
			OscarNominations: rec.OscarNominations,
			RuntimeMinutes:   rec.RuntimeMinutes,
		})
	}

	for i, f := range films.order {
		star.Films = append(star.Films, DimFilm{
			FilmKey:      int64(i + 1),
			Title:        f.title,
			SourceFilmID: f.sourceID,
			Certificate:  f.certificate,
			Review:       f.review,
		})
	}
	for i, d := range times.order {
		star.Times = append(star.Times, DimTime{
			TimeKey:   int64(i + 1),
			FullDate:  d,
			Year:      d.Year(),
			Quarter:   (int(d.Month())-1)/3 + 1,
			Month:     int(d.Month()),
			MonthName: d.Month().String(),
		})
	}
	for i, name := range directors.order {
		star.Directors = append(star.Directors, DimDirector{DirectorKey: int64(i + 1), Name: name})
	}
	for i, name := range studios.order {
		star.Studios = append(star.Studios, DimStudio{StudioKey: int64(i + 1), Name: name})
	}
	for i, name := range genres.order {
		star.Genres = append(star.Genres, DimGenre{GenreKey: int64(i + 1), Name: name})
	}
	for i, name := range countries.order {
		star.Countries = append(star.Countries, DimCountry{CountryKey: int64(i + 1), Name: name})
	}
	for i, name := range languages.order {
		star.Languages = append(star.Languages, DimLanguage{LanguageKey: int64(i + 1), Name: name})
	}

	if err := star.Validate(); err != nil {
		return nil, err
	}
	return star, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// keySet collects the keys of one dimension and reports duplicates.
func keySet(table string, keys []int64) (map[int64]struct{}, error) {
	set := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := set[k]; dup {
			return nil, apperrors.NewSchemaMappingError(
				fmt.Sprintf("duplicate surrogate key %d in %s", k, table), nil).
				WithContext("table", table)
		}
		set[k] = struct{}{}
	}
	return set, nil
}

// Validate checks key uniqueness in every table and that every non-null fact
// foreign key resolves to exactly one dimension row.
func (s *Star) Validate() error {
	dims := map[string][]int64{
		TableFilm:     collectKeys(s.Films, func(d DimFilm) int64 { return d.FilmKey }),
		TableTime:     collectKeys(s.Times, func(d DimTime) int64 { return d.TimeKey }),
		TableDirector: collectKeys(s.Directors, func(d DimDirector) int64 { return d.DirectorKey }),
		TableStudio:   collectKeys(s.Studios, func(d DimStudio) int64 { return d.StudioKey }),
		TableGenre:    collectKeys(s.Genres, func(d DimGenre) int64 { return d.GenreKey }),
		TableCountry:  collectKeys(s.Countries, func(d DimCountry) int64 { return d.CountryKey }),
		TableLanguage: collectKeys(s.Languages, func(d DimLanguage) int64 { return d.LanguageKey }),
		TableFact:     collectKeys(s.Facts, func(f FactFilmPerformance) int64 { return f.FactKey }),
	}

	sets := make(map[string]map[int64]struct{}, len(dims))
	for _, table := range TableNames {
		set, err := keySet(table, dims[table])
		if err != nil {
			return err
		}
		sets[table] = set
	}

	for _, f := range s.Facts {
		refs := []struct {
			table string
			key   *int64
		}{
			{TableFilm, &f.FilmKey},
			{TableTime, f.TimeKey},
			{TableDirector, f.DirectorKey},
			{TableStudio, f.StudioKey},
			{TableGenre, f.GenreKey},
			{TableCountry, f.CountryKey},
			{TableLanguage, f.LanguageKey},
		}
		for _, ref := range refs {
			if ref.key == nil {
				continue
			}
			if _, ok := sets[ref.table][*ref.key]; !ok {
				return apperrors.NewSchemaMappingError(
					fmt.Sprintf("fact %d references missing %s key %d", f.FactKey, ref.table, *ref.key), nil).
					WithContext("table", ref.table).
					WithContext("fact_key", f.FactKey)
			}
		}
	}
	return nil
}

func collectKeys[T any](rows []T, key func(T) int64) []int64 {
	keys := make([]int64, len(rows))
	for i, r := range rows {
		keys[i] = key(r)
	}
	return keys
}

// TableRows returns the row count of every table in the star.
func (s *Star) TableRows() map[string]int64 {
	return map[string]int64{
		TableFilm:     int64(len(s.Films)),
		TableTime:     int64(len(s.Times)),
		TableDirector: int64(len(s.Directors)),
		TableStudio:   int64(len(s.Studios)),
		TableGenre:    int64(len(s.Genres)),
		TableCountry:  int64(len(s.Countries)),
		TableLanguage: int64(len(s.Languages)),
		TableFact:     int64(len(s.Facts)),
	}
}

// Summary computes the totals a loaded warehouse must reproduce. Nil measures
// are skipped as SQL aggregates skip NULL.
func (s *Star) Summary() domain.LoadSummary {
	summary := domain.LoadSummary{
		TableRows: s.TableRows(),
		FactRows:  int64(len(s.Facts)),
	}

	var roiSum float64
	var roiCount int
	for _, f := range s.Facts {
		if f.Budget != nil {
			summary.TotalBudget += *f.Budget
		}
		if f.BoxOffice != nil {
			summary.TotalBoxOffice += *f.BoxOffice
		}
		if f.ROI != nil {
			roiSum += *f.ROI
			roiCount++
		}
	}
	if roiCount > 0 {
		avg := roiSum / float64(roiCount)
		summary.AverageROI = &avg
	}
	return summary
}

// almostEqual compares aggregates read back from a store with a relative tolerance.
func almostEqual(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= 1e-6 {
		return true
	}
	return diff <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}
