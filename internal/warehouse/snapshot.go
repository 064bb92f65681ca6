package warehouse

import (
	"strconv"
)

// TableSnapshot is one warehouse table rendered as text cells.
type TableSnapshot struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Snapshot renders every table of the star in load order. NULL is rendered as
// an empty cell.
func (s *Star) Snapshot() []TableSnapshot {
	out := make([]TableSnapshot, 0, len(TableNames))

	films := TableSnapshot{Name: TableFilm, Header: []string{"film_key", "title", "source_film_id", "certificate", "review"}}
	for _, f := range s.Films {
		films.Rows = append(films.Rows, []string{key(f.FilmKey), f.Title, f.SourceFilmID, f.Certificate, f.Review})
	}
	out = append(out, films)

	times := TableSnapshot{Name: TableTime, Header: []string{"time_key", "full_date", "year", "quarter", "month", "month_name"}}
	for _, t := range s.Times {
		times.Rows = append(times.Rows, []string{
			key(t.TimeKey), t.FullDate.Format("2006-01-02"),
			strconv.Itoa(t.Year), strconv.Itoa(t.Quarter), strconv.Itoa(t.Month), t.MonthName,
		})
	}
	out = append(out, times)

	out = append(out,
		namedSnapshot(TableDirector, "director", s.Directors, func(d DimDirector) (int64, string) { return d.DirectorKey, d.Name }),
		namedSnapshot(TableStudio, "studio", s.Studios, func(d DimStudio) (int64, string) { return d.StudioKey, d.Name }),
		namedSnapshot(TableGenre, "genre", s.Genres, func(d DimGenre) (int64, string) { return d.GenreKey, d.Name }),
		namedSnapshot(TableCountry, "country", s.Countries, func(d DimCountry) (int64, string) { return d.CountryKey, d.Name }),
		namedSnapshot(TableLanguage, "language", s.Languages, func(d DimLanguage) (int64, string) { return d.LanguageKey, d.Name }),
	)

	facts := TableSnapshot{Name: TableFact, Header: []string{
		"fact_key", "film_key", "time_key", "director_key", "studio_key", "genre_key", "country_key", "language_key",
		"budget_dollars", "box_office_dollars", "profit_dollars", "roi",
		"oscar_wins", "oscar_nominations", "run_time_minutes",
	}}
	for _, f := range s.Facts {
		facts.Rows = append(facts.Rows, []string{
			key(f.FactKey), key(f.FilmKey),
			optKey(f.TimeKey), optKey(f.DirectorKey), optKey(f.StudioKey),
			optKey(f.GenreKey), optKey(f.CountryKey), optKey(f.LanguageKey),
			optFloat(f.Budget), optFloat(f.BoxOffice), optFloat(f.Profit), optFloat(f.ROI),
			strconv.Itoa(f.OscarWins), strconv.Itoa(f.OscarNominations), optInt(f.RuntimeMinutes),
		})
	}
	out = append(out, facts)

	return out
}

func namedSnapshot[T any](table, prefix string, rows []T, fields func(T) (int64, string)) TableSnapshot {
	snap := TableSnapshot{Name: table, Header: []string{prefix + "_key", prefix + "_name"}}
	for _, r := range rows {
		k, name := fields(r)
		snap.Rows = append(snap.Rows, []string{key(k), name})
	}
	return snap
}

func key(k int64) string {
	return strconv.FormatInt(k, 10)
}

func optKey(k *int64) string {
	if k == nil {
		return ""
	}
	return key(*k)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
