package warehouse

import (
	"time"
)

// Warehouse table names as seen by the OLAP layer.
const (
	TableFact     = "FactFilmPerformance"
	TableFilm     = "DimFilm"
	TableTime     = "DimTime"
	TableDirector = "DimDirector"
	TableStudio   = "DimStudio"
	TableGenre    = "DimGenre"
	TableCountry  = "DimCountry"
	TableLanguage = "DimLanguage"
)

// TableNames lists every warehouse table, dimensions first.
var TableNames = []string{
	TableFilm, TableTime, TableDirector, TableStudio,
	TableGenre, TableCountry, TableLanguage, TableFact,
}

// DimFilm describes one distinct film.
type DimFilm struct {
	FilmKey      int64  `gorm:"column:film_key;primaryKey;autoIncrement:false"`
	Title        string `gorm:"column:title;size:200;not null"`
	SourceFilmID string `gorm:"column:source_film_id;size:64"`
	Certificate  string `gorm:"column:certificate;size:32"`
	Review       string `gorm:"column:review;size:500"`
}

func (DimFilm) TableName() string { return TableFilm }

// DimTime is one distinct release date.
type DimTime struct {
	TimeKey   int64     `gorm:"column:time_key;primaryKey;autoIncrement:false"`
	FullDate  time.Time `gorm:"column:full_date;type:date;not null"`
	Year      int       `gorm:"column:year;not null"`
	Quarter   int       `gorm:"column:quarter;not null"`
	Month     int       `gorm:"column:month;not null"`
	MonthName string    `gorm:"column:month_name;size:16;not null"`
}

func (DimTime) TableName() string { return TableTime }

type DimDirector struct {
	DirectorKey int64  `gorm:"column:director_key;primaryKey;autoIncrement:false"`
	Name        string `gorm:"column:director_name;size:255;not null"`
}

func (DimDirector) TableName() string { return TableDirector }

type DimStudio struct {
	StudioKey int64  `gorm:"column:studio_key;primaryKey;autoIncrement:false"`
	Name      string `gorm:"column:studio_name;size:255;not null"`
}

func (DimStudio) TableName() string { return TableStudio }

type DimGenre struct {
	GenreKey int64  `gorm:"column:genre_key;primaryKey;autoIncrement:false"`
	Name     string `gorm:"column:genre_name;size:100;not null"`
}

func (DimGenre) TableName() string { return TableGenre }

type DimCountry struct {
	CountryKey int64  `gorm:"column:country_key;primaryKey;autoIncrement:false"`
	Name       string `gorm:"column:country_name;size:100;not null"`
}

func (DimCountry) TableName() string { return TableCountry }

type DimLanguage struct {
	LanguageKey int64  `gorm:"column:language_key;primaryKey;autoIncrement:false"`
	Name        string `gorm:"column:language_name;size:100;not null"`
}

func (DimLanguage) TableName() string { return TableLanguage }

// FactFilmPerformance is one row per kept source film. Dimension keys other
// than FilmKey are NULL when the source value was missing.
type FactFilmPerformance struct {
	FactKey          int64    `gorm:"column:fact_key;primaryKey;autoIncrement:false"`
	FilmKey          int64    `gorm:"column:film_key;not null"`
	TimeKey          *int64   `gorm:"column:time_key"`
	DirectorKey      *int64   `gorm:"column:director_key"`
	StudioKey        *int64   `gorm:"column:studio_key"`
	GenreKey         *int64   `gorm:"column:genre_key"`
	CountryKey       *int64   `gorm:"column:country_key"`
	LanguageKey      *int64   `gorm:"column:language_key"`
	Budget           *float64 `gorm:"column:budget_dollars"`
	BoxOffice        *float64 `gorm:"column:box_office_dollars"`
	Profit           *float64 `gorm:"column:profit_dollars"`
	ROI              *float64 `gorm:"column:roi"`
	OscarWins        int      `gorm:"column:oscar_wins;not null"`
	OscarNominations int      `gorm:"column:oscar_nominations;not null"`
	RuntimeMinutes   *int     `gorm:"column:run_time_minutes"`
}

func (FactFilmPerformance) TableName() string { return TableFact }
