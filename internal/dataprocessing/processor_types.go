package dataprocessing

import (
	"filmdw/pkg/contracts/domain"
)

// Processor defines the transform half of the pipeline
type Processor interface {
	// Process cleans a raw table and derives metrics for every kept row
	Process(table *domain.RawTable) ([]domain.FilmRecord, ProcessingStatistics, error)
}

// ProcessingStatistics summarises one Process call
type ProcessingStatistics struct {
	Clean  domain.CleanReport
	Derive DeriveStatistics
}
