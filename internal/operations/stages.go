package operations

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"

	"filmdw/internal/dataprocessing"
	"filmdw/internal/exporter"
	"filmdw/internal/infrastructure"
	"filmdw/internal/warehouse"
	"filmdw/pkg/contracts/domain"
)

// Connector opens the warehouse. It is called by the load step only, so a
// run that fails earlier never touches the database.
type Connector interface {
	Connect(ctx context.Context) (*gorm.DB, error)
}

// StageOptions contains optional dependencies shared by the steps
type StageOptions struct {
	Logger  *slog.Logger
	Metrics *infrastructure.ETLMetrics
}

func (o *StageOptions) stepLogger(stepID string) *slog.Logger {
	logger := slog.Default()
	if o != nil && o.Logger != nil {
		logger = o.Logger
	}
	return logger.With(slog.String("step", stepID))
}

func (o *StageOptions) metrics() *infrastructure.ETLMetrics {
	if o == nil || o.Metrics == nil {
		return NoopMetrics()
	}
	return o.Metrics
}

// contextValue reads a value a previous step stored on state
func contextValue[T any](state *OperationState, key string) (T, error) {
	var zero T
	v, ok := state.GetContext(key)
	if !ok {
		return zero, fmt.Errorf("%s not available", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s has unexpected type %T", key, v)
	}
	return t, nil
}

// requireContext fails validation unless key is present
func requireContext[T any](state *OperationState, key string) error {
	_, err := contextValue[T](state, key)
	return err
}

// ExtractStage reads the raw film table from the configured source
type ExtractStage struct {
	stepInfo
	source  dataprocessing.Source
	logger  *slog.Logger
	metrics *infrastructure.ETLMetrics
}

// NewExtractStage creates the extract step
func NewExtractStage(source dataprocessing.Source, options *StageOptions) *ExtractStage {
	return &ExtractStage{
		stepInfo: newStepInfo(StepIDExtract, StepNameExtract),
		source:    source,
		logger:    options.stepLogger(StepIDExtract),
		metrics:   options.metrics(),
	}
}

// Validate checks that a source is configured
func (s *ExtractStage) Validate(state *OperationState) error {
	if s.source == nil {
		return fmt.Errorf("no source configured")
	}
	return nil
}

// Execute reads the source into a raw table
func (s *ExtractStage) Execute(ctx context.Context, state *OperationState) error {
	s.logger.InfoContext(ctx, "Reading source", slog.String("source", s.source.Describe()))

	table, err := s.source.Extract(ctx)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyRawTable, table)
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("rows", len(table.Rows))
		st.SetMetadata("sheet", table.Sheet)
	}
	s.metrics.RowsExtracted.Add(ctx, int64(len(table.Rows)))

	s.logger.InfoContext(ctx, "Source extracted",
		slog.String("sheet", table.Sheet),
		slog.Int("columns", len(table.Header)),
		slog.Int("rows", len(table.Rows)))
	return nil
}

// TransformStage cleans the raw table and derives the film metrics
type TransformStage struct {
	stepInfo
	processor dataprocessing.Processor
	logger    *slog.Logger
	metrics   *infrastructure.ETLMetrics
}

// NewTransformStage creates the transform step
func NewTransformStage(processor dataprocessing.Processor, options *StageOptions) *TransformStage {
	logger := options.stepLogger(StepIDTransform)
	if processor == nil {
		processor = dataprocessing.NewFilmProcessor(logger)
	}
	return &TransformStage{
		stepInfo: newStepInfo(StepIDTransform, StepNameTransform, StepIDExtract),
		processor: processor,
		logger:    logger,
		metrics:   options.metrics(),
	}
}

// Validate checks that the raw table is available
func (s *TransformStage) Validate(state *OperationState) error {
	return requireContext[*domain.RawTable](state, ContextKeyRawTable)
}

// Execute produces clean, derived film records
func (s *TransformStage) Execute(ctx context.Context, state *OperationState) error {
	table, err := contextValue[*domain.RawTable](state, ContextKeyRawTable)
	if err != nil {
		return err
	}

	records, stats, err := s.processor.Process(table)
	if err != nil {
		return err
	}

	report := stats.Clean
	state.SetContext(ContextKeyRecords, records)
	state.SetContext(ContextKeyCleanReport, report)
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("input_rows", report.InputRows)
		st.SetMetadata("output_rows", report.OutputRows)
		st.SetMetadata("dropped_rows", len(report.DroppedRows))
		st.SetMetadata("with_profit", stats.Derive.WithProfit)
		st.SetMetadata("with_roi", stats.Derive.WithROI)
		st.SetMetadata("with_release_date", stats.Derive.WithRelease)
	}
	s.metrics.RowsDropped.Add(ctx, int64(len(report.DroppedRows)))
	return nil
}

// MapStage builds the star schema from the film records
type MapStage struct {
	stepInfo
	mapper *warehouse.SchemaMapper
	logger *slog.Logger
}

// NewMapStage creates the map step
func NewMapStage(options *StageOptions) *MapStage {
	logger := options.stepLogger(StepIDMap)
	return &MapStage{
		stepInfo: newStepInfo(StepIDMap, StepNameMap, StepIDTransform),
		mapper:    warehouse.NewSchemaMapper(logger),
		logger:    logger,
	}
}

// Validate checks that film records are available
func (s *MapStage) Validate(state *OperationState) error {
	return requireContext[[]domain.FilmRecord](state, ContextKeyRecords)
}

// Execute maps the records onto dimension and fact rows
func (s *MapStage) Execute(ctx context.Context, state *OperationState) error {
	records, err := contextValue[[]domain.FilmRecord](state, ContextKeyRecords)
	if err != nil {
		return err
	}

	star, err := s.mapper.Map(records)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyStar, star)
	if st := state.GetStage(s.ID()); st != nil {
		for table, n := range star.TableRows() {
			st.SetMetadata(table, n)
		}
	}
	return nil
}

// LoadStage connects to the warehouse and rebuilds every table
type LoadStage struct {
	stepInfo
	connector Connector
	batchSize int
	logger    *slog.Logger
	metrics   *infrastructure.ETLMetrics
}

// NewLoadStage creates the load step
func NewLoadStage(connector Connector, batchSize int, options *StageOptions) *LoadStage {
	return &LoadStage{
		stepInfo: newStepInfo(StepIDLoad, StepNameLoad, StepIDMap),
		connector: connector,
		batchSize: batchSize,
		logger:    options.stepLogger(StepIDLoad),
		metrics:   options.metrics(),
	}
}

// Validate checks that a star and a connector are available
func (s *LoadStage) Validate(state *OperationState) error {
	if s.connector == nil {
		return fmt.Errorf("no warehouse connector configured")
	}
	return requireContext[*warehouse.Star](state, ContextKeyStar)
}

// Execute loads the star inside one transaction
func (s *LoadStage) Execute(ctx context.Context, state *OperationState) error {
	star, err := contextValue[*warehouse.Star](state, ContextKeyStar)
	if err != nil {
		return err
	}

	db, err := s.connector.Connect(ctx)
	if err != nil {
		return err
	}
	state.SetContext(ContextKeyDB, db)

	if err := warehouse.NewLoader(db, s.batchSize, s.logger).Load(ctx, star, state.ID); err != nil {
		return err
	}

	for table, n := range star.TableRows() {
		s.metrics.RowsLoaded.Add(ctx, n, metric.WithAttributes(attribute.String("table", table)))
	}
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("fact_rows", len(star.Facts))
	}
	return nil
}

// VerifyStage reads the loaded warehouse back and compares it with the star
type VerifyStage struct {
	stepInfo
	logger *slog.Logger
}

// NewVerifyStage creates the verify step
func NewVerifyStage(options *StageOptions) *VerifyStage {
	return &VerifyStage{
		stepInfo: newStepInfo(StepIDVerify, StepNameVerify, StepIDLoad),
		logger:    options.stepLogger(StepIDVerify),
	}
}

// Validate checks that the load step left a connection and a star
func (s *VerifyStage) Validate(state *OperationState) error {
	if err := requireContext[*gorm.DB](state, ContextKeyDB); err != nil {
		return err
	}
	return requireContext[*warehouse.Star](state, ContextKeyStar)
}

// Execute verifies row counts and totals
func (s *VerifyStage) Execute(ctx context.Context, state *OperationState) error {
	db, err := contextValue[*gorm.DB](state, ContextKeyDB)
	if err != nil {
		return err
	}
	star, err := contextValue[*warehouse.Star](state, ContextKeyStar)
	if err != nil {
		return err
	}

	summary, err := warehouse.NewVerifier(db, s.logger).Verify(ctx, star)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyLoadSummary, summary)
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("total_films", summary.FactRows)
		st.SetMetadata("total_budget", summary.TotalBudget)
		st.SetMetadata("total_box_office", summary.TotalBoxOffice)
		if summary.AverageROI != nil {
			st.SetMetadata("average_roi", *summary.AverageROI)
		}
	}
	return nil
}

// ExportStage writes the CSV snapshot of the warehouse
type ExportStage struct {
	stepInfo
	exporter *exporter.SnapshotExporter
}

// NewExportStage creates the export step writing into dir
func NewExportStage(dir string, options *StageOptions) *ExportStage {
	return &ExportStage{
		stepInfo: newStepInfo(StepIDExport, StepNameExport, StepIDLoad),
		exporter:  exporter.NewSnapshotExporter(dir, options.stepLogger(StepIDExport)),
	}
}

// Validate checks that a star is available
func (s *ExportStage) Validate(state *OperationState) error {
	return requireContext[*warehouse.Star](state, ContextKeyStar)
}

// Execute writes one CSV per table
func (s *ExportStage) Execute(ctx context.Context, state *OperationState) error {
	star, err := contextValue[*warehouse.Star](state, ContextKeyStar)
	if err != nil {
		return err
	}

	result, err := s.exporter.Export(ctx, star)
	if err != nil {
		return err
	}

	state.SetContext(ContextKeyExport, result)
	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("dir", result.Dir)
		st.SetMetadata("files", len(result.Files))
	}
	return nil
}

// PipelineOptions wires the ETL steps
type PipelineOptions struct {
	Source    dataprocessing.Source
	Processor dataprocessing.Processor
	Connector Connector
	BatchSize int
	// ExportDir enables the export step when set
	ExportDir string
	Logger    *slog.Logger
	Metrics   *infrastructure.ETLMetrics
}

// NewPipelineRegistry registers extract, transform, map, load, verify and,
// when an export directory is set, export
func NewPipelineRegistry(opts PipelineOptions) (*Registry, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("pipeline needs a source")
	}
	if opts.Connector == nil {
		return nil, fmt.Errorf("pipeline needs a warehouse connector")
	}
	options := &StageOptions{Logger: opts.Logger, Metrics: opts.Metrics}

	steps := []Step{
		NewExtractStage(opts.Source, options),
		NewTransformStage(opts.Processor, options),
		NewMapStage(options),
		NewLoadStage(opts.Connector, opts.BatchSize, options),
		NewVerifyStage(options),
	}
	if opts.ExportDir != "" {
		steps = append(steps, NewExportStage(opts.ExportDir, options))
	}

	registry := NewRegistry()
	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
