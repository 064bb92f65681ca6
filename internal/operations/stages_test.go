package operations_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"filmdw/internal/config"
	apperrors "filmdw/internal/errors"
	"filmdw/internal/exporter"
	"filmdw/internal/infrastructure"
	"filmdw/internal/operations"
	"filmdw/internal/warehouse"
	"filmdw/pkg/contracts/domain"
)

var filmHeader = []string{
	"Title", "Budget", "Box Office", "Runtime", "Genre", "Studio", "Country",
	"Language", "Director", "Release Date", "Oscar Wins", "Oscar Nominations",
}

// staticSource serves a fixed table.
type staticSource struct {
	table *domain.RawTable
	err   error
}

func (s staticSource) Extract(ctx context.Context) (*domain.RawTable, error) {
	return s.table, s.err
}

func (s staticSource) Describe() string { return "static" }

// countingConnector records whether the pipeline asked for the database.
type countingConnector struct {
	inner operations.Connector
	calls int
}

func (c *countingConnector) Connect(ctx context.Context) (*gorm.DB, error) {
	c.calls++
	return c.inner.Connect(ctx)
}

type dbConnector struct{ db *gorm.DB }

func (c dbConnector) Connect(context.Context) (*gorm.DB, error) { return c.db, nil }

func filmTable(header []string, rows ...[]string) *domain.RawTable {
	return &domain.RawTable{Source: "test", Sheet: "Films", Header: header, Rows: rows}
}

func sampleTable() *domain.RawTable {
	return filmTable(filmHeader,
		[]string{"Film A", "100", "250", "120", "Drama", "Acme", "USA", "English", "Jane Doe", "2020-05-01", "1", "3"},
		[]string{"Film B", "0", "40", "95", "drama", "Acme", "UK", "English", "John Roe", "2021-11-03", "", ""},
		[]string{"", "10", "20", "90", "Comedy", "Acme", "USA", "English", "Jane Doe", "2020-01-01", "0", "0"},
		[]string{"Film D", "50", "20", "", "Comedy", "", "USA", "French", "Jane Doe", "", "0", "1"},
	)
}

func sqliteConnection(t *testing.T) *warehouse.Connection {
	t.Helper()
	conn := warehouse.NewConnection(config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "warehouse.db"),
	}, quietLogger())
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testTelemetryConfig() config.TelemetryConfig {
	return config.TelemetryConfig{EnableMetrics: true, TraceExporter: "none", SampleRatio: 1}
}

func scrapeMetrics(t *testing.T, providers *infrastructure.OTelProviders) string {
	t.Helper()
	require.NotNil(t, providers.PrometheusHTTP)
	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func runPipeline(t *testing.T, opts operations.PipelineOptions) (*operations.Manager, *operations.OperationResponse, error) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	registry, err := operations.NewPipelineRegistry(opts)
	require.NoError(t, err)

	manager := operations.NewManager(registry, nil, nil, quietLogger())
	resp, err := manager.Execute(context.Background(), operations.OperationRequest{ID: "0b6f2c1d-aaaa-bbbb-cccc-000000000001"})
	return manager, resp, err
}

func TestPipeline_EndToEnd(t *testing.T) {
	conn := sqliteConnection(t)
	exportDir := t.TempDir()

	manager, resp, err := runPipeline(t, operations.PipelineOptions{
		Source:    staticSource{table: sampleTable()},
		Connector: conn,
		BatchSize: 2,
		ExportDir: exportDir,
	})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)

	ids := make([]string, len(resp.Steps))
	for i, s := range resp.Steps {
		ids[i] = s.ID
		assert.Equal(t, operations.StepStatusCompleted, s.Status, s.ID)
	}
	assert.Equal(t, []string{"extract", "transform", "map", "load", "verify", "export"}, ids)

	current := manager.Current()
	transform := current.GetStage(operations.StepIDTransform)
	require.NotNil(t, transform)
	assert.Equal(t, 1, transform.Metadata["dropped_rows"])
	assert.Equal(t, 3, transform.Metadata["with_profit"])
	assert.Equal(t, 2, transform.Metadata["with_roi"])
	assert.Equal(t, 2, transform.Metadata["with_release_date"])
	verify := current.GetStage(operations.StepIDVerify)
	assert.Equal(t, int64(3), verify.Metadata["total_films"])
	assert.Equal(t, 150.0, verify.Metadata["total_budget"])
	assert.Equal(t, 310.0, verify.Metadata["total_box_office"])

	db, err := conn.Connect(context.Background())
	require.NoError(t, err)

	var genres []warehouse.DimGenre
	require.NoError(t, db.Order("genre_key").Find(&genres).Error)
	// "drama" folds into the first-seen "Drama"
	assert.Equal(t, []warehouse.DimGenre{{GenreKey: 1, Name: "Drama"}, {GenreKey: 2, Name: "Comedy"}}, genres)

	var facts []warehouse.FactFilmPerformance
	require.NoError(t, db.Order("fact_key").Find(&facts).Error)
	require.Len(t, facts, 3)
	assert.Equal(t, 150.0, *facts[0].Profit)
	assert.Equal(t, 1.5, *facts[0].ROI)
	assert.Nil(t, facts[1].ROI)
	assert.Equal(t, 3, facts[0].OscarNominations)
	assert.Equal(t, 0, facts[1].OscarWins)
	assert.Nil(t, facts[2].TimeKey)
	assert.Nil(t, facts[2].StudioKey)

	for _, table := range warehouse.TableNames {
		assert.FileExists(t, filepath.Join(exportDir, table+".csv"))
	}
}

func TestPipeline_MissingBudgetFailsBeforeDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	connector := &countingConnector{inner: dbConnector{db: db}}

	header := make([]string, 0, len(filmHeader))
	for _, h := range filmHeader {
		if h != "Budget" {
			header = append(header, h)
		}
	}
	table := filmTable(header,
		[]string{"Film A", "250", "120", "Drama", "Acme", "USA", "English", "Jane Doe", "2020-05-01", "1", "3"})

	_, resp, err := runPipeline(t, operations.PipelineOptions{
		Source:    staticSource{table: table},
		Connector: connector,
	})
	require.Error(t, err)

	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchemaMismatch))
	assert.Equal(t, operations.StepIDTransform, operations.FailedStep(err))
	assert.Contains(t, err.Error(), "budget")
	assert.Equal(t, 0, connector.calls)
	assert.NoError(t, mock.ExpectationsWereMet())

	statuses := stepStatuses(resp)
	assert.Equal(t, operations.StepStatusSkipped, statuses[operations.StepIDLoad])
	assert.Equal(t, operations.StepStatusSkipped, statuses[operations.StepIDVerify])
}

func TestPipeline_SourceReadError(t *testing.T) {
	connector := &countingConnector{inner: sqliteConnection(t)}

	_, _, err := runPipeline(t, operations.PipelineOptions{
		Source:    staticSource{err: apperrors.NewSourceReadError("file not found", nil)},
		Connector: connector,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceRead))
	assert.Equal(t, apperrors.StageExtract, apperrors.StageOf(err))
	assert.Equal(t, 0, connector.calls)
}

func TestPipeline_ConnectionError(t *testing.T) {
	conn := warehouse.NewConnection(config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "no", "such", "dir", "w.db"),
	}, quietLogger())

	_, resp, err := runPipeline(t, operations.PipelineOptions{
		Source:    staticSource{table: sampleTable()},
		Connector: conn,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConnection))
	assert.Equal(t, operations.StepIDLoad, operations.FailedStep(err))
	assert.Equal(t, operations.StepStatusSkipped, stepStatuses(resp)[operations.StepIDVerify])
}

func TestPipeline_ExportResult(t *testing.T) {
	dir := t.TempDir()
	registry, err := operations.NewPipelineRegistry(operations.PipelineOptions{
		Source:    staticSource{table: sampleTable()},
		Connector: sqliteConnection(t),
		ExportDir: dir,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	assert.Contains(t, registry.IDs(), operations.StepIDExport)

	state := operations.NewOperationState("run")
	ordered, err := registry.Ordered()
	require.NoError(t, err)
	for _, step := range ordered {
		state.AddStage(operations.NewStepState(step.ID(), step.Name()))
		require.NoError(t, step.Validate(state), step.ID())
		require.NoError(t, step.Execute(context.Background(), state), step.ID())
	}

	v, ok := state.GetContext(operations.ContextKeyExport)
	require.True(t, ok)
	result := v.(*exporter.ExportResult)
	assert.Equal(t, dir, result.Dir)
	assert.Equal(t, 3, result.Rows[warehouse.TableFact])

	s, ok := state.GetContext(operations.ContextKeyLoadSummary)
	require.True(t, ok)
	assert.Equal(t, int64(3), s.(domain.LoadSummary).FactRows)
}

func TestNewPipelineRegistry_Errors(t *testing.T) {
	_, err := operations.NewPipelineRegistry(operations.PipelineOptions{})
	assert.Error(t, err)

	_, err = operations.NewPipelineRegistry(operations.PipelineOptions{Source: staticSource{}})
	assert.Error(t, err)

	registry, err := operations.NewPipelineRegistry(operations.PipelineOptions{
		Source:    staticSource{},
		Connector: dbConnector{},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		operations.StepIDExtract, operations.StepIDTransform, operations.StepIDMap,
		operations.StepIDLoad, operations.StepIDVerify,
	}, registry.IDs())
}

func TestStages_ValidateMissingInputs(t *testing.T) {
	state := operations.NewOperationState("run")
	options := &operations.StageOptions{Logger: quietLogger()}

	assert.Error(t, operations.NewTransformStage(nil, options).Validate(state))
	assert.Error(t, operations.NewMapStage(options).Validate(state))
	assert.Error(t, operations.NewLoadStage(dbConnector{}, 0, options).Validate(state))
	assert.Error(t, operations.NewLoadStage(nil, 0, options).Validate(state))
	assert.Error(t, operations.NewVerifyStage(options).Validate(state))
	assert.Error(t, operations.NewExportStage(t.TempDir(), nil).Validate(state))
	assert.Error(t, operations.NewExtractStage(nil, nil).Validate(state))

	state.SetContext(operations.ContextKeyRecords, "not records")
	err := operations.NewMapStage(options).Validate(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected type")
}
