package app

import (
	"context"
	"errors"
	"log/slog"

	"filmdw/internal/config"
	"filmdw/internal/dataprocessing"
	apperrors "filmdw/internal/errors"
	"filmdw/internal/infrastructure"
	"filmdw/internal/operations"
	transport "filmdw/internal/transport/http"
	"filmdw/internal/warehouse"
	"filmdw/pkg/contracts"
)

// Application holds everything one pipeline run needs
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Connection    *warehouse.Connection
	Manager       *operations.Manager
	StatusServer  *transport.Server

	source  dataprocessing.Source
	stopped bool
}

// Option customises an Application before its services are built
type Option func(*options)

type options struct {
	source dataprocessing.Source
}

// WithSource replaces the source derived from the configuration
func WithSource(src dataprocessing.Source) Option {
	return func(o *options) { o.source = src }
}

// New initializes telemetry and the pipeline from cfg. Nothing touches the
// warehouse until Run reaches the load step.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.source == nil {
		o.source = dataprocessing.NewSource(cfg.Source)
	}

	a := &Application{Config: cfg, Logger: logger, source: o.source}
	if err := a.initializeServices(ctx); err != nil {
		_ = a.Stop(ctx)
		return nil, err
	}
	return a, nil
}

func (a *Application) initializeServices(ctx context.Context) error {
	providers, err := infrastructure.InitializeOTel(ctx, a.Config.Telemetry, a.Logger)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}
	a.OTelProviders = providers

	a.Connection = warehouse.NewConnection(a.Config.Database, a.Logger)

	registry, err := operations.NewPipelineRegistry(operations.PipelineOptions{
		Source:    a.source,
		Processor: dataprocessing.NewFilmProcessor(a.Logger),
		Connector: a.Connection,
		BatchSize: a.Config.Database.BatchSize,
		ExportDir: a.Config.Export.Dir,
		Logger:    a.Logger,
		Metrics:   providers.Metrics,
	})
	if err != nil {
		return apperrors.NewConfigError("failed to build pipeline", err)
	}

	a.Manager = operations.NewManager(registry, operations.NewConfig(),
		operations.NewOperationTracer(providers), a.Logger)

	if a.Config.Telemetry.StatusAddr != "" {
		a.StatusServer = transport.NewServer(a.Config.Telemetry.StatusAddr, transport.NewRouter(transport.RouterConfig{
			Source:  a.Manager,
			Metrics: providers.PrometheusHTTP,
			Tracer:  providers.Tracer,
			Logger:  a.Logger,
		}), a.Logger)
		if err := a.StatusServer.Start(ctx); err != nil {
			a.StatusServer = nil
			return apperrors.NewConfigError("failed to start status server", err)
		}
	}
	return nil
}

// Run executes the pipeline once under the run ID carried by ctx, if any.
// The error names the failed step; see operations.FailedStep.
func (a *Application) Run(ctx context.Context) (*operations.OperationResponse, error) {
	a.Logger.InfoContext(ctx, "ETL run started",
		slog.String("version", contracts.Version),
		slog.String("source", a.source.Describe()),
		slog.String("driver", a.Config.Database.Driver))

	resp, err := a.Manager.Execute(ctx, operations.OperationRequest{ID: infrastructure.RunID(ctx)})
	if err != nil {
		return resp, err
	}

	a.logSummary(ctx, resp)
	return resp, nil
}

// Stop shuts down the status server, closes the warehouse connection and
// flushes telemetry. It is safe to call more than once.
func (a *Application) Stop(ctx context.Context) error {
	if a.stopped {
		return nil
	}
	a.stopped = true
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if a.StatusServer != nil {
		if err := a.StatusServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Connection != nil && a.Connection.Opened() {
		if err := a.Connection.Close(); err != nil {
			errs = append(errs, err)
		} else {
			a.Logger.DebugContext(ctx, "Warehouse connection closed",
				slog.String("target", a.Config.Database.Redacted()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.WarnContext(ctx, "Application shutdown incomplete", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// logSummary reports the verified warehouse totals of a finished run
func (a *Application) logSummary(ctx context.Context, resp *operations.OperationResponse) {
	attrs := []any{
		slog.String("status", string(resp.Status)),
		slog.Duration("duration", resp.Duration),
	}
	for _, step := range resp.Steps {
		if step.ID != operations.StepIDVerify {
			continue
		}
		for _, k := range []string{"total_films", "total_budget", "total_box_office", "average_roi"} {
			if v, ok := step.Metadata[k]; ok {
				attrs = append(attrs, slog.Any(k, v))
			}
		}
	}
	a.Logger.InfoContext(ctx, "ETL run completed", attrs...)
}
