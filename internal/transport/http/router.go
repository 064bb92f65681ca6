package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"filmdw/internal/middleware"
)

// RouterConfig collects what the status router serves
type RouterConfig struct {
	Source  StatusSource
	Metrics http.Handler
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// NewRouter builds the chi router for the status surface
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing(cfg.Tracer))
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))

	status := NewStatusHandler(cfg.Source, logger)
	r.Get("/healthz", status.Health)
	r.Get("/status", status.Status)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteProblem(w, middleware.ProblemFromStatus(http.StatusNotFound,
			"", middleware.GetReqID(r.Context())))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteProblem(w, middleware.ProblemFromStatus(http.StatusMethodNotAllowed,
			"", middleware.GetReqID(r.Context())))
	})
	return r
}
