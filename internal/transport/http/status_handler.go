package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"filmdw/internal/middleware"
	"filmdw/internal/operations"
	"filmdw/pkg/contracts"
)

// StatusSource exposes the run being executed.
type StatusSource interface {
	Current() *operations.OperationState
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status string                `json:"status"`
	Uptime string                `json:"uptime"`
	Build  contracts.VersionInfo `json:"build"`
}

// StatusHandler handles health and run status requests
type StatusHandler struct {
	source  StatusSource
	started time.Time
	logger  *slog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(source StatusSource, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{
		source:  source,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "status")),
	}
}

// Health handles GET /healthz
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
		Build:  contracts.GetVersionInfo(),
	})
}

// Status handles GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	var state *operations.OperationState
	if h.source != nil {
		state = h.source.Current()
	}
	if state == nil {
		h.logger.DebugContext(r.Context(), "Status requested before any run started")
		middleware.WriteProblem(w, middleware.ProblemFromStatus(http.StatusNotFound,
			"no pipeline run has started", middleware.GetReqID(r.Context())))
		return
	}
	render.JSON(w, r, state)
}
