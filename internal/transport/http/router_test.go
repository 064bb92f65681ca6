package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmdw/internal/middleware"
	"filmdw/internal/operations"
	"filmdw/pkg/contracts"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedSource struct {
	state *operations.OperationState
}

func (s fixedSource) Current() *operations.OperationState {
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

func runningState() *operations.OperationState {
	state := operations.NewOperationState("run-42")
	state.Start()

	extract := operations.NewStepState(operations.StepIDExtract, operations.StepNameExtract)
	extract.Start()
	extract.SetMetadata("rows", 4)
	extract.Complete()
	state.AddStage(extract)

	clean := operations.NewStepState(operations.StepIDTransform, operations.StepNameTransform)
	clean.Start()
	clean.Fail(errors.New("missing column Budget"))
	state.AddStage(clean)
	state.Fail(errors.New("missing column Budget"))
	return state
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

// decodeProblem reads exactly one problem document from the response body.
func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) middleware.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	dec := json.NewDecoder(rec.Body)
	var p middleware.Problem
	require.NoError(t, dec.Decode(&p))
	assert.False(t, dec.More(), "body holds more than one document")
	return p
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(RouterConfig{Logger: quietLogger()})

	rec := serve(t, router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, contracts.Version, body.Build.Version)
	assert.Equal(t, contracts.WarehouseSchemaVersion, body.Build.Schema)
}

func TestRouter_Status(t *testing.T) {
	tests := []struct {
		name       string
		source     StatusSource
		wantCode   int
		wantStatus string
	}{
		{name: "no source", source: nil, wantCode: http.StatusNotFound},
		{name: "no run yet", source: fixedSource{}, wantCode: http.StatusNotFound},
		{name: "failed run", source: fixedSource{state: runningState()}, wantCode: http.StatusOK, wantStatus: "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(RouterConfig{Source: tt.source, Logger: quietLogger()})
			rec := serve(t, router, http.MethodGet, "/status")
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				p := decodeProblem(t, rec)
				assert.Equal(t, "/errors/not-found", p.Type)
				assert.Equal(t, http.StatusNotFound, p.Status)
				assert.Equal(t, rec.Header().Get("X-Request-ID"), p.Trace)
				return
			}

			var body struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Error  string `json:"error"`
				Steps  []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Error  string `json:"error"`
				} `json:"steps"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "run-42", body.ID)
			assert.Equal(t, tt.wantStatus, body.Status)
			require.Len(t, body.Steps, 2)
			assert.Equal(t, "completed", body.Steps[0].Status)
			assert.Equal(t, "failed", body.Steps[1].Status)
			assert.Contains(t, body.Steps[1].Error, "Budget")
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	without := NewRouter(RouterConfig{Logger: quietLogger()})
	assert.Equal(t, http.StatusNotFound, serve(t, without, http.MethodGet, "/metrics").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "etl_runs_total 1\n")
	})
	with := NewRouter(RouterConfig{Metrics: metrics, Logger: quietLogger()})
	rec := serve(t, with, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "etl_runs_total")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter(RouterConfig{Logger: quietLogger()})
	rec := serve(t, router, http.MethodPost, "/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "/errors/method-not-allowed", decodeProblem(t, rec).Type)
}

func TestRouter_NotFound(t *testing.T) {
	router := NewRouter(RouterConfig{Logger: quietLogger()})
	rec := serve(t, router, http.MethodGet, "/cubes")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	p := decodeProblem(t, rec)
	assert.Equal(t, "Not Found", p.Title)
}

func TestServer_StartShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewRouter(RouterConfig{
		Source: fixedSource{state: runningState()},
		Logger: quietLogger(),
	}), quietLogger())

	assert.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Start(context.Background()))

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))

	_, err = http.Get("http://" + srv.Addr() + "/healthz")
	assert.Error(t, err)
}

func TestServer_StartBindError(t *testing.T) {
	first := NewServer("127.0.0.1:0", http.NotFoundHandler(), quietLogger())
	require.NoError(t, first.Start(context.Background()))
	defer first.Shutdown(context.Background())

	second := NewServer(first.Addr(), http.NotFoundHandler(), quietLogger())
	assert.Error(t, second.Start(context.Background()))
}
