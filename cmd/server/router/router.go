// Package router configures the HTTP routes of the dtsociety server.
//
// Routes configured:
//   - GET    /healthz                       - Health check (pings the storage backend)
//   - GET    /metrics                       - Prometheus metrics
//   - GET    /datasets                      - Column options of every dataset in the session
//   - POST   /datasets/import               - Download and store a dataset
//   - POST   /datasets/{id}/reshape         - Store the long-format form of a dataset
//   - DELETE /datasets/{id}                 - Delete a dataset
//   - POST   /forecast/multivariate/{model} - VAR or HWES forecast for one country
//   - POST   /forecast/scenario             - Scenario-conditioned regression
//   - POST   /forecast/map/{model}          - Per-country forecasts
//   - POST   /graph/heatmap                 - Feature correlation heatmap
//   - POST   /graph/statistics              - Descriptive statistics
//
// Dataset and forecast routes are scoped to the session named by the
// X-Session-ID header; issuing sessions is left to the deployment.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/httpx"
	"github.com/HatiCode/dtsociety/pkg/pipeline"
	"github.com/HatiCode/dtsociety/pkg/response"
	"github.com/HatiCode/dtsociety/pkg/storage"
	"github.com/HatiCode/dtsociety/pkg/summary"
)

// SessionHeader carries the caller's session id.
const SessionHeader = "X-Session-ID"

const maxBodyBytes = 1 << 20

// Service is the pipeline surface served over HTTP.
type Service interface {
	Options(ctx context.Context, session string) ([]pipeline.DatasetOptions, error)
	Import(ctx context.Context, session string, req pipeline.ImportRequest) (storage.Dataset, error)
	Reshape(ctx context.Context, session, id string, req pipeline.ReshapeRequest) (storage.Dataset, error)
	Delete(ctx context.Context, session, id string) error
	Multivariate(ctx context.Context, session, model string, req pipeline.ForecastRequest) (response.Group, error)
	Scenario(ctx context.Context, session string, req pipeline.ScenarioRequest) (map[string]any, error)
	Map(ctx context.Context, session, model string, req pipeline.ForecastRequest) (map[string]any, error)
	Heatmap(ctx context.Context, session string, req pipeline.AnalysisRequest) (response.Heatmap, error)
	Statistics(ctx context.Context, session string, req pipeline.AnalysisRequest) ([]summary.Description, error)
}

// DatasetSummary describes a stored dataset without its rows.
type DatasetSummary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	State     storage.State `json:"state"`
	GeoColumn string        `json:"geoColumn,omitempty"`
	Columns   []string      `json:"columns"`
	Rows      int           `json:"rows"`
	CreatedAt string        `json:"createdAt"`
}

func summarize(ds storage.Dataset) DatasetSummary {
	return DatasetSummary{
		ID:        ds.ID,
		Name:      ds.Name,
		State:     ds.State,
		GeoColumn: ds.GeoColumn,
		Columns:   ds.Table.Columns,
		Rows:      ds.Table.Len(),
		CreatedAt: ds.CreatedAt.Format(time.RFC3339),
	}
}

// SetupRoutes configures the HTTP endpoints. health backs /healthz and may
// be nil. Every request is processed within timeout.
func SetupRoutes(svc Service, health func(ctx context.Context) error, timeout time.Duration, logger *slog.Logger) http.Handler {
	h := &handlers{svc: svc, timeout: timeout, logger: logger}
	mux := http.NewServeMux()

	if health == nil {
		mux.Handle("GET /healthz", httpx.HealthHandler())
	} else {
		mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(health))
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /datasets", h.listDatasets)
	mux.HandleFunc("POST /datasets/import", h.importDataset)
	mux.HandleFunc("POST /datasets/{id}/reshape", h.reshapeDataset)
	mux.HandleFunc("DELETE /datasets/{id}", h.deleteDataset)

	mux.HandleFunc("POST /forecast/multivariate/{model}", h.multivariate)
	mux.HandleFunc("POST /forecast/scenario", h.scenario)
	mux.HandleFunc("POST /forecast/map/{model}", h.forecastMap)

	mux.HandleFunc("POST /graph/heatmap", h.heatmap)
	mux.HandleFunc("POST /graph/statistics", h.statistics)

	return httpx.RecoveryMiddleware(logger)(httpx.LoggingMiddleware(logger)(mux))
}

type handlers struct {
	svc     Service
	timeout time.Duration
	logger  *slog.Logger
}

// begin extracts the session and bounds the request context.
func (h *handlers) begin(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, string, bool) {
	session := r.Header.Get(SessionHeader)
	if session == "" {
		httpx.WriteDomainError(w, h.logger, errs.Unauthorized("missing "+SessionHeader+" header"))
		return nil, nil, "", false
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	return ctx, cancel, session, true
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		httpx.WriteDomainError(w, h.logger, errs.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *handlers) reply(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	if err := httpx.WriteJSON(w, status, v); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *handlers) listDatasets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	opts, err := h.svc.Options(ctx, session)
	h.reply(w, http.StatusOK, map[string]any{"datasets": opts}, err)
}

func (h *handlers) importDataset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req pipeline.ImportRequest
	if !h.decode(w, r, &req) {
		return
	}
	ds, err := h.svc.Import(ctx, session, req)
	if err != nil {
		h.reply(w, 0, nil, err)
		return
	}
	h.reply(w, http.StatusCreated, summarize(ds), nil)
}

func (h *handlers) reshapeDataset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req pipeline.ReshapeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ds, err := h.svc.Reshape(ctx, session, r.PathValue("id"), req)
	if err != nil {
		h.reply(w, 0, nil, err)
		return
	}
	h.reply(w, http.StatusOK, summarize(ds), nil)
}

func (h *handlers) deleteDataset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.svc.Delete(ctx, session, r.PathValue("id")); err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) multivariate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req pipeline.ForecastRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Multivariate(ctx, session, r.PathValue("model"), req)
	h.reply(w, http.StatusOK, out, err)
}

func (h *handlers) scenario(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req pipeline.ScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Scenario(ctx, session, req)
	h.reply(w, http.StatusOK, out, err)
}

func (h *handlers) forecastMap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req pipeline.ForecastRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Map(ctx, session, r.PathValue("model"), req)
	h.reply(w, http.StatusOK, out, err)
}

func (h *handlers) heatmap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req pipeline.AnalysisRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Heatmap(ctx, session, req)
	h.reply(w, http.StatusOK, out, err)
}

func (h *handlers) statistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, session, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req pipeline.AnalysisRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Statistics(ctx, session, req)
	h.reply(w, http.StatusOK, map[string]any{"statistics": out}, err)
}
