package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 500
	maxPage         = 1_000_000
)

// Handler serves the read-only report API.
type Handler struct {
	store  ports.ReportStore
	logger ports.Logger
}

// NewHandler creates a new report handler.
func NewHandler(store ports.ReportStore, logger ports.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// ListBacktestRuns returns stored runs, optionally filtered by optimization job.
// GET /api/backtest-runs?page=1&pageSize=50&job_id=3
func (h *Handler) ListBacktestRuns(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var jobID *int64
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job_id %q", raw))
			return
		}
		jobID = &id
	}

	runs, total, err := h.store.ListBacktestRuns(r.Context(), page, jobID)
	if err != nil {
		h.fail(w, r, err, "list backtest runs")
		return
	}
	writeJSON(w, http.StatusOK, domain.Page[domain.BacktestRunSummary]{
		Items: runs, TotalItems: total, Page: page.Page, PageSize: page.PageSize,
	})
}

// GetBacktest returns the performance report of one run.
// GET /api/backtests/{runId}
func (h *Handler) GetBacktest(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "runId")
	if !ok {
		return
	}
	report, err := h.store.GetPerformanceReport(r.Context(), runID)
	if err != nil {
		h.fail(w, r, err, "get performance report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetEquityCurve returns the run's equity samples.
// GET /api/backtests/{runId}/equity-curve
func (h *Handler) GetEquityCurve(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "runId")
	if !ok {
		return
	}
	curve, err := h.store.GetEquityCurve(r.Context(), runID)
	if err != nil {
		h.fail(w, r, err, "get equity curve")
		return
	}
	writeJSON(w, http.StatusOK, curve)
}

// ListTrades returns one page of the run's trades.
// GET /api/backtests/{runId}/trades?page=1&pageSize=50
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "runId")
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trades, total, err := h.store.ListTrades(r.Context(), runID, page)
	if err != nil {
		h.fail(w, r, err, "list trades")
		return
	}
	writeJSON(w, http.StatusOK, domain.Page[domain.Trade]{
		Items: trades, TotalItems: total, Page: page.Page, PageSize: page.PageSize,
	})
}

// ListOptimizations returns one page of optimization jobs.
// GET /api/optimizations?page=1&pageSize=50
func (h *Handler) ListOptimizations(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, total, err := h.store.ListOptimizationJobs(r.Context(), page)
	if err != nil {
		h.fail(w, r, err, "list optimization jobs")
		return
	}
	writeJSON(w, http.StatusOK, domain.Page[domain.OptimizationJob]{
		Items: jobs, TotalItems: total, Page: page.Page, PageSize: page.PageSize,
	})
}

// GetOptimization returns the ranked Top-N of a finished job.
// GET /api/optimizations/{jobId}
func (h *Handler) GetOptimization(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r, "jobId")
	if !ok {
		return
	}
	summary, err := h.store.GetOptimizationSummary(r.Context(), jobID)
	if err != nil {
		h.fail(w, r, err, "get optimization summary")
		return
	}
	top := summary.TopN
	if top == nil {
		top = []domain.RankedRun{}
	}
	writeJSON(w, http.StatusOK, top)
}

// fail maps store errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ports.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(r.Context(), err, "API request failed", map[string]interface{}{"operation": op, "path": r.URL.Path})
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, raw))
		return 0, false
	}
	return id, true
}

// parsePage reads page and pageSize (page_size is accepted too). Sizes above the maximum are clamped.
func parsePage(r *http.Request) (domain.PageRequest, error) {
	q := r.URL.Query()
	page := domain.PageRequest{Page: defaultPage, PageSize: defaultPageSize}

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxPage {
			return page, fmt.Errorf("invalid page %q", raw)
		}
		page.Page = v
	}

	raw := q.Get("pageSize")
	if raw == "" {
		raw = q.Get("page_size")
	}
	if raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return page, fmt.Errorf("invalid pageSize %q", raw)
		}
		if v > maxPageSize {
			v = maxPageSize
		}
		page.PageSize = v
	}
	return page, nil
}
