package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AllanBico/atlas/internal/ports"
)

// NewRouter wires every route. stream may be nil when live events are disabled.
func NewRouter(h *Handler, stream http.Handler, logger ports.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	if stream != nil {
		r.Handle("/ws", stream).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/backtest-runs", h.ListBacktestRuns).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/backtests/{runId}", h.GetBacktest).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/backtests/{runId}/equity-curve", h.GetEquityCurve).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/backtests/{runId}/trades", h.ListTrades).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/optimizations", h.ListOptimizations).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/optimizations/{jobId}", h.GetOptimization).Methods(http.MethodGet, http.MethodOptions)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})

	// Apply middleware
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))
	r.Use(corsMiddleware)

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "atlas",
	})
}
