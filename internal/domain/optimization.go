package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParameterSet maps a strategy parameter name to its value for one sweep point.
// Integer parameters are stored as whole floats.
type ParameterSet map[string]float64

// Clone returns an independent copy of the set.
func (p ParameterSet) Clone() ParameterSet {
	c := make(ParameterSet, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Int returns the named parameter rounded to an int, or def when absent.
func (p ParameterSet) Int(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	return int(math.Round(v))
}

// Float returns the named parameter or def when absent.
func (p ParameterSet) Float(name string, def float64) float64 {
	v, ok := p[name]
	if !ok {
		return def
	}
	return v
}

// String renders the set with keys in sorted order, e.g. "fast=10 slow=30".
func (p ParameterSet) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strconv.FormatFloat(p[k], 'f', -1, 64)))
	}
	return strings.Join(parts, " ")
}

// RankedRun is one entry of an optimization job's Top-N.
type RankedRun struct {
	Score      float64            `json:"score"`
	Parameters ParameterSet       `json:"parameters"`
	Report     *PerformanceReport `json:"report"`
	RunID      int64              `json:"run_id"`
	BacktestID *int64             `json:"backtest_id,omitempty"` // Persisted backtest run, when stored
}

type rankedRunJSON struct {
	Score      *float64           `json:"score"`
	Parameters ParameterSet       `json:"parameters"`
	Report     *PerformanceReport `json:"report"`
	RunID      int64              `json:"run_id"`
	BacktestID *int64             `json:"backtest_id,omitempty"`
}

// MarshalJSON writes non-finite scores as null.
func (r RankedRun) MarshalJSON() ([]byte, error) {
	out := rankedRunJSON{
		Parameters: r.Parameters,
		Report:     r.Report,
		RunID:      r.RunID,
		BacktestID: r.BacktestID,
	}
	if !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0) {
		out.Score = Float(r.Score)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null score back as NaN.
func (r *RankedRun) UnmarshalJSON(data []byte) error {
	var in rankedRunJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = RankedRun{
		Score:      math.NaN(),
		Parameters: in.Parameters,
		Report:     in.Report,
		RunID:      in.RunID,
		BacktestID: in.BacktestID,
	}
	if in.Score != nil {
		r.Score = *in.Score
	}
	return nil
}

// FailedRun records a sweep member that produced no report.
type FailedRun struct {
	RunID      int64        `json:"run_id"`
	Parameters ParameterSet `json:"parameters"`
	ErrorKind  string       `json:"error_kind"`
	Message    string       `json:"message"`
}

// OptimizationSummary is the persisted outcome of an optimization job.
type OptimizationSummary struct {
	JobID         int64       `json:"job_id"`
	CreatedAt     time.Time   `json:"created_at"`
	TopN          []RankedRun `json:"top_n"`
	Failed        []FailedRun `json:"failed,omitempty"`
	TotalRuns     int         `json:"total_runs"`
	CompletedRuns int         `json:"completed_runs"`
	Cancelled     bool        `json:"cancelled"`
}

// OptimizationJob describes a parameter sweep request and its lifecycle.
type OptimizationJob struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	StrategyName string    `json:"strategy_name"`
	Symbol       string    `json:"symbol"`
	Interval     string    `json:"interval"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Status       JobStatus `json:"status"`
	TotalRuns    int       `json:"total_runs"`
	CreatedAt    time.Time `json:"created_at"`
}

// BacktestRun is a stored backtest with its configuration.
type BacktestRun struct {
	ID           int64        `json:"id"`
	JobID        *int64       `json:"job_id"`
	StrategyName string       `json:"strategy_name"`
	Symbol       string       `json:"symbol"`
	Interval     string       `json:"interval"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Parameters   ParameterSet `json:"parameters"`
	CreatedAt    time.Time    `json:"created_at"`
}

// BacktestRunSummary is the list view of a stored run with its headline metrics.
type BacktestRunSummary struct {
	BacktestRun
	NetPnLPercentage      float64  `json:"net_pnl_percentage"`
	MaxDrawdownPercentage float64  `json:"max_drawdown_percentage"`
	SharpeRatio           *float64 `json:"sharpe_ratio"`
	WinRate               float64  `json:"win_rate"`
	TotalTrades           int      `json:"total_trades"`
}

// PageRequest selects one page of a listing. Page is 1-based.
type PageRequest struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip, saturating at math.MaxInt.
func (p PageRequest) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// Page is a paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalItems int64 `json:"total_items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
}
