package ports

import (
	"context"

	"github.com/AllanBico/atlas/internal/domain"
)

// BacktestRecord bundles everything persisted for one run.
type BacktestRecord struct {
	Run    *domain.BacktestRun
	Report *domain.PerformanceReport
	Trades []domain.Trade
	Curve  []domain.EquityPoint
}

// BacktestRunRepository stores individual backtest runs with their ledgers and curves.
type BacktestRunRepository interface {
	// SaveBacktestRun persists the run, its report, trades and equity curve atomically
	// and returns the assigned run ID.
	SaveBacktestRun(ctx context.Context, rec *BacktestRecord) (int64, error)
	// ListBacktestRuns returns one page of runs, newest first, optionally filtered by job.
	ListBacktestRuns(ctx context.Context, page domain.PageRequest, jobID *int64) ([]domain.BacktestRunSummary, int64, error)
	// GetPerformanceReport returns the report of a run. Returns ErrNotFound if absent.
	GetPerformanceReport(ctx context.Context, runID int64) (*domain.PerformanceReport, error)
	// GetEquityCurve returns the run's curve in time order. Returns ErrNotFound if the run is absent.
	GetEquityCurve(ctx context.Context, runID int64) ([]domain.EquityPoint, error)
	// ListTrades returns one page of the run's trades in exit-time order.
	ListTrades(ctx context.Context, runID int64, page domain.PageRequest) ([]domain.Trade, int64, error)
}

// OptimizationRepository stores optimization jobs and their ranked summaries.
type OptimizationRepository interface {
	// CreateOptimizationJob saves a new job and returns its assigned ID.
	CreateOptimizationJob(ctx context.Context, job *domain.OptimizationJob) (int64, error)
	// CompleteOptimizationJob stores the summary as a single document and sets the final status.
	CompleteOptimizationJob(ctx context.Context, jobID int64, status domain.JobStatus, summary *domain.OptimizationSummary) error
	// ListOptimizationJobs returns one page of jobs, newest first.
	ListOptimizationJobs(ctx context.Context, page domain.PageRequest) ([]domain.OptimizationJob, int64, error)
	// GetOptimizationSummary returns the stored summary. Returns ErrNotFound if absent.
	GetOptimizationSummary(ctx context.Context, jobID int64) (*domain.OptimizationSummary, error)
}

// ReportStore is the full persistence port used by the application and the API.
type ReportStore interface {
	BacktestRunRepository
	OptimizationRepository
	Close() error
}
