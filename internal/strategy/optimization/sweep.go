package optimization

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/strategy/analytics"
)

// Executor runs one backtest for a parameter set. Implementations must observe
// ctx and return promptly once it is cancelled.
type Executor interface {
	Execute(ctx context.Context, params domain.ParameterSet) (*analytics.TradeLedger, *analytics.EquityCurve, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, params domain.ParameterSet) (*analytics.TradeLedger, *analytics.EquityCurve, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, params domain.ParameterSet) (*analytics.TradeLedger, *analytics.EquityCurve, error) {
	return f(ctx, params)
}

// CompletedRun is handed to the OnRunComplete hook after metrics are computed.
type CompletedRun struct {
	RunID      int64
	Parameters domain.ParameterSet
	Ledger     *analytics.TradeLedger
	Curve      *analytics.EquityCurve
	Report     *domain.PerformanceReport
}

// RunHook is called from the worker for every successful run. The returned id,
// when positive, is recorded as the run's persisted backtest id. An error marks
// the run failed.
type RunHook func(ctx context.Context, run *CompletedRun) (int64, error)

// SweepConfig holds configuration for the sweep coordinator
type SweepConfig struct {
	Workers       int
	Metadata      analytics.RunMetadata
	Ranker        RankerConfig
	OnRunComplete RunHook
}

// Coordinator fans a parameter grid out to a bounded worker pool and folds the
// results into a deterministic ranking.
type Coordinator struct {
	executor Executor
	ranker   *Ranker
	workers  int
	meta     analytics.RunMetadata
	hook     RunHook
	logger   ports.Logger
}

// NewCoordinator creates a sweep coordinator.
func NewCoordinator(executor Executor, cfg SweepConfig, logger ports.Logger) (*Coordinator, error) {
	if executor == nil {
		return nil, fmt.Errorf("sweep executor is required: %w", ports.ErrInvalidConfiguration)
	}
	if !cfg.Metadata.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("initial capital %s must be positive: %w", cfg.Metadata.InitialCapital, ports.ErrInvalidConfiguration)
	}
	ranker, err := NewRanker(cfg.Ranker)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Coordinator{
		executor: executor,
		ranker:   ranker,
		workers:  workers,
		meta:     cfg.Metadata,
		hook:     cfg.OnRunComplete,
		logger:   logger,
	}, nil
}

// Run executes every grid point and returns the summary. On cancellation the
// summary of the runs completed so far is returned with Cancelled set, together
// with an error wrapping ports.ErrContextCanceled.
func (c *Coordinator) Run(ctx context.Context, points []GridPoint) (*domain.OptimizationSummary, error) {
	startTime := time.Now()
	workers := c.workers
	if workers > len(points) {
		workers = len(points)
	}
	if workers < 1 {
		workers = 1
	}

	c.logger.Info(ctx, "Starting optimization sweep", map[string]interface{}{
		"runs":    len(points),
		"workers": workers,
	})

	jobs := make(chan GridPoint)
	parts := make([]*partial, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		p := c.ranker.newPartial()
		parts[w] = p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for point := range jobs {
				p.add(c.runOne(ctx, point))
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, point := range points {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- point:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	merged := mergePartials(parts)
	summary := &domain.OptimizationSummary{
		CreatedAt:     time.Now().UTC(),
		TopN:          merged.top.Ranked(),
		Failed:        merged.sortedFailures(),
		TotalRuns:     len(points),
		CompletedRuns: merged.completed,
	}

	fields := map[string]interface{}{
		"dispatched": dispatched,
		"completed":  summary.CompletedRuns,
		"failed":     len(summary.Failed),
		"filtered":   merged.filtered,
		"duration":   time.Since(startTime).String(),
	}
	// A context cancelled after the last run finished leaves a complete sweep.
	if err := ctx.Err(); err != nil && summary.CompletedRuns < summary.TotalRuns {
		summary.Cancelled = true
		c.logger.Warn(ctx, "Optimization sweep cancelled", fields)
		return summary, fmt.Errorf("sweep stopped after %d of %d runs: %v: %w",
			summary.CompletedRuns, summary.TotalRuns, err, ports.ErrContextCanceled)
	}
	c.logger.Info(ctx, "Optimization sweep finished", fields)
	return summary, nil
}

// runOne executes a single grid point. Panics are recovered and reported as run failures.
func (c *Coordinator) runOne(ctx context.Context, point GridPoint) (res RunResult) {
	res = RunResult{RunID: point.RunID, Parameters: point.Parameters}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, fmt.Errorf("%v", r), "Recovered panic in sweep run", map[string]interface{}{
				"run_id": point.RunID,
				"params": point.Parameters.String(),
				"stack":  string(debug.Stack()),
			})
			res.Report = nil
			res.BacktestID = nil
			res.Err = fmt.Errorf("run %d panicked: %v: %w", point.RunID, r, ports.ErrRunFailure)
		}
	}()

	if ctx.Err() != nil {
		res.abandoned = true
		return res
	}

	ledger, curve, err := c.executor.Execute(ctx, point.Parameters.Clone())
	if err != nil {
		if ctx.Err() != nil {
			res.abandoned = true
			return res
		}
		res.Err = fmt.Errorf("run %d: %w", point.RunID, err)
		c.logger.Warn(ctx, "Sweep run failed", map[string]interface{}{
			"run_id": point.RunID,
			"params": point.Parameters.String(),
			"error":  err.Error(),
		})
		return res
	}

	report, err := analytics.CalculatePerformance(ledger, curve, c.meta)
	if err != nil {
		res.Err = fmt.Errorf("run %d metrics: %w", point.RunID, err)
		return res
	}
	report.RunID = point.RunID

	if c.hook != nil {
		id, err := c.hook(ctx, &CompletedRun{
			RunID:      point.RunID,
			Parameters: point.Parameters.Clone(),
			Ledger:     ledger,
			Curve:      curve,
			Report:     report,
		})
		if err != nil {
			if ctx.Err() != nil {
				res.abandoned = true
				return res
			}
			res.Err = fmt.Errorf("run %d completion hook: %w", point.RunID, err)
			return res
		}
		if id > 0 {
			res.BacktestID = &id
		}
	}

	res.Report = report
	return res
}
