package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AllanBico/atlas/config"
	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/risk"
	"github.com/AllanBico/atlas/internal/strategy/analytics"
	"github.com/AllanBico/atlas/internal/strategy/backtesting"
	"github.com/AllanBico/atlas/internal/strategy/optimization"
	"github.com/AllanBico/atlas/internal/strategy/strategies"
)

// finalizeTimeout bounds the job status write that follows a cancelled sweep.
const finalizeTimeout = 10 * time.Second

// BacktestRequest describes a single backtest. Empty fields fall back to the
// configured defaults.
type BacktestRequest struct {
	StrategyName      string
	Symbol            string
	Interval          string
	StartDate         time.Time
	EndDate           time.Time
	Parameters        domain.ParameterSet
	IncludeConfidence bool
}

// BacktestOutcome is the result of a stored backtest.
type BacktestOutcome struct {
	RunID      int64
	Report     *domain.PerformanceReport
	Executions int
}

// OptimizationRequest describes a parameter sweep.
type OptimizationRequest struct {
	Name         string
	StrategyName string
	Symbol       string
	Interval     string
	StartDate    time.Time
	EndDate      time.Time
	Ranges       []optimization.ParameterRange
	Fixed        domain.ParameterSet

	// Zero values use the configured optimizer settings.
	Workers     int
	TopN        int
	ScoreMetric string
	MinTrades   int
}

// JobService orchestrates backtests and optimization jobs: it loads market
// data, runs the backtester, computes metrics and persists the outcome.
type JobService struct {
	cfg    *config.Config
	logger ports.Logger
	data   ports.MarketDataSource
	store  ports.ReportStore
	events ports.EventPublisher
}

// NewJobService creates a new application service instance. events may be nil
// when nothing is streamed.
func NewJobService(
	cfg *config.Config,
	logger ports.Logger,
	data ports.MarketDataSource,
	store ports.ReportStore,
	events ports.EventPublisher,
) (*JobService, error) {
	if cfg == nil || logger == nil || data == nil || store == nil {
		return nil, fmt.Errorf("missing required dependencies for JobService: %w", ports.ErrInvalidConfiguration)
	}
	if !cfg.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("configuration InitialCapital must be positive: %w", ports.ErrInvalidConfiguration)
	}
	return &JobService{
		cfg:    cfg,
		logger: logger,
		data:   data,
		store:  store,
		events: events,
	}, nil
}

// RunBacktest executes one backtest, stores it and returns its report.
func (s *JobService) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestOutcome, error) {
	req = s.backtestDefaults(req)
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"strategy": req.StrategyName,
		"symbol":   req.Symbol,
		"interval": req.Interval,
		"params":   req.Parameters.String(),
	}
	s.logger.Info(ctx, "Starting backtest", fields)
	s.publishLog("INFO", fmt.Sprintf("backtest %s %s %s started", req.StrategyName, req.Symbol, req.Interval))

	bt, err := s.newBacktester(ctx, req.StrategyName, req.Symbol, req.Interval, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		bt.SetEventPublisher(s.events)
	}

	strat, err := strategies.New(req.StrategyName, req.Parameters, s.logger)
	if err != nil {
		return nil, err
	}
	res, err := bt.RunWithParams(ctx, strat, req.Parameters)
	if err != nil {
		s.logger.Error(ctx, err, "Backtest failed", fields)
		s.publishLog("ERROR", fmt.Sprintf("backtest failed: %v", err))
		return nil, err
	}

	report, err := analytics.CalculatePerformance(res.Ledger, res.Curve, s.runMetadata(req.Symbol, req.Interval, req.IncludeConfidence))
	if err != nil {
		return nil, err
	}

	runID, err := s.store.SaveBacktestRun(ctx, &ports.BacktestRecord{
		Run: &domain.BacktestRun{
			StrategyName: req.StrategyName,
			Symbol:       req.Symbol,
			Interval:     req.Interval,
			StartDate:    req.StartDate,
			EndDate:      req.EndDate,
			Parameters:   req.Parameters,
		},
		Report: report,
		Trades: res.Ledger.Trades(),
		Curve:  res.Curve.Points(),
	})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to store backtest run", fields)
		return nil, fmt.Errorf("store backtest run: %w", err)
	}
	report.RunID = runID

	fields["run_id"] = runID
	fields["trades"] = report.TotalTrades
	fields["net_pnl_pct"] = report.NetPnLPercentage
	s.logger.Info(ctx, "Backtest finished", fields)
	s.publishLog("INFO", fmt.Sprintf("backtest %d finished: %d trades, net %.2f%%", runID, report.TotalTrades, report.NetPnLPercentage))

	return &BacktestOutcome{RunID: runID, Report: report, Executions: len(res.Executions)}, nil
}

// RunOptimization expands the grid, runs every point on the worker pool, stores
// each successful run under the job and finally stores the ranked summary.
// A cancelled sweep still stores its partial summary with status cancelled.
func (s *JobService) RunOptimization(ctx context.Context, req OptimizationRequest) (*domain.OptimizationSummary, error) {
	req = s.optimizationDefaults(req)
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	grid := optimization.Grid{Ranges: req.Ranges, Fixed: req.Fixed}
	if req.StrategyName == strategies.MACrossoverName {
		grid.Constraints = append(grid.Constraints, optimization.LessThan(strategies.ParamFastPeriod, strategies.ParamSlowPeriod))
	}
	points, err := optimization.ExpandGrid(grid)
	if err != nil {
		return nil, err
	}

	score, err := optimization.ScorerByName(req.ScoreMetric)
	if err != nil {
		return nil, err
	}

	bt, err := s.newBacktester(ctx, req.StrategyName, req.Symbol, req.Interval, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	jobID, err := s.store.CreateOptimizationJob(ctx, &domain.OptimizationJob{
		Name:         req.Name,
		StrategyName: req.StrategyName,
		Symbol:       req.Symbol,
		Interval:     req.Interval,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Status:       domain.JobStatusRunning,
		TotalRuns:    len(points),
	})
	if err != nil {
		return nil, fmt.Errorf("create optimization job: %w", err)
	}

	fields := map[string]interface{}{
		"job_id":   jobID,
		"name":     req.Name,
		"strategy": req.StrategyName,
		"runs":     len(points),
		"score":    req.ScoreMetric,
	}
	s.logger.Info(ctx, "Starting optimization job", fields)
	s.publishLog("INFO", fmt.Sprintf("optimization job %d started: %d runs", jobID, len(points)))

	coordinator, err := optimization.NewCoordinator(bt, optimization.SweepConfig{
		Workers:  req.Workers,
		Metadata: s.runMetadata(req.Symbol, req.Interval, false),
		Ranker: optimization.RankerConfig{
			TopN:      req.TopN,
			Score:     score,
			MinTrades: req.MinTrades,
		},
		OnRunComplete: s.storeSweepRun(jobID, req),
	}, s.logger)
	if err != nil {
		s.finishJob(ctx, jobID, domain.JobStatusFailed, nil)
		return nil, err
	}

	summary, runErr := coordinator.Run(ctx, points)
	status := domain.JobStatusCompleted
	switch {
	case runErr != nil && errors.Is(runErr, ports.ErrContextCanceled):
		status = domain.JobStatusCancelled
	case runErr != nil:
		status = domain.JobStatusFailed
	}
	if summary != nil {
		summary.JobID = jobID
	}

	if err := s.finishJob(ctx, jobID, status, summary); err != nil && runErr == nil {
		return summary, err
	}

	fields["status"] = string(status)
	if summary != nil {
		fields["completed"] = summary.CompletedRuns
		fields["failed"] = len(summary.Failed)
	}
	if runErr != nil {
		s.logger.Warn(ctx, "Optimization job stopped early", fields)
		s.publishLog("WARN", fmt.Sprintf("optimization job %d %s", jobID, status))
		return summary, runErr
	}
	s.logger.Info(ctx, "Optimization job finished", fields)
	s.publishLog("INFO", fmt.Sprintf("optimization job %d completed: %d of %d runs", jobID, summary.CompletedRuns, summary.TotalRuns))
	return summary, nil
}

// storeSweepRun persists every completed sweep member under the job.
func (s *JobService) storeSweepRun(jobID int64, req OptimizationRequest) optimization.RunHook {
	return func(ctx context.Context, run *optimization.CompletedRun) (int64, error) {
		job := jobID
		return s.store.SaveBacktestRun(ctx, &ports.BacktestRecord{
			Run: &domain.BacktestRun{
				JobID:        &job,
				StrategyName: req.StrategyName,
				Symbol:       req.Symbol,
				Interval:     req.Interval,
				StartDate:    req.StartDate,
				EndDate:      req.EndDate,
				Parameters:   run.Parameters,
			},
			Report: run.Report,
			Trades: run.Ledger.Trades(),
			Curve:  run.Curve.Points(),
		})
	}
}

// finishJob records the final status. It survives cancellation of ctx so a
// cancelled sweep still leaves a consistent job row.
func (s *JobService) finishJob(ctx context.Context, jobID int64, status domain.JobStatus, summary *domain.OptimizationSummary) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := s.store.CompleteOptimizationJob(writeCtx, jobID, status, summary); err != nil {
		s.logger.Error(ctx, err, "Failed to finalize optimization job", map[string]interface{}{
			"job_id": jobID,
			"status": string(status),
		})
		return fmt.Errorf("complete optimization job %d: %w", jobID, err)
	}
	return nil
}

func (s *JobService) newBacktester(ctx context.Context, strategyName, symbol, interval string, start, end time.Time) (*backtesting.Backtester, error) {
	klines, err := s.data.GetKlinesRange(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("load klines: %w", err)
	}
	funding, err := s.data.GetFundingRates(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load funding rates: %w", err)
	}
	s.logger.Debug(ctx, "Loaded market data", map[string]interface{}{
		"symbol":  symbol,
		"klines":  len(klines),
		"funding": len(funding),
	})

	return backtesting.NewBacktester(backtesting.BacktestConfig{
		Symbol:         symbol,
		Interval:       interval,
		StrategyName:   strategyName,
		InitialCapital: s.cfg.InitialCapital,
		TakerFee:       s.cfg.TakerFee,
		Slippage:       s.cfg.Slippage,
		Risk: risk.RiskConfig{
			RiskPerTrade:    s.cfg.RiskPerTrade,
			StopLossPercent: s.cfg.StopLoss,
			MinConfidence:   s.cfg.MinConfidence,
			Leverage:        s.cfg.Leverage,
		},
	}, klines, funding, s.logger)
}

func (s *JobService) runMetadata(symbol, interval string, includeConfidence bool) analytics.RunMetadata {
	return analytics.RunMetadata{
		InitialCapital:    s.cfg.InitialCapital,
		Symbol:            symbol,
		Interval:          interval,
		IncludeConfidence: includeConfidence,
		MarginBasis:       s.cfg.MarginBasis,
	}
}

func (s *JobService) backtestDefaults(req BacktestRequest) BacktestRequest {
	if req.StrategyName == "" {
		req.StrategyName = strategies.MACrossoverName
	}
	if req.Symbol == "" {
		req.Symbol = s.cfg.Symbol
	}
	if req.Interval == "" {
		req.Interval = s.cfg.Interval
	}
	if req.Parameters == nil {
		req.Parameters = domain.ParameterSet{}
	}
	return req
}

func (s *JobService) optimizationDefaults(req OptimizationRequest) OptimizationRequest {
	if req.StrategyName == "" {
		req.StrategyName = strategies.MACrossoverName
	}
	if req.Symbol == "" {
		req.Symbol = s.cfg.Symbol
	}
	if req.Interval == "" {
		req.Interval = s.cfg.Interval
	}
	if req.Name == "" {
		req.Name = fmt.Sprintf("%s %s %s", req.StrategyName, req.Symbol, req.Interval)
	}
	if req.Workers <= 0 {
		req.Workers = s.cfg.OptimizerWorkers
	}
	if req.TopN <= 0 {
		req.TopN = s.cfg.TopN
	}
	if req.ScoreMetric == "" {
		req.ScoreMetric = s.cfg.ScoreMetric
	}
	if req.MinTrades <= 0 {
		req.MinTrades = s.cfg.MinTrades
	}
	return req
}

func (s *JobService) publishLog(level, message string) {
	if s.events != nil {
		s.events.PublishLog(level, message)
	}
}

func validateWindow(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end %s is before start %s: %w",
			end.Format(time.RFC3339), start.Format(time.RFC3339), ports.ErrInvalidRequest)
	}
	return nil
}
