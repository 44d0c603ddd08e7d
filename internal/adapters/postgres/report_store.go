package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// ReportStore implements ports.ReportStore using PostgreSQL.
type ReportStore struct {
	pool   *Pool
	logger ports.Logger
}

// NewReportStore creates a new ReportStore.
func NewReportStore(pool *Pool, logger ports.Logger) *ReportStore {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &ReportStore{pool: pool, logger: logger}
}

// Compile-time interface check.
var _ ports.ReportStore = (*ReportStore)(nil)

// Close closes the connection pool.
func (s *ReportStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveBacktestRun inserts the run row, then its trades and equity points in one batch, inside a transaction.
func (s *ReportStore) SaveBacktestRun(ctx context.Context, rec *ports.BacktestRecord) (int64, error) {
	if rec == nil || rec.Run == nil || rec.Report == nil {
		return 0, fmt.Errorf("%w: backtest record requires a run and a report", ports.ErrInvalidRequest)
	}
	run := rec.Run
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return 0, fmt.Errorf("encode parameters: %w", err)
	}
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %v", ports.ErrDBConnection, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO backtest_runs (
			job_id, strategy_name, symbol, kline_interval, start_date, end_date, parameters, created_at,
			net_pnl_percentage, max_drawdown_percentage, sharpe_ratio, win_rate, total_trades, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	var id int64
	err = tx.QueryRow(ctx, query,
		run.JobID, run.StrategyName, run.Symbol, run.Interval, run.StartDate, run.EndDate, params, run.CreatedAt,
		rec.Report.NetPnLPercentage, rec.Report.MaxDrawdownPercentage, rec.Report.SharpeRatio,
		rec.Report.WinRate, rec.Report.TotalTrades, report,
	).Scan(&id)
	if err != nil {
		if isForeignKeyError(err) {
			return 0, fmt.Errorf("%w: unknown optimization job", ports.ErrInvalidRequest)
		}
		return 0, fmt.Errorf("%w: insert backtest run: %v", ports.ErrQueryFailed, err)
	}

	batch := &pgx.Batch{}
	for i, t := range rec.Trades {
		var reason *string
		if t.CloseReason != "" {
			r := string(t.CloseReason)
			reason = &r
		}
		batch.Queue(`
			INSERT INTO backtest_trades (
				run_id, seq, symbol, side, entry_time, exit_time, entry_price, exit_price,
				quantity, pnl, fees, signal_confidence, leverage, close_reason
			) VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric,
				$9::text::numeric, $10::text::numeric, $11::text::numeric, $12, $13, $14)`,
			id, i, t.Symbol, string(t.Side), t.EntryTime, t.ExitTime, t.EntryPrice.String(), t.ExitPrice.String(),
			t.Quantity.String(), t.PnL.String(), t.Fees.String(), t.SignalConfidence, t.Leverage, reason,
		)
	}
	for i, p := range rec.Curve {
		batch.Queue(`INSERT INTO equity_points (run_id, seq, timestamp, value) VALUES ($1, $2, $3, $4::text::numeric)`,
			id, i, p.Timestamp, p.Value.String())
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("%w: insert ledger/curve of run %d: %v", ports.ErrQueryFailed, id, err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("%w: close batch: %v", ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit backtest run: %v", ports.ErrQueryFailed, err)
	}
	run.ID = id
	s.logger.Debug(ctx, "Backtest run saved", map[string]interface{}{
		"runID": id, "symbol": run.Symbol, "trades": len(rec.Trades), "points": len(rec.Curve),
	})
	return id, nil
}

// ListBacktestRuns returns one page of runs, newest first, optionally filtered by job.
func (s *ReportStore) ListBacktestRuns(ctx context.Context, page domain.PageRequest, jobID *int64) ([]domain.BacktestRunSummary, int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM backtest_runs WHERE ($1::bigint IS NULL OR job_id = $1)`, jobID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: count backtest runs: %v", ports.ErrQueryFailed, err)
	}

	query := `
		SELECT id, job_id, strategy_name, symbol, kline_interval, start_date, end_date, parameters, created_at,
		       net_pnl_percentage, max_drawdown_percentage, sharpe_ratio, win_rate, total_trades
		FROM backtest_runs
		WHERE ($1::bigint IS NULL OR job_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, jobID, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list backtest runs: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]domain.BacktestRunSummary, 0)
	for rows.Next() {
		var r domain.BacktestRunSummary
		var params []byte
		if err := rows.Scan(
			&r.ID, &r.JobID, &r.StrategyName, &r.Symbol, &r.Interval, &r.StartDate, &r.EndDate, &params, &r.CreatedAt,
			&r.NetPnLPercentage, &r.MaxDrawdownPercentage, &r.SharpeRatio, &r.WinRate, &r.TotalTrades,
		); err != nil {
			return nil, 0, fmt.Errorf("scan backtest run: %w", err)
		}
		if err := json.Unmarshal(params, &r.Parameters); err != nil {
			return nil, 0, fmt.Errorf("decode parameters of run %d: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate backtest runs: %w", err)
	}
	return runs, total, nil
}

// GetPerformanceReport returns the report of a run. Returns ErrNotFound if absent.
func (s *ReportStore) GetPerformanceReport(ctx context.Context, runID int64) (*domain.PerformanceReport, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM backtest_runs WHERE id = $1`, runID).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("backtest run %d: %w", runID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get report: %v", ports.ErrQueryFailed, err)
	}
	report := &domain.PerformanceReport{}
	if err := json.Unmarshal(raw, report); err != nil {
		return nil, fmt.Errorf("decode report of run %d: %w", runID, err)
	}
	report.RunID = runID
	return report, nil
}

// GetEquityCurve returns the run's curve in time order. Returns ErrNotFound if the run is absent.
func (s *ReportStore) GetEquityCurve(ctx context.Context, runID int64) ([]domain.EquityPoint, error) {
	if err := s.ensureRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT timestamp, value::text FROM equity_points WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: get equity curve: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	points := make([]domain.EquityPoint, 0)
	for rows.Next() {
		var p domain.EquityPoint
		var value string
		if err := rows.Scan(&p.Timestamp, &value); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		if p.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parse equity value %q: %w", value, err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity points: %w", err)
	}
	return points, nil
}

// ListTrades returns one page of the run's trades in ledger order.
func (s *ReportStore) ListTrades(ctx context.Context, runID int64, page domain.PageRequest) ([]domain.Trade, int64, error) {
	if err := s.ensureRun(ctx, runID); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM backtest_trades WHERE run_id = $1`, runID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count trades: %v", ports.ErrQueryFailed, err)
	}

	query := `
		SELECT symbol, side, entry_time, exit_time, entry_price::text, exit_price::text, quantity::text,
		       pnl::text, fees::text, signal_confidence, leverage, close_reason
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY seq
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, runID, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list trades: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, 0, err
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, total, nil
}

func (s *ReportStore) ensureRun(ctx context.Context, runID int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM backtest_runs WHERE id = $1)`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("%w: look up run %d: %v", ports.ErrQueryFailed, runID, err)
	}
	if !exists {
		return fmt.Errorf("backtest run %d: %w", runID, ports.ErrNotFound)
	}
	return nil
}

// CreateOptimizationJob saves a new job and returns its assigned ID.
func (s *ReportStore) CreateOptimizationJob(ctx context.Context, job *domain.OptimizationJob) (int64, error) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusRunning
	}
	query := `
		INSERT INTO optimization_jobs (name, strategy_name, symbol, kline_interval, start_date, end_date, status, total_runs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query, job.Name, job.StrategyName, job.Symbol, job.Interval,
		job.StartDate, job.EndDate, string(job.Status), job.TotalRuns, job.CreatedAt).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, ports.ErrDuplicateEntry
		}
		return 0, fmt.Errorf("%w: insert optimization job: %v", ports.ErrQueryFailed, err)
	}
	job.ID = id
	s.logger.Debug(ctx, "Optimization job created", map[string]interface{}{"jobID": id, "name": job.Name})
	return id, nil
}

// CompleteOptimizationJob stores the summary document and the final status.
// A nil summary updates the status only.
func (s *ReportStore) CompleteOptimizationJob(ctx context.Context, jobID int64, status domain.JobStatus, summary *domain.OptimizationSummary) error {
	var doc []byte
	if summary != nil {
		raw, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("encode summary of job %d: %w", jobID, err)
		}
		doc = raw
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE optimization_jobs SET status = $1, summary = COALESCE($2::jsonb, summary) WHERE id = $3`,
		string(status), doc, jobID)
	if err != nil {
		return fmt.Errorf("%w: complete optimization job %d: %v", ports.ErrQueryFailed, jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("optimization job %d: %w", jobID, ports.ErrNotFound)
	}
	return nil
}

// ListOptimizationJobs returns one page of jobs, newest first.
func (s *ReportStore) ListOptimizationJobs(ctx context.Context, page domain.PageRequest) ([]domain.OptimizationJob, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM optimization_jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count optimization jobs: %v", ports.ErrQueryFailed, err)
	}
	query := `
		SELECT id, name, strategy_name, symbol, kline_interval, start_date, end_date, status, total_runs, created_at
		FROM optimization_jobs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.pool.Query(ctx, query, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list optimization jobs: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	jobs := make([]domain.OptimizationJob, 0)
	for rows.Next() {
		var j domain.OptimizationJob
		var status string
		if err := rows.Scan(&j.ID, &j.Name, &j.StrategyName, &j.Symbol, &j.Interval, &j.StartDate, &j.EndDate,
			&status, &j.TotalRuns, &j.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan optimization job: %w", err)
		}
		j.Status = domain.JobStatus(status)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate optimization jobs: %w", err)
	}
	return jobs, total, nil
}

// GetOptimizationSummary returns the stored summary. Returns ErrNotFound if absent.
func (s *ReportStore) GetOptimizationSummary(ctx context.Context, jobID int64) (*domain.OptimizationSummary, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT summary FROM optimization_jobs WHERE id = $1`, jobID).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("optimization job %d: %w", jobID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get summary: %v", ports.ErrQueryFailed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("summary of optimization job %d: %w", jobID, ports.ErrNotFound)
	}
	summary := &domain.OptimizationSummary{}
	if err := json.Unmarshal(raw, summary); err != nil {
		return nil, fmt.Errorf("decode summary of job %d: %w", jobID, err)
	}
	return summary, nil
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var side string
	var reason *string
	var entry, exit, qty, pnl, fees string
	if err := row.Scan(&t.Symbol, &side, &t.EntryTime, &t.ExitTime, &entry, &exit, &qty, &pnl, &fees,
		&t.SignalConfidence, &t.Leverage, &reason); err != nil {
		return nil, fmt.Errorf("scan trade: %w", err)
	}
	t.Side = domain.Side(side)
	if reason != nil {
		t.CloseReason = domain.CloseReason(*reason)
	}
	t.EntryTime = t.EntryTime.UTC()
	t.ExitTime = t.ExitTime.UTC()

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&t.EntryPrice, entry}, {&t.ExitPrice, exit}, {&t.Quantity, qty}, {&t.PnL, pnl}, {&t.Fees, fees}} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("parse trade decimal %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return &t, nil
}
