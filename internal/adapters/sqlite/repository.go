package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.ReportStore interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

var _ ports.ReportStore = (*Repository)(nil)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/atlas.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode lets API readers proceed while a sweep is writing runs
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}

	// SQLite serialises writers anyway; a single connection avoids SQLITE_BUSY churn
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS optimization_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		strategy_name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		kline_interval TEXT NOT NULL,
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		total_runs INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		summary TEXT DEFAULT NULL -- Top-N and failures as one JSON document
	);

	CREATE TABLE IF NOT EXISTS backtest_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NULL REFERENCES optimization_jobs (id) ON DELETE CASCADE,
		strategy_name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		kline_interval TEXT NOT NULL,
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP NOT NULL,
		parameters TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		net_pnl_percentage REAL NOT NULL,
		max_drawdown_percentage REAL NOT NULL,
		sharpe_ratio REAL NULL,
		win_rate REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		report TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS backtest_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		entry_price TEXT NOT NULL, -- decimals are stored as text to stay exact
		exit_price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		pnl TEXT NOT NULL,
		fees TEXT NOT NULL,
		signal_confidence REAL NOT NULL,
		leverage INTEGER NOT NULL,
		close_reason TEXT NULL
	);

	CREATE TABLE IF NOT EXISTS equity_points (
		run_id INTEGER NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_backtest_runs_job_id ON backtest_runs (job_id);
	CREATE INDEX IF NOT EXISTS idx_backtest_trades_run_seq ON backtest_trades (run_id, seq);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- BacktestRunRepository Implementation ---

// SaveBacktestRun persists the run, its report, its trades and its equity curve in one transaction.
func (r *Repository) SaveBacktestRun(ctx context.Context, rec *ports.BacktestRecord) (int64, error) {
	if rec == nil || rec.Run == nil || rec.Report == nil {
		return 0, fmt.Errorf("%w: backtest record requires a run and a report", ports.ErrInvalidRequest)
	}
	run := rec.Run
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return 0, fmt.Errorf("failed to encode parameters: %w", err)
	}
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return 0, fmt.Errorf("failed to encode performance report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", ports.ErrDBConnection, err)
	}
	defer tx.Rollback() // No-op after a successful commit

	const insertRun = `
	INSERT INTO backtest_runs (job_id, strategy_name, symbol, kline_interval, start_date, end_date, parameters,
	                           created_at, net_pnl_percentage, max_drawdown_percentage, sharpe_ratio,
	                           win_rate, total_trades, report)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, insertRun,
		nullInt64(run.JobID), run.StrategyName, run.Symbol, run.Interval, run.StartDate.UTC(), run.EndDate.UTC(),
		string(params), run.CreatedAt.UTC(), rec.Report.NetPnLPercentage, rec.Report.MaxDrawdownPercentage,
		nullFloat(rec.Report.SharpeRatio), rec.Report.WinRate, rec.Report.TotalTrades, string(report))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert backtest run for %s: %v", ports.ErrQueryFailed, run.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for backtest run %s: %w", run.Symbol, err)
	}

	if err := insertTrades(ctx, tx, id, rec.Trades); err != nil {
		return 0, err
	}
	if err := insertCurve(ctx, tx, id, rec.Curve); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit backtest run: %v", ports.ErrQueryFailed, err)
	}

	run.ID = id // Update the domain object with the ID
	r.logger.Debug(ctx, "Backtest run saved", map[string]interface{}{
		"runID": id, "symbol": run.Symbol, "trades": len(rec.Trades), "points": len(rec.Curve),
	})
	return id, nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, runID int64, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO backtest_trades (run_id, seq, symbol, side, entry_time, exit_time, entry_price, exit_price,
	                             quantity, pnl, fees, signal_confidence, leverage, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range trades {
		var reason sql.NullString
		if t.CloseReason != "" {
			reason = sql.NullString{String: string(t.CloseReason), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, i, t.Symbol, string(t.Side), t.EntryTime.UTC(), t.ExitTime.UTC(),
			t.EntryPrice, t.ExitPrice, t.Quantity, t.PnL, t.Fees, t.SignalConfidence, t.Leverage, reason); err != nil {
			return fmt.Errorf("%w: failed to insert trade %d of run %d: %v", ports.ErrQueryFailed, i, runID, err)
		}
	}
	return nil
}

func insertCurve(ctx context.Context, tx *sql.Tx, runID int64, curve []domain.EquityPoint) error {
	if len(curve) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO equity_points (run_id, seq, timestamp, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare equity insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range curve {
		if _, err := stmt.ExecContext(ctx, runID, i, p.Timestamp.UTC(), p.Value); err != nil {
			return fmt.Errorf("%w: failed to insert equity point %d of run %d: %v", ports.ErrQueryFailed, i, runID, err)
		}
	}
	return nil
}

// ListBacktestRuns returns one page of stored runs, newest first.
func (r *Repository) ListBacktestRuns(ctx context.Context, page domain.PageRequest, jobID *int64) ([]domain.BacktestRunSummary, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM backtest_runs`
	listQuery := `
	SELECT id, job_id, strategy_name, symbol, kline_interval, start_date, end_date, parameters, created_at,
	       net_pnl_percentage, max_drawdown_percentage, sharpe_ratio, win_rate, total_trades
	FROM backtest_runs`
	args := []interface{}{}
	if jobID != nil {
		countQuery += ` WHERE job_id = ?`
		listQuery += ` WHERE job_id = ?`
		args = append(args, *jobID)
	}
	listQuery += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count backtest runs: %v", ports.ErrQueryFailed, err)
	}

	rows, err := r.db.QueryContext(ctx, listQuery, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to query backtest runs: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]domain.BacktestRunSummary, 0)
	for rows.Next() {
		s, err := scanRunSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating backtest run rows: %w", err)
	}
	return runs, total, nil
}

// GetPerformanceReport returns the stored report of a run.
func (r *Repository) GetPerformanceReport(ctx context.Context, runID int64) (*domain.PerformanceReport, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT report FROM backtest_runs WHERE id = ?`, runID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("backtest run %d: %w", runID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to query report of run %d: %v", ports.ErrQueryFailed, runID, err)
	}
	report := &domain.PerformanceReport{}
	if err := json.Unmarshal([]byte(raw), report); err != nil {
		return nil, fmt.Errorf("failed to decode report of run %d: %w", runID, err)
	}
	report.RunID = runID
	return report, nil
}

// GetEquityCurve returns the run's equity samples in time order.
func (r *Repository) GetEquityCurve(ctx context.Context, runID int64) ([]domain.EquityPoint, error) {
	if err := r.ensureRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT timestamp, value FROM equity_points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query equity curve of run %d: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	points := make([]domain.EquityPoint, 0)
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity rows: %w", err)
	}
	return points, nil
}

// ListTrades returns one page of the run's trades in ledger order.
func (r *Repository) ListTrades(ctx context.Context, runID int64, page domain.PageRequest) ([]domain.Trade, int64, error) {
	if err := r.ensureRun(ctx, runID); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backtest_trades WHERE run_id = ?`, runID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count trades of run %d: %v", ports.ErrQueryFailed, runID, err)
	}

	const query = `
	SELECT symbol, side, entry_time, exit_time, entry_price, exit_price, quantity, pnl, fees,
	       signal_confidence, leverage, close_reason
	FROM backtest_trades
	WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, runID, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to query trades of run %d: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, total, nil
}

func (r *Repository) ensureRun(ctx context.Context, runID int64) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM backtest_runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("backtest run %d: %w", runID, ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to look up run %d: %v", ports.ErrQueryFailed, runID, err)
	}
	return nil
}

// --- OptimizationRepository Implementation ---

// CreateOptimizationJob saves a new job and returns its assigned ID.
func (r *Repository) CreateOptimizationJob(ctx context.Context, job *domain.OptimizationJob) (int64, error) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusRunning
	}
	const query = `
	INSERT INTO optimization_jobs (name, strategy_name, symbol, kline_interval, start_date, end_date, status, total_runs, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, job.Name, job.StrategyName, job.Symbol, job.Interval,
		job.StartDate.UTC(), job.EndDate.UTC(), string(job.Status), job.TotalRuns, job.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert optimization job %q: %v", ports.ErrQueryFailed, job.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for optimization job %q: %w", job.Name, err)
	}
	job.ID = id
	r.logger.Debug(ctx, "Optimization job created", map[string]interface{}{"jobID": id, "name": job.Name})
	return id, nil
}

// CompleteOptimizationJob writes the summary document and the final status.
func (r *Repository) CompleteOptimizationJob(ctx context.Context, jobID int64, status domain.JobStatus, summary *domain.OptimizationSummary) error {
	var doc sql.NullString
	if summary != nil {
		raw, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to encode summary of job %d: %w", jobID, err)
		}
		doc = sql.NullString{String: string(raw), Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE optimization_jobs SET status = ?, summary = COALESCE(?, summary) WHERE id = ?`,
		string(status), doc, jobID)
	if err != nil {
		return fmt.Errorf("%w: failed to update optimization job %d: %v", ports.ErrQueryFailed, jobID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for optimization job %d: %w", jobID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimization job %d: %w", jobID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Optimization job completed", map[string]interface{}{"jobID": jobID, "status": status})
	return nil
}

// ListOptimizationJobs returns one page of jobs, newest first.
func (r *Repository) ListOptimizationJobs(ctx context.Context, page domain.PageRequest) ([]domain.OptimizationJob, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM optimization_jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count optimization jobs: %v", ports.ErrQueryFailed, err)
	}

	const query = `
	SELECT id, name, strategy_name, symbol, kline_interval, start_date, end_date, status, total_runs, created_at
	FROM optimization_jobs
	ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to query optimization jobs: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	jobs := make([]domain.OptimizationJob, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan optimization job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating optimization job rows: %w", err)
	}
	return jobs, total, nil
}

// GetOptimizationSummary returns the stored summary document of a job.
func (r *Repository) GetOptimizationSummary(ctx context.Context, jobID int64) (*domain.OptimizationSummary, error) {
	var doc sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT summary FROM optimization_jobs WHERE id = ?`, jobID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("optimization job %d: %w", jobID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to query summary of job %d: %v", ports.ErrQueryFailed, jobID, err)
	}
	if !doc.Valid {
		return nil, fmt.Errorf("summary of optimization job %d: %w", jobID, ports.ErrNotFound)
	}
	summary := &domain.OptimizationSummary{}
	if err := json.Unmarshal([]byte(doc.String), summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary of job %d: %w", jobID, err)
	}
	return summary, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRunSummary(s scanner) (*domain.BacktestRunSummary, error) {
	out := &domain.BacktestRunSummary{}
	var jobID sql.NullInt64
	var sharpe sql.NullFloat64
	var params string
	err := s.Scan(
		&out.ID, &jobID, &out.StrategyName, &out.Symbol, &out.Interval, &out.StartDate, &out.EndDate,
		&params, &out.CreatedAt, &out.NetPnLPercentage, &out.MaxDrawdownPercentage, &sharpe,
		&out.WinRate, &out.TotalTrades)
	if err != nil {
		return nil, err
	}
	if jobID.Valid {
		id := jobID.Int64
		out.JobID = &id
	}
	if sharpe.Valid {
		out.SharpeRatio = domain.Float(sharpe.Float64)
	}
	if err := json.Unmarshal([]byte(params), &out.Parameters); err != nil {
		return nil, fmt.Errorf("failed to decode parameters of run %d: %w", out.ID, err)
	}
	out.StartDate = out.StartDate.UTC()
	out.EndDate = out.EndDate.UTC()
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side string
	var reason sql.NullString
	err := s.Scan(
		&t.Symbol, &side, &t.EntryTime, &t.ExitTime, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.PnL,
		&t.Fees, &t.SignalConfidence, &t.Leverage, &reason)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	if reason.Valid {
		t.CloseReason = domain.CloseReason(reason.String)
	}
	t.EntryTime = t.EntryTime.UTC()
	t.ExitTime = t.ExitTime.UTC()
	return t, nil
}

func scanJob(s scanner) (*domain.OptimizationJob, error) {
	j := &domain.OptimizationJob{}
	var status string
	err := s.Scan(&j.ID, &j.Name, &j.StrategyName, &j.Symbol, &j.Interval, &j.StartDate, &j.EndDate,
		&status, &j.TotalRuns, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	j.StartDate = j.StartDate.UTC()
	j.EndDate = j.EndDate.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	return j, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
