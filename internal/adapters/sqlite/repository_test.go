package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var baseTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRecord(jobID *int64, netPct float64, sharpe *float64) *ports.BacktestRecord {
	return &ports.BacktestRecord{
		Run: &domain.BacktestRun{
			JobID:        jobID,
			StrategyName: "ma_crossover",
			Symbol:       "ETHUSDT",
			Interval:     "1h",
			StartDate:    baseTime,
			EndDate:      baseTime.Add(48 * time.Hour),
			Parameters:   domain.ParameterSet{"fast_period": 9, "slow_period": 21},
		},
		Report: &domain.PerformanceReport{
			NetPnLAbsolute:        decimal.RequireFromString("30.5"),
			NetPnLPercentage:      netPct,
			MaxDrawdownAbsolute:   decimal.RequireFromString("12"),
			MaxDrawdownPercentage: 1.2,
			SharpeRatio:           sharpe,
			WinRate:               0.5,
			ProfitFactor:          domain.Float(2.5),
			TotalTrades:           2,
			Expectancy:            decimal.NewNullDecimal(decimal.RequireFromString("15.25")),
			FundingPnL:            decimal.Zero,
		},
		Trades: []domain.Trade{
			{
				Symbol: "ETHUSDT", Side: domain.SideLong,
				EntryTime: baseTime, ExitTime: baseTime.Add(time.Hour),
				EntryPrice: decimal.RequireFromString("2000.10"), ExitPrice: decimal.RequireFromString("2050.2"),
				Quantity: decimal.RequireFromString("1.000001"), PnL: decimal.RequireFromString("50.5"),
				Fees: decimal.RequireFromString("0.8"), SignalConfidence: 0.72, Leverage: 3,
				CloseReason: domain.CloseReasonSignal,
			},
			{
				Symbol: "ETHUSDT", Side: domain.SideShort,
				EntryTime: baseTime.Add(2 * time.Hour), ExitTime: baseTime.Add(4 * time.Hour),
				EntryPrice: decimal.RequireFromString("2050"), ExitPrice: decimal.RequireFromString("2070"),
				Quantity: decimal.RequireFromString("1"), PnL: decimal.RequireFromString("-20"),
				Fees: decimal.RequireFromString("0.8"), SignalConfidence: 0.64, Leverage: 3,
				CloseReason: domain.CloseReasonStopLoss,
			},
		},
		Curve: []domain.EquityPoint{
			{Timestamp: baseTime, Value: decimal.RequireFromString("1000")},
			{Timestamp: baseTime.Add(time.Hour), Value: decimal.RequireFromString("1050.5")},
			{Timestamp: baseTime.Add(2 * time.Hour), Value: decimal.RequireFromString("1030.5")},
		},
	}
}

func TestRepository_SaveAndLoadBacktestRun(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	rec := sampleRecord(nil, 3.05, domain.Float(1.7))
	id, err := repo.SaveBacktestRun(ctx, rec)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.Equal(t, id, rec.Run.ID)

	report, err := repo.GetPerformanceReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, report.RunID)
	assert.True(t, report.NetPnLAbsolute.Equal(decimal.RequireFromString("30.5")))
	assert.Equal(t, 2, report.TotalTrades)
	require.NotNil(t, report.SharpeRatio)
	assert.InDelta(t, 1.7, *report.SharpeRatio, 1e-12)
	assert.Nil(t, report.SortinoRatio)
	assert.True(t, report.Expectancy.Valid)

	curve, err := repo.GetEquityCurve(ctx, id)
	require.NoError(t, err)
	require.Len(t, curve, 3)
	for i, p := range curve {
		assert.True(t, p.Timestamp.Equal(rec.Curve[i].Timestamp), "point %d", i)
		assert.True(t, p.Value.Equal(rec.Curve[i].Value), "point %d", i)
	}

	trades, total, err := repo.ListTrades(ctx, id, domain.PageRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.SideLong, trades[0].Side)
	assert.True(t, trades[0].Quantity.Equal(decimal.RequireFromString("1.000001")))
	assert.True(t, trades[0].EntryTime.Equal(baseTime))
	assert.Equal(t, domain.CloseReasonStopLoss, trades[1].CloseReason)
	assert.True(t, trades[1].PnL.Equal(decimal.NewFromInt(-20)))

	page2, _, err := repo.ListTrades(ctx, id, domain.PageRequest{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, domain.SideShort, page2[0].Side)
}

func TestRepository_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.GetPerformanceReport(ctx, 42)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = repo.GetEquityCurve(ctx, 42)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, _, err = repo.ListTrades(ctx, 42, domain.PageRequest{Page: 1, PageSize: 10})
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = repo.GetOptimizationSummary(ctx, 42)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	err = repo.CompleteOptimizationJob(ctx, 42, domain.JobStatusCompleted, nil)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_SaveBacktestRunInvalid(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.SaveBacktestRun(context.Background(), &ports.BacktestRecord{Run: &domain.BacktestRun{}})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestRepository_ListBacktestRuns(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	jobID, err := repo.CreateOptimizationJob(ctx, &domain.OptimizationJob{
		Name: "sweep", StrategyName: "ma_crossover", Symbol: "ETHUSDT", Interval: "1h",
		StartDate: baseTime, EndDate: baseTime.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := sampleRecord(&jobID, float64(i), nil)
		rec.Run.CreatedAt = baseTime.Add(time.Duration(i) * time.Minute)
		_, err := repo.SaveBacktestRun(ctx, rec)
		require.NoError(t, err)
	}
	_, err = repo.SaveBacktestRun(ctx, sampleRecord(nil, 9, domain.Float(0.4)))
	require.NoError(t, err)

	tests := []struct {
		name      string
		page      domain.PageRequest
		jobID     *int64
		wantTotal int64
		wantPcts  []float64
	}{
		{name: "all runs newest first", page: domain.PageRequest{Page: 1, PageSize: 10}, wantTotal: 4, wantPcts: []float64{9, 2, 1, 0}},
		{name: "filtered by job", page: domain.PageRequest{Page: 1, PageSize: 10}, jobID: &jobID, wantTotal: 3, wantPcts: []float64{2, 1, 0}},
		{name: "second page", page: domain.PageRequest{Page: 2, PageSize: 2}, jobID: &jobID, wantTotal: 3, wantPcts: []float64{0}},
		{name: "past the end", page: domain.PageRequest{Page: 5, PageSize: 2}, wantTotal: 4, wantPcts: []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, total, err := repo.ListBacktestRuns(ctx, tt.page, tt.jobID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			got := make([]float64, 0, len(runs))
			for _, r := range runs {
				got = append(got, r.NetPnLPercentage)
			}
			assert.Equal(t, tt.wantPcts, got)
		})
	}

	runs, _, err := repo.ListBacktestRuns(ctx, domain.PageRequest{Page: 1, PageSize: 1}, nil)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].JobID)
	require.NotNil(t, runs[0].SharpeRatio)
	assert.InDelta(t, 0.4, *runs[0].SharpeRatio, 1e-12)
	assert.Equal(t, 21, runs[0].Parameters.Int("slow_period", 0))
}

func TestRepository_OptimizationJobLifecycle(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	job := &domain.OptimizationJob{
		Name: "ema sweep", StrategyName: "ma_crossover", Symbol: "BTCUSDT", Interval: "4h",
		StartDate: baseTime, EndDate: baseTime.Add(30 * 24 * time.Hour), TotalRuns: 12,
	}
	jobID, err := repo.CreateOptimizationJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, job.Status)

	_, err = repo.GetOptimizationSummary(ctx, jobID)
	assert.ErrorIs(t, err, ports.ErrNotFound, "running job has no summary yet")

	backtestID := int64(7)
	summary := &domain.OptimizationSummary{
		JobID:     jobID,
		CreatedAt: baseTime,
		TopN: []domain.RankedRun{
			{Score: 12.5, RunID: 3, Parameters: domain.ParameterSet{"fast_period": 5}, BacktestID: &backtestID,
				Report: &domain.PerformanceReport{RunID: 3, NetPnLPercentage: 12.5, NetPnLAbsolute: decimal.NewFromInt(125)}},
		},
		Failed: []domain.FailedRun{
			{RunID: 4, Parameters: domain.ParameterSet{"fast_period": 6}, ErrorKind: ports.KindRunFailure, Message: "boom"},
		},
		TotalRuns:     12,
		CompletedRuns: 11,
	}
	require.NoError(t, repo.CompleteOptimizationJob(ctx, jobID, domain.JobStatusCompleted, summary))

	got, err := repo.GetOptimizationSummary(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, got.JobID)
	require.Len(t, got.TopN, 1)
	assert.Equal(t, 12.5, got.TopN[0].Score)
	require.NotNil(t, got.TopN[0].BacktestID)
	assert.Equal(t, int64(7), *got.TopN[0].BacktestID)
	assert.True(t, got.TopN[0].Report.NetPnLAbsolute.Equal(decimal.NewFromInt(125)))
	require.Len(t, got.Failed, 1)
	assert.Equal(t, "boom", got.Failed[0].Message)

	jobs, total, err := repo.ListOptimizationJobs(ctx, domain.PageRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusCompleted, jobs[0].Status)
	assert.Equal(t, 12, jobs[0].TotalRuns)
	assert.True(t, jobs[0].StartDate.Equal(baseTime))

	// A status-only update keeps the stored summary
	require.NoError(t, repo.CompleteOptimizationJob(ctx, jobID, domain.JobStatusFailed, nil))
	got, err = repo.GetOptimizationSummary(ctx, jobID)
	require.NoError(t, err)
	assert.Len(t, got.TopN, 1)
}
