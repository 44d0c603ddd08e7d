package backtesting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/risk"
	"github.com/AllanBico/atlas/internal/strategy/strategies"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeKlines(prices ...float64) []domain.Kline {
	out := make([]domain.Kline, len(prices))
	for i, p := range prices {
		v := decimal.NewFromFloat(p)
		out[i] = domain.Kline{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1)*time.Hour - time.Millisecond),
			Symbol:    "BTCUSDT",
			Interval:  "1h",
			Open:      v,
			High:      v.Add(decimal.NewFromFloat(0.5)),
			Low:       v.Sub(decimal.NewFromFloat(0.5)),
			Close:     v,
		}
	}
	return out
}

var vShape = []float64{20, 19, 18, 17, 16, 15, 16, 17, 18, 19, 20, 19, 18, 17, 16, 15}

var crossoverParams = domain.ParameterSet{
	strategies.ParamFastPeriod: 2,
	strategies.ParamSlowPeriod: 4,
	strategies.ParamRSIPeriod:  3,
	strategies.ParamATRPeriod:  3,
}

func testConfig() BacktestConfig {
	return BacktestConfig{
		Symbol:         "BTCUSDT",
		Interval:       "1h",
		StrategyName:   strategies.MACrossoverName,
		InitialCapital: decimal.NewFromInt(10000),
		Risk: risk.RiskConfig{
			RiskPerTrade:    decimal.RequireFromString("0.01"),
			StopLossPercent: decimal.RequireFromString("0.5"),
			Leverage:        1,
		},
	}
}

type recordingPublisher struct {
	mu         sync.Mutex
	executions []domain.Execution
	portfolios int
}

func (r *recordingPublisher) PublishLog(level, message string) {}

func (r *recordingPublisher) PublishPortfolio(cash, totalValue decimal.Decimal, positions map[string]domain.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portfolios++
}

func (r *recordingPublisher) PublishExecution(exec domain.Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, exec)
}

func TestBacktester_CrossoverRoundTrip(t *testing.T) {
	bt, err := NewBacktester(testConfig(), makeKlines(vShape...), nil, nil)
	require.NoError(t, err)
	events := &recordingPublisher{}
	bt.SetEventPublisher(events)

	strat, err := strategies.New(strategies.MACrossoverName, crossoverParams, nil)
	require.NoError(t, err)
	res, err := bt.Run(context.Background(), strat)
	require.NoError(t, err)

	trades := res.Ledger.Trades()
	require.Len(t, trades, 2)

	long := trades[0]
	assert.Equal(t, domain.SideLong, long.Side)
	assert.True(t, long.EntryPrice.Equal(decimal.NewFromInt(17)))
	assert.True(t, long.ExitPrice.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, domain.CloseReasonSignal, long.CloseReason)
	assert.Equal(t, start.Add(8*time.Hour), long.EntryTime)
	assert.Equal(t, start.Add(13*time.Hour), long.ExitTime)
	assert.True(t, long.PnL.Equal(long.Quantity), "1 point move times quantity")

	short := trades[1]
	assert.Equal(t, domain.SideShort, short.Side)
	assert.Equal(t, domain.CloseReasonEndOfData, short.CloseReason)
	assert.True(t, short.PnL.Equal(short.Quantity.Mul(decimal.NewFromInt(3))))

	// One sample per kline boundary.
	assert.Equal(t, len(vShape)+1, res.Curve.Len())
	final, ok := res.Curve.Final()
	require.True(t, ok)
	assert.True(t, final.Equal(decimal.NewFromInt(10000).Add(long.PnL).Add(short.PnL)))

	assert.Len(t, res.Executions, 4)
	assert.Len(t, events.executions, 4)
	assert.Equal(t, 4, events.portfolios)
}

func TestBacktester_FeesAndSlippage(t *testing.T) {
	cfg := testConfig()
	cfg.TakerFee = decimal.RequireFromString("0.001")
	cfg.Slippage = decimal.RequireFromString("0.01")
	bt, err := NewBacktester(cfg, makeKlines(vShape...), nil, nil)
	require.NoError(t, err)

	ledger, curve, err := bt.Execute(context.Background(), crossoverParams)
	require.NoError(t, err)
	trades := ledger.Trades()
	require.Len(t, trades, 2)

	long := trades[0]
	assert.True(t, long.EntryPrice.Equal(decimal.RequireFromString("17.17")))
	assert.True(t, long.ExitPrice.Equal(decimal.RequireFromString("17.82")))
	fees := long.EntryPrice.Add(long.ExitPrice).Mul(long.Quantity).Mul(cfg.TakerFee)
	assert.True(t, long.Fees.Equal(fees))
	gross := long.ExitPrice.Sub(long.EntryPrice).Mul(long.Quantity)
	assert.True(t, long.PnL.Equal(gross.Sub(fees)), "pnl is net of fees")

	final, ok := curve.Final()
	require.True(t, ok)
	assert.True(t, final.Equal(cfg.InitialCapital.Add(trades[0].PnL).Add(trades[1].PnL)))
}

func TestBacktester_StopLoss(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.StopLossPercent = decimal.RequireFromString("0.02")
	prices := []float64{20, 19, 18, 17, 16, 15, 16, 17, 10, 10, 10}
	bt, err := NewBacktester(cfg, makeKlines(prices...), nil, nil)
	require.NoError(t, err)

	ledger, _, err := bt.Execute(context.Background(), crossoverParams)
	require.NoError(t, err)
	trades := ledger.Trades()
	require.NotEmpty(t, trades)

	stopped := trades[0]
	assert.Equal(t, domain.CloseReasonStopLoss, stopped.CloseReason)
	// Gapped through the 16.66 stop: filled at the open.
	assert.True(t, stopped.ExitPrice.Equal(decimal.NewFromInt(10)))
	assert.True(t, stopped.PnL.IsNegative())
}

func TestBacktester_Funding(t *testing.T) {
	funding := []domain.FundingRate{
		{Symbol: "BTCUSDT", Rate: decimal.RequireFromString("0.001"), FundingTime: start.Add(2 * time.Hour)},
		{Symbol: "BTCUSDT", Rate: decimal.RequireFromString("0.001"), FundingTime: start.Add(10 * time.Hour)},
	}
	bt, err := NewBacktester(testConfig(), makeKlines(vShape...), funding, nil)
	require.NoError(t, err)

	ledger, curve, err := bt.Execute(context.Background(), crossoverParams)
	require.NoError(t, err)
	long := ledger.Trades()[0]

	// Only the second event falls inside the long, marked at the 10h open of 20.
	want := long.Quantity.Mul(decimal.NewFromInt(20)).Mul(decimal.RequireFromString("0.001")).Neg()
	assert.True(t, curve.FundingPnL().Equal(want), "funding %s want %s", curve.FundingPnL(), want)

	final, _ := curve.Final()
	sum := decimal.Zero
	for _, tr := range ledger.Trades() {
		sum = sum.Add(tr.PnL)
	}
	assert.True(t, final.Equal(decimal.NewFromInt(10000).Add(sum).Add(want)))
}

func TestBacktester_Errors(t *testing.T) {
	klines := makeKlines(vShape...)

	_, err := NewBacktester(BacktestConfig{}, klines, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)

	unordered := append([]domain.Kline{}, klines...)
	unordered[3], unordered[4] = unordered[4], unordered[3]
	_, err = NewBacktester(testConfig(), unordered, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidOrdering)

	bt, err := NewBacktester(testConfig(), klines, nil, nil)
	require.NoError(t, err)
	_, _, err = bt.Execute(context.Background(), domain.ParameterSet{strategies.ParamFastPeriod: 10, strategies.ParamSlowPeriod: 50})
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)

	_, _, err = bt.Execute(context.Background(), domain.ParameterSet{strategies.ParamFastPeriod: 10, strategies.ParamSlowPeriod: 5})
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = bt.Execute(ctx, crossoverParams)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBacktester_RiskParamsOverride(t *testing.T) {
	bt, err := NewBacktester(testConfig(), makeKlines(vShape...), nil, nil)
	require.NoError(t, err)

	params := crossoverParams.Clone()
	params[ParamMinConfidence] = 0.99
	ledger, _, err := bt.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Len(), "every signal vetoed")
}
