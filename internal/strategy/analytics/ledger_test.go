package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testTrade(entry, exit time.Time, pnl string) domain.Trade {
	return domain.Trade{
		Symbol:           "BTCUSDT",
		Side:             domain.SideLong,
		EntryTime:        entry,
		ExitTime:         exit,
		EntryPrice:       decimal.NewFromInt(100),
		ExitPrice:        decimal.NewFromInt(100),
		Quantity:         decimal.NewFromInt(1),
		PnL:              decimal.RequireFromString(pnl),
		Fees:             decimal.Zero,
		SignalConfidence: 0.75,
		Leverage:         1,
		CloseReason:      domain.CloseReasonSignal,
	}
}

func TestTradeLedger_Append(t *testing.T) {
	l := NewTradeLedger()
	require.NoError(t, l.Append(testTrade(baseTime, baseTime.Add(time.Hour), "10")))
	require.NoError(t, l.Append(testTrade(baseTime, baseTime.Add(time.Hour), "-5")))
	assert.Equal(t, 2, l.Len())

	last, ok := l.LastTimestamp()
	require.True(t, ok)
	assert.Equal(t, baseTime.Add(time.Hour), last)

	err := l.Append(testTrade(baseTime, baseTime.Add(30*time.Minute), "1"))
	assert.ErrorIs(t, err, ports.ErrInvalidOrdering)
	assert.Equal(t, 2, l.Len())
}

func TestTradeLedger_AppendRejectsInvalidTrades(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tr *domain.Trade)
		wantErr error
	}{
		{"exit before entry", func(tr *domain.Trade) { tr.ExitTime = tr.EntryTime.Add(-time.Second) }, ports.ErrInvalidOrdering},
		{"zero quantity", func(tr *domain.Trade) { tr.Quantity = decimal.Zero }, ports.ErrInvalidTrade},
		{"negative fees", func(tr *domain.Trade) { tr.Fees = decimal.NewFromInt(-1) }, ports.ErrInvalidTrade},
		{"zero leverage", func(tr *domain.Trade) { tr.Leverage = 0 }, ports.ErrInvalidTrade},
		{"unknown side", func(tr *domain.Trade) { tr.Side = "Sideways" }, ports.ErrInvalidTrade},
		{"confidence above one", func(tr *domain.Trade) { tr.SignalConfidence = 1.2 }, ports.ErrInvalidTrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := testTrade(baseTime, baseTime.Add(time.Hour), "1")
			tt.mutate(&tr)
			err := NewTradeLedger().Append(tr)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTradeLedger_Sealed(t *testing.T) {
	l, err := NewTradeLedgerFrom([]domain.Trade{testTrade(baseTime, baseTime.Add(time.Hour), "1")})
	require.NoError(t, err)

	err = l.Append(testTrade(baseTime, baseTime.Add(2*time.Hour), "1"))
	assert.ErrorIs(t, err, ports.ErrInvalidOrdering)

	trades := l.Trades()
	trades[0].PnL = decimal.NewFromInt(999)
	assert.True(t, l.Trades()[0].PnL.Equal(decimal.NewFromInt(1)), "Trades must return a copy")
}

func TestTradeLedger_NilIsEmpty(t *testing.T) {
	var l *TradeLedger
	assert.Equal(t, 0, l.Len())
	assert.Nil(t, l.Trades())
	_, ok := l.LastTimestamp()
	assert.False(t, ok)
}
