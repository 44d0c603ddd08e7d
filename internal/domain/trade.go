package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents one closed position of a backtest run.
// PnL is realized and already net of fees; Fees is kept for reporting only.
type Trade struct {
	Symbol           string          `json:"symbol"`
	Side             Side            `json:"side"`
	EntryTime        time.Time       `json:"entry_time"`
	ExitTime         time.Time       `json:"exit_time"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	ExitPrice        decimal.Decimal `json:"exit_price"`
	Quantity         decimal.Decimal `json:"quantity"`
	PnL              decimal.Decimal `json:"pnl"`
	Fees             decimal.Decimal `json:"fees"`
	SignalConfidence float64         `json:"signal_confidence"`
	Leverage         int             `json:"leverage"`
	CloseReason      CloseReason     `json:"close_reason,omitempty"`
}

// Duration returns the holding time of the trade.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// Notional returns entry price times quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.EntryPrice.Mul(t.Quantity)
}

// EquityPoint is one mark-to-market sample of total account value.
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}
