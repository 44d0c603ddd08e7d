package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open position as seen by the live view.
type Position struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Leverage   int             `json:"leverage"`
	SLPrice    decimal.Decimal `json:"sl_price"`
	EntryTime  int64           `json:"entry_time"` // Epoch milliseconds

	// Confidence of the signal that opened the position; not part of the wire format.
	Confidence float64 `json:"-"`
}

// EntryTimestamp converts EntryTime back into a time.Time.
func (p *Position) EntryTimestamp() time.Time {
	return time.UnixMilli(p.EntryTime).UTC()
}

// UnrealizedPnL marks the position at price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice).Mul(p.Quantity)
	if p.Side == SideShort {
		return diff.Neg()
	}
	return diff
}

// Execution is a simulated or real fill.
type Execution struct {
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Fee      decimal.Decimal `json:"fee"`
}
