package analytics

import (
	"fmt"
	"time"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// TradeLedger is the ordered collection of closed trades of one run.
// Trades are kept in exit-time order; once sealed the ledger is read-only.
type TradeLedger struct {
	trades []domain.Trade
	sealed bool
}

// NewTradeLedger creates an empty ledger.
func NewTradeLedger() *TradeLedger {
	return &TradeLedger{trades: make([]domain.Trade, 0)}
}

// NewTradeLedgerFrom builds a sealed ledger from trades already in exit-time order.
func NewTradeLedgerFrom(trades []domain.Trade) (*TradeLedger, error) {
	l := NewTradeLedger()
	for i, t := range trades {
		if err := l.Append(t); err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
	}
	l.Seal()
	return l, nil
}

// Append records a closed trade.
func (l *TradeLedger) Append(t domain.Trade) error {
	if l.sealed {
		return fmt.Errorf("append to sealed ledger: %w", ports.ErrInvalidOrdering)
	}
	if err := validateTrade(t); err != nil {
		return err
	}
	if t.ExitTime.Before(t.EntryTime) {
		return fmt.Errorf("exit time %s precedes entry time %s: %w",
			t.ExitTime.Format(time.RFC3339), t.EntryTime.Format(time.RFC3339), ports.ErrInvalidOrdering)
	}
	if last, ok := l.LastTimestamp(); ok && t.ExitTime.Before(last) {
		return fmt.Errorf("exit time %s precedes last recorded %s: %w",
			t.ExitTime.Format(time.RFC3339), last.Format(time.RFC3339), ports.ErrInvalidOrdering)
	}
	l.trades = append(l.trades, t)
	return nil
}

// Seal freezes the ledger.
func (l *TradeLedger) Seal() {
	l.sealed = true
}

// Len returns the number of trades.
func (l *TradeLedger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.trades)
}

// Trades returns a copy of the recorded trades.
func (l *TradeLedger) Trades() []domain.Trade {
	if l == nil {
		return nil
	}
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// LastTimestamp returns the exit time of the most recent trade.
func (l *TradeLedger) LastTimestamp() (time.Time, bool) {
	if l == nil || len(l.trades) == 0 {
		return time.Time{}, false
	}
	return l.trades[len(l.trades)-1].ExitTime, true
}

// each iterates the trades without copying.
func (l *TradeLedger) each(fn func(t *domain.Trade)) {
	if l == nil {
		return
	}
	for i := range l.trades {
		fn(&l.trades[i])
	}
}

func validateTrade(t domain.Trade) error {
	switch {
	case !t.Side.Valid():
		return fmt.Errorf("side %q: %w", t.Side, ports.ErrInvalidTrade)
	case !t.Quantity.IsPositive():
		return fmt.Errorf("quantity %s must be positive: %w", t.Quantity, ports.ErrInvalidTrade)
	case t.Fees.IsNegative():
		return fmt.Errorf("fees %s cannot be negative: %w", t.Fees, ports.ErrInvalidTrade)
	case t.Leverage < 1:
		return fmt.Errorf("leverage %d must be at least 1: %w", t.Leverage, ports.ErrInvalidTrade)
	case t.SignalConfidence < 0 || t.SignalConfidence > 1:
		return fmt.Errorf("signal confidence %.4f outside [0,1]: %w", t.SignalConfidence, ports.ErrInvalidTrade)
	}
	return nil
}
