package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// EquityCurve is the immutable, strictly time-ordered equity trajectory of one run.
type EquityCurve struct {
	points  []domain.EquityPoint
	funding decimal.Decimal
}

// NewEquityCurve builds a curve from samples with strictly increasing timestamps.
func NewEquityCurve(points []domain.EquityPoint) (*EquityCurve, error) {
	return NewEquityCurveWithFunding(points, decimal.Zero)
}

// NewEquityCurveWithFunding builds a curve that also carries the funding P&L accrued over the run.
func NewEquityCurveWithFunding(points []domain.EquityPoint, funding decimal.Decimal) (*EquityCurve, error) {
	for i := 1; i < len(points); i++ {
		if !points[i].Timestamp.After(points[i-1].Timestamp) {
			return nil, fmt.Errorf("equity sample %d at %s is not after %s: %w", i,
				points[i].Timestamp.Format(time.RFC3339), points[i-1].Timestamp.Format(time.RFC3339), ports.ErrInvalidOrdering)
		}
	}
	cp := make([]domain.EquityPoint, len(points))
	copy(cp, points)
	return &EquityCurve{points: cp, funding: funding}, nil
}

// Len returns the number of samples.
func (c *EquityCurve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.points)
}

// Points returns a copy of the samples.
func (c *EquityCurve) Points() []domain.EquityPoint {
	if c == nil {
		return nil
	}
	out := make([]domain.EquityPoint, len(c.points))
	copy(out, c.points)
	return out
}

// FundingPnL returns the funding accrued over the run.
func (c *EquityCurve) FundingPnL() decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return c.funding
}

// Final returns the last sample value.
func (c *EquityCurve) Final() (decimal.Decimal, bool) {
	if c.Len() == 0 {
		return decimal.Zero, false
	}
	return c.points[len(c.points)-1].Value, true
}

// Span returns the time between the first and last sample.
func (c *EquityCurve) Span() time.Duration {
	if c.Len() < 2 {
		return 0
	}
	return c.points[len(c.points)-1].Timestamp.Sub(c.points[0].Timestamp)
}

// EquityCurveBuilder samples account equity at a fixed cadence.
//
// Between events equity moves by unrealized P&L and funding accruals. A sample
// tick that falls strictly before an event carries the state prior to that event,
// so several events sharing a timestamp are applied atomically. When a trade
// closes, call Realize and then MarkToMarket with the remaining unrealized P&L
// at the same timestamp.
type EquityCurveBuilder struct {
	cadence    time.Duration
	balance    decimal.Decimal // initial capital + realized pnl + funding
	unrealized decimal.Decimal
	funding    decimal.Decimal

	points   []domain.EquityPoint
	next     time.Time
	last     time.Time
	started  bool
	finished bool
}

// NewEquityCurveBuilder creates a builder for an account starting at initialCapital.
func NewEquityCurveBuilder(initialCapital decimal.Decimal, cadence time.Duration) (*EquityCurveBuilder, error) {
	if !initialCapital.IsPositive() {
		return nil, fmt.Errorf("initial capital %s must be positive: %w", initialCapital, ports.ErrInvalidConfiguration)
	}
	if cadence <= 0 {
		return nil, fmt.Errorf("sample cadence %s must be positive: %w", cadence, ports.ErrInvalidConfiguration)
	}
	return &EquityCurveBuilder{
		cadence: cadence,
		balance: initialCapital,
		points:  make([]domain.EquityPoint, 0),
	}, nil
}

// Start anchors the sampling grid at t. Events before Start anchor it implicitly.
func (b *EquityCurveBuilder) Start(t time.Time) error {
	if b.started {
		return fmt.Errorf("equity builder already started at %s: %w", b.next.Format(time.RFC3339), ports.ErrInvalidOrdering)
	}
	b.started = true
	b.next = t
	b.last = t
	return nil
}

// MarkToMarket sets the unrealized P&L of open positions as of t.
func (b *EquityCurveBuilder) MarkToMarket(t time.Time, unrealized decimal.Decimal) error {
	if err := b.advance(t); err != nil {
		return err
	}
	b.unrealized = unrealized
	return nil
}

// Realize books the realized P&L of a closed trade at t.
func (b *EquityCurveBuilder) Realize(t time.Time, pnl decimal.Decimal) error {
	if err := b.advance(t); err != nil {
		return err
	}
	b.balance = b.balance.Add(pnl)
	return nil
}

// AccrueFunding books a funding payment at t. Negative amounts are paid out.
func (b *EquityCurveBuilder) AccrueFunding(t time.Time, amount decimal.Decimal) error {
	if err := b.advance(t); err != nil {
		return err
	}
	b.balance = b.balance.Add(amount)
	b.funding = b.funding.Add(amount)
	return nil
}

// Equity returns the current mark-to-market account value.
func (b *EquityCurveBuilder) Equity() decimal.Decimal {
	return b.balance.Add(b.unrealized)
}

// Balance returns the account value excluding unrealized P&L.
func (b *EquityCurveBuilder) Balance() decimal.Decimal {
	return b.balance
}

// Finish emits the remaining samples up to and including end and returns the curve.
// When end falls between ticks a closing sample is taken at end.
func (b *EquityCurveBuilder) Finish(end time.Time) (*EquityCurve, error) {
	if b.finished {
		return nil, fmt.Errorf("equity builder already finished: %w", ports.ErrInvalidOrdering)
	}
	if !b.started {
		b.started = true
		b.next = end
		b.last = end
	}
	if end.Before(b.last) {
		return nil, fmt.Errorf("finish time %s precedes last event %s: %w",
			end.Format(time.RFC3339), b.last.Format(time.RFC3339), ports.ErrInvalidOrdering)
	}
	for !b.next.After(end) {
		b.emit()
	}
	if n := len(b.points); n == 0 || b.points[n-1].Timestamp.Before(end) {
		b.points = append(b.points, domain.EquityPoint{Timestamp: end, Value: b.Equity()})
	}
	b.finished = true
	return NewEquityCurveWithFunding(b.points, b.funding)
}

// advance emits every tick strictly before t with the current state.
func (b *EquityCurveBuilder) advance(t time.Time) error {
	if b.finished {
		return fmt.Errorf("event at %s after finish: %w", t.Format(time.RFC3339), ports.ErrInvalidOrdering)
	}
	if !b.started {
		b.started = true
		b.next = t
		b.last = t
	}
	if t.Before(b.last) {
		return fmt.Errorf("event at %s precedes last event %s: %w",
			t.Format(time.RFC3339), b.last.Format(time.RFC3339), ports.ErrInvalidOrdering)
	}
	for b.next.Before(t) {
		b.emit()
	}
	b.last = t
	return nil
}

func (b *EquityCurveBuilder) emit() {
	b.points = append(b.points, domain.EquityPoint{Timestamp: b.next, Value: b.Equity()})
	b.next = b.next.Add(b.cadence)
}
