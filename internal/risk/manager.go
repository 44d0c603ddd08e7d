package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// ErrVetoed is returned when the risk manager refuses an entry.
var ErrVetoed = errors.New("order vetoed by risk manager")

// quantityPrecision is the number of decimal places kept on order quantities.
const quantityPrecision = 6

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	RiskPerTrade    decimal.Decimal // Fraction of equity risked per trade at full confidence (e.g., 0.01)
	StopLossPercent decimal.Decimal // Default stop distance as a fraction of entry price (e.g., 0.02)
	MinConfidence   float64         // Signals below this confidence are vetoed
	Leverage        int
	MaxLeverage     int
}

// OrderRequest is an approved entry.
type OrderRequest struct {
	Symbol     string
	Side       domain.Side
	Quantity   decimal.Decimal
	Leverage   int
	SLPrice    decimal.Decimal
	Confidence float64
}

// RiskManager sizes entries with a fixed fractional model: the amount at risk is
// equity times RiskPerTrade scaled by signal confidence, and the position is
// sized so that hitting the stop loses exactly that amount.
type RiskManager struct {
	config RiskConfig
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) (*RiskManager, error) {
	if config.MaxLeverage == 0 {
		config.MaxLeverage = 125
	}
	switch {
	case !config.RiskPerTrade.IsPositive() || config.RiskPerTrade.GreaterThan(decimal.NewFromInt(1)):
		return nil, fmt.Errorf("risk per trade %s must be in (0,1]: %w", config.RiskPerTrade, ports.ErrInvalidConfiguration)
	case !config.StopLossPercent.IsPositive() || config.StopLossPercent.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return nil, fmt.Errorf("stop loss %s must be in (0,1): %w", config.StopLossPercent, ports.ErrInvalidConfiguration)
	case config.MinConfidence < 0 || config.MinConfidence > 1:
		return nil, fmt.Errorf("minimum confidence %.2f outside [0,1]: %w", config.MinConfidence, ports.ErrInvalidConfiguration)
	case config.Leverage < 1 || config.Leverage > config.MaxLeverage:
		return nil, fmt.Errorf("leverage %d must be between 1 and %d: %w", config.Leverage, config.MaxLeverage, ports.ErrInvalidConfiguration)
	}
	return &RiskManager{config: config}, nil
}

// Evaluate approves and sizes an entry, or returns an error wrapping ErrVetoed.
// A zero stopPrice selects the configured percentage stop.
func (r *RiskManager) Evaluate(ctx context.Context, symbol string, side domain.Side, confidence float64,
	equity, price, stopPrice decimal.Decimal, open *domain.Position) (*OrderRequest, error) {
	if open != nil {
		return nil, fmt.Errorf("a %s position is already open for %s: %w", open.Side, symbol, ErrVetoed)
	}
	if confidence < r.config.MinConfidence {
		return nil, fmt.Errorf("signal confidence %.2f is below threshold %.2f: %w", confidence, r.config.MinConfidence, ErrVetoed)
	}
	if !equity.IsPositive() {
		return nil, fmt.Errorf("equity %s is exhausted: %w", equity, ErrVetoed)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("entry price %s must be positive: %w", price, ErrVetoed)
	}

	sl := stopPrice
	if !r.validStop(side, price, sl) {
		sl = r.GetStopLoss(ctx, price, side)
	}
	stopDistance := price.Sub(sl).Abs().Div(price)

	atRisk := equity.Mul(r.config.RiskPerTrade).Mul(decimal.NewFromFloat(confidence))
	notional := atRisk.Div(stopDistance)

	// Margin posted can never exceed equity.
	leverage := decimal.NewFromInt(int64(r.config.Leverage))
	if maxNotional := equity.Mul(leverage); notional.GreaterThan(maxNotional) {
		notional = maxNotional
	}

	qty := notional.Div(price).Truncate(quantityPrecision)
	if !qty.IsPositive() {
		return nil, fmt.Errorf("position size rounds to zero: %w", ErrVetoed)
	}

	return &OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Leverage:   r.config.Leverage,
		SLPrice:    sl,
		Confidence: confidence,
	}, nil
}

// GetStopLoss calculates the stop loss price for a position
func (r *RiskManager) GetStopLoss(ctx context.Context, entryPrice decimal.Decimal, side domain.Side) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == domain.SideLong {
		return entryPrice.Mul(one.Sub(r.config.StopLossPercent))
	}
	return entryPrice.Mul(one.Add(r.config.StopLossPercent))
}

// StopTriggered reports whether a kline's range touches the position's stop.
func StopTriggered(pos *domain.Position, k domain.Kline) bool {
	if pos == nil || pos.SLPrice.IsZero() {
		return false
	}
	if pos.Side == domain.SideLong {
		return k.Low.LessThanOrEqual(pos.SLPrice)
	}
	return k.High.GreaterThanOrEqual(pos.SLPrice)
}

func (r *RiskManager) validStop(side domain.Side, price, stop decimal.Decimal) bool {
	if !stop.IsPositive() {
		return false
	}
	if side == domain.SideLong {
		return stop.LessThan(price)
	}
	return stop.GreaterThan(price)
}
