package indicators

import (
	"context"
	"fmt"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators over closing prices
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) (*MovingAverage, error) {
	if err := config.validate(string(config.Type)); err != nil {
		return nil, err
	}
	if config.Type != SimpleMovingAverage && config.Type != ExponentialMovingAverage {
		return nil, fmt.Errorf("unsupported moving average type %q: %w", config.Type, ports.ErrInvalidConfiguration)
	}
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}, nil
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return fmt.Sprintf("%s(%d)", m.config.Type, m.Config.Period)
}

// Calculate returns the moving average at the last kline
func (m *MovingAverage) Calculate(ctx context.Context, klines []domain.Kline) (float64, error) {
	return lastValue(ctx, m, klines)
}

// Series computes the moving average at every kline
func (m *MovingAverage) Series(ctx context.Context, klines []domain.Kline) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prices := closes(klines)
	if m.config.Type == SimpleMovingAverage {
		return smaSeries(prices, m.Config.Period), nil
	}
	return emaSeries(prices, m.Config.Period), nil
}

func smaSeries(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	total := 0.0
	for i, p := range prices {
		total += p
		if i >= period {
			total -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = total / float64(period)
		}
	}
	return out
}

// emaSeries seeds the EMA with the SMA of the first period prices.
func emaSeries(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if len(prices) < period {
		return out
	}
	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for _, p := range prices[:period] {
		seed += p
	}
	ema := seed / float64(period)
	out[period-1] = ema

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}
