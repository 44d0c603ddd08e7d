package indicators

import (
	"context"
	"fmt"
	"math"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the indicator value at the last kline
	Calculate(ctx context.Context, klines []domain.Kline) (float64, error)

	// Series computes the indicator at every kline. Values inside the warm-up
	// window are NaN.
	Series(ctx context.Context, klines []domain.Kline) ([]float64, error)

	// RequiredDataPoints returns the minimum number of klines needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

func (c IndicatorConfig) validate(name string) error {
	if c.Period < 1 {
		return fmt.Errorf("%s period %d must be at least 1: %w", name, c.Period, ports.ErrInvalidConfiguration)
	}
	return nil
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of klines needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// lastValue computes the series and returns its final element.
func lastValue(ctx context.Context, ind Indicator, klines []domain.Kline) (float64, error) {
	if len(klines) < ind.RequiredDataPoints() {
		return 0, fmt.Errorf("not enough data (%d) to calculate %s, need %d", len(klines), ind.Name(), ind.RequiredDataPoints())
	}
	series, err := ind.Series(ctx, klines)
	if err != nil {
		return 0, err
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return 0, fmt.Errorf("%s is undefined at the last kline", ind.Name())
	}
	return v, nil
}

func closes(klines []domain.Kline) []float64 {
	out := make([]float64, len(klines))
	for i := range klines {
		out[i] = klines[i].Close.InexactFloat64()
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
