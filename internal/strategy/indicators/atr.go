package indicators

import (
	"context"
	"fmt"
	"math"

	"github.com/AllanBico/atlas/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) (*ATR, error) {
	if err := config.validate("ATR"); err != nil {
		return nil, err
	}
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}, nil
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.Config.Period)
}

// Calculate returns the ATR at the last kline
func (a *ATR) Calculate(ctx context.Context, klines []domain.Kline) (float64, error) {
	return lastValue(ctx, a, klines)
}

// Series computes the ATR at every kline. The first value is the simple average
// of the first period true ranges; later values use Wilder's smoothing.
func (a *ATR) Series(ctx context.Context, klines []domain.Kline) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	period := a.Config.Period
	out := nanSeries(len(klines))
	if len(klines) < period {
		return out, nil
	}

	atr := 0.0
	for i := range klines {
		tr := trueRange(klines, i)
		switch {
		case i < period-1:
			atr += tr
		case i == period-1:
			atr = (atr + tr) / float64(period)
			out[i] = atr
		default:
			atr = (atr*float64(period-1) + tr) / float64(period)
			out[i] = atr
		}
	}
	return out, nil
}

// trueRange is the greatest of high-low, |high-prev close| and |low-prev close|.
// The first kline has no previous close and uses high-low.
func trueRange(klines []domain.Kline, i int) float64 {
	high := klines[i].High.InexactFloat64()
	low := klines[i].Low.InexactFloat64()
	if i == 0 {
		return high - low
	}
	prevClose := klines[i-1].Close.InexactFloat64()
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}
