package indicators

import (
	"context"
	"fmt"

	"github.com/AllanBico/atlas/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) (*RSI, error) {
	if err := config.validate("RSI"); err != nil {
		return nil, err
	}
	if config.Overbought == 0 && config.Oversold == 0 {
		config.Overbought, config.Oversold = 70, 30
	}
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}, nil
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.Config.Period)
}

// RequiredDataPoints returns the minimum number of klines: one more than the
// period, since RSI works on price changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate returns the RSI at the last kline
func (r *RSI) Calculate(ctx context.Context, klines []domain.Kline) (float64, error) {
	return lastValue(ctx, r, klines)
}

// Series computes the RSI at every kline using Wilder's smoothing method
func (r *RSI) Series(ctx context.Context, klines []domain.Kline) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prices := closes(klines)
	out := nanSeries(len(prices))
	period := r.Config.Period
	if len(prices) <= period {
		return out, nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		if change := prices[i] - prices[i-1]; change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		gain, loss := 0.0, 0.0
		if change := prices[i] - prices[i-1]; change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // Neutral if no change
		}
		return 100
	}
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi > 100 {
		return 100
	} else if rsi < 0 {
		return 0
	}
	return rsi
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}
