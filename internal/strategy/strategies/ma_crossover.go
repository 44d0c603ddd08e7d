package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/strategy/indicators"
)

// MACrossoverName is the registry name of the EMA crossover strategy.
const MACrossoverName = "ma_crossover"

// Parameter names understood by MACrossoverConfigFromParams.
const (
	ParamFastPeriod    = "fast_period"
	ParamSlowPeriod    = "slow_period"
	ParamRSIPeriod     = "rsi_period"
	ParamConfidence    = "confidence"
	ParamATRPeriod     = "atr_period"
	ParamATRMultiplier = "atr_multiplier"
)

// MACrossoverConfig holds configuration for the MA crossover strategy
type MACrossoverConfig struct {
	FastMAPeriod   int     // Fast EMA period (e.g., 9)
	SlowMAPeriod   int     // Slow EMA period (e.g., 21)
	RSIPeriod      int     // RSI period used to scale confidence (e.g., 14)
	BaseConfidence float64 // Confidence of a crossover before RSI scaling
	ATRPeriod      int     // ATR period for volatility stops (e.g., 14)
	ATRMultiplier  float64 // Stop distance in ATRs; 0 leaves the stop to the risk manager
}

// MACrossoverConfigFromParams reads a config from a parameter set, falling back to defaults.
func MACrossoverConfigFromParams(p domain.ParameterSet) MACrossoverConfig {
	return MACrossoverConfig{
		FastMAPeriod:   p.Int(ParamFastPeriod, 9),
		SlowMAPeriod:   p.Int(ParamSlowPeriod, 21),
		RSIPeriod:      p.Int(ParamRSIPeriod, 14),
		BaseConfidence: p.Float(ParamConfidence, 0.8),
		ATRPeriod:      p.Int(ParamATRPeriod, 14),
		ATRMultiplier:  p.Float(ParamATRMultiplier, 0),
	}
}

// MACrossover goes long when the fast EMA crosses above the slow EMA and short
// on the opposite cross. Confidence grows with RSI momentum in the direction
// of the trade.
type MACrossover struct {
	*BaseStrategy
	config MACrossoverConfig
	fastMA *indicators.MovingAverage
	slowMA *indicators.MovingAverage
	rsi    *indicators.RSI
	atr    *indicators.ATR

	closes []float64
	fast   []float64
	slow   []float64
	rsiVal []float64
	atrVal []float64
}

// NewMACrossover creates a new MA crossover strategy instance
func NewMACrossover(config MACrossoverConfig, logger ports.Logger) (*MACrossover, error) {
	if config.FastMAPeriod >= config.SlowMAPeriod {
		return nil, fmt.Errorf("fast MA period %d must be less than slow MA period %d: %w",
			config.FastMAPeriod, config.SlowMAPeriod, ports.ErrInvalidConfiguration)
	}
	if config.BaseConfidence < 0 || config.BaseConfidence > 1 {
		return nil, fmt.Errorf("base confidence %.2f outside [0,1]: %w", config.BaseConfidence, ports.ErrInvalidConfiguration)
	}
	if config.ATRMultiplier < 0 {
		return nil, fmt.Errorf("ATR multiplier %.2f cannot be negative: %w", config.ATRMultiplier, ports.ErrInvalidConfiguration)
	}

	fastMA, err := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: config.FastMAPeriod},
		Type:            indicators.ExponentialMovingAverage,
	})
	if err != nil {
		return nil, err
	}
	slowMA, err := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: config.SlowMAPeriod},
		Type:            indicators.ExponentialMovingAverage,
	})
	if err != nil {
		return nil, err
	}
	rsi, err := indicators.NewRSI(indicators.RSIConfig{IndicatorConfig: indicators.IndicatorConfig{Period: config.RSIPeriod}})
	if err != nil {
		return nil, err
	}
	atr, err := indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: config.ATRPeriod}})
	if err != nil {
		return nil, err
	}

	return &MACrossover{
		BaseStrategy: NewBaseStrategy(logger),
		config:       config,
		fastMA:       fastMA,
		slowMA:       slowMA,
		rsi:          rsi,
		atr:          atr,
	}, nil
}

// Name returns the name of the strategy
func (s *MACrossover) Name() string {
	return MACrossoverName
}

// RequiredDataPoints returns the warm-up length: the longest indicator plus
// one kline to detect a cross.
func (s *MACrossover) RequiredDataPoints() int {
	n := s.slowMA.RequiredDataPoints()
	if r := s.rsi.RequiredDataPoints(); r > n {
		n = r
	}
	if s.config.ATRMultiplier > 0 && s.atr.RequiredDataPoints() > n {
		n = s.atr.RequiredDataPoints()
	}
	return n + 1
}

// Prepare computes the indicator series over klines.
func (s *MACrossover) Prepare(ctx context.Context, klines []domain.Kline) error {
	s.closes = make([]float64, len(klines))
	for i := range klines {
		s.closes[i] = klines[i].Close.InexactFloat64()
	}

	var err error
	if s.fast, err = s.fastMA.Series(ctx, klines); err != nil {
		return fmt.Errorf("fast EMA: %w", err)
	}
	if s.slow, err = s.slowMA.Series(ctx, klines); err != nil {
		return fmt.Errorf("slow EMA: %w", err)
	}
	if s.rsiVal, err = s.rsi.Series(ctx, klines); err != nil {
		return fmt.Errorf("RSI: %w", err)
	}
	if s.atrVal, err = s.atr.Series(ctx, klines); err != nil {
		return fmt.Errorf("ATR: %w", err)
	}
	s.logger.Debug(ctx, "Strategy indicators prepared", map[string]interface{}{
		"strategy": s.Name(),
		"klines":   len(klines),
		"fast":     s.config.FastMAPeriod,
		"slow":     s.config.SlowMAPeriod,
	})
	return nil
}

// Assess detects a crossover at kline i.
func (s *MACrossover) Assess(i int, position *domain.Position) Signal {
	if i < 1 || i >= len(s.fast) {
		return Signal{Action: Hold}
	}
	fast, slow := s.fast[i], s.slow[i]
	prevFast, prevSlow := s.fast[i-1], s.slow[i-1]
	if anyNaN(fast, slow, prevFast, prevSlow) {
		return Signal{Action: Hold}
	}

	var action SignalAction
	switch {
	case fast > slow && prevFast <= prevSlow:
		action = GoLong
	case fast < slow && prevFast >= prevSlow:
		action = GoShort
	default:
		return Signal{Action: Hold}
	}

	if position != nil {
		if (action == GoLong && position.Side == domain.SideLong) || (action == GoShort && position.Side == domain.SideShort) {
			return Signal{Action: Hold}
		}
	}

	sig := Signal{Action: action, Confidence: s.confidence(i, action)}
	if s.config.ATRMultiplier > 0 && !math.IsNaN(s.atrVal[i]) {
		sig.StopPrice = s.atrStop(i, action)
	}
	return sig
}

// confidence scales the base confidence into [base/2, base] by RSI momentum.
func (s *MACrossover) confidence(i int, action SignalAction) float64 {
	rsi := 50.0
	if !math.IsNaN(s.rsiVal[i]) {
		rsi = s.rsiVal[i]
	}
	momentum := rsi / 100
	if action == GoShort {
		momentum = 1 - momentum
	}
	return clamp01(s.config.BaseConfidence * (0.5 + momentum/2))
}

// atrStop places the stop ATRMultiplier ATRs from the close of kline i.
func (s *MACrossover) atrStop(i int, action SignalAction) decimal.Decimal {
	distance := s.atrVal[i] * s.config.ATRMultiplier
	price := s.closes[i]
	stop := price - distance
	if action == GoShort {
		stop = price + distance
	}
	if stop <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(stop)
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
