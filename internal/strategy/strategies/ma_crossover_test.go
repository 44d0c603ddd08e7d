package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

func vKlines(prices ...float64) []domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Kline, len(prices))
	for i, p := range prices {
		v := decimal.NewFromFloat(p)
		out[i] = domain.Kline{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     v,
			High:     v.Add(decimal.NewFromFloat(0.5)),
			Low:      v.Sub(decimal.NewFromFloat(0.5)),
			Close:    v,
		}
	}
	return out
}

var vShape = []float64{20, 19, 18, 17, 16, 15, 16, 17, 18, 19, 20, 19, 18, 17, 16, 15}

func TestNewMACrossover(t *testing.T) {
	tests := []struct {
		name        string
		config      MACrossoverConfig
		expectError bool
	}{
		{"Valid configuration", MACrossoverConfig{FastMAPeriod: 5, SlowMAPeriod: 20, RSIPeriod: 14, BaseConfidence: 0.8, ATRPeriod: 14}, false},
		{"Fast not below slow", MACrossoverConfig{FastMAPeriod: 20, SlowMAPeriod: 20, RSIPeriod: 14, BaseConfidence: 0.8, ATRPeriod: 14}, true},
		{"Invalid period", MACrossoverConfig{FastMAPeriod: 0, SlowMAPeriod: 20, RSIPeriod: 14, BaseConfidence: 0.8, ATRPeriod: 14}, true},
		{"Confidence above one", MACrossoverConfig{FastMAPeriod: 5, SlowMAPeriod: 20, RSIPeriod: 14, BaseConfidence: 1.5, ATRPeriod: 14}, true},
		{"Negative ATR multiplier", MACrossoverConfig{FastMAPeriod: 5, SlowMAPeriod: 20, RSIPeriod: 14, BaseConfidence: 0.8, ATRPeriod: 14, ATRMultiplier: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMACrossover(tt.config, nil)
			if tt.expectError {
				assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMACrossover_Assess(t *testing.T) {
	s, err := NewMACrossover(MACrossoverConfig{FastMAPeriod: 2, SlowMAPeriod: 4, RSIPeriod: 3, BaseConfidence: 0.8, ATRPeriod: 3}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Prepare(context.Background(), vKlines(vShape...)))

	signals := make(map[int]Signal)
	for i := range vShape {
		if sig := s.Assess(i, nil); sig.Action != Hold {
			signals[i] = sig
		}
	}
	require.Len(t, signals, 2)
	assert.Equal(t, GoLong, signals[7].Action)
	assert.Equal(t, GoShort, signals[12].Action)

	for _, sig := range signals {
		assert.Greater(t, sig.Confidence, 0.4)
		assert.LessOrEqual(t, sig.Confidence, 0.8)
		assert.True(t, sig.StopPrice.IsZero())
	}
	// Rallying RSI strengthens the long signal.
	assert.Greater(t, signals[7].Confidence, 0.6)
}

func TestMACrossover_HoldsWhenAlreadyPositioned(t *testing.T) {
	s, err := NewMACrossover(MACrossoverConfig{FastMAPeriod: 2, SlowMAPeriod: 4, RSIPeriod: 3, BaseConfidence: 0.8, ATRPeriod: 3}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Prepare(context.Background(), vKlines(vShape...)))

	long := &domain.Position{Side: domain.SideLong}
	assert.Equal(t, Hold, s.Assess(7, long).Action)
	assert.Equal(t, GoShort, s.Assess(12, long).Action)
}

func TestMACrossover_ATRStop(t *testing.T) {
	s, err := NewMACrossover(MACrossoverConfig{FastMAPeriod: 2, SlowMAPeriod: 4, RSIPeriod: 3, BaseConfidence: 0.8, ATRPeriod: 3, ATRMultiplier: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Prepare(context.Background(), vKlines(vShape...)))

	long := s.Assess(7, nil)
	require.Equal(t, GoLong, long.Action)
	assert.True(t, long.StopPrice.LessThan(decimal.NewFromInt(17)))
	assert.True(t, long.StopPrice.IsPositive())

	short := s.Assess(12, nil)
	require.Equal(t, GoShort, short.Action)
	assert.True(t, short.StopPrice.GreaterThan(decimal.NewFromInt(18)))
}

func TestNew_Registry(t *testing.T) {
	s, err := New(MACrossoverName, domain.ParameterSet{ParamFastPeriod: 5, ParamSlowPeriod: 30}, nil)
	require.NoError(t, err)
	assert.Equal(t, MACrossoverName, s.Name())
	assert.Equal(t, 31, s.RequiredDataPoints())

	_, err = New("grid_bot", nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
	assert.Contains(t, Names(), MACrossoverName)
}
