package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

func curveOf(t *testing.T, step time.Duration, values ...int64) *EquityCurve {
	t.Helper()
	points := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		points[i] = domain.EquityPoint{Timestamp: baseTime.Add(time.Duration(i) * step), Value: decimal.NewFromInt(v)}
	}
	c, err := NewEquityCurve(points)
	require.NoError(t, err)
	return c
}

func TestNewEquityCurve_RejectsUnorderedPoints(t *testing.T) {
	points := []domain.EquityPoint{
		{Timestamp: baseTime, Value: decimal.NewFromInt(100)},
		{Timestamp: baseTime, Value: decimal.NewFromInt(101)},
	}
	_, err := NewEquityCurve(points)
	assert.ErrorIs(t, err, ports.ErrInvalidOrdering)
}

func TestEquityCurve_Accessors(t *testing.T) {
	c := curveOf(t, time.Hour, 100, 110, 105)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2*time.Hour, c.Span())

	final, ok := c.Final()
	require.True(t, ok)
	assert.True(t, final.Equal(decimal.NewFromInt(105)))

	empty, err := NewEquityCurve(nil)
	require.NoError(t, err)
	_, ok = empty.Final()
	assert.False(t, ok)
	assert.Equal(t, time.Duration(0), empty.Span())
}

func TestNewEquityCurveBuilder_InvalidConfiguration(t *testing.T) {
	_, err := NewEquityCurveBuilder(decimal.Zero, time.Hour)
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)

	_, err = NewEquityCurveBuilder(decimal.NewFromInt(1000), 0)
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
}

func TestEquityCurveBuilder_SamplesAtCadence(t *testing.T) {
	b, err := NewEquityCurveBuilder(decimal.NewFromInt(1000), time.Hour)
	require.NoError(t, err)
	require.NoError(t, b.Start(baseTime))

	// Position opens and moves against us during the first hour.
	require.NoError(t, b.MarkToMarket(baseTime.Add(30*time.Minute), decimal.NewFromInt(-20)))
	// Closed at a profit halfway through the third hour.
	require.NoError(t, b.Realize(baseTime.Add(150*time.Minute), decimal.NewFromInt(50)))
	require.NoError(t, b.MarkToMarket(baseTime.Add(150*time.Minute), decimal.Zero))
	require.NoError(t, b.AccrueFunding(baseTime.Add(4*time.Hour), decimal.NewFromInt(-5)))

	curve, err := b.Finish(baseTime.Add(4 * time.Hour))
	require.NoError(t, err)

	points := curve.Points()
	require.Len(t, points, 5)
	want := []int64{1000, 980, 980, 1050, 1045}
	for i, p := range points {
		assert.Equal(t, baseTime.Add(time.Duration(i)*time.Hour), p.Timestamp)
		assert.True(t, p.Value.Equal(decimal.NewFromInt(want[i])), "point %d: got %s want %d", i, p.Value, want[i])
	}
	assert.True(t, curve.FundingPnL().Equal(decimal.NewFromInt(-5)))
	assert.True(t, b.Balance().Equal(decimal.NewFromInt(1045)))
}

func TestEquityCurveBuilder_RejectsOutOfOrderEvents(t *testing.T) {
	b, err := NewEquityCurveBuilder(decimal.NewFromInt(1000), time.Hour)
	require.NoError(t, err)
	require.NoError(t, b.Realize(baseTime.Add(2*time.Hour), decimal.NewFromInt(1)))

	err = b.Realize(baseTime.Add(time.Hour), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ports.ErrInvalidOrdering)

	_, err = b.Finish(baseTime.Add(3 * time.Hour))
	require.NoError(t, err)

	err = b.MarkToMarket(baseTime.Add(4*time.Hour), decimal.Zero)
	assert.ErrorIs(t, err, ports.ErrInvalidOrdering)
}

func TestEquityCurveBuilder_ClosingSampleOffGrid(t *testing.T) {
	b, err := NewEquityCurveBuilder(decimal.NewFromInt(1000), time.Hour)
	require.NoError(t, err)
	require.NoError(t, b.Start(baseTime))
	require.NoError(t, b.Realize(baseTime.Add(90*time.Minute), decimal.NewFromInt(50)))

	curve, err := b.Finish(baseTime.Add(90 * time.Minute))
	require.NoError(t, err)

	points := curve.Points()
	require.Len(t, points, 3)
	assert.Equal(t, baseTime.Add(time.Hour), points[1].Timestamp)
	assert.Equal(t, baseTime.Add(90*time.Minute), points[2].Timestamp)
	final, ok := curve.Final()
	require.True(t, ok)
	assert.True(t, final.Equal(b.Equity()), "final %s, builder %s", final, b.Equity())
	assert.True(t, final.Equal(decimal.NewFromInt(1050)))
}
