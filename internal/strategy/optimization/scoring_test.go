package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

func TestScorerByName(t *testing.T) {
	report := &domain.PerformanceReport{
		NetPnLPercentage:      12,
		MaxDrawdownPercentage: 20,
		SharpeRatio:           domain.Float(8),
		ProfitFactor:          domain.Float(1.5),
		CalmarRatio:           domain.Float(2),
	}

	tests := []struct {
		name string
		want float64
	}{
		{"", 12},
		{ScoreNetPnLPercentage, 12},
		{ScoreSharpeRatio, 8},
		{ScoreSortinoRatio, 0},
		{ScoreCalmarRatio, 2},
		{ScoreProfitFactor, 1.5},
		// 1.5*40 + min(8,5)*30 + 0.2*-35 + 2*15
		{ScoreWeighted, 60 + 150 - 7 + 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := ScorerByName(tt.name)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, fn(report), 1e-9)
		})
	}

	_, err := ScorerByName("alpha")
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
	assert.Contains(t, ScorerNames(), ScoreWeighted)
}
