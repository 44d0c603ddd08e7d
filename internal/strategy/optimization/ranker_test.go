package optimization

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

func result(id int64, netPct, dd float64, sharpe *float64) RunResult {
	return RunResult{
		RunID:      id,
		Parameters: domain.ParameterSet{"id": float64(id)},
		Report: &domain.PerformanceReport{
			NetPnLPercentage:      netPct,
			MaxDrawdownPercentage: dd,
			SharpeRatio:           sharpe,
			TotalTrades:           10,
		},
	}
}

func runIDs(runs []domain.RankedRun) []int64 {
	ids := make([]int64, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	return ids
}

func TestRanker_TieBreakOnDrawdown(t *testing.T) {
	r, err := NewRanker(RankerConfig{TopN: 2})
	require.NoError(t, err)

	top, failed := r.Rank([]RunResult{
		result(1, 10, 3, nil),
		result(2, 10, 1, nil),
		result(3, 5, 2, nil),
	})
	assert.Empty(t, failed)
	require.Len(t, top, 2)
	assert.Equal(t, 1.0, top[0].Report.MaxDrawdownPercentage)
	assert.Equal(t, 3.0, top[1].Report.MaxDrawdownPercentage)
	assert.Equal(t, []int64{2, 1}, runIDs(top))
}

func TestRanker_TieBreakOnSharpeThenRunID(t *testing.T) {
	r, err := NewRanker(RankerConfig{TopN: 5})
	require.NoError(t, err)

	top, _ := r.Rank([]RunResult{
		result(4, 10, 2, nil),
		result(3, 10, 2, domain.Float(0.5)),
		result(2, 10, 2, domain.Float(1.5)),
		result(1, 10, 2, nil),
	})
	assert.Equal(t, []int64{2, 3, 1, 4}, runIDs(top))
}

func TestRanker_FewerThanK(t *testing.T) {
	r, err := NewRanker(RankerConfig{TopN: 10})
	require.NoError(t, err)

	top, _ := r.Rank([]RunResult{result(1, 1, 0, nil), result(2, 3, 0, nil)})
	assert.Equal(t, []int64{2, 1}, runIDs(top))
}

func TestRanker_FailuresExcluded(t *testing.T) {
	r, err := NewRanker(RankerConfig{TopN: 3})
	require.NoError(t, err)

	bad := RunResult{RunID: 2, Parameters: domain.ParameterSet{"fast": 50}, Err: fmt.Errorf("wrap: %w", ports.ErrInvalidConfiguration)}
	crash := RunResult{RunID: 1, Parameters: domain.ParameterSet{"fast": 10}, Err: errors.New("executor exploded")}
	top, failed := r.Rank([]RunResult{result(3, 4, 1, nil), bad, crash})

	assert.Equal(t, []int64{3}, runIDs(top))
	require.Len(t, failed, 2)
	assert.Equal(t, int64(1), failed[0].RunID)
	assert.Equal(t, ports.KindRunFailure, failed[0].ErrorKind)
	assert.Equal(t, int64(2), failed[1].RunID)
	assert.Equal(t, ports.KindInvalidConfiguration, failed[1].ErrorKind)
	assert.Equal(t, 50.0, failed[1].Parameters["fast"])
}

func TestRanker_MinTrades(t *testing.T) {
	r, err := NewRanker(RankerConfig{TopN: 3, MinTrades: 5})
	require.NoError(t, err)

	few := result(1, 100, 0, nil)
	few.Report.TotalTrades = 2
	top, failed := r.Rank([]RunResult{few, result(2, 1, 0, nil)})
	assert.Equal(t, []int64{2}, runIDs(top))
	assert.Empty(t, failed)
}

func TestRanker_NaNScoresRankLast(t *testing.T) {
	score := func(rep *domain.PerformanceReport) float64 {
		if rep.NetPnLPercentage < 0 {
			return math.NaN()
		}
		return rep.NetPnLPercentage
	}
	r, err := NewRanker(RankerConfig{TopN: 3, Score: score})
	require.NoError(t, err)

	top, _ := r.Rank([]RunResult{result(1, -1, 0, nil), result(2, 0, 0, nil), result(3, 1, 0, nil)})
	assert.Equal(t, []int64{3, 2, 1}, runIDs(top))
}

func TestRanker_CopiesReports(t *testing.T) {
	r, err := NewRanker(RankerConfig{TopN: 1})
	require.NoError(t, err)

	in := result(7, 5, 1, domain.Float(2))
	top, _ := r.Rank([]RunResult{in})
	require.Len(t, top, 1)

	*in.Report.SharpeRatio = 99
	in.Report.NetPnLPercentage = -1
	in.Parameters["id"] = -1
	assert.Equal(t, 2.0, *top[0].Report.SharpeRatio)
	assert.Equal(t, 5.0, top[0].Report.NetPnLPercentage)
	assert.Equal(t, 7.0, top[0].Parameters["id"])
	assert.Equal(t, int64(7), top[0].Report.RunID)
}

func TestNewRanker_InvalidConfiguration(t *testing.T) {
	_, err := NewRanker(RankerConfig{TopN: 0})
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)

	_, err = NewRanker(RankerConfig{TopN: 1, MinTrades: -1})
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
}

func randomResults(rng *rand.Rand, n int) []RunResult {
	out := make([]RunResult, n)
	for i := range out {
		var sharpe *float64
		if rng.Intn(3) > 0 {
			sharpe = domain.Float(float64(rng.Intn(4)))
		}
		// Coarse values force plenty of ties.
		out[i] = result(int64(i+1), float64(rng.Intn(5)), float64(rng.Intn(3)), sharpe)
	}
	return out
}

func TestRanker_ShuffleInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	results := randomResults(rng, 200)
	r, err := NewRanker(RankerConfig{TopN: 15})
	require.NoError(t, err)

	want, _ := r.Rank(results)
	for i := 0; i < 20; i++ {
		shuffled := make([]RunResult, len(results))
		copy(shuffled, results)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, _ := r.Rank(shuffled)
		assert.Equal(t, runIDs(want), runIDs(got))
	}
}

func TestRanker_PartitionInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	results := randomResults(rng, 150)
	r, err := NewRanker(RankerConfig{TopN: 10})
	require.NoError(t, err)

	want, _ := r.Rank(results)
	for _, n := range []int{1, 2, 3, 7, 16} {
		parts := make([]*partial, n)
		for i := range parts {
			parts[i] = r.newPartial()
		}
		for _, res := range results {
			parts[rng.Intn(n)].add(res)
		}
		merged := mergePartials(parts)
		assert.Equal(t, runIDs(want), runIDs(merged.top.Ranked()), "partitions=%d", n)
		assert.Equal(t, len(results), merged.completed)
	}
}

func TestTopK_MergeCommutes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	results := randomResults(rng, 60)

	build := func(rs []RunResult) *TopK {
		k := NewTopK(5)
		for _, r := range rs {
			k.Offer(domain.RankedRun{Score: r.Report.NetPnLPercentage, Report: r.Report, RunID: r.RunID})
		}
		return k
	}
	a1, b1 := build(results[:30]), build(results[30:])
	a2, b2 := build(results[:30]), build(results[30:])
	a1.Merge(b1)
	b2.Merge(a2)
	assert.Equal(t, runIDs(a1.Ranked()), runIDs(b2.Ranked()))
	assert.Equal(t, 5, a1.Len())
}
