package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// ScoreFunc maps a report to a ranking score. Higher is better.
type ScoreFunc func(*domain.PerformanceReport) float64

// Named scorers.
const (
	ScoreNetPnLPercentage = "net_pnl_percentage"
	ScoreSharpeRatio      = "sharpe_ratio"
	ScoreSortinoRatio     = "sortino_ratio"
	ScoreCalmarRatio      = "calmar_ratio"
	ScoreProfitFactor     = "profit_factor"
	ScoreWeighted         = "weighted"
)

// Weights of the multi-objective score.
const (
	profitFactorWeight = 40.0
	sharpeRatioWeight  = 30.0
	maxDrawdownWeight  = -35.0
	calmarRatioWeight  = 15.0

	// Caps keep a handful of lucky trades from dominating the score.
	profitFactorCap = 5.0
	sharpeRatioCap  = 5.0
)

var scorers = map[string]ScoreFunc{
	ScoreNetPnLPercentage: NetPnLPercentageScore,
	ScoreSharpeRatio:      func(r *domain.PerformanceReport) float64 { return orZero(r.SharpeRatio) },
	ScoreSortinoRatio:     func(r *domain.PerformanceReport) float64 { return orZero(r.SortinoRatio) },
	ScoreCalmarRatio:      func(r *domain.PerformanceReport) float64 { return orZero(r.CalmarRatio) },
	ScoreProfitFactor:     func(r *domain.PerformanceReport) float64 { return orZero(r.ProfitFactor) },
	ScoreWeighted:         WeightedScore,
}

// NetPnLPercentageScore is the default score.
func NetPnLPercentageScore(r *domain.PerformanceReport) float64 {
	return r.NetPnLPercentage
}

// WeightedScore combines profit factor, Sharpe, drawdown and Calmar into one score.
func WeightedScore(r *domain.PerformanceReport) float64 {
	pf := math.Min(orZero(r.ProfitFactor), profitFactorCap)
	sharpe := math.Min(orZero(r.SharpeRatio), sharpeRatioCap)
	drawdown := r.MaxDrawdownPercentage / 100.0

	return pf*profitFactorWeight +
		sharpe*sharpeRatioWeight +
		drawdown*maxDrawdownWeight +
		orZero(r.CalmarRatio)*calmarRatioWeight
}

// ScorerByName resolves a named scorer. An empty name selects the default.
func ScorerByName(name string) (ScoreFunc, error) {
	if name == "" {
		return NetPnLPercentageScore, nil
	}
	fn, ok := scorers[name]
	if !ok {
		return nil, fmt.Errorf("unknown score metric %q (available: %v): %w", name, ScorerNames(), ports.ErrInvalidConfiguration)
	}
	return fn, nil
}

// ScorerNames lists the registered scorers in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
