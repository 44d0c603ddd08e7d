package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

const (
	// Crypto markets trade around the clock, so a year is 365 full days.
	secondsPerYear = 365 * 24 * 60 * 60

	// Standard deviations at or below this are treated as zero.
	zeroDeviation = 1e-12
)

var hundred = decimal.NewFromInt(100)

// MarginBasis selects how per-trade margin utilization is aggregated for LAROM.
type MarginBasis string

const (
	MarginBasisAverage MarginBasis = "average"
	MarginBasisPeak    MarginBasis = "peak"
)

// ParseMarginBasis converts a configuration value into a MarginBasis.
func ParseMarginBasis(v string) (MarginBasis, error) {
	switch MarginBasis(v) {
	case MarginBasisAverage, "":
		return MarginBasisAverage, nil
	case MarginBasisPeak:
		return MarginBasisPeak, nil
	default:
		return "", fmt.Errorf("unknown margin basis %q: %w", v, ports.ErrInvalidConfiguration)
	}
}

// RunMetadata carries the run-level inputs of the metrics calculation.
type RunMetadata struct {
	InitialCapital decimal.Decimal
	Symbol         string
	Interval       string

	// IncludeConfidence enables the confidence bucket breakdown.
	IncludeConfidence bool
	// ConfidenceBuckets overrides DefaultConfidenceBuckets when non-empty.
	ConfidenceBuckets []BucketRange
	MarginBasis       MarginBasis
}

// CalculatePerformance computes the performance report of one run.
// It is pure: identical inputs always produce identical reports.
func CalculatePerformance(ledger *TradeLedger, curve *EquityCurve, meta RunMetadata) (*domain.PerformanceReport, error) {
	if !meta.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("initial capital %s must be positive: %w", meta.InitialCapital, ports.ErrInvalidConfiguration)
	}
	buckets := meta.ConfidenceBuckets
	if len(buckets) == 0 {
		buckets = DefaultConfidenceBuckets
	}
	if meta.IncludeConfidence {
		if err := validateBuckets(buckets); err != nil {
			return nil, err
		}
	}

	report := &domain.PerformanceReport{
		TotalTrades: ledger.Len(),
		FundingPnL:  curve.FundingPnL(),
	}

	// Trade statistics
	var (
		realized      = decimal.Zero
		grossProfit   = decimal.Zero
		grossLoss     = decimal.Zero
		winning       int
		totalDuration time.Duration
	)
	ledger.each(func(t *domain.Trade) {
		realized = realized.Add(t.PnL)
		if t.PnL.IsPositive() {
			winning++
			grossProfit = grossProfit.Add(t.PnL)
		} else if t.PnL.IsNegative() {
			grossLoss = grossLoss.Add(t.PnL.Abs())
		}
		totalDuration += t.Duration()
	})

	report.NetPnLAbsolute = realized.Add(report.FundingPnL)
	report.NetPnLPercentage = report.NetPnLAbsolute.Div(meta.InitialCapital).Mul(hundred).InexactFloat64()

	if report.TotalTrades > 0 {
		n := int64(report.TotalTrades)
		report.WinRate = float64(winning) / float64(report.TotalTrades)
		report.Expectancy = decimal.NewNullDecimal(realized.Div(decimal.NewFromInt(n)))
		report.AvgTradeDurationSecs = int64((totalDuration / time.Duration(n)) / time.Second)
	}
	if grossLoss.IsPositive() {
		report.ProfitFactor = domain.Float(grossProfit.Div(grossLoss).InexactFloat64())
	}

	// Curve statistics
	points := curve.Points()
	dd := analyzeDrawdown(points)
	report.MaxDrawdownPercentage = dd.pct
	report.MaxDrawdownAbsolute = dd.abs
	report.DrawdownDurationSecs = int64(dd.duration / time.Second)

	returns := simpleReturns(points)
	factor := annualizationFactor(points)
	report.SharpeRatio = sharpeRatio(returns, factor, report.TotalTrades)
	report.SortinoRatio = sortinoRatio(returns, factor)

	if report.MaxDrawdownPercentage > 0 {
		annualized := report.NetPnLPercentage
		if span := curve.Span(); span > 0 {
			annualized = report.NetPnLPercentage * (secondsPerYear / span.Seconds())
		}
		report.CalmarRatio = domain.Float(annualized / report.MaxDrawdownPercentage)
	}

	report.Larom = larom(ledger, curve, meta, report.NetPnLAbsolute)

	if meta.IncludeConfidence {
		report.ConfidencePerformance = confidenceBreakdown(ledger, buckets)
	}

	return report, nil
}

type drawdownStats struct {
	pct      float64
	abs      decimal.Decimal
	duration time.Duration
}

// analyzeDrawdown walks the curve keeping a running peak. The duration runs from
// the peak of the deepest episode to its recovery, or to the end of the curve.
func analyzeDrawdown(points []domain.EquityPoint) drawdownStats {
	stats := drawdownStats{abs: decimal.Zero}
	if len(points) == 0 {
		return stats
	}

	peak := points[0].Value
	peakTime := points[0].Timestamp
	maxRatio := decimal.Zero
	maxIdx := -1
	var maxPeak decimal.Decimal
	var maxPeakTime time.Time

	for i, p := range points {
		if p.Value.GreaterThan(peak) {
			peak = p.Value
			peakTime = p.Timestamp
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		ratio := peak.Sub(p.Value).Div(peak)
		if ratio.GreaterThan(maxRatio) {
			maxRatio = ratio
			maxIdx = i
			maxPeak = peak
			maxPeakTime = peakTime
			stats.abs = peak.Sub(p.Value)
		}
	}
	if maxIdx < 0 {
		return stats
	}

	end := points[len(points)-1].Timestamp
	for j := maxIdx + 1; j < len(points); j++ {
		if points[j].Value.GreaterThanOrEqual(maxPeak) {
			end = points[j].Timestamp
			break
		}
	}
	stats.duration = end.Sub(maxPeakTime)
	stats.pct = math.Min(maxRatio.Mul(hundred).InexactFloat64(), 100)
	return stats
}

// simpleReturns computes per-sample returns, skipping non-positive previous values.
func simpleReturns(points []domain.EquityPoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if !prev.IsPositive() {
			continue
		}
		returns = append(returns, points[i].Value.Sub(prev).Div(prev).InexactFloat64())
	}
	return returns
}

// annualizationFactor is the number of samples per year at the curve's median cadence.
func annualizationFactor(points []domain.EquityPoint) float64 {
	if len(points) < 2 {
		return 1
	}
	gaps := make([]time.Duration, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		gaps = append(gaps, points[i].Timestamp.Sub(points[i-1].Timestamp))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	mid := len(gaps) / 2
	median := gaps[mid]
	if len(gaps)%2 == 0 {
		median = (gaps[mid-1] + gaps[mid]) / 2
	}
	if median <= 0 {
		return 1
	}
	return secondsPerYear / median.Seconds()
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func sharpeRatio(returns []float64, factor float64, totalTrades int) *float64 {
	if totalTrades == 0 {
		return domain.Float(0)
	}
	mean, std := meanStd(returns)
	if std <= zeroDeviation {
		if mean == 0 {
			return domain.Float(0)
		}
		return nil
	}
	return domain.Float(mean / std * math.Sqrt(factor))
}

func sortinoRatio(returns []float64, factor float64) *float64 {
	var sumSq float64
	var negatives int
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			negatives++
		}
	}
	if negatives == 0 {
		return nil
	}
	downside := math.Sqrt(sumSq / float64(negatives))
	if downside <= zeroDeviation {
		return nil
	}
	mean, _ := meanStd(returns)
	return domain.Float(mean / downside * math.Sqrt(factor))
}

// larom is the log return on margin: ln(final/initial) divided by the margin
// utilization (margin posted as a fraction of initial capital).
func larom(ledger *TradeLedger, curve *EquityCurve, meta RunMetadata, net decimal.Decimal) *float64 {
	if ledger.Len() == 0 {
		return nil
	}
	final, ok := curve.Final()
	if !ok {
		final = meta.InitialCapital.Add(net)
	}
	if !final.IsPositive() {
		return nil
	}

	var sum, peak float64
	ledger.each(func(t *domain.Trade) {
		margin := t.Notional().Div(decimal.NewFromInt(int64(t.Leverage)))
		u := margin.Div(meta.InitialCapital).InexactFloat64()
		sum += u
		if u > peak {
			peak = u
		}
	})
	utilization := sum / float64(ledger.Len())
	if meta.MarginBasis == MarginBasisPeak {
		utilization = peak
	}
	if utilization <= 0 {
		return nil
	}
	logReturn := math.Log(final.Div(meta.InitialCapital).InexactFloat64())
	return domain.Float(logReturn / utilization)
}
