package analytics

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// BucketRange is an inclusive range of signal confidence in whole percent.
type BucketRange struct {
	Min int
	Max int
}

// Label renders the range, e.g. "60-69".
func (b BucketRange) Label() string {
	return fmt.Sprintf("%d-%d", b.Min, b.Max)
}

// DefaultConfidenceBuckets splits confidence into a wide low band and four deciles.
var DefaultConfidenceBuckets = []BucketRange{
	{Min: 0, Max: 59},
	{Min: 60, Max: 69},
	{Min: 70, Max: 79},
	{Min: 80, Max: 89},
	{Min: 90, Max: 100},
}

func validateBuckets(buckets []BucketRange) error {
	for _, b := range buckets {
		if b.Min < 0 || b.Max > 100 || b.Min > b.Max {
			return fmt.Errorf("confidence bucket %s: %w", b.Label(), ports.ErrInvalidConfiguration)
		}
	}
	return nil
}

// confidenceBreakdown groups trades by signal confidence. Buckets keep the
// configured order; trades matching no bucket are left out.
func confidenceBreakdown(ledger *TradeLedger, ranges []BucketRange) []domain.ConfidenceBucket {
	out := make([]domain.ConfidenceBucket, len(ranges))
	wins := make([]int, len(ranges))
	for i, r := range ranges {
		out[i] = domain.ConfidenceBucket{Label: r.Label(), Min: r.Min, Max: r.Max, NetPnL: decimal.Zero}
	}

	ledger.each(func(t *domain.Trade) {
		pct := int(math.Floor(t.SignalConfidence*100 + 1e-9))
		for i, r := range ranges {
			if pct < r.Min || pct > r.Max {
				continue
			}
			out[i].TotalTrades++
			out[i].NetPnL = out[i].NetPnL.Add(t.PnL)
			if t.PnL.IsPositive() {
				wins[i]++
			}
			break
		}
	})

	for i := range out {
		if out[i].TotalTrades == 0 {
			continue
		}
		n := out[i].TotalTrades
		out[i].WinRate = float64(wins[i]) / float64(n)
		out[i].AvgPnL = decimal.NewNullDecimal(out[i].NetPnL.Div(decimal.NewFromInt(int64(n))))
	}
	return out
}
