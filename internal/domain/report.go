package domain

import (
	"github.com/shopspring/decimal"
)

// PerformanceReport is the canonical metric set of one backtest run.
// Ratio fields are nil when their denominator is degenerate.
type PerformanceReport struct {
	RunID int64 `json:"run_id"`

	// Tier 1
	NetPnLAbsolute        decimal.Decimal `json:"net_pnl_absolute"`
	NetPnLPercentage      float64         `json:"net_pnl_percentage"`
	MaxDrawdownAbsolute   decimal.Decimal `json:"max_drawdown_absolute"`
	MaxDrawdownPercentage float64         `json:"max_drawdown_percentage"`
	SharpeRatio           *float64        `json:"sharpe_ratio"`
	WinRate               float64         `json:"win_rate"`
	ProfitFactor          *float64        `json:"profit_factor"`
	TotalTrades           int             `json:"total_trades"`

	// Tier 2
	SortinoRatio         *float64            `json:"sortino_ratio"`
	CalmarRatio          *float64            `json:"calmar_ratio"`
	AvgTradeDurationSecs int64               `json:"avg_trade_duration_secs"`
	Expectancy           decimal.NullDecimal `json:"expectancy"`

	// Tier 3
	ConfidencePerformance []ConfidenceBucket `json:"confidence_performance,omitempty"`
	Larom                 *float64           `json:"larom"`
	FundingPnL            decimal.Decimal    `json:"funding_pnl"`
	DrawdownDurationSecs  int64              `json:"drawdown_duration_secs"`
}

// ConfidenceBucket aggregates trades whose signal confidence falls in [Min, Max] percent.
type ConfidenceBucket struct {
	Label       string              `json:"label"`
	Min         int                 `json:"min"`
	Max         int                 `json:"max"`
	TotalTrades int                 `json:"total_trades"`
	WinRate     float64             `json:"win_rate"`
	NetPnL      decimal.Decimal     `json:"net_pnl"`
	AvgPnL      decimal.NullDecimal `json:"avg_pnl"`
}

// Clone returns a deep copy so ranked results never share state with the run that produced them.
func (r *PerformanceReport) Clone() *PerformanceReport {
	if r == nil {
		return nil
	}
	c := *r
	c.SharpeRatio = cloneFloat(r.SharpeRatio)
	c.ProfitFactor = cloneFloat(r.ProfitFactor)
	c.SortinoRatio = cloneFloat(r.SortinoRatio)
	c.CalmarRatio = cloneFloat(r.CalmarRatio)
	c.Larom = cloneFloat(r.Larom)
	if r.ConfidencePerformance != nil {
		c.ConfidencePerformance = make([]ConfidenceBucket, len(r.ConfidencePerformance))
		copy(c.ConfidencePerformance, r.ConfidencePerformance)
	}
	return &c
}

// SharpeOrZero returns the Sharpe ratio, treating an undefined value as zero.
func (r *PerformanceReport) SharpeOrZero() float64 {
	return valueOrZero(r.SharpeRatio)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func valueOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Float returns a pointer to v. Used to build optional ratio fields.
func Float(v float64) *float64 {
	return &v
}
