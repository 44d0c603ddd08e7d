package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
)

// MarketDataSource provides the historical inputs of a backtest.
// This abstraction allows running against an exchange API or local files.
type MarketDataSource interface {
	// GetKlinesRange retrieves all klines for symbol/interval with open time in [start, end].
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Kline, error)

	// GetFundingRates retrieves funding events for symbol in [start, end].
	// Sources without funding data return an empty slice.
	GetFundingRates(ctx context.Context, symbol string, start, end time.Time) ([]domain.FundingRate, error)
}

// EventPublisher receives live-view events. Implementations must not block.
type EventPublisher interface {
	PublishLog(level, message string)
	PublishPortfolio(cash, totalValue decimal.Decimal, positions map[string]domain.Position)
	PublishExecution(exec domain.Execution)
}
