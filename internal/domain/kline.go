package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time       // Start time of the interval
	CloseTime time.Time       // End time of the interval
	Symbol    string          // Trading symbol
	Interval  string          // Kline interval (e.g., "1m", "1h")
	Open      decimal.Decimal // Opening price
	High      decimal.Decimal // Highest price
	Low       decimal.Decimal // Lowest price
	Close     decimal.Decimal // Closing price
	Volume    decimal.Decimal // Trading volume
}

// FundingRate is one perpetual-futures funding event.
type FundingRate struct {
	Symbol      string
	Rate        decimal.Decimal // Positive rates are paid by longs to shorts
	FundingTime time.Time
}

// IntervalDuration converts an exchange interval such as "15m", "4h" or "1d"
// into a duration. Calendar months are not supported.
func IntervalDuration(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unsupported interval unit in %q", interval)
	}
	return time.Duration(n) * unit, nil
}
