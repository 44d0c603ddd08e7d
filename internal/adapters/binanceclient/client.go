package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	maxKlineLimit   = 1500 // Binance futures hard cap per klines request
	maxFundingLimit = 1000 // Binance futures hard cap per fundingRate request

	defaultRequestsPerSecond = 10
)

// Client implements ports.MarketDataSource against the Binance futures REST API.
type Client struct {
	futuresClient *futures.Client
	limiter       *rate.Limiter
	logger        ports.Logger
}

var _ ports.MarketDataSource = (*Client)(nil)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	BaseURL           string // Overrides the production/testnet URL when set
	RequestsPerSecond float64
	Logger            ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		// Historical klines and funding rates are public endpoints
		cfg.Logger.Debug(context.Background(), "Binance client created without API keys, public endpoints only")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	return &Client{
		futuresClient: client,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		logger:        cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature or API key
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrExchangeUnavailable
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		// Cancellation is the caller's choice, not worth an error log line
		return fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// wait blocks until the limiter admits one more request.
func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return c.handleError(ctx, ctx.Err(), op)
		}
		return c.handleError(ctx, err, op)
	}
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetKlinesRange fetches all klines for a symbol/interval with open time in [start, end],
// paging through the API 1500 klines at a time.
func (c *Client) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Kline, error) {
	op := "GetKlinesRange"
	if end.Before(start) {
		return nil, fmt.Errorf("%s: %w: end %s before start %s", op, ports.ErrInvalidRequest, end, start)
	}

	var allKlines []domain.Kline
	from := start
	for {
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			dk, err := translateBinanceKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline range: %w", err), op)
			}
			// Page boundaries may repeat the last kline
			if n := len(allKlines); n > 0 && !dk.OpenTime.After(allKlines[n-1].OpenTime) {
				continue
			}
			allKlines = append(allKlines, dk)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < maxKlineLimit {
			break
		}
	}

	c.logger.Debug(ctx, op+" completed", map[string]interface{}{"symbol": symbol, "interval": interval, "klines": len(allKlines)})
	return allKlines, nil
}

// GetFundingRates fetches the funding history of symbol in [start, end].
func (c *Client) GetFundingRates(ctx context.Context, symbol string, start, end time.Time) ([]domain.FundingRate, error) {
	op := "GetFundingRates"
	var all []domain.FundingRate
	from := start
	for {
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		rates, err := c.futuresClient.NewFundingRateService().
			Symbol(symbol).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxFundingLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(rates) == 0 {
			break
		}
		for _, fr := range rates {
			dr, err := translateFundingRate(fr)
			if err != nil {
				return nil, c.handleError(ctx, err, op)
			}
			all = append(all, dr)
		}
		from = time.UnixMilli(rates[len(rates)-1].FundingTime + 1)
		if from.After(end) || len(rates) < maxFundingLimit {
			break
		}
	}
	return all, nil
}

// --- Translation Helpers ---

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (domain.Kline, error) {
	if bk == nil {
		return domain.Kline{}, errors.New("received nil historical kline")
	}
	var fields [5]decimal.Decimal
	for i, raw := range []string{bk.Open, bk.High, bk.Low, bk.Close, bk.Volume} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Kline{}, fmt.Errorf("parsing kline value '%s': %w", raw, err)
		}
		fields[i] = d
	}

	return domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime).UTC(),
		CloseTime: time.UnixMilli(bk.CloseTime).UTC(),
		Symbol:    symbol,   // Use passed symbol as it's not in futures.Kline
		Interval:  interval, // Use passed interval
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

func translateFundingRate(fr *futures.FundingRate) (domain.FundingRate, error) {
	if fr == nil {
		return domain.FundingRate{}, errors.New("received nil funding rate")
	}
	r, err := decimal.NewFromString(fr.FundingRate)
	if err != nil {
		return domain.FundingRate{}, fmt.Errorf("parsing funding rate '%s': %w", fr.FundingRate, err)
	}
	return domain.FundingRate{
		Symbol:      fr.Symbol,
		Rate:        r,
		FundingTime: time.UnixMilli(fr.FundingTime).UTC(),
	}, nil
}
