package utils

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

var (
	klineHeader   = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}
	fundingHeader = []string{"funding_time", "symbol", "rate"}
)

// WriteKlinesToCSV writes klines to filename with a header row. Decimals keep their exact text form.
func WriteKlinesToCSV(klines []domain.Kline, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteKlines(file, klines)
}

// WriteKlines writes klines as CSV to w.
func WriteKlines(w io.Writer, klines []domain.Kline) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(klineHeader); err != nil {
		return err
	}
	for _, k := range klines {
		if err := writer.Write([]string{
			k.OpenTime.UTC().Format(time.RFC3339),
			k.CloseTime.UTC().Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			k.Open.String(),
			k.High.String(),
			k.Low.String(),
			k.Close.String(),
			k.Volume.String(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadKlinesFromCSV loads a file written by WriteKlinesToCSV.
func ReadKlinesFromCSV(filename string) ([]domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	klines, err := ReadKlines(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return klines, nil
}

// ReadKlines parses kline CSV from r. The header row is required.
func ReadKlines(r io.Reader) ([]domain.Kline, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(klineHeader)

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var klines []domain.Kline
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		k, err := parseKline(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

func parseKline(rec []string) (domain.Kline, error) {
	openTime, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return domain.Kline{}, fmt.Errorf("open_time: %w", err)
	}
	closeTime, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return domain.Kline{}, fmt.Errorf("close_time: %w", err)
	}
	var values [5]decimal.Decimal
	for i := range values {
		values[i], err = decimal.NewFromString(rec[4+i])
		if err != nil {
			return domain.Kline{}, fmt.Errorf("%s: %w", klineHeader[4+i], err)
		}
	}
	return domain.Kline{
		OpenTime:  openTime.UTC(),
		CloseTime: closeTime.UTC(),
		Symbol:    rec[2],
		Interval:  rec[3],
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// WriteFundingRatesToCSV writes funding events to filename.
func WriteFundingRatesToCSV(rates []domain.FundingRate, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(fundingHeader); err != nil {
		return err
	}
	for _, fr := range rates {
		if err := writer.Write([]string{fr.FundingTime.UTC().Format(time.RFC3339), fr.Symbol, fr.Rate.String()}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFundingRatesFromCSV loads a file written by WriteFundingRatesToCSV.
func ReadFundingRatesFromCSV(filename string) ([]domain.FundingRate, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(fundingHeader)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("%s: read header: %w", filename, err)
	}

	var rates []domain.FundingRate
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		ft, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: funding_time: %w", filename, line, err)
		}
		rate, err := decimal.NewFromString(rec[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: rate: %w", filename, line, err)
		}
		rates = append(rates, domain.FundingRate{Symbol: rec[1], Rate: rate, FundingTime: ft.UTC()})
	}
	return rates, nil
}

// CSVSource serves backtest inputs from local CSV files.
// FundingPath is optional; without it no funding is applied.
type CSVSource struct {
	KlinePath   string
	FundingPath string
}

var _ ports.MarketDataSource = (*CSVSource)(nil)

// GetKlinesRange returns the file's klines for symbol/interval with open time in [start, end].
// A zero start or end leaves that side unbounded.
func (s *CSVSource) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Kline, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}
	all, err := ReadKlinesFromCSV(s.KlinePath)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Kline, 0, len(all))
	for _, k := range all {
		if (symbol != "" && k.Symbol != symbol) || (interval != "" && k.Interval != interval) {
			continue
		}
		if inRange(k.OpenTime, start, end) {
			out = append(out, k)
		}
	}
	return out, nil
}

// GetFundingRates returns the funding events of symbol in [start, end], or nothing without a funding file.
func (s *CSVSource) GetFundingRates(ctx context.Context, symbol string, start, end time.Time) ([]domain.FundingRate, error) {
	if s.FundingPath == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}
	all, err := ReadFundingRatesFromCSV(s.FundingPath)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FundingRate, 0, len(all))
	for _, fr := range all {
		if (symbol == "" || fr.Symbol == symbol) && inRange(fr.FundingTime, start, end) {
			out = append(out, fr)
		}
	}
	return out, nil
}

func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
