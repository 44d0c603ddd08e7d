package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/utils"
)

// fetchCmd represents the fetch-klines command
var fetchCmd = &cobra.Command{
	Use:   "fetch-klines",
	Short: "Download historical klines and funding rates to CSV",
	Long: `Downloads futures klines (paginated, 1500 per request) and funding rates
from Binance and writes them as CSV files usable with --csv and --funding-csv.

Example:
  atlas fetch-klines --symbol BTCUSDT --interval 1h --start 2024-01-01 --end 2024-06-30 --out data`,
	RunE: runFetch,
}

var fetchFlags struct {
	symbol   string
	interval string
	start    string
	end      string
	out      string
	funding  bool
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	f := fetchCmd.Flags()
	f.StringVar(&fetchFlags.symbol, "symbol", "", "symbol (default SYMBOL)")
	f.StringVar(&fetchFlags.interval, "interval", "", "kline interval (default INTERVAL)")
	f.StringVar(&fetchFlags.start, "start", "", "start date, YYYY-MM-DD or RFC3339 (required)")
	f.StringVar(&fetchFlags.end, "end", "", "end date, YYYY-MM-DD or RFC3339 (default now)")
	f.StringVar(&fetchFlags.out, "out", "data", "output directory")
	f.BoolVar(&fetchFlags.funding, "funding", true, "also download funding rates")
	_ = fetchCmd.MarkFlagRequired("start")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	symbol := strings.ToUpper(fetchFlags.symbol)
	if symbol == "" {
		symbol = cfg.Symbol
	}
	interval := fetchFlags.interval
	if interval == "" {
		interval = cfg.Interval
	}
	start, err := parseDate(fetchFlags.start)
	if err != nil {
		return err
	}
	end, err := parseDate(fetchFlags.end)
	if err != nil {
		return err
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	client, err := newBinanceClient(cfg, log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("binance unreachable: %w", err)
	}
	if err := os.MkdirAll(fetchFlags.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	stamp := fmt.Sprintf("%s_to_%s", start.Format("20060102"), end.Format("20060102"))
	klinePath := filepath.Join(fetchFlags.out, fmt.Sprintf("%s_%s_%s.csv", symbol, interval, stamp))
	if err := fetchKlines(ctx, client, log, symbol, interval, start, end, klinePath); err != nil {
		return err
	}
	fmt.Println(klinePath)

	if fetchFlags.funding {
		fundingPath := filepath.Join(fetchFlags.out, fmt.Sprintf("%s_funding_%s.csv", symbol, stamp))
		rates, err := client.GetFundingRates(ctx, symbol, start, end)
		if err != nil {
			return err
		}
		if err := utils.WriteFundingRatesToCSV(rates, fundingPath); err != nil {
			return err
		}
		log.Info(ctx, "Saved funding rates", map[string]interface{}{"path": fundingPath, "count": len(rates)})
		fmt.Println(fundingPath)
	}
	return nil
}

func fetchKlines(ctx context.Context, source ports.MarketDataSource, log ports.Logger, symbol, interval string, start, end time.Time, path string) error {
	klines, err := source.GetKlinesRange(ctx, symbol, interval, start, end)
	if err != nil {
		return err
	}
	if len(klines) == 0 {
		return fmt.Errorf("no klines for %s %s in range: %w", symbol, interval, ports.ErrNotFound)
	}
	if err := utils.WriteKlinesToCSV(klines, path); err != nil {
		return err
	}
	log.Info(ctx, "Saved klines", map[string]interface{}{
		"path":  path,
		"count": len(klines),
		"first": klines[0].OpenTime.Format(time.RFC3339),
		"last":  klines[len(klines)-1].OpenTime.Format(time.RFC3339),
	})
	return nil
}
