package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AllanBico/atlas/internal/app"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/strategy/strategies"
	"github.com/AllanBico/atlas/internal/stream"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a single backtest and store its report",
	Long: `Runs one backtest of a strategy, stores the run with its trades and equity
curve, and prints the performance report as JSON.

Market data comes from --csv when given, otherwise from Binance futures.

Example:
  atlas backtest --csv data/BTCUSDT_1h.csv --param fast_period=9 --param slow_period=21
  atlas backtest --symbol ETHUSDT --interval 4h --start 2024-01-01 --end 2024-03-31 --stream-addr :8081`,
	RunE: runBacktest,
}

var backtestFlags struct {
	strategy   string
	symbol     string
	interval   string
	start      string
	end        string
	csv        string
	fundingCSV string
	params     []string
	confidence bool
	streamAddr string
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVar(&backtestFlags.strategy, "strategy", strategies.MACrossoverName, fmt.Sprintf("strategy name %v", strategies.Names()))
	f.StringVar(&backtestFlags.symbol, "symbol", "", "symbol (default SYMBOL)")
	f.StringVar(&backtestFlags.interval, "interval", "", "kline interval (default INTERVAL)")
	f.StringVar(&backtestFlags.start, "start", "", "start date, YYYY-MM-DD or RFC3339")
	f.StringVar(&backtestFlags.end, "end", "", "end date, YYYY-MM-DD or RFC3339")
	f.StringVar(&backtestFlags.csv, "csv", "", "kline CSV file instead of Binance")
	f.StringVar(&backtestFlags.fundingCSV, "funding-csv", "", "funding rate CSV file")
	f.StringArrayVar(&backtestFlags.params, "param", nil, "strategy or risk parameter, name=value (repeatable)")
	f.BoolVar(&backtestFlags.confidence, "confidence", false, "include the confidence bucket breakdown")
	f.StringVar(&backtestFlags.streamAddr, "stream-addr", "", "serve live events on this address at /ws")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	start, err := parseDate(backtestFlags.start)
	if err != nil {
		return err
	}
	end, err := parseDate(backtestFlags.end)
	if err != nil {
		return err
	}
	if err := exchangeWindow(backtestFlags.csv, start, &end); err != nil {
		return err
	}
	params, err := parseParams(backtestFlags.params)
	if err != nil {
		return err
	}

	data, err := marketData(cfg, log, backtestFlags.csv, backtestFlags.fundingCSV)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var events ports.EventPublisher
	if backtestFlags.streamAddr != "" {
		hub := stream.NewHub(log, 0)
		stop := startStreamServer(backtestFlags.streamAddr, hub, log)
		defer stop()
		events = hub
	}

	svc, err := app.NewJobService(cfg, log, data, store, events)
	if err != nil {
		return err
	}

	out, err := svc.RunBacktest(ctx, app.BacktestRequest{
		StrategyName:      backtestFlags.strategy,
		Symbol:            backtestFlags.symbol,
		Interval:          backtestFlags.interval,
		StartDate:         start,
		EndDate:           end,
		Parameters:        params,
		IncludeConfidence: backtestFlags.confidence,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Report)
}
