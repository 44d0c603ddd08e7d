package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AllanBico/atlas/internal/app"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/strategy/optimization"
	"github.com/AllanBico/atlas/internal/strategy/strategies"
	"github.com/AllanBico/atlas/internal/stream"
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Sweep a parameter grid and rank the runs",
	Long: `Expands a parameter grid, backtests every combination on a worker pool,
stores each run under a new optimization job and prints the ranked summary.

Ranges are name=min:max:step. A range whose bounds and step are whole
numbers is treated as an integer parameter. Ctrl-C stops the sweep and
stores the runs completed so far with status cancelled.

Example:
  atlas optimize --csv data/BTCUSDT_1h.csv \
    --range fast_period=5:20:1 --range slow_period=20:60:5 --fixed rsi_period=14 \
    --score sharpe_ratio --top-n 5`,
	RunE: runOptimize,
}

var optimizeFlags struct {
	name       string
	strategy   string
	symbol     string
	interval   string
	start      string
	end        string
	csv        string
	fundingCSV string
	ranges     []string
	fixed      []string
	workers    int
	topN       int
	score      string
	minTrades  int
	streamAddr string
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	f := optimizeCmd.Flags()
	f.StringVar(&optimizeFlags.name, "name", "", "job name")
	f.StringVar(&optimizeFlags.strategy, "strategy", strategies.MACrossoverName, fmt.Sprintf("strategy name %v", strategies.Names()))
	f.StringVar(&optimizeFlags.symbol, "symbol", "", "symbol (default SYMBOL)")
	f.StringVar(&optimizeFlags.interval, "interval", "", "kline interval (default INTERVAL)")
	f.StringVar(&optimizeFlags.start, "start", "", "start date, YYYY-MM-DD or RFC3339")
	f.StringVar(&optimizeFlags.end, "end", "", "end date, YYYY-MM-DD or RFC3339")
	f.StringVar(&optimizeFlags.csv, "csv", "", "kline CSV file instead of Binance")
	f.StringVar(&optimizeFlags.fundingCSV, "funding-csv", "", "funding rate CSV file")
	f.StringArrayVar(&optimizeFlags.ranges, "range", nil, "swept parameter, name=min:max:step (repeatable)")
	f.StringArrayVar(&optimizeFlags.fixed, "fixed", nil, "fixed parameter, name=value (repeatable)")
	f.IntVar(&optimizeFlags.workers, "workers", 0, "worker count (default OPTIMIZER_WORKERS, then CPU count)")
	f.IntVar(&optimizeFlags.topN, "top-n", 0, "ranked runs to keep (default TOP_N)")
	f.StringVar(&optimizeFlags.score, "score", "", fmt.Sprintf("score metric %v (default SCORE_METRIC)", optimization.ScorerNames()))
	f.IntVar(&optimizeFlags.minTrades, "min-trades", 0, "runs with fewer trades are not ranked (default MIN_TRADES)")
	f.StringVar(&optimizeFlags.streamAddr, "stream-addr", "", "serve job progress on this address at /ws")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	start, err := parseDate(optimizeFlags.start)
	if err != nil {
		return err
	}
	end, err := parseDate(optimizeFlags.end)
	if err != nil {
		return err
	}
	if err := exchangeWindow(optimizeFlags.csv, start, &end); err != nil {
		return err
	}
	ranges := make([]optimization.ParameterRange, 0, len(optimizeFlags.ranges))
	for _, raw := range optimizeFlags.ranges {
		r, err := parseRange(raw)
		if err != nil {
			return err
		}
		ranges = append(ranges, r)
	}
	fixed, err := parseParams(optimizeFlags.fixed)
	if err != nil {
		return err
	}

	data, err := marketData(cfg, log, optimizeFlags.csv, optimizeFlags.fundingCSV)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var events ports.EventPublisher
	if optimizeFlags.streamAddr != "" {
		hub := stream.NewHub(log, 0)
		stop := startStreamServer(optimizeFlags.streamAddr, hub, log)
		defer stop()
		events = hub
	}

	svc, err := app.NewJobService(cfg, log, data, store, events)
	if err != nil {
		return err
	}

	summary, err := svc.RunOptimization(ctx, app.OptimizationRequest{
		Name:         optimizeFlags.name,
		StrategyName: optimizeFlags.strategy,
		Symbol:       optimizeFlags.symbol,
		Interval:     optimizeFlags.interval,
		StartDate:    start,
		EndDate:      end,
		Ranges:       ranges,
		Fixed:        fixed,
		Workers:      optimizeFlags.workers,
		TopN:         optimizeFlags.topN,
		ScoreMetric:  optimizeFlags.score,
		MinTrades:    optimizeFlags.minTrades,
	})
	if summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(summary); encErr != nil && err == nil {
			err = encErr
		}
	}
	if errors.Is(err, ports.ErrContextCanceled) {
		fmt.Fprintln(os.Stderr, "optimization cancelled, partial results stored")
	}
	return err
}

// parseRange reads name=min:max:step.
func parseRange(raw string) (optimization.ParameterRange, error) {
	name, bounds, ok := strings.Cut(raw, "=")
	parts := strings.Split(bounds, ":")
	if !ok || name == "" || len(parts) != 3 {
		return optimization.ParameterRange{}, fmt.Errorf("invalid range %q (want name=min:max:step): %w", raw, ports.ErrInvalidRequest)
	}
	values := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return optimization.ParameterRange{}, fmt.Errorf("invalid range %q: %w", raw, ports.ErrInvalidRequest)
		}
		values[i] = v
	}
	isInt := true
	for _, v := range values {
		if v != math.Trunc(v) {
			isInt = false
		}
	}
	return optimization.ParameterRange{
		Name:  strings.TrimSpace(name),
		Min:   values[0],
		Max:   values[1],
		Step:  values[2],
		IsInt: isInt,
	}, nil
}
