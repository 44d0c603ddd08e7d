package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AllanBico/atlas/config"
	"github.com/AllanBico/atlas/internal/adapters/binanceclient"
	"github.com/AllanBico/atlas/internal/adapters/logger"
	"github.com/AllanBico/atlas/internal/adapters/postgres"
	"github.com/AllanBico/atlas/internal/adapters/sqlite"
	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/stream"
	"github.com/AllanBico/atlas/internal/utils"
)

var (
	// Global flags
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Backtest analytics and parameter sweep ranking",
	Long: `Atlas runs strategy backtests over historical futures klines, computes
performance reports and ranks parameter sweeps.

Examples:
  atlas fetch-klines --symbol BTCUSDT --interval 1h --start 2024-01-01 --end 2024-06-30
  atlas backtest --csv data/BTCUSDT_1h.csv --param fast_period=9 --param slow_period=21
  atlas optimize --csv data/BTCUSDT_1h.csv --range fast_period=5:20:1 --range slow_period=20:60:5
  atlas serve
  atlas watch`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (text|json|console)")
}

// setup loads the configuration and builds the logger, applying flag overrides.
func setup() (*config.Config, ports.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logger.ParseLevel(logLevel)
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, logger.New(cfg.LogLevel.String(), cfg.LogFormat), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore opens the configured report store and applies its schema.
func openStore(ctx context.Context, cfg *config.Config, log ports.Logger) (ports.ReportStore, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewReportStore(pool, log), nil
	default:
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}

// marketData reads klines from csvPath when set and from Binance otherwise.
func marketData(cfg *config.Config, log ports.Logger, csvPath, fundingPath string) (ports.MarketDataSource, error) {
	if csvPath != "" {
		return &utils.CSVSource{KlinePath: csvPath, FundingPath: fundingPath}, nil
	}
	client, err := newBinanceClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newBinanceClient(cfg *config.Config, log ports.Logger) (*binanceclient.Client, error) {
	return binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		RequestsPerSecond: cfg.KlineRequestsPerSecond,
		Logger:            log,
	})
}

// startStreamServer serves hub on addr until the returned stop function is called.
func startStreamServer(addr string, hub *stream.Hub, log ports.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info(context.Background(), "Streaming events", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(context.Background(), err, "Stream server stopped")
		}
	}()

	return func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// parseDate accepts 2006-01-02 or RFC3339. An empty string is the zero time.
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339): %w", v, ports.ErrInvalidRequest)
	}
	return t.UTC(), nil
}

// parseParams turns name=value pairs into a parameter set.
func parseParams(pairs []string) (domain.ParameterSet, error) {
	params := domain.ParameterSet{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (want name=value): %w", pair, ports.ErrInvalidRequest)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for parameter %s: %w", name, ports.ErrInvalidRequest)
		}
		params[strings.TrimSpace(name)] = v
	}
	return params, nil
}

// exchangeWindow fills the end of a Binance download with now. Exchange
// downloads need an explicit start; CSV files may leave both bounds open.
func exchangeWindow(csvPath string, start time.Time, end *time.Time) error {
	if csvPath != "" {
		return nil
	}
	if start.IsZero() {
		return fmt.Errorf("--start is required when reading from Binance: %w", ports.ErrInvalidRequest)
	}
	if end.IsZero() {
		*end = time.Now().UTC()
	}
	return nil
}
