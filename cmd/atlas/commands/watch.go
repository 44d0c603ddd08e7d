package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/AllanBico/atlas/internal/stream"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live events from a stream endpoint",
	Long: `Connects to a /ws endpoint and prints every event. The connection is
re-established with exponential backoff when it drops.

Example:
  atlas watch
  atlas watch --url ws://localhost:8081/ws`,
	RunE: runWatch,
}

var watchURL string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchURL, "url", "", "stream URL (default STREAM_URL)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if watchURL != "" {
		cfg.StreamURL = watchURL
	}
	ctx, cancel := signalContext()
	defer cancel()

	client, err := stream.NewClient(stream.ClientConfig{
		URL:            cfg.StreamURL,
		ReconnectDelay: cfg.ReconnectDelay,
		MaxAttempts:    cfg.MaxReconnectAttempts,
	}, func(msg stream.Message) { printEvent(os.Stdout, msg) }, log)
	if err != nil {
		return err
	}
	return client.Run(ctx)
}

func printEvent(out io.Writer, msg stream.Message) {
	switch m := msg.(type) {
	case stream.LogMessage:
		fmt.Fprintf(out, "%s %-5s %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.Level, m.Message)
	case stream.TradeExecuted:
		fmt.Fprintf(out, "TRADE %s %s %s @ %s fee %s\n", m.Symbol, m.Side, m.Quantity, m.Price, m.Fee)
	case stream.PortfolioUpdate:
		fmt.Fprintf(out, "PORTFOLIO cash %s total %s", m.Cash.StringFixed(2), m.TotalValue.StringFixed(2))
		symbols := make([]string, 0, len(m.OpenPositions))
		for s := range m.OpenPositions {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		for _, s := range symbols {
			p := m.OpenPositions[s]
			fmt.Fprintf(out, " | %s %s %s @ %s", s, p.Side, p.Quantity, p.EntryPrice)
		}
		fmt.Fprintln(out)
	}
}
