package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AllanBico/atlas/internal/domain"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored backtest runs or optimization jobs",
	Long: `Prints stored backtest runs, newest first, with their headline metrics.

Example:
  atlas runs
  atlas runs --job 3 --page 2 --page-size 20
  atlas runs --jobs`,
	RunE: runRuns,
}

var runsFlags struct {
	jobID    int64
	jobs     bool
	page     int
	pageSize int
}

func init() {
	rootCmd.AddCommand(runsCmd)

	f := runsCmd.Flags()
	f.Int64Var(&runsFlags.jobID, "job", 0, "only runs of this optimization job")
	f.BoolVar(&runsFlags.jobs, "jobs", false, "list optimization jobs instead of runs")
	f.IntVar(&runsFlags.page, "page", 1, "page number")
	f.IntVar(&runsFlags.pageSize, "page-size", 50, "rows per page")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	page := domain.PageRequest{Page: runsFlags.page, PageSize: runsFlags.pageSize}
	if runsFlags.jobs {
		jobs, total, err := store.ListOptimizationJobs(ctx, page)
		if err != nil {
			return err
		}
		return printJobs(os.Stdout, jobs, total, page)
	}

	var jobID *int64
	if runsFlags.jobID > 0 {
		jobID = &runsFlags.jobID
	}
	runs, total, err := store.ListBacktestRuns(ctx, page, jobID)
	if err != nil {
		return err
	}
	return printRuns(os.Stdout, runs, total, page)
}

func printRuns(out io.Writer, runs []domain.BacktestRunSummary, total int64, page domain.PageRequest) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tJOB\tSTRATEGY\tSYMBOL\tINTERVAL\tTRADES\tNET %\tMAX DD %\tSHARPE\tWIN %\tPARAMS")
	for _, r := range runs {
		job := "-"
		if r.JobID != nil {
			job = fmt.Sprint(*r.JobID)
		}
		sharpe := "n/a"
		if r.SharpeRatio != nil {
			sharpe = fmt.Sprintf("%.2f", *r.SharpeRatio)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t%s\t%.1f\t%s\n",
			r.ID, job, r.StrategyName, r.Symbol, r.Interval, r.TotalTrades,
			r.NetPnLPercentage, r.MaxDrawdownPercentage, sharpe, r.WinRate*100, r.Parameters)
	}
	fmt.Fprintf(w, "\npage %d, %d of %d runs\n", page.Page, len(runs), total)
	return w.Flush()
}

func printJobs(out io.Writer, jobs []domain.OptimizationJob, total int64, page domain.PageRequest) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTRATEGY\tSYMBOL\tINTERVAL\tRUNS\tSTATUS\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			j.ID, j.Name, j.StrategyName, j.Symbol, j.Interval, j.TotalRuns, j.Status,
			j.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "\npage %d, %d of %d jobs\n", page.Page, len(jobs), total)
	return w.Flush()
}
