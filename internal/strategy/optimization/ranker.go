package optimization

import (
	"fmt"
	"sort"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// RunResult is the outcome of a single sweep member.
type RunResult struct {
	RunID      int64
	Parameters domain.ParameterSet
	Report     *domain.PerformanceReport
	BacktestID *int64
	Err        error

	// abandoned marks runs interrupted by cancellation. They are neither ranked nor failed.
	abandoned bool
}

// RankerConfig holds configuration for the ranker
type RankerConfig struct {
	TopN      int
	Score     ScoreFunc
	MinTrades int
}

// Ranker turns run results into an ordered Top-N plus the list of failures.
type Ranker struct {
	topN      int
	score     ScoreFunc
	minTrades int
}

// NewRanker validates cfg and creates a ranker. A nil Score selects the default scorer.
func NewRanker(cfg RankerConfig) (*Ranker, error) {
	if cfg.TopN < 1 {
		return nil, fmt.Errorf("top N %d must be at least 1: %w", cfg.TopN, ports.ErrInvalidConfiguration)
	}
	if cfg.MinTrades < 0 {
		return nil, fmt.Errorf("minimum trades %d cannot be negative: %w", cfg.MinTrades, ports.ErrInvalidConfiguration)
	}
	score := cfg.Score
	if score == nil {
		score = NetPnLPercentageScore
	}
	return &Ranker{topN: cfg.TopN, score: score, minTrades: cfg.MinTrades}, nil
}

// Rank orders results and returns the Top-N and the failures sorted by run id.
// Reports are copied; the returned runs share no state with results.
func (r *Ranker) Rank(results []RunResult) ([]domain.RankedRun, []domain.FailedRun) {
	p := r.newPartial()
	for _, res := range results {
		p.add(res)
	}
	return p.top.Ranked(), p.sortedFailures()
}

// partial is the ranking state owned by one worker.
type partial struct {
	ranker    *Ranker
	top       *TopK
	failed    []domain.FailedRun
	completed int
	filtered  int
}

func (r *Ranker) newPartial() *partial {
	return &partial{ranker: r, top: NewTopK(r.topN)}
}

func (p *partial) add(res RunResult) {
	if res.abandoned {
		return
	}
	p.completed++

	if res.Err == nil && res.Report == nil {
		res.Err = fmt.Errorf("run %d produced no report: %w", res.RunID, ports.ErrRunFailure)
	}
	if res.Err != nil {
		p.failed = append(p.failed, domain.FailedRun{
			RunID:      res.RunID,
			Parameters: res.Parameters.Clone(),
			ErrorKind:  ports.ErrorKind(res.Err),
			Message:    res.Err.Error(),
		})
		return
	}
	if res.Report.TotalTrades < p.ranker.minTrades {
		p.filtered++
		return
	}

	report := res.Report.Clone()
	report.RunID = res.RunID
	p.top.Offer(domain.RankedRun{
		Score:      p.ranker.score(report),
		Parameters: res.Parameters.Clone(),
		Report:     report,
		RunID:      res.RunID,
		BacktestID: res.BacktestID,
	})
}

func (p *partial) merge(other *partial) {
	p.top.Merge(other.top)
	p.failed = append(p.failed, other.failed...)
	p.completed += other.completed
	p.filtered += other.filtered
}

func (p *partial) sortedFailures() []domain.FailedRun {
	out := make([]domain.FailedRun, len(p.failed))
	copy(out, p.failed)
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out
}

// mergePartials reduces per-worker state pairwise until one remains.
func mergePartials(parts []*partial) *partial {
	if len(parts) == 0 {
		return nil
	}
	for len(parts) > 1 {
		next := make([]*partial, 0, (len(parts)+1)/2)
		for i := 0; i < len(parts); i += 2 {
			if i+1 < len(parts) {
				parts[i].merge(parts[i+1])
			}
			next = append(next, parts[i])
		}
		parts = next
	}
	return parts[0]
}
