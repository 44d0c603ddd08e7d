package optimization

import (
	"container/heap"
	"math"
	"sort"

	"github.com/AllanBico/atlas/internal/domain"
)

// Better reports whether a ranks ahead of b: higher score, then lower max
// drawdown, then higher Sharpe (undefined lowest), then lower run id.
// NaN scores rank after every number.
func Better(a, b *domain.RankedRun) bool {
	aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
	if aNaN != bNaN {
		return bNaN
	}
	if !aNaN && a.Score != b.Score {
		return a.Score > b.Score
	}

	aDD, bDD := drawdownOf(a), drawdownOf(b)
	if aDD != bDD {
		return aDD < bDD
	}

	aSharpe, bSharpe := sharpeOf(a), sharpeOf(b)
	switch {
	case aSharpe == nil && bSharpe != nil:
		return false
	case aSharpe != nil && bSharpe == nil:
		return true
	case aSharpe != nil && *aSharpe != *bSharpe:
		return *aSharpe > *bSharpe
	}

	return a.RunID < b.RunID
}

func drawdownOf(r *domain.RankedRun) float64 {
	if r.Report == nil {
		return math.Inf(1)
	}
	return r.Report.MaxDrawdownPercentage
}

func sharpeOf(r *domain.RankedRun) *float64 {
	if r.Report == nil {
		return nil
	}
	return r.Report.SharpeRatio
}

// rankHeap is a min-heap: the root is the worst retained run.
type rankHeap []domain.RankedRun

func (h rankHeap) Len() int           { return len(h) }
func (h rankHeap) Less(i, j int) bool { return Better(&h[j], &h[i]) }
func (h rankHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rankHeap) Push(x interface{}) {
	*h = append(*h, x.(domain.RankedRun))
}

func (h *rankHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK retains the k best runs offered to it. It is not safe for concurrent
// use; each sweep worker owns one and the partial heaps are merged afterwards.
type TopK struct {
	k     int
	items rankHeap
}

// NewTopK creates an empty bounded heap of capacity k.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, items: make(rankHeap, 0, k)}
}

// Len returns the number of retained runs.
func (t *TopK) Len() int {
	return len(t.items)
}

// Offer considers run for retention and reports whether it was kept.
func (t *TopK) Offer(run domain.RankedRun) bool {
	if t.k == 0 {
		return false
	}
	if len(t.items) < t.k {
		heap.Push(&t.items, run)
		return true
	}
	if !Better(&run, &t.items[0]) {
		return false
	}
	t.items[0] = run
	heap.Fix(&t.items, 0)
	return true
}

// Merge folds other into t. The result does not depend on merge order.
func (t *TopK) Merge(other *TopK) {
	if other == nil {
		return
	}
	for _, run := range other.items {
		t.Offer(run)
	}
}

// Ranked returns the retained runs best first.
func (t *TopK) Ranked() []domain.RankedRun {
	out := make([]domain.RankedRun, len(t.items))
	copy(out, t.items)
	sort.Slice(out, func(i, j int) bool { return Better(&out[i], &out[j]) })
	return out
}
