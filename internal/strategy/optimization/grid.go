package optimization

import (
	"fmt"
	"math"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// MaxGridPoints bounds the size of one axis and of the full cartesian grid.
const MaxGridPoints = 1_000_000

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string  `json:"name"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
	IsInt bool    `json:"is_int"`
}

// count is the number of steps from min to max inclusive, before integer rounding.
func (r ParameterRange) count() float64 {
	return math.Floor((r.Max-r.Min)/r.Step+1e-9) + 1
}

// values enumerates min, min+step, ... up to max inclusive.
func (r ParameterRange) values() []float64 {
	n := int(r.count())
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := r.Min + float64(i)*r.Step
		if r.IsInt {
			v = math.Round(v)
		}
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (r ParameterRange) validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("parameter range without name: %w", ports.ErrInvalidConfiguration)
	case math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsNaN(r.Step) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0):
		return fmt.Errorf("parameter %s: bounds must be finite: %w", r.Name, ports.ErrInvalidConfiguration)
	case r.Step <= 0:
		return fmt.Errorf("parameter %s: step %g must be positive: %w", r.Name, r.Step, ports.ErrInvalidConfiguration)
	case r.Max < r.Min:
		return fmt.Errorf("parameter %s: max %g below min %g: %w", r.Name, r.Max, r.Min, ports.ErrInvalidConfiguration)
	}
	if n := r.count(); math.IsInf(n, 0) || math.IsNaN(n) || n > MaxGridPoints {
		return fmt.Errorf("parameter %s: step %g yields more than %d values: %w", r.Name, r.Step, MaxGridPoints, ports.ErrInvalidConfiguration)
	}
	return nil
}

// Constraint reports whether a parameter combination is worth running.
type Constraint func(domain.ParameterSet) bool

// LessThan keeps combinations where parameter a is strictly below parameter b,
// e.g. a fast moving average shorter than the slow one.
func LessThan(a, b string) Constraint {
	return func(p domain.ParameterSet) bool {
		av, aok := p[a]
		bv, bok := p[b]
		return !aok || !bok || av < bv
	}
}

// Grid is the search space of an optimization job.
type Grid struct {
	Ranges      []ParameterRange
	Fixed       domain.ParameterSet
	Constraints []Constraint
}

// GridPoint is one parameter combination together with its run ordinal.
type GridPoint struct {
	RunID      int64
	Parameters domain.ParameterSet
}

// ExpandGrid generates all parameter combinations in lexicographic order of the
// ranges. Run ids are assigned 1..N after constraint filtering, so they depend only
// on the grid and never on execution order.
func ExpandGrid(g Grid) ([]GridPoint, error) {
	seen := make(map[string]bool, len(g.Ranges))
	for _, r := range g.Ranges {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("parameter %s declared twice: %w", r.Name, ports.ErrInvalidConfiguration)
		}
		seen[r.Name] = true
	}
	for name := range g.Fixed {
		if seen[name] {
			return nil, fmt.Errorf("parameter %s is both ranged and fixed: %w", name, ports.ErrInvalidConfiguration)
		}
	}

	total := 1.0
	for _, r := range g.Ranges {
		total *= r.count()
	}
	if total > MaxGridPoints {
		return nil, fmt.Errorf("parameter grid has %.0f combinations, limit is %d: %w", total, MaxGridPoints, ports.ErrInvalidConfiguration)
	}

	axes := make([][]float64, len(g.Ranges))
	for i, r := range g.Ranges {
		axes[i] = r.values()
	}

	var points []GridPoint
	current := g.Fixed.Clone()

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(g.Ranges) {
			combination := current.Clone()
			for _, keep := range g.Constraints {
				if !keep(combination) {
					return
				}
			}
			points = append(points, GridPoint{RunID: int64(len(points) + 1), Parameters: combination})
			return
		}
		for _, v := range axes[paramIndex] {
			current[g.Ranges[paramIndex].Name] = v
			generate(paramIndex + 1)
		}
	}
	generate(0)

	if len(points) == 0 {
		return nil, fmt.Errorf("parameter grid is empty after constraints: %w", ports.ErrInvalidConfiguration)
	}
	return points, nil
}
