package strategies

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

// SignalAction is what a strategy wants to do at a kline.
type SignalAction int

const (
	Hold SignalAction = iota
	GoLong
	GoShort
	Close
)

func (a SignalAction) String() string {
	switch a {
	case GoLong:
		return "GoLong"
	case GoShort:
		return "GoShort"
	case Close:
		return "Close"
	default:
		return "Hold"
	}
}

// Signal is a strategy decision. Confidence is in [0,1]. A zero StopPrice
// leaves the stop to the risk manager.
type Signal struct {
	Action     SignalAction
	Confidence float64
	StopPrice  decimal.Decimal
}

// Side returns the position side a GoLong or GoShort signal asks for.
func (s Signal) Side() (domain.Side, bool) {
	switch s.Action {
	case GoLong:
		return domain.SideLong, true
	case GoShort:
		return domain.SideShort, true
	}
	return "", false
}

// Strategy defines the interface for trading strategies
type Strategy interface {
	// Prepare precomputes indicators over the full kline history
	Prepare(ctx context.Context, klines []domain.Kline) error

	// Assess returns the signal at the close of kline i. position is the open
	// position, or nil when flat.
	Assess(i int, position *domain.Position) Signal

	// RequiredDataPoints returns the minimum number of klines needed for the strategy
	RequiredDataPoints() int

	// Name returns the name of the strategy
	Name() string
}

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	logger ports.Logger
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(logger ports.Logger) *BaseStrategy {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &BaseStrategy{
		logger: logger,
	}
}

// Factory builds a strategy from a sweep parameter set.
type Factory func(params domain.ParameterSet, logger ports.Logger) (Strategy, error)

var registry = map[string]Factory{
	MACrossoverName: func(params domain.ParameterSet, logger ports.Logger) (Strategy, error) {
		return NewMACrossover(MACrossoverConfigFromParams(params), logger)
	},
}

// New creates the named strategy.
func New(name string, params domain.ParameterSet, logger ports.Logger) (Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v): %w", name, Names(), ports.ErrInvalidConfiguration)
	}
	return factory(params, logger)
}

// Names lists the registered strategies.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
