package backtesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/risk"
	"github.com/AllanBico/atlas/internal/strategy/analytics"
	"github.com/AllanBico/atlas/internal/strategy/strategies"
)

// Parameter names that override the risk configuration when present in a sweep point.
const (
	ParamRiskPerTrade  = "risk_per_trade"
	ParamStopLoss      = "stop_loss"
	ParamLeverage      = "leverage"
	ParamMinConfidence = "min_confidence"
)

// cancelCheckEvery is how many klines are simulated between context checks.
const cancelCheckEvery = 512

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	Symbol         string
	Interval       string
	StrategyName   string
	InitialCapital decimal.Decimal
	TakerFee       decimal.Decimal // Fraction of notional charged on every fill
	Slippage       decimal.Decimal // Adverse price move applied to every fill
	Risk           risk.RiskConfig
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	Ledger     *analytics.TradeLedger
	Curve      *analytics.EquityCurve
	Executions []domain.Execution
}

// Backtester replays historical klines through a strategy, a risk manager and a
// simulated taker-only exchange. It is safe for concurrent use: every Run keeps
// its state on the stack, and the kline history is only read.
type Backtester struct {
	config  BacktestConfig
	klines  []domain.Kline
	funding []domain.FundingRate
	cadence time.Duration
	logger  ports.Logger
	events  ports.EventPublisher
}

// NewBacktester validates the configuration and market data.
func NewBacktester(config BacktestConfig, klines []domain.Kline, funding []domain.FundingRate, logger ports.Logger) (*Backtester, error) {
	if !config.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("initial capital %s must be positive: %w", config.InitialCapital, ports.ErrInvalidConfiguration)
	}
	if config.TakerFee.IsNegative() || config.Slippage.IsNegative() {
		return nil, fmt.Errorf("fees and slippage cannot be negative: %w", ports.ErrInvalidConfiguration)
	}
	if len(klines) < 2 {
		return nil, fmt.Errorf("need at least 2 klines, got %d: %w", len(klines), ports.ErrInvalidConfiguration)
	}
	for i := 1; i < len(klines); i++ {
		if !klines[i].OpenTime.After(klines[i-1].OpenTime) {
			return nil, fmt.Errorf("kline %d opens at %s, not after %s: %w", i,
				klines[i].OpenTime.Format(time.RFC3339), klines[i-1].OpenTime.Format(time.RFC3339), ports.ErrInvalidOrdering)
		}
	}

	cadence, err := domain.IntervalDuration(config.Interval)
	if err != nil {
		cadence = klines[1].OpenTime.Sub(klines[0].OpenTime)
	}

	rates := make([]domain.FundingRate, len(funding))
	copy(rates, funding)
	sort.Slice(rates, func(i, j int) bool { return rates[i].FundingTime.Before(rates[j].FundingTime) })

	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Backtester{
		config:  config,
		klines:  klines,
		funding: rates,
		cadence: cadence,
		logger:  logger,
	}, nil
}

// SetEventPublisher streams executions and portfolio updates of subsequent runs.
func (b *Backtester) SetEventPublisher(events ports.EventPublisher) {
	b.events = events
}

// Execute builds the configured strategy from params and runs it. It satisfies
// the optimization executor contract.
func (b *Backtester) Execute(ctx context.Context, params domain.ParameterSet) (*analytics.TradeLedger, *analytics.EquityCurve, error) {
	strat, err := strategies.New(b.config.StrategyName, params, b.logger)
	if err != nil {
		return nil, nil, err
	}
	res, err := b.RunWithParams(ctx, strat, params)
	if err != nil {
		return nil, nil, err
	}
	return res.Ledger, res.Curve, nil
}

// Run backtests strat with the configured risk settings.
func (b *Backtester) Run(ctx context.Context, strat strategies.Strategy) (*BacktestResult, error) {
	return b.RunWithParams(ctx, strat, nil)
}

// RunWithParams backtests strat, letting params override risk settings.
func (b *Backtester) RunWithParams(ctx context.Context, strat strategies.Strategy, params domain.ParameterSet) (*BacktestResult, error) {
	rm, err := risk.NewRiskManager(riskConfigFromParams(b.config.Risk, params))
	if err != nil {
		return nil, err
	}
	if len(b.klines) < strat.RequiredDataPoints() {
		return nil, fmt.Errorf("%s needs %d klines, have %d: %w",
			strat.Name(), strat.RequiredDataPoints(), len(b.klines), ports.ErrInvalidConfiguration)
	}
	if err := strat.Prepare(ctx, b.klines); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", strat.Name(), err)
	}

	s, err := b.newSession(rm)
	if err != nil {
		return nil, err
	}
	if err := s.run(ctx, strat); err != nil {
		return nil, err
	}
	return s.result()
}

func riskConfigFromParams(base risk.RiskConfig, params domain.ParameterSet) risk.RiskConfig {
	cfg := base
	if v, ok := params[ParamRiskPerTrade]; ok {
		cfg.RiskPerTrade = decimal.NewFromFloat(v)
	}
	if v, ok := params[ParamStopLoss]; ok {
		cfg.StopLossPercent = decimal.NewFromFloat(v)
	}
	if _, ok := params[ParamLeverage]; ok {
		cfg.Leverage = params.Int(ParamLeverage, base.Leverage)
	}
	if v, ok := params[ParamMinConfidence]; ok {
		cfg.MinConfidence = v
	}
	return cfg
}

// session is the mutable state of one backtest run.
type session struct {
	b          *Backtester
	rm         *risk.RiskManager
	ledger     *analytics.TradeLedger
	equity     *analytics.EquityCurveBuilder
	position   *domain.Position
	entryFee   decimal.Decimal
	executions []domain.Execution
	nextRate   int
	end        time.Time
}

func (b *Backtester) newSession(rm *risk.RiskManager) (*session, error) {
	builder, err := analytics.NewEquityCurveBuilder(b.config.InitialCapital, b.cadence)
	if err != nil {
		return nil, err
	}
	if err := builder.Start(b.klines[0].OpenTime); err != nil {
		return nil, err
	}
	return &session{
		b:      b,
		rm:     rm,
		ledger: analytics.NewTradeLedger(),
		equity: builder,
	}, nil
}

func (s *session) run(ctx context.Context, strat strategies.Strategy) error {
	klines := s.b.klines
	warmup := strat.RequiredDataPoints() - 1

	for i := range klines {
		if i%cancelCheckEvery == 0 && ctx.Err() != nil {
			return fmt.Errorf("backtest interrupted at kline %d: %w", i, ctx.Err())
		}
		k := klines[i]
		closeTime := k.OpenTime.Add(s.b.cadence)

		if err := s.accrueFunding(k.OpenTime, k.Open); err != nil {
			return err
		}

		if s.position != nil && risk.StopTriggered(s.position, k) {
			if err := s.closePosition(ctx, closeTime, stopFill(s.position, k), domain.CloseReasonStopLoss); err != nil {
				return err
			}
		}

		if i >= warmup {
			if err := s.handleSignal(ctx, strat.Assess(i, s.position), k, closeTime); err != nil {
				return err
			}
		}

		if err := s.markToMarket(closeTime, k.Close); err != nil {
			return err
		}
		s.end = closeTime
	}

	if s.position != nil {
		last := klines[len(klines)-1]
		if err := s.closePosition(ctx, s.end, last.Close, domain.CloseReasonEndOfData); err != nil {
			return err
		}
		if err := s.markToMarket(s.end, last.Close); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) handleSignal(ctx context.Context, sig strategies.Signal, k domain.Kline, at time.Time) error {
	switch sig.Action {
	case strategies.Hold:
		return nil
	case strategies.Close:
		if s.position == nil {
			return nil
		}
		return s.closePosition(ctx, at, k.Close, domain.CloseReasonSignal)
	}

	side, _ := sig.Side()
	if s.position != nil {
		if s.position.Side == side {
			return nil
		}
		if err := s.closePosition(ctx, at, k.Close, domain.CloseReasonSignal); err != nil {
			return err
		}
	}

	order, err := s.rm.Evaluate(ctx, s.b.config.Symbol, side, sig.Confidence, s.equity.Equity(), k.Close, sig.StopPrice, s.position)
	if errors.Is(err, risk.ErrVetoed) {
		s.b.logger.Debug(ctx, "Risk manager vetoed the signal", map[string]interface{}{
			"time":   at.Format(time.RFC3339),
			"signal": sig.Action.String(),
			"reason": err.Error(),
		})
		return nil
	}
	if err != nil {
		return err
	}
	return s.openPosition(order, k.Close, at)
}

// stopFill is the stop price, or the open when the kline gapped through the stop.
func stopFill(pos *domain.Position, k domain.Kline) decimal.Decimal {
	if pos.Side == domain.SideLong && k.Open.LessThan(pos.SLPrice) {
		return k.Open
	}
	if pos.Side == domain.SideShort && k.Open.GreaterThan(pos.SLPrice) {
		return k.Open
	}
	return pos.SLPrice
}

// fillPrice applies slippage against the taker.
func (s *session) fillPrice(side domain.Side, price decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == domain.SideLong {
		return price.Mul(one.Add(s.b.config.Slippage))
	}
	return price.Mul(one.Sub(s.b.config.Slippage))
}

func (s *session) openPosition(order *risk.OrderRequest, price decimal.Decimal, at time.Time) error {
	fill := s.fillPrice(order.Side, price)
	fee := fill.Mul(order.Quantity).Mul(s.b.config.TakerFee)

	s.position = &domain.Position{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		EntryPrice: fill,
		Leverage:   order.Leverage,
		SLPrice:    order.SLPrice,
		EntryTime:  at.UnixMilli(),
		Confidence: order.Confidence,
	}
	s.entryFee = fee
	s.record(domain.Execution{Symbol: order.Symbol, Side: order.Side, Price: fill, Quantity: order.Quantity, Fee: fee})

	// The entry fee is carried as negative unrealized P&L until the trade closes.
	if err := s.markToMarket(at, price); err != nil {
		return err
	}
	s.publishPortfolio()
	return nil
}

func (s *session) closePosition(ctx context.Context, at time.Time, price decimal.Decimal, reason domain.CloseReason) error {
	pos := s.position
	exitSide := pos.Side.Opposite()
	fill := s.fillPrice(exitSide, price)
	exitFee := fill.Mul(pos.Quantity).Mul(s.b.config.TakerFee)
	fees := s.entryFee.Add(exitFee)

	trade := domain.Trade{
		Symbol:           pos.Symbol,
		Side:             pos.Side,
		EntryTime:        pos.EntryTimestamp(),
		ExitTime:         at.UTC(),
		EntryPrice:       pos.EntryPrice,
		ExitPrice:        fill,
		Quantity:         pos.Quantity,
		PnL:              pos.UnrealizedPnL(fill).Sub(fees),
		Fees:             fees,
		SignalConfidence: pos.Confidence,
		Leverage:         pos.Leverage,
		CloseReason:      reason,
	}
	if err := s.ledger.Append(trade); err != nil {
		return err
	}
	if err := s.equity.Realize(at, trade.PnL); err != nil {
		return err
	}
	if err := s.equity.MarkToMarket(at, decimal.Zero); err != nil {
		return err
	}

	s.position = nil
	s.entryFee = decimal.Zero
	s.record(domain.Execution{Symbol: pos.Symbol, Side: exitSide, Price: fill, Quantity: pos.Quantity, Fee: exitFee})
	s.publishPortfolio()

	s.b.logger.Debug(ctx, "Position closed", map[string]interface{}{
		"side":   string(trade.Side),
		"reason": string(reason),
		"pnl":    trade.PnL.StringFixed(2),
		"exit":   at.Format(time.RFC3339),
	})
	return nil
}

// accrueFunding books every funding event up to and including t against the
// open position. Positive rates are paid by longs and received by shorts.
func (s *session) accrueFunding(t time.Time, mark decimal.Decimal) error {
	rates := s.b.funding
	for s.nextRate < len(rates) && !rates[s.nextRate].FundingTime.After(t) {
		rate := rates[s.nextRate]
		s.nextRate++
		if s.position == nil || rate.FundingTime.Before(s.position.EntryTimestamp()) {
			continue
		}
		payment := s.position.Quantity.Mul(mark).Mul(rate.Rate)
		if s.position.Side == domain.SideLong {
			payment = payment.Neg()
		}
		if err := s.equity.AccrueFunding(t, payment); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) markToMarket(t time.Time, price decimal.Decimal) error {
	unrealized := decimal.Zero
	if s.position != nil {
		unrealized = s.position.UnrealizedPnL(price).Sub(s.entryFee)
	}
	return s.equity.MarkToMarket(t, unrealized)
}

func (s *session) publishPortfolio() {
	if s.b.events == nil {
		return
	}
	positions := make(map[string]domain.Position)
	if s.position != nil {
		positions[s.position.Symbol] = *s.position
	}
	s.b.events.PublishPortfolio(s.equity.Balance(), s.equity.Equity(), positions)
}

func (s *session) record(exec domain.Execution) {
	s.executions = append(s.executions, exec)
	if s.b.events != nil {
		s.b.events.PublishExecution(exec)
	}
}

func (s *session) result() (*BacktestResult, error) {
	curve, err := s.equity.Finish(s.end)
	if err != nil {
		return nil, err
	}
	s.ledger.Seal()
	return &BacktestResult{
		Ledger:     s.ledger,
		Curve:      curve,
		Executions: s.executions,
	}, nil
}
