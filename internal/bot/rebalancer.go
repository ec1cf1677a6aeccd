// internal/bot/rebalancer.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/events"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

// Exchange – операции с пулом, нужные циклу. Реализуется whirlpool.DEX.
type Exchange interface {
	GetPrice(ctx context.Context) (decimal.Decimal, error)
	GetBalance(ctx context.Context) (types.Balance, error)
	Swap(ctx context.Context, input types.TokenSpec, amount decimal.Decimal) (types.SwapResult, error)
	ListPositions(ctx context.Context) ([]types.Position, error)
	OpenPosition(ctx context.Context, lower, upper, deposit decimal.Decimal) (types.PositionHandle, error)
	ClosePosition(ctx context.Context, address solana.PublicKey) (solana.Signature, error)
}

// RangeForecaster возвращает ширину ценового диапазона новой позиции.
type RangeForecaster interface {
	ForecastRange(ctx context.Context) (decimal.Decimal, error)
}

// RefreshPolicy определяет, когда перечитывать цену и баланс после свапа.
type RefreshPolicy string

const (
	// RefreshAlways – после любой попытки свапа, в том числе неудачной.
	RefreshAlways RefreshPolicy = "always"
	// RefreshOnSuccess – только после подтверждённого свапа.
	RefreshOnSuccess RefreshPolicy = "on_success"
)

// ParseRefreshPolicy разбирает значение из конфигурации.
func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch RefreshPolicy(s) {
	case "", RefreshAlways:
		return RefreshAlways, nil
	case RefreshOnSuccess:
		return RefreshOnSuccess, nil
	default:
		return "", fmt.Errorf("%w: unknown post-swap refresh policy %q", types.ErrInvalidArgument, s)
	}
}

// Options – параметры оркестратора.
type Options struct {
	Target  types.TokenSpec
	Stable  types.TokenSpec
	Refresh RefreshPolicy
	Pauser  Pauser
	Events  events.Publisher

	// Pool и Wallet попадают только в события цикла.
	Pool   solana.PublicKey
	Wallet solana.PublicKey
}

// Rebalancer выполняет цикл ClosingPositions → Rebalancing → Forecasting → Opening → Done.
// Состояние между циклами не хранится: всё читается из сети заново.
type Rebalancer struct {
	exchange   Exchange
	forecaster RangeForecaster
	target     types.TokenSpec
	stable     types.TokenSpec
	refresh    RefreshPolicy
	pauser     Pauser
	events     events.Publisher
	pool       solana.PublicKey
	wallet     solana.PublicKey
	logger     *zap.Logger

	newCycleID func() string
}

// NewRebalancer создаёт оркестратор.
func NewRebalancer(exchange Exchange, forecaster RangeForecaster, opts Options, logger *zap.Logger) (*Rebalancer, error) {
	if exchange == nil || forecaster == nil || logger == nil {
		return nil, fmt.Errorf("exchange, forecaster and logger cannot be nil")
	}
	if opts.Target.Mint.IsZero() || opts.Stable.Mint.IsZero() {
		return nil, fmt.Errorf("target and stable tokens are required")
	}
	refresh, err := ParseRefreshPolicy(string(opts.Refresh))
	if err != nil {
		return nil, err
	}
	if opts.Pauser == nil {
		opts.Pauser = NewConstantPause(FailurePause)
	}
	if opts.Events == nil {
		opts.Events = events.NopPublisher{}
	}

	return &Rebalancer{
		exchange:   exchange,
		forecaster: forecaster,
		target:     opts.Target,
		stable:     opts.Stable,
		refresh:    refresh,
		pauser:     opts.Pauser,
		events:     opts.Events,
		pool:       opts.Pool,
		wallet:     opts.Wallet,
		logger:     logger.Named("rebalancer"),
		newCycleID: func() string { return uuid.New().String() },
	}, nil
}

// snapshot – цена и баланс, прочитанные в текущем цикле.
type snapshot struct {
	price   decimal.Decimal
	balance types.Balance
}

// RunCycle выполняет один цикл. Ошибка возвращается только при прерывании цикла;
// неудачные транзакции отражаются в отчёте.
func (r *Rebalancer) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		ID:        r.newCycleID(),
		StartedAt: time.Now().UTC(),
		Step:      StepClosingPositions,
	}
	logger := r.logger.With(zap.String("cycle_id", report.ID))
	logger.Info("Cycle started")
	r.publish(events.CycleStartedEvent{
		BaseEvent: events.NewBaseEvent(events.CycleStarted),
		CycleID:   report.ID,
		Pool:      keyString(r.pool),
		Wallet:    keyString(r.wallet),
	})

	if err := r.closePositions(ctx, logger, report); err != nil {
		return r.fail(logger, report, err)
	}

	report.Step = StepRebalancing
	snap, err := r.rebalance(ctx, logger, report)
	if err != nil {
		return r.fail(logger, report, err)
	}

	report.Step = StepForecasting
	width, err := r.forecaster.ForecastRange(ctx)
	if err != nil {
		return r.fail(logger, report, &ForecastError{Err: err})
	}
	report.Width = width
	logger.Info("Range width forecast", zap.String("width", width.String()))

	report.Step = StepOpening
	if err := r.openPosition(ctx, logger, report, snap, width); err != nil {
		return r.fail(logger, report, err)
	}

	report.Step = StepDone
	report.FinishedAt = time.Now().UTC()
	completed := events.CycleCompletedEvent{
		BaseEvent: events.NewBaseEvent(events.CycleCompleted),
		CycleID:   report.ID,
		Duration:  report.Duration(),
		Closed:    len(report.Closes) - report.FailedCloses(),
		Failed:    report.FailedCloses(),
	}
	if report.Position != nil {
		completed.Position = report.Position.Address.String()
	}
	r.publish(completed)
	logger.Info("Cycle completed",
		zap.Duration("duration", report.Duration()),
		zap.Int("positions_closed", completed.Closed),
		zap.Int("close_failures", completed.Failed),
		zap.Bool("position_opened", report.Position != nil))
	return report, nil
}

// closePositions закрывает все позиции пары. Неудачное закрытие не останавливает обход.
func (r *Rebalancer) closePositions(ctx context.Context, logger *zap.Logger, report *CycleReport) error {
	positions, err := r.exchange.ListPositions(ctx)
	if err != nil {
		return err
	}

	var matching []types.Position
	for _, p := range positions {
		if p.Matches(r.target, r.stable) {
			matching = append(matching, p)
		}
	}
	logger.Info("Positions listed",
		zap.Int("total", len(positions)),
		zap.Int("matching", len(matching)))

	for _, p := range matching {
		outcome := Outcome{
			Step:      StepClosingPositions,
			Operation: OpClosePosition,
			Subject:   p.Address,
		}
		sig, err := r.exchange.ClosePosition(ctx, p.Address)
		outcome.Signature = sig
		outcome.Err = err
		report.Closes = append(report.Closes, outcome)
		r.publishOutcome(report.ID, outcome)

		if err != nil {
			logger.Error("Failed to close position",
				zap.String("position", p.Address.String()),
				zap.Error(err))
			if perr := r.pauseAfter(ctx, logger, err); perr != nil {
				return perr
			}
			continue
		}
		logger.Info("Position closed",
			zap.String("position", p.Address.String()),
			zap.String("range", p.Lower.String()+" - "+p.Upper.String()),
			zap.String("signature", sig.String()))
	}
	return nil
}

// rebalance читает цену и баланс, при необходимости выполняет свап и возвращает актуальный снимок.
func (r *Rebalancer) rebalance(ctx context.Context, logger *zap.Logger, report *CycleReport) (snapshot, error) {
	snap, err := r.readSnapshot(ctx)
	if err != nil {
		return snapshot{}, err
	}

	decision, err := Decide(snap.balance, snap.price, r.target, r.stable)
	if err != nil {
		return snapshot{}, err
	}
	report.Decision = decision
	logger.Info("Rebalance decision",
		zap.String("price", snap.price.String()),
		zap.String("target_balance", snap.balance.Target.String()),
		zap.String("stable_balance", snap.balance.Stable.String()),
		zap.String("target_value", decision.TargetValue.String()),
		zap.String("diff", decision.Diff.String()),
		zap.Stringer("direction", decision.Direction),
		zap.String("amount", decision.Amount.String()),
		zap.String("reason", decision.Reason))

	if !decision.Swap() {
		report.Swap = &Outcome{
			Step:      StepRebalancing,
			Operation: OpSwap,
			Skipped:   true,
			Reason:    decision.Reason,
		}
		r.publishOutcome(report.ID, *report.Swap)
		return snap, nil
	}

	outcome := Outcome{
		Step:      StepRebalancing,
		Operation: OpSwap,
		Subject:   decision.Input.Mint,
		Amount:    decision.Amount,
	}
	result, err := r.exchange.Swap(ctx, decision.Input, decision.Amount)
	outcome.Signature = result.Signature
	outcome.Err = err
	report.Swap = &outcome
	r.publishOutcome(report.ID, outcome)

	switch {
	case err == nil:
		logger.Info("Swap confirmed",
			zap.String("input_mint", decision.Input.Mint.String()),
			zap.String("amount_in", result.AmountIn.String()),
			zap.String("estimated_out", result.EstimatedOut.String()),
			zap.String("minimum_out", result.MinimumOut.String()),
			zap.String("signature", result.Signature.String()))
	case types.IsSubmission(err):
		logger.Error("Swap failed", zap.Error(err))
		if perr := r.pauser.Pause(ctx); perr != nil {
			return snapshot{}, perr
		}
	case errors.Is(err, types.ErrInvalidArgument):
		logger.Warn("Swap rejected", zap.Error(err))
		return snap, nil
	default:
		return snapshot{}, err
	}

	if err != nil && r.refresh == RefreshOnSuccess {
		logger.Debug("Keeping pre-swap snapshot", zap.String("policy", string(r.refresh)))
		return snap, nil
	}
	return r.readSnapshot(ctx)
}

// openPosition открывает позицию [price - width/2, price + width/2] с депозитом 0.9 * target.
func (r *Rebalancer) openPosition(ctx context.Context, logger *zap.Logger, report *CycleReport, snap snapshot, width decimal.Decimal) error {
	plan := PlanOpen(snap.price, width, snap.balance.Target)
	report.Range = plan
	logger.Info("Opening position",
		zap.String("price", snap.price.String()),
		zap.String("lower", plan.Lower.String()),
		zap.String("upper", plan.Upper.String()),
		zap.String("deposit", plan.Deposit.String()))

	outcome := Outcome{
		Step:      StepOpening,
		Operation: OpOpenPosition,
		Amount:    plan.Deposit,
	}
	handle, err := r.exchange.OpenPosition(ctx, plan.Lower, plan.Upper, plan.Deposit)
	outcome.Err = err
	if err == nil {
		outcome.Subject = handle.Address
		outcome.Signature = handle.Signature
		report.Position = &handle
	}
	report.Open = &outcome
	r.publishOutcome(report.ID, outcome)

	switch {
	case err == nil:
		logger.Info("Position opened",
			zap.String("position", handle.Address.String()),
			zap.String("lower", handle.Lower.String()),
			zap.String("upper", handle.Upper.String()),
			zap.Int32("tick_lower", handle.TickLower),
			zap.Int32("tick_upper", handle.TickUpper),
			zap.String("signature", handle.Signature.String()))
		return nil
	case errors.Is(err, types.ErrInvalidArgument):
		logger.Warn("Position not opened this cycle", zap.Error(err))
		return nil
	case types.IsSubmission(err):
		logger.Error("Failed to open position", zap.Error(err))
		return r.pauser.Pause(ctx)
	default:
		return err
	}
}

// pauseAfter делает паузу после неудачной отправки транзакции.
func (r *Rebalancer) pauseAfter(ctx context.Context, logger *zap.Logger, err error) error {
	if !types.IsSubmission(err) {
		return nil
	}
	logger.Debug("Pausing after submission failure", zap.Duration("pause", FailurePause))
	return r.pauser.Pause(ctx)
}

func (r *Rebalancer) readSnapshot(ctx context.Context) (snapshot, error) {
	price, err := r.exchange.GetPrice(ctx)
	if err != nil {
		return snapshot{}, err
	}
	balance, err := r.exchange.GetBalance(ctx)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{price: price, balance: balance}, nil
}

func (r *Rebalancer) fail(logger *zap.Logger, report *CycleReport, err error) (*CycleReport, error) {
	report.FinishedAt = time.Now().UTC()
	report.Err = &CycleError{Step: report.Step, Err: err}
	r.publish(events.CycleFailedEvent{
		BaseEvent: events.NewBaseEvent(events.CycleFailed),
		CycleID:   report.ID,
		Step:      string(report.Step),
		Duration:  report.Duration(),
		Error:     err.Error(),
	})
	logger.Error("Cycle aborted",
		zap.String("step", string(report.Step)),
		zap.Bool("unavailable", types.IsUnavailable(err)),
		zap.Bool("forecast", IsForecastError(err)),
		zap.Error(err))
	return report, report.Err
}

func (r *Rebalancer) publishOutcome(cycleID string, o Outcome) {
	e := events.CycleStepEvent{
		BaseEvent: events.NewBaseEvent(events.CycleStep),
		CycleID:   cycleID,
		Step:      string(o.Step),
		Operation: o.Operation,
		Skipped:   o.Skipped,
	}
	if !o.Subject.IsZero() {
		e.Subject = o.Subject.String()
	}
	if !o.Amount.IsZero() {
		e.Amount = o.Amount.String()
	}
	if !o.Signature.IsZero() {
		e.Signature = o.Signature.String()
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	r.publish(e)
}

func (r *Rebalancer) publish(e events.Event) {
	if err := r.events.Publish(e); err != nil {
		r.logger.Debug("Event not published",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

func keyString(pk solana.PublicKey) string {
	if pk.IsZero() {
		return ""
	}
	return pk.String()
}
