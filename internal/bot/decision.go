// internal/bot/decision.go
package bot

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

var (
	// DeadbandFraction – дисбаланс меньше этой доли стейбл-баланса не исправляется.
	DeadbandFraction = decimal.RequireFromString("0.01")
	// DampingFactor – за один цикл портфель сдвигается на половину пути к балансу 50/50.
	DampingFactor = decimal.RequireFromString("0.5")
	// DepositFraction – доля target-баланса, вносимая в новую позицию.
	DepositFraction = decimal.RequireFromString("0.9")
)

// Direction – направление свапа.
type Direction int

const (
	NoSwap Direction = iota
	TargetToStable
	StableToTarget
)

func (d Direction) String() string {
	switch d {
	case TargetToStable:
		return "target_to_stable"
	case StableToTarget:
		return "stable_to_target"
	default:
		return "none"
	}
}

// Decision – результат правила ребалансировки.
type Decision struct {
	Direction   Direction
	Input       types.TokenSpec
	Amount      decimal.Decimal // в единицах входного токена, квантовано до его decimals
	TargetValue decimal.Decimal
	Diff        decimal.Decimal
	Reason      string
}

// Swap сообщает, нужен ли свап.
func (d Decision) Swap() bool {
	return d.Direction != NoSwap
}

// Decide вычисляет свап, сдвигающий стоимость портфеля наполовину к балансу 50/50.
// Цена – количество стейблкоина за один target-токен.
func Decide(balance types.Balance, price decimal.Decimal, target, stable types.TokenSpec) (Decision, error) {
	if price.Sign() <= 0 {
		return Decision{}, fmt.Errorf("%w: price must be positive, got %s", types.ErrInvalidArgument, price)
	}

	targetValue := balance.Target.Mul(price)
	diff := targetValue.Sub(balance.Stable)
	d := Decision{TargetValue: targetValue, Diff: diff}

	if diff.Abs().LessThan(balance.Stable.Mul(DeadbandFraction)) {
		d.Reason = "imbalance within deadband"
		return d, nil
	}

	switch diff.Sign() {
	case 1:
		d.Direction = TargetToStable
		d.Input = target
		d.Amount = diff.Div(price).Mul(DampingFactor)
	case -1:
		d.Direction = StableToTarget
		d.Input = stable
		d.Amount = diff.Abs().Mul(DampingFactor)
	default:
		d.Reason = "portfolio balanced"
		return d, nil
	}

	d.Amount = d.Amount.Truncate(int32(d.Input.Decimals))
	if d.Amount.Sign() <= 0 {
		d.Direction = NoSwap
		d.Reason = "amount below token precision"
		return d, nil
	}
	return d, nil
}

// OpenRange – параметры новой позиции, центрированной на текущей цене.
type OpenRange struct {
	Lower   decimal.Decimal
	Upper   decimal.Decimal
	Deposit decimal.Decimal
}

// PlanOpen вычисляет границы [price - width/2, price + width/2] и депозит 0.9 * target-баланса.
func PlanOpen(price, width, targetBalance decimal.Decimal) OpenRange {
	half := width.Div(decimal.NewFromInt(2))
	return OpenRange{
		Lower:   price.Sub(half),
		Upper:   price.Add(half),
		Deposit: targetBalance.Mul(DepositFraction),
	}
}
