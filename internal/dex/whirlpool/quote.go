// =============================
// File: internal/dex/whirlpool/quote.go
// =============================
package whirlpool

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

const feeRateDenominator = 1_000_000

var (
	// ErrNoLiquidity – в пуле нет активной ликвидности для котировки свапа.
	ErrNoLiquidity = errors.New("pool has no active liquidity")
	// ErrSwapExceedsTickArrays – вход не исполняется в пределах трёх tick array свапа.
	ErrSwapExceedsTickArrays = errors.New("swap amount exceeds liquidity covered by tick arrays")
	// ErrPositionAboveRange – депозит только в token A невозможен, если цена выше диапазона.
	ErrPositionAboveRange = errors.New("price is above position range, token A deposit impossible")
)

// SwapQuote – котировка свапа с точным входом.
type SwapQuote struct {
	AToB                  bool
	AmountIn              uint64
	EstimatedOut          uint64
	OtherAmountThreshold  uint64
	SqrtPriceLimit        *big.Int
	EstimatedEndSqrtPrice *big.Int
	// CrossedTicks – число инициализированных тиков, пересечённых свапом
	CrossedTicks int
}

type tickLiquidity struct {
	index        int32
	liquidityNet *big.Int
}

// SwapTicks – инициализированные тики из загруженных tick array и границы покрытого ими диапазона.
type SwapTicks struct {
	lower int32
	upper int32
	ticks []tickLiquidity // по возрастанию индекса
}

// NewSwapTicks собирает тики из tick array со стартами starts. nil в arrays – массив не инициализирован.
func NewSwapTicks(tickSpacing uint16, starts []int32, arrays []*TickArray) (*SwapTicks, error) {
	if len(starts) == 0 || len(starts) != len(arrays) {
		return nil, fmt.Errorf("%w: %d tick array starts for %d arrays", types.ErrInvalidArgument, len(starts), len(arrays))
	}
	spacing := int32(tickSpacing)
	st := &SwapTicks{lower: starts[0], upper: starts[0]}
	for i, start := range starts {
		if start < st.lower {
			st.lower = start
		}
		if start > st.upper {
			st.upper = start
		}
		ta := arrays[i]
		if ta == nil {
			continue
		}
		if ta.StartTickIndex != start {
			return nil, fmt.Errorf("tick array start %d, expected %d", ta.StartTickIndex, start)
		}
		for j, tick := range ta.Ticks {
			if !tick.Initialized {
				continue
			}
			st.ticks = append(st.ticks, tickLiquidity{
				index:        start + int32(j)*spacing,
				liquidityNet: tick.SignedLiquidityNet(),
			})
		}
	}
	st.upper += TickArraySize * spacing
	if st.lower < MinTickIndex {
		st.lower = MinTickIndex
	}
	if st.upper > MaxTickIndex {
		st.upper = MaxTickIndex
	}
	sort.Slice(st.ticks, func(i, j int) bool {
		return st.ticks[i].index < st.ticks[j].index
	})
	return st, nil
}

// path возвращает тики, которые цена пересечёт при движении от tickCurrent, в порядке пересечения.
func (st *SwapTicks) path(tickCurrent int32, aToB bool) []tickLiquidity {
	var out []tickLiquidity
	if aToB {
		for i := len(st.ticks) - 1; i >= 0; i-- {
			if t := st.ticks[i]; t.index <= tickCurrent && t.index >= st.lower {
				out = append(out, t)
			}
		}
		return out
	}
	for _, t := range st.ticks {
		if t.index > tickCurrent && t.index <= st.upper {
			out = append(out, t)
		}
	}
	return out
}

// QuoteSwapExactIn оценивает выход свапа по живому состоянию пула, пересекая
// инициализированные тики из ticks. Минимальный выход (threshold) учитывает slippage.
func QuoteSwapExactIn(
	pool *Whirlpool,
	ticks *SwapTicks,
	inputMint solana.PublicKey,
	amountIn uint64,
	slippage types.Slippage,
) (*SwapQuote, error) {
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: swap amount is zero", types.ErrInvalidArgument)
	}
	if ticks == nil {
		return nil, fmt.Errorf("%w: swap ticks are not loaded", types.ErrInvalidArgument)
	}

	var aToB bool
	switch {
	case inputMint.Equals(pool.TokenMintA):
		aToB = true
	case inputMint.Equals(pool.TokenMintB):
		aToB = false
	default:
		return nil, fmt.Errorf("%w: mint %s is not part of the pool", types.ErrInvalidArgument, inputMint)
	}

	limit, bound := MaxSqrtPrice, ticks.upper
	if aToB {
		limit, bound = MinSqrtPrice, ticks.lower
	}
	boundSqrt := TickIndexToSqrtPriceX64(bound)

	liquidity := pool.Liquidity.BigInt()
	sqrtPrice := pool.SqrtPrice.BigInt()
	remaining := new(big.Int).SetUint64(amountIn)
	out := new(big.Int)
	path := ticks.path(pool.TickCurrentIndex, aToB)

	crossed := 0
	for remaining.Sign() > 0 {
		crossing := crossed < len(path)
		target := boundSqrt
		if crossing {
			target = TickIndexToSqrtPriceX64(path[crossed].index)
		}

		step := computeSwapStep(remaining, uint32(pool.FeeRate), liquidity, sqrtPrice, target, aToB)
		remaining.Sub(remaining, step.amountIn)
		remaining.Sub(remaining, step.fee)
		out.Add(out, step.amountOut)
		sqrtPrice = step.nextSqrtPrice

		if sqrtPrice.Cmp(target) != 0 {
			continue
		}
		if !crossing {
			break
		}
		// при движении вниз liquidity_net вычитается, вверх – прибавляется
		if aToB {
			liquidity.Sub(liquidity, path[crossed].liquidityNet)
		} else {
			liquidity.Add(liquidity, path[crossed].liquidityNet)
		}
		if liquidity.Sign() < 0 {
			return nil, fmt.Errorf("liquidity underflow after crossing tick %d", path[crossed].index)
		}
		crossed++
	}

	if out.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	if remaining.Sign() > 0 {
		return nil, fmt.Errorf("%w: %s of %d input left at tick %d", ErrSwapExceedsTickArrays, remaining, amountIn, bound)
	}

	estOut, err := toU64(out)
	if err != nil {
		return nil, fmt.Errorf("swap estimate: %w", err)
	}
	threshold, err := toU64(slippage.MinOut(out))
	if err != nil {
		return nil, fmt.Errorf("swap threshold: %w", err)
	}

	return &SwapQuote{
		AToB:                  aToB,
		AmountIn:              amountIn,
		EstimatedOut:          estOut,
		OtherAmountThreshold:  threshold,
		SqrtPriceLimit:        new(big.Int).Set(limit),
		EstimatedEndSqrtPrice: sqrtPrice,
		CrossedTicks:          crossed,
	}, nil
}

type swapStep struct {
	amountIn      *big.Int
	amountOut     *big.Int
	fee           *big.Int
	nextSqrtPrice *big.Int
}

// computeSwapStep – шаг свапа с точным входом внутри одного диапазона ликвидности.
// Цена сдвигается не дальше target.
func computeSwapStep(remaining *big.Int, feeRate uint32, liquidity, sqrtPrice, target *big.Int, aToB bool) swapStep {
	feeDen := big.NewInt(feeRateDenominator)
	lessFee := new(big.Int).Mul(remaining, big.NewInt(feeRateDenominator-int64(feeRate)))
	lessFee.Quo(lessFee, feeDen)

	toTarget := func(next *big.Int) *big.Int {
		if aToB {
			return GetTokenAFromLiquidity(liquidity, next, sqrtPrice, true)
		}
		return GetTokenBFromLiquidity(liquidity, sqrtPrice, next, true)
	}

	step := swapStep{nextSqrtPrice: new(big.Int).Set(target)}
	fixedDelta := toTarget(target)
	reachesTarget := liquidity.Sign() == 0 || lessFee.Cmp(fixedDelta) >= 0
	if reachesTarget {
		step.amountIn = fixedDelta
	} else {
		if aToB {
			step.nextSqrtPrice = nextSqrtPriceFromAInput(sqrtPrice, liquidity, lessFee)
		} else {
			step.nextSqrtPrice = nextSqrtPriceFromBInput(sqrtPrice, liquidity, lessFee)
		}
		step.amountIn = toTarget(step.nextSqrtPrice)
		if step.amountIn.Cmp(lessFee) > 0 {
			step.amountIn = new(big.Int).Set(lessFee)
		}
	}

	if aToB {
		step.amountOut = GetTokenBFromLiquidity(liquidity, step.nextSqrtPrice, sqrtPrice, false)
	} else {
		step.amountOut = GetTokenAFromLiquidity(liquidity, sqrtPrice, step.nextSqrtPrice, false)
	}

	if reachesTarget {
		// комиссия сверху входа: ceil(amountIn * fee / (1e6 - fee))
		step.fee = divRound(
			new(big.Int).Mul(step.amountIn, big.NewInt(int64(feeRate))),
			big.NewInt(feeRateDenominator-int64(feeRate)),
			true,
		)
		if spent := new(big.Int).Add(step.amountIn, step.fee); spent.Cmp(remaining) > 0 {
			step.fee = new(big.Int).Sub(remaining, step.amountIn)
		}
	} else {
		step.fee = new(big.Int).Sub(remaining, step.amountIn)
	}
	return step
}

// IncreaseLiquidityQuote – котировка внесения ликвидности.
type IncreaseLiquidityQuote struct {
	Liquidity *big.Int
	TokenEstA uint64
	TokenEstB uint64
	TokenMaxA uint64
	TokenMaxB uint64
}

// QuoteIncreaseLiquidityByTokenA рассчитывает ликвидность и суммы для депозита amountA токена A.
// Ниже диапазона вносится только A, внутри диапазона – A и пропорциональная сумма B.
func QuoteIncreaseLiquidityByTokenA(
	sqrtPrice *big.Int,
	tickCurrent, tickLower, tickUpper int32,
	amountA uint64,
	slippage types.Slippage,
) (*IncreaseLiquidityQuote, error) {
	if tickLower >= tickUpper {
		return nil, fmt.Errorf("%w: tick range [%d, %d] is empty", types.ErrInvalidArgument, tickLower, tickUpper)
	}
	if amountA == 0 {
		return nil, fmt.Errorf("%w: deposit amount is zero", types.ErrInvalidArgument)
	}
	if tickCurrent >= tickUpper {
		return nil, ErrPositionAboveRange
	}

	sqrtLower := TickIndexToSqrtPriceX64(tickLower)
	sqrtUpper := TickIndexToSqrtPriceX64(tickUpper)

	var liquidity, estA, estB *big.Int
	if tickCurrent < tickLower {
		liquidity = EstimateLiquidityFromTokenA(sqrtLower, sqrtUpper, amountA)
		estA = GetTokenAFromLiquidity(liquidity, sqrtLower, sqrtUpper, true)
		estB = new(big.Int)
	} else {
		liquidity = EstimateLiquidityFromTokenA(sqrtPrice, sqrtUpper, amountA)
		estA = GetTokenAFromLiquidity(liquidity, sqrtPrice, sqrtUpper, true)
		estB = GetTokenBFromLiquidity(liquidity, sqrtLower, sqrtPrice, true)
	}
	if liquidity.Sign() == 0 {
		return nil, fmt.Errorf("%w: deposit too small for range", types.ErrInvalidArgument)
	}

	q := &IncreaseLiquidityQuote{Liquidity: liquidity}
	var err error
	if q.TokenEstA, err = toU64(estA); err != nil {
		return nil, err
	}
	if q.TokenEstB, err = toU64(estB); err != nil {
		return nil, err
	}
	if q.TokenMaxA, err = toU64(slippage.MaxIn(estA)); err != nil {
		return nil, err
	}
	if q.TokenMaxB, err = toU64(slippage.MaxIn(estB)); err != nil {
		return nil, err
	}
	return q, nil
}

// DecreaseLiquidityQuote – котировка вывода ликвидности.
type DecreaseLiquidityQuote struct {
	Liquidity *big.Int
	TokenEstA uint64
	TokenEstB uint64
	TokenMinA uint64
	TokenMinB uint64
}

// QuoteDecreaseLiquidity рассчитывает минимальные суммы при выводе liquidity из диапазона.
func QuoteDecreaseLiquidity(
	liquidity *big.Int,
	sqrtPrice *big.Int,
	tickCurrent, tickLower, tickUpper int32,
	slippage types.Slippage,
) (*DecreaseLiquidityQuote, error) {
	q := &DecreaseLiquidityQuote{Liquidity: new(big.Int).Set(liquidity)}
	if liquidity.Sign() == 0 {
		return q, nil
	}

	sqrtLower := TickIndexToSqrtPriceX64(tickLower)
	sqrtUpper := TickIndexToSqrtPriceX64(tickUpper)

	var estA, estB *big.Int
	switch {
	case tickCurrent < tickLower:
		estA = GetTokenAFromLiquidity(liquidity, sqrtLower, sqrtUpper, false)
		estB = new(big.Int)
	case tickCurrent < tickUpper:
		estA = GetTokenAFromLiquidity(liquidity, sqrtPrice, sqrtUpper, false)
		estB = GetTokenBFromLiquidity(liquidity, sqrtLower, sqrtPrice, false)
	default:
		estA = new(big.Int)
		estB = GetTokenBFromLiquidity(liquidity, sqrtLower, sqrtUpper, false)
	}

	var err error
	if q.TokenEstA, err = toU64(estA); err != nil {
		return nil, err
	}
	if q.TokenEstB, err = toU64(estB); err != nil {
		return nil, err
	}
	if q.TokenMinA, err = toU64(slippage.MinOut(estA)); err != nil {
		return nil, err
	}
	if q.TokenMinB, err = toU64(slippage.MinOut(estB)); err != nil {
		return nil, err
	}
	return q, nil
}

func toU64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || v.Cmp(u64) > 0 {
		return 0, fmt.Errorf("amount %s does not fit into u64", v)
	}
	return v.Uint64(), nil
}
