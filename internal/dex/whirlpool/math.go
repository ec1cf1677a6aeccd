// =============================
// File: internal/dex/whirlpool/math.go
// =============================
package whirlpool

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	MinTickIndex  int32 = -443636
	MaxTickIndex  int32 = 443636
	TickArraySize int32 = 88

	floatPrec  = 256
	priceScale = 30
)

var (
	// Границы sqrt_price, принимаемые программой
	MinSqrtPrice = mustBigInt("4295048016")
	MaxSqrtPrice = mustBigInt("79226673515401279992447579055")

	q64  = new(big.Int).Lsh(big.NewInt(1), 64)
	q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	u64  = new(big.Int).SetUint64(math.MaxUint64)

	priceScaleFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(priceScale), nil)

	sqrtTickBase = func() *big.Float {
		base, _ := new(big.Float).SetPrec(floatPrec).SetString("1.0001")
		return new(big.Float).SetPrec(floatPrec).Sqrt(base)
	}()
	logTickBase = math.Log(1.0001)
)

func mustBigInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid big int literal: " + s)
	}
	return v
}

// SqrtPriceX64ToPrice переводит sqrt_price (Q64.64) в цену token A, выраженную в token B,
// с учётом decimals обоих токенов.
func SqrtPriceX64ToPrice(sqrtPriceX64 *big.Int, decimalsA, decimalsB uint8) decimal.Decimal {
	return decimal.NewFromBigInt(scaledPrice(sqrtPriceX64), -priceScale).Shift(int32(decimalsA) - int32(decimalsB))
}

// scaledPrice – цена без учёта decimals, умноженная на 10^priceScale и усечённая.
func scaledPrice(sqrtPriceX64 *big.Int) *big.Int {
	num := new(big.Int).Mul(sqrtPriceX64, sqrtPriceX64)
	num.Mul(num, priceScaleFactor)
	return num.Quo(num, q128)
}

// TickIndexToSqrtPriceX64 вычисляет sqrt(1.0001^tick) * 2^64 в пределах [MinSqrtPrice, MaxSqrtPrice].
func TickIndexToSqrtPriceX64(tick int32) *big.Int {
	n := tick
	if n < 0 {
		n = -n
	}

	result := new(big.Float).SetPrec(floatPrec).SetInt64(1)
	base := new(big.Float).SetPrec(floatPrec).Set(sqrtTickBase)
	for n > 0 {
		if n&1 == 1 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
		n >>= 1
	}
	if tick < 0 {
		result.Quo(new(big.Float).SetPrec(floatPrec).SetInt64(1), result)
	}

	result.Mul(result, new(big.Float).SetPrec(floatPrec).SetInt(q64))
	out, _ := result.Int(nil)
	switch {
	case out.Cmp(MinSqrtPrice) < 0:
		return out.Set(MinSqrtPrice)
	case out.Cmp(MaxSqrtPrice) > 0:
		return out.Set(MaxSqrtPrice)
	}
	return out
}

// TickIndexToPrice переводит индекс тика в человекочитаемую цену.
func TickIndexToPrice(tick int32, decimalsA, decimalsB uint8) decimal.Decimal {
	return SqrtPriceX64ToPrice(TickIndexToSqrtPriceX64(tick), decimalsA, decimalsB)
}

// PriceToTickIndex возвращает наибольший тик, цена которого (как её считает TickIndexToPrice)
// не превышает price. Цена тика точно переводится обратно в тот же тик.
func PriceToTickIndex(price decimal.Decimal, decimalsA, decimalsB uint8) int32 {
	raw := price.Shift(int32(decimalsB) - int32(decimalsA))
	if raw.Sign() <= 0 {
		return MinTickIndex
	}
	tick := clampTick(math.Floor(math.Log(raw.InexactFloat64()) / logTickBase))

	// float64-логарифм ошибается на тик у границ, поправка точным сравнением
	target := raw.Shift(priceScale).BigInt()
	for tick < MaxTickIndex && scaledPrice(TickIndexToSqrtPriceX64(tick+1)).Cmp(target) <= 0 {
		tick++
	}
	for tick > MinTickIndex && scaledPrice(TickIndexToSqrtPriceX64(tick)).Cmp(target) > 0 {
		tick--
	}
	return tick
}

// PriceToInitializableTickIndex привязывает цену к ближайшему тику, кратному tickSpacing.
func PriceToInitializableTickIndex(price decimal.Decimal, decimalsA, decimalsB uint8, tickSpacing uint16) int32 {
	return NearestInitializableTick(PriceToTickIndex(price, decimalsA, decimalsB), tickSpacing)
}

// NearestInitializableTick округляет тик до ближайшего кратного tickSpacing (половина – вверх).
func NearestInitializableTick(tick int32, tickSpacing uint16) int32 {
	s := int32(tickSpacing)
	snapped := int32(math.Floor(float64(tick)/float64(s)+0.5)) * s
	return clampInitializable(snapped, tickSpacing)
}

// FloorInitializableTick – наибольший тик, кратный tickSpacing и не превышающий tick.
func FloorInitializableTick(tick int32, tickSpacing uint16) int32 {
	s := int32(tickSpacing)
	return floorDiv(tick, s) * s
}

// MinInitializableTick / MaxInitializableTick – крайние допустимые тики для tickSpacing.
func MinInitializableTick(tickSpacing uint16) int32 {
	s := int32(tickSpacing)
	return -floorDiv(-MinTickIndex, s) * s
}

func MaxInitializableTick(tickSpacing uint16) int32 {
	s := int32(tickSpacing)
	return floorDiv(MaxTickIndex, s) * s
}

// TickArrayStartIndex возвращает стартовый тик массива, содержащего tick, со смещением offset массивов.
func TickArrayStartIndex(tick int32, tickSpacing uint16, offset int32) int32 {
	ticksInArray := TickArraySize * int32(tickSpacing)
	return (floorDiv(tick, ticksInArray) + offset) * ticksInArray
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func clampTick(tick float64) int32 {
	switch {
	case math.IsNaN(tick) || tick < float64(MinTickIndex):
		return MinTickIndex
	case tick > float64(MaxTickIndex):
		return MaxTickIndex
	}
	return int32(tick)
}

func clampInitializable(tick int32, tickSpacing uint16) int32 {
	if lo := MinInitializableTick(tickSpacing); tick < lo {
		return lo
	}
	if hi := MaxInitializableTick(tickSpacing); tick > hi {
		return hi
	}
	return tick
}

////////////////////////////////////////////////////////////////////////////////
// Ликвидность
////////////////////////////////////////////////////////////////////////////////

func orderSqrt(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func divRound(num, den *big.Int, roundUp bool) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if roundUp && r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// GetTokenAFromLiquidity: L * (hi - lo) * 2^64 / (hi * lo).
func GetTokenAFromLiquidity(liquidity, sqrt0, sqrt1 *big.Int, roundUp bool) *big.Int {
	lo, hi := orderSqrt(sqrt0, sqrt1)
	den := new(big.Int).Mul(hi, lo)
	if den.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Lsh(liquidity, 64)
	num.Mul(num, new(big.Int).Sub(hi, lo))
	return divRound(num, den, roundUp)
}

// GetTokenBFromLiquidity: L * (hi - lo) / 2^64.
func GetTokenBFromLiquidity(liquidity, sqrt0, sqrt1 *big.Int, roundUp bool) *big.Int {
	lo, hi := orderSqrt(sqrt0, sqrt1)
	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(hi, lo))
	return divRound(num, q64, roundUp)
}

// EstimateLiquidityFromTokenA: (amount * hi * lo / 2^64) / (hi - lo).
func EstimateLiquidityFromTokenA(sqrt0, sqrt1 *big.Int, amount uint64) *big.Int {
	lo, hi := orderSqrt(sqrt0, sqrt1)
	den := new(big.Int).Sub(hi, lo)
	if den.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).SetUint64(amount)
	num.Mul(num, hi)
	num.Mul(num, lo)
	num.Rsh(num, 64)
	return num.Quo(num, den)
}

// GetTokenAmountsFromLiquidity возвращает текущие суммы токенов позиции по sqrt-цене пула.
func GetTokenAmountsFromLiquidity(liquidity, sqrtCurrent, sqrtLower, sqrtUpper *big.Int, roundUp bool) (*big.Int, *big.Int) {
	switch {
	case sqrtCurrent.Cmp(sqrtLower) < 0:
		return GetTokenAFromLiquidity(liquidity, sqrtLower, sqrtUpper, roundUp), new(big.Int)
	case sqrtCurrent.Cmp(sqrtUpper) < 0:
		return GetTokenAFromLiquidity(liquidity, sqrtCurrent, sqrtUpper, roundUp),
			GetTokenBFromLiquidity(liquidity, sqrtLower, sqrtCurrent, roundUp)
	default:
		return new(big.Int), GetTokenBFromLiquidity(liquidity, sqrtLower, sqrtUpper, roundUp)
	}
}

// nextSqrtPriceFromAInput: ceil(L * P * 2^64 / (L * 2^64 + amount * P)).
func nextSqrtPriceFromAInput(sqrtPrice, liquidity *big.Int, amount *big.Int) *big.Int {
	liqShifted := new(big.Int).Lsh(liquidity, 64)
	num := new(big.Int).Mul(liqShifted, sqrtPrice)
	den := new(big.Int).Mul(amount, sqrtPrice)
	den.Add(den, liqShifted)
	return divRound(num, den, true)
}

// nextSqrtPriceFromBInput: P + amount * 2^64 / L.
func nextSqrtPriceFromBInput(sqrtPrice, liquidity *big.Int, amount *big.Int) *big.Int {
	delta := new(big.Int).Lsh(amount, 64)
	delta.Quo(delta, liquidity)
	return delta.Add(delta, sqrtPrice)
}
