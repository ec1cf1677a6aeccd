package whirlpool

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relDiff(a, b *big.Int) float64 {
	diff := new(big.Float).SetInt(new(big.Int).Sub(a, b))
	diff.Abs(diff)
	rel, _ := new(big.Float).Quo(diff, new(big.Float).SetInt(b)).Float64()
	return rel
}

func TestTickIndexToSqrtPriceX64(t *testing.T) {
	assert.Equal(t, 0, TickIndexToSqrtPriceX64(0).Cmp(q64))

	assert.Less(t, relDiff(TickIndexToSqrtPriceX64(MinTickIndex), MinSqrtPrice), 1e-9)
	assert.Less(t, relDiff(TickIndexToSqrtPriceX64(MaxTickIndex), MaxSqrtPrice), 1e-9)
	// крайние тики не выходят за границы, принимаемые программой
	assert.GreaterOrEqual(t, TickIndexToSqrtPriceX64(MinTickIndex).Cmp(MinSqrtPrice), 0)
	assert.LessOrEqual(t, TickIndexToSqrtPriceX64(MaxTickIndex).Cmp(MaxSqrtPrice), 0)
	assert.Equal(t, 0, TickIndexToSqrtPriceX64(MaxTickIndex).Cmp(MaxSqrtPrice))

	prev := TickIndexToSqrtPriceX64(-1000)
	for tick := int32(-999); tick <= 1000; tick += 37 {
		cur := TickIndexToSqrtPriceX64(tick)
		assert.Equal(t, 1, cur.Cmp(prev), "sqrt price must grow with tick %d", tick)
		prev = cur
	}
}

func TestSqrtPriceX64ToPrice(t *testing.T) {
	assert.True(t, SqrtPriceX64ToPrice(q64, 6, 6).Equal(decimal.NewFromInt(1)))
	// token A с 9 знаками, token B с 6: единичная sqrt-цена означает 1000 B за 1 A
	assert.True(t, SqrtPriceX64ToPrice(q64, 9, 6).Equal(decimal.NewFromInt(1000)))

	// sqrt = 2 * 2^64 -> price 4
	two := new(big.Int).Lsh(q64, 1)
	assert.True(t, SqrtPriceX64ToPrice(two, 6, 6).Equal(decimal.NewFromInt(4)))
}

func TestPriceToTickIndex(t *testing.T) {
	for _, tick := range []int32{-20000, -64, -1, 0, 1, 63, 6400, 30000} {
		lo := TickIndexToPrice(tick, 6, 6)
		hi := TickIndexToPrice(tick+1, 6, 6)
		mid := lo.Add(hi).Div(decimal.NewFromInt(2))
		assert.Equal(t, tick, PriceToTickIndex(mid, 6, 6), "tick %d", tick)
	}

	// decimals сдвигают цену на 10^(decB-decA)
	assert.Equal(t, int32(0), PriceToTickIndex(decimal.RequireFromString("1000.00001"), 9, 6))

	assert.Equal(t, MinTickIndex, PriceToTickIndex(decimal.Zero, 6, 6))
	assert.Equal(t, MinTickIndex, PriceToTickIndex(decimal.NewFromInt(-1), 6, 6))
}

func TestPriceToTickIndexRoundTrip(t *testing.T) {
	var mismatches []int32
	check := func(tick int32, decA, decB uint8) {
		if got := PriceToTickIndex(TickIndexToPrice(tick, decA, decB), decA, decB); got != tick {
			mismatches = append(mismatches, tick)
		}
	}
	for tick := int32(-301); tick <= 301; tick++ {
		check(tick, 6, 6)
	}
	for tick := MinTickIndex + 1; tick < MaxTickIndex; tick += 7919 {
		check(tick, 9, 6)
	}
	check(MinTickIndex, 6, 6)
	check(MaxTickIndex, 6, 6)
	assert.Empty(t, mismatches)
}

func TestNearestInitializableTick(t *testing.T) {
	tests := []struct {
		tick, want int32
	}{
		{0, 0},
		{31, 0},
		{32, 64},
		{-32, 0},
		{-33, -64},
		{95, 64},
		{100, 128},
		{443636, 443584},
		{-443636, -443584},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NearestInitializableTick(tt.tick, 64), "tick %d", tt.tick)
	}
}

func TestInitializableBounds(t *testing.T) {
	assert.Equal(t, int32(443584), MaxInitializableTick(64))
	assert.Equal(t, int32(-443584), MinInitializableTick(64))
	assert.Equal(t, int32(443636), MaxInitializableTick(1))
	assert.Equal(t, int32(-64), FloorInitializableTick(-1, 64))
	assert.Equal(t, int32(64), FloorInitializableTick(127, 64))
}

func TestTickArrayStartIndex(t *testing.T) {
	tests := []struct {
		tick    int32
		spacing uint16
		offset  int32
		want    int32
	}{
		{0, 64, 0, 0},
		{5631, 64, 0, 0},
		{5632, 64, 0, 5632},
		{-1, 64, 0, -5632},
		{-5632, 64, 0, -5632},
		{-5633, 64, 0, -11264},
		{100, 64, 1, 5632},
		{100, 64, -2, -11264},
		{1000, 1, 0, 968},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TickArrayStartIndex(tt.tick, tt.spacing, tt.offset),
			"tick %d spacing %d offset %d", tt.tick, tt.spacing, tt.offset)
	}
}

func TestLiquidityRoundTrip(t *testing.T) {
	lower := TickIndexToSqrtPriceX64(-640)
	upper := TickIndexToSqrtPriceX64(640)

	liquidity := EstimateLiquidityFromTokenA(lower, upper, 1_000_000)
	require.Equal(t, 1, liquidity.Sign())

	amountA := GetTokenAFromLiquidity(liquidity, lower, upper, false)
	assert.LessOrEqual(t, amountA.Uint64(), uint64(1_000_000))
	assert.GreaterOrEqual(t, amountA.Uint64(), uint64(999_990))

	// округление вверх не меньше округления вниз
	up := GetTokenBFromLiquidity(liquidity, lower, upper, true)
	down := GetTokenBFromLiquidity(liquidity, lower, upper, false)
	assert.True(t, up.Cmp(down) >= 0)
	assert.True(t, new(big.Int).Sub(up, down).Cmp(big.NewInt(1)) <= 0)
}

func TestGetTokenAmountsFromLiquidity(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000)
	lower := TickIndexToSqrtPriceX64(-640)
	upper := TickIndexToSqrtPriceX64(640)

	a, b := GetTokenAmountsFromLiquidity(liquidity, TickIndexToSqrtPriceX64(-1000), lower, upper, false)
	assert.Equal(t, 1, a.Sign())
	assert.Equal(t, 0, b.Sign())

	a, b = GetTokenAmountsFromLiquidity(liquidity, q64, lower, upper, false)
	assert.Equal(t, 1, a.Sign())
	assert.Equal(t, 1, b.Sign())

	a, b = GetTokenAmountsFromLiquidity(liquidity, TickIndexToSqrtPriceX64(1000), lower, upper, false)
	assert.Equal(t, 0, a.Sign())
	assert.Equal(t, 1, b.Sign())
}
