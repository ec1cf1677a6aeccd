package bot

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

var (
	testTarget = types.TokenSpec{Mint: solana.MustPublicKeyFromBase58("orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE"), Decimals: 6}
	testStable = types.TokenSpec{Mint: solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"), Decimals: 6}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balance(target, stable string) types.Balance {
	return types.Balance{Target: d(target), Stable: d(stable)}
}

func TestDecideScenarioStableToTarget(t *testing.T) {
	dec, err := Decide(balance("1000", "100"), d("0.05"), testTarget, testStable)
	require.NoError(t, err)
	assert.Equal(t, StableToTarget, dec.Direction)
	assert.Equal(t, testStable, dec.Input)
	assert.True(t, dec.Amount.Equal(d("25")), dec.Amount.String())
	assert.True(t, dec.Diff.Equal(d("-50")))
}

func TestDecideTargetToStable(t *testing.T) {
	// стоимость target 200, стейбл 100: diff 100, полный ребаланс 100/2=50 токенов, половина 25
	dec, err := Decide(balance("100", "100"), d("2"), testTarget, testStable)
	require.NoError(t, err)
	assert.Equal(t, TargetToStable, dec.Direction)
	assert.Equal(t, testTarget, dec.Input)
	assert.True(t, dec.Amount.Equal(d("25")), dec.Amount.String())
}

func TestDecideSymmetry(t *testing.T) {
	price := d("1")
	over, err := Decide(balance("150", "50"), price, testTarget, testStable)
	require.NoError(t, err)
	under, err := Decide(balance("50", "150"), price, testTarget, testStable)
	require.NoError(t, err)

	assert.Equal(t, TargetToStable, over.Direction)
	assert.Equal(t, StableToTarget, under.Direction)
	assert.True(t, over.Amount.Equal(under.Amount), "%s != %s", over.Amount, under.Amount)
	assert.NotEqual(t, over.Input, under.Input)
}

func TestDecideDeadband(t *testing.T) {
	cases := []struct {
		name   string
		target string
		stable string
		price  string
		swap   bool
	}{
		{"balanced", "100", "100", "1", false},
		{"just inside", "100.99", "100", "1", false},
		{"on boundary", "101", "100", "1", true},
		{"inside below", "99.01", "100", "1", false},
		{"empty wallet", "0", "0", "1", false},
		{"only target", "10", "0", "3", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := Decide(balance(tc.target, tc.stable), d(tc.price), testTarget, testStable)
			require.NoError(t, err)
			assert.Equal(t, tc.swap, dec.Swap())
			if !tc.swap {
				assert.NotEmpty(t, dec.Reason)
			}
		})
	}
}

func TestDecideDampingIsExactlyHalf(t *testing.T) {
	cases := []struct {
		target, stable, price string
	}{
		{"10", "0", "3"},
		{"0", "10", "4"},
		{"1234.5", "17.25", "0.5"},
		{"3", "1000", "12.5"},
	}
	for _, tc := range cases {
		dec, err := Decide(balance(tc.target, tc.stable), d(tc.price), testTarget, testStable)
		require.NoError(t, err)
		require.True(t, dec.Swap())

		var full decimal.Decimal
		if dec.Direction == TargetToStable {
			full = dec.Diff.Div(d(tc.price))
		} else {
			full = dec.Diff.Abs()
		}
		want := full.Div(decimal.NewFromInt(2)).Truncate(6)
		assert.True(t, dec.Amount.Equal(want), "%v: got %s want %s", tc, dec.Amount, want)
	}
}

func TestDecideQuantizedToZeroIsSkipped(t *testing.T) {
	tiny := types.TokenSpec{Mint: testStable.Mint, Decimals: 0}
	dec, err := Decide(balance("0", "0.5"), d("1"), testTarget, tiny)
	require.NoError(t, err)
	assert.False(t, dec.Swap())
	assert.Equal(t, "amount below token precision", dec.Reason)
}

func TestDecideRejectsNonPositivePrice(t *testing.T) {
	_, err := Decide(balance("1", "1"), decimal.Zero, testTarget, testStable)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestPlanOpen(t *testing.T) {
	plan := PlanOpen(d("1.00"), d("0.02"), d("123.456789"))
	assert.True(t, plan.Lower.Equal(d("0.99")), plan.Lower.String())
	assert.True(t, plan.Upper.Equal(d("1.01")), plan.Upper.String())
	assert.True(t, plan.Deposit.Equal(d("111.1111101")), plan.Deposit.String())
}
