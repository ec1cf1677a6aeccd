package whirlpool

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/blockchain"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/utils/binary"
)

func TestNewDEXValidation(t *testing.T) {
	_, err := NewDEX(nil, &Config{}, nil, nil)
	assert.Error(t, err)
}

func TestGetPrice(t *testing.T) {
	env := newTestEnv(t)

	price, err := env.dex.GetPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)), "price %s", price)

	env.client.readErr = errors.New("rpc down")
	_, err = env.dex.GetPrice(context.Background())
	assert.True(t, types.IsUnavailable(err))
}

func TestGetPriceRejectsForeignPool(t *testing.T) {
	env := newTestEnv(t)
	env.pool.TokenMintA = solana.NewWallet().PublicKey()
	env.storePool()

	_, err := env.dex.GetPrice(context.Background())
	assert.True(t, types.IsUnavailable(err))
}

func TestGetBalanceSumsAccounts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.wallet.Address()
	env.client.tokenAccounts = []*blockchain.AccountData{
		{Data: tokenAccountData(env.config.Target.Mint, owner, 1_000_000)},
		{Data: tokenAccountData(env.config.Target.Mint, owner, 500_000)},
		{Data: tokenAccountData(env.config.Stable.Mint, owner, 2_000_000)},
		{Data: tokenAccountData(solana.NewWallet().PublicKey(), owner, 9_000_000)},
		{Data: []byte{1, 2, 3}},
	}

	balance, err := env.dex.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Target.Equal(decimal.RequireFromString("1.5")), "target %s", balance.Target)
	assert.True(t, balance.Stable.Equal(decimal.NewFromInt(2)), "stable %s", balance.Stable)
}

func TestGetBalanceMissingMintIsZero(t *testing.T) {
	env := newTestEnv(t)
	balance, err := env.dex.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Target.IsZero())
	assert.True(t, balance.Stable.IsZero())

	env.client.readErr = errors.New("rpc down")
	_, err = env.dex.GetBalance(context.Background())
	assert.True(t, types.IsUnavailable(err))
}

func TestSwapPreconditions(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dex.Swap(context.Background(), env.config.Target, decimal.Zero)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = env.dex.Swap(context.Background(), env.config.Target, decimal.RequireFromString("0.0000001"))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	foreign := types.TokenSpec{Mint: solana.NewWallet().PublicKey(), Decimals: 6}
	_, err = env.dex.Swap(context.Background(), foreign, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	assert.Equal(t, 0, env.client.sentCount())
}

func TestSwapSubmitsSingleTransaction(t *testing.T) {
	env := newTestEnv(t)

	// ATA для token A уже есть, для token B – нет
	ataA, err := env.wallet.GetATA(env.config.Target.Mint)
	require.NoError(t, err)
	env.client.put(ataA, solana.TokenProgramID, tokenAccountData(env.config.Target.Mint, env.wallet.Address(), 5_000_000))

	result, err := env.dex.Swap(context.Background(), env.config.Target, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Equal(t, 1, env.client.sentCount())

	assert.False(t, result.Signature.IsZero())
	assert.Equal(t, env.config.Target.Mint, result.InputMint)
	assert.True(t, result.AmountIn.Equal(decimal.NewFromInt(1)))
	assert.True(t, result.MinimumOut.LessThan(result.EstimatedOut))
	assert.True(t, result.EstimatedOut.LessThan(decimal.NewFromInt(1)))

	tx := env.client.sent[0]
	assert.Len(t, instructionsOf(t, tx, solana.SPLAssociatedTokenAccountProgramID), 1)
	swaps := instructionsOf(t, tx, WhirlpoolProgramID)
	require.Len(t, swaps, 1)
	assert.True(t, hasPrefix(swaps[0], swapDiscriminator))
	assert.Equal(t, byte(1), swaps[0][41], "a_to_b for target input")
}

func TestSwapSubmissionFailure(t *testing.T) {
	env := newTestEnv(t)
	env.client.sendErr = errors.New("custom program error: 0x1794")

	_, err := env.dex.Swap(context.Background(), env.config.Stable, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.True(t, types.IsSubmission(err))

	var slip *SlippageExceededError
	assert.True(t, errors.As(err, &slip))

	env.client.sendErr = nil
	env.client.confirmErr = errors.New("transaction failed on-chain")
	result, err := env.dex.Swap(context.Background(), env.config.Stable, decimal.NewFromInt(1))
	assert.True(t, types.IsSubmission(err))
	assert.False(t, result.Signature.IsZero())
}

func TestSwapQuoteUsesOnChainTickArrays(t *testing.T) {
	env := newTestEnv(t)
	env.pool.Liquidity = u128(big.NewInt(1_000_000_000))
	env.storePool()

	// выше тика 640 ликвидность в десять раз меньше
	starts := swapTickArrayStarts(env.pool.TickCurrentIndex, env.pool.TickSpacing, false)
	first := &TickArray{StartTickIndex: starts[0], Whirlpool: env.config.PoolAddress}
	first.Ticks[10] = initializedTick(big.NewInt(-900_000_000))
	addr, err := FindTickArrayAddress(env.config.ProgramID, env.config.PoolAddress, starts[0])
	require.NoError(t, err)
	env.client.put(addr, env.config.ProgramID, encodeAccount(t, TickArrayDiscriminator, tickArrayAccountSize, *first))

	result, err := env.dex.Swap(context.Background(), env.config.Stable, decimal.NewFromInt(50))
	require.NoError(t, err)

	ticks, err := NewSwapTicks(env.pool.TickSpacing, starts[:], []*TickArray{first, nil, nil})
	require.NoError(t, err)
	want, err := QuoteSwapExactIn(env.pool, ticks, env.config.Stable.Mint, 50_000_000, env.config.Slippage)
	require.NoError(t, err)
	require.Equal(t, 1, want.CrossedTicks)
	assert.True(t, result.MinimumOut.Equal(env.config.Target.FromRaw(want.OtherAmountThreshold)),
		"minimum out %s", result.MinimumOut)

	single, err := QuoteSwapExactIn(env.pool, emptyTicks(t, env.pool, false), env.config.Stable.Mint, 50_000_000, env.config.Slippage)
	require.NoError(t, err)
	assert.True(t, result.MinimumOut.LessThan(env.config.Target.FromRaw(single.OtherAmountThreshold)))

	// порог попадает в данные инструкции свапа
	swaps := instructionsOf(t, env.client.sent[0], WhirlpoolProgramID)
	require.Len(t, swaps, 1)
	threshold := make([]byte, 8)
	binary.WriteUint64LittleEndian(want.OtherAmountThreshold, threshold, 0)
	assert.Equal(t, threshold, swaps[0][16:24])
}

func TestSwapRejectsCorruptTickArray(t *testing.T) {
	env := newTestEnv(t)
	starts := swapTickArrayStarts(env.pool.TickCurrentIndex, env.pool.TickSpacing, true)
	addr, err := FindTickArrayAddress(env.config.ProgramID, env.config.PoolAddress, starts[0])
	require.NoError(t, err)
	env.client.put(addr, env.config.ProgramID, []byte{1, 2, 3})

	_, err = env.dex.Swap(context.Background(), env.config.Target, decimal.NewFromInt(1))
	assert.True(t, types.IsUnavailable(err))
	assert.Equal(t, 0, env.client.sentCount())
}

func (e *testEnv) putPosition(t *testing.T, liquidity int64, lower, upper int32) (solana.PublicKey, solana.PublicKey) {
	t.Helper()
	mint := solana.NewWallet().PublicKey()
	address, _, err := FindPositionAddress(e.config.ProgramID, mint)
	require.NoError(t, err)

	state := PositionAccount{
		Whirlpool:      e.config.PoolAddress,
		PositionMint:   mint,
		Liquidity:      u128(big.NewInt(liquidity)),
		TickLowerIndex: lower,
		TickUpperIndex: upper,
	}
	e.client.put(address, e.config.ProgramID, encodeAccount(t, PositionDiscriminator, positionAccountSize, state))
	e.client.tokenAccounts = append(e.client.tokenAccounts,
		&blockchain.AccountData{Data: tokenAccountData(mint, e.wallet.Address(), 1)})
	return address, mint
}

func TestListPositions(t *testing.T) {
	env := newTestEnv(t)
	owner := env.wallet.Address()

	address, mint := env.putPosition(t, 1_000_000_000, -640, 640)

	// NFT без аккаунта позиции и обычный токен не являются позициями
	env.client.tokenAccounts = append(env.client.tokenAccounts,
		&blockchain.AccountData{Data: tokenAccountData(solana.NewWallet().PublicKey(), owner, 1)},
		&blockchain.AccountData{Data: tokenAccountData(env.config.Stable.Mint, owner, 5)},
	)

	positions, err := env.dex.ListPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, address, p.Address)
	assert.Equal(t, mint, p.PositionMint)
	assert.Equal(t, env.config.PoolAddress, p.Pool)
	assert.True(t, p.Matches(env.config.Target, env.config.Stable))
	assert.True(t, p.PoolPrice.Equal(decimal.NewFromInt(1)))
	assert.True(t, p.Lower.LessThan(decimal.NewFromInt(1)))
	assert.True(t, p.Upper.GreaterThan(decimal.NewFromInt(1)))
	assert.True(t, p.AmountA.IsPositive())
	assert.True(t, p.AmountB.IsPositive())
	assert.Equal(t, 0, p.Liquidity.Cmp(big.NewInt(1_000_000_000)))
}

func TestListPositionsEmptyAndUnavailable(t *testing.T) {
	env := newTestEnv(t)
	positions, err := env.dex.ListPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)

	env.client.readErr = errors.New("rpc down")
	_, err = env.dex.ListPositions(context.Background())
	assert.True(t, types.IsUnavailable(err))
}

func TestOpenPositionPreconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	one := decimal.NewFromInt(1)

	tests := []struct {
		name                  string
		lower, upper, deposit decimal.Decimal
	}{
		{"zero deposit", decimal.RequireFromString("0.9"), decimal.RequireFromString("1.1"), decimal.Zero},
		{"non-positive lower", decimal.Zero, one, one},
		{"inverted range", decimal.RequireFromString("1.1"), decimal.RequireFromString("0.9"), one},
		{"empty range", one, one, one},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.dex.OpenPosition(ctx, tt.lower, tt.upper, tt.deposit)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
	assert.Equal(t, 0, env.client.sentCount())
}

func TestOpenPosition(t *testing.T) {
	env := newTestEnv(t)
	mintKey := solana.NewWallet().PrivateKey
	env.dex.newPositionMint = func() (solana.PrivateKey, error) { return mintKey, nil }

	handle, err := env.dex.OpenPosition(context.Background(),
		decimal.RequireFromString("0.99"), decimal.RequireFromString("1.01"), decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Equal(t, 1, env.client.sentCount())

	assert.Equal(t, mintKey.PublicKey(), handle.PositionMint)
	assert.False(t, handle.Signature.IsZero())
	assert.LessOrEqual(t, handle.TickLower, env.pool.TickCurrentIndex)
	assert.Greater(t, handle.TickUpper, env.pool.TickCurrentIndex)
	assert.Equal(t, int32(0), handle.TickLower%64)
	assert.Equal(t, int32(0), handle.TickUpper%64)

	tx := env.client.sent[0]
	assert.Len(t, tx.Signatures, 2, "wallet and position mint sign")

	ixs := instructionsOf(t, tx, WhirlpoolProgramID)
	// tick array [-5632, 0) и [0, 5632) отсутствуют
	require.Len(t, ixs, 4)
	assert.True(t, hasPrefix(ixs[0], initializeTickArrayDiscriminator))
	assert.True(t, hasPrefix(ixs[1], initializeTickArrayDiscriminator))
	assert.True(t, hasPrefix(ixs[2], openPositionWithMetadataDiscriminator))
	assert.True(t, hasPrefix(ixs[3], increaseLiquidityDiscriminator))
	assert.Len(t, instructionsOf(t, tx, solana.SPLAssociatedTokenAccountProgramID), 2)
}

func TestOpenPositionStraddlesCurrentTick(t *testing.T) {
	env := newTestEnv(t)
	env.pool.TickCurrentIndex = 100
	env.pool.SqrtPrice = u128(TickIndexToSqrtPriceX64(100))
	env.storePool()

	// весь диапазон выше текущей цены
	handle, err := env.dex.OpenPosition(context.Background(),
		decimal.RequireFromString("1.05"), decimal.RequireFromString("1.10"), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, int32(64), handle.TickLower)
	assert.Greater(t, handle.TickUpper, int32(100))
}

func TestStraddleTicks(t *testing.T) {
	tests := []struct {
		name                  string
		lower, upper, current int32
		wantLower, wantUpper  int32
	}{
		{"already straddles", -640, 640, 0, -640, 640},
		{"range above", 640, 1280, 100, 64, 1280},
		{"range below", -1280, -640, 100, -1280, 128},
		{"collapsed at current", 64, 64, 64, 64, 128},
		{"collapsed above", 128, 128, 10, 0, 128},
		{"current on upper bound", -64, 64, 64, -64, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower, upper := straddleTicks(tt.lower, tt.upper, tt.current, 64)
			assert.Equal(t, tt.wantLower, lower)
			assert.Equal(t, tt.wantUpper, upper)
			assert.LessOrEqual(t, lower, tt.current)
			assert.Greater(t, upper, tt.current)
		})
	}
}

func TestClosePosition(t *testing.T) {
	env := newTestEnv(t)
	env.pool.RewardInfos[1].Mint = solana.NewWallet().PublicKey()
	env.pool.RewardInfos[1].Vault = solana.NewWallet().PublicKey()
	env.storePool()

	address, _ := env.putPosition(t, 1_000_000_000, -640, 640)

	sig, err := env.dex.ClosePosition(context.Background(), address)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	require.Equal(t, 1, env.client.sentCount())

	tx := env.client.sent[0]
	// A, B и mint награды
	assert.Len(t, instructionsOf(t, tx, solana.SPLAssociatedTokenAccountProgramID), 3)

	ixs := instructionsOf(t, tx, WhirlpoolProgramID)
	want := [][]byte{
		updateFeesAndRewardsDiscriminator,
		collectFeesDiscriminator,
		collectRewardDiscriminator,
		decreaseLiquidityDiscriminator,
		closePositionDiscriminator,
	}
	require.Len(t, ixs, len(want))
	for i := range want {
		assert.True(t, hasPrefix(ixs[i], want[i]), "instruction %d", i)
	}
	assert.Equal(t, byte(1), ixs[2][8], "reward slot index")
}

func TestClosePositionWithoutLiquidity(t *testing.T) {
	env := newTestEnv(t)
	address, _ := env.putPosition(t, 0, -640, 640)

	_, err := env.dex.ClosePosition(context.Background(), address)
	require.NoError(t, err)

	ixs := instructionsOf(t, env.client.sent[0], WhirlpoolProgramID)
	require.Len(t, ixs, 2)
	assert.True(t, hasPrefix(ixs[0], collectFeesDiscriminator))
	assert.True(t, hasPrefix(ixs[1], closePositionDiscriminator))
}

func TestClosePositionFailures(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dex.ClosePosition(context.Background(), solana.NewWallet().PublicKey())
	assert.True(t, types.IsUnavailable(err))

	address, _ := env.putPosition(t, 1_000, -640, 640)
	env.client.confirmErr = errors.New("transaction failed on-chain")
	sig, err := env.dex.ClosePosition(context.Background(), address)
	assert.True(t, types.IsSubmission(err))
	assert.False(t, sig.IsZero())
}
