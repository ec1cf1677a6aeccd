// =============================
// File: internal/dex/whirlpool/positions.go
// =============================
package whirlpool

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

// ListPositions возвращает все позиции Whirlpool, NFT которых лежат в кошельке.
// Порядок не гарантируется.
func (d *DEX) ListPositions(ctx context.Context) ([]types.Position, error) {
	const op = "list_positions"

	tokenAccounts, err := d.chain.Client.GetTokenAccountsByOwner(ctx, d.chain.Owner())
	if err != nil {
		return nil, types.Unavailable(op, err)
	}

	// NFT позиции – токен-аккаунт с балансом ровно 1
	var candidates []solana.PublicKey
	for _, acc := range tokenAccounts {
		ta, err := ParseTokenAccount(acc.Data)
		if err != nil || ta.Amount != 1 {
			continue
		}
		addr, _, err := FindPositionAddress(d.config.ProgramID, ta.Mint)
		if err != nil {
			continue
		}
		candidates = append(candidates, addr)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	accounts, err := d.pools.FetchAccounts(ctx, candidates)
	if err != nil {
		return nil, types.Unavailable(op, err)
	}

	type found struct {
		address solana.PublicKey
		state   *PositionAccount
	}
	var records []found
	var poolKeys []solana.PublicKey
	for i, acc := range accounts {
		if acc == nil || !acc.Owner.Equals(d.config.ProgramID) {
			continue
		}
		state, err := ParsePosition(acc.Data)
		if err != nil {
			d.logger.Debug("Skipping non-position account",
				zap.String("address", candidates[i].String()),
				zap.Error(err))
			continue
		}
		records = append(records, found{address: candidates[i], state: state})
		poolKeys = append(poolKeys, state.Whirlpool)
	}
	if len(records) == 0 {
		return nil, nil
	}

	pools, err := d.pools.FetchPools(ctx, uniqueKeys(poolKeys))
	if err != nil {
		return nil, types.Unavailable(op, err)
	}

	mints := make([]solana.PublicKey, 0, 2*len(pools))
	for _, p := range pools {
		mints = append(mints, p.TokenMintA, p.TokenMintB)
	}
	decimals, err := d.pools.MintDecimals(ctx, mints)
	if err != nil {
		return nil, types.Unavailable(op, err)
	}

	positions := make([]types.Position, 0, len(records))
	for _, r := range records {
		pool := pools[r.state.Whirlpool]
		decA, decB := decimals[pool.TokenMintA], decimals[pool.TokenMintB]

		liquidity := r.state.Liquidity.BigInt()
		sqrtLower := TickIndexToSqrtPriceX64(r.state.TickLowerIndex)
		sqrtUpper := TickIndexToSqrtPriceX64(r.state.TickUpperIndex)
		amountA, amountB := GetTokenAmountsFromLiquidity(liquidity, pool.SqrtPrice.BigInt(), sqrtLower, sqrtUpper, true)

		positions = append(positions, types.Position{
			Address:      r.address,
			PositionMint: r.state.PositionMint,
			Pool:         r.state.Whirlpool,
			PoolPrice:    SqrtPriceX64ToPrice(pool.SqrtPrice.BigInt(), decA, decB),
			TokenA:       pool.TokenMintA,
			TokenB:       pool.TokenMintB,
			Liquidity:    liquidity,
			TickLower:    r.state.TickLowerIndex,
			TickUpper:    r.state.TickUpperIndex,
			Lower:        SqrtPriceX64ToPrice(sqrtLower, decA, decB),
			Upper:        SqrtPriceX64ToPrice(sqrtUpper, decA, decB),
			AmountA:      decimal.NewFromBigInt(amountA, -int32(decA)),
			AmountB:      decimal.NewFromBigInt(amountB, -int32(decB)),
		})
	}

	d.logger.Debug("Positions listed",
		zap.Int("token_accounts", len(tokenAccounts)),
		zap.Int("candidates", len(candidates)),
		zap.Int("positions", len(positions)))
	return positions, nil
}

// straddleTicks расширяет диапазон целыми шагами tickSpacing так, чтобы
// выполнялось tickLower <= tickCurrent < tickUpper.
func straddleTicks(tickLower, tickUpper, tickCurrent int32, tickSpacing uint16) (int32, int32) {
	s := int32(tickSpacing)
	if tickLower > tickCurrent {
		tickLower = FloorInitializableTick(tickCurrent, tickSpacing)
	}
	if tickUpper <= tickCurrent {
		tickUpper = FloorInitializableTick(tickCurrent, tickSpacing) + s
	}
	if tickLower >= tickUpper {
		tickUpper = tickLower + s
	}
	return clampInitializable(tickLower, tickSpacing), clampInitializable(tickUpper, tickSpacing)
}

// OpenPosition открывает позицию в диапазоне [lower, upper] и вносит deposit target-токена.
func (d *DEX) OpenPosition(ctx context.Context, lower, upper, deposit decimal.Decimal) (types.PositionHandle, error) {
	const op = "open_position"

	switch {
	case deposit.Sign() <= 0:
		return types.PositionHandle{}, fmt.Errorf("%w: deposit must be positive, got %s", types.ErrInvalidArgument, deposit)
	case lower.Sign() <= 0:
		return types.PositionHandle{}, fmt.Errorf("%w: lower price must be positive, got %s", types.ErrInvalidArgument, lower)
	case !lower.LessThan(upper):
		return types.PositionHandle{}, fmt.Errorf("%w: lower %s must be below upper %s", types.ErrInvalidArgument, lower, upper)
	}
	raw := d.config.Target.ToRaw(deposit)
	if raw == 0 {
		return types.PositionHandle{}, fmt.Errorf("%w: deposit %s is below token precision", types.ErrInvalidArgument, deposit)
	}

	pool, err := d.loadPool(ctx)
	if err != nil {
		return types.PositionHandle{}, types.Unavailable(op, err)
	}

	decA, decB := d.config.Target.Decimals, d.config.Stable.Decimals
	spacing := pool.TickSpacing
	requestedLower := PriceToInitializableTickIndex(lower, decA, decB, spacing)
	requestedUpper := PriceToInitializableTickIndex(upper, decA, decB, spacing)
	tickLower, tickUpper := straddleTicks(requestedLower, requestedUpper, pool.TickCurrentIndex, spacing)

	handle := types.PositionHandle{
		TickLower: tickLower,
		TickUpper: tickUpper,
		Lower:     TickIndexToPrice(tickLower, decA, decB),
		Upper:     TickIndexToPrice(tickUpper, decA, decB),
	}
	if tickLower != requestedLower || tickUpper != requestedUpper {
		d.logger.Warn("Position range adjusted to straddle current tick",
			zap.Int32("tick_current", pool.TickCurrentIndex),
			zap.Int32("requested_tick_lower", requestedLower),
			zap.Int32("requested_tick_upper", requestedUpper),
			zap.Int32("tick_lower", tickLower),
			zap.Int32("tick_upper", tickUpper))
	}
	d.logger.Info("Position range",
		zap.String("requested_lower", lower.String()),
		zap.String("requested_upper", upper.String()),
		zap.String("lower", handle.Lower.String()),
		zap.String("upper", handle.Upper.String()),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper))

	quote, err := QuoteIncreaseLiquidityByTokenA(pool.SqrtPrice.BigInt(), pool.TickCurrentIndex, tickLower, tickUpper, raw, d.config.Slippage)
	if err != nil {
		return handle, fmt.Errorf("increase liquidity quote: %w", err)
	}
	d.logger.Info("Deposit quote",
		zap.String("liquidity", quote.Liquidity.String()),
		zap.String("token_max_a", d.config.Target.FromRaw(quote.TokenMaxA).String()),
		zap.String("token_max_b", d.config.Stable.FromRaw(quote.TokenMaxB).String()))

	positionMintKey, err := d.newPositionMint()
	if err != nil {
		return handle, fmt.Errorf("generate position mint: %w", err)
	}
	positionMint := positionMintKey.PublicKey()
	owner := d.chain.Owner()

	position, positionBump, err := FindPositionAddress(d.config.ProgramID, positionMint)
	if err != nil {
		return handle, fmt.Errorf("derive position address: %w", err)
	}
	metadata, metadataBump, err := FindPositionMetadataAddress(positionMint)
	if err != nil {
		return handle, fmt.Errorf("derive metadata address: %w", err)
	}
	positionTokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, positionMint)
	if err != nil {
		return handle, fmt.Errorf("derive position token account: %w", err)
	}

	tickArrayIxs, tickArrayLower, tickArrayUpper, err := d.prepareTickArrays(ctx, tickLower, tickUpper, spacing)
	if err != nil {
		return handle, types.Unavailable(op, err)
	}
	atas, ataIxs, err := d.ensureTokenAccounts(ctx, pool.TokenMintA, pool.TokenMintB)
	if err != nil {
		return handle, types.Unavailable(op, err)
	}

	instructions := make([]solana.Instruction, 0, len(ataIxs)+len(tickArrayIxs)+2)
	instructions = append(instructions, ataIxs...)
	instructions = append(instructions, tickArrayIxs...)
	instructions = append(instructions,
		createOpenPositionWithMetadataInstruction(&OpenPositionParams{
			ProgramID:            d.config.ProgramID,
			Funder:               owner,
			Owner:                owner,
			Position:             position,
			PositionBump:         positionBump,
			PositionMint:         positionMint,
			Metadata:             metadata,
			MetadataBump:         metadataBump,
			PositionTokenAccount: positionTokenAccount,
			Whirlpool:            d.config.PoolAddress,
			TickLowerIndex:       tickLower,
			TickUpperIndex:       tickUpper,
		}),
		createIncreaseLiquidityInstruction(&ModifyLiquidityParams{
			ProgramID:            d.config.ProgramID,
			Whirlpool:            d.config.PoolAddress,
			Authority:            owner,
			Position:             position,
			PositionTokenAccount: positionTokenAccount,
			TokenOwnerAccountA:   atas[pool.TokenMintA],
			TokenOwnerAccountB:   atas[pool.TokenMintB],
			TokenVaultA:          pool.TokenVaultA,
			TokenVaultB:          pool.TokenVaultB,
			TickArrayLower:       tickArrayLower,
			TickArrayUpper:       tickArrayUpper,
			Liquidity:            quote.Liquidity,
			TokenA:               quote.TokenMaxA,
			TokenB:               quote.TokenMaxB,
		}),
	)

	sig, err := d.buildAndSubmitTransaction(ctx, op, instructions, positionMintKey)
	handle.Signature = sig
	if err != nil {
		return handle, err
	}

	handle.Address = position
	handle.PositionMint = positionMint
	d.logger.Info("Position opened",
		zap.String("position", position.String()),
		zap.String("position_mint", positionMint.String()),
		zap.String("signature", sig.String()))
	return handle, nil
}

// prepareTickArrays возвращает адреса tick array для границ и инструкции инициализации отсутствующих.
func (d *DEX) prepareTickArrays(
	ctx context.Context,
	tickLower, tickUpper int32,
	spacing uint16,
) ([]solana.Instruction, solana.PublicKey, solana.PublicKey, error) {
	lowerStart := TickArrayStartIndex(tickLower, spacing, 0)
	upperStart := TickArrayStartIndex(tickUpper, spacing, 0)

	lowerAddr, err := FindTickArrayAddress(d.config.ProgramID, d.config.PoolAddress, lowerStart)
	if err != nil {
		return nil, solana.PublicKey{}, solana.PublicKey{}, err
	}
	upperAddr, err := FindTickArrayAddress(d.config.ProgramID, d.config.PoolAddress, upperStart)
	if err != nil {
		return nil, solana.PublicKey{}, solana.PublicKey{}, err
	}

	starts := []int32{lowerStart}
	addrs := []solana.PublicKey{lowerAddr}
	if upperStart != lowerStart {
		starts = append(starts, upperStart)
		addrs = append(addrs, upperAddr)
	}

	accounts, err := d.pools.FetchAccounts(ctx, addrs)
	if err != nil {
		return nil, solana.PublicKey{}, solana.PublicKey{}, err
	}

	var instructions []solana.Instruction
	for i, acc := range accounts {
		if acc != nil {
			continue
		}
		d.logger.Info("Initializing tick array",
			zap.Int32("start_tick_index", starts[i]),
			zap.String("tick_array", addrs[i].String()))
		instructions = append(instructions,
			createInitializeTickArrayInstruction(d.config.ProgramID, d.config.PoolAddress, d.chain.Owner(), addrs[i], starts[i]))
	}
	return instructions, lowerAddr, upperAddr, nil
}

// ClosePosition собирает комиссии и награды, выводит ликвидность и закрывает позицию одной транзакцией.
func (d *DEX) ClosePosition(ctx context.Context, address solana.PublicKey) (solana.Signature, error) {
	const op = "close_position"

	data, err := d.chain.Client.GetAccountData(ctx, address)
	if err != nil {
		return solana.Signature{}, types.Unavailable(op, err)
	}
	position, err := ParsePosition(data)
	if err != nil {
		return solana.Signature{}, types.Unavailable(op, err)
	}
	pool, err := d.pools.FetchPool(ctx, position.Whirlpool)
	if err != nil {
		return solana.Signature{}, types.Unavailable(op, err)
	}

	owner := d.chain.Owner()
	positionTokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, position.PositionMint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("derive position token account: %w", err)
	}

	tickArrayLower, err := FindTickArrayAddress(d.config.ProgramID, position.Whirlpool,
		TickArrayStartIndex(position.TickLowerIndex, pool.TickSpacing, 0))
	if err != nil {
		return solana.Signature{}, err
	}
	tickArrayUpper, err := FindTickArrayAddress(d.config.ProgramID, position.Whirlpool,
		TickArrayStartIndex(position.TickUpperIndex, pool.TickSpacing, 0))
	if err != nil {
		return solana.Signature{}, err
	}

	mints := []solana.PublicKey{pool.TokenMintA, pool.TokenMintB}
	for _, reward := range pool.RewardInfos {
		if reward.Initialized() {
			mints = append(mints, reward.Mint)
		}
	}
	atas, ataIxs, err := d.ensureTokenAccounts(ctx, mints...)
	if err != nil {
		return solana.Signature{}, types.Unavailable(op, err)
	}

	collect := &CollectParams{
		ProgramID:            d.config.ProgramID,
		Whirlpool:            position.Whirlpool,
		Authority:            owner,
		Position:             address,
		PositionMint:         position.PositionMint,
		PositionTokenAccount: positionTokenAccount,
		TokenOwnerAccountA:   atas[pool.TokenMintA],
		TokenOwnerAccountB:   atas[pool.TokenMintB],
		TokenVaultA:          pool.TokenVaultA,
		TokenVaultB:          pool.TokenVaultB,
	}

	liquidity := position.Liquidity.BigInt()
	instructions := append([]solana.Instruction{}, ataIxs...)

	// update_fees_and_rewards и decrease_liquidity программа отклоняет при нулевой ликвидности
	if liquidity.Sign() > 0 {
		instructions = append(instructions,
			createUpdateFeesAndRewardsInstruction(d.config.ProgramID, position.Whirlpool, address, tickArrayLower, tickArrayUpper))
	}
	instructions = append(instructions, createCollectFeesInstruction(collect))
	for i, reward := range pool.RewardInfos {
		if !reward.Initialized() {
			continue
		}
		instructions = append(instructions,
			createCollectRewardInstruction(collect, uint8(i), atas[reward.Mint], reward.Vault))
	}

	if liquidity.Sign() > 0 {
		quote, err := QuoteDecreaseLiquidity(liquidity, pool.SqrtPrice.BigInt(),
			pool.TickCurrentIndex, position.TickLowerIndex, position.TickUpperIndex, d.config.Slippage)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("decrease liquidity quote: %w", err)
		}
		d.logger.Info("Withdraw quote",
			zap.String("position", address.String()),
			zap.String("liquidity", liquidity.String()),
			zap.Uint64("token_min_a", quote.TokenMinA),
			zap.Uint64("token_min_b", quote.TokenMinB))

		instructions = append(instructions, createDecreaseLiquidityInstruction(&ModifyLiquidityParams{
			ProgramID:            d.config.ProgramID,
			Whirlpool:            position.Whirlpool,
			Authority:            owner,
			Position:             address,
			PositionTokenAccount: positionTokenAccount,
			TokenOwnerAccountA:   atas[pool.TokenMintA],
			TokenOwnerAccountB:   atas[pool.TokenMintB],
			TokenVaultA:          pool.TokenVaultA,
			TokenVaultB:          pool.TokenVaultB,
			TickArrayLower:       tickArrayLower,
			TickArrayUpper:       tickArrayUpper,
			Liquidity:            liquidity,
			TokenA:               quote.TokenMinA,
			TokenB:               quote.TokenMinB,
		}))
	}

	instructions = append(instructions, createClosePositionInstruction(collect, owner))

	sig, err := d.buildAndSubmitTransaction(ctx, op, instructions)
	if err != nil {
		return sig, err
	}
	d.logger.Info("Position closed",
		zap.String("position", address.String()),
		zap.String("signature", sig.String()))
	return sig, nil
}
