// =============================
// File: internal/dex/whirlpool/dex.go
// =============================
package whirlpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/blockchain"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

// DEX – работа с одним пулом Whirlpool: цена, балансы, свапы и позиции.
type DEX struct {
	chain    *blockchain.ChainContext
	config   *Config
	pools    *PoolManager
	priority *types.PriorityManager
	logger   *zap.Logger

	// newPositionMint генерирует keypair для NFT новой позиции
	newPositionMint func() (solana.PrivateKey, error)
}

// NewDEX создаёт DEX. config должен быть подготовлен через Setup.
func NewDEX(
	chain *blockchain.ChainContext,
	config *Config,
	priority *types.PriorityManager,
	logger *zap.Logger,
) (*DEX, error) {
	if chain == nil || chain.Client == nil || chain.Signer == nil || config == nil || priority == nil || logger == nil {
		return nil, fmt.Errorf("chain, config, priority and logger cannot be nil")
	}
	if config.PoolAddress.IsZero() {
		return nil, fmt.Errorf("whirlpool config is not set up: pool address is empty")
	}

	pools := NewPoolManager(chain.Client, logger)
	pools.SeedDecimals(config.Target.Mint, config.Target.Decimals)
	pools.SeedDecimals(config.Stable.Mint, config.Stable.Decimals)

	return &DEX{
		chain:           chain,
		config:          config,
		pools:           pools,
		priority:        priority,
		logger:          logger.Named("whirlpool"),
		newPositionMint: solana.NewRandomPrivateKey,
	}, nil
}

// Config возвращает конфигурацию пула.
func (d *DEX) Config() *Config {
	return d.config
}

// loadPool читает отслеживаемый пул и проверяет, что его mint'ы совпадают с конфигурацией.
func (d *DEX) loadPool(ctx context.Context) (*Whirlpool, error) {
	pool, err := d.pools.FetchPool(ctx, d.config.PoolAddress)
	if err != nil {
		return nil, err
	}
	if !pool.TokenMintA.Equals(d.config.Target.Mint) || !pool.TokenMintB.Equals(d.config.Stable.Mint) {
		return nil, fmt.Errorf("pool %s mints (%s, %s) do not match configured pair",
			d.config.PoolAddress, pool.TokenMintA, pool.TokenMintB)
	}
	return pool, nil
}

// GetPrice возвращает текущую цену target-токена в stable-токенах.
func (d *DEX) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	pool, err := d.loadPool(ctx)
	if err != nil {
		return decimal.Zero, types.Unavailable("get_price", err)
	}
	price := SqrtPriceX64ToPrice(pool.SqrtPrice.BigInt(), d.config.Target.Decimals, d.config.Stable.Decimals)

	d.logger.Debug("Pool price",
		zap.String("pool", d.config.PoolAddress.String()),
		zap.String("price", price.String()),
		zap.Int32("tick_current", pool.TickCurrentIndex))
	return price, nil
}

// GetBalance возвращает балансы target и stable кошелька.
// Отсутствие аккаунта – нулевой баланс; несколько аккаунтов одного mint'а суммируются.
func (d *DEX) GetBalance(ctx context.Context) (types.Balance, error) {
	accounts, err := d.chain.Client.GetTokenAccountsByOwner(ctx, d.chain.Owner())
	if err != nil {
		return types.Balance{}, types.Unavailable("get_balance", err)
	}

	target, stable := new(big.Int), new(big.Int)
	for _, acc := range accounts {
		ta, err := ParseTokenAccount(acc.Data)
		if err != nil {
			d.logger.Debug("Skipping undecodable token account",
				zap.String("address", acc.Address.String()),
				zap.Error(err))
			continue
		}
		switch {
		case ta.Mint.Equals(d.config.Target.Mint):
			target.Add(target, new(big.Int).SetUint64(ta.Amount))
		case ta.Mint.Equals(d.config.Stable.Mint):
			stable.Add(stable, new(big.Int).SetUint64(ta.Amount))
		}
	}

	balance := types.Balance{
		Target: decimal.NewFromBigInt(target, -int32(d.config.Target.Decimals)),
		Stable: decimal.NewFromBigInt(stable, -int32(d.config.Stable.Decimals)),
	}
	d.logger.Debug("Wallet balance",
		zap.String("target", balance.Target.String()),
		zap.String("stable", balance.Stable.String()))
	return balance, nil
}

// Swap меняет amount токена input на другой токен пула (exact input, slippage из конфигурации).
func (d *DEX) Swap(ctx context.Context, input types.TokenSpec, amount decimal.Decimal) (types.SwapResult, error) {
	if amount.Sign() <= 0 {
		return types.SwapResult{}, fmt.Errorf("%w: swap amount must be positive, got %s", types.ErrInvalidArgument, amount)
	}
	raw := input.ToRaw(amount)
	if raw == 0 {
		return types.SwapResult{}, fmt.Errorf("%w: swap amount %s is below token precision", types.ErrInvalidArgument, amount)
	}

	pool, err := d.loadPool(ctx)
	if err != nil {
		return types.SwapResult{}, types.Unavailable("swap", err)
	}

	aToB := input.Mint.Equals(pool.TokenMintA)
	if !aToB && !input.Mint.Equals(pool.TokenMintB) {
		return types.SwapResult{}, fmt.Errorf("%w: mint %s is not part of the pool", types.ErrInvalidArgument, input.Mint)
	}

	tickArrays, ticks, err := d.loadSwapTicks(ctx, pool, aToB)
	if err != nil {
		return types.SwapResult{}, types.Unavailable("swap", err)
	}

	quote, err := QuoteSwapExactIn(pool, ticks, input.Mint, raw, d.config.Slippage)
	if err != nil {
		return types.SwapResult{}, fmt.Errorf("swap quote: %w", err)
	}

	output := d.config.Stable
	if !quote.AToB {
		output = d.config.Target
	}

	atas, ataIxs, err := d.ensureTokenAccounts(ctx, pool.TokenMintA, pool.TokenMintB)
	if err != nil {
		return types.SwapResult{}, types.Unavailable("swap", err)
	}

	oracle, err := FindOracleAddress(d.config.ProgramID, d.config.PoolAddress)
	if err != nil {
		return types.SwapResult{}, fmt.Errorf("swap oracle: %w", err)
	}

	swapIx := createSwapInstruction(&SwapParams{
		ProgramID:              d.config.ProgramID,
		Authority:              d.chain.Owner(),
		Whirlpool:              d.config.PoolAddress,
		TokenOwnerAccountA:     atas[pool.TokenMintA],
		TokenVaultA:            pool.TokenVaultA,
		TokenOwnerAccountB:     atas[pool.TokenMintB],
		TokenVaultB:            pool.TokenVaultB,
		TickArrays:             tickArrays,
		Oracle:                 oracle,
		Amount:                 quote.AmountIn,
		OtherAmountThreshold:   quote.OtherAmountThreshold,
		SqrtPriceLimit:         quote.SqrtPriceLimit,
		AmountSpecifiedIsInput: true,
		AToB:                   quote.AToB,
	})

	result := types.SwapResult{
		InputMint:    input.Mint,
		AmountIn:     input.FromRaw(quote.AmountIn),
		EstimatedOut: output.FromRaw(quote.EstimatedOut),
		MinimumOut:   output.FromRaw(quote.OtherAmountThreshold),
	}

	d.logger.Info("Swap quote",
		zap.String("input_mint", input.Mint.String()),
		zap.String("amount_in", result.AmountIn.String()),
		zap.String("estimated_out", result.EstimatedOut.String()),
		zap.String("minimum_out", result.MinimumOut.String()),
		zap.Bool("a_to_b", quote.AToB),
		zap.Int("crossed_ticks", quote.CrossedTicks),
		zap.String("slippage", d.config.Slippage.String()))

	instructions := append(ataIxs, swapIx)
	sig, err := d.buildAndSubmitTransaction(ctx, "swap", instructions)
	result.Signature = sig
	if err != nil {
		return result, err
	}
	return result, nil
}

// swapTickArrayStarts возвращает стартовые тики трёх tick array по направлению свапа.
func swapTickArrayStarts(tickCurrent int32, tickSpacing uint16, aToB bool) [3]int32 {
	var out [3]int32
	step := int32(-1)
	if !aToB {
		step = 1
		// при движении вверх текущий тик может оказаться на границе следующего массива
		tickCurrent += int32(tickSpacing)
	}
	for i := range out {
		out[i] = TickArrayStartIndex(tickCurrent, tickSpacing, step*int32(i))
	}
	return out
}

// loadSwapTicks вычисляет адреса tick array свапа и читает их инициализированные тики.
// Отсутствующий аккаунт – массив без инициализированных тиков.
func (d *DEX) loadSwapTicks(ctx context.Context, pool *Whirlpool, aToB bool) ([3]solana.PublicKey, *SwapTicks, error) {
	var addrs [3]solana.PublicKey
	starts := swapTickArrayStarts(pool.TickCurrentIndex, pool.TickSpacing, aToB)
	for i, start := range starts {
		addr, err := FindTickArrayAddress(d.config.ProgramID, d.config.PoolAddress, start)
		if err != nil {
			return addrs, nil, fmt.Errorf("tick array address for %d: %w", start, err)
		}
		addrs[i] = addr
	}

	accounts, err := d.pools.FetchAccounts(ctx, addrs[:])
	if err != nil {
		return addrs, nil, fmt.Errorf("fetch tick arrays: %w", err)
	}
	arrays := make([]*TickArray, len(accounts))
	for i, acc := range accounts {
		if acc == nil {
			continue
		}
		if arrays[i], err = ParseTickArray(acc.Data); err != nil {
			return addrs, nil, fmt.Errorf("tick array %s: %w", addrs[i], err)
		}
	}

	ticks, err := NewSwapTicks(pool.TickSpacing, starts[:], arrays)
	if err != nil {
		return addrs, nil, err
	}
	return addrs, ticks, nil
}
