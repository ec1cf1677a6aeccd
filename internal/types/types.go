// internal/types/types.go
package types

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// TokenSpec описывает токен: mint и количество знаков после запятой.
type TokenSpec struct {
	Mint     solana.PublicKey
	Decimals uint8
}

// FromRaw переводит сырое on-chain значение в человекочитаемое.
func (t TokenSpec) FromRaw(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(t.Decimals))
}

// ToRaw переводит человекочитаемое значение в минимальные единицы токена (с отбрасыванием остатка).
func (t TokenSpec) ToRaw(amount decimal.Decimal) uint64 {
	raw := amount.Shift(int32(t.Decimals)).Truncate(0)
	if raw.Sign() <= 0 {
		return 0
	}
	return raw.BigInt().Uint64()
}

func (t TokenSpec) String() string {
	return t.Mint.String()
}

// Balance – снимок балансов кошелька. Устаревает после любого свапа или изменения позиции.
type Balance struct {
	Target decimal.Decimal
	Stable decimal.Decimal
}

// Position – открытая позиция ликвидности в пуле Whirlpool.
type Position struct {
	Address      solana.PublicKey
	PositionMint solana.PublicKey
	Pool         solana.PublicKey
	PoolPrice    decimal.Decimal
	TokenA       solana.PublicKey
	TokenB       solana.PublicKey
	Liquidity    *big.Int
	TickLower    int32
	TickUpper    int32
	Lower        decimal.Decimal
	Upper        decimal.Decimal
	AmountA      decimal.Decimal
	AmountB      decimal.Decimal
}

// Matches проверяет, относится ли позиция к паре (target, stable).
func (p Position) Matches(target, stable TokenSpec) bool {
	return p.TokenA.Equals(target.Mint) && p.TokenB.Equals(stable.Mint)
}

// PositionHandle – результат успешного открытия позиции.
type PositionHandle struct {
	Address      solana.PublicKey
	PositionMint solana.PublicKey
	TickLower    int32
	TickUpper    int32
	Lower        decimal.Decimal
	Upper        decimal.Decimal
	Signature    solana.Signature
}

// SwapResult – результат подтверждённого свапа.
type SwapResult struct {
	Signature    solana.Signature
	InputMint    solana.PublicKey
	AmountIn     decimal.Decimal
	EstimatedOut decimal.Decimal
	MinimumOut   decimal.Decimal
}
