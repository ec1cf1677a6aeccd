// =============================
// File: internal/dex/whirlpool/state.go
// =============================
package whirlpool

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/utils/binary"
)

const (
	// NumRewards – количество слотов наград в пуле.
	NumRewards = 3

	whirlpoolAccountSize = 653
	positionAccountSize  = 216
	tickArrayAccountSize = 9988

	// Размеры и смещения SPL Token аккаунтов
	tokenAccountSize         = 165
	tokenAccountMintOffset   = 0
	tokenAccountAmountOffset = 64
	mintAccountSize          = 82
	mintDecimalsOffset       = 44
)

// Account discriminators (sha256("account:<Name>")[:8])
var (
	WhirlpoolDiscriminator = anchorDiscriminator("account", "Whirlpool")
	PositionDiscriminator  = anchorDiscriminator("account", "Position")
	TickArrayDiscriminator = anchorDiscriminator("account", "TickArray")
)

func anchorDiscriminator(namespace, name string) []byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	return sum[:8]
}

// WhirlpoolRewardInfo – слот наград пула.
type WhirlpoolRewardInfo struct {
	Mint                  solana.PublicKey
	Vault                 solana.PublicKey
	Authority             solana.PublicKey
	EmissionsPerSecondX64 bin.Uint128
	GrowthGlobalX64       bin.Uint128
}

// Initialized – слот считается активным, если mint награды задан.
func (r WhirlpoolRewardInfo) Initialized() bool {
	return !r.Mint.IsZero()
}

// Whirlpool – состояние пула (без дискриминатора).
type Whirlpool struct {
	WhirlpoolsConfig           solana.PublicKey
	WhirlpoolBump              [1]uint8
	TickSpacing                uint16
	TickSpacingSeed            [2]uint8
	FeeRate                    uint16
	ProtocolFeeRate            uint16
	Liquidity                  bin.Uint128
	SqrtPrice                  bin.Uint128
	TickCurrentIndex           int32
	ProtocolFeeOwedA           uint64
	ProtocolFeeOwedB           uint64
	TokenMintA                 solana.PublicKey
	TokenVaultA                solana.PublicKey
	FeeGrowthGlobalA           bin.Uint128
	TokenMintB                 solana.PublicKey
	TokenVaultB                solana.PublicKey
	FeeGrowthGlobalB           bin.Uint128
	RewardLastUpdatedTimestamp uint64
	RewardInfos                [NumRewards]WhirlpoolRewardInfo
}

// PositionRewardInfo – накопленные награды позиции по слоту.
type PositionRewardInfo struct {
	GrowthInsideCheckpoint bin.Uint128
	AmountOwed             uint64
}

// PositionAccount – состояние позиции (без дискриминатора).
type PositionAccount struct {
	Whirlpool            solana.PublicKey
	PositionMint         solana.PublicKey
	Liquidity            bin.Uint128
	TickLowerIndex       int32
	TickUpperIndex       int32
	FeeGrowthCheckpointA bin.Uint128
	FeeOwedA             uint64
	FeeGrowthCheckpointB bin.Uint128
	FeeOwedB             uint64
	RewardInfos          [NumRewards]PositionRewardInfo
}

// ParseWhirlpool декодирует данные аккаунта пула.
func ParseWhirlpool(data []byte) (*Whirlpool, error) {
	if err := checkAccount(data, WhirlpoolDiscriminator, whirlpoolAccountSize); err != nil {
		return nil, fmt.Errorf("whirlpool: %w", err)
	}
	var pool Whirlpool
	if err := bin.NewBorshDecoder(data[8:]).Decode(&pool); err != nil {
		return nil, fmt.Errorf("whirlpool: decode: %w", err)
	}
	return &pool, nil
}

// ParsePosition декодирует данные аккаунта позиции.
func ParsePosition(data []byte) (*PositionAccount, error) {
	if err := checkAccount(data, PositionDiscriminator, positionAccountSize); err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	var pos PositionAccount
	if err := bin.NewBorshDecoder(data[8:]).Decode(&pos); err != nil {
		return nil, fmt.Errorf("position: decode: %w", err)
	}
	return &pos, nil
}

// Tick – состояние одного тика. LiquidityNet хранится как i128 в дополнительном коде.
type Tick struct {
	Initialized          bool
	LiquidityNet         bin.Uint128
	LiquidityGross       bin.Uint128
	FeeGrowthOutsideA    bin.Uint128
	FeeGrowthOutsideB    bin.Uint128
	RewardGrowthsOutside [NumRewards]bin.Uint128
}

// SignedLiquidityNet возвращает liquidity_net со знаком.
func (t Tick) SignedLiquidityNet() *big.Int {
	v := t.LiquidityNet.BigInt()
	if t.LiquidityNet.Hi>>63 == 1 {
		v.Sub(v, q128)
	}
	return v
}

// TickArray – массив из TickArraySize тиков (без дискриминатора).
type TickArray struct {
	StartTickIndex int32
	Ticks          [TickArraySize]Tick
	Whirlpool      solana.PublicKey
}

// ParseTickArray декодирует данные аккаунта tick array.
func ParseTickArray(data []byte) (*TickArray, error) {
	if err := checkAccount(data, TickArrayDiscriminator, tickArrayAccountSize); err != nil {
		return nil, fmt.Errorf("tick array: %w", err)
	}
	var ta TickArray
	if err := bin.NewBorshDecoder(data[8:]).Decode(&ta); err != nil {
		return nil, fmt.Errorf("tick array: decode: %w", err)
	}
	return &ta, nil
}

func checkAccount(data, discriminator []byte, size int) error {
	if len(data) < size {
		return fmt.Errorf("account data too short: %d < %d", len(data), size)
	}
	if !bytes.Equal(data[:8], discriminator) {
		return fmt.Errorf("unexpected discriminator %x", data[:8])
	}
	return nil
}

// TokenAccount – минимально необходимые поля SPL Token аккаунта.
type TokenAccount struct {
	Mint   solana.PublicKey
	Amount uint64
}

// ParseTokenAccount разбирает SPL Token аккаунт.
func ParseTokenAccount(data []byte) (TokenAccount, error) {
	if len(data) < tokenAccountSize {
		return TokenAccount{}, fmt.Errorf("token account data too short: %d", len(data))
	}
	return TokenAccount{
		Mint:   binary.ReadPubKey(data, tokenAccountMintOffset),
		Amount: binary.ReadUint64LittleEndian(data, tokenAccountAmountOffset),
	}, nil
}

// ParseMintDecimals возвращает decimals из SPL Mint аккаунта.
func ParseMintDecimals(data []byte) (uint8, error) {
	if len(data) < mintAccountSize {
		return 0, fmt.Errorf("mint account data too short: %d", len(data))
	}
	return binary.ReadUint8(data, mintDecimalsOffset), nil
}
