// =============================
// File: internal/dex/whirlpool/instructions.go
// =============================
package whirlpool

import (
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/utils/binary"
)

// Instruction discriminators (sha256("global:<name>")[:8])
var (
	openPositionWithMetadataDiscriminator = anchorDiscriminator("global", "open_position_with_metadata")
	increaseLiquidityDiscriminator        = anchorDiscriminator("global", "increase_liquidity")
	decreaseLiquidityDiscriminator        = anchorDiscriminator("global", "decrease_liquidity")
	updateFeesAndRewardsDiscriminator     = anchorDiscriminator("global", "update_fees_and_rewards")
	collectFeesDiscriminator              = anchorDiscriminator("global", "collect_fees")
	collectRewardDiscriminator            = anchorDiscriminator("global", "collect_reward")
	closePositionDiscriminator            = anchorDiscriminator("global", "close_position")
	swapDiscriminator                     = anchorDiscriminator("global", "swap")
	initializeTickArrayDiscriminator      = anchorDiscriminator("global", "initialize_tick_array")
)

var maskU64 = new(big.Int).SetUint64(^uint64(0))

// u128Halves разбивает неотрицательное значение на младшие и старшие 64 бита.
func u128Halves(v *big.Int) (lo, hi uint64) {
	lo = new(big.Int).And(v, maskU64).Uint64()
	hi = new(big.Int).And(new(big.Int).Rsh(v, 64), maskU64).Uint64()
	return lo, hi
}

// OpenPositionParams – аккаунты и аргументы open_position_with_metadata.
type OpenPositionParams struct {
	ProgramID            solana.PublicKey
	Funder               solana.PublicKey
	Owner                solana.PublicKey
	Position             solana.PublicKey
	PositionBump         uint8
	PositionMint         solana.PublicKey
	Metadata             solana.PublicKey
	MetadataBump         uint8
	PositionTokenAccount solana.PublicKey
	Whirlpool            solana.PublicKey
	TickLowerIndex       int32
	TickUpperIndex       int32
}

func createOpenPositionWithMetadataInstruction(p *OpenPositionParams) solana.Instruction {
	data := make([]byte, 8+1+1+4+4)
	copy(data[0:8], openPositionWithMetadataDiscriminator)
	data[8] = p.PositionBump
	data[9] = p.MetadataBump
	binary.WriteInt32LittleEndian(p.TickLowerIndex, data, 10)
	binary.WriteInt32LittleEndian(p.TickUpperIndex, data, 14)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(p.Funder, true, true),
		solana.NewAccountMeta(p.Owner, false, false),
		solana.NewAccountMeta(p.Position, true, false),
		solana.NewAccountMeta(p.PositionMint, true, true),
		solana.NewAccountMeta(p.Metadata, true, false),
		solana.NewAccountMeta(p.PositionTokenAccount, true, false),
		solana.NewAccountMeta(p.Whirlpool, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.TokenMetadataProgramID, false, false),
		solana.NewAccountMeta(MetadataUpdateAuth, false, false),
	}
	return solana.NewInstruction(p.ProgramID, accounts, data)
}

// ModifyLiquidityParams – общие аккаунты increase_liquidity / decrease_liquidity.
type ModifyLiquidityParams struct {
	ProgramID            solana.PublicKey
	Whirlpool            solana.PublicKey
	Authority            solana.PublicKey
	Position             solana.PublicKey
	PositionTokenAccount solana.PublicKey
	TokenOwnerAccountA   solana.PublicKey
	TokenOwnerAccountB   solana.PublicKey
	TokenVaultA          solana.PublicKey
	TokenVaultB          solana.PublicKey
	TickArrayLower       solana.PublicKey
	TickArrayUpper       solana.PublicKey

	Liquidity *big.Int
	// Для increase: максимальные суммы A/B, для decrease: минимальные.
	TokenA uint64
	TokenB uint64
}

func createIncreaseLiquidityInstruction(p *ModifyLiquidityParams) solana.Instruction {
	return createModifyLiquidityInstruction(increaseLiquidityDiscriminator, p)
}

func createDecreaseLiquidityInstruction(p *ModifyLiquidityParams) solana.Instruction {
	return createModifyLiquidityInstruction(decreaseLiquidityDiscriminator, p)
}

func createModifyLiquidityInstruction(discriminator []byte, p *ModifyLiquidityParams) solana.Instruction {
	data := make([]byte, 8+16+8+8)
	copy(data[0:8], discriminator)
	lo, hi := u128Halves(p.Liquidity)
	binary.WriteUint128LittleEndian(lo, hi, data, 8)
	binary.WriteUint64LittleEndian(p.TokenA, data, 24)
	binary.WriteUint64LittleEndian(p.TokenB, data, 32)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(p.Whirlpool, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(p.Authority, false, true),
		solana.NewAccountMeta(p.Position, true, false),
		solana.NewAccountMeta(p.PositionTokenAccount, false, false),
		solana.NewAccountMeta(p.TokenOwnerAccountA, true, false),
		solana.NewAccountMeta(p.TokenOwnerAccountB, true, false),
		solana.NewAccountMeta(p.TokenVaultA, true, false),
		solana.NewAccountMeta(p.TokenVaultB, true, false),
		solana.NewAccountMeta(p.TickArrayLower, true, false),
		solana.NewAccountMeta(p.TickArrayUpper, true, false),
	}
	return solana.NewInstruction(p.ProgramID, accounts, data)
}

func createUpdateFeesAndRewardsInstruction(programID, whirlpool, position, tickArrayLower, tickArrayUpper solana.PublicKey) solana.Instruction {
	data := make([]byte, 8)
	copy(data, updateFeesAndRewardsDiscriminator)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(whirlpool, true, false),
		solana.NewAccountMeta(position, true, false),
		solana.NewAccountMeta(tickArrayLower, false, false),
		solana.NewAccountMeta(tickArrayUpper, false, false),
	}
	return solana.NewInstruction(programID, accounts, data)
}

// CollectParams – аккаунты collect_fees / collect_reward / close_position.
type CollectParams struct {
	ProgramID            solana.PublicKey
	Whirlpool            solana.PublicKey
	Authority            solana.PublicKey
	Position             solana.PublicKey
	PositionMint         solana.PublicKey
	PositionTokenAccount solana.PublicKey
	TokenOwnerAccountA   solana.PublicKey
	TokenOwnerAccountB   solana.PublicKey
	TokenVaultA          solana.PublicKey
	TokenVaultB          solana.PublicKey
}

func createCollectFeesInstruction(p *CollectParams) solana.Instruction {
	data := make([]byte, 8)
	copy(data, collectFeesDiscriminator)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(p.Whirlpool, false, false),
		solana.NewAccountMeta(p.Authority, false, true),
		solana.NewAccountMeta(p.Position, true, false),
		solana.NewAccountMeta(p.PositionTokenAccount, false, false),
		solana.NewAccountMeta(p.TokenOwnerAccountA, true, false),
		solana.NewAccountMeta(p.TokenVaultA, true, false),
		solana.NewAccountMeta(p.TokenOwnerAccountB, true, false),
		solana.NewAccountMeta(p.TokenVaultB, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(p.ProgramID, accounts, data)
}

func createCollectRewardInstruction(p *CollectParams, rewardIndex uint8, rewardOwnerAccount, rewardVault solana.PublicKey) solana.Instruction {
	data := make([]byte, 8+1)
	copy(data[0:8], collectRewardDiscriminator)
	data[8] = rewardIndex

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(p.Whirlpool, false, false),
		solana.NewAccountMeta(p.Authority, false, true),
		solana.NewAccountMeta(p.Position, true, false),
		solana.NewAccountMeta(p.PositionTokenAccount, false, false),
		solana.NewAccountMeta(rewardOwnerAccount, true, false),
		solana.NewAccountMeta(rewardVault, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(p.ProgramID, accounts, data)
}

func createClosePositionInstruction(p *CollectParams, receiver solana.PublicKey) solana.Instruction {
	data := make([]byte, 8)
	copy(data, closePositionDiscriminator)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(p.Authority, false, true),
		solana.NewAccountMeta(receiver, true, false),
		solana.NewAccountMeta(p.Position, true, false),
		solana.NewAccountMeta(p.PositionMint, true, false),
		solana.NewAccountMeta(p.PositionTokenAccount, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(p.ProgramID, accounts, data)
}

// SwapParams – аккаунты и аргументы swap.
type SwapParams struct {
	ProgramID          solana.PublicKey
	Authority          solana.PublicKey
	Whirlpool          solana.PublicKey
	TokenOwnerAccountA solana.PublicKey
	TokenVaultA        solana.PublicKey
	TokenOwnerAccountB solana.PublicKey
	TokenVaultB        solana.PublicKey
	TickArrays         [3]solana.PublicKey
	Oracle             solana.PublicKey

	Amount                 uint64
	OtherAmountThreshold   uint64
	SqrtPriceLimit         *big.Int
	AmountSpecifiedIsInput bool
	AToB                   bool
}

func createSwapInstruction(p *SwapParams) solana.Instruction {
	data := make([]byte, 8+8+8+16+1+1)
	copy(data[0:8], swapDiscriminator)
	binary.WriteUint64LittleEndian(p.Amount, data, 8)
	binary.WriteUint64LittleEndian(p.OtherAmountThreshold, data, 16)
	lo, hi := u128Halves(p.SqrtPriceLimit)
	binary.WriteUint128LittleEndian(lo, hi, data, 24)
	if p.AmountSpecifiedIsInput {
		data[40] = 1
	}
	if p.AToB {
		data[41] = 1
	}

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(p.Authority, false, true),
		solana.NewAccountMeta(p.Whirlpool, true, false),
		solana.NewAccountMeta(p.TokenOwnerAccountA, true, false),
		solana.NewAccountMeta(p.TokenVaultA, true, false),
		solana.NewAccountMeta(p.TokenOwnerAccountB, true, false),
		solana.NewAccountMeta(p.TokenVaultB, true, false),
		solana.NewAccountMeta(p.TickArrays[0], true, false),
		solana.NewAccountMeta(p.TickArrays[1], true, false),
		solana.NewAccountMeta(p.TickArrays[2], true, false),
		solana.NewAccountMeta(p.Oracle, false, false),
	}
	return solana.NewInstruction(p.ProgramID, accounts, data)
}

func createInitializeTickArrayInstruction(programID, whirlpool, funder, tickArray solana.PublicKey, startTickIndex int32) solana.Instruction {
	data := make([]byte, 8+4)
	copy(data[0:8], initializeTickArrayDiscriminator)
	binary.WriteInt32LittleEndian(startTickIndex, data, 8)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(whirlpool, false, false),
		solana.NewAccountMeta(funder, true, true),
		solana.NewAccountMeta(tickArray, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data)
}
