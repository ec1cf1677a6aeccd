package whirlpool

import (
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/utils/binary"
)

func TestDiscriminators(t *testing.T) {
	// значения из IDL программы Whirlpool
	assert.Equal(t, []byte{248, 198, 158, 145, 225, 117, 135, 200}, swapDiscriminator)
	assert.Equal(t, []byte{63, 149, 209, 12, 225, 128, 99, 9}, WhirlpoolDiscriminator)
	assert.Equal(t, []byte{170, 188, 143, 228, 122, 64, 247, 208}, PositionDiscriminator)
}

func TestU128Halves(t *testing.T) {
	v := new(big.Int).Lsh(big.NewInt(3), 64)
	v.Add(v, big.NewInt(7))
	lo, hi := u128Halves(v)
	assert.Equal(t, uint64(7), lo)
	assert.Equal(t, uint64(3), hi)
}

func TestCreateSwapInstruction(t *testing.T) {
	p := &SwapParams{
		ProgramID:              WhirlpoolProgramID,
		Authority:              solana.NewWallet().PublicKey(),
		Whirlpool:              solana.NewWallet().PublicKey(),
		Amount:                 1_000,
		OtherAmountThreshold:   990,
		SqrtPriceLimit:         MaxSqrtPrice,
		AmountSpecifiedIsInput: true,
		AToB:                   false,
	}
	ix := createSwapInstruction(p)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 42)
	assert.Equal(t, swapDiscriminator, data[:8])
	assert.Equal(t, uint64(1_000), binary.ReadUint64LittleEndian(data, 8))
	assert.Equal(t, uint64(990), binary.ReadUint64LittleEndian(data, 16))
	lo, hi := u128Halves(MaxSqrtPrice)
	assert.Equal(t, lo, binary.ReadUint64LittleEndian(data, 24))
	assert.Equal(t, hi, binary.ReadUint64LittleEndian(data, 32))
	assert.Equal(t, byte(1), data[40])
	assert.Equal(t, byte(0), data[41])

	accounts := ix.Accounts()
	require.Len(t, accounts, 11)
	assert.Equal(t, solana.TokenProgramID, accounts[0].PublicKey)
	assert.True(t, accounts[1].IsSigner)
	assert.True(t, accounts[2].IsWritable)
}

func TestCreateOpenPositionInstruction(t *testing.T) {
	p := &OpenPositionParams{
		ProgramID:      WhirlpoolProgramID,
		Funder:         solana.NewWallet().PublicKey(),
		PositionMint:   solana.NewWallet().PublicKey(),
		PositionBump:   254,
		MetadataBump:   253,
		TickLowerIndex: -128,
		TickUpperIndex: 256,
	}
	ix := createOpenPositionWithMetadataInstruction(p)
	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 18)
	assert.Equal(t, byte(254), data[8])
	assert.Equal(t, byte(253), data[9])
	ticks := make([]byte, 8)
	binary.WriteInt32LittleEndian(-128, ticks, 0)
	binary.WriteInt32LittleEndian(256, ticks, 4)
	assert.Equal(t, ticks, data[10:18])

	accounts := ix.Accounts()
	require.Len(t, accounts, 13)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[3].IsSigner, "position mint co-signs")
	assert.Equal(t, MetadataUpdateAuth, accounts[12].PublicKey)
}

func TestCreateModifyLiquidityInstruction(t *testing.T) {
	p := &ModifyLiquidityParams{
		ProgramID: WhirlpoolProgramID,
		Liquidity: big.NewInt(777),
		TokenA:    10,
		TokenB:    20,
	}
	inc, err := createIncreaseLiquidityInstruction(p).Data()
	require.NoError(t, err)
	dec, err := createDecreaseLiquidityInstruction(p).Data()
	require.NoError(t, err)

	assert.Equal(t, increaseLiquidityDiscriminator, inc[:8])
	assert.Equal(t, decreaseLiquidityDiscriminator, dec[:8])
	assert.Equal(t, inc[8:], dec[8:])
	assert.Equal(t, uint64(777), binary.ReadUint64LittleEndian(inc, 8))
	assert.Equal(t, uint64(10), binary.ReadUint64LittleEndian(inc, 24))
	assert.Equal(t, uint64(20), binary.ReadUint64LittleEndian(inc, 32))
}
