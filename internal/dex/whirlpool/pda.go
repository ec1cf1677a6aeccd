// =============================
// File: internal/dex/whirlpool/pda.go
// =============================
package whirlpool

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/utils/binary"
)

// FindWhirlpoolAddress вычисляет адрес пула по (config, mintA, mintB, tickSpacing).
func FindWhirlpoolAddress(
	programID, whirlpoolsConfig, mintA, mintB solana.PublicKey,
	tickSpacing uint16,
) (solana.PublicKey, uint8, error) {
	spacing := make([]byte, 2)
	binary.WriteUint16LittleEndian(tickSpacing, spacing, 0)
	return solana.FindProgramAddress(
		[][]byte{
			[]byte("whirlpool"),
			whirlpoolsConfig.Bytes(),
			mintA.Bytes(),
			mintB.Bytes(),
			spacing,
		},
		programID,
	)
}

// FindPositionAddress вычисляет адрес записи позиции по mint'у NFT позиции.
func FindPositionAddress(programID, positionMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("position"), positionMint.Bytes()},
		programID,
	)
}

// FindPositionMetadataAddress вычисляет адрес Metaplex-метаданных NFT позиции.
func FindPositionMetadataAddress(positionMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			solana.TokenMetadataProgramID.Bytes(),
			positionMint.Bytes(),
		},
		solana.TokenMetadataProgramID,
	)
}

// FindTickArrayAddress вычисляет адрес tick array по стартовому тику.
func FindTickArrayAddress(programID, whirlpool solana.PublicKey, startTickIndex int32) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("tick_array"),
			whirlpool.Bytes(),
			[]byte(strconv.FormatInt(int64(startTickIndex), 10)),
		},
		programID,
	)
	return addr, err
}

// FindOracleAddress вычисляет адрес оракула пула.
func FindOracleAddress(programID, whirlpool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("oracle"), whirlpool.Bytes()},
		programID,
	)
	return addr, err
}
