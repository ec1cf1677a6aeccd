// =============================
// File: internal/dex/whirlpool/config.go
// =============================
package whirlpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

var (
	// WhirlpoolProgramID – программа Orca Whirlpools.
	WhirlpoolProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	// DefaultWhirlpoolsConfig – основной конфиг пулов Orca в mainnet.
	DefaultWhirlpoolsConfig = solana.MustPublicKeyFromBase58("2LecshUwdy9xi7meFgHtFJQNSKk4KdTrcpvaB56dP2NQ")
	// MetadataUpdateAuth – authority метаданных NFT позиций.
	MetadataUpdateAuth = solana.MustPublicKeyFromBase58("3axbTs2z5GBy6usVbNVoqEgZMng3vZvMnAoX29BFfwhr")
)

// Config хранит конфигурацию для работы с пулом Whirlpool.
type Config struct {
	ProgramID        solana.PublicKey
	WhirlpoolsConfig solana.PublicKey

	Target      types.TokenSpec // Волатильный токен (token A пула)
	Stable      types.TokenSpec // Стейблкоин (token B пула)
	TickSpacing uint16

	Slippage types.Slippage
	Priority types.PriorityLevel

	PoolAddress solana.PublicKey // Вычисляется в Setup
}

// Setup проверяет конфигурацию и вычисляет адрес пула.
func (cfg *Config) Setup(logger *zap.Logger) error {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = WhirlpoolProgramID
	}
	if cfg.WhirlpoolsConfig.IsZero() {
		cfg.WhirlpoolsConfig = DefaultWhirlpoolsConfig
	}
	if cfg.Target.Mint.IsZero() || cfg.Stable.Mint.IsZero() {
		return fmt.Errorf("target and stable mints are required")
	}
	if cfg.Target.Mint.Equals(cfg.Stable.Mint) {
		return fmt.Errorf("target and stable mints must differ")
	}
	if cfg.TickSpacing == 0 {
		return fmt.Errorf("tick spacing must be positive")
	}
	if cfg.Slippage.Denominator == 0 {
		cfg.Slippage = types.DefaultSlippage
	}
	if cfg.Priority == "" {
		cfg.Priority = types.PriorityCustom
	}

	pool, _, err := FindWhirlpoolAddress(cfg.ProgramID, cfg.WhirlpoolsConfig, cfg.Target.Mint, cfg.Stable.Mint, cfg.TickSpacing)
	if err != nil {
		return fmt.Errorf("failed to derive whirlpool address: %w", err)
	}
	cfg.PoolAddress = pool

	logger.Info("Whirlpool configuration prepared",
		zap.String("program_id", cfg.ProgramID.String()),
		zap.String("whirlpools_config", cfg.WhirlpoolsConfig.String()),
		zap.String("pool", cfg.PoolAddress.String()),
		zap.String("target_mint", cfg.Target.Mint.String()),
		zap.String("stable_mint", cfg.Stable.Mint.String()),
		zap.Uint16("tick_spacing", cfg.TickSpacing))
	return nil
}
