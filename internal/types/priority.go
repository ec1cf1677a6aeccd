package types

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"
)

type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
	PriorityCustom PriorityLevel = "custom"
)

// ParsePriorityLevel проверяет название профиля приоритета.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	switch level := PriorityLevel(s); level {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCustom:
		return level, nil
	}
	return "", fmt.Errorf("unknown priority level %q: want low, medium, high or custom", s)
}

type PriorityConfig struct {
	ComputeUnits uint32 // Number of compute units
	PriorityFee  uint64 // Priority fee in micro-lamports
}

type PriorityManager struct {
	profiles map[PriorityLevel]*PriorityConfig
	logger   *zap.Logger
}

// NewPriorityManager создаёт менеджер приоритетов. custom используется как профиль из конфигурации.
func NewPriorityManager(custom PriorityConfig, logger *zap.Logger) *PriorityManager {
	return &PriorityManager{
		profiles: map[PriorityLevel]*PriorityConfig{
			PriorityLow: {
				ComputeUnits: 200_000,
				PriorityFee:  1_000,
			},
			PriorityMedium: {
				ComputeUnits: 400_000,
				PriorityFee:  5_000,
			},
			PriorityHigh: {
				ComputeUnits: 800_000,
				PriorityFee:  10_000,
			},
			PriorityCustom: &custom,
		},
		logger: logger,
	}
}

func (pm *PriorityManager) CreatePriorityInstructions(level PriorityLevel) ([]solana.Instruction, error) {
	config, ok := pm.profiles[level]
	if !ok {
		return nil, fmt.Errorf("unknown priority level: %s", level)
	}
	pm.logger.Debug("Priority instructions",
		zap.String("level", string(level)),
		zap.Uint32("compute_units", config.ComputeUnits),
		zap.Uint64("priority_fee", config.PriorityFee))
	return pm.createInstructions(config), nil
}

func (pm *PriorityManager) createInstructions(config *PriorityConfig) []solana.Instruction {
	var instructions []solana.Instruction

	if config.ComputeUnits > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitLimitInstruction(config.ComputeUnits).Build())
	}

	if config.PriorityFee > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(config.PriorityFee).Build())
	}

	return instructions
}
