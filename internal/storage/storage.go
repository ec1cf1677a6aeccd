// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage/models"
)

// Journal – журнал циклов и транзакций. Только запись истории: решения бота журнал не читают.
type Journal interface {
	// Циклы
	SaveCycleStarted(ctx context.Context, cycle *models.Cycle) error
	SaveCycleFinished(ctx context.Context, cycle *models.Cycle) error
	GetCycle(ctx context.Context, cycleID string) (*models.Cycle, error)
	ListCycles(ctx context.Context, limit, offset int) ([]*models.Cycle, error)

	// Операции
	SaveOperation(ctx context.Context, op *models.Operation) error
	ListOperations(ctx context.Context, cycleID string) ([]*models.Operation, error)

	RunMigrations() error
	Close() error
}
