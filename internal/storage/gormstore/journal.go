// internal/storage/gormstore/journal.go
package gormstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage/models"
)

const sqliteScheme = "sqlite://"

// journal реализует storage.Journal поверх GORM (SQLite или PostgreSQL).
type journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

// dialectorFor выбирает драйвер по DSN: sqlite://path или postgres://...
func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, sqliteScheme):
		path := strings.TrimPrefix(dsn, sqliteScheme)
		if path == "" {
			return nil, fmt.Errorf("sqlite DSN has empty path")
		}
		return sqlite.Open(path), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported journal DSN %q: want sqlite:// or postgres://", dsn)
	}
}

// Open подключается к журналу и выполняет миграции.
func Open(dsn string, zapLogger *zap.Logger) (storage.Journal, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		// SQLite допускает одного писателя
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	j := &journal{
		db:     db,
		logger: zapLogger.Named("journal"),
	}
	if err := j.RunMigrations(); err != nil {
		_ = j.Close()
		return nil, err
	}
	j.logger.Info("Journal opened", zap.String("dialect", db.Dialector.Name()))
	return j, nil
}

// RunMigrations использует GORM AutoMigrate; в PostgreSQL под advisory lock.
func (j *journal) RunMigrations() error {
	if j.db.Dialector.Name() == "postgres" {
		var lockObtained bool
		if err := j.db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer j.db.Exec("SELECT pg_advisory_unlock(101)")
	}

	if err := j.db.AutoMigrate(&models.Cycle{}, &models.Operation{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveCycleStarted создаёт запись цикла. Повторная запись того же цикла игнорируется.
func (j *journal) SaveCycleStarted(ctx context.Context, cycle *models.Cycle) error {
	return j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cycle_id"}},
			DoNothing: true,
		}).
		Create(cycle).Error
}

// SaveCycleFinished записывает итог цикла, создавая запись, если событие старта не было сохранено.
func (j *journal) SaveCycleFinished(ctx context.Context, cycle *models.Cycle) error {
	return j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cycle_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "step", "finished_at", "duration_ms",
				"closed", "close_failures", "position", "error_message", "updated_at",
			}),
		}).
		Create(cycle).Error
}

func (j *journal) GetCycle(ctx context.Context, cycleID string) (*models.Cycle, error) {
	var cycle models.Cycle
	if err := j.db.WithContext(ctx).Where("cycle_id = ?", cycleID).First(&cycle).Error; err != nil {
		return nil, err
	}
	return &cycle, nil
}

func (j *journal) ListCycles(ctx context.Context, limit, offset int) ([]*models.Cycle, error) {
	var cycles []*models.Cycle
	err := j.db.WithContext(ctx).
		Order("started_at desc").
		Limit(limit).
		Offset(offset).
		Find(&cycles).Error
	return cycles, err
}

func (j *journal) SaveOperation(ctx context.Context, op *models.Operation) error {
	return j.db.WithContext(ctx).Create(op).Error
}

func (j *journal) ListOperations(ctx context.Context, cycleID string) ([]*models.Operation, error) {
	var ops []*models.Operation
	err := j.db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("executed_at asc, id asc").
		Find(&ops).Error
	return ops, err
}

func (j *journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
