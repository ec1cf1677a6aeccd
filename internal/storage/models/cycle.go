// internal/storage/models/cycle.go
package models

import "time"

const (
	CycleRunning   = "running"
	CycleCompleted = "completed"
	CycleFailed    = "failed"
)

// Cycle – запись одного цикла ребалансировки.
type Cycle struct {
	BaseModel
	CycleID       string     `gorm:"uniqueIndex;not null;type:varchar(36)"`
	Status        string     `gorm:"index;not null;type:varchar(20)"`
	Step          string     `gorm:"type:varchar(32)"`
	Pool          string     `gorm:"type:varchar(44)"`
	Wallet        string     `gorm:"type:varchar(44)"`
	StartedAt     time.Time  `gorm:"index;not null"`
	FinishedAt    *time.Time `gorm:"index"`
	DurationMs    int64      `gorm:"default:0"`
	Closed        int        `gorm:"default:0"`
	CloseFailures int        `gorm:"default:0"`
	Position      string     `gorm:"type:varchar(44)"`
	ErrorMessage  string     `gorm:"type:text"`
}
