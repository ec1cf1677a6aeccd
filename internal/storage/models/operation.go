// internal/storage/models/operation.go
package models

import "time"

const (
	OperationConfirmed = "confirmed"
	OperationFailed    = "failed"
	OperationSkipped   = "skipped"
)

// Operation – исход одной транзакционной операции цикла (close_position, swap, open_position).
// Amount хранится строкой, чтобы не терять точность decimal.
type Operation struct {
	BaseModel
	CycleID      string    `gorm:"index;not null;type:varchar(36)"`
	Step         string    `gorm:"not null;type:varchar(32)"`
	Operation    string    `gorm:"not null;type:varchar(32)"`
	Subject      string    `gorm:"index;type:varchar(44)"`
	Amount       string    `gorm:"type:varchar(64)"`
	Signature    string    `gorm:"index;type:varchar(88)"`
	Status       string    `gorm:"not null;type:varchar(20)"`
	ErrorMessage string    `gorm:"type:text"`
	ExecutedAt   time.Time `gorm:"index;not null"`
}
