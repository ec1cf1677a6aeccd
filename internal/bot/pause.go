// internal/bot/pause.go
package bot

import (
	"context"
	"time"
)

// FailurePause – фиксированная пауза после неудачной отправки транзакции.
const FailurePause = 10 * time.Second

// Pauser ждёт перед следующим шагом цикла. Возвращает ошибку, если ctx отменён.
type Pauser interface {
	Pause(ctx context.Context) error
}

type constantPause struct {
	d time.Duration
}

// NewConstantPause создаёт паузу фиксированной длительности.
func NewConstantPause(d time.Duration) Pauser {
	return &constantPause{d: d}
}

func (p *constantPause) Pause(ctx context.Context) error {
	timer := time.NewTimer(p.d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
