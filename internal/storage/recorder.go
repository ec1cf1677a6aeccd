// internal/storage/recorder.go
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/events"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage/models"
)

// Subscriber – часть шины событий, нужная рекордеру.
type Subscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler) events.Subscription
}

// Recorder переносит события цикла в журнал.
type Recorder struct {
	journal Journal
	logger  *zap.Logger
	subs    []events.Subscription
}

// NewRecorder подписывает журнал на события цикла.
func NewRecorder(bus Subscriber, journal Journal, logger *zap.Logger) *Recorder {
	r := &Recorder{
		journal: journal,
		logger:  logger.Named("recorder"),
	}
	for _, t := range []events.EventType{
		events.CycleStarted,
		events.CycleStep,
		events.CycleCompleted,
		events.CycleFailed,
	} {
		r.subs = append(r.subs, bus.Subscribe(t, r))
	}
	return r
}

// Handle сохраняет событие в журнал.
func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	var err error
	switch e := event.(type) {
	case events.CycleStartedEvent:
		err = r.journal.SaveCycleStarted(ctx, &models.Cycle{
			CycleID:   e.CycleID,
			Status:    models.CycleRunning,
			Pool:      e.Pool,
			Wallet:    e.Wallet,
			StartedAt: e.Timestamp(),
		})
	case events.CycleStepEvent:
		err = r.journal.SaveOperation(ctx, operationFromEvent(e))
	case events.CycleCompletedEvent:
		finished := e.Timestamp()
		err = r.journal.SaveCycleFinished(ctx, &models.Cycle{
			CycleID:       e.CycleID,
			Status:        models.CycleCompleted,
			Step:          "done",
			StartedAt:     finished.Add(-e.Duration),
			FinishedAt:    &finished,
			DurationMs:    e.Duration.Milliseconds(),
			Closed:        e.Closed,
			CloseFailures: e.Failed,
			Position:      e.Position,
		})
	case events.CycleFailedEvent:
		finished := e.Timestamp()
		err = r.journal.SaveCycleFinished(ctx, &models.Cycle{
			CycleID:      e.CycleID,
			Status:       models.CycleFailed,
			Step:         e.Step,
			StartedAt:    finished.Add(-e.Duration),
			FinishedAt:   &finished,
			DurationMs:   e.Duration.Milliseconds(),
			ErrorMessage: e.Error,
		})
	default:
		return fmt.Errorf("unexpected event %T", event)
	}
	if err != nil {
		r.logger.Warn("Failed to journal event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
		return fmt.Errorf("journal %s: %w", event.Type(), err)
	}
	return nil
}

func operationFromEvent(e events.CycleStepEvent) *models.Operation {
	status := models.OperationConfirmed
	switch {
	case e.Skipped:
		status = models.OperationSkipped
	case e.Error != "":
		status = models.OperationFailed
	}
	return &models.Operation{
		CycleID:      e.CycleID,
		Step:         e.Step,
		Operation:    e.Operation,
		Subject:      e.Subject,
		Amount:       e.Amount,
		Signature:    e.Signature,
		Status:       status,
		ErrorMessage: e.Error,
		ExecutedAt:   e.Timestamp(),
	}
}

// Close отписывает рекордер от шины.
func (r *Recorder) Close() error {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
	return nil
}
