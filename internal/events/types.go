// internal/events/types.go
package events

import (
	"time"
)

// EventType – тип события цикла ребалансировки.
type EventType string

const (
	CycleStarted   EventType = "cycle.started"
	CycleStep      EventType = "cycle.step"
	CycleCompleted EventType = "cycle.completed"
	CycleFailed    EventType = "cycle.failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBaseEvent создаёт BaseEvent с текущим временем в UTC.
func NewBaseEvent(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// CycleStartedEvent публикуется в начале цикла.
type CycleStartedEvent struct {
	BaseEvent
	CycleID string
	Pool    string
	Wallet  string
}

// CycleStepEvent – исход одной операции цикла (закрытие, свап, открытие).
type CycleStepEvent struct {
	BaseEvent
	CycleID   string
	Step      string
	Operation string
	Subject   string // адрес позиции или mint входного токена
	Amount    string
	Signature string
	Skipped   bool
	Error     string
}

// Succeeded сообщает, что операция отправлена и подтверждена.
func (e CycleStepEvent) Succeeded() bool {
	return !e.Skipped && e.Error == ""
}

// CycleCompletedEvent публикуется после шага Done.
type CycleCompletedEvent struct {
	BaseEvent
	CycleID  string
	Duration time.Duration
	Closed   int
	Failed   int
	Position string
}

// CycleFailedEvent публикуется, когда цикл прерван.
type CycleFailedEvent struct {
	BaseEvent
	CycleID  string
	Step     string
	Duration time.Duration
	Error    string
}
