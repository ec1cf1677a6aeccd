// internal/events/handler.go
package events

import (
	"context"
)

// Handler обрабатывает события одного типа.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc позволяет использовать функцию как Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription – подписка на события.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}

// Publisher – сторона, публикующая события.
type Publisher interface {
	Publish(event Event) error
}

// NopPublisher отбрасывает все события.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
