package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	var (
		mu  sync.Mutex
		got []string
	)
	bus.Subscribe(CycleStep, HandlerFunc(func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(CycleStepEvent).Operation)
		return nil
	}))

	for _, op := range []string{"close_position", "swap", "open_position"} {
		require.NoError(t, bus.Publish(CycleStepEvent{BaseEvent: NewBaseEvent(CycleStep), Operation: op}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	assert.Equal(t, []string{"close_position", "swap", "open_position"}, got)
	assert.Error(t, bus.Publish(CycleStartedEvent{BaseEvent: NewBaseEvent(CycleStarted)}))
}

func TestBusPublishSyncAndUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	calls := 0
	sub := bus.Subscribe(CycleFailed, HandlerFunc(func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	}))
	assert.Equal(t, 1, bus.Stats().HandlersPerType[CycleFailed])

	err := bus.PublishSync(context.Background(), CycleFailedEvent{BaseEvent: NewBaseEvent(CycleFailed)})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	sub.Unsubscribe()
	assert.NoError(t, bus.PublishSync(context.Background(), CycleFailedEvent{BaseEvent: NewBaseEvent(CycleFailed)}))
	assert.Equal(t, 1, calls)
	assert.Empty(t, bus.Stats().HandlersPerType)
}

func TestCycleStepSucceeded(t *testing.T) {
	assert.True(t, CycleStepEvent{Signature: "sig"}.Succeeded())
	assert.False(t, CycleStepEvent{Skipped: true}.Succeeded())
	assert.False(t, CycleStepEvent{Error: "failed"}.Succeeded())
}

func TestBusShutdownDrainsWithLiveContext(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	release := make(chan struct{})
	var (
		mu      sync.Mutex
		ctxErrs []error
	)
	bus.Subscribe(CycleStep, HandlerFunc(func(ctx context.Context, e Event) error {
		if e.(CycleStepEvent).Operation == "close_position" {
			<-release
		}
		mu.Lock()
		defer mu.Unlock()
		ctxErrs = append(ctxErrs, ctx.Err())
		return ctx.Err()
	}))

	for _, op := range []string{"close_position", "swap", "open_position"} {
		require.NoError(t, bus.Publish(CycleStepEvent{BaseEvent: NewBaseEvent(CycleStep), Operation: op}))
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- bus.Shutdown(ctx)
	}()
	// первое событие обрабатывается, пока шина уже остановлена
	require.Eventually(t, func() bool { return bus.ctx.Err() != nil }, time.Second, 5*time.Millisecond)
	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []error{nil, nil, nil}, ctxErrs)
}
