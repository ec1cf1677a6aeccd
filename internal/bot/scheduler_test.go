package bot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
}

func (r *blockingRunner) RunCycle(context.Context) (*CycleReport, error) {
	r.runs.Add(1)
	r.started <- struct{}{}
	<-r.release
	return &CycleReport{ID: "cycle", StartedAt: time.Now()}, nil
}

func TestSchedulerSingleFlight(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := NewScheduler(runner, "", zaptest.NewLogger(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-runner.started

	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrCycleInFlight)

	// срабатывание по расписанию во время цикла отбрасывается
	s.trigger(context.Background())
	assert.Equal(t, int32(1), runner.runs.Load())

	close(runner.release)
	require.NoError(t, <-done)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	<-runner.started
	assert.Equal(t, "cycle", report.ID)
	assert.Equal(t, int32(2), runner.runs.Load())
}

func TestSchedulerNextRun(t *testing.T) {
	s, err := NewScheduler(&blockingRunner{}, DefaultSchedule, zaptest.NewLogger(t))
	require.NoError(t, err)

	from := time.Date(2024, 5, 1, 10, 7, 0, 0, time.Local)
	want := time.Date(2024, 5, 1, 11, 5, 0, 0, time.Local)
	got := s.Next(from)
	assert.True(t, want.Equal(got), "next run %s, want %s", got, want)

	_, err = NewScheduler(&blockingRunner{}, "not a cron", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	s, err := NewScheduler(&blockingRunner{}, DefaultSchedule, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
