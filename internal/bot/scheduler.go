// internal/bot/scheduler.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule – каждый час на 5-й минуте.
const DefaultSchedule = "5 * * * *"

// ErrCycleInFlight возвращается, если предыдущий цикл ещё выполняется.
var ErrCycleInFlight = errors.New("rebalance cycle already in flight")

// CycleRunner выполняет один цикл ребалансировки.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*CycleReport, error)
}

// Scheduler запускает циклы по cron-расписанию. Одновременно выполняется не более одного цикла:
// срабатывание во время активного цикла отбрасывается, а не ставится в очередь.
type Scheduler struct {
	runner   CycleRunner
	spec     string
	schedule cron.Schedule
	logger   *zap.Logger

	inFlight sync.Mutex
}

// NewScheduler проверяет выражение расписания и создаёт планировщик.
func NewScheduler(runner CycleRunner, spec string, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil || logger == nil {
		return nil, fmt.Errorf("runner and logger cannot be nil")
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		runner:   runner,
		spec:     spec,
		schedule: schedule,
		logger:   logger.Named("scheduler"),
	}, nil
}

// Next возвращает время следующего запуска после t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// RunOnce выполняет цикл немедленно, если другой цикл не выполняется.
func (s *Scheduler) RunOnce(ctx context.Context) (*CycleReport, error) {
	if !s.inFlight.TryLock() {
		return nil, ErrCycleInFlight
	}
	defer s.inFlight.Unlock()

	return s.runner.RunCycle(ctx)
}

// Run блокируется до отмены ctx. Запущенный цикл не прерывается отменой ctx:
// Run дожидается его завершения.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	cycleCtx := context.WithoutCancel(ctx)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.trigger(cycleCtx)
	}))

	c.Start()
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.Next(time.Now())))

	<-ctx.Done()
	s.logger.Info("Scheduler stopping, waiting for running cycle")
	<-c.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) trigger(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrCycleInFlight):
		s.logger.Warn("Trigger dropped: previous cycle still running")
	case err != nil:
		s.logger.Error("Cycle failed", zap.Error(err))
	default:
		s.logger.Info("Cycle finished",
			zap.String("cycle_id", report.ID),
			zap.Duration("duration", report.Duration()),
			zap.Time("next_run", s.Next(time.Now())))
	}
}

// cronLogger – адаптер zap для cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
