// internal/bot/report.go
package bot

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

// Step – состояние цикла.
type Step string

const (
	StepClosingPositions Step = "closing_positions"
	StepRebalancing      Step = "rebalancing"
	StepForecasting      Step = "forecasting"
	StepOpening          Step = "opening"
	StepDone             Step = "done"
)

// Операции, отправляющие транзакции.
const (
	OpClosePosition = "close_position"
	OpSwap          = "swap"
	OpOpenPosition  = "open_position"
)

// ForecastError – сбой прогноза ширины диапазона. Фатален для цикла.
type ForecastError struct {
	Err error
}

func (e *ForecastError) Error() string {
	return fmt.Sprintf("forecast failed: %v", e.Err)
}

func (e *ForecastError) Unwrap() error {
	return e.Err
}

// IsForecastError определяет, прерван ли цикл из-за прогноза.
func IsForecastError(err error) bool {
	var fe *ForecastError
	return errors.As(err, &fe)
}

// CycleError – цикл прерван на шаге Step.
type CycleError struct {
	Step Step
	Err  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle aborted at %s: %v", e.Step, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// Outcome – исход одной операции цикла.
type Outcome struct {
	Step      Step
	Operation string
	Subject   solana.PublicKey
	Amount    decimal.Decimal
	Signature solana.Signature
	Skipped   bool
	Reason    string
	Err       error
}

// Succeeded – транзакция подтверждена.
func (o Outcome) Succeeded() bool {
	return !o.Skipped && o.Err == nil
}

// CycleReport – исходы всех шагов одного цикла.
type CycleReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Step       Step

	Closes   []Outcome
	Decision Decision
	Swap     *Outcome
	Width    decimal.Decimal
	Range    OpenRange
	Open     *Outcome
	Position *types.PositionHandle

	Err error
}

// Duration – длительность цикла.
func (r *CycleReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedCloses – количество неудачных закрытий.
func (r *CycleReport) FailedCloses() int {
	n := 0
	for _, o := range r.Closes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
