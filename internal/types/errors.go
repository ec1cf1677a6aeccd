// internal/types/errors.go
package types

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidArgument возвращается при нарушении предусловий операции.
var ErrInvalidArgument = errors.New("invalid argument")

// UnavailableError – ошибка чтения состояния сети (цена, баланс, позиции).
// Не обрабатывается локально и прерывает текущий цикл.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: state unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable оборачивает ошибку чтения.
func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// IsUnavailable определяет, является ли ошибка ошибкой чтения.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// SubmissionError – ошибка отправки или подтверждения транзакции (swap, open, close).
// Signature может быть нулевой, если транзакция не была отправлена.
type SubmissionError struct {
	Op        string
	Signature solana.Signature
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Signature.IsZero() {
		return fmt.Sprintf("%s: submission failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transaction %s failed: %v", e.Op, e.Signature, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsSubmission определяет, является ли ошибка ошибкой отправки транзакции.
func IsSubmission(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
