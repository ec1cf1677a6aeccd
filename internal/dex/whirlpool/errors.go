// =============================
// File: internal/dex/whirlpool/errors.go
// =============================
package whirlpool

import (
	"fmt"
	"strconv"
	"strings"
)

// Коды ошибок программы Whirlpool, связанные с проскальзыванием
const (
	TokenMaxExceededCode         = "0x1781"
	TokenMaxExceededCodeInt      = 6017
	TokenMinSubceededCode        = "0x1782"
	TokenMinSubceededCodeInt     = 6018
	AmountOutBelowMinimumCode    = "0x1794"
	AmountOutBelowMinimumCodeInt = 6036
)

var slippageMarkers = []string{
	"TokenMaxExceeded", TokenMaxExceededCode, strconv.Itoa(TokenMaxExceededCodeInt),
	"TokenMinSubceeded", TokenMinSubceededCode, strconv.Itoa(TokenMinSubceededCodeInt),
	"AmountOutBelowMinimum", AmountOutBelowMinimumCode, strconv.Itoa(AmountOutBelowMinimumCodeInt),
}

// SlippageExceededError – транзакция отклонена программой из-за проскальзывания.
type SlippageExceededError struct {
	Op            string
	Slippage      string
	OriginalError error
}

// IsSlippageExceededError определяет, является ли ошибка ошибкой превышения проскальзывания
func IsSlippageExceededError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range slippageMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("%s: slippage tolerance %s exceeded: %v", e.Op, e.Slippage, e.OriginalError)
}

func (e *SlippageExceededError) Unwrap() error {
	return e.OriginalError
}
