// internal/types/slippage.go
package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Slippage – допустимое проскальзывание в виде дроби numerator/denominator.
type Slippage struct {
	Numerator   int64
	Denominator int64
}

// DefaultSlippage – 1% (10/1000), используется для всех свапов и операций с позициями.
var DefaultSlippage = Slippage{Numerator: 10, Denominator: 1000}

// Fraction возвращает проскальзывание как decimal.
func (s Slippage) Fraction() decimal.Decimal {
	return decimal.NewFromInt(s.Numerator).Div(decimal.NewFromInt(s.Denominator))
}

func (s Slippage) String() string {
	return s.Fraction().Shift(2).String() + "%"
}

// MaxIn вычисляет максимальную сумму ввода: ceil(amount * (den + num) / den).
func (s Slippage) MaxIn(amount *big.Int) *big.Int {
	num := new(big.Int).Mul(amount, big.NewInt(s.Denominator+s.Numerator))
	den := big.NewInt(s.Denominator)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// MinOut вычисляет минимальную сумму вывода: floor(amount * (den - num) / den).
func (s Slippage) MinOut(amount *big.Int) *big.Int {
	num := new(big.Int).Mul(amount, big.NewInt(s.Denominator-s.Numerator))
	return num.Quo(num, big.NewInt(s.Denominator))
}
