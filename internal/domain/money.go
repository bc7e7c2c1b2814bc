package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale — количество минорных разрядов валюты (1/100).
const AmountScale = 2

// ParseAmount переводит десятичную строку ("10.50") в минорные единицы.
// Пустая строка трактуется как ноль.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(AmountScale)) {
		return 0, fmt.Errorf("parse amount %q: %w", s, ErrAmountPrecision)
	}

	minor := d.Shift(AmountScale)
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("parse amount %q: %w", s, ErrAmountOverflow)
	}
	return minor.IntPart(), nil
}

// FormatAmount печатает минорные единицы с фиксированными двумя знаками.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -AmountScale).StringFixed(AmountScale)
}

// MulAmount возвращает price * qty с контролем переполнения.
func MulAmount(price int64, qty int32) (int64, error) {
	if price == 0 || qty == 0 {
		return 0, nil
	}
	q := int64(qty)
	if price == math.MinInt64 && q == -1 {
		return 0, ErrAmountOverflow
	}
	total := price * q
	if total/q != price {
		return 0, ErrAmountOverflow
	}
	return total, nil
}

// AddAmount складывает две суммы с контролем переполнения.
func AddAmount(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}
