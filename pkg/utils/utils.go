package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateDueDate returns the date offsetDays calendar days after start.
func CalculateDueDate(start time.Time, offsetDays int) time.Time {
	return start.AddDate(0, 0, offsetDays)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts whole calendar days from `from` to `to`, negative when
// `to` is earlier. Both dates are read in to's location; time of day is
// ignored.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.In(to.Location()).Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// CeilDiv divides a by b rounding up. b must be positive.
func CeilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// RoundCurrency rounds to whole currency units, half away from zero.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Percent returns value * pct / 100.
func Percent(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(decimal.NewFromInt(100))
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
