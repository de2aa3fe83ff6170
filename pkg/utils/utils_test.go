package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateDueDate(t *testing.T) {
	baseDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		offset   int
		expected time.Time
	}{
		{name: "same day", offset: 0, expected: baseDate},
		{name: "thirty days", offset: 30, expected: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{name: "sixty days across february", offset: 60, expected: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateDueDate(baseDate, tt.offset))
		})
	}
}

func TestDaysBetween(t *testing.T) {
	from := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		to       time.Time
		expected int
	}{
		{name: "same day later hour", to: time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC), expected: 0},
		{name: "next morning", to: time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC), expected: 1},
		{name: "sixty five days", to: time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC), expected: 65},
		{name: "earlier", to: time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC), expected: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysBetween(from, tt.to))
		})
	}
}

func TestDaysBetweenReadsBothDatesInTargetZone(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*60*60)
	dueLocal := time.Date(2026, 1, 10, 0, 0, 0, 0, bangkok)
	asOf := time.Date(2026, 2, 9, 10, 0, 0, 0, bangkok)

	assert.Equal(t, 30, DaysBetween(dueLocal, asOf))
	// same instant as stored by Postgres in a UTC session: 2026-01-09 17:00Z
	assert.Equal(t, 30, DaysBetween(dueLocal.UTC(), asOf))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 0, CeilDiv(0, 30))
	assert.Equal(t, 1, CeilDiv(1, 30))
	assert.Equal(t, 1, CeilDiv(30, 30))
	assert.Equal(t, 2, CeilDiv(31, 30))
	assert.Equal(t, 3, CeilDiv(65, 30))
}

func TestRoundCurrency(t *testing.T) {
	assert.True(t, RoundCurrency(decimal.RequireFromString("270.5")).Equal(decimal.NewFromInt(271)))
	assert.True(t, RoundCurrency(decimal.RequireFromString("270.49")).Equal(decimal.NewFromInt(270)))
	assert.True(t, Percent(decimal.NewFromInt(9000), decimal.NewFromInt(3)).Equal(decimal.NewFromInt(270)))
}
