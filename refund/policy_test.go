package refund_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/voyago/travel-engine/refund"
)

func TestPercentage_DecayTiers(t *testing.T) {
	cases := []struct {
		ageDays int
		percent string
	}{
		{0, "0.9"},
		{3, "0.9"},
		{7, "0.9"},
		{8, "0.75"},
		{10, "0.75"},
		{14, "0.75"},
		{15, "0.5"},
		{20, "0.5"},
		{30, "0.5"},
		{31, "0.2"},
		{45, "0.2"},
		{365, "0.2"},
	}
	for _, tc := range cases {
		got := refund.Percentage(tc.ageDays)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.percent)),
			"age %d days: got %s, want %s", tc.ageDays, got, tc.percent)
	}
}

func TestAgeDays_FloorsPartialDays(t *testing.T) {
	created := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, refund.AgeDays(created, created.Add(23*time.Hour)))
	assert.Equal(t, 1, refund.AgeDays(created, created.Add(24*time.Hour)))
	assert.Equal(t, 1, refund.AgeDays(created, created.Add(47*time.Hour)))
	assert.Equal(t, 7, refund.AgeDays(created, created.AddDate(0, 0, 7)))
}

func TestAmount_RoundsToCents(t *testing.T) {
	total := decimal.RequireFromString("333.33")

	// 10 days -> 75% of 333.33 = 249.9975 -> 250.00
	got := refund.Amount(total, 10)
	assert.True(t, got.Equal(decimal.RequireFromString("250.00")), "got %s", got)

	// 45 days -> 20% of 333.33 = 66.666 -> 66.67
	got = refund.Amount(total, 45)
	assert.True(t, got.Equal(decimal.RequireFromString("66.67")), "got %s", got)
}
