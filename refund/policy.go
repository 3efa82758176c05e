/*
Package refund computes refund eligibility from booking age and tracks the
refund sub-state-machine on the booking.

PURPOSE:
  Refund percentage decays with the age of the booking at request time.
  The amount is computed once, when the refund is requested, and frozen:
  later policy changes or clock drift never retroactively alter an
  already-requested refund.

POLICY TABLE (ageDays at request time):
  0-7    90%
  8-14   75%
  15-30  50%
  31+    20%

  with ageDays = floor((now - booking.createdAt) / 24h).

STATE MACHINE (on booking.RefundStatus):
  none -> requested -> {approved | rejected}
  approved -> processed
  rejected, processed terminal

SEE ALSO:
  - service.go: request / resolve / process operations
*/
package refund

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is one row of the decay table.
type Tier struct {
	MaxAgeDays int // inclusive; -1 means open-ended
	Percent    decimal.Decimal
}

// DefaultPolicy is the time-decay table applied at request time.
var DefaultPolicy = []Tier{
	{MaxAgeDays: 7, Percent: decimal.NewFromFloat(0.90)},
	{MaxAgeDays: 14, Percent: decimal.NewFromFloat(0.75)},
	{MaxAgeDays: 30, Percent: decimal.NewFromFloat(0.50)},
	{MaxAgeDays: -1, Percent: decimal.NewFromFloat(0.20)},
}

// AgeDays returns the whole days elapsed between createdAt and now.
func AgeDays(createdAt, now time.Time) int {
	if now.Before(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt) / (24 * time.Hour))
}

// Percentage is a pure function of booking age in days.
func Percentage(ageDays int) decimal.Decimal {
	for _, t := range DefaultPolicy {
		if t.MaxAgeDays < 0 || ageDays <= t.MaxAgeDays {
			return t.Percent
		}
	}
	return decimal.Zero
}

// Amount applies the tier percentage to the booking's total price,
// rounded to the cent. Never exceeds total.
func Amount(total decimal.Decimal, ageDays int) decimal.Decimal {
	return total.Mul(Percentage(ageDays)).Round(2)
}
