/*
Package settlement tracks how a booking's payment obligation is satisfied:
one full payment or an ordered installment plan.

PURPOSE:
  Both modes are variants of a single SettlementPlan with a shared
  completion predicate. The mode is chosen once, at first payment
  initiation, and never changes. Full payment is a plan with a single
  obligation; an installment plan splits the total into equal parts with
  the rounding remainder absorbed by the final installment.

KEY INVARIANTS:
  - Installment amounts sum exactly to the booking's total price.
  - Installment numbering is 1-based, contiguous, fixed at plan creation;
    payment order is free.
  - The owning booking transitions to Confirmed exactly when every
    obligation is Paid, and that evaluation is safe to re-run.

SEE ALSO:
  - service.go:  initiation / confirmation operations
  - provider.go: external session boundary
*/
package settlement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PLAN
// =============================================================================

type Mode string

const (
	ModeFull         Mode = "full"
	ModeInstallments Mode = "installments"
)

type InstallmentStatus string

const (
	InstallmentUnpaid InstallmentStatus = "Unpaid"
	InstallmentPaid   InstallmentStatus = "Paid"
)

// Installment is one payable obligation of a plan. For ModeFull there is
// exactly one, covering the whole total.
type Installment struct {
	ID        string
	PlanID    string
	Number    int // 1-based, contiguous, fixed at plan creation
	Amount    decimal.Decimal
	Status    InstallmentStatus
	DueDate   time.Time
	InvoiceID string
	PaidAt    *time.Time
}

type Plan struct {
	ID           string
	BookingID    string
	Mode         Mode
	Total        decimal.Decimal
	Installments []Installment
	CreatedAt    time.Time
}

// Settled is the shared completion predicate: every obligation is Paid.
func (p *Plan) Settled() bool {
	for _, in := range p.Installments {
		if in.Status != InstallmentPaid {
			return false
		}
	}
	return len(p.Installments) > 0
}

// PaidCount returns how many obligations are Paid.
func (p *Plan) PaidCount() int {
	n := 0
	for _, in := range p.Installments {
		if in.Status == InstallmentPaid {
			n++
		}
	}
	return n
}

// Installment returns the obligation with the given number, or nil.
func (p *Plan) Installment(number int) *Installment {
	for i := range p.Installments {
		if p.Installments[i].Number == number {
			return &p.Installments[i]
		}
	}
	return nil
}

// OverdueInstallment is an unpaid obligation past its due date, joined
// with its owning booking for notification purposes.
type OverdueInstallment struct {
	Installment
	BookingID string
	UserID    string
}

// =============================================================================
// SENTINELS
// =============================================================================

var (
	// ErrModeConflict is returned when an operation assumes the other
	// settlement mode than the one already chosen for the booking.
	ErrModeConflict = errors.New("settlement mode already chosen")

	// ErrAlreadyPaid is returned when paying an installment that is
	// already Paid. Surfaced as "already paid", not a generic failure.
	ErrAlreadyPaid = errors.New("installment already paid")

	// ErrNoPlan is returned when confirming a payment that was never
	// initiated.
	ErrNoPlan = errors.New("no settlement plan for booking")
)

// IsConflict reports whether the error is a settlement-level conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrModeConflict) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrNoPlan)
}

// =============================================================================
// PLAN CONSTRUCTION
// =============================================================================

// newInvoiceID builds a short readable invoice reference.
func newInvoiceID() string {
	return "INV-" + strings.ToUpper(uuid.NewString()[:8])
}

// SplitAmounts divides total into n parts rounded down to the cent, with
// the remainder assigned to the last part. The parts always sum exactly
// to total. Returns nil for n < 1.
func SplitAmounts(total decimal.Decimal, n int) []decimal.Decimal {
	if n < 1 {
		return nil
	}
	per := total.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	parts := make([]decimal.Decimal, n)
	running := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = per
		running = running.Add(per)
	}
	parts[n-1] = total.Sub(running)
	return parts
}

// newPlan builds a plan of either mode. Full mode is a single obligation;
// installment due dates run monthly from the booking's creation.
func newPlan(bookingID string, mode Mode, total decimal.Decimal, n int, anchor time.Time) (*Plan, error) {
	if mode == ModeFull {
		n = 1
	}
	if n < 1 {
		return nil, fmt.Errorf("installment count must be positive")
	}

	plan := &Plan{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		Mode:      mode,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}

	amounts := SplitAmounts(total, n)
	for i, amount := range amounts {
		plan.Installments = append(plan.Installments, Installment{
			ID:        uuid.NewString(),
			PlanID:    plan.ID,
			Number:    i + 1,
			Amount:    amount,
			Status:    InstallmentUnpaid,
			DueDate:   anchor.AddDate(0, i, 0),
			InvoiceID: newInvoiceID(),
		})
	}
	return plan, nil
}
