/*
service.go - Settlement operations

PURPOSE:
  Drives a booking from Pending to Confirmed through either settlement
  mode. Confirmation paths are idempotent: confirming an already-confirmed
  full payment is a no-op, and the installment completion check may be
  re-run any number of times without repeating the status transition.

FAILURE SEMANTICS:
  - Provider failure at initiation: PaymentInitiationError, booking
    untouched.
  - Session created but never confirmed: the installment/booking keeps its
    prior state indefinitely. No reconciliation job is in scope.
  - Cancelled bookings accept no new obligations.

SEE ALSO:
  - plan.go:              plan variants and the completion predicate
  - booking/service.go:   the status machine being driven
  - store/sqlite:         conditional updates backing the idempotency
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/voyago/travel-engine/booking"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Store is the persistence surface for settlement. Implemented by
// store/sqlite.
type Store interface {
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)

	SavePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, planID string) (*Plan, error)
	GetPlanByBooking(ctx context.Context, bookingID string) (*Plan, error)
	GetInstallment(ctx context.Context, id string) (*Installment, error)

	// MarkInstallmentPaid flips Unpaid -> Paid conditionally and reports
	// whether this call performed the flip.
	MarkInstallmentPaid(ctx context.Context, id string, at time.Time) (bool, error)

	// ConfirmBookingPaid flips the booking Pending -> Confirmed, stamps
	// confirmed_at, and reports whether this call won the transition.
	ConfirmBookingPaid(ctx context.Context, bookingID string) (bool, error)

	// SetPaymentStatus updates the tracked payment status. Cancelled
	// bookings are left untouched.
	SetPaymentStatus(ctx context.Context, bookingID string, ps booking.PaymentStatus) error
}

type Service struct {
	store    Store
	provider Provider
	events   booking.Publisher
}

type Option func(*Service)

func WithPublisher(p booking.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(store Store, provider Provider, opts ...Option) *Service {
	s := &Service{store: store, provider: provider}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// FULL PAYMENT
// =============================================================================

// InitiateFullPayment opens one external session for the booking's total
// price. The first call fixes the settlement mode to full. When the
// booking is already settled, the existing plan is returned with a nil
// session so callers can tell "already paid" from a fresh initiation.
func (s *Service) InitiateFullPayment(ctx context.Context, bookingID string) (*Session, *Plan, error) {
	b, err := s.payableBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.store.GetPlanByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		plan, err = newPlan(bookingID, ModeFull, b.TotalPrice, 1, b.CreatedAt)
		if err != nil {
			return nil, nil, err
		}
		if err := s.store.SavePlan(ctx, plan); err != nil {
			return nil, nil, fmt.Errorf("failed to save settlement plan: %w", err)
		}
	} else if plan.Mode != ModeFull {
		return nil, nil, ErrModeConflict
	}

	if plan.Settled() {
		return nil, plan, nil
	}

	session, err := s.provider.CreateSession(ctx, bookingID, b.TotalPrice)
	if err != nil {
		return nil, nil, &PaymentInitiationError{Reference: bookingID, Cause: err}
	}
	return session, plan, nil
}

// ConfirmFullPayment is called after the external session reports
// success. Confirming an already-Confirmed booking is a no-op, not an
// error; status and payment status move together.
func (s *Service) ConfirmFullPayment(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusCancelled {
		return nil, booking.ErrBookingCancelled
	}

	plan, err := s.store.GetPlanByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoPlan
	}
	if plan.Mode != ModeFull {
		return nil, ErrModeConflict
	}

	now := time.Now().UTC()
	_, err = s.store.MarkInstallmentPaid(ctx, plan.Installments[0].ID, now)
	if err != nil {
		return nil, err
	}

	won, err := s.store.ConfirmBookingPaid(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPaymentStatus(ctx, bookingID, booking.PaymentPaid); err != nil {
		return nil, err
	}

	b, err = s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if won {
		s.publish(ctx, "booking_confirmed", b)
	}
	return b, nil
}

// =============================================================================
// INSTALLMENT PLAN
// =============================================================================

// CreatePlan splits the booking's total price into numberOfInstallments
// equal obligations. Idempotent: an existing installment plan is returned
// as-is rather than duplicated.
func (s *Service) CreatePlan(ctx context.Context, bookingID string, numberOfInstallments int) (*Plan, error) {
	b, err := s.payableBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetPlanByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Mode != ModeInstallments {
			return nil, ErrModeConflict
		}
		return existing, nil
	}

	if numberOfInstallments < 2 {
		return nil, fmt.Errorf("installment plan needs at least 2 installments, got %d", numberOfInstallments)
	}

	plan, err := newPlan(bookingID, ModeInstallments, b.TotalPrice, numberOfInstallments, b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save settlement plan: %w", err)
	}
	return plan, nil
}

// GetPlan returns the booking's settlement plan.
func (s *Service) GetPlan(ctx context.Context, bookingID string) (*Plan, error) {
	if _, err := s.getBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	plan, err := s.store.GetPlanByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoPlan
	}
	return plan, nil
}

// PayInstallment opens an external session for one installment's amount.
func (s *Service) PayInstallment(ctx context.Context, installmentID string) (*Session, error) {
	in, err := s.getInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if in.Status == InstallmentPaid {
		return nil, ErrAlreadyPaid
	}

	_, b, err := s.planAndBooking(ctx, in)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusCancelled {
		return nil, booking.ErrBookingCancelled
	}

	session, err := s.provider.CreateSession(ctx, installmentID, in.Amount)
	if err != nil {
		return nil, &PaymentInitiationError{Reference: installmentID, Cause: err}
	}
	return session, nil
}

// ConfirmInstallment marks the installment Paid and evaluates plan
// completion. The evaluation is re-entrant: repeated confirmations of the
// last installment confirm the booking exactly once.
func (s *Service) ConfirmInstallment(ctx context.Context, installmentID string) (*Plan, error) {
	in, err := s.getInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}

	_, b, err := s.planAndBooking(ctx, in)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusCancelled {
		return nil, booking.ErrBookingCancelled
	}

	now := time.Now().UTC()
	flipped, err := s.store.MarkInstallmentPaid(ctx, installmentID, now)
	if err != nil {
		return nil, err
	}
	if flipped {
		s.publishAmount(ctx, "installment_paid", b, in.Amount.StringFixed(2))
	}

	return s.evaluateCompletion(ctx, in.PlanID, b)
}

// evaluateCompletion reloads the plan and drives the booking state from
// the obligation ledger. Safe to run repeatedly.
func (s *Service) evaluateCompletion(ctx context.Context, planID string, b *booking.Booking) (*Plan, error) {
	plan, err := s.store.GetPlanByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoPlan
	}

	switch {
	case plan.Settled():
		won, err := s.store.ConfirmBookingPaid(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetPaymentStatus(ctx, b.ID, booking.PaymentPaid); err != nil {
			return nil, err
		}
		if won {
			confirmed, err := s.getBooking(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			s.publish(ctx, "booking_confirmed", confirmed)
		}
	case plan.PaidCount() > 0:
		if err := s.store.SetPaymentStatus(ctx, b.ID, booking.PaymentPartiallyPaid); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) getBooking(ctx context.Context, id string) (*booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &booking.NotFoundError{Kind: "booking", ID: id}
	}
	return b, nil
}

// payableBooking loads a booking that may still accept payment
// obligations.
func (s *Service) payableBooking(ctx context.Context, id string) (*booking.Booking, error) {
	b, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == booking.StatusCancelled {
		return nil, booking.ErrBookingCancelled
	}
	return b, nil
}

func (s *Service) getInstallment(ctx context.Context, id string) (*Installment, error) {
	in, err := s.store.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, &booking.NotFoundError{Kind: "installment", ID: id}
	}
	return in, nil
}

func (s *Service) planAndBooking(ctx context.Context, in *Installment) (*Plan, *booking.Booking, error) {
	plan, err := s.store.GetPlan(ctx, in.PlanID)
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, ErrNoPlan
	}
	b, err := s.getBooking(ctx, plan.BookingID)
	if err != nil {
		return nil, nil, err
	}
	return plan, b, nil
}

func (s *Service) publish(ctx context.Context, eventType string, b *booking.Booking) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, b.ID, booking.Event{
		Type:      eventType,
		BookingID: b.ID,
		UserID:    b.UserID,
		Kind:      b.Kind,
		Status:    b.Status,
		Amount:    b.TotalPrice.StringFixed(2),
		At:        time.Now().UTC(),
	})
}

func (s *Service) publishAmount(ctx context.Context, eventType string, b *booking.Booking, amount string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, b.ID, booking.Event{
		Type:      eventType,
		BookingID: b.ID,
		UserID:    b.UserID,
		Status:    b.Status,
		Amount:    amount,
		At:        time.Now().UTC(),
	})
}
