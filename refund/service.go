/*
service.go - Refund request lifecycle

PURPOSE:
  Moves a booking's refund status through its sub-state-machine under the
  store's conditional updates, so concurrent duplicate requests cannot
  both win and a resolved refund cannot be re-resolved.

RULES:
  - A second request returns ErrDuplicateRequest with the amount left
    untouched ("already requested", distinguishable by the caller).
  - Approval requires the booking to have been Confirmed at some point;
    an unpaid booking cannot be refunded past requested.
  - The amount frozen at request time is never recomputed.

SEE ALSO:
  - policy.go: the decay table
*/
package refund

import (
	"context"
	"fmt"
	"time"

	"github.com/voyago/travel-engine/booking"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Store is the persistence surface for refunds. Implemented by
// store/sqlite.
type Store interface {
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)

	// RequestRefund flips refund status none -> requested, freezing amount
	// and reason, and reports whether this call won the flip.
	RequestRefund(ctx context.Context, bookingID string, amount string, reason string) (bool, error)

	// UpdateRefundStatus flips from -> to conditionally and reports whether
	// this call performed the flip. The frozen amount is not touched.
	UpdateRefundStatus(ctx context.Context, bookingID string, from, to booking.RefundStatus) (bool, error)
}

// TransitionError records an attempted illegal refund transition.
type TransitionError struct {
	From booking.RefundStatus
	To   booking.RefundStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move refund from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return booking.ErrInvalidTransition }

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  Store
	events booking.Publisher
}

type Option func(*Service)

func WithPublisher(p booking.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request files a refund request for a booking. The refund amount is
// computed from the decay table against the booking's age right now and
// frozen. A booking whose refund status is already requested or beyond
// yields ErrDuplicateRequest without mutating anything.
func (s *Service) Request(ctx context.Context, bookingID, reason string) (*booking.Booking, error) {
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.RefundStatus != booking.RefundNone {
		return nil, booking.ErrDuplicateRequest
	}

	amount := Amount(b.TotalPrice, AgeDays(b.CreatedAt, time.Now().UTC()))

	won, err := s.store.RequestRefund(ctx, bookingID, amount.StringFixed(2), reason)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, booking.ErrDuplicateRequest
	}

	b, err = s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "refund_requested", b)
	return b, nil
}

// Resolve is the admin decision on a requested refund. Approval requires
// the booking to have been Confirmed at some point.
func (s *Service) Resolve(ctx context.Context, bookingID string, decision booking.RefundStatus) (*booking.Booking, error) {
	if decision != booking.RefundApproved && decision != booking.RefundRejected {
		return nil, fmt.Errorf("decision must be %s or %s, got %q",
			booking.RefundApproved, booking.RefundRejected, decision)
	}

	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.RefundStatus != booking.RefundRequested {
		return nil, &TransitionError{From: b.RefundStatus, To: decision}
	}
	if decision == booking.RefundApproved && !b.WasConfirmed() {
		return nil, booking.ErrNotRefundable
	}

	won, err := s.store.UpdateRefundStatus(ctx, bookingID, booking.RefundRequested, decision)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.getBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return nil, &TransitionError{From: current.RefundStatus, To: decision}
	}

	b, err = s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "refund_"+string(decision), b)
	return b, nil
}

// Process marks an approved refund as processed, representing the
// external funds movement. Legal only from approved; the frozen amount is
// not revalidated.
func (s *Service) Process(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.RefundStatus != booking.RefundApproved {
		return nil, &TransitionError{From: b.RefundStatus, To: booking.RefundProcessed}
	}

	won, err := s.store.UpdateRefundStatus(ctx, bookingID, booking.RefundApproved, booking.RefundProcessed)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.getBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return nil, &TransitionError{From: current.RefundStatus, To: booking.RefundProcessed}
	}

	b, err = s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "refund_processed", b)
	return b, nil
}

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

func (s *Service) publish(ctx context.Context, eventType string, b *booking.Booking) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, b.ID, booking.Event{
		Type:      eventType,
		BookingID: b.ID,
		UserID:    b.UserID,
		Status:    b.Status,
		Amount:    b.RefundAmount.StringFixed(2),
		At:        time.Now().UTC(),
	})
}
