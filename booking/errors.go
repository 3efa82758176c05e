/*
errors.go - Error taxonomy for the booking lifecycle

PURPOSE:
  All booking-boundary errors in one place. The api layer maps these to
  HTTP status codes; nothing at the booking/settlement/refund boundary is
  silently swallowed.

ERROR CATEGORIES:
  1. Reference errors   - missing inventory items or bookings (404)
  2. Capacity errors    - insufficient units at reservation time (409)
  3. Transition errors  - illegal status changes (409)
  4. Duplicate errors   - refund already requested (409)
  5. Selection errors   - invalid booking input (400)

USAGE:
  Structured errors wrap the sentinels, so callers can either match the
  category with errors.Is or pull details with errors.As:

    if errors.Is(err, booking.ErrCapacity) { ... }

    var capErr *booking.CapacityError
    if errors.As(err, &capErr) { ... capErr.ItemID ... }

SEE ALSO:
  - settlement/provider.go: PaymentInitiationError (settlement-owned)
  - api/handlers.go: mapping to HTTP status codes
*/
package booking

import (
	"errors"
	"fmt"

	"github.com/voyago/travel-engine/inventory"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced inventory item or booking
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCapacity is returned when a reservation asks for more units than
	// are currently available. Hard failure, never a warning.
	ErrCapacity = errors.New("insufficient capacity")

	// ErrInvalidTransition is returned for any status change outside the
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateRequest is returned when a refund is requested for a
	// booking whose refund status is already requested or beyond. Callers
	// surface this as "already requested", not a generic failure.
	ErrDuplicateRequest = errors.New("refund already requested")

	// ErrNotRefundable is returned when a refund would advance past
	// requested on a booking that was never confirmed.
	ErrNotRefundable = errors.New("booking was never confirmed")

	// ErrBookingCancelled is returned when a cancelled booking is asked to
	// accept a new payment obligation.
	ErrBookingCancelled = errors.New("booking is cancelled")

	// ErrPackageBooked is returned when editing or deleting a custom
	// package already referenced by a booking.
	ErrPackageBooked = errors.New("custom package is frozen by a booking")

	// ErrInvalidSelection is returned when booking input fails validation
	// before any reservation is attempted: a non-positive quantity, an
	// unknown seat class, or custom package selections that do not cover
	// the package exactly once.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrItemHeld is returned when another in-flight request currently
	// holds the same sub-counter. Transient; capacity may well remain.
	ErrItemHeld = errors.New("item is held by another request")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError identifies which reference failed to resolve.
type NotFoundError struct {
	Kind string // "flight", "hotel", "booking", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// CapacityError carries the item and quantity that could not be reserved.
type CapacityError struct {
	ItemType     inventory.ItemType
	ItemID       string
	QuantityKind string
	Requested    int
}

func (e *CapacityError) Error() string {
	if e.QuantityKind != "" {
		return fmt.Sprintf("insufficient capacity: %s %s (%s), requested %d",
			e.ItemType, e.ItemID, e.QuantityKind, e.Requested)
	}
	return fmt.Sprintf("insufficient capacity: %s %s, requested %d",
		e.ItemType, e.ItemID, e.Requested)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// InvalidTransitionError records the attempted edge.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition booking from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// SelectionError describes the booking input that failed validation.
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string { return e.Reason }

func (e *SelectionError) Unwrap() error { return ErrInvalidSelection }

// HoldError identifies the sub-counter another request is holding.
type HoldError struct {
	ItemType     inventory.ItemType
	ItemID       string
	QuantityKind string
}

func (e *HoldError) Error() string {
	if e.QuantityKind != "" {
		return fmt.Sprintf("%s %s (%s) is held by another request", e.ItemType, e.ItemID, e.QuantityKind)
	}
	return fmt.Sprintf("%s %s is held by another request", e.ItemType, e.ItemID)
}

func (e *HoldError) Unwrap() error { return ErrItemHeld }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error is a missing-reference error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether the error is an application-level conflict
// (capacity, duplicate request, illegal transition). These map to 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCapacity) ||
		errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrBookingCancelled) ||
		errors.Is(err, ErrNotRefundable) ||
		errors.Is(err, ErrPackageBooked) ||
		errors.Is(err, ErrItemHeld)
}

// IsInvalidSelection reports whether the error is a validation failure
// on booking input. These map to 400.
func IsInvalidSelection(err error) bool {
	return errors.Is(err, ErrInvalidSelection)
}

// IsClientError reports whether the error is due to client input rather
// than an internal failure.
func IsClientError(err error) bool {
	return IsNotFound(err) || IsConflict(err) || IsInvalidSelection(err)
}
