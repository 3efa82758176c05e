package refund_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
	"github.com/voyago/travel-engine/refund"
	"github.com/voyago/travel-engine/settlement"
	"github.com/voyago/travel-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRefunds(t *testing.T) (*refund.Service, *booking.Service, *settlement.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bookings := booking.NewService(store)
	settle := settlement.NewService(store, settlement.NewRedirectProvider("https://pay.test"))
	return refund.NewService(store), bookings, settle, store
}

func makeBooking(t *testing.T, bookings *booking.Service, store *sqlite.Store, total string) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveTourPackage(ctx, inventory.TourPackage{
		ID: "tp-1", Title: "Tour", Location: "Cusco", Duration: "5 days",
		Price: decimal.RequireFromString(total), Availability: 20, MaxCapacity: 20,
	}))
	b, err := bookings.Create(ctx, "user-1", booking.TourItems{PackageID: "tp-1"})
	require.NoError(t, err)
	return b
}

func confirmBooking(t *testing.T, settle *settlement.Service, bookingID string) {
	t.Helper()
	ctx := context.Background()
	_, _, err := settle.InitiateFullPayment(ctx, bookingID)
	require.NoError(t, err)
	_, err = settle.ConfirmFullPayment(ctx, bookingID)
	require.NoError(t, err)
}

// =============================================================================
// REQUEST
// =============================================================================

func TestRequest_FreezesAmountFromDecayTable(t *testing.T) {
	// GIVEN: A booking created just now with total 1000.00
	// WHEN: Requesting a refund
	// THEN: The frozen amount is 90% = 900.00

	refunds, bookings, _, store := newTestRefunds(t)
	ctx := context.Background()
	b := makeBooking(t, bookings, store, "1000.00")

	updated, err := refunds.Request(ctx, b.ID, "change of plans")
	require.NoError(t, err)

	assert.Equal(t, booking.RefundRequested, updated.RefundStatus)
	assert.True(t, updated.RefundAmount.Equal(decimal.RequireFromString("900.00")),
		"got %s", updated.RefundAmount)
	assert.Equal(t, "change of plans", updated.RefundReason)
}

func TestRequest_DuplicateDistinguishable(t *testing.T) {
	// A second request must surface as "already requested", not a generic
	// failure, and must not touch the frozen amount.

	refunds, bookings, _, store := newTestRefunds(t)
	ctx := context.Background()
	b := makeBooking(t, bookings, store, "1000.00")

	first, err := refunds.Request(ctx, b.ID, "first")
	require.NoError(t, err)

	_, err = refunds.Request(ctx, b.ID, "second")
	assert.ErrorIs(t, err, booking.ErrDuplicateRequest)

	current, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, current.RefundAmount.Equal(first.RefundAmount))
	assert.Equal(t, "first", current.RefundReason)
}

func TestRequest_UnknownBooking(t *testing.T) {
	refunds, _, _, _ := newTestRefunds(t)

	_, err := refunds.Request(context.Background(), "missing", "whatever")
	assert.True(t, booking.IsNotFound(err))
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_ApprovalRequiresConfirmedBooking(t *testing.T) {
	// GIVEN: A refund request on a booking that was never Confirmed
	// WHEN: An admin approves it
	// THEN: ErrNotRefundable; rejection is still allowed

	refunds, bookings, _, store := newTestRefunds(t)
	ctx := context.Background()
	b := makeBooking(t, bookings, store, "500.00")

	_, err := refunds.Request(ctx, b.ID, "never paid")
	require.NoError(t, err)

	_, err = refunds.Resolve(ctx, b.ID, booking.RefundApproved)
	assert.ErrorIs(t, err, booking.ErrNotRefundable)

	resolved, err := refunds.Resolve(ctx, b.ID, booking.RefundRejected)
	require.NoError(t, err)
	assert.Equal(t, booking.RefundRejected, resolved.RefundStatus)
}

func TestResolve_ApproveThenProcess_FrozenAmountUntouched(t *testing.T) {
	refunds, bookings, settle, store := newTestRefunds(t)
	ctx := context.Background()
	b := makeBooking(t, bookings, store, "800.00")
	confirmBooking(t, settle, b.ID)

	requested, err := refunds.Request(ctx, b.ID, "trip cancelled")
	require.NoError(t, err)
	frozen := requested.RefundAmount

	approved, err := refunds.Resolve(ctx, b.ID, booking.RefundApproved)
	require.NoError(t, err)
	assert.Equal(t, booking.RefundApproved, approved.RefundStatus)
	assert.True(t, approved.RefundAmount.Equal(frozen))

	processed, err := refunds.Process(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.RefundProcessed, processed.RefundStatus)
	assert.True(t, processed.RefundAmount.Equal(frozen), "amount is frozen at request time")
}

func TestResolve_TerminalStatesRejectFurtherTransitions(t *testing.T) {
	refunds, bookings, settle, store := newTestRefunds(t)
	ctx := context.Background()
	b := makeBooking(t, bookings, store, "800.00")
	confirmBooking(t, settle, b.ID)

	_, err := refunds.Request(ctx, b.ID, "r")
	require.NoError(t, err)
	_, err = refunds.Resolve(ctx, b.ID, booking.RefundRejected)
	require.NoError(t, err)

	// rejected is terminal
	_, err = refunds.Resolve(ctx, b.ID, booking.RefundApproved)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	_, err = refunds.Process(ctx, b.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	assert.True(t, booking.RefundRejected.Terminal())
	assert.True(t, booking.RefundProcessed.Terminal())
	assert.False(t, booking.RefundRequested.Terminal())
}

func TestProcess_OnlyFromApproved(t *testing.T) {
	refunds, bookings, _, store := newTestRefunds(t)
	ctx := context.Background()
	b := makeBooking(t, bookings, store, "800.00")

	// Straight to process without request/approval.
	_, err := refunds.Process(ctx, b.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	var tr *refund.TransitionError
	require.ErrorAs(t, err, &tr)
	assert.Equal(t, booking.RefundNone, tr.From)
	assert.Equal(t, booking.RefundProcessed, tr.To)
}

func TestResolve_InvalidDecisionRejected(t *testing.T) {
	refunds, bookings, _, store := newTestRefunds(t)
	b := makeBooking(t, bookings, store, "800.00")

	_, err := refunds.Resolve(context.Background(), b.ID, booking.RefundProcessed)
	assert.Error(t, err)
}
