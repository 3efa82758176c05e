package settlement_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
	"github.com/voyago/travel-engine/settlement"
	"github.com/voyago/travel-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type failingProvider struct{}

func (failingProvider) CreateSession(ctx context.Context, reference string, amount decimal.Decimal) (*settlement.Session, error) {
	return nil, errors.New("provider unavailable")
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestSettlement(t *testing.T) (*settlement.Service, *booking.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bookings := booking.NewService(store)
	provider := settlement.NewRedirectProvider("https://pay.test")
	return settlement.NewService(store, provider), bookings, store
}

// pendingBooking seeds a tour and books it, returning a Pending booking
// with the given total price.
func pendingBooking(t *testing.T, bookings *booking.Service, store *sqlite.Store, price string) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	id := "tp-" + price
	require.NoError(t, store.SaveTourPackage(ctx, inventory.TourPackage{
		ID: id, Title: "Tour", Location: "Cusco", Duration: "5 days",
		Price: money(price), Availability: 20, MaxCapacity: 20,
	}))
	b, err := bookings.Create(ctx, "user-1", booking.TourItems{PackageID: id})
	require.NoError(t, err)
	return b
}

// =============================================================================
// AMOUNT SPLITTING
// =============================================================================

func TestSplitAmounts_SumExactlyToTotal(t *testing.T) {
	cases := []struct {
		total string
		n     int
		parts []string
	}{
		{"300.00", 3, []string{"100.00", "100.00", "100.00"}},
		{"100.00", 3, []string{"33.33", "33.33", "33.34"}},
		{"0.05", 2, []string{"0.02", "0.03"}},
		{"999.99", 4, []string{"249.99", "249.99", "249.99", "250.02"}},
	}
	for _, tc := range cases {
		parts := settlement.SplitAmounts(money(tc.total), tc.n)
		require.Len(t, parts, tc.n)
		sum := decimal.Zero
		for i, p := range parts {
			assert.True(t, p.Equal(money(tc.parts[i])), "%s/%d part %d: got %s", tc.total, tc.n, i, p)
			sum = sum.Add(p)
		}
		assert.True(t, sum.Equal(money(tc.total)), "parts of %s must sum exactly", tc.total)
	}
}

func TestSplitAmounts_NonPositiveCount(t *testing.T) {
	assert.Nil(t, settlement.SplitAmounts(money("100.00"), 0))
	assert.Nil(t, settlement.SplitAmounts(money("100.00"), -3))
}

// =============================================================================
// INSTALLMENT PLANS
// =============================================================================

func TestCreatePlan_ThreeInstallments(t *testing.T) {
	// GIVEN: A $300 booking
	// WHEN: Creating a 3-installment plan
	// THEN: Three $100 obligations, numbered 1..3, due monthly, each with
	//       an invoice id

	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "300.00")

	plan, err := svc.CreatePlan(ctx, b.ID, 3)
	require.NoError(t, err)
	require.Len(t, plan.Installments, 3)
	assert.Equal(t, settlement.ModeInstallments, plan.Mode)
	assert.False(t, plan.Settled())

	invoicePattern := regexp.MustCompile(`^INV-[0-9A-F]{8}$`)
	for i, in := range plan.Installments {
		assert.Equal(t, i+1, in.Number)
		assert.True(t, in.Amount.Equal(money("100.00")))
		assert.Equal(t, settlement.InstallmentUnpaid, in.Status)
		assert.Regexp(t, invoicePattern, in.InvoiceID)
		assert.True(t, in.DueDate.Equal(b.CreatedAt.AddDate(0, i, 0)),
			"installment %d due %s, want monthly from %s", in.Number, in.DueDate, b.CreatedAt)
	}
}

func TestCreatePlan_Idempotent(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "300.00")

	first, err := svc.CreatePlan(ctx, b.ID, 3)
	require.NoError(t, err)
	second, err := svc.CreatePlan(ctx, b.ID, 5)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeat creation returns the existing plan")
	assert.Len(t, second.Installments, 3)
}

func TestCreatePlan_RejectsSingleInstallment(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	b := pendingBooking(t, bookings, store, "300.00")

	_, err := svc.CreatePlan(context.Background(), b.ID, 1)
	assert.Error(t, err)
}

func TestCreatePlan_CancelledBookingRejected(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "300.00")
	_, err := bookings.Cancel(ctx, b.ID, "user-1")
	require.NoError(t, err)

	_, err = svc.CreatePlan(ctx, b.ID, 3)
	assert.ErrorIs(t, err, booking.ErrBookingCancelled)
}

func TestConfirmInstallments_OutOfOrder_ConfirmsOnLast(t *testing.T) {
	// GIVEN: A $300/3 plan
	// WHEN: Confirming installments 3, 1, 2 in that order
	// THEN: Payment status tracks partial payment and the booking becomes
	//       Confirmed exactly when the last obligation is paid

	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "300.00")

	plan, err := svc.CreatePlan(ctx, b.ID, 3)
	require.NoError(t, err)

	order := []int{3, 1, 2}
	for i, number := range order {
		in := plan.Installment(number)
		require.NotNil(t, in)

		session, err := svc.PayInstallment(ctx, in.ID)
		require.NoError(t, err)
		assert.True(t, session.Amount.Equal(money("100.00")))

		updated, err := svc.ConfirmInstallment(ctx, in.ID)
		require.NoError(t, err)

		current, err := store.GetBooking(ctx, b.ID)
		require.NoError(t, err)

		if i < len(order)-1 {
			assert.Equal(t, booking.StatusPending, current.Status)
			assert.Equal(t, booking.PaymentPartiallyPaid, current.PaymentStatus)
			assert.False(t, updated.Settled())
		} else {
			assert.Equal(t, booking.StatusConfirmed, current.Status)
			assert.Equal(t, booking.PaymentPaid, current.PaymentStatus)
			assert.True(t, updated.Settled())
			assert.True(t, current.WasConfirmed())
		}
	}
}

func TestConfirmInstallment_RepeatIsNoOp(t *testing.T) {
	// Re-confirming the last installment must not re-run the transition.

	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "200.00")

	plan, err := svc.CreatePlan(ctx, b.ID, 2)
	require.NoError(t, err)

	for _, in := range plan.Installments {
		_, err = svc.ConfirmInstallment(ctx, in.ID)
		require.NoError(t, err)
	}

	again, err := svc.ConfirmInstallment(ctx, plan.Installments[1].ID)
	require.NoError(t, err)
	assert.True(t, again.Settled())

	current, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, current.Status)
	assert.Equal(t, booking.PaymentPaid, current.PaymentStatus)
}

func TestPayInstallment_AlreadyPaidDistinguishable(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "200.00")

	plan, err := svc.CreatePlan(ctx, b.ID, 2)
	require.NoError(t, err)

	first := plan.Installments[0]
	_, err = svc.ConfirmInstallment(ctx, first.ID)
	require.NoError(t, err)

	_, err = svc.PayInstallment(ctx, first.ID)
	assert.ErrorIs(t, err, settlement.ErrAlreadyPaid)
	assert.True(t, settlement.IsConflict(err))
}

func TestPayInstallment_ProviderFailure(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bookings := booking.NewService(store)
	svc := settlement.NewService(store, failingProvider{})
	b := pendingBooking(t, bookings, store, "200.00")

	plan, err := svc.CreatePlan(context.Background(), b.ID, 2)
	require.NoError(t, err)

	_, err = svc.PayInstallment(context.Background(), plan.Installments[0].ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, settlement.ErrPaymentInitiation)

	// The obligation is untouched.
	in, err := store.GetInstallment(context.Background(), plan.Installments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.InstallmentUnpaid, in.Status)
}

// =============================================================================
// FULL PAYMENT
// =============================================================================

func TestFullPayment_InitiateAndConfirm(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "750.00")

	session, plan, err := svc.InitiateFullPayment(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.Amount.Equal(money("750.00")))
	assert.Equal(t, settlement.ModeFull, plan.Mode)
	require.Len(t, plan.Installments, 1)
	assert.True(t, plan.Installments[0].Amount.Equal(money("750.00")))

	confirmed, err := svc.ConfirmFullPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
	assert.Equal(t, booking.PaymentPaid, confirmed.PaymentStatus)
	assert.True(t, confirmed.WasConfirmed())
}

func TestConfirmFullPayment_TwiceIsNoOp(t *testing.T) {
	// GIVEN: A confirmed full payment
	// WHEN: Confirming again
	// THEN: No error, no state change

	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "750.00")

	_, _, err := svc.InitiateFullPayment(ctx, b.ID)
	require.NoError(t, err)
	first, err := svc.ConfirmFullPayment(ctx, b.ID)
	require.NoError(t, err)
	firstConfirmedAt := first.ConfirmedAt

	second, err := svc.ConfirmFullPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, second.Status)
	assert.Equal(t, booking.PaymentPaid, second.PaymentStatus)
	assert.Equal(t, firstConfirmedAt, second.ConfirmedAt, "confirmed_at must not move")
}

func TestConfirmFullPayment_WithoutInitiation(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	b := pendingBooking(t, bookings, store, "750.00")

	_, err := svc.ConfirmFullPayment(context.Background(), b.ID)
	assert.ErrorIs(t, err, settlement.ErrNoPlan)
}

func TestInitiateFullPayment_AlreadySettled(t *testing.T) {
	// A settled booking returns the plan with no session, so the caller
	// can tell "already paid" apart from a fresh initiation.

	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "750.00")

	_, _, err := svc.InitiateFullPayment(ctx, b.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmFullPayment(ctx, b.ID)
	require.NoError(t, err)

	session, plan, err := svc.InitiateFullPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
	require.NotNil(t, plan)
	assert.True(t, plan.Settled())
}

// =============================================================================
// MODE FIXATION
// =============================================================================

func TestMode_FixedAtFirstInitiation(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()

	// Full first, then installments.
	b1 := pendingBooking(t, bookings, store, "300.00")
	_, _, err := svc.InitiateFullPayment(ctx, b1.ID)
	require.NoError(t, err)
	_, err = svc.CreatePlan(ctx, b1.ID, 3)
	assert.ErrorIs(t, err, settlement.ErrModeConflict)

	// Installments first, then full.
	b2 := pendingBooking(t, bookings, store, "600.00")
	_, err = svc.CreatePlan(ctx, b2.ID, 3)
	require.NoError(t, err)
	_, _, err = svc.InitiateFullPayment(ctx, b2.ID)
	assert.ErrorIs(t, err, settlement.ErrModeConflict)
}

func TestConfirm_CancelledBookingRejected(t *testing.T) {
	svc, bookings, store := newTestSettlement(t)
	ctx := context.Background()
	b := pendingBooking(t, bookings, store, "300.00")

	plan, err := svc.CreatePlan(ctx, b.ID, 3)
	require.NoError(t, err)

	_, err = bookings.Cancel(ctx, b.ID, "user-1")
	require.NoError(t, err)

	_, err = svc.ConfirmInstallment(ctx, plan.Installments[0].ID)
	assert.ErrorIs(t, err, booking.ErrBookingCancelled)
	_, err = svc.PayInstallment(ctx, plan.Installments[0].ID)
	assert.ErrorIs(t, err, booking.ErrBookingCancelled)
}
