package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
	"github.com/voyago/travel-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func seedEntertainment(t *testing.T, store *sqlite.Store, id, location, price string, slots int) {
	t.Helper()
	require.NoError(t, store.SaveEntertainment(context.Background(), inventory.Entertainment{
		ID:         id,
		Name:       "Show " + id,
		Location:   location,
		Price:      money(price),
		Slots:      slots,
		SlotsTotal: slots,
	}))
}

// seedTrip sets up a two-leg chain Berlin -> Rome -> Athens with a hotel
// and a show in Athens.
func seedTrip(t *testing.T, store *sqlite.Store) {
	t.Helper()
	base := time.Date(2026, time.October, 1, 10, 0, 0, 0, time.UTC)
	seedFlight(t, store, inventory.Flight{
		ID: "fl-1", AirlineName: "Aurora", From: "Berlin", To: "Rome",
		Date:         base,
		EconomyPrice: money("110.00"), BusinessPrice: money("320.00"),
		EconomySeats: 50, BusinessSeats: 5,
	})
	seedFlight(t, store, inventory.Flight{
		ID: "fl-2", AirlineName: "Aurora", From: "Rome", To: "Athens",
		Date:         base.AddDate(0, 0, 3),
		EconomyPrice: money("95.00"), BusinessPrice: money("280.00"),
		EconomySeats: 40, BusinessSeats: 4,
	})
	seedHotel(t, store, "ho-ath", "Athens",
		inventory.RoomType{Name: "double", PricePerNight: money("120.00"), Count: 10, Total: 10})
	seedEntertainment(t, store, "en-ath", "Athens", "28.00", 25)
}

// =============================================================================
// SAVE - draft semantics with warnings
// =============================================================================

func TestSavePackage_UnresolvedReferencesDroppedWithWarnings(t *testing.T) {
	// GIVEN: A package referencing one real and one missing flight
	// WHEN: Saving
	// THEN: Save succeeds with the real flight only, plus a warning

	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1",
		[]string{"fl-1", "fl-ghost"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"fl-1"}, result.Package.FlightIDs)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "fl-ghost")
}

func TestSavePackage_SoldOutFlightDropped(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedFlight(t, store, inventory.Flight{
		ID: "fl-full", AirlineName: "Aurora", From: "Berlin", To: "Rome",
		Date:         time.Now().AddDate(0, 1, 0),
		EconomyPrice: money("110.00"), BusinessPrice: money("320.00"),
		EconomySeats: 0, BusinessSeats: 0,
		EconomyTotal: 50, BusinessTotal: 5,
	})

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-full"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Package.FlightIDs)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no seats")
}

func TestSavePackage_BrokenChainLegDropped(t *testing.T) {
	// GIVEN: Legs Berlin->Rome and Madrid->Paris on later dates
	// WHEN: Saving
	// THEN: The second leg is dropped because it does not depart from Rome

	svc, store := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, time.October, 1, 10, 0, 0, 0, time.UTC)
	seedFlight(t, store, inventory.Flight{
		ID: "fl-1", AirlineName: "Aurora", From: "Berlin", To: "Rome",
		Date:         base,
		EconomyPrice: money("110.00"), BusinessPrice: money("320.00"),
		EconomySeats: 50, BusinessSeats: 5,
	})
	seedFlight(t, store, inventory.Flight{
		ID: "fl-off", AirlineName: "Aurora", From: "Madrid", To: "Paris",
		Date:         base.AddDate(0, 0, 2),
		EconomyPrice: money("80.00"), BusinessPrice: money("200.00"),
		EconomySeats: 30, BusinessSeats: 3,
	})

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-off", "fl-1"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fl-1"}, result.Package.FlightIDs, "legs are date-ordered and must chain")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "does not depart from Rome")
}

func TestSavePackage_HotelMustMatchFinalDestination(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)
	seedHotel(t, store, "ho-rome", "Rome",
		inventory.RoomType{Name: "double", PricePerNight: money("100.00"), Count: 5, Total: 5})

	result, err := svc.SaveCustomPackage(ctx, "user-1",
		[]string{"fl-1", "fl-2"}, []string{"ho-rome", "ho-ath"}, nil)
	require.NoError(t, err)

	// Final destination is Athens; the Rome hotel is dropped.
	assert.Equal(t, []string{"ho-ath"}, result.Package.HotelIDs)
	assert.NotEmpty(t, result.Warnings)
}

func TestSavePackage_EntertainmentMustMatchHotelLocation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)
	seedEntertainment(t, store, "en-rome", "Rome", "30.00", 10)

	result, err := svc.SaveCustomPackage(ctx, "user-1",
		[]string{"fl-1", "fl-2"}, []string{"ho-ath"}, []string{"en-ath", "en-rome"})
	require.NoError(t, err)

	assert.Equal(t, []string{"en-ath"}, result.Package.EntertainmentIDs)
	assert.NotEmpty(t, result.Warnings)
}

func TestSavePackage_NoFlights_HotelsKeptAsIs(t *testing.T) {
	// Without flights there is no destination to match against.

	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1", nil, []string{"ho-ath"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ho-ath"}, result.Package.HotelIDs)
	assert.Empty(t, result.Warnings)
}

// =============================================================================
// FROZEN AFTER BOOKING
// =============================================================================

func TestPackage_FrozenOnceBooked(t *testing.T) {
	// GIVEN: A booked package
	// WHEN: Updating or deleting it
	// THEN: Both fail with ErrPackageBooked

	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-1"}, nil, nil)
	require.NoError(t, err)
	pkgID := result.Package.ID

	_, err = svc.BookCustom(ctx, "user-1", pkgID,
		[]booking.FlightSelection{{FlightID: "fl-1", SeatClass: inventory.SeatEconomy, Qty: 1}}, nil)
	require.NoError(t, err)

	_, err = svc.UpdateCustomPackage(ctx, pkgID, []string{"fl-2"}, nil, nil)
	assert.ErrorIs(t, err, booking.ErrPackageBooked)

	err = svc.DeleteCustomPackage(ctx, pkgID)
	assert.ErrorIs(t, err, booking.ErrPackageBooked)
}

func TestPackage_StaysFrozenAfterBookingCancelled(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-1"}, nil, nil)
	require.NoError(t, err)

	b, err := svc.BookCustom(ctx, "user-1", result.Package.ID,
		[]booking.FlightSelection{{FlightID: "fl-1", SeatClass: inventory.SeatEconomy, Qty: 1}}, nil)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, b.ID, "user-1")
	require.NoError(t, err)

	err = svc.DeleteCustomPackage(ctx, result.Package.ID)
	assert.ErrorIs(t, err, booking.ErrPackageBooked)
}

func TestDeletePackage_UnbookedSucceeds(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-1"}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomPackage(ctx, result.Package.ID))

	_, err = svc.GetCustomPackage(ctx, result.Package.ID)
	assert.True(t, booking.IsNotFound(err))
}

// =============================================================================
// BOOKING A PACKAGE
// =============================================================================

func TestBookCustom_SelectionPricingAndReservation(t *testing.T) {
	// GIVEN: A package with two legs, one hotel, one show
	// WHEN: Booking with 1 business + 1 economy seat and 2 rooms
	// THEN: Total = 320 + 95 + 240 + 28 = 683, each counter decremented

	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1",
		[]string{"fl-1", "fl-2"}, []string{"ho-ath"}, []string{"en-ath"})
	require.NoError(t, err)

	b, err := svc.BookCustom(ctx, "user-1", result.Package.ID,
		[]booking.FlightSelection{
			{FlightID: "fl-1", SeatClass: inventory.SeatBusiness, Qty: 1},
			{FlightID: "fl-2", SeatClass: inventory.SeatEconomy, Qty: 1},
		},
		[]booking.HotelSelection{{HotelID: "ho-ath", RoomType: "double", Rooms: 2}})
	require.NoError(t, err)

	assert.True(t, b.TotalPrice.Equal(money("683.00")), "got %s", b.TotalPrice)
	assert.Equal(t, booking.KindCustom, b.Kind)

	f1, _ := store.GetFlight(ctx, "fl-1")
	assert.Equal(t, 4, f1.BusinessSeats)
	f2, _ := store.GetFlight(ctx, "fl-2")
	assert.Equal(t, 39, f2.EconomySeats)
	h, _ := store.GetHotel(ctx, "ho-ath")
	assert.Equal(t, 8, h.Room("double").Count)
	e, _ := store.GetEntertainment(ctx, "en-ath")
	assert.Equal(t, 24, e.Slots)
}

func TestBookCustom_MissingSelectionRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-1", "fl-2"}, nil, nil)
	require.NoError(t, err)

	// Only one of the two package flights gets a selection.
	_, err = svc.BookCustom(ctx, "user-1", result.Package.ID,
		[]booking.FlightSelection{{FlightID: "fl-1", SeatClass: inventory.SeatEconomy, Qty: 1}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing selection")
	assert.True(t, booking.IsInvalidSelection(err))
	assert.True(t, booking.IsClientError(err))
}

func TestBookCustom_DuplicateSelectionRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-1"}, nil, nil)
	require.NoError(t, err)

	_, err = svc.BookCustom(ctx, "user-1", result.Package.ID,
		[]booking.FlightSelection{
			{FlightID: "fl-1", SeatClass: inventory.SeatEconomy, Qty: 1},
			{FlightID: "fl-1", SeatClass: inventory.SeatBusiness, Qty: 1},
		}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate selection")
	assert.True(t, booking.IsInvalidSelection(err))
}

func TestBookCustom_SelectionOutsidePackageRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1", []string{"fl-1"}, nil, nil)
	require.NoError(t, err)

	_, err = svc.BookCustom(ctx, "user-1", result.Package.ID,
		[]booking.FlightSelection{
			{FlightID: "fl-1", SeatClass: inventory.SeatEconomy, Qty: 1},
			{FlightID: "fl-2", SeatClass: inventory.SeatEconomy, Qty: 1},
		}, nil)
	require.Error(t, err)
	assert.True(t, booking.IsNotFound(err))
}

func TestBookCustom_CancelReleasesEverySelection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedTrip(t, store)

	result, err := svc.SaveCustomPackage(ctx, "user-1",
		[]string{"fl-1"}, []string{"ho-ath"}, []string{"en-ath"})
	require.NoError(t, err)

	b, err := svc.BookCustom(ctx, "user-1", result.Package.ID,
		[]booking.FlightSelection{{FlightID: "fl-1", SeatClass: inventory.SeatEconomy, Qty: 2}},
		[]booking.HotelSelection{{HotelID: "ho-ath", RoomType: "double", Rooms: 1}})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, b.ID, "user-1")
	require.NoError(t, err)

	f, _ := store.GetFlight(ctx, "fl-1")
	assert.Equal(t, 50, f.EconomySeats)
	h, _ := store.GetHotel(ctx, "ho-ath")
	assert.Equal(t, 10, h.Room("double").Count)
	e, _ := store.GetEntertainment(ctx, "en-ath")
	assert.Equal(t, 25, e.Slots)
}
