/*
Package booking provides the booking entity, its status state machine,
and the services that create, cancel, and settle bookings.

PURPOSE:
  A Booking is the commitment record linking a user to purchased
  inventory: a tour package, a single flight, a hotel stay, or a custom
  package. It owns the status state machine, the price snapshot, and the
  refund fields. Capacity is reserved at creation through the
  inventory.CapacityGuard and released exactly once on cancellation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status:        Pending -> Confirmed -> Cancelled (plus Pending ->
                   Cancelled). Everything else is rejected.
  - PaymentStatus: Unpaid / PartiallyPaid / Paid, tracked alongside
                   Status and kept consistent with the settlement ledger.
  - RefundStatus:  none -> requested -> {approved|rejected};
                   approved -> processed. Terminal: rejected, processed.
  - Items:         Tagged union over booking kinds. One case per kind,
                   each carrying only its relevant reference data, so
                   invalid field combinations cannot be represented.

DESIGN PRINCIPLES:
  1. Price snapshot: TotalPrice is computed at booking time and never
     live-recomputed.
  2. CreatedAt is immutable; it anchors the refund-policy age calculation.
  3. Reservations are recorded on the booking so cancellation can release
     exactly what was taken.

SEE ALSO:
  - service.go: create / cancel / transition operations
  - custom.go:  custom package aggregator
  - settlement/: payment obligations and confirmation
  - refund/:     refund policy and sub-state-machine
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyago/travel-engine/inventory"
)

// =============================================================================
// STATUS STATE MACHINE
// =============================================================================

type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// transitions is the full transition table. Confirmed is reached only via
// settlement; Cancelled is terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

// CanTransitionTo reports whether the edge s -> to is in the table.
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// =============================================================================
// PAYMENT STATUS
// =============================================================================

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "Unpaid"
	PaymentPartiallyPaid PaymentStatus = "PartiallyPaid"
	PaymentPaid          PaymentStatus = "Paid"
)

// =============================================================================
// REFUND STATUS
// =============================================================================

type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundRequested RefundStatus = "requested"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
	RefundProcessed RefundStatus = "processed"
)

// Terminal reports whether no further refund transition is possible.
func (r RefundStatus) Terminal() bool {
	return r == RefundRejected || r == RefundProcessed
}

// =============================================================================
// KIND - Tagged union over booking item references
// =============================================================================

type Kind string

const (
	KindTourPackage Kind = "tour_package"
	KindFlight      Kind = "flight"
	KindHotel       Kind = "hotel"
	KindCustom      Kind = "custom"
)

// Items is the sealed variant type: exactly one implementation per Kind.
// The booking carries only the reference data relevant to its kind.
type Items interface {
	BookingKind() Kind
}

// TourItems books one seat on a tour package.
type TourItems struct {
	PackageID string `json:"package_id"`
	People    int    `json:"people,omitempty"`
}

func (TourItems) BookingKind() Kind { return KindTourPackage }

// FlightItems books qty seats of a class on a single flight.
type FlightItems struct {
	FlightID  string              `json:"flight_id"`
	SeatClass inventory.SeatClass `json:"seat_class"`
	Qty       int                 `json:"qty"`
}

func (FlightItems) BookingKind() Kind { return KindFlight }

// HotelItems books rooms of one room type at a single hotel.
type HotelItems struct {
	HotelID  string `json:"hotel_id"`
	RoomType string `json:"room_type"`
	Rooms    int    `json:"rooms"`
}

func (HotelItems) BookingKind() Kind { return KindHotel }

// FlightSelection is the seat class and quantity chosen for one flight of
// a custom package at booking time.
type FlightSelection struct {
	FlightID  string              `json:"flight_id"`
	SeatClass inventory.SeatClass `json:"seat_class"`
	Qty       int                 `json:"qty"`
}

// HotelSelection is the room type and count chosen for one hotel of a
// custom package at booking time.
type HotelSelection struct {
	HotelID  string `json:"hotel_id"`
	RoomType string `json:"room_type"`
	Rooms    int    `json:"rooms"`
}

// CustomItems books a user-assembled package. The selections are the
// frozen snapshot taken at booking time; the package itself may not be
// edited afterwards. Pricing comes from the selections (class and room
// prices), not the package's nominal aggregate.
type CustomItems struct {
	PackageID        string            `json:"package_id"`
	Flights          []FlightSelection `json:"flights,omitempty"`
	Hotels           []HotelSelection  `json:"hotels,omitempty"`
	EntertainmentIDs []string          `json:"entertainment_ids,omitempty"`
}

func (CustomItems) BookingKind() Kind { return KindCustom }

// =============================================================================
// BOOKING
// =============================================================================

type Booking struct {
	ID     string
	UserID string
	Kind   Kind
	Items  Items

	// Snapshot at booking time; never recomputed.
	TotalPrice decimal.Decimal

	Status        Status
	PaymentStatus PaymentStatus

	RefundStatus RefundStatus
	RefundAmount decimal.Decimal
	RefundReason string

	// Reservations taken at creation, released once on cancellation.
	Reservations []inventory.Reservation

	// Set the first time the booking reaches Confirmed. A refund may not
	// advance past requested unless this is set.
	ConfirmedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WasConfirmed reports whether the booking ever reached Confirmed,
// regardless of its current status.
func (b *Booking) WasConfirmed() bool {
	return b.ConfirmedAt != nil
}

// StatusNote is an advisory audit record attached to a transition. Writing
// one is never required for the transition to succeed.
type StatusNote struct {
	BookingID string
	Status    Status
	Reason    string
	Actor     string
	CreatedAt time.Time
}
