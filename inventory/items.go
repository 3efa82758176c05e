/*
Package inventory defines the passive inventory records a booking consumes
and the CapacityGuard interface protecting their unit counts.

PURPOSE:
  Inventory items (flights, hotels, entertainment, tour packages) carry
  price and capacity fields. They are consumed by bookings, never owned
  by them. All reservations and releases go through the CapacityGuard so
  that no booking path can read-modify-write a count at the application
  layer.

KEY CONCEPTS:
  - ItemType:      Which table/record family an item belongs to
  - QuantityKind:  The sub-counter within an item (seat class, room type)
  - CapacityGuard: Atomic reserve/release, implemented by the store

SEE ALSO:
  - store/sqlite: CapacityGuard implementation via conditional UPDATEs
  - booking/:     The only caller of Reserve/Release
*/
package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ITEM TYPES
// =============================================================================

type ItemType string

const (
	ItemFlight        ItemType = "flight"
	ItemHotel         ItemType = "hotel"
	ItemEntertainment ItemType = "entertainment"
	ItemTourPackage   ItemType = "tour_package"
)

// SeatClass is the quantity kind for flights.
type SeatClass string

const (
	SeatEconomy  SeatClass = "economy"
	SeatBusiness SeatClass = "business"
)

func (c SeatClass) Valid() bool {
	return c == SeatEconomy || c == SeatBusiness
}

// =============================================================================
// RECORDS
// =============================================================================

// Flight carries per-class seat counts and prices. EconomySeats and
// BusinessSeats are current availability; the *Total fields are the
// ceilings releases are clamped to.
type Flight struct {
	ID            string
	AirlineName   string
	From          string
	To            string
	Date          time.Time
	EconomyPrice  decimal.Decimal
	BusinessPrice decimal.Decimal
	EconomySeats  int
	BusinessSeats int
	EconomyTotal  int
	BusinessTotal int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PriceFor returns the per-seat price for a class. Unknown classes price
// as economy; callers validate the class before reserving.
func (f Flight) PriceFor(class SeatClass) decimal.Decimal {
	if class == SeatBusiness {
		return f.BusinessPrice
	}
	return f.EconomyPrice
}

// RoomType is a sub-counter within a hotel: a named room category with
// its own price, current count, and ceiling.
type RoomType struct {
	Name          string
	PricePerNight decimal.Decimal
	Count         int
	Total         int
}

type Hotel struct {
	ID             string
	Name           string
	Location       string
	PricePerNight  decimal.Decimal
	RoomTypes      []RoomType
	RoomsAvailable int
	RoomsTotal     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Room returns the named room type, or nil if the hotel has no such room.
func (h Hotel) Room(name string) *RoomType {
	for i := range h.RoomTypes {
		if h.RoomTypes[i].Name == name {
			return &h.RoomTypes[i]
		}
	}
	return nil
}

type Entertainment struct {
	ID         string
	Name       string
	Location   string
	Price      decimal.Decimal
	Slots      int
	SlotsTotal int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type TourPackage struct {
	ID           string
	Title        string
	Location     string
	Duration     string
	Price        decimal.Decimal
	Availability int
	MaxCapacity  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// CAPACITY GUARD
// =============================================================================

// CapacityGuard is the single chokepoint for inventory counts. Reserve
// verifies and decrements in one atomic conditional update; two
// concurrent requests for the last unit cannot both succeed. Release is
// the inverse increment, clamped so a count never exceeds its original
// maximum.
//
// quantityKind selects the sub-counter: the seat class for flights, the
// room type name for hotels, and "" for entertainment slots and tour
// package availability.
type CapacityGuard interface {
	Reserve(ctx context.Context, itemType ItemType, itemID, quantityKind string, qty int) error
	Release(ctx context.Context, itemType ItemType, itemID, quantityKind string, qty int) error
}

// Reservation records one successful Reserve so a cancellation can
// release exactly what was taken.
type Reservation struct {
	ItemType     ItemType `json:"item_type"`
	ItemID       string   `json:"item_id"`
	QuantityKind string   `json:"quantity_kind,omitempty"`
	Quantity     int      `json:"quantity"`
}
