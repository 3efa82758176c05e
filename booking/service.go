/*
service.go - Booking lifecycle operations

PURPOSE:
  Orchestrates booking creation, cancellation, and admin status changes.
  Creation is fail-fast: every referenced item must resolve and every
  requested quantity must be reservable, otherwise the whole request
  fails and anything already reserved is rolled back.

CREATION FLOW:
  1. Resolve references (NotFoundError on any miss)
  2. Reserve capacity through the CapacityGuard (CapacityError on shortage)
  3. Snapshot the total price
  4. Persist the booking as Pending
  5. Publish booking_created (best effort)

CANCELLATION:
  Cancellation wins the status CAS exactly once; only the winner releases
  the recorded reservations, so cancelling twice cannot double-increment
  inventory counts. The release itself is clamped at the store layer.

SEE ALSO:
  - custom.go:   custom package save/book
  - store/sqlite: Store implementation
  - events/:     kafka publisher behind the Publisher interface
*/
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voyago/travel-engine/inventory"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Store is the persistence surface the booking service needs. Implemented
// by store/sqlite.
type Store interface {
	inventory.CapacityGuard

	GetFlight(ctx context.Context, id string) (*inventory.Flight, error)
	GetHotel(ctx context.Context, id string) (*inventory.Hotel, error)
	GetEntertainment(ctx context.Context, id string) (*inventory.Entertainment, error)
	GetTourPackage(ctx context.Context, id string) (*inventory.TourPackage, error)

	SaveBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id string) (*Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]Booking, error)

	// TransitionStatus performs the conditional update: the booking moves
	// to `to` only if its current status is one of `from`. Returns whether
	// this call won the update. When to is Confirmed the store also stamps
	// confirmed_at if unset.
	TransitionStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)

	// AppendStatusNote records an advisory audit note. Failures never block
	// the transition.
	AppendStatusNote(ctx context.Context, note StatusNote) error

	SaveCustomPackage(ctx context.Context, p *CustomPackage) error
	GetCustomPackage(ctx context.Context, id string) (*CustomPackage, error)
	ListCustomPackagesByUser(ctx context.Context, userID string) ([]CustomPackage, error)
	DeleteCustomPackage(ctx context.Context, id string) error
	PackageHasBooking(ctx context.Context, packageID string) (bool, error)
}

// Publisher emits booking lifecycle events. Optional: a nil publisher
// disables events.
type Publisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// Event is the payload published on booking lifecycle changes.
type Event struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	At        time.Time `json:"at"`
}

// HoldLock is an optional short-term hold taken while a booking request is
// in flight. The durable guarantee is the store-level conditional update;
// the hold just narrows the race window across instances.
type HoldLock interface {
	AcquireHold(ctx context.Context, itemType inventory.ItemType, itemID, quantityKind string, ttl time.Duration) (bool, error)
	ReleaseHold(ctx context.Context, itemType inventory.ItemType, itemID, quantityKind string) error
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store   Store
	events  Publisher
	holds   HoldLock
	holdTTL time.Duration
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithHoldLock(h HoldLock, ttl time.Duration) Option {
	return func(s *Service) {
		s.holds = h
		s.holdTTL = ttl
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, holdTTL: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// CREATE
// =============================================================================

// Create validates the referenced items, reserves capacity, snapshots the
// price, and persists a Pending booking.
func (s *Service) Create(ctx context.Context, userID string, items Items) (*Booking, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	priced, err := s.priceAndReserve(ctx, items)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b := &Booking{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          items.BookingKind(),
		Items:         items,
		TotalPrice:    priced.total,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		RefundStatus:  RefundNone,
		Reservations:  priced.reservations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.SaveBooking(ctx, b); err != nil {
		s.releaseAll(ctx, priced.reservations)
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.publish(ctx, "booking_created", b)
	return b, nil
}

type pricedReservation struct {
	total        decimal.Decimal
	reservations []inventory.Reservation
}

func decimalFromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// priceAndReserve resolves the item references, reserves every requested
// unit, and returns the price snapshot. On any failure the units already
// reserved are released before returning.
func (s *Service) priceAndReserve(ctx context.Context, items Items) (*pricedReservation, error) {
	out := &pricedReservation{total: decimal.Zero}

	fail := func(err error) (*pricedReservation, error) {
		s.releaseAll(ctx, out.reservations)
		return nil, err
	}

	switch it := items.(type) {
	case TourItems:
		tour, err := s.store.GetTourPackage(ctx, it.PackageID)
		if err != nil {
			return fail(err)
		}
		if tour == nil {
			return fail(&NotFoundError{Kind: "tour package", ID: it.PackageID})
		}
		if err := s.reserve(ctx, out, inventory.ItemTourPackage, tour.ID, "", 1); err != nil {
			return fail(err)
		}
		out.total = tour.Price

	case FlightItems:
		if it.Qty <= 0 {
			return fail(&SelectionError{Reason: "seat quantity must be positive"})
		}
		if !it.SeatClass.Valid() {
			return fail(&SelectionError{Reason: fmt.Sprintf("unknown seat class %q", it.SeatClass)})
		}
		flight, err := s.store.GetFlight(ctx, it.FlightID)
		if err != nil {
			return fail(err)
		}
		if flight == nil {
			return fail(&NotFoundError{Kind: "flight", ID: it.FlightID})
		}
		if err := s.reserve(ctx, out, inventory.ItemFlight, flight.ID, string(it.SeatClass), it.Qty); err != nil {
			return fail(err)
		}
		out.total = flight.PriceFor(it.SeatClass).Mul(decimal.NewFromInt(int64(it.Qty)))

	case HotelItems:
		if it.Rooms <= 0 {
			return fail(&SelectionError{Reason: "room count must be positive"})
		}
		hotel, err := s.store.GetHotel(ctx, it.HotelID)
		if err != nil {
			return fail(err)
		}
		if hotel == nil {
			return fail(&NotFoundError{Kind: "hotel", ID: it.HotelID})
		}
		room := hotel.Room(it.RoomType)
		if room == nil {
			return fail(&NotFoundError{Kind: "room type", ID: it.RoomType})
		}
		if err := s.reserve(ctx, out, inventory.ItemHotel, hotel.ID, it.RoomType, it.Rooms); err != nil {
			return fail(err)
		}
		out.total = room.PricePerNight.Mul(decimal.NewFromInt(int64(it.Rooms)))

	case CustomItems:
		if err := s.priceAndReserveCustom(ctx, out, it); err != nil {
			return fail(err)
		}

	default:
		return fail(fmt.Errorf("unsupported booking items %T", items))
	}

	out.total = out.total.Round(2)
	return out, nil
}

// reserve takes the optional hold, then performs the store-level
// conditional decrement and records the reservation for later release.
func (s *Service) reserve(ctx context.Context, out *pricedReservation, itemType inventory.ItemType, itemID, quantityKind string, qty int) error {
	if s.holds != nil {
		ok, err := s.holds.AcquireHold(ctx, itemType, itemID, quantityKind, s.holdTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire hold: %w", err)
		}
		if !ok {
			return &HoldError{ItemType: itemType, ItemID: itemID, QuantityKind: quantityKind}
		}
		defer func() {
			_ = s.holds.ReleaseHold(ctx, itemType, itemID, quantityKind)
		}()
	}

	if err := s.store.Reserve(ctx, itemType, itemID, quantityKind, qty); err != nil {
		return err
	}
	out.reservations = append(out.reservations, inventory.Reservation{
		ItemType:     itemType,
		ItemID:       itemID,
		QuantityKind: quantityKind,
		Quantity:     qty,
	})
	return nil
}

// releaseAll undoes reservations after a failed creation. Errors are
// ignored: release is clamped at the store and retried on the next
// cancellation path if a unit leaks.
func (s *Service) releaseAll(ctx context.Context, reservations []inventory.Reservation) {
	for _, r := range reservations {
		_ = s.store.Release(ctx, r.ItemType, r.ItemID, r.QuantityKind, r.Quantity)
	}
}

// =============================================================================
// READ
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "booking", ID: id}
	}
	return b, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	return s.store.ListBookingsByUser(ctx, userID)
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel moves the booking to Cancelled and releases its reservations.
// Only the caller that wins the status update performs the release, so a
// second cancel returns InvalidTransitionError without touching counts.
func (s *Service) Cancel(ctx context.Context, id, actor string) (*Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	won, err := s.store.TransitionStatus(ctx, id, []Status{StatusPending, StatusConfirmed}, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &InvalidTransitionError{From: current.Status, To: StatusCancelled}
	}

	s.releaseAll(ctx, b.Reservations)

	_ = s.store.AppendStatusNote(ctx, StatusNote{
		BookingID: id,
		Status:    StatusCancelled,
		Reason:    "cancelled",
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	})

	b, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking_cancelled", b)
	return b, nil
}

// =============================================================================
// ADMIN TRANSITIONS
// =============================================================================

// TransitionStatus applies an admin-driven status change through the
// transition table. The reason is advisory: recording it can fail without
// failing the transition.
func (s *Service) TransitionStatus(ctx context.Context, id string, to Status, reason, actor string) (*Booking, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown status %q", to)
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: b.Status, To: to}
	}

	if to == StatusCancelled {
		return s.Cancel(ctx, id, actor)
	}

	won, err := s.store.TransitionStatus(ctx, id, []Status{b.Status}, to)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &InvalidTransitionError{From: current.Status, To: to}
	}

	_ = s.store.AppendStatusNote(ctx, StatusNote{
		BookingID: id,
		Status:    to,
		Reason:    reason,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	})

	b, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if to == StatusConfirmed {
		s.publish(ctx, "booking_confirmed", b)
	}
	return b, nil
}

func (s *Service) publish(ctx context.Context, eventType string, b *Booking) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, b.ID, Event{
		Type:      eventType,
		BookingID: b.ID,
		UserID:    b.UserID,
		Kind:      b.Kind,
		Status:    b.Status,
		Amount:    b.TotalPrice.StringFixed(2),
		At:        time.Now().UTC(),
	})
}
