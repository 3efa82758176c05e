/*
custom.go - Custom package aggregator

PURPOSE:
  A custom package is a user-assembled bundle of flight, hotel, and
  entertainment references, bookable as one unit. Saving is draft
  semantics: unresolvable or incompatible references are dropped with a
  non-fatal warning and the save succeeds with the resolvable subset.
  Booking is commitment semantics: every selection must resolve and
  reserve, or the whole request fails.

SAVE VALIDATION (warnings, never failures):
  1. Unresolved ids are dropped.
  2. Flights with no seats left are dropped.
  3. Flights are ordered by date and must chain: each leg departs from the
     previous leg's destination. Legs that break the chain are dropped.
  4. Hotels must match the final flight's destination (when flights exist).
  5. Entertainments must match the first hotel's location (when hotels
     exist).

FROZEN ON BOOKING:
  Once a booking references a package, the package may no longer be edited
  or deleted; the booking carries its own selection snapshot regardless.

SEE ALSO:
  - service.go: Create, which custom booking goes through
*/
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/travel-engine/inventory"
)

// =============================================================================
// CUSTOM PACKAGE
// =============================================================================

type CustomPackage struct {
	ID               string
	UserID           string
	FlightIDs        []string
	HotelIDs         []string
	EntertainmentIDs []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SaveResult is what the aggregator returns: the saved package plus any
// warnings about references that were dropped.
type SaveResult struct {
	Package  *CustomPackage
	Warnings []string
}

// =============================================================================
// SAVE / UPDATE / DELETE
// =============================================================================

// SaveCustomPackage resolves the selections, drops what cannot be used
// (with a warning each), and persists the package.
func (s *Service) SaveCustomPackage(ctx context.Context, userID string, flightIDs, hotelIDs, entertainmentIDs []string) (*SaveResult, error) {
	pkg := &CustomPackage{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	warnings, err := s.resolvePackageRefs(ctx, pkg, flightIDs, hotelIDs, entertainmentIDs)
	if err != nil {
		return nil, err
	}

	pkg.UpdatedAt = pkg.CreatedAt
	if err := s.store.SaveCustomPackage(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to save custom package: %w", err)
	}
	return &SaveResult{Package: pkg, Warnings: warnings}, nil
}

// UpdateCustomPackage replaces the reference lists of an unbooked package,
// re-running the same validation as save.
func (s *Service) UpdateCustomPackage(ctx context.Context, id string, flightIDs, hotelIDs, entertainmentIDs []string) (*SaveResult, error) {
	pkg, err := s.getUnbookedPackage(ctx, id)
	if err != nil {
		return nil, err
	}

	warnings, err := s.resolvePackageRefs(ctx, pkg, flightIDs, hotelIDs, entertainmentIDs)
	if err != nil {
		return nil, err
	}

	pkg.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveCustomPackage(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to update custom package: %w", err)
	}
	return &SaveResult{Package: pkg, Warnings: warnings}, nil
}

// DeleteCustomPackage removes an unbooked package.
func (s *Service) DeleteCustomPackage(ctx context.Context, id string) error {
	if _, err := s.getUnbookedPackage(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteCustomPackage(ctx, id)
}

func (s *Service) GetCustomPackage(ctx context.Context, id string) (*CustomPackage, error) {
	pkg, err := s.store.GetCustomPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, &NotFoundError{Kind: "custom package", ID: id}
	}
	return pkg, nil
}

func (s *Service) ListCustomPackagesByUser(ctx context.Context, userID string) ([]CustomPackage, error) {
	return s.store.ListCustomPackagesByUser(ctx, userID)
}

func (s *Service) getUnbookedPackage(ctx context.Context, id string) (*CustomPackage, error) {
	pkg, err := s.GetCustomPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	booked, err := s.store.PackageHasBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booked {
		return nil, ErrPackageBooked
	}
	return pkg, nil
}

// resolvePackageRefs applies the draft validation rules and fills in the
// package's reference lists with whatever survives.
func (s *Service) resolvePackageRefs(ctx context.Context, pkg *CustomPackage, flightIDs, hotelIDs, entertainmentIDs []string) ([]string, error) {
	var warnings []string

	flights, w, err := s.resolveFlights(ctx, flightIDs)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	hotels, w, err := s.resolveHotels(ctx, hotelIDs, flights)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	ents, w, err := s.resolveEntertainments(ctx, entertainmentIDs, hotels)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	pkg.FlightIDs = pkg.FlightIDs[:0]
	for _, f := range flights {
		pkg.FlightIDs = append(pkg.FlightIDs, f.ID)
	}
	pkg.HotelIDs = pkg.HotelIDs[:0]
	for _, h := range hotels {
		pkg.HotelIDs = append(pkg.HotelIDs, h.ID)
	}
	pkg.EntertainmentIDs = pkg.EntertainmentIDs[:0]
	for _, e := range ents {
		pkg.EntertainmentIDs = append(pkg.EntertainmentIDs, e.ID)
	}
	return warnings, nil
}

func (s *Service) resolveFlights(ctx context.Context, ids []string) ([]inventory.Flight, []string, error) {
	var warnings []string
	var candidates []inventory.Flight
	for _, id := range ids {
		f, err := s.store.GetFlight(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if f == nil {
			warnings = append(warnings, fmt.Sprintf("flight %s not found, removed", id))
			continue
		}
		if f.EconomySeats <= 0 && f.BusinessSeats <= 0 {
			warnings = append(warnings, fmt.Sprintf("flight %s has no seats left, removed", f.AirlineName))
			continue
		}
		candidates = append(candidates, *f)
	}
	if len(candidates) == 0 {
		return nil, warnings, nil
	}

	// Order by date, then keep only legs that chain from the previous
	// destination.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Date.Before(candidates[j-1].Date); j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	chain := []inventory.Flight{candidates[0]}
	for _, f := range candidates[1:] {
		prev := chain[len(chain)-1]
		if strings.EqualFold(prev.To, f.From) {
			chain = append(chain, f)
		} else {
			warnings = append(warnings, fmt.Sprintf("flight %s removed: does not depart from %s", f.AirlineName, prev.To))
		}
	}
	return chain, warnings, nil
}

func (s *Service) resolveHotels(ctx context.Context, ids []string, flights []inventory.Flight) ([]inventory.Hotel, []string, error) {
	var warnings []string
	var hotels []inventory.Hotel
	for _, id := range ids {
		h, err := s.store.GetHotel(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if h == nil {
			warnings = append(warnings, fmt.Sprintf("hotel %s not found, removed", id))
			continue
		}
		hotels = append(hotels, *h)
	}
	if len(flights) == 0 || len(hotels) == 0 {
		return hotels, warnings, nil
	}

	dest := flights[len(flights)-1].To
	var matched []inventory.Hotel
	for _, h := range hotels {
		if strings.EqualFold(h.Location, dest) {
			matched = append(matched, h)
		}
	}
	if len(matched) == 0 {
		warnings = append(warnings, fmt.Sprintf("removed all hotels: none match final destination %s", dest))
	} else if len(matched) < len(hotels) {
		warnings = append(warnings, fmt.Sprintf("removed hotels outside final destination %s", dest))
	}
	return matched, warnings, nil
}

func (s *Service) resolveEntertainments(ctx context.Context, ids []string, hotels []inventory.Hotel) ([]inventory.Entertainment, []string, error) {
	var warnings []string
	var ents []inventory.Entertainment
	for _, id := range ids {
		e, err := s.store.GetEntertainment(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			warnings = append(warnings, fmt.Sprintf("entertainment %s not found, removed", id))
			continue
		}
		ents = append(ents, *e)
	}
	if len(hotels) == 0 || len(ents) == 0 {
		return ents, warnings, nil
	}

	loc := hotels[0].Location
	var matched []inventory.Entertainment
	for _, e := range ents {
		if strings.EqualFold(e.Location, loc) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		warnings = append(warnings, fmt.Sprintf("removed all entertainments: none match hotel location %s", loc))
	} else if len(matched) < len(ents) {
		warnings = append(warnings, fmt.Sprintf("removed entertainments outside %s", loc))
	}
	return matched, warnings, nil
}

// =============================================================================
// BOOK DIRECT
// =============================================================================

// BookCustom books a saved package as one unit. The selections supply the
// per-flight seat class/qty and per-hotel room type/count chosen now, not
// at package-save time; pricing follows the selections. Each package
// entertainment takes one slot. Unlike save, this path is fail-fast.
func (s *Service) BookCustom(ctx context.Context, userID, packageID string, flights []FlightSelection, hotels []HotelSelection) (*Booking, error) {
	pkg, err := s.GetCustomPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	if err := coverSelections(pkg.FlightIDs, flights, func(sel FlightSelection) string { return sel.FlightID }, "flight"); err != nil {
		return nil, err
	}
	if err := coverSelections(pkg.HotelIDs, hotels, func(sel HotelSelection) string { return sel.HotelID }, "hotel"); err != nil {
		return nil, err
	}

	items := CustomItems{
		PackageID:        packageID,
		Flights:          flights,
		Hotels:           hotels,
		EntertainmentIDs: append([]string(nil), pkg.EntertainmentIDs...),
	}
	return s.Create(ctx, userID, items)
}

// coverSelections checks that there is exactly one selection per package
// item and none for items outside the package.
func coverSelections[T any](packageIDs []string, selections []T, idOf func(T) string, kind string) error {
	inPackage := make(map[string]bool, len(packageIDs))
	for _, id := range packageIDs {
		inPackage[id] = true
	}
	seen := make(map[string]bool, len(selections))
	for _, sel := range selections {
		id := idOf(sel)
		if !inPackage[id] {
			return &NotFoundError{Kind: kind + " in package", ID: id}
		}
		if seen[id] {
			return &SelectionError{Reason: fmt.Sprintf("duplicate selection for %s %s", kind, id)}
		}
		seen[id] = true
	}
	for _, id := range packageIDs {
		if !seen[id] {
			return &SelectionError{Reason: fmt.Sprintf("missing selection for %s %s", kind, id)}
		}
	}
	return nil
}

// priceAndReserveCustom reserves every selection of a custom booking and
// accumulates the selection-based price. Called from priceAndReserve;
// rollback of partial reservations happens there.
func (s *Service) priceAndReserveCustom(ctx context.Context, out *pricedReservation, items CustomItems) error {
	for _, sel := range items.Flights {
		if sel.Qty <= 0 {
			return &SelectionError{Reason: fmt.Sprintf("seat quantity must be positive for flight %s", sel.FlightID)}
		}
		if !sel.SeatClass.Valid() {
			return &SelectionError{Reason: fmt.Sprintf("unknown seat class %q", sel.SeatClass)}
		}
		f, err := s.store.GetFlight(ctx, sel.FlightID)
		if err != nil {
			return err
		}
		if f == nil {
			return &NotFoundError{Kind: "flight", ID: sel.FlightID}
		}
		if err := s.reserve(ctx, out, inventory.ItemFlight, f.ID, string(sel.SeatClass), sel.Qty); err != nil {
			return err
		}
		out.total = out.total.Add(f.PriceFor(sel.SeatClass).Mul(decimalFromInt(sel.Qty)))
	}

	for _, sel := range items.Hotels {
		if sel.Rooms <= 0 {
			return &SelectionError{Reason: fmt.Sprintf("room count must be positive for hotel %s", sel.HotelID)}
		}
		h, err := s.store.GetHotel(ctx, sel.HotelID)
		if err != nil {
			return err
		}
		if h == nil {
			return &NotFoundError{Kind: "hotel", ID: sel.HotelID}
		}
		room := h.Room(sel.RoomType)
		if room == nil {
			return &NotFoundError{Kind: "room type", ID: sel.RoomType}
		}
		if err := s.reserve(ctx, out, inventory.ItemHotel, h.ID, sel.RoomType, sel.Rooms); err != nil {
			return err
		}
		out.total = out.total.Add(room.PricePerNight.Mul(decimalFromInt(sel.Rooms)))
	}

	for _, id := range items.EntertainmentIDs {
		e, err := s.store.GetEntertainment(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return &NotFoundError{Kind: "entertainment", ID: id}
		}
		if err := s.reserve(ctx, out, inventory.ItemEntertainment, e.ID, "", 1); err != nil {
			return err
		}
		out.total = out.total.Add(e.Price)
	}
	return nil
}
