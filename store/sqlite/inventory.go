/*
inventory.go - Inventory item persistence and the CapacityGuard

PURPOSE:
  CRUD for the four item families plus the atomic reserve/release used by
  every booking path. Reserve is one conditional UPDATE per sub-counter:
  the decrement happens only when the current count covers the request,
  so concurrent last-unit attempts race at the database and exactly one
  wins. Release clamps at the recorded total.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
)

// =============================================================================
// CAPACITY GUARD
// =============================================================================

// Reserve atomically checks and decrements the requested sub-counter.
func (s *Store) Reserve(ctx context.Context, itemType inventory.ItemType, itemID, quantityKind string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", qty)
	}

	var res sql.Result
	var err error
	now := fmtTime(time.Now())

	switch itemType {
	case inventory.ItemFlight:
		col, colErr := seatColumn(quantityKind)
		if colErr != nil {
			return colErr
		}
		res, err = s.db.ExecContext(ctx, fmt.Sprintf(
			`UPDATE flights SET %[1]s = %[1]s - ?, updated_at = ? WHERE id = ? AND %[1]s >= ?`, col),
			qty, now, itemID, qty)

	case inventory.ItemHotel:
		res, err = s.db.ExecContext(ctx,
			`UPDATE hotel_rooms SET count = count - ? WHERE hotel_id = ? AND name = ? AND count >= ?`,
			qty, itemID, quantityKind, qty)
		if err == nil {
			if n, _ := res.RowsAffected(); n > 0 {
				// Keep the hotel-level aggregate in step; the room row is
				// the guarding counter.
				_, err = s.db.ExecContext(ctx,
					`UPDATE hotels SET rooms_available = rooms_available - ?, updated_at = ? WHERE id = ?`,
					qty, now, itemID)
			}
		}

	case inventory.ItemEntertainment:
		res, err = s.db.ExecContext(ctx,
			`UPDATE entertainments SET slots = slots - ?, updated_at = ? WHERE id = ? AND slots >= ?`,
			qty, now, itemID, qty)

	case inventory.ItemTourPackage:
		res, err = s.db.ExecContext(ctx,
			`UPDATE tour_packages SET availability = availability - ?, updated_at = ? WHERE id = ? AND availability >= ?`,
			qty, now, itemID, qty)

	default:
		return fmt.Errorf("unknown item type %q", itemType)
	}
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		exists, err := s.itemExists(ctx, itemType, itemID, quantityKind)
		if err != nil {
			return err
		}
		if !exists {
			return &booking.NotFoundError{Kind: string(itemType), ID: itemID}
		}
		return &booking.CapacityError{ItemType: itemType, ItemID: itemID, QuantityKind: quantityKind, Requested: qty}
	}
	return nil
}

// Release increments the sub-counter back, clamped at its original total.
func (s *Store) Release(ctx context.Context, itemType inventory.ItemType, itemID, quantityKind string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release quantity must be positive, got %d", qty)
	}

	now := fmtTime(time.Now())
	var err error

	switch itemType {
	case inventory.ItemFlight:
		col, colErr := seatColumn(quantityKind)
		if colErr != nil {
			return colErr
		}
		total := "economy_total"
		if col == "business_seats" {
			total = "business_total"
		}
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(
			`UPDATE flights SET %[1]s = min(%[2]s, %[1]s + ?), updated_at = ? WHERE id = ?`,
			col, total),
			qty, now, itemID)

	case inventory.ItemHotel:
		_, err = s.db.ExecContext(ctx,
			`UPDATE hotel_rooms SET count = min(total, count + ?) WHERE hotel_id = ? AND name = ?`,
			qty, itemID, quantityKind)
		if err == nil {
			_, err = s.db.ExecContext(ctx,
				`UPDATE hotels SET rooms_available = min(rooms_total, rooms_available + ?), updated_at = ? WHERE id = ?`,
				qty, now, itemID)
		}

	case inventory.ItemEntertainment:
		_, err = s.db.ExecContext(ctx,
			`UPDATE entertainments SET slots = min(slots_total, slots + ?), updated_at = ? WHERE id = ?`,
			qty, now, itemID)

	case inventory.ItemTourPackage:
		_, err = s.db.ExecContext(ctx,
			`UPDATE tour_packages SET availability = min(max_capacity, availability + ?), updated_at = ? WHERE id = ?`,
			qty, now, itemID)

	default:
		return fmt.Errorf("unknown item type %q", itemType)
	}
	return err
}

func seatColumn(quantityKind string) (string, error) {
	switch inventory.SeatClass(quantityKind) {
	case inventory.SeatEconomy:
		return "economy_seats", nil
	case inventory.SeatBusiness:
		return "business_seats", nil
	}
	return "", fmt.Errorf("unknown seat class %q", quantityKind)
}

func (s *Store) itemExists(ctx context.Context, itemType inventory.ItemType, itemID, quantityKind string) (bool, error) {
	var query string
	args := []any{itemID}
	switch itemType {
	case inventory.ItemFlight:
		query = `SELECT COUNT(1) FROM flights WHERE id = ?`
	case inventory.ItemHotel:
		query = `SELECT COUNT(1) FROM hotel_rooms WHERE hotel_id = ? AND name = ?`
		args = append(args, quantityKind)
	case inventory.ItemEntertainment:
		query = `SELECT COUNT(1) FROM entertainments WHERE id = ?`
	case inventory.ItemTourPackage:
		query = `SELECT COUNT(1) FROM tour_packages WHERE id = ?`
	default:
		return false, fmt.Errorf("unknown item type %q", itemType)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// FLIGHTS
// =============================================================================

func (s *Store) SaveFlight(ctx context.Context, f inventory.Flight) error {
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flights (id, airline_name, from_city, to_city, date,
			economy_price, business_price, economy_seats, business_seats,
			economy_total, business_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			airline_name = excluded.airline_name,
			from_city = excluded.from_city,
			to_city = excluded.to_city,
			date = excluded.date,
			economy_price = excluded.economy_price,
			business_price = excluded.business_price,
			economy_seats = excluded.economy_seats,
			business_seats = excluded.business_seats,
			economy_total = excluded.economy_total,
			business_total = excluded.business_total,
			updated_at = excluded.updated_at`,
		f.ID, f.AirlineName, f.From, f.To, fmtTime(f.Date),
		f.EconomyPrice.String(), f.BusinessPrice.String(),
		f.EconomySeats, f.BusinessSeats, f.EconomyTotal, f.BusinessTotal,
		fmtTime(f.CreatedAt), fmtTime(now))
	return err
}

func (s *Store) GetFlight(ctx context.Context, id string) (*inventory.Flight, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, airline_name, from_city, to_city, date,
			economy_price, business_price, economy_seats, business_seats,
			economy_total, business_total, created_at, updated_at
		FROM flights WHERE id = ?`, id)
	return scanFlight(row)
}

func (s *Store) ListFlights(ctx context.Context) ([]inventory.Flight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, airline_name, from_city, to_city, date,
			economy_price, business_price, economy_seats, business_seats,
			economy_total, business_total, created_at, updated_at
		FROM flights ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flights []inventory.Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlight(row rowScanner) (*inventory.Flight, error) {
	var f inventory.Flight
	var date, ecoPrice, busPrice, created, updated string
	err := row.Scan(&f.ID, &f.AirlineName, &f.From, &f.To, &date,
		&ecoPrice, &busPrice, &f.EconomySeats, &f.BusinessSeats,
		&f.EconomyTotal, &f.BusinessTotal, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.Date = parseTime(date)
	f.EconomyPrice = parseDecimal(ecoPrice)
	f.BusinessPrice = parseDecimal(busPrice)
	f.CreatedAt = parseTime(created)
	f.UpdatedAt = parseTime(updated)
	return &f, nil
}

// =============================================================================
// HOTELS
// =============================================================================

func (s *Store) SaveHotel(ctx context.Context, h inventory.Hotel) error {
	now := time.Now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hotels (id, name, location, price_per_night,
			rooms_available, rooms_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			price_per_night = excluded.price_per_night,
			rooms_available = excluded.rooms_available,
			rooms_total = excluded.rooms_total,
			updated_at = excluded.updated_at`,
		h.ID, h.Name, h.Location, h.PricePerNight.String(),
		h.RoomsAvailable, h.RoomsTotal, fmtTime(h.CreatedAt), fmtTime(now))
	if err != nil {
		return err
	}

	for _, r := range h.RoomTypes {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO hotel_rooms (hotel_id, name, price_per_night, count, total)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(hotel_id, name) DO UPDATE SET
				price_per_night = excluded.price_per_night,
				count = excluded.count,
				total = excluded.total`,
			h.ID, r.Name, r.PricePerNight.String(), r.Count, r.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetHotel(ctx context.Context, id string) (*inventory.Hotel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, price_per_night, rooms_available,
			rooms_total, created_at, updated_at
		FROM hotels WHERE id = ?`, id)

	var h inventory.Hotel
	var price, created, updated string
	err := row.Scan(&h.ID, &h.Name, &h.Location, &price,
		&h.RoomsAvailable, &h.RoomsTotal, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.PricePerNight = parseDecimal(price)
	h.CreatedAt = parseTime(created)
	h.UpdatedAt = parseTime(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, price_per_night, count, total
		FROM hotel_rooms WHERE hotel_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r inventory.RoomType
		var roomPrice string
		if err := rows.Scan(&r.Name, &roomPrice, &r.Count, &r.Total); err != nil {
			return nil, err
		}
		r.PricePerNight = parseDecimal(roomPrice)
		h.RoomTypes = append(h.RoomTypes, r)
	}
	return &h, rows.Err()
}

func (s *Store) ListHotels(ctx context.Context) ([]inventory.Hotel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM hotels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var hotels []inventory.Hotel
	for _, id := range ids {
		h, err := s.GetHotel(ctx, id)
		if err != nil {
			return nil, err
		}
		if h != nil {
			hotels = append(hotels, *h)
		}
	}
	return hotels, nil
}

// =============================================================================
// ENTERTAINMENTS
// =============================================================================

func (s *Store) SaveEntertainment(ctx context.Context, e inventory.Entertainment) error {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entertainments (id, name, location, price, slots, slots_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			price = excluded.price,
			slots = excluded.slots,
			slots_total = excluded.slots_total,
			updated_at = excluded.updated_at`,
		e.ID, e.Name, e.Location, e.Price.String(), e.Slots, e.SlotsTotal,
		fmtTime(e.CreatedAt), fmtTime(now))
	return err
}

func (s *Store) GetEntertainment(ctx context.Context, id string) (*inventory.Entertainment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, price, slots, slots_total, created_at, updated_at
		FROM entertainments WHERE id = ?`, id)

	var e inventory.Entertainment
	var price, created, updated string
	err := row.Scan(&e.ID, &e.Name, &e.Location, &price, &e.Slots, &e.SlotsTotal, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Price = parseDecimal(price)
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

func (s *Store) ListEntertainments(ctx context.Context) ([]inventory.Entertainment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, location, price, slots, slots_total, created_at, updated_at
		FROM entertainments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ents []inventory.Entertainment
	for rows.Next() {
		var e inventory.Entertainment
		var price, created, updated string
		if err := rows.Scan(&e.ID, &e.Name, &e.Location, &price, &e.Slots, &e.SlotsTotal, &created, &updated); err != nil {
			return nil, err
		}
		e.Price = parseDecimal(price)
		e.CreatedAt = parseTime(created)
		e.UpdatedAt = parseTime(updated)
		ents = append(ents, e)
	}
	return ents, rows.Err()
}

// =============================================================================
// TOUR PACKAGES
// =============================================================================

func (s *Store) SaveTourPackage(ctx context.Context, t inventory.TourPackage) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tour_packages (id, title, location, duration, price,
			availability, max_capacity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			location = excluded.location,
			duration = excluded.duration,
			price = excluded.price,
			availability = excluded.availability,
			max_capacity = excluded.max_capacity,
			updated_at = excluded.updated_at`,
		t.ID, t.Title, t.Location, t.Duration, t.Price.String(),
		t.Availability, t.MaxCapacity, fmtTime(t.CreatedAt), fmtTime(now))
	return err
}

func (s *Store) GetTourPackage(ctx context.Context, id string) (*inventory.TourPackage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, location, duration, price, availability, max_capacity, created_at, updated_at
		FROM tour_packages WHERE id = ?`, id)

	var t inventory.TourPackage
	var price, created, updated string
	err := row.Scan(&t.ID, &t.Title, &t.Location, &t.Duration, &price,
		&t.Availability, &t.MaxCapacity, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Price = parseDecimal(price)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}

func (s *Store) ListTourPackages(ctx context.Context) ([]inventory.TourPackage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, location, duration, price, availability, max_capacity, created_at, updated_at
		FROM tour_packages ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tours []inventory.TourPackage
	for rows.Next() {
		var t inventory.TourPackage
		var price, created, updated string
		if err := rows.Scan(&t.ID, &t.Title, &t.Location, &t.Duration, &price,
			&t.Availability, &t.MaxCapacity, &created, &updated); err != nil {
			return nil, err
		}
		t.Price = parseDecimal(price)
		t.CreatedAt = parseTime(created)
		t.UpdatedAt = parseTime(updated)
		tours = append(tours, t)
	}
	return tours, rows.Err()
}
