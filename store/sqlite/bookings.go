/*
bookings.go - Booking, custom package, and refund persistence

PURPOSE:
  Booking rows carry the kind-tagged items snapshot, the reservation list,
  and the refund fields. All state flips (status, payment status, refund
  status) are conditional UPDATEs; callers learn from the returned bool
  whether they performed the flip.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
	"github.com/voyago/travel-engine/refund"
)

// =============================================================================
// BOOKINGS
// =============================================================================

func (s *Store) SaveBooking(ctx context.Context, b *booking.Booking) error {
	itemsJSON, err := json.Marshal(b.Items)
	if err != nil {
		return fmt.Errorf("failed to encode booking items: %w", err)
	}
	resJSON, err := json.Marshal(b.Reservations)
	if err != nil {
		return fmt.Errorf("failed to encode reservations: %w", err)
	}

	// custom_package_id backs the frozen-package check; only custom
	// bookings carry one.
	var packageID any
	if ci, ok := b.Items.(booking.CustomItems); ok {
		packageID = ci.PackageID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, user_id, kind, items_json, custom_package_id,
			total_price, status, payment_status, refund_status, refund_amount,
			refund_reason, reservations_json, confirmed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payment_status = excluded.payment_status,
			refund_status = excluded.refund_status,
			refund_amount = excluded.refund_amount,
			refund_reason = excluded.refund_reason,
			updated_at = excluded.updated_at`,
		b.ID, b.UserID, string(b.Kind), string(itemsJSON), packageID,
		b.TotalPrice.String(), string(b.Status), string(b.PaymentStatus),
		string(b.RefundStatus), b.RefundAmount.String(), b.RefundReason,
		string(resJSON), nullableTime(b.ConfirmedAt),
		fmtTime(b.CreatedAt), fmtTime(b.UpdatedAt))
	return err
}

const bookingColumns = `id, user_id, kind, items_json, total_price, status,
	payment_status, refund_status, refund_amount, refund_reason,
	reservations_json, confirmed_at, created_at, updated_at`

func (s *Store) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

func (s *Store) ListBookingsByUser(ctx context.Context, userID string) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var b booking.Booking
	var kind, itemsJSON, price, status, payStatus, refStatus, refAmount, resJSON, created, updated string
	var confirmed sql.NullString
	err := row.Scan(&b.ID, &b.UserID, &kind, &itemsJSON, &price, &status,
		&payStatus, &refStatus, &refAmount, &b.RefundReason,
		&resJSON, &confirmed, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.Kind = booking.Kind(kind)
	b.Items, err = decodeItems(b.Kind, itemsJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resJSON), &b.Reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	b.TotalPrice = parseDecimal(price)
	b.Status = booking.Status(status)
	b.PaymentStatus = booking.PaymentStatus(payStatus)
	b.RefundStatus = booking.RefundStatus(refStatus)
	b.RefundAmount = parseDecimal(refAmount)
	b.ConfirmedAt = scanNullableTime(confirmed)
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	return &b, nil
}

// decodeItems restores the tagged union from the kind column.
func decodeItems(kind booking.Kind, raw string) (booking.Items, error) {
	switch kind {
	case booking.KindTourPackage:
		var it booking.TourItems
		return it, json.Unmarshal([]byte(raw), &it)
	case booking.KindFlight:
		var it booking.FlightItems
		return it, json.Unmarshal([]byte(raw), &it)
	case booking.KindHotel:
		var it booking.HotelItems
		return it, json.Unmarshal([]byte(raw), &it)
	case booking.KindCustom:
		var it booking.CustomItems
		return it, json.Unmarshal([]byte(raw), &it)
	}
	return nil, fmt.Errorf("unknown booking kind %q", kind)
}

// TransitionStatus is the status CAS. The booking moves to `to` only when
// its current status is in `from`; first arrival at Confirmed also stamps
// confirmed_at.
func (s *Store) TransitionStatus(ctx context.Context, id string, from []booking.Status, to booking.Status) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition requires at least one source status")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	now := fmtTime(time.Now())

	args := []any{string(to)}
	if to == booking.StatusConfirmed {
		args = append(args, now)
	}
	args = append(args, now, id)
	for _, f := range from {
		args = append(args, string(f))
	}

	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status IN (` + placeholders + `)`
	if to == booking.StatusConfirmed {
		query = `UPDATE bookings SET status = ?, confirmed_at = COALESCE(confirmed_at, ?), updated_at = ?
			WHERE id = ? AND status IN (` + placeholders + `)`
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) AppendStatusNote(ctx context.Context, note booking.StatusNote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_status_notes (booking_id, status, reason, actor, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		note.BookingID, string(note.Status), note.Reason, note.Actor, fmtTime(note.CreatedAt))
	return err
}

// ConfirmBookingPaid flips Pending -> Confirmed for the settlement path.
func (s *Store) ConfirmBookingPaid(ctx context.Context, bookingID string) (bool, error) {
	return s.TransitionStatus(ctx, bookingID, []booking.Status{booking.StatusPending}, booking.StatusConfirmed)
}

// SetPaymentStatus updates the tracked payment status. Cancelled bookings
// are left untouched so a late confirmation cannot mark them paid.
func (s *Store) SetPaymentStatus(ctx context.Context, bookingID string, ps booking.PaymentStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET payment_status = ?, updated_at = ?
		WHERE id = ? AND status != ?`,
		string(ps), fmtTime(time.Now()), bookingID, string(booking.StatusCancelled))
	return err
}

// =============================================================================
// REFUND UPDATES
// =============================================================================

// RequestRefund flips refund status none -> requested and freezes the
// amount and reason in the same statement.
func (s *Store) RequestRefund(ctx context.Context, bookingID string, amount string, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET refund_status = ?, refund_amount = ?, refund_reason = ?, updated_at = ?
		WHERE id = ? AND refund_status = ?`,
		string(booking.RefundRequested), amount, reason, fmtTime(time.Now()),
		bookingID, string(booking.RefundNone))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateRefundStatus flips from -> to without touching the frozen amount.
func (s *Store) UpdateRefundStatus(ctx context.Context, bookingID string, from, to booking.RefundStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET refund_status = ?, updated_at = ?
		WHERE id = ? AND refund_status = ?`,
		string(to), fmtTime(time.Now()), bookingID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// =============================================================================
// CUSTOM PACKAGES
// =============================================================================

func (s *Store) SaveCustomPackage(ctx context.Context, p *booking.CustomPackage) error {
	flights, err := json.Marshal(emptyIfNil(p.FlightIDs))
	if err != nil {
		return err
	}
	hotels, err := json.Marshal(emptyIfNil(p.HotelIDs))
	if err != nil {
		return err
	}
	ents, err := json.Marshal(emptyIfNil(p.EntertainmentIDs))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO custom_packages (id, user_id, flights_json, hotels_json,
			entertainments_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			flights_json = excluded.flights_json,
			hotels_json = excluded.hotels_json,
			entertainments_json = excluded.entertainments_json,
			updated_at = excluded.updated_at`,
		p.ID, p.UserID, string(flights), string(hotels), string(ents),
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	return err
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (s *Store) GetCustomPackage(ctx context.Context, id string) (*booking.CustomPackage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, flights_json, hotels_json, entertainments_json, created_at, updated_at
		FROM custom_packages WHERE id = ?`, id)
	return scanCustomPackage(row)
}

func (s *Store) ListCustomPackagesByUser(ctx context.Context, userID string) ([]booking.CustomPackage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, flights_json, hotels_json, entertainments_json, created_at, updated_at
		FROM custom_packages WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pkgs []booking.CustomPackage
	for rows.Next() {
		p, err := scanCustomPackage(rows)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, *p)
	}
	return pkgs, rows.Err()
}

func scanCustomPackage(row rowScanner) (*booking.CustomPackage, error) {
	var p booking.CustomPackage
	var flights, hotels, ents, created, updated string
	err := row.Scan(&p.ID, &p.UserID, &flights, &hotels, &ents, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(flights), &p.FlightIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hotels), &p.HotelIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ents), &p.EntertainmentIDs); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func (s *Store) DeleteCustomPackage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM custom_packages WHERE id = ?`, id)
	return err
}

// PackageHasBooking reports whether any booking references the package.
// Cancelled bookings still count: the package stays frozen.
func (s *Store) PackageHasBooking(ctx context.Context, packageID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM bookings WHERE custom_package_id = ?`, packageID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// compile-time interface checks live here, next to the widest surface
var (
	_ booking.Store           = (*Store)(nil)
	_ inventory.CapacityGuard = (*Store)(nil)
	_ refund.Store            = (*Store)(nil)
)
