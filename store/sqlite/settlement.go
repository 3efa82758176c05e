/*
settlement.go - Settlement plan and installment persistence

PURPOSE:
  One plan row per booking (UNIQUE booking_id enforces mode fixation at
  the schema level) plus its installment rows. MarkInstallmentPaid is the
  conditional flip backing idempotent confirmation.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/voyago/travel-engine/settlement"
)

func (s *Store) SavePlan(ctx context.Context, p *settlement.Plan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_plans (id, booking_id, mode, total, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.BookingID, string(p.Mode), p.Total.String(), fmtTime(p.CreatedAt))
	if err != nil {
		return err
	}

	for _, in := range p.Installments {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO installments (id, plan_id, number, amount, status, due_date, invoice_id, paid_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ID, in.PlanID, in.Number, in.Amount.String(), string(in.Status),
			fmtTime(in.DueDate), in.InvoiceID, nullableTime(in.PaidAt))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID string) (*settlement.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, mode, total, created_at
		FROM settlement_plans WHERE id = ?`, planID)
	return s.scanPlan(ctx, row)
}

func (s *Store) GetPlanByBooking(ctx context.Context, bookingID string) (*settlement.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, booking_id, mode, total, created_at
		FROM settlement_plans WHERE booking_id = ?`, bookingID)
	return s.scanPlan(ctx, row)
}

func (s *Store) scanPlan(ctx context.Context, row rowScanner) (*settlement.Plan, error) {
	var p settlement.Plan
	var mode, total, created string
	err := row.Scan(&p.ID, &p.BookingID, &mode, &total, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Mode = settlement.Mode(mode)
	p.Total = parseDecimal(total)
	p.CreatedAt = parseTime(created)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, number, amount, status, due_date, invoice_id, paid_at
		FROM installments WHERE plan_id = ? ORDER BY number`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		in, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		p.Installments = append(p.Installments, *in)
	}
	return &p, rows.Err()
}

func (s *Store) GetInstallment(ctx context.Context, id string) (*settlement.Installment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, number, amount, status, due_date, invoice_id, paid_at
		FROM installments WHERE id = ?`, id)
	return scanInstallment(row)
}

func scanInstallment(row rowScanner) (*settlement.Installment, error) {
	var in settlement.Installment
	var amount, status, due string
	var paid sql.NullString
	err := row.Scan(&in.ID, &in.PlanID, &in.Number, &amount, &status, &due, &in.InvoiceID, &paid)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	in.Amount = parseDecimal(amount)
	in.Status = settlement.InstallmentStatus(status)
	in.DueDate = parseTime(due)
	in.PaidAt = scanNullableTime(paid)
	return &in, nil
}

// MarkInstallmentPaid flips Unpaid -> Paid. A repeat confirmation finds
// no row to update and reports false.
func (s *Store) MarkInstallmentPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE installments SET status = ?, paid_at = ?
		WHERE id = ? AND status = ?`,
		string(settlement.InstallmentPaid), fmtTime(at),
		id, string(settlement.InstallmentUnpaid))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListOverdueInstallments returns unpaid installments whose due date has
// passed, joined with the owning booking. Cancelled bookings are skipped;
// their obligations are moot.
func (s *Store) ListOverdueInstallments(ctx context.Context, before time.Time) ([]settlement.OverdueInstallment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.plan_id, i.number, i.amount, i.status, i.due_date, i.invoice_id, i.paid_at,
			p.booking_id, b.user_id
		FROM installments i
		JOIN settlement_plans p ON p.id = i.plan_id
		JOIN bookings b ON b.id = p.booking_id
		WHERE i.status = ? AND i.due_date < ? AND b.status != 'Cancelled'
		ORDER BY i.due_date`,
		string(settlement.InstallmentUnpaid), fmtTime(before))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overdue []settlement.OverdueInstallment
	for rows.Next() {
		var o settlement.OverdueInstallment
		var amount, status, due string
		var paid sql.NullString
		if err := rows.Scan(&o.ID, &o.PlanID, &o.Number, &amount, &status, &due,
			&o.InvoiceID, &paid, &o.BookingID, &o.UserID); err != nil {
			return nil, err
		}
		o.Amount = parseDecimal(amount)
		o.Status = settlement.InstallmentStatus(status)
		o.DueDate = parseTime(due)
		o.PaidAt = scanNullableTime(paid)
		overdue = append(overdue, o)
	}
	return overdue, rows.Err()
}

var _ settlement.Store = (*Store)(nil)
