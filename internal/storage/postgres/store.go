// Package postgres persists bookings with pgx. Writes are conditional on the
// snapshot the caller read, and every write records a timeline event and an
// audit row in the same transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"giggen/internal/booking"
	"giggen/internal/events"
	"giggen/pkg/db"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const bookingColumns = `
id, sender_id, receiver_id, status,
approved_by_sender, approved_by_receiver, is_public_after_approval,
sender_read_agreement, receiver_read_agreement,
title, description, concept_id, venue, address, starts_at, ends_at,
fee_amount::text, fee_currency, audience_estimate,
contact_name, contact_email, contact_phone, attachments,
archived, cancellation_reason, version, created_at, updated_at,
allowed_at, approved_at, published_at, cancelled_at, rejected_at, deleted_at, completed_at`

func (s *Store) Get(ctx context.Context, id string) (*booking.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) ListByParty(ctx context.Context, userID string) ([]booking.Booking, error) {
	q := `SELECT ` + bookingColumns + `
FROM bookings
WHERE sender_id = $1 OR receiver_id = $1
ORDER BY created_at DESC, id ASC`
	return s.list(ctx, q, userID)
}

func (s *Store) ListPublic(ctx context.Context) ([]booking.Booking, error) {
	q := `SELECT ` + bookingColumns + `
FROM bookings
WHERE status = 'upcoming' AND is_public_after_approval
ORDER BY created_at DESC, id ASC`
	return s.list(ctx, q)
}

func (s *Store) ListDue(ctx context.Context, before time.Time) ([]booking.Booking, error) {
	q := `SELECT ` + bookingColumns + `
FROM bookings
WHERE status = 'upcoming' AND COALESCE(ends_at, starts_at) < $1
ORDER BY COALESCE(ends_at, starts_at) ASC`
	return s.list(ctx, q, before)
}

func (s *Store) Insert(ctx context.Context, b *booking.Booking, c booking.Change) error {
	const q = `
INSERT INTO bookings (
  id, sender_id, receiver_id, created_at,
  status, approved_by_sender, approved_by_receiver, is_public_after_approval,
  sender_read_agreement, receiver_read_agreement,
  title, description, concept_id, venue, address, starts_at, ends_at,
  fee_amount, fee_currency, audience_estimate,
  contact_name, contact_email, contact_phone, attachments,
  archived, cancellation_reason, version, updated_at,
  allowed_at, approved_at, published_at, cancelled_at, rejected_at, deleted_at, completed_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
  $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
  $29, $30, $31, $32, $33, $34, $35
)`
	args := append([]any{b.ID, b.SenderID, b.ReceiverID, b.CreatedAt}, mutable(b)...)

	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return err
		}
		return record(ctx, tx, b.ID, c, true)
	})
	if db.IsUniqueViolation(err) {
		return booking.ErrConcurrentModification
	}
	return err
}

func (s *Store) Update(ctx context.Context, expected booking.Snapshot, next *booking.Booking, c booking.Change) error {
	const q = `
UPDATE bookings SET
  status = $2, approved_by_sender = $3, approved_by_receiver = $4, is_public_after_approval = $5,
  sender_read_agreement = $6, receiver_read_agreement = $7,
  title = $8, description = $9, concept_id = $10, venue = $11, address = $12,
  starts_at = $13, ends_at = $14, fee_amount = $15, fee_currency = $16, audience_estimate = $17,
  contact_name = $18, contact_email = $19, contact_phone = $20, attachments = $21,
  archived = $22, cancellation_reason = $23, version = $24, updated_at = $25,
  allowed_at = $26, approved_at = $27, published_at = $28, cancelled_at = $29,
  rejected_at = $30, deleted_at = $31, completed_at = $32
WHERE id = $1
  AND version = $33 AND status = $34
  AND approved_by_sender = $35 AND approved_by_receiver = $36`

	args := append([]any{next.ID}, mutable(next)...)
	args = append(args, expected.Version, string(expected.Status), expected.ApprovedBySender, expected.ApprovedByReceiver)

	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return missingOrStale(ctx, tx, next.ID)
		}
		return record(ctx, tx, next.ID, c, true)
	})
}

// Delete removes the row; its timeline goes with it, the audit row stays.
func (s *Store) Delete(ctx context.Context, id string, expected booking.Snapshot, c booking.Change) error {
	const q = `
DELETE FROM bookings
WHERE id = $1 AND version = $2 AND status = $3
  AND approved_by_sender = $4 AND approved_by_receiver = $5`

	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, id, expected.Version, string(expected.Status),
			expected.ApprovedBySender, expected.ApprovedByReceiver)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return missingOrStale(ctx, tx, id)
		}
		return record(ctx, tx, id, c, false)
	})
}

func (s *Store) History(ctx context.Context, bookingID string) ([]booking.Change, error) {
	evs, err := events.ListByBooking(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	out := make([]booking.Change, 0, len(evs))
	for _, e := range evs {
		c, err := changeFromEvent(e)
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", e.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) list(ctx context.Context, q string, args ...any) ([]booking.Booking, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []booking.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func missingOrStale(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return booking.ErrBookingNotFound
	}
	return booking.ErrConcurrentModification
}

// mutable lists every column a transition may change, in statement order.
func mutable(b *booking.Booking) []any {
	t := b.Terms
	var (
		feeAmount   decimal.NullDecimal
		feeCurrency *string
	)
	if t.Fee != nil {
		feeAmount = decimal.NewNullDecimal(t.Fee.Amount)
		cur := t.Fee.Currency
		feeCurrency = &cur
	}
	attachments := t.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return []any{
		string(b.Status), b.ApprovedBySender, b.ApprovedByReceiver, b.IsPublicAfterApproval,
		b.SenderReadAgreement, b.ReceiverReadAgreement,
		t.Title, t.Description, t.ConceptID, t.Venue, t.Address, t.StartsAt, t.EndsAt,
		feeAmount, feeCurrency, t.AudienceEstimate,
		t.ContactName, t.ContactEmail, t.ContactPhone, attachments,
		b.Archived, b.CancellationReason, b.Version, b.UpdatedAt,
		b.AllowedAt, b.ApprovedAt, b.PublishedAt, b.CancelledAt, b.RejectedAt, b.DeletedAt, b.CompletedAt,
	}
}

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var (
		b           booking.Booking
		status      string
		feeAmount   *string
		feeCurrency *string
	)
	t := &b.Terms
	err := row.Scan(
		&b.ID, &b.SenderID, &b.ReceiverID, &status,
		&b.ApprovedBySender, &b.ApprovedByReceiver, &b.IsPublicAfterApproval,
		&b.SenderReadAgreement, &b.ReceiverReadAgreement,
		&t.Title, &t.Description, &t.ConceptID, &t.Venue, &t.Address, &t.StartsAt, &t.EndsAt,
		&feeAmount, &feeCurrency, &t.AudienceEstimate,
		&t.ContactName, &t.ContactEmail, &t.ContactPhone, &t.Attachments,
		&b.Archived, &b.CancellationReason, &b.Version, &b.CreatedAt, &b.UpdatedAt,
		&b.AllowedAt, &b.ApprovedAt, &b.PublishedAt, &b.CancelledAt, &b.RejectedAt, &b.DeletedAt, &b.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.Status, err = booking.ParseStatus(status); err != nil {
		return nil, err
	}
	if feeAmount != nil {
		amount, err := decimal.NewFromString(*feeAmount)
		if err != nil {
			return nil, fmt.Errorf("parse fee amount: %w", err)
		}
		t.Fee = &booking.Fee{Amount: amount}
		if feeCurrency != nil {
			t.Fee.Currency = *feeCurrency
		}
	}
	if len(t.Attachments) == 0 {
		t.Attachments = nil
	}
	return &b, nil
}
