package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"giggen/internal/booking"
)

// Repository reads profiles and concepts. It serves as the booking directory.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Upsert(ctx context.Context, id, displayName, role string) (*Profile, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("unknown profile role %q", role)
	}
	const q = `
INSERT INTO profiles (id, display_name, role)
VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'maker'))
ON CONFLICT (id) DO UPDATE SET
  display_name = EXCLUDED.display_name,
  role = EXCLUDED.role
RETURNING id, display_name, role, created_at
`
	p := &Profile{}
	if err := r.db.QueryRow(ctx, q, id, displayName, role).Scan(
		&p.ID, &p.DisplayName, &p.Role, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) UpsertConcept(ctx context.Context, c booking.Concept) error {
	const q = `
INSERT INTO concepts (id, owner_id, title)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
  owner_id = EXCLUDED.owner_id,
  title = EXCLUDED.title
`
	_, err := r.db.Exec(ctx, q, c.ID, c.OwnerID, c.Title)
	return err
}

func (r *Repository) ProfileExists(ctx context.Context, userID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`
	var ok bool
	if err := r.db.QueryRow(ctx, q, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *Repository) LookupConcept(ctx context.Context, conceptID string) (booking.Concept, bool, error) {
	const q = `
SELECT id, owner_id, title
FROM concepts
WHERE id = $1
`
	var c booking.Concept
	if err := r.db.QueryRow(ctx, q, conceptID).Scan(&c.ID, &c.OwnerID, &c.Title); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Concept{}, false, nil
		}
		return booking.Concept{}, false, err
	}
	return c, true, nil
}
