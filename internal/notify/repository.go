package notify

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores notifications in the notifications table.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Notify(ctx context.Context, userID, title, message string) error {
	const q = `
INSERT INTO notifications (user_id, title, message)
VALUES ($1, $2, $3)
`
	_, err := r.db.Exec(ctx, q, userID, title, message)
	return err
}

func (r *Repository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `
SELECT id, user_id, title, message, read_at, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := r.db.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead reports whether a notification owned by userID was updated.
func (r *Repository) MarkRead(ctx context.Context, userID string, id int64) (bool, error) {
	const q = `
UPDATE notifications SET read_at = now()
WHERE id = $1 AND user_id = $2 AND read_at IS NULL
`
	tag, err := r.db.Exec(ctx, q, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
