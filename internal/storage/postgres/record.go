package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"giggen/internal/audit"
	"giggen/internal/booking"
	"giggen/internal/events"
)

// record writes the audit row and, unless the booking is gone, a timeline event.
func record(ctx context.Context, tx pgx.Tx, bookingID string, c booking.Change, timeline bool) error {
	actor := c.ActorID
	if actor == "" {
		actor = string(c.ActorRole)
	}
	if timeline {
		if err := events.Insert(ctx, tx, bookingID, eventType(c.Action), summary(c), actor, c.At, c); err != nil {
			return err
		}
	}
	return audit.Insert(ctx, tx, bookingID, eventType(c.Action), actor, map[string]any{
		"role":   c.ActorRole,
		"from":   c.From,
		"to":     c.To,
		"reason": c.Reason,
	})
}

func eventType(a booking.Action) string {
	return "booking." + a.Key()
}

func summary(c booking.Change) string {
	switch {
	case c.Action == booking.ActionCreate:
		return "Booking requested"
	case c.From == c.To:
		return fmt.Sprintf("%s: %s", c.Action, c.To.Label())
	default:
		return fmt.Sprintf("%s: %s -> %s", c.Action, c.From.Label(), c.To.Label())
	}
}

func changeFromEvent(e events.Event) (booking.Change, error) {
	var c booking.Change
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &c); err != nil {
			return booking.Change{}, err
		}
	}
	if c.At.IsZero() {
		c.At = e.OccurredAt
	}
	return c, nil
}
