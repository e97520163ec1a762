package booking

import (
	"context"
	"time"
)

// Change describes one write for the store's timeline and audit bookkeeping.
type Change struct {
	Action    Action    `json:"action"`
	ActorID   string    `json:"actorId,omitempty"`
	ActorRole Role      `json:"actorRole"`
	From      Status    `json:"from,omitempty"`
	To        Status    `json:"to,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Store is the persistence collaborator. Update and Delete are conditional:
// they must fail with ErrConcurrentModification when the stored record no
// longer matches expected, and with ErrBookingNotFound when it is gone.
type Store interface {
	Get(ctx context.Context, id string) (*Booking, error)
	ListByParty(ctx context.Context, userID string) ([]Booking, error)
	ListPublic(ctx context.Context) ([]Booking, error)
	// ListDue returns upcoming bookings whose event ended before the given time.
	ListDue(ctx context.Context, before time.Time) ([]Booking, error)
	Insert(ctx context.Context, b *Booking, c Change) error
	Update(ctx context.Context, expected Snapshot, next *Booking, c Change) error
	Delete(ctx context.Context, id string, expected Snapshot, c Change) error
}

// HistoryReader is implemented by stores that keep a per-booking timeline.
type HistoryReader interface {
	History(ctx context.Context, bookingID string) ([]Change, error)
}

type Concept struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Title   string `json:"title"`
}

// Directory resolves the profiles and concepts a booking refers to.
type Directory interface {
	ProfileExists(ctx context.Context, userID string) (bool, error)
	LookupConcept(ctx context.Context, conceptID string) (Concept, bool, error)
}

// Notifier is the toast sink. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string) error
}

type ChangePublisher interface {
	PublishChange(ctx context.Context, ev ChangeEvent) error
}

// ChangeSubscriber streams changes matching filter until ctx is done.
type ChangeSubscriber interface {
	Subscribe(ctx context.Context, filter ChangeFilter) (<-chan ChangeEvent, error)
}

// Observer receives a signal for every attempted operation.
type Observer interface {
	Applied(action Action, from, to Status)
	Failed(action Action, err error)
}

type nopObserver struct{}

func (nopObserver) Applied(Action, Status, Status) {}
func (nopObserver) Failed(Action, error)           {}

type nopPublisher struct{}

func (nopPublisher) PublishChange(context.Context, ChangeEvent) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }
