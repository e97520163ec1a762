package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Manager owns the booking lifecycle. Every operation reads the record,
// runs Apply, and writes the result conditionally on the state it read.
type Manager struct {
	store     Store
	directory Directory
	notifier  Notifier
	changes   ChangePublisher
	observer  Observer
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string
}

type Option func(*Manager)

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

func NewManager(store Store, directory Directory, notifier Notifier, changes ChangePublisher, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		directory: directory,
		notifier:  notifier,
		changes:   changes,
		observer:  nopObserver{},
		log:       logrus.StandardLogger(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.changes == nil {
		m.changes = nopPublisher{}
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	return m
}

// CreateBooking records a new request from sender to receiver in pending.
func (m *Manager) CreateBooking(ctx context.Context, senderID, receiverID string, draft Terms) (*Booking, error) {
	b, err := m.create(ctx, strings.TrimSpace(senderID), strings.TrimSpace(receiverID), draft)
	if err != nil {
		m.observer.Failed(ActionCreate, err)
		return nil, err
	}
	m.observer.Applied(ActionCreate, "", StatusPending)
	return b, nil
}

func (m *Manager) create(ctx context.Context, senderID, receiverID string, draft Terms) (*Booking, error) {
	if senderID == "" || receiverID == "" || senderID == receiverID {
		return nil, ErrInvalidParty
	}

	terms := draft.Clone()
	terms.Title = strings.TrimSpace(terms.Title)
	terms.ConceptID = strings.TrimSpace(terms.ConceptID)
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	ok, err := m.directory.ProfileExists(ctx, senderID)
	if err != nil {
		return nil, persistence("lookup sender", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: sender has no profile", ErrInvalidParty)
	}

	ok, err = m.directory.ProfileExists(ctx, receiverID)
	if err != nil {
		return nil, persistence("lookup receiver", err)
	}
	if !ok {
		return nil, ErrReceiverNotFound
	}

	concept, found, err := m.directory.LookupConcept(ctx, terms.ConceptID)
	if err != nil {
		return nil, persistence("lookup concept", err)
	}
	if !found {
		return nil, termsError("concept not found")
	}
	if concept.OwnerID != senderID && concept.OwnerID != receiverID {
		return nil, termsError("concept does not belong to either party")
	}

	now := m.now()
	b := &Booking{
		ID:         m.newID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     StatusPending,
		Terms:      terms,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c := Change{Action: ActionCreate, ActorID: senderID, ActorRole: RoleSender, To: StatusPending, At: now}
	if err := m.store.Insert(ctx, b, c); err != nil {
		return nil, persistence("insert booking", err)
	}

	m.log.WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"sender_id":   senderID,
		"receiver_id": receiverID,
	}).Info("booking created")

	m.publish(ctx, newChangeEvent(ChangeInsert, b, c, changedFields(&Booking{}, b)))
	m.dispatch(ctx, b, b, c)

	out := b.Clone()
	return &out, nil
}

func (m *Manager) AllowBooking(ctx context.Context, bookingID, actingUserID string) (*Booking, error) {
	return m.transition(ctx, bookingID, actingUserID, Command{Action: ActionAllow})
}

// RejectBooking removes a pending request for good; nothing is archived.
func (m *Manager) RejectBooking(ctx context.Context, bookingID, actingUserID, reason string) error {
	_, err := m.transition(ctx, bookingID, actingUserID, Command{Action: ActionReject, Reason: strings.TrimSpace(reason)})
	return err
}

func (m *Manager) Approve(ctx context.Context, bookingID, actingUserID string) (*Booking, error) {
	return m.transition(ctx, bookingID, actingUserID, Command{Action: ActionApprove})
}

// Publish moves an approved booking to upcoming. makePublic defaults to true.
func (m *Manager) Publish(ctx context.Context, bookingID, actingUserID string, makePublic *bool) (*Booking, error) {
	return m.transition(ctx, bookingID, actingUserID, Command{Action: ActionPublish, MakePublic: makePublic})
}

func (m *Manager) ToggleVisibility(ctx context.Context, bookingID, actingUserID string, makePublic bool) (*Booking, error) {
	return m.transition(ctx, bookingID, actingUserID, Command{Action: ActionSetVisibility, MakePublic: &makePublic})
}

// Cancel archives a negotiated booking with its sensitive terms removed, or
// cancels an upcoming one keeping the record for history.
func (m *Manager) Cancel(ctx context.Context, bookingID, actingUserID, reason string) (*Booking, error) {
	return m.transition(ctx, bookingID, actingUserID, Command{Action: ActionCancel, Reason: strings.TrimSpace(reason)})
}

// Complete is invoked by the system once the event is over.
func (m *Manager) Complete(ctx context.Context, bookingID string) (*Booking, error) {
	return m.apply(ctx, bookingID, "", RoleSystem, Command{Action: ActionComplete})
}

func (m *Manager) UpdateTerms(ctx context.Context, bookingID, actingUserID string, patch TermsPatch) (*Booking, error) {
	return m.transition(ctx, bookingID, actingUserID, Command{Action: ActionEditTerms, Patch: patch})
}

func (m *Manager) MarkAgreementRead(ctx context.Context, bookingID, actingUserID string) (*Booking, error) {
	return m.transition(ctx, bookingID, actingUserID, Command{Action: ActionMarkRead})
}

// Get returns a booking to one of its parties, or to anyone when it is public.
func (m *Manager) Get(ctx context.Context, bookingID, actingUserID string) (*Booking, error) {
	b, err := m.store.Get(ctx, bookingID)
	if err != nil {
		return nil, persistence("get booking", err)
	}
	if !b.IsParty(actingUserID) && !b.IsPublic() {
		return nil, ErrNotAuthorized
	}
	return b, nil
}

// History returns the recorded changes of a booking, oldest first. Only the
// parties may read it.
func (m *Manager) History(ctx context.Context, bookingID, actingUserID string) ([]Change, error) {
	b, err := m.store.Get(ctx, bookingID)
	if err != nil {
		return nil, persistence("get booking", err)
	}
	if !b.IsParty(actingUserID) {
		return nil, ErrNotAuthorized
	}
	hr, ok := m.store.(HistoryReader)
	if !ok {
		return []Change{}, nil
	}
	out, err := hr.History(ctx, bookingID)
	if err != nil {
		return nil, persistence("read booking history", err)
	}
	return out, nil
}

func (m *Manager) ListForUser(ctx context.Context, userID string) ([]Booking, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNotAuthorized
	}
	out, err := m.store.ListByParty(ctx, userID)
	if err != nil {
		return nil, persistence("list bookings", err)
	}
	return out, nil
}

func (m *Manager) ListPublic(ctx context.Context) ([]Booking, error) {
	out, err := m.store.ListPublic(ctx)
	if err != nil {
		return nil, persistence("list public bookings", err)
	}
	return out, nil
}

// CompleteDue completes every upcoming booking whose event ended before now.
// Bookings changed concurrently are skipped; they are picked up next time.
func (m *Manager) CompleteDue(ctx context.Context, now time.Time) ([]Booking, error) {
	due, err := m.store.ListDue(ctx, now)
	if err != nil {
		return nil, persistence("list due bookings", err)
	}

	var (
		completed []Booking
		errs      []error
	)
	for _, b := range due {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		done, err := m.Complete(ctx, b.ID)
		switch {
		case err == nil:
			completed = append(completed, *done)
		case errors.Is(err, ErrConcurrentModification),
			errors.Is(err, ErrInvalidTransition),
			errors.Is(err, ErrBookingNotFound):
			m.log.WithError(err).WithField("booking_id", b.ID).Debug("skipping booking during completion sweep")
		default:
			errs = append(errs, fmt.Errorf("complete %s: %w", b.ID, err))
		}
	}
	return completed, errors.Join(errs...)
}

func (m *Manager) transition(ctx context.Context, bookingID, actingUserID string, cmd Command) (*Booking, error) {
	return m.apply(ctx, bookingID, strings.TrimSpace(actingUserID), RoleNone, cmd)
}

func (m *Manager) apply(ctx context.Context, bookingID, actorID string, role Role, cmd Command) (*Booking, error) {
	b, err := m.applyOnce(ctx, bookingID, actorID, role, cmd)
	if err != nil {
		m.observer.Failed(cmd.Action, err)
		return nil, err
	}
	return b, nil
}

func (m *Manager) applyOnce(ctx context.Context, bookingID, actorID string, role Role, cmd Command) (*Booking, error) {
	cur, err := m.store.Get(ctx, bookingID)
	if err != nil {
		return nil, persistence("get booking", err)
	}

	if role == RoleNone {
		role = cur.RoleOf(actorID)
	}
	cmd.Actor = role

	now := m.now()
	out, err := Apply(*cur, cmd, now)
	if err != nil {
		return nil, err
	}
	if out.NoOp {
		return cur, nil
	}

	next := out.Booking
	c := Change{
		Action:    cmd.Action,
		ActorID:   actorID,
		ActorRole: role,
		From:      cur.Status,
		To:        next.Status,
		Reason:    cmd.Reason,
		At:        now,
	}

	logger := m.log.WithFields(logrus.Fields{
		"booking_id": cur.ID,
		"action":     cmd.Action.Key(),
		"actor":      string(role),
		"from":       string(cur.Status),
	})

	if out.Delete {
		if err := m.store.Delete(ctx, cur.ID, cur.Snapshot(), c); err != nil {
			return nil, persistence("delete booking", err)
		}
		logger.Info("booking deleted")
		m.observer.Applied(cmd.Action, cur.Status, "")
		m.publish(ctx, newChangeEvent(ChangeDelete, &next, c, map[string]any{"rejectedAt": next.RejectedAt}))
		m.dispatch(ctx, cur, &next, c)
		return nil, nil
	}

	if err := m.store.Update(ctx, cur.Snapshot(), &next, c); err != nil {
		return nil, persistence("update booking", err)
	}
	logger.WithField("to", string(next.Status)).Info("booking updated")
	m.observer.Applied(cmd.Action, cur.Status, next.Status)
	m.publish(ctx, newChangeEvent(ChangeUpdate, &next, c, changedFields(cur, &next)))
	m.dispatch(ctx, cur, &next, c)

	return &next, nil
}

func (m *Manager) publish(ctx context.Context, ev ChangeEvent) {
	if err := m.changes.PublishChange(ctx, ev); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"booking_id": ev.BookingID,
			"kind":       string(ev.Kind),
		}).Warn("failed to publish booking change")
	}
}
