package booking

import (
	"reflect"
	"time"
)

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is broadcast to subscribers after every successful write.
type ChangeEvent struct {
	Kind       ChangeKind     `json:"kind"`
	BookingID  string         `json:"bookingId"`
	SenderID   string         `json:"senderId"`
	ReceiverID string         `json:"receiverId"`
	Status     Status         `json:"status"`
	Version    int64          `json:"version"`
	Action     Action         `json:"action"`
	ActorID    string         `json:"actorId,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Involves reports whether userID is a party to the changed booking.
func (e ChangeEvent) Involves(userID string) bool {
	return userID != "" && (e.SenderID == userID || e.ReceiverID == userID)
}

// ChangeFilter scopes a subscription. Empty fields match everything.
type ChangeFilter struct {
	BookingID  string
	UserID     string
	ReceiverID string
}

func (f ChangeFilter) Match(ev ChangeEvent) bool {
	if f.BookingID != "" && ev.BookingID != f.BookingID {
		return false
	}
	if f.UserID != "" && !ev.Involves(f.UserID) {
		return false
	}
	if f.ReceiverID != "" && ev.ReceiverID != f.ReceiverID {
		return false
	}
	return true
}

func newChangeEvent(kind ChangeKind, b *Booking, c Change, fields map[string]any) ChangeEvent {
	return ChangeEvent{
		Kind:       kind,
		BookingID:  b.ID,
		SenderID:   b.SenderID,
		ReceiverID: b.ReceiverID,
		Status:     b.Status,
		Version:    b.Version,
		Action:     c.Action,
		ActorID:    c.ActorID,
		Fields:     fields,
		OccurredAt: c.At,
	}
}

// changedFields lists the fields that differ between prev and next, keyed by
// their JSON names.
func changedFields(prev, next *Booking) map[string]any {
	out := map[string]any{}
	add := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out[name] = b
		}
	}
	add("status", prev.Status, next.Status)
	add("approvedBySender", prev.ApprovedBySender, next.ApprovedBySender)
	add("approvedByReceiver", prev.ApprovedByReceiver, next.ApprovedByReceiver)
	add("isPublicAfterApproval", prev.IsPublicAfterApproval, next.IsPublicAfterApproval)
	add("senderReadAgreement", prev.SenderReadAgreement, next.SenderReadAgreement)
	add("receiverReadAgreement", prev.ReceiverReadAgreement, next.ReceiverReadAgreement)
	add("terms", prev.Terms, next.Terms)
	add("archived", prev.Archived, next.Archived)
	add("cancellationReason", prev.CancellationReason, next.CancellationReason)
	add("allowedAt", prev.AllowedAt, next.AllowedAt)
	add("approvedAt", prev.ApprovedAt, next.ApprovedAt)
	add("publishedAt", prev.PublishedAt, next.PublishedAt)
	add("cancelledAt", prev.CancelledAt, next.CancelledAt)
	add("rejectedAt", prev.RejectedAt, next.RejectedAt)
	add("deletedAt", prev.DeletedAt, next.DeletedAt)
	add("completedAt", prev.CompletedAt, next.CompletedAt)
	out["version"] = next.Version
	out["updatedAt"] = next.UpdatedAt
	return out
}
