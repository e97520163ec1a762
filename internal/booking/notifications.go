package booking

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

type notification struct {
	UserID  string
	Title   string
	Message string
}

// notificationsFor decides who hears about a write and what they read.
// Read receipts are silent.
func notificationsFor(prev, next *Booking, c Change) []notification {
	title := next.Terms.Title
	if title == "" {
		title = prev.Terms.Title
	}
	other := next.Counterparty(c.ActorRole)

	switch c.Action {
	case ActionCreate:
		return []notification{{
			UserID:  next.ReceiverID,
			Title:   "New booking request",
			Message: fmt.Sprintf("You have a new booking request: %q.", title),
		}}
	case ActionAllow:
		return []notification{{
			UserID:  next.SenderID,
			Title:   "Booking request accepted",
			Message: fmt.Sprintf("Your request %q was accepted. You can now negotiate the agreement.", title),
		}}
	case ActionReject:
		msg := fmt.Sprintf("Your request %q was declined.", title)
		if c.Reason != "" {
			msg = fmt.Sprintf("Your request %q was declined: %s", title, c.Reason)
		}
		return []notification{{UserID: next.SenderID, Title: "Booking request declined", Message: msg}}
	case ActionApprove:
		if next.Status == StatusApprovedByBoth {
			return []notification{{
				UserID:  other,
				Title:   "Agreement approved by both",
				Message: fmt.Sprintf("Both parties approved %q. It can now be published.", title),
			}}
		}
		return []notification{{
			UserID:  other,
			Title:   "Agreement approved",
			Message: fmt.Sprintf("The %s approved %q and is waiting for your approval.", c.ActorRole, title),
		}}
	case ActionPublish:
		return []notification{{
			UserID:  other,
			Title:   "Booking confirmed",
			Message: fmt.Sprintf("%q is now upcoming.", title),
		}}
	case ActionSetVisibility:
		visibility := "private"
		if next.IsPublicAfterApproval {
			visibility = "public"
		}
		return []notification{{
			UserID:  other,
			Title:   "Visibility changed",
			Message: fmt.Sprintf("%q is now %s.", title, visibility),
		}}
	case ActionCancel:
		msg := fmt.Sprintf("%q was cancelled.", title)
		if c.Reason != "" {
			msg = fmt.Sprintf("%q was cancelled: %s", title, c.Reason)
		}
		return []notification{{UserID: other, Title: "Booking cancelled", Message: msg}}
	case ActionComplete:
		msg := fmt.Sprintf("%q has taken place.", title)
		return []notification{
			{UserID: next.SenderID, Title: "Booking completed", Message: msg},
			{UserID: next.ReceiverID, Title: "Booking completed", Message: msg},
		}
	case ActionEditTerms:
		msg := fmt.Sprintf("The terms of %q were changed.", title)
		if prev.Status != next.Status {
			msg += " Approvals were reset."
		}
		return []notification{{UserID: other, Title: "Agreement updated", Message: msg}}
	default:
		return nil
	}
}

// dispatch hands notifications to the sink. Sink failures are logged and
// never reach the caller of the transition.
func (m *Manager) dispatch(ctx context.Context, prev, next *Booking, c Change) {
	for _, n := range notificationsFor(prev, next, c) {
		if n.UserID == "" {
			continue
		}
		m.notifyOne(ctx, next.ID, n)
	}
}

func (m *Manager) notifyOne(ctx context.Context, bookingID string, n notification) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(logrus.Fields{"booking_id": bookingID, "user_id": n.UserID}).
				Errorf("notifier panicked: %v", r)
		}
	}()
	if err := m.notifier.Notify(context.WithoutCancel(ctx), n.UserID, n.Title, n.Message); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"booking_id": bookingID,
			"user_id":    n.UserID,
		}).Warn("failed to send booking notification")
	}
}
