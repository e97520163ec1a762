package booking

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionCreate        Action = "create"
	ActionAllow         Action = "allow"
	ActionReject        Action = "reject"
	ActionApprove       Action = "approve"
	ActionPublish       Action = "publish"
	ActionSetVisibility Action = "change visibility of"
	ActionCancel        Action = "cancel"
	ActionComplete      Action = "complete"
	ActionEditTerms     Action = "edit terms of"
	ActionMarkRead      Action = "mark as read"
)

// Key is a stable identifier for logs, metrics and stored events.
func (a Action) Key() string {
	switch a {
	case ActionSetVisibility:
		return "set_visibility"
	case ActionEditTerms:
		return "edit_terms"
	case ActionMarkRead:
		return "mark_read"
	default:
		return string(a)
	}
}

type Command struct {
	Action     Action
	Actor      Role
	MakePublic *bool
	Reason     string
	Patch      TermsPatch
}

// Outcome is the result of applying a command to a booking.
type Outcome struct {
	Booking Booking
	// Delete means the record must be removed instead of updated.
	Delete bool
	// NoOp means nothing changed; no write and no notification follow.
	NoOp bool
}

// Apply is the single transition function of the booking lifecycle. It is
// pure: it never touches a store and derives everything from cur and cmd.
func Apply(cur Booking, cmd Command, now time.Time) (Outcome, error) {
	if cmd.Actor == RoleNone {
		return Outcome{}, ErrNotAuthorized
	}
	if _, err := ParseStatus(string(cur.Status)); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	next := cur.Clone()

	// Read receipts are informational and accepted in every status.
	if cmd.Action == ActionMarkRead {
		return markRead(cur, next, cmd.Actor, now)
	}

	switch cur.Status {
	case StatusPending:
		switch cmd.Action {
		case ActionAllow:
			if cmd.Actor != RoleReceiver {
				return Outcome{}, ErrNotAuthorized
			}
			next.Status = StatusAllowed
			setOnce(&next.AllowedAt, now)
			return changed(cur, next, now), nil
		case ActionReject:
			if cmd.Actor != RoleReceiver {
				return Outcome{}, ErrNotAuthorized
			}
			setOnce(&next.RejectedAt, now)
			next.CancellationReason = cmd.Reason
			out := changed(cur, next, now)
			out.Delete = true
			return out, nil
		case ActionEditTerms:
			if cmd.Actor != RoleSender {
				return Outcome{}, ErrNotAuthorized
			}
			return editTerms(cur, next, cmd.Patch, now)
		}

	case StatusAllowed, StatusApprovedBySender, StatusApprovedByReceiver:
		switch cmd.Action {
		case ActionApprove:
			return approve(cur, next, cmd.Actor, now)
		case ActionCancel:
			if !isParty(cmd.Actor) {
				return Outcome{}, ErrNotAuthorized
			}
			next.Status = StatusCancelled
			next.Terms = cur.Terms.scrubbed()
			next.Archived = true
			next.CancellationReason = cmd.Reason
			setOnce(&next.CancelledAt, now)
			setOnce(&next.DeletedAt, now)
			return changed(cur, next, now), nil
		case ActionEditTerms:
			if !isParty(cmd.Actor) {
				return Outcome{}, ErrNotAuthorized
			}
			return editTerms(cur, next, cmd.Patch, now)
		}

	case StatusApprovedByBoth:
		switch cmd.Action {
		case ActionApprove:
			// Both flags are already set; repeating an approval changes nothing.
			if !isParty(cmd.Actor) {
				return Outcome{}, ErrNotAuthorized
			}
			return Outcome{Booking: cur, NoOp: true}, nil
		case ActionPublish:
			if !isParty(cmd.Actor) {
				return Outcome{}, ErrNotAuthorized
			}
			if !cur.ApprovedBySender || !cur.ApprovedByReceiver {
				return Outcome{}, transitionError(cur.Status, cmd.Action)
			}
			next.Status = StatusUpcoming
			next.IsPublicAfterApproval = true
			if cmd.MakePublic != nil {
				next.IsPublicAfterApproval = *cmd.MakePublic
			}
			setOnce(&next.PublishedAt, now)
			return changed(cur, next, now), nil
		}

	case StatusUpcoming:
		switch cmd.Action {
		case ActionSetVisibility:
			if !isParty(cmd.Actor) {
				return Outcome{}, ErrNotAuthorized
			}
			if cmd.MakePublic == nil || *cmd.MakePublic == cur.IsPublicAfterApproval {
				return Outcome{Booking: cur, NoOp: true}, nil
			}
			next.IsPublicAfterApproval = *cmd.MakePublic
			return changed(cur, next, now), nil
		case ActionCancel:
			if !isParty(cmd.Actor) {
				return Outcome{}, ErrNotAuthorized
			}
			next.Status = StatusCancelled
			next.CancellationReason = cmd.Reason
			setOnce(&next.CancelledAt, now)
			return changed(cur, next, now), nil
		case ActionComplete:
			next.Status = StatusCompleted
			setOnce(&next.CompletedAt, now)
			return changed(cur, next, now), nil
		}

	case StatusCompleted:
		if cmd.Action == ActionComplete {
			return Outcome{Booking: cur, NoOp: true}, nil
		}

	case StatusCancelled:
	}

	return Outcome{}, transitionError(cur.Status, cmd.Action)
}

func approve(cur, next Booking, actor Role, now time.Time) (Outcome, error) {
	switch actor {
	case RoleSender:
		if cur.ApprovedBySender {
			return Outcome{Booking: cur, NoOp: true}, nil
		}
		next.ApprovedBySender = true
	case RoleReceiver:
		if cur.ApprovedByReceiver {
			return Outcome{Booking: cur, NoOp: true}, nil
		}
		next.ApprovedByReceiver = true
	default:
		return Outcome{}, ErrNotAuthorized
	}

	next.Status = statusForApprovals(next.ApprovedBySender, next.ApprovedByReceiver)
	if next.Status == StatusApprovedByBoth {
		setOnce(&next.ApprovedAt, now)
	}
	return changed(cur, next, now), nil
}

// statusForApprovals maps the approval flags of a negotiable booking to its status.
func statusForApprovals(bySender, byReceiver bool) Status {
	switch {
	case bySender && byReceiver:
		return StatusApprovedByBoth
	case bySender:
		return StatusApprovedBySender
	case byReceiver:
		return StatusApprovedByReceiver
	default:
		return StatusAllowed
	}
}

func editTerms(cur, next Booking, patch TermsPatch, now time.Time) (Outcome, error) {
	if patch.Empty() {
		return Outcome{Booking: cur, NoOp: true}, nil
	}
	terms := patch.Apply(cur.Terms)
	if err := terms.Validate(); err != nil {
		return Outcome{}, err
	}
	next.Terms = terms

	// Changed terms need a fresh read and fresh approvals from both sides.
	next.SenderReadAgreement = false
	next.ReceiverReadAgreement = false
	if cur.Status.Negotiable() {
		next.ApprovedBySender = false
		next.ApprovedByReceiver = false
		next.Status = StatusAllowed
	}
	return changed(cur, next, now), nil
}

func markRead(cur, next Booking, actor Role, now time.Time) (Outcome, error) {
	switch actor {
	case RoleSender:
		if cur.SenderReadAgreement {
			return Outcome{Booking: cur, NoOp: true}, nil
		}
		next.SenderReadAgreement = true
	case RoleReceiver:
		if cur.ReceiverReadAgreement {
			return Outcome{Booking: cur, NoOp: true}, nil
		}
		next.ReceiverReadAgreement = true
	default:
		return Outcome{}, ErrNotAuthorized
	}
	return changed(cur, next, now), nil
}

func changed(cur, next Booking, now time.Time) Outcome {
	next.Version = cur.Version + 1
	next.UpdatedAt = now
	return Outcome{Booking: next}
}

func isParty(r Role) bool {
	return r == RoleSender || r == RoleReceiver
}
