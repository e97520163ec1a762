package booking

import "fmt"

type Status string

const (
	StatusPending            Status = "pending"
	StatusAllowed            Status = "allowed"
	StatusApprovedBySender   Status = "approved_by_sender"
	StatusApprovedByReceiver Status = "approved_by_receiver"
	StatusApprovedByBoth     Status = "approved_by_both"
	StatusUpcoming           Status = "upcoming"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

var AllStatuses = []Status{
	StatusPending,
	StatusAllowed,
	StatusApprovedBySender,
	StatusApprovedByReceiver,
	StatusApprovedByBoth,
	StatusUpcoming,
	StatusCompleted,
	StatusCancelled,
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAllowed, StatusApprovedBySender, StatusApprovedByReceiver,
		StatusApprovedByBoth, StatusUpcoming, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

func (s Status) String() string {
	return string(s)
}

// Negotiable reports whether terms may still be edited and approvals collected.
func (s Status) Negotiable() bool {
	switch s {
	case StatusAllowed, StatusApprovedBySender, StatusApprovedByReceiver:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Frozen reports whether the descriptive payload is immutable.
func (s Status) Frozen() bool {
	return s == StatusUpcoming || s.Terminal()
}

// Label is the short human-readable form shown next to a booking.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Waiting for response"
	case StatusAllowed:
		return "In negotiation"
	case StatusApprovedBySender:
		return "Approved by sender"
	case StatusApprovedByReceiver:
		return "Approved by receiver"
	case StatusApprovedByBoth:
		return "Approved by both parties"
	case StatusUpcoming:
		return "Upcoming"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}
