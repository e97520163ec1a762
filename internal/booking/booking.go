package booking

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleNone     Role = ""
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
	RoleSystem   Role = "system"
)

type Fee struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Terms is the negotiable payload of a booking.
type Terms struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	ConceptID        string     `json:"conceptId"`
	Venue            string     `json:"venue,omitempty"`
	Address          string     `json:"address,omitempty"`
	StartsAt         *time.Time `json:"startsAt,omitempty"`
	EndsAt           *time.Time `json:"endsAt,omitempty"`
	Fee              *Fee       `json:"fee,omitempty"`
	AudienceEstimate int        `json:"audienceEstimate,omitempty"`
	ContactName      string     `json:"contactName,omitempty"`
	ContactEmail     string     `json:"contactEmail,omitempty"`
	ContactPhone     string     `json:"contactPhone,omitempty"`
	Attachments      []string   `json:"attachments,omitempty"`
}

// TermsPatch holds the fields a party wants to change; nil means unchanged.
type TermsPatch struct {
	Title            *string    `json:"title,omitempty"`
	Description      *string    `json:"description,omitempty"`
	Venue            *string    `json:"venue,omitempty"`
	Address          *string    `json:"address,omitempty"`
	StartsAt         *time.Time `json:"startsAt,omitempty"`
	EndsAt           *time.Time `json:"endsAt,omitempty"`
	Fee              *Fee       `json:"fee,omitempty"`
	AudienceEstimate *int       `json:"audienceEstimate,omitempty"`
	ContactName      *string    `json:"contactName,omitempty"`
	ContactEmail     *string    `json:"contactEmail,omitempty"`
	ContactPhone     *string    `json:"contactPhone,omitempty"`
	Attachments      []string   `json:"attachments,omitempty"`
}

func (p TermsPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Venue == nil && p.Address == nil &&
		p.StartsAt == nil && p.EndsAt == nil && p.Fee == nil && p.AudienceEstimate == nil &&
		p.ContactName == nil && p.ContactEmail == nil && p.ContactPhone == nil && p.Attachments == nil
}

type Booking struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Status     Status `json:"status"`

	ApprovedBySender      bool `json:"approvedBySender"`
	ApprovedByReceiver    bool `json:"approvedByReceiver"`
	IsPublicAfterApproval bool `json:"isPublicAfterApproval"`
	SenderReadAgreement   bool `json:"senderReadAgreement"`
	ReceiverReadAgreement bool `json:"receiverReadAgreement"`

	Terms Terms `json:"terms"`

	Archived           bool   `json:"archived"`
	CancellationReason string `json:"cancellationReason,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	AllowedAt   *time.Time `json:"allowedAt,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Snapshot is the tuple a conditional write is keyed on.
type Snapshot struct {
	Version            int64
	Status             Status
	ApprovedBySender   bool
	ApprovedByReceiver bool
}

func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		Version:            b.Version,
		Status:             b.Status,
		ApprovedBySender:   b.ApprovedBySender,
		ApprovedByReceiver: b.ApprovedByReceiver,
	}
}

func (b *Booking) RoleOf(userID string) Role {
	switch {
	case userID == "":
		return RoleNone
	case userID == b.SenderID:
		return RoleSender
	case userID == b.ReceiverID:
		return RoleReceiver
	default:
		return RoleNone
	}
}

func (b *Booking) IsParty(userID string) bool {
	return b.RoleOf(userID) != RoleNone
}

// Counterparty returns the user on the other side of role.
func (b *Booking) Counterparty(role Role) string {
	switch role {
	case RoleSender:
		return b.ReceiverID
	case RoleReceiver:
		return b.SenderID
	default:
		return ""
	}
}

// IsPublic reports whether third parties may discover the booking.
// The visibility flag is ignored outside upcoming.
func (b *Booking) IsPublic() bool {
	return b.Status == StatusUpcoming && b.IsPublicAfterApproval
}

// EventEnd is the moment after which an upcoming booking is due for completion.
func (b *Booking) EventEnd() *time.Time {
	if b.Terms.EndsAt != nil {
		return b.Terms.EndsAt
	}
	return b.Terms.StartsAt
}

func (b Booking) Clone() Booking {
	out := b
	out.Terms = b.Terms.Clone()
	out.AllowedAt = cloneTime(b.AllowedAt)
	out.ApprovedAt = cloneTime(b.ApprovedAt)
	out.PublishedAt = cloneTime(b.PublishedAt)
	out.CancelledAt = cloneTime(b.CancelledAt)
	out.RejectedAt = cloneTime(b.RejectedAt)
	out.DeletedAt = cloneTime(b.DeletedAt)
	out.CompletedAt = cloneTime(b.CompletedAt)
	return out
}

func (t Terms) Clone() Terms {
	out := t
	out.StartsAt = cloneTime(t.StartsAt)
	out.EndsAt = cloneTime(t.EndsAt)
	if t.Fee != nil {
		f := *t.Fee
		out.Fee = &f
	}
	if t.Attachments != nil {
		out.Attachments = append([]string(nil), t.Attachments...)
	}
	return out
}

// Validate checks the shape of terms before they reach the store.
func (t Terms) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return termsError("title is required")
	}
	if utf8.RuneCountInString(title) > 200 {
		return termsError("title must be at most 200 characters")
	}
	if strings.TrimSpace(t.ConceptID) == "" {
		return termsError("concept reference is required")
	}
	if t.AudienceEstimate < 0 {
		return termsError("audience estimate must be >= 0")
	}
	if t.StartsAt != nil && t.EndsAt != nil && t.EndsAt.Before(*t.StartsAt) {
		return termsError("event must end after it starts")
	}
	if t.Fee != nil {
		if t.Fee.Amount.IsNegative() {
			return termsError("fee must be >= 0")
		}
		if len(strings.TrimSpace(t.Fee.Currency)) != 3 {
			return termsError("fee currency must be a 3-letter code")
		}
	}
	return nil
}

// Apply returns a copy of t with the patch applied.
func (p TermsPatch) Apply(t Terms) Terms {
	out := t.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Venue != nil {
		out.Venue = *p.Venue
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	if p.StartsAt != nil {
		out.StartsAt = cloneTime(p.StartsAt)
	}
	if p.EndsAt != nil {
		out.EndsAt = cloneTime(p.EndsAt)
	}
	if p.Fee != nil {
		f := *p.Fee
		out.Fee = &f
	}
	if p.AudienceEstimate != nil {
		out.AudienceEstimate = *p.AudienceEstimate
	}
	if p.ContactName != nil {
		out.ContactName = *p.ContactName
	}
	if p.ContactEmail != nil {
		out.ContactEmail = *p.ContactEmail
	}
	if p.ContactPhone != nil {
		out.ContactPhone = *p.ContactPhone
	}
	if p.Attachments != nil {
		out.Attachments = append([]string(nil), p.Attachments...)
	}
	return out
}

// scrubbed keeps only what is needed to display an archived cancellation.
func (t Terms) scrubbed() Terms {
	return Terms{
		Title:     t.Title,
		ConceptID: t.ConceptID,
		StartsAt:  cloneTime(t.StartsAt),
		EndsAt:    cloneTime(t.EndsAt),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func setOnce(p **time.Time, now time.Time) {
	if *p == nil {
		v := now
		*p = &v
	}
}
