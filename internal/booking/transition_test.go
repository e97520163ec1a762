package booking

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func bookingIn(status Status) Booking {
	b := Booking{
		ID:         "b1",
		SenderID:   "alice",
		ReceiverID: "bob",
		Status:     status,
		Terms:      Terms{Title: "Gig", ConceptID: "c1", Description: "three sets", ContactEmail: "a@example.com"},
		Version:    3,
	}
	switch status {
	case StatusApprovedBySender:
		b.ApprovedBySender = true
	case StatusApprovedByReceiver:
		b.ApprovedByReceiver = true
	case StatusApprovedByBoth, StatusUpcoming, StatusCompleted:
		b.ApprovedBySender = true
		b.ApprovedByReceiver = true
	}
	return b
}

func TestApply_PublishOnlyFromApprovedByBoth(t *testing.T) {
	for _, st := range AllStatuses {
		out, err := Apply(bookingIn(st), Command{Action: ActionPublish, Actor: RoleSender}, testNow)
		if st == StatusApprovedByBoth {
			require.NoError(t, err)
			assert.Equal(t, StatusUpcoming, out.Booking.Status)
			assert.True(t, out.Booking.IsPublicAfterApproval, "publish defaults to public")
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", st)
	}
}

func TestApply_PublishPrivate(t *testing.T) {
	private := false
	out, err := Apply(bookingIn(StatusApprovedByBoth), Command{Action: ActionPublish, Actor: RoleReceiver, MakePublic: &private}, testNow)
	require.NoError(t, err)
	assert.False(t, out.Booking.IsPublicAfterApproval)
	assert.False(t, out.Booking.IsPublic())
	require.NotNil(t, out.Booking.PublishedAt)
}

func TestApply_ResultStatusAlwaysKnown(t *testing.T) {
	actions := []Action{ActionAllow, ActionReject, ActionApprove, ActionPublish, ActionSetVisibility,
		ActionCancel, ActionComplete, ActionEditTerms, ActionMarkRead}
	roles := []Role{RoleSender, RoleReceiver, RoleSystem}
	pub := true
	title := "Renamed"

	for _, st := range AllStatuses {
		for _, a := range actions {
			for _, r := range roles {
				out, err := Apply(bookingIn(st), Command{Action: a, Actor: r, MakePublic: &pub, Patch: TermsPatch{Title: &title}}, testNow)
				if err != nil {
					continue
				}
				_, perr := ParseStatus(string(out.Booking.Status))
				assert.NoError(t, perr, "%s %s by %s", st, a, r)
				if out.Booking.Status == StatusApprovedByBoth {
					assert.True(t, out.Booking.ApprovedBySender && out.Booking.ApprovedByReceiver)
				}
			}
		}
	}
}

func TestApply_UnknownStatusRejected(t *testing.T) {
	b := bookingIn(StatusAllowed)
	b.Status = "negotiating"
	_, err := Apply(b, Command{Action: ActionApprove, Actor: RoleSender}, testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply_AllowRequiresReceiver(t *testing.T) {
	_, err := Apply(bookingIn(StatusPending), Command{Action: ActionAllow, Actor: RoleSender}, testNow)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	out, err := Apply(bookingIn(StatusPending), Command{Action: ActionAllow, Actor: RoleReceiver}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusAllowed, out.Booking.Status)
	assert.Equal(t, int64(4), out.Booking.Version)
	require.NotNil(t, out.Booking.AllowedAt)
	assert.Equal(t, testNow, *out.Booking.AllowedAt)
}

func TestApply_NoSkippingFromPending(t *testing.T) {
	for _, a := range []Action{ActionApprove, ActionPublish, ActionComplete, ActionCancel} {
		_, err := Apply(bookingIn(StatusPending), Command{Action: a, Actor: RoleReceiver}, testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition, "action %s", a)
	}
}

func TestApply_RejectDeletes(t *testing.T) {
	out, err := Apply(bookingIn(StatusPending), Command{Action: ActionReject, Actor: RoleReceiver, Reason: "busy"}, testNow)
	require.NoError(t, err)
	assert.True(t, out.Delete)
	require.NotNil(t, out.Booking.RejectedAt)

	_, err = Apply(bookingIn(StatusAllowed), Command{Action: ActionReject, Actor: RoleReceiver}, testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply_ApproveSequence(t *testing.T) {
	out, err := Apply(bookingIn(StatusAllowed), Command{Action: ActionApprove, Actor: RoleReceiver}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusApprovedByReceiver, out.Booking.Status)
	assert.Nil(t, out.Booking.ApprovedAt)

	out, err = Apply(out.Booking, Command{Action: ActionApprove, Actor: RoleSender}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusApprovedByBoth, out.Booking.Status)
	assert.True(t, out.Booking.ApprovedBySender)
	assert.True(t, out.Booking.ApprovedByReceiver)
	assert.NotNil(t, out.Booking.ApprovedAt)
}

func TestApply_ApproveIdempotent(t *testing.T) {
	b := bookingIn(StatusApprovedBySender)
	out, err := Apply(b, Command{Action: ActionApprove, Actor: RoleSender}, testNow)
	require.NoError(t, err)
	assert.True(t, out.NoOp)
	assert.Equal(t, b, out.Booking)

	out, err = Apply(bookingIn(StatusApprovedByBoth), Command{Action: ActionApprove, Actor: RoleReceiver}, testNow)
	require.NoError(t, err)
	assert.True(t, out.NoOp)
}

func TestApply_SystemCannotApprove(t *testing.T) {
	_, err := Apply(bookingIn(StatusAllowed), Command{Action: ActionApprove, Actor: RoleSystem}, testNow)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestApply_NoActor(t *testing.T) {
	_, err := Apply(bookingIn(StatusPending), Command{Action: ActionAllow}, testNow)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestApply_SetVisibilityLeavesStatus(t *testing.T) {
	private := false
	b := bookingIn(StatusUpcoming)
	b.IsPublicAfterApproval = true

	out, err := Apply(b, Command{Action: ActionSetVisibility, Actor: RoleSender, MakePublic: &private}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusUpcoming, out.Booking.Status)
	assert.False(t, out.Booking.IsPublicAfterApproval)

	out, err = Apply(out.Booking, Command{Action: ActionSetVisibility, Actor: RoleSender, MakePublic: &private}, testNow)
	require.NoError(t, err)
	assert.True(t, out.NoOp)

	for _, st := range AllStatuses {
		if st == StatusUpcoming {
			continue
		}
		_, err := Apply(bookingIn(st), Command{Action: ActionSetVisibility, Actor: RoleSender, MakePublic: &private}, testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", st)
	}
}

func TestApply_CancelNegotiableScrubsTerms(t *testing.T) {
	b := bookingIn(StatusApprovedByReceiver)
	out, err := Apply(b, Command{Action: ActionCancel, Actor: RoleSender, Reason: "double booked"}, testNow)
	require.NoError(t, err)

	got := out.Booking
	assert.Equal(t, StatusCancelled, got.Status)
	assert.True(t, got.Archived)
	assert.Equal(t, "Gig", got.Terms.Title)
	assert.Empty(t, got.Terms.Description)
	assert.Empty(t, got.Terms.ContactEmail)
	assert.NotNil(t, got.CancelledAt)
	assert.NotNil(t, got.DeletedAt)
	assert.Equal(t, "double booked", got.CancellationReason)
}

func TestApply_CancelUpcomingKeepsTerms(t *testing.T) {
	out, err := Apply(bookingIn(StatusUpcoming), Command{Action: ActionCancel, Actor: RoleReceiver}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, out.Booking.Status)
	assert.False(t, out.Booking.Archived)
	assert.Equal(t, "three sets", out.Booking.Terms.Description)
	assert.Nil(t, out.Booking.DeletedAt)
}

func TestApply_CancelNotAllowed(t *testing.T) {
	for _, st := range []Status{StatusPending, StatusApprovedByBoth, StatusCompleted, StatusCancelled} {
		_, err := Apply(bookingIn(st), Command{Action: ActionCancel, Actor: RoleSender}, testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", st)
	}
}

func TestApply_Complete(t *testing.T) {
	out, err := Apply(bookingIn(StatusUpcoming), Command{Action: ActionComplete, Actor: RoleSystem}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Booking.Status)

	out, err = Apply(out.Booking, Command{Action: ActionComplete, Actor: RoleSystem}, testNow)
	require.NoError(t, err)
	assert.True(t, out.NoOp)

	_, err = Apply(bookingIn(StatusApprovedByBoth), Command{Action: ActionComplete, Actor: RoleSystem}, testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply_EditTermsResetsApprovals(t *testing.T) {
	b := bookingIn(StatusApprovedBySender)
	b.SenderReadAgreement = true
	venue := "Blue Note"

	out, err := Apply(b, Command{Action: ActionEditTerms, Actor: RoleReceiver, Patch: TermsPatch{Venue: &venue}}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusAllowed, out.Booking.Status)
	assert.False(t, out.Booking.ApprovedBySender)
	assert.False(t, out.Booking.SenderReadAgreement)
	assert.Equal(t, "Blue Note", out.Booking.Terms.Venue)
}

func TestApply_EditTermsFrozen(t *testing.T) {
	venue := "Blue Note"
	for _, st := range []Status{StatusApprovedByBoth, StatusUpcoming, StatusCompleted, StatusCancelled} {
		_, err := Apply(bookingIn(st), Command{Action: ActionEditTerms, Actor: RoleSender, Patch: TermsPatch{Venue: &venue}}, testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", st)
	}
}

func TestApply_EditTermsValidates(t *testing.T) {
	empty := " "
	_, err := Apply(bookingIn(StatusAllowed), Command{Action: ActionEditTerms, Actor: RoleSender, Patch: TermsPatch{Title: &empty}}, testNow)
	assert.True(t, errors.Is(err, ErrInvalidTerms))
}

func TestApply_PendingEditOnlyBySender(t *testing.T) {
	venue := "Blue Note"
	_, err := Apply(bookingIn(StatusPending), Command{Action: ActionEditTerms, Actor: RoleReceiver, Patch: TermsPatch{Venue: &venue}}, testNow)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestApply_MarkReadAnyStatus(t *testing.T) {
	for _, st := range AllStatuses {
		out, err := Apply(bookingIn(st), Command{Action: ActionMarkRead, Actor: RoleReceiver}, testNow)
		require.NoError(t, err)
		assert.Equal(t, st, out.Booking.Status)
		assert.True(t, out.Booking.ReceiverReadAgreement)
	}
}

func TestChangeFilter_Match(t *testing.T) {
	ev := ChangeEvent{BookingID: "b1", SenderID: "alice", ReceiverID: "bob"}

	assert.True(t, ChangeFilter{}.Match(ev))
	assert.True(t, ChangeFilter{BookingID: "b1"}.Match(ev))
	assert.False(t, ChangeFilter{BookingID: "b2"}.Match(ev))
	assert.True(t, ChangeFilter{UserID: "alice"}.Match(ev))
	assert.False(t, ChangeFilter{UserID: "carol"}.Match(ev))
	assert.True(t, ChangeFilter{ReceiverID: "bob"}.Match(ev))
	assert.False(t, ChangeFilter{ReceiverID: "alice"}.Match(ev))
}

func TestTerms_ValidateTitleLengthInCharacters(t *testing.T) {
	terms := Terms{Title: strings.Repeat("é", 200), ConceptID: "c1"}
	assert.NoError(t, terms.Validate())

	terms.Title = strings.Repeat("é", 201)
	assert.ErrorIs(t, terms.Validate(), ErrInvalidTerms)
}
