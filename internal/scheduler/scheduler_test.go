package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"

	"giggen/internal/booking"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) CompleteDue(ctx context.Context, now time.Time) ([]booking.Booking, error) {
	args := m.Called(ctx, now)
	out, _ := args.Get(0).([]booking.Booking)
	return out, args.Error(1)
}

func TestScheduler_Tick_CompletesDue(t *testing.T) {
	completer := &mockCompleter{}
	log, hook := test.NewNullLogger()

	s := New(completer, 20*time.Millisecond, log)

	completer.On("CompleteDue", mock.Anything, mock.Anything).
		Return([]booking.Booking{{ID: "b1", SenderID: "alice", ReceiverID: "bob"}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	completer.AssertCalled(t, "CompleteDue", mock.Anything, mock.Anything)

	var completedLogged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "booking completed" && e.Data["booking_id"] == "b1" {
			completedLogged = true
		}
	}
	assert.True(t, completedLogged)
}

func TestScheduler_Tick_LogsError(t *testing.T) {
	completer := &mockCompleter{}
	log, hook := test.NewNullLogger()

	s := New(completer, time.Hour, log)
	completer.On("CompleteDue", mock.Anything, mock.Anything).Return(nil, errors.New("db error"))

	s.tick(context.Background())

	completer.AssertNumberOfCalls(t, "CompleteDue", 1)
	if assert.NotNil(t, hook.LastEntry()) {
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	}
}

func TestScheduler_UsesClock(t *testing.T) {
	completer := &mockCompleter{}
	log, _ := test.NewNullLogger()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	s := New(completer, time.Hour, log)
	s.now = func() time.Time { return now }
	completer.On("CompleteDue", mock.Anything, now).Return(nil, nil)

	s.tick(context.Background())

	completer.AssertExpectations(t)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	for _, interval := range []time.Duration{time.Second, 0} {
		log, _ := test.NewNullLogger()
		s := New(&mockCompleter{}, interval, log)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Start(ctx)
			close(done)
		}()

		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("scheduler with interval %s did not stop on context cancel", interval)
		}
	}
}
