package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu    sync.Mutex
	users []string
	err   error
	block chan struct{}
}

func (s *recordingSink) Notify(ctx context.Context, userID, _, _ string) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	return s.err
}

func TestAsync_DeliversInBackground(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	log, _ := test.NewNullLogger()
	a := NewAsync(sink, time.Second, log)

	require.NoError(t, a.Notify(context.Background(), "bob", "New booking request", "alice sent you a booking request"))
	close(sink.block)

	require.NoError(t, a.Wait(context.Background()))
	assert.Equal(t, []string{"bob"}, sink.users)
}

func TestAsync_IgnoresCallerCancellation(t *testing.T) {
	sink := &recordingSink{}
	log, _ := test.NewNullLogger()
	a := NewAsync(sink, time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Notify(ctx, "bob", "t", "m"))

	require.NoError(t, a.Wait(context.Background()))
	assert.Equal(t, []string{"bob"}, sink.users)
}

func TestAsync_LogsFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("smtp down")}
	log, hook := test.NewNullLogger()
	a := NewAsync(sink, time.Second, log)

	require.NoError(t, a.Notify(context.Background(), "alice", "t", "m"))
	require.NoError(t, a.Wait(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "alice", entry.Data["user_id"])
}

func TestAsync_WaitHonoursContext(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	log, _ := test.NewNullLogger()
	a := NewAsync(sink, time.Second, log)

	require.NoError(t, a.Notify(context.Background(), "bob", "t", "m"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Wait(ctx), context.DeadlineExceeded)

	close(sink.block)
	require.NoError(t, a.Wait(context.Background()))
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("boom")}
	log, hook := test.NewNullLogger()

	err := Multi{ok, Log{Logger: log}, failing}.Notify(context.Background(), "bob", "Booking approved", "alice approved the booking")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"bob"}, ok.users)
	assert.Equal(t, []string{"bob"}, failing.users)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "bob", hook.LastEntry().Data["user_id"])
}

func TestAsync_DropsAfterWait(t *testing.T) {
	sink := &recordingSink{}
	log, hook := test.NewNullLogger()
	a := NewAsync(sink, time.Second, log)

	require.NoError(t, a.Wait(context.Background()))
	require.NoError(t, a.Notify(context.Background(), "bob", "t", "m"))
	require.NoError(t, a.Wait(context.Background()))

	assert.Empty(t, sink.users)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "bob", entry.Data["user_id"])
}

func TestAsync_NotifyDuringWait(t *testing.T) {
	sink := &recordingSink{}
	log, _ := test.NewNullLogger()
	a := NewAsync(sink, time.Second, log)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Notify(context.Background(), "bob", "t", "m")
		}()
	}
	require.NoError(t, a.Wait(context.Background()))
	wg.Wait()

	// whatever was accepted before Wait has been delivered
	require.NoError(t, a.Wait(context.Background()))
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.LessOrEqual(t, len(sink.users), 20)
}
