package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Async hands notifications to a background goroutine so callers never wait
// on delivery. Errors are logged and dropped.
type Async struct {
	sink    Sink
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

func NewAsync(sink Sink, timeout time.Duration, log logrus.FieldLogger) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{sink: sink, timeout: timeout, log: log}
}

func (a *Async) Notify(ctx context.Context, userID, title, message string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.log.WithField("user_id", userID).Warn("notifier closed, notification dropped")
		return nil
	}
	a.pending.Add(1)
	a.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer a.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.WithField("user_id", userID).Errorf("notification sink panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if err := a.sink.Notify(ctx, userID, title, message); err != nil {
			a.log.WithError(err).WithField("user_id", userID).Warn("failed to deliver notification")
		}
	}()
	return nil
}

// Wait stops accepting notifications and blocks until pending deliveries
// finish or ctx is done. Later Notify calls are logged and dropped.
func (a *Async) Wait(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
