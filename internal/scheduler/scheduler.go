// Package scheduler periodically completes upcoming bookings whose event is over.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"giggen/internal/booking"
)

type bookingCompleter interface {
	CompleteDue(ctx context.Context, now time.Time) ([]booking.Booking, error)
}

type Scheduler struct {
	bookings bookingCompleter
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(bookings bookingCompleter, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		bookings: bookings,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start blocks until ctx is done. A non-positive interval disables the sweep.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("completion sweep disabled")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval.String()).Info("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	completed, err := s.bookings.CompleteDue(ctx, s.now())
	for _, b := range completed {
		s.log.WithFields(logrus.Fields{
			"booking_id":  b.ID,
			"sender_id":   b.SenderID,
			"receiver_id": b.ReceiverID,
		}).Info("booking completed")
	}
	if err != nil {
		s.log.WithError(err).Error("failed to complete due bookings")
	}
}
