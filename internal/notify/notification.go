// Package notify delivers the toasts produced by booking transitions.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

type Notification struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"userId"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Sink interface {
	Notify(ctx context.Context, userID, title, message string) error
}

// Log writes notifications to the logger. Useful when no database is configured.
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Notify(_ context.Context, userID, title, message string) error {
	l.Logger.WithFields(logrus.Fields{
		"user_id": userID,
		"title":   title,
	}).Info(message)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, userID, title, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, userID, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
