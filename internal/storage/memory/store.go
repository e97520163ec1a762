// Package memory keeps bookings, profiles and concepts in process memory.
// It honours the same conditional-write contract as the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"giggen/internal/booking"
)

type Store struct {
	mu       sync.RWMutex
	bookings map[string]booking.Booking
	history  map[string][]booking.Change
}

func NewStore() *Store {
	return &Store{
		bookings: map[string]booking.Booking{},
		history:  map[string][]booking.Change{},
	}
}

func (s *Store) Get(_ context.Context, id string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	out := b.Clone()
	return &out, nil
}

func (s *Store) ListByParty(_ context.Context, userID string) ([]booking.Booking, error) {
	return s.list(func(b booking.Booking) bool {
		return b.SenderID == userID || b.ReceiverID == userID
	}), nil
}

func (s *Store) ListPublic(_ context.Context) ([]booking.Booking, error) {
	return s.list(func(b booking.Booking) bool {
		return b.IsPublic()
	}), nil
}

func (s *Store) ListDue(_ context.Context, before time.Time) ([]booking.Booking, error) {
	return s.list(func(b booking.Booking) bool {
		end := b.EventEnd()
		return b.Status == booking.StatusUpcoming && end != nil && end.Before(before)
	}), nil
}

func (s *Store) Insert(_ context.Context, b *booking.Booking, c booking.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[b.ID]; exists {
		return booking.ErrConcurrentModification
	}
	s.bookings[b.ID] = b.Clone()
	s.history[b.ID] = append(s.history[b.ID], c)
	return nil
}

func (s *Store) Update(_ context.Context, expected booking.Snapshot, next *booking.Booking, c booking.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bookings[next.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if cur.Snapshot() != expected {
		return booking.ErrConcurrentModification
	}
	s.bookings[next.ID] = next.Clone()
	s.history[next.ID] = append(s.history[next.ID], c)
	return nil
}

func (s *Store) Delete(_ context.Context, id string, expected booking.Snapshot, c booking.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bookings[id]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if cur.Snapshot() != expected {
		return booking.ErrConcurrentModification
	}
	delete(s.bookings, id)
	s.history[id] = append(s.history[id], c)
	return nil
}

// History returns every change recorded for a booking, including deleted ones.
func (s *Store) History(_ context.Context, id string) ([]booking.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]booking.Change{}, s.history[id]...), nil
}

func (s *Store) list(keep func(booking.Booking) bool) []booking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.FilterMap(lo.Values(s.bookings), func(b booking.Booking, _ int) (booking.Booking, bool) {
		return b.Clone(), keep(b)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
