package memory

import (
	"context"
	"sync"

	"giggen/internal/booking"
)

type Directory struct {
	mu       sync.RWMutex
	profiles map[string]struct{}
	concepts map[string]booking.Concept
}

func NewDirectory() *Directory {
	return &Directory{
		profiles: map[string]struct{}{},
		concepts: map[string]booking.Concept{},
	}
}

func (d *Directory) AddProfile(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[userID] = struct{}{}
}

func (d *Directory) AddConcept(c booking.Concept) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.concepts[c.ID] = c
}

func (d *Directory) ProfileExists(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.profiles[userID]
	return ok, nil
}

func (d *Directory) LookupConcept(_ context.Context, conceptID string) (booking.Concept, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.concepts[conceptID]
	return c, ok, nil
}
