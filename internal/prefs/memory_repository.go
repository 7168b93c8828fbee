package prefs

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	prefs NotificationPreferences
}

// NewInMemoryRepository creates an in-memory preference repository seeded
// with the default preferences.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{prefs: Default()}
}

// Get retrieves the stored preferences.
func (r *InMemoryRepository) Get(_ context.Context) (NotificationPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cpy := r.prefs
	cpy.WakeOffsetsMin = append([]int(nil), r.prefs.WakeOffsetsMin...)
	return cpy, nil
}

// Put replaces the stored preferences.
func (r *InMemoryRepository) Put(_ context.Context, p NotificationPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := p
	cpy.WakeOffsetsMin = append([]int(nil), p.WakeOffsetsMin...)
	r.prefs = cpy
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
