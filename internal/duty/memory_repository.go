package duty

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	duties map[string]*Duty
	plans  map[string][]ScheduledAlarm
}

// NewInMemoryRepository creates a new in-memory duty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		duties: make(map[string]*Duty),
		plans:  make(map[string][]ScheduledAlarm),
	}
}

// GetByID retrieves a duty by ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Duty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.duties[id]
	if !ok {
		return nil, ErrDutyNotFound
	}

	cpy := *d
	return &cpy, nil
}

// ListFrom retrieves all duties on or after the given calendar day.
func (r *InMemoryRepository) ListFrom(_ context.Context, day time.Time) ([]*Duty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := day.Format("2006-01-02")
	var duties []*Duty
	for _, d := range r.duties {
		if d.Date >= cutoff {
			cpy := *d
			duties = append(duties, &cpy)
		}
	}

	sort.Slice(duties, func(i, j int) bool { return duties[i].Date < duties[j].Date })
	return duties, nil
}

// ListAll retrieves every stored duty.
func (r *InMemoryRepository) ListAll(_ context.Context) ([]*Duty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	duties := make([]*Duty, 0, len(r.duties))
	for _, d := range r.duties {
		cpy := *d
		duties = append(duties, &cpy)
	}

	sort.Slice(duties, func(i, j int) bool { return duties[i].Date < duties[j].Date })
	return duties, nil
}

// Create creates a new duty.
func (r *InMemoryRepository) Create(_ context.Context, d *Duty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *d
	r.duties[d.ID] = &cpy
	return nil
}

// Update updates an existing duty.
func (r *InMemoryRepository) Update(_ context.Context, d *Duty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.duties[d.ID]; !ok {
		return ErrDutyNotFound
	}

	cpy := *d
	r.duties[d.ID] = &cpy
	return nil
}

// Delete deletes a duty by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.duties, id)
	delete(r.plans, id)
	return nil
}

// UpdatePlan replaces the stored reminder plan for a duty.
func (r *InMemoryRepository) UpdatePlan(_ context.Context, id string, plan []ScheduledAlarm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.duties[id]; !ok {
		return ErrDutyNotFound
	}

	cpy := make([]ScheduledAlarm, len(plan))
	copy(cpy, plan)
	r.plans[id] = cpy
	return nil
}

// GetPlan returns the stored reminder plan for a duty.
func (r *InMemoryRepository) GetPlan(_ context.Context, id string) ([]ScheduledAlarm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.duties[id]; !ok {
		return nil, ErrDutyNotFound
	}

	plan := r.plans[id]
	cpy := make([]ScheduledAlarm, len(plan))
	copy(cpy, plan)
	return cpy, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
