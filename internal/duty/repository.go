package duty

import (
	"context"
	"time"
)

// Repository defines the interface for duty persistence. The scheduling core
// only reads duties and writes plans; CRUD is used by the management flow.
type Repository interface {
	// GetByID retrieves a duty by ID.
	// Returns ErrDutyNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Duty, error)

	// ListFrom retrieves all duties whose date is on or after the given
	// calendar day, ordered by date. Used by the startup recovery pass.
	ListFrom(ctx context.Context, day time.Time) ([]*Duty, error)

	// ListAll retrieves every stored duty.
	ListAll(ctx context.Context) ([]*Duty, error)

	// Create creates a new duty.
	Create(ctx context.Context, d *Duty) error

	// Update updates an existing duty.
	Update(ctx context.Context, d *Duty) error

	// Delete deletes a duty by ID.
	Delete(ctx context.Context, id string) error

	// UpdatePlan replaces the stored reminder plan for a duty. The previous
	// plan is overwritten, never merged.
	UpdatePlan(ctx context.Context, id string, plan []ScheduledAlarm) error

	// GetPlan returns the stored reminder plan for a duty.
	GetPlan(ctx context.Context, id string) ([]ScheduledAlarm, error)
}
