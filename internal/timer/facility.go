// Package timer defines the exact-timer facility the scheduling core arms
// its triggers against, and an in-process implementation of it.
package timer

import (
	"context"
	"errors"
	"time"

	"github.com/shiftwake/shiftwake/internal/duty"
)

// ErrPermissionDenied is returned by Arm when the platform refuses exact
// timer registration. Recoverable: the user must grant the permission
// out-of-band, there is no retry loop.
var ErrPermissionDenied = errors.New("exact timer permission denied")

// TriggerID is the deterministic handle of one armed trigger. It is derived
// from the (duty, kind, slot) tuple and never persisted.
type TriggerID int64

// Payload travels with a trigger registration and is delivered back to the
// dispatcher when the trigger fires.
type Payload struct {
	DutyID      string         `json:"dutyId"`
	Kind        duty.AlarmKind `json:"kind"`
	SlotIndex   int            `json:"slotIndex"`
	SnoozeCount int            `json:"snoozeCount,omitempty"`
	FiresAt     time.Time      `json:"firesAt"`
	Label       string         `json:"label,omitempty"`
	Sound       string         `json:"sound,omitempty"`
}

// Handler receives fired triggers.
type Handler interface {
	HandleTrigger(ctx context.Context, p Payload)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, p Payload)

// HandleTrigger calls f.
func (f HandlerFunc) HandleTrigger(ctx context.Context, p Payload) { f(ctx, p) }

// Facility is the exact, wake-capable one-shot timer primitive.
//
// Arm registers a one-shot trigger at the given instant; arming an ID that is
// already registered overwrites it. Disarm is a silent no-op when the ID is
// not armed.
type Facility interface {
	Arm(ctx context.Context, id TriggerID, at time.Time, p Payload) error
	Disarm(ctx context.Context, id TriggerID) error
}
