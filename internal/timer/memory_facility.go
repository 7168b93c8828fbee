package timer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type armedTrigger struct {
	at      time.Time
	payload Payload
	t       *time.Timer
}

// MemoryFacility is an in-process Facility backed by time.Timer. It delivers
// fired payloads to a Handler on their own goroutine. Tests can also fire
// triggers by hand and flip the permission switch to simulate platform
// denial.
type MemoryFacility struct {
	logger  zerolog.Logger
	handler Handler

	mu         sync.Mutex
	armed      map[TriggerID]*armedTrigger
	permission bool
	closed     bool
}

// NewMemoryFacility creates an in-process timer facility delivering to the
// given handler. The handler may be nil; triggers then expire silently.
func NewMemoryFacility(logger zerolog.Logger, handler Handler) *MemoryFacility {
	return &MemoryFacility{
		logger:     logger,
		handler:    handler,
		armed:      make(map[TriggerID]*armedTrigger),
		permission: true,
	}
}

// SetHandler replaces the delivery handler. Used to break the construction
// cycle between the facility and the dispatcher.
func (f *MemoryFacility) SetHandler(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// SetPermission flips the exact-timer permission. With permission revoked,
// Arm fails with ErrPermissionDenied.
func (f *MemoryFacility) SetPermission(granted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permission = granted
}

// Arm registers a one-shot trigger. An existing registration for the same ID
// is overwritten.
func (f *MemoryFacility) Arm(_ context.Context, id TriggerID, at time.Time, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.permission {
		return ErrPermissionDenied
	}
	if f.closed {
		return nil
	}

	if prev, ok := f.armed[id]; ok {
		prev.t.Stop()
	}

	entry := &armedTrigger{at: at, payload: p}
	entry.t = time.AfterFunc(time.Until(at), func() { f.fire(id) })
	f.armed[id] = entry

	f.logger.Debug().
		Int64("trigger_id", int64(id)).
		Time("at", at).
		Str("kind", string(p.Kind)).
		Msg("trigger armed")
	return nil
}

// Disarm cancels a trigger. Unknown IDs are a silent no-op.
func (f *MemoryFacility) Disarm(_ context.Context, id TriggerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, ok := f.armed[id]; ok {
		entry.t.Stop()
		delete(f.armed, id)
		f.logger.Debug().Int64("trigger_id", int64(id)).Msg("trigger disarmed")
	}
	return nil
}

// Fire delivers an armed trigger immediately, as the platform would at its
// instant. It reports whether the ID was armed.
func (f *MemoryFacility) Fire(id TriggerID) bool {
	f.mu.Lock()
	entry, ok := f.armed[id]
	if ok {
		entry.t.Stop()
	}
	f.mu.Unlock()

	if !ok {
		return false
	}
	f.fire(id)
	return true
}

func (f *MemoryFacility) fire(id TriggerID) {
	f.mu.Lock()
	entry, ok := f.armed[id]
	if ok {
		delete(f.armed, id)
	}
	handler := f.handler
	f.mu.Unlock()

	if !ok || handler == nil {
		return
	}
	handler.HandleTrigger(context.Background(), entry.payload)
}

// IsArmed reports whether the given trigger is currently registered.
func (f *MemoryFacility) IsArmed(id TriggerID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[id]
	return ok
}

// ArmedAt returns the registered instant for a trigger, if armed.
func (f *MemoryFacility) ArmedAt(id TriggerID) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.armed[id]
	if !ok {
		return time.Time{}, false
	}
	return entry.at, true
}

// Armed returns the IDs of all registered triggers, sorted.
func (f *MemoryFacility) Armed() []TriggerID {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]TriggerID, 0, len(f.armed))
	for id := range f.armed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close stops all pending timers.
func (f *MemoryFacility) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, entry := range f.armed {
		entry.t.Stop()
		delete(f.armed, id)
	}
	f.closed = true
}

// Ensure MemoryFacility implements Facility interface.
var _ Facility = (*MemoryFacility)(nil)
