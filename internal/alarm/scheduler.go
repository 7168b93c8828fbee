package alarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// DutyStore is the narrow view of duty storage the scheduling core needs.
type DutyStore interface {
	GetByID(ctx context.Context, id string) (*duty.Duty, error)
	ListFrom(ctx context.Context, day time.Time) ([]*duty.Duty, error)
	UpdatePlan(ctx context.Context, id string, plan []duty.ScheduledAlarm) error
}

// PrefsProvider supplies preference snapshots.
type PrefsProvider interface {
	Get(ctx context.Context) (prefs.NotificationPreferences, error)
}

// SchedulerConfig holds the scheduler's collaborators.
type SchedulerConfig struct {
	Duties   DutyStore
	Prefs    PrefsProvider
	Facility timer.Facility
	Planner  *Planner
	Logger   zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Scheduler registers and cancels exact triggers from reminder plans. All
// mutations of the armed-trigger set for one duty are serialised; operations
// on different duties run independently.
type Scheduler struct {
	duties   DutyStore
	prefs    PrefsProvider
	facility timer.Facility
	planner  *Planner
	logger   zerolog.Logger
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		duties:   cfg.Duties,
		prefs:    cfg.Prefs,
		facility: cfg.Facility,
		planner:  cfg.Planner,
		logger:   cfg.Logger,
		now:      now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// ScheduleAll loads the duty and preferences, generates a fresh plan,
// persists it (overwriting the previous one) and registers one exact trigger
// per enabled, future, non-placeholder entry. It returns the number of
// triggers registered.
//
// A platform permission denial aborts the batch and is surfaced as
// timer.ErrPermissionDenied; any other per-entry registration failure is
// skipped and logged.
func (s *Scheduler) ScheduleAll(ctx context.Context, dutyID string) (int, error) {
	mu := s.lockFor(dutyID)
	mu.Lock()
	defer mu.Unlock()

	return s.scheduleAllLocked(ctx, dutyID)
}

func (s *Scheduler) scheduleAllLocked(ctx context.Context, dutyID string) (int, error) {
	d, err := s.duties.GetByID(ctx, dutyID)
	if err != nil {
		return 0, fmt.Errorf("load duty %s: %w", dutyID, err)
	}

	np, err := s.prefs.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("load preferences: %w", err)
	}

	plan, err := s.planner.Generate(*d, np)
	if err != nil {
		return 0, fmt.Errorf("generate plan for %s: %w", dutyID, err)
	}

	if err := s.duties.UpdatePlan(ctx, dutyID, plan); err != nil {
		return 0, fmt.Errorf("persist plan for %s: %w", dutyID, err)
	}

	registered := 0
	for _, entry := range plan {
		if !entry.Enabled || entry.Placeholder {
			continue
		}
		if !entry.FiresAt.After(s.now()) {
			// Elapsed between generation and registration.
			s.logger.Warn().
				Str("duty_id", dutyID).
				Str("kind", string(entry.Kind)).
				Int("slot", entry.SlotIndex).
				Time("fires_at", entry.FiresAt).
				Msg("skipping stale plan entry")
			continue
		}

		id := Identify(dutyID, entry.Kind, entry.SlotIndex)
		payload := timer.Payload{
			DutyID:    dutyID,
			Kind:      entry.Kind,
			SlotIndex: entry.SlotIndex,
			FiresAt:   entry.FiresAt,
			Label:     entry.Label,
			Sound:     np.Sound,
		}

		if err := s.facility.Arm(ctx, id, entry.FiresAt, payload); err != nil {
			if errors.Is(err, timer.ErrPermissionDenied) {
				s.logger.Warn().
					Str("duty_id", dutyID).
					Msg("exact timer permission denied, aborting registration")
				return registered, err
			}
			s.logger.Warn().
				Err(err).
				Str("duty_id", dutyID).
				Str("kind", string(entry.Kind)).
				Int("slot", entry.SlotIndex).
				Msg("trigger registration failed, entry skipped")
			continue
		}
		registered++
	}

	s.logger.Info().
		Str("duty_id", dutyID).
		Int("plan_entries", len(plan)).
		Int("registered", registered).
		Msg("duty scheduled")
	return registered, nil
}

// CancelAllForService disarms every trigger the duty could possibly have,
// by enumerating the bounded (kind, slot) space. Disarming an ID that is not
// registered is a no-op.
func (s *Scheduler) CancelAllForService(ctx context.Context, dutyID string) error {
	mu := s.lockFor(dutyID)
	mu.Lock()
	defer mu.Unlock()

	return s.cancelAllLocked(ctx, dutyID)
}

func (s *Scheduler) cancelAllLocked(ctx context.Context, dutyID string) error {
	for _, t := range possibleTriggers() {
		id := Identify(dutyID, t.kind, t.slot)
		if err := s.facility.Disarm(ctx, id); err != nil {
			s.logger.Warn().
				Err(err).
				Str("duty_id", dutyID).
				Str("kind", string(t.kind)).
				Int("slot", t.slot).
				Msg("disarm failed")
		}
	}

	s.logger.Debug().Str("duty_id", dutyID).Msg("all duty triggers cancelled")
	return nil
}

// RescheduleAllForService cancels the duty's previous triggers and registers
// a fresh plan. Cancellation completes before registration begins, so no two
// triggers for the same (kind, slot) are concurrently armed.
func (s *Scheduler) RescheduleAllForService(ctx context.Context, dutyID string) (int, error) {
	mu := s.lockFor(dutyID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.cancelAllLocked(ctx, dutyID); err != nil {
		return 0, err
	}
	return s.scheduleAllLocked(ctx, dutyID)
}

// CancelWakeSlotsExcept disarms every wake-up slot of the duty other than
// keepSlot, leaving day-before and departure triggers untouched. This is the
// delete-future-alarms shortcut of the snooze surface.
func (s *Scheduler) CancelWakeSlotsExcept(ctx context.Context, dutyID string, keepSlot int) error {
	mu := s.lockFor(dutyID)
	mu.Lock()
	defer mu.Unlock()

	for slot := 0; slot < duty.MaxWakeSlots; slot++ {
		if slot == keepSlot {
			continue
		}
		if err := s.facility.Disarm(ctx, Identify(dutyID, duty.KindWakeApp, slot)); err != nil {
			s.logger.Warn().
				Err(err).
				Str("duty_id", dutyID).
				Int("slot", slot).
				Msg("disarm of wake slot failed")
		}
	}
	return nil
}

type triggerSlot struct {
	kind duty.AlarmKind
	slot int
}

// possibleTriggers enumerates the whole (kind, slot) space one duty can
// occupy: one day-before, up to five wake slots, one native clock, up to two
// departure legs.
func possibleTriggers() []triggerSlot {
	ts := []triggerSlot{{duty.KindDayBefore, 0}}
	for slot := 0; slot < duty.MaxWakeSlots; slot++ {
		ts = append(ts, triggerSlot{duty.KindWakeApp, slot})
	}
	ts = append(ts, triggerSlot{duty.KindNativeClock, 0})
	for slot := 0; slot < duty.MaxDepartureLegs; slot++ {
		ts = append(ts, triggerSlot{duty.KindDeparture, slot})
	}
	return ts
}

func (s *Scheduler) lockFor(dutyID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[dutyID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[dutyID] = mu
	}
	return mu
}
