package alarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// Snooze policy.
const (
	// MaxSnoozes caps deferrals; a snooze request past the cap is treated
	// as dismissal.
	MaxSnoozes = 3

	// SnoozeDelay is both the explicit snooze interval and the auto-escalate
	// timeout when the reminder gets no user action.
	SnoozeDelay = 5 * time.Minute
)

// ErrNoActiveAlarm is returned for snooze actions on a wake alarm that is
// not currently ringing.
var ErrNoActiveAlarm = errors.New("no active wake alarm")

// SnoozeState is the externally visible state of one fired wake alarm.
type SnoozeState struct {
	DutyID      string
	SlotIndex   int
	SnoozeCount int
	Dismissed   bool
	Deadline    time.Time
}

type snoozeSession struct {
	count    int
	payload  timer.Payload
	deadline time.Time
}

// SnoozeSessionsConfig holds the snooze machine's collaborators.
type SnoozeSessionsConfig struct {
	Facility  timer.Facility
	Scheduler *Scheduler
	Logger    zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SnoozeSessions tracks the per-instance state machine of fired wake alarms:
// Active(n) with n in [0,3], then Dismissed.
//
// Snooze re-fire and auto-escalate share a single trigger: both re-arm the
// alarm's own (duty, wake, slot) identity at now+5m carrying the incremented
// count, so an explicit action simply overwrites or disarms the pending
// timeout and no duplicate timers ever exist.
type SnoozeSessions struct {
	facility  timer.Facility
	scheduler *Scheduler
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*snoozeSession
}

// NewSnoozeSessions creates the snooze state machine registry.
func NewSnoozeSessions(cfg SnoozeSessionsConfig) *SnoozeSessions {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SnoozeSessions{
		facility:  cfg.Facility,
		scheduler: cfg.Scheduler,
		logger:    cfg.Logger,
		now:       now,
		sessions:  make(map[string]*snoozeSession),
	}
}

// Begin enters Active(p.SnoozeCount) for a wake alarm whose reminder surface
// is now showing, and arms the 5-minute auto-escalate trigger. Re-entrant:
// platform redelivery of the same firing just refreshes the deadline.
func (s *SnoozeSessions) Begin(ctx context.Context, p timer.Payload) SnoozeState {
	s.mu.Lock()
	deadline := s.now().Add(SnoozeDelay)
	sess := &snoozeSession{count: p.SnoozeCount, payload: p, deadline: deadline}
	s.sessions[sessionKey(p.DutyID, p.SlotIndex)] = sess
	s.mu.Unlock()

	s.armRefire(ctx, p, p.SnoozeCount+1, deadline)

	s.logger.Info().
		Str("duty_id", p.DutyID).
		Int("slot", p.SlotIndex).
		Int("snooze_count", p.SnoozeCount).
		Msg("wake alarm active")
	return SnoozeState{
		DutyID:      p.DutyID,
		SlotIndex:   p.SlotIndex,
		SnoozeCount: p.SnoozeCount,
		Deadline:    deadline,
	}
}

// Snooze defers the alarm by five minutes. Past the cap the request is
// treated as dismissal.
func (s *SnoozeSessions) Snooze(ctx context.Context, dutyID string, slot int) (SnoozeState, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionKey(dutyID, slot)]
	if !ok {
		s.mu.Unlock()
		return SnoozeState{}, ErrNoActiveAlarm
	}

	if sess.count >= MaxSnoozes {
		s.mu.Unlock()
		return s.Dismiss(ctx, dutyID, slot)
	}

	sess.count++
	count := sess.count
	deadline := s.now().Add(SnoozeDelay)
	sess.deadline = deadline
	payload := sess.payload
	s.mu.Unlock()

	payload.SnoozeCount = count
	s.armRefire(ctx, payload, count, deadline)

	s.logger.Info().
		Str("duty_id", dutyID).
		Int("slot", slot).
		Int("snooze_count", count).
		Msg("wake alarm snoozed")
	return SnoozeState{
		DutyID:      dutyID,
		SlotIndex:   slot,
		SnoozeCount: count,
		Deadline:    deadline,
	}, nil
}

// Dismiss terminates the alarm: the pending re-fire trigger is disarmed and
// the session is destroyed.
func (s *SnoozeSessions) Dismiss(ctx context.Context, dutyID string, slot int) (SnoozeState, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionKey(dutyID, slot)]
	if !ok {
		s.mu.Unlock()
		return SnoozeState{}, ErrNoActiveAlarm
	}
	count := sess.count
	delete(s.sessions, sessionKey(dutyID, slot))
	s.mu.Unlock()

	if err := s.facility.Disarm(ctx, Identify(dutyID, duty.KindWakeApp, slot)); err != nil {
		s.logger.Warn().Err(err).Str("duty_id", dutyID).Int("slot", slot).Msg("disarm on dismiss failed")
	}

	s.logger.Info().
		Str("duty_id", dutyID).
		Int("slot", slot).
		Msg("wake alarm dismissed")
	return SnoozeState{
		DutyID:      dutyID,
		SlotIndex:   slot,
		SnoozeCount: count,
		Dismissed:   true,
	}, nil
}

// DeleteFutureAlarms dismisses the ringing alarm and additionally cancels
// every other wake slot of the same duty. Day-before and departure triggers
// stay armed.
func (s *SnoozeSessions) DeleteFutureAlarms(ctx context.Context, dutyID string, slot int) (SnoozeState, error) {
	state, err := s.Dismiss(ctx, dutyID, slot)
	if err != nil {
		return SnoozeState{}, err
	}

	if err := s.scheduler.CancelWakeSlotsExcept(ctx, dutyID, slot); err != nil {
		return state, err
	}

	s.logger.Info().
		Str("duty_id", dutyID).
		Int("slot", slot).
		Msg("remaining wake alarms deleted")
	return state, nil
}

// Expire destroys a session on final auto-escalation, when the timeout fires
// past the snooze cap. Missing sessions are ignored: the device may have
// restarted since the alarm first rang.
func (s *SnoozeSessions) Expire(ctx context.Context, dutyID string, slot int) {
	s.mu.Lock()
	_, ok := s.sessions[sessionKey(dutyID, slot)]
	delete(s.sessions, sessionKey(dutyID, slot))
	s.mu.Unlock()

	if ok {
		s.logger.Info().
			Str("duty_id", dutyID).
			Int("slot", slot).
			Msg("wake alarm auto-dismissed after final escalation")
	}
	_ = s.facility.Disarm(ctx, Identify(dutyID, duty.KindWakeApp, slot))
}

// State returns the current state of a wake alarm instance, if one is active.
func (s *SnoozeSessions) State(dutyID string, slot int) (SnoozeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey(dutyID, slot)]
	if !ok {
		return SnoozeState{}, false
	}
	return SnoozeState{
		DutyID:      dutyID,
		SlotIndex:   slot,
		SnoozeCount: sess.count,
		Deadline:    sess.deadline,
	}, true
}

// armRefire re-arms the alarm's own trigger identity at the deadline with
// the given count. Arming an existing ID overwrites it.
func (s *SnoozeSessions) armRefire(ctx context.Context, p timer.Payload, count int, at time.Time) {
	p.SnoozeCount = count
	p.FiresAt = at

	id := Identify(p.DutyID, duty.KindWakeApp, p.SlotIndex)
	if err := s.facility.Arm(ctx, id, at, p); err != nil {
		s.logger.Warn().
			Err(err).
			Str("duty_id", p.DutyID).
			Int("slot", p.SlotIndex).
			Msg("arming snooze re-fire failed")
	}
}

func sessionKey(dutyID string, slot int) string {
	return fmt.Sprintf("%s/%d", dutyID, slot)
}
