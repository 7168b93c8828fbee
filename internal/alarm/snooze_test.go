package alarm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/timer"
)

type snoozeFixture struct {
	repo      *duty.InMemoryRepository
	facility  *timer.MemoryFacility
	scheduler *alarm.Scheduler
	sessions  *alarm.SnoozeSessions
}

func newSnoozeFixture(t *testing.T) *snoozeFixture {
	t.Helper()

	now := mustTime(t, "2026-09-09 12:00")
	nowFn := func() time.Time { return now }

	repo := duty.NewInMemoryRepository()
	facility := timer.NewMemoryFacility(zerolog.Nop(), nil)
	t.Cleanup(facility.Close)

	planner := alarm.NewPlanner(alarm.PlannerConfig{Location: time.UTC, Now: nowFn})
	scheduler := alarm.NewScheduler(alarm.SchedulerConfig{
		Duties:   repo,
		Prefs:    staticPrefs{p: fullPrefs()},
		Facility: facility,
		Planner:  planner,
		Logger:   zerolog.Nop(),
		Now:      nowFn,
	})
	sessions := alarm.NewSnoozeSessions(alarm.SnoozeSessionsConfig{
		Facility:  facility,
		Scheduler: scheduler,
		Logger:    zerolog.Nop(),
		Now:       nowFn,
	})

	return &snoozeFixture{repo: repo, facility: facility, scheduler: scheduler, sessions: sessions}
}

func wakePayload(slot, count int) timer.Payload {
	return timer.Payload{
		DutyID:      "dty_test1",
		Kind:        duty.KindWakeApp,
		SlotIndex:   slot,
		SnoozeCount: count,
		Label:       "Wake up",
	}
}

func TestSnooze_CapEnforcement(t *testing.T) {
	fx := newSnoozeFixture(t)
	ctx := context.Background()

	fx.sessions.Begin(ctx, wakePayload(0, 0))

	// Three snoozes stay active with an incrementing count.
	for want := 1; want <= alarm.MaxSnoozes; want++ {
		state, err := fx.sessions.Snooze(ctx, "dty_test1", 0)
		if err != nil {
			t.Fatalf("snooze %d: %v", want, err)
		}
		if state.Dismissed {
			t.Fatalf("snooze %d should stay active", want)
		}
		if state.SnoozeCount != want {
			t.Errorf("snooze count = %d, want %d", state.SnoozeCount, want)
		}
	}

	// The fourth request is treated as dismissal.
	state, err := fx.sessions.Snooze(ctx, "dty_test1", 0)
	if err != nil {
		t.Fatalf("fourth snooze: %v", err)
	}
	if !state.Dismissed {
		t.Error("snooze past the cap must dismiss")
	}
	if _, ok := fx.sessions.State("dty_test1", 0); ok {
		t.Error("session should be destroyed after dismissal")
	}
	if fx.facility.IsArmed(alarm.Identify("dty_test1", duty.KindWakeApp, 0)) {
		t.Error("pending re-fire should be disarmed on dismissal")
	}
}

func TestSnooze_RefireCarriesIncrementedCount(t *testing.T) {
	fx := newSnoozeFixture(t)
	ctx := context.Background()

	fx.sessions.Begin(ctx, wakePayload(2, 0))
	if _, err := fx.sessions.Snooze(ctx, "dty_test1", 2); err != nil {
		t.Fatalf("snooze: %v", err)
	}

	id := alarm.Identify("dty_test1", duty.KindWakeApp, 2)
	at, ok := fx.facility.ArmedAt(id)
	if !ok {
		t.Fatal("re-fire trigger should be armed")
	}
	if want := mustTime(t, "2026-09-09 12:05"); !at.Equal(want) {
		t.Errorf("re-fire armed at %v, want %v", at, want)
	}
}

func TestSnooze_ExplicitDismiss(t *testing.T) {
	fx := newSnoozeFixture(t)
	ctx := context.Background()

	fx.sessions.Begin(ctx, wakePayload(0, 1))

	state, err := fx.sessions.Dismiss(ctx, "dty_test1", 0)
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if !state.Dismissed {
		t.Error("state should be dismissed")
	}
	if fx.facility.IsArmed(alarm.Identify("dty_test1", duty.KindWakeApp, 0)) {
		t.Error("auto-escalate trigger should be disarmed")
	}

	// Dismissed is terminal.
	if _, err := fx.sessions.Snooze(ctx, "dty_test1", 0); !errors.Is(err, alarm.ErrNoActiveAlarm) {
		t.Errorf("expected ErrNoActiveAlarm after dismissal, got %v", err)
	}
}

func TestSnooze_ActionsWithoutActiveAlarm(t *testing.T) {
	fx := newSnoozeFixture(t)
	ctx := context.Background()

	if _, err := fx.sessions.Snooze(ctx, "dty_none", 0); !errors.Is(err, alarm.ErrNoActiveAlarm) {
		t.Errorf("snooze: expected ErrNoActiveAlarm, got %v", err)
	}
	if _, err := fx.sessions.Dismiss(ctx, "dty_none", 0); !errors.Is(err, alarm.ErrNoActiveAlarm) {
		t.Errorf("dismiss: expected ErrNoActiveAlarm, got %v", err)
	}
}

func TestSnooze_DeleteFutureAlarms(t *testing.T) {
	fx := newSnoozeFixture(t)
	ctx := context.Background()

	// Duty scheduled with two wake slots plus day-before and departure.
	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}
	if _, err := fx.scheduler.ScheduleAll(ctx, d.ID); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// Slot 0 fires; the user kills the remaining wake alarms from it.
	fx.sessions.Begin(ctx, wakePayload(0, 0))
	state, err := fx.sessions.DeleteFutureAlarms(ctx, d.ID, 0)
	if err != nil {
		t.Fatalf("delete future alarms: %v", err)
	}
	if !state.Dismissed {
		t.Error("firing slot should be dismissed")
	}

	if fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindWakeApp, 0)) {
		t.Error("firing slot's trigger should be disarmed")
	}
	if fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindWakeApp, 1)) {
		t.Error("other wake slot should be cancelled")
	}
	if !fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindDayBefore, 0)) {
		t.Error("day-before trigger must remain armed")
	}
	if !fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindDeparture, 0)) {
		t.Error("departure trigger must remain armed")
	}
}

func TestSnooze_BeginIsReentrant(t *testing.T) {
	fx := newSnoozeFixture(t)
	ctx := context.Background()

	fx.sessions.Begin(ctx, wakePayload(0, 0))
	fx.sessions.Begin(ctx, wakePayload(0, 0))

	state, ok := fx.sessions.State("dty_test1", 0)
	if !ok {
		t.Fatal("session should exist")
	}
	if state.SnoozeCount != 0 {
		t.Errorf("redelivery must not change the count, got %d", state.SnoozeCount)
	}
}
