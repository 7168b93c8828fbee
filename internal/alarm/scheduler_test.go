package alarm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// staticPrefs serves a fixed preference snapshot.
type staticPrefs struct {
	p prefs.NotificationPreferences
}

func (s staticPrefs) Get(context.Context) (prefs.NotificationPreferences, error) {
	return s.p, nil
}

type schedulerFixture struct {
	repo      *duty.InMemoryRepository
	facility  *timer.MemoryFacility
	scheduler *alarm.Scheduler
	now       time.Time
}

func newSchedulerFixture(t *testing.T, np prefs.NotificationPreferences) *schedulerFixture {
	t.Helper()

	now := mustTime(t, "2026-09-01 12:00")
	nowFn := func() time.Time { return now }

	repo := duty.NewInMemoryRepository()
	facility := timer.NewMemoryFacility(zerolog.Nop(), nil)
	t.Cleanup(facility.Close)

	planner := alarm.NewPlanner(alarm.PlannerConfig{Location: time.UTC, Now: nowFn})
	scheduler := alarm.NewScheduler(alarm.SchedulerConfig{
		Duties:   repo,
		Prefs:    staticPrefs{p: np},
		Facility: facility,
		Planner:  planner,
		Logger:   zerolog.Nop(),
		Now:      nowFn,
	})

	return &schedulerFixture{repo: repo, facility: facility, scheduler: scheduler, now: now}
}

func fullPrefs() prefs.NotificationPreferences {
	return prefs.NotificationPreferences{
		DayBefore:      true,
		DayBeforeHour:  18,
		WakeApp:        true,
		WakeOffsetsMin: []int{60, 30},
		NativeClock:    true,
		NativeOffset:   45,
		Departure:      true,
		DepartOffset:   15,
	}
}

func TestScheduler_ScheduleAll(t *testing.T) {
	fx := newSchedulerFixture(t, fullPrefs())
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}

	registered, err := fx.scheduler.ScheduleAll(ctx, d.ID)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// Day-before, two wake slots, one departure leg. The native clock entry
	// is a placeholder and must not be registered.
	if registered != 4 {
		t.Errorf("registered = %d, want 4", registered)
	}
	if fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindNativeClock, 0)) {
		t.Error("native clock placeholder must not be armed")
	}
	if !fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindWakeApp, 1)) {
		t.Error("wake slot 1 should be armed")
	}

	plan, err := fx.repo.GetPlan(ctx, d.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if len(plan) != 5 {
		t.Errorf("persisted plan has %d entries, want 5", len(plan))
	}
}

func TestScheduler_ScheduleAll_MissingDuty(t *testing.T) {
	fx := newSchedulerFixture(t, fullPrefs())

	_, err := fx.scheduler.ScheduleAll(context.Background(), "dty_missing")
	if !errors.Is(err, duty.ErrDutyNotFound) {
		t.Errorf("expected ErrDutyNotFound, got %v", err)
	}
}

func TestScheduler_ScheduleAll_PermissionDenied(t *testing.T) {
	fx := newSchedulerFixture(t, fullPrefs())
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}

	fx.facility.SetPermission(false)

	registered, err := fx.scheduler.ScheduleAll(ctx, d.ID)
	if !errors.Is(err, timer.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if registered != 0 {
		t.Errorf("registered = %d, want 0", registered)
	}
	if len(fx.facility.Armed()) != 0 {
		t.Errorf("no triggers should be armed, got %v", fx.facility.Armed())
	}
}

func TestScheduler_RescheduleIdempotent(t *testing.T) {
	fx := newSchedulerFixture(t, fullPrefs())
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}

	first, err := fx.scheduler.RescheduleAllForService(ctx, d.ID)
	if err != nil {
		t.Fatalf("first reschedule: %v", err)
	}
	armedAfterFirst := fx.facility.Armed()

	second, err := fx.scheduler.RescheduleAllForService(ctx, d.ID)
	if err != nil {
		t.Fatalf("second reschedule: %v", err)
	}
	armedAfterSecond := fx.facility.Armed()

	if first != second {
		t.Errorf("registered counts differ: %d vs %d", first, second)
	}
	if len(armedAfterFirst) != len(armedAfterSecond) {
		t.Fatalf("armed sets differ in size: %d vs %d", len(armedAfterFirst), len(armedAfterSecond))
	}
	for i := range armedAfterFirst {
		if armedAfterFirst[i] != armedAfterSecond[i] {
			t.Errorf("armed set changed across reschedules: %v vs %v", armedAfterFirst, armedAfterSecond)
			break
		}
	}
}

func TestScheduler_CancelAllForService(t *testing.T) {
	fx := newSchedulerFixture(t, fullPrefs())
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}
	if _, err := fx.scheduler.ScheduleAll(ctx, d.ID); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := fx.scheduler.CancelAllForService(ctx, d.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := fx.facility.Armed(); len(got) != 0 {
		t.Errorf("expected no armed triggers, got %v", got)
	}

	// Cancelling again must be a silent no-op.
	if err := fx.scheduler.CancelAllForService(ctx, d.ID); err != nil {
		t.Errorf("second cancel errored: %v", err)
	}
}

func TestScheduler_CancelWakeSlotsExcept(t *testing.T) {
	fx := newSchedulerFixture(t, fullPrefs())
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}
	if _, err := fx.scheduler.ScheduleAll(ctx, d.ID); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := fx.scheduler.CancelWakeSlotsExcept(ctx, d.ID, 0); err != nil {
		t.Fatalf("cancel wake slots: %v", err)
	}

	if !fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindWakeApp, 0)) {
		t.Error("kept wake slot 0 should still be armed")
	}
	if fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindWakeApp, 1)) {
		t.Error("wake slot 1 should be cancelled")
	}
	if !fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindDayBefore, 0)) {
		t.Error("day-before trigger must stay armed")
	}
	if !fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindDeparture, 0)) {
		t.Error("departure trigger must stay armed")
	}
}
