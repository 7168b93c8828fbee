package alarm_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// captureDeliverer records shown reminders.
type captureDeliverer struct {
	mu        sync.Mutex
	reminders []alarm.Reminder
}

func (c *captureDeliverer) ShowReminder(_ context.Context, r alarm.Reminder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reminders = append(c.reminders, r)
	return nil
}

func (c *captureDeliverer) shown() []alarm.Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]alarm.Reminder, len(c.reminders))
	copy(out, c.reminders)
	return out
}

type dispatcherFixture struct {
	repo       *duty.InMemoryRepository
	facility   *timer.MemoryFacility
	sessions   *alarm.SnoozeSessions
	dispatcher *alarm.Dispatcher
	deliverer  *captureDeliverer
}

func newDispatcherFixture(t *testing.T, np prefs.NotificationPreferences, now time.Time) *dispatcherFixture {
	t.Helper()

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
	sessions := alarm.NewSnoozeSessions(alarm.SnoozeSessionsConfig{
		Facility:  facility,
		Scheduler: scheduler,
		Logger:    zerolog.Nop(),
		Now:       nowFn,
	})
	deliverer := &captureDeliverer{}
	dispatcher := alarm.NewDispatcher(alarm.DispatcherConfig{
		Duties:    repo,
		Prefs:     staticPrefs{p: np},
		Facility:  facility,
		Sessions:  sessions,
		Deliverer: deliverer,
		Logger:    zerolog.Nop(),
		Location:  time.UTC,
		Now:       nowFn,
	})
	facility.SetHandler(dispatcher)

	return &dispatcherFixture{
		repo:       repo,
		facility:   facility,
		sessions:   sessions,
		dispatcher: dispatcher,
		deliverer:  deliverer,
	}
}

func TestDispatcher_DayBefore_CascadeArmsNativeAlarm(t *testing.T) {
	np := fullPrefs()
	now := mustTime(t, "2026-09-09 18:00")
	fx := newDispatcherFixture(t, np, now)
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}

	fx.dispatcher.HandleTrigger(ctx, timer.Payload{
		DutyID: d.ID,
		Kind:   duty.KindDayBefore,
	})

	shown := fx.deliverer.shown()
	if len(shown) != 1 || shown[0].Kind != duty.KindDayBefore {
		t.Fatalf("expected one day-before reminder, got %+v", shown)
	}

	nativeID := alarm.Identify(d.ID, duty.KindNativeClock, 0)
	at, ok := fx.facility.ArmedAt(nativeID)
	if !ok {
		t.Fatal("cascade should have armed the native clock alarm")
	}
	if want := mustTime(t, "2026-09-10 05:45"); !at.Equal(want) {
		t.Errorf("native alarm armed at %v, want %v", at, want)
	}
}

func TestDispatcher_DayBefore_CascadeGatedOnPreference(t *testing.T) {
	np := fullPrefs()
	np.NativeClock = false
	now := mustTime(t, "2026-09-09 18:00")
	fx := newDispatcherFixture(t, np, now)
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}

	fx.dispatcher.HandleTrigger(ctx, timer.Payload{DutyID: d.ID, Kind: duty.KindDayBefore})

	if fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindNativeClock, 0)) {
		t.Error("cascade must not arm the native alarm when the channel is disabled")
	}
}

func TestDispatcher_DayBefore_CascadeSkipsElapsedInstant(t *testing.T) {
	np := fullPrefs()
	// Day-before trigger redelivered after the computed native instant.
	now := mustTime(t, "2026-09-10 07:00")
	fx := newDispatcherFixture(t, np, now)
	ctx := context.Background()

	d := testDuty()
	if err := fx.repo.Create(ctx, &d); err != nil {
		t.Fatalf("create duty: %v", err)
	}

	fx.dispatcher.HandleTrigger(ctx, timer.Payload{DutyID: d.ID, Kind: duty.KindDayBefore})

	if fx.facility.IsArmed(alarm.Identify(d.ID, duty.KindNativeClock, 0)) {
		t.Error("cascade must skip silently when the native instant has passed")
	}
}

func TestDispatcher_WakeApp_StartsSnoozeSession(t *testing.T) {
	now := mustTime(t, "2026-09-10 05:30")
	fx := newDispatcherFixture(t, fullPrefs(), now)
	ctx := context.Background()

	fx.dispatcher.HandleTrigger(ctx, timer.Payload{
		DutyID:    "dty_test1",
		Kind:      duty.KindWakeApp,
		SlotIndex: 0,
	})

	shown := fx.deliverer.shown()
	if len(shown) != 1 || shown[0].Kind != duty.KindWakeApp {
		t.Fatalf("expected one wake reminder, got %+v", shown)
	}

	state, ok := fx.sessions.State("dty_test1", 0)
	if !ok {
		t.Fatal("wake fire should create a snooze session")
	}
	if state.SnoozeCount != 0 {
		t.Errorf("initial snooze count = %d, want 0", state.SnoozeCount)
	}

	// The auto-escalate trigger reuses the wake identity.
	if !fx.facility.IsArmed(alarm.Identify("dty_test1", duty.KindWakeApp, 0)) {
		t.Error("auto-escalate trigger should be armed")
	}
}

func TestDispatcher_WakeApp_FinalEscalationReleasesSilently(t *testing.T) {
	now := mustTime(t, "2026-09-10 06:00")
	fx := newDispatcherFixture(t, fullPrefs(), now)
	ctx := context.Background()

	fx.dispatcher.HandleTrigger(ctx, timer.Payload{
		DutyID:      "dty_test1",
		Kind:        duty.KindWakeApp,
		SlotIndex:   0,
		SnoozeCount: alarm.MaxSnoozes + 1,
	})

	if shown := fx.deliverer.shown(); len(shown) != 0 {
		t.Errorf("final escalation must not show a reminder, got %+v", shown)
	}
	if _, ok := fx.sessions.State("dty_test1", 0); ok {
		t.Error("session should be destroyed on final escalation")
	}
}

func TestDispatcher_Departure_ShowsReminderOnly(t *testing.T) {
	now := mustTime(t, "2026-09-10 06:15")
	fx := newDispatcherFixture(t, fullPrefs(), now)
	ctx := context.Background()

	payload := timer.Payload{
		DutyID:    "dty_test1",
		Kind:      duty.KindDeparture,
		SlotIndex: 1,
		Label:     "Leave for leg 2",
	}
	fx.dispatcher.HandleTrigger(ctx, payload)
	// Platform redelivery shows the reminder again and nothing else.
	fx.dispatcher.HandleTrigger(ctx, payload)

	shown := fx.deliverer.shown()
	if len(shown) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(shown))
	}
	if _, ok := fx.sessions.State("dty_test1", 1); ok {
		t.Error("departure reminders must not create snooze sessions")
	}
	if len(fx.facility.Armed()) != 0 {
		t.Errorf("departure fire must not arm anything, got %v", fx.facility.Armed())
	}
}
