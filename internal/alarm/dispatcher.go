package alarm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// Reminder is what the delivery surface shows for one fired trigger.
type Reminder struct {
	Kind        duty.AlarmKind
	DutyID      string
	SlotIndex   int
	Label       string
	Sound       string
	FiresAt     time.Time
	SnoozeCount int
}

// Deliverer shows a full-attention reminder to the user. Delivery failures
// are logged, never escalated: reminders are not a source of truth and
// redelivery is acceptable.
type Deliverer interface {
	ShowReminder(ctx context.Context, r Reminder) error
}

// DispatcherConfig holds the dispatcher's collaborators.
type DispatcherConfig struct {
	Duties    DutyStore
	Prefs     PrefsProvider
	Facility  timer.Facility
	Sessions  *SnoozeSessions
	Deliverer Deliverer
	Logger    zerolog.Logger

	// Location resolves duty wall-clock times for the cascade.
	Location *time.Location

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Dispatcher runs when a trigger fires: it classifies the trigger kind and
// drives the matching terminal action. Dispatch is idempotent per firing.
type Dispatcher struct {
	duties    DutyStore
	prefs     PrefsProvider
	facility  timer.Facility
	sessions  *SnoozeSessions
	deliverer Deliverer
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewDispatcher creates a trigger dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		duties:    cfg.Duties,
		prefs:     cfg.Prefs,
		facility:  cfg.Facility,
		sessions:  cfg.Sessions,
		deliverer: cfg.Deliverer,
		logger:    cfg.Logger,
		loc:       loc,
		now:       now,
	}
}

// HandleTrigger receives one fired trigger from the timer facility.
func (d *Dispatcher) HandleTrigger(ctx context.Context, p timer.Payload) {
	d.logger.Info().
		Str("duty_id", p.DutyID).
		Str("kind", string(p.Kind)).
		Int("slot", p.SlotIndex).
		Int("snooze_count", p.SnoozeCount).
		Msg("trigger fired")

	switch p.Kind {
	case duty.KindDayBefore:
		d.show(ctx, p)
		d.runCascade(ctx, p)

	case duty.KindWakeApp:
		if p.SnoozeCount > MaxSnoozes {
			// Final auto-escalation: the unattended alarm ran out of
			// deferrals, release it without showing anything.
			d.sessions.Expire(ctx, p.DutyID, p.SlotIndex)
			return
		}
		d.show(ctx, p)
		d.sessions.Begin(ctx, p)

	case duty.KindNativeClock:
		// Only ever armed concretely by the cascade.
		d.show(ctx, p)

	case duty.KindDeparture:
		d.show(ctx, p)

	default:
		d.logger.Warn().Str("kind", string(p.Kind)).Msg("unknown trigger kind")
	}
}

func (d *Dispatcher) show(ctx context.Context, p timer.Payload) {
	r := Reminder{
		Kind:        p.Kind,
		DutyID:      p.DutyID,
		SlotIndex:   p.SlotIndex,
		Label:       p.Label,
		Sound:       p.Sound,
		FiresAt:     p.FiresAt,
		SnoozeCount: p.SnoozeCount,
	}
	if err := d.deliverer.ShowReminder(ctx, r); err != nil {
		d.logger.Warn().
			Err(err).
			Str("duty_id", p.DutyID).
			Str("kind", string(p.Kind)).
			Msg("reminder delivery failed")
	}
}

// runCascade conditionally arms the concrete native-clock alarm for the next
// day. The planner only ever emits a placeholder for it; this is the sole
// path that registers the real thing.
func (d *Dispatcher) runCascade(ctx context.Context, p timer.Payload) {
	np, err := d.prefs.Get(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Str("duty_id", p.DutyID).Msg("cascade: preferences unavailable")
		return
	}
	if !np.NativeClock {
		return
	}

	dt, err := d.duties.GetByID(ctx, p.DutyID)
	if err != nil {
		d.logger.Warn().Err(err).Str("duty_id", p.DutyID).Msg("cascade: duty unavailable")
		return
	}

	leg1Start, err := dt.LegStart(1, d.loc)
	if err != nil {
		d.logger.Warn().Err(err).Str("duty_id", p.DutyID).Msg("cascade: bad leg 1 start")
		return
	}

	at := leg1Start.Add(-time.Duration(np.NativeOffset) * time.Minute)
	if !at.After(d.now()) {
		d.logger.Debug().
			Str("duty_id", p.DutyID).
			Time("at", at).
			Msg("cascade: native alarm instant already passed, skipping")
		return
	}

	payload := timer.Payload{
		DutyID:  p.DutyID,
		Kind:    duty.KindNativeClock,
		FiresAt: at,
		Label:   "Duty " + dt.Leg1Start,
		Sound:   np.Sound,
	}
	id := Identify(p.DutyID, duty.KindNativeClock, 0)
	if err := d.facility.Arm(ctx, id, at, payload); err != nil {
		d.logger.Warn().Err(err).Str("duty_id", p.DutyID).Msg("cascade: arming native alarm failed")
		return
	}

	d.logger.Info().
		Str("duty_id", p.DutyID).
		Time("at", at).
		Msg("native clock alarm armed for next day")
}

// Ensure Dispatcher implements timer.Handler.
var _ timer.Handler = (*Dispatcher)(nil)
