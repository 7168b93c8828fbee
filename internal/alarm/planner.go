package alarm

import (
	"fmt"
	"strings"
	"time"

	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
)

// PlannerConfig holds configuration for the plan generator.
type PlannerConfig struct {
	// Location resolves the duty's wall-clock times. Defaults to time.Local.
	Location *time.Location

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Planner derives a reminder plan from one duty and one preference snapshot.
// Generation is deterministic for a fixed input and instant; the only
// time-dependent part is the already-elapsed filter.
type Planner struct {
	loc *time.Location
	now func() time.Time
}

// NewPlanner creates a plan generator.
func NewPlanner(cfg PlannerConfig) *Planner {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Planner{loc: loc, now: now}
}

// Generate produces the ordered reminder plan for one duty. Entries whose
// instant is not strictly in the future are dropped. The native-clock entry
// is a placeholder: it carries the concrete instant but is never registered
// directly, the day-before cascade arms the real native alarm.
func (p *Planner) Generate(d duty.Duty, np prefs.NotificationPreferences) ([]duty.ScheduledAlarm, error) {
	leg1Start, err := d.LegStart(1, p.loc)
	if err != nil {
		return nil, fmt.Errorf("resolve leg 1 start: %w", err)
	}

	now := p.now()
	var plan []duty.ScheduledAlarm

	// Enabling the native clock forces the day-before channel: the cascade
	// that runs on the day-before fire is the only path arming it.
	if np.DayBeforeEffective() {
		at, err := dayBeforeAt(d.Date, np.DayBeforeHour, np.DayBeforeMin, p.loc)
		if err != nil {
			return nil, fmt.Errorf("resolve day-before instant: %w", err)
		}
		plan = appendFuture(plan, now, duty.ScheduledAlarm{
			Kind:    duty.KindDayBefore,
			FiresAt: at,
			Enabled: true,
			Label:   "Duty tomorrow " + d.Leg1Start + lineSuffix(d.Leg1Lines),
			Icon:    "calendar",
		})
	}

	if np.WakeApp {
		for i, off := range np.WakeOffsetsMin {
			offset := off
			plan = appendFuture(plan, now, duty.ScheduledAlarm{
				Kind:          duty.KindWakeApp,
				SlotIndex:     i,
				FiresAt:       leg1Start.Add(-time.Duration(offset) * time.Minute),
				MinutesBefore: &offset,
				Enabled:       true,
				Label:         fmt.Sprintf("Wake up, duty at %s", d.Leg1Start),
				Icon:          "alarm",
			})
		}
	}

	if np.NativeClock {
		offset := np.NativeOffset
		plan = appendFuture(plan, now, duty.ScheduledAlarm{
			Kind:          duty.KindNativeClock,
			FiresAt:       leg1Start.Add(-time.Duration(offset) * time.Minute),
			MinutesBefore: &offset,
			Enabled:       true,
			Label:         "Duty " + d.Leg1Start,
			Icon:          "clock",
			Placeholder:   true,
		})
	}

	if np.Departure {
		offset := np.DepartOffset
		plan = appendFuture(plan, now, duty.ScheduledAlarm{
			Kind:          duty.KindDeparture,
			SlotIndex:     0,
			FiresAt:       leg1Start.Add(-time.Duration(offset) * time.Minute),
			MinutesBefore: &offset,
			Enabled:       true,
			Label:         "Leave for leg 1" + lineSuffix(d.Leg1Lines),
			Icon:          "walk",
			Leg:           1,
		})

		if d.HasLeg2 {
			leg2Start, err := d.LegStart(2, p.loc)
			if err != nil {
				return nil, fmt.Errorf("resolve leg 2 start: %w", err)
			}
			plan = appendFuture(plan, now, duty.ScheduledAlarm{
				Kind:          duty.KindDeparture,
				SlotIndex:     1,
				FiresAt:       leg2Start.Add(-time.Duration(offset) * time.Minute),
				MinutesBefore: &offset,
				Enabled:       true,
				Label:         "Leave for leg 2" + lineSuffix(d.Leg2Lines),
				Icon:          "walk",
				Leg:           2,
			})
		}
	}

	return plan, nil
}

// appendFuture keeps the entry only if it fires strictly in the future.
func appendFuture(plan []duty.ScheduledAlarm, now time.Time, a duty.ScheduledAlarm) []duty.ScheduledAlarm {
	if !a.FiresAt.After(now) {
		return plan
	}
	return append(plan, a)
}

// dayBeforeAt resolves the day-before reminder instant: the civil day before
// the duty date, at the configured wall-clock time.
func dayBeforeAt(date string, hour, minute int, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, err
	}
	eve := day.AddDate(0, 0, -1).Format("2006-01-02")
	return duty.CombineLocal(eve, fmt.Sprintf("%02d:%02d", hour, minute), loc)
}

func lineSuffix(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return " (" + strings.Join(lines, ", ") + ")"
}
