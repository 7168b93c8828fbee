// Package duty holds the duty ("service") domain model: a timetabled work
// period with one or two legs, plus the reminder plan derived from it.
package duty

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors.
var (
	// ErrDutyNotFound is returned when a duty does not exist.
	ErrDutyNotFound = errors.New("duty not found")
)

// AlarmKind identifies the reminder channel a plan entry belongs to.
type AlarmKind string

// Alarm kinds.
const (
	KindDayBefore   AlarmKind = "day_before"
	KindWakeApp     AlarmKind = "wake_app"
	KindNativeClock AlarmKind = "native_clock"
	KindDeparture   AlarmKind = "departure"
)

// Slot bounds per kind. Cancellation enumerates these, so they are the
// authoritative upper limits for slot indices.
const (
	MaxWakeSlots     = 5
	MaxDepartureLegs = 2
)

// Duty represents one timetabled duty period. Leg 1 is mandatory; leg 2 is
// optional. Times are local wall-clock strings (HH:mm), the date is YYYY-MM-DD.
// The scheduling core treats a Duty as immutable for one planning pass.
type Duty struct {
	ID        string
	Date      string
	Leg1Start string
	Leg1End   string
	HasLeg2   bool
	Leg2Start string
	Leg2End   string
	Leg1Lines []string
	Leg2Lines []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledAlarm is one entry of a duty's reminder plan. Plans are produced
// wholesale by the planner and overwrite the previous plan.
type ScheduledAlarm struct {
	Kind          AlarmKind `json:"kind"`
	SlotIndex     int       `json:"slotIndex"`
	FiresAt       time.Time `json:"firesAt"`
	MinutesBefore *int      `json:"minutesBefore,omitempty"`
	Enabled       bool      `json:"enabled"`
	Label         string    `json:"label,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	Leg           int       `json:"leg,omitempty"`

	// Placeholder marks an entry that is never registered directly; the
	// native-clock alarm is created by the day-before cascade instead.
	Placeholder bool `json:"placeholder,omitempty"`
}

// LegStart resolves the wall-clock start of the given leg (1 or 2) to an
// absolute instant in loc.
func (d Duty) LegStart(leg int, loc *time.Location) (time.Time, error) {
	switch leg {
	case 1:
		return CombineLocal(d.Date, d.Leg1Start, loc)
	case 2:
		if !d.HasLeg2 {
			return time.Time{}, fmt.Errorf("duty %s has no leg 2", d.ID)
		}
		return CombineLocal(d.Date, d.Leg2Start, loc)
	default:
		return time.Time{}, fmt.Errorf("invalid leg %d", leg)
	}
}

// CombineLocal combines a YYYY-MM-DD date and an HH:mm time of day into an
// instant in loc. Minute granularity; DST handling is whatever the location's
// wall clock gives for that pairing.
func CombineLocal(date, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine %q %q: %w", date, hhmm, err)
	}
	return t, nil
}
