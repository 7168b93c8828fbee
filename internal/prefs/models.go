// Package prefs holds the user's notification preferences and a cached
// snapshot provider over their storage.
package prefs

import (
	"context"
	"errors"
)

// ErrPreferencesUnavailable is returned when preferences cannot be read.
// A planning pass that hits this aborts for its duty only.
var ErrPreferencesUnavailable = errors.New("notification preferences unavailable")

// Limits on preference values.
const (
	MaxWakeOffsets = 5
	MaxOffsetMin   = 999
)

// NotificationPreferences holds the four reminder channel toggles and their
// parameters. A zero Sound means the default reminder sound.
type NotificationPreferences struct {
	DayBefore      bool
	DayBeforeHour  int
	DayBeforeMin   int
	WakeApp        bool
	WakeOffsetsMin []int
	NativeClock    bool
	NativeOffset   int
	Departure      bool
	DepartOffset   int
	Sound          string
}

// Default returns the out-of-the-box preferences: wake-up reminders at 60 and
// 30 minutes before the first leg, day-before heads-up at 18:00.
func Default() NotificationPreferences {
	return NotificationPreferences{
		DayBefore:      true,
		DayBeforeHour:  18,
		DayBeforeMin:   0,
		WakeApp:        true,
		WakeOffsetsMin: []int{60, 30},
		NativeClock:    false,
		NativeOffset:   45,
		Departure:      true,
		DepartOffset:   15,
	}
}

// DayBeforeEffective reports whether the day-before channel must be treated
// as enabled. Enabling the native clock forces it: the day-before cascade is
// the only mechanism that arms the native alarm.
func (p NotificationPreferences) DayBeforeEffective() bool {
	return p.DayBefore || p.NativeClock
}

// Validate checks preference bounds. It returns a list of violation messages,
// empty when the preferences are valid.
func (p NotificationPreferences) Validate() []string {
	var errs []string

	if p.DayBeforeHour < 0 || p.DayBeforeHour > 23 {
		errs = append(errs, "dayBeforeHour must be between 0 and 23")
	}
	if p.DayBeforeMin < 0 || p.DayBeforeMin > 59 {
		errs = append(errs, "dayBeforeMinute must be between 0 and 59")
	}
	if len(p.WakeOffsetsMin) > MaxWakeOffsets {
		errs = append(errs, "wakeOffsetsMinutes must contain at most 5 entries")
	}
	for _, off := range p.WakeOffsetsMin {
		if off < 0 || off > MaxOffsetMin {
			errs = append(errs, "wakeOffsetsMinutes entries must be between 0 and 999")
			break
		}
	}
	if p.NativeOffset < 0 || p.NativeOffset > MaxOffsetMin {
		errs = append(errs, "nativeClockOffsetMinutes must be between 0 and 999")
	}
	if p.DepartOffset < 0 || p.DepartOffset > MaxOffsetMin {
		errs = append(errs, "departureOffsetMinutes must be between 0 and 999")
	}

	return errs
}

// Repository defines the interface for preference storage.
type Repository interface {
	// Get retrieves the stored preferences.
	Get(ctx context.Context) (NotificationPreferences, error)

	// Put replaces the stored preferences.
	Put(ctx context.Context, p NotificationPreferences) error
}
