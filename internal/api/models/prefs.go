package models

// NotificationPreferences represents the user's reminder channel settings.
// Each channel toggles independently; enabling the native clock channel forces
// the day-before channel during planning, since the day-before reminder is
// what arms the native alarm.
type NotificationPreferences struct {
	DayBefore      bool   `json:"dayBefore"`
	DayBeforeHour  int    `json:"dayBeforeHour" validate:"gte=0,lte=23"`
	DayBeforeMin   int    `json:"dayBeforeMinute" validate:"gte=0,lte=59"`
	WakeApp        bool   `json:"wakeApp"`
	WakeOffsetsMin []int  `json:"wakeOffsetsMinutes" validate:"max=5,dive,gte=0,lte=999"`
	NativeClock    bool   `json:"nativeClock"`
	NativeOffset   int    `json:"nativeClockOffsetMinutes" validate:"gte=0,lte=999"`
	Departure      bool   `json:"departure"`
	DepartOffset   int    `json:"departureOffsetMinutes" validate:"gte=0,lte=999"`
	Sound          string `json:"sound,omitempty"`
}
