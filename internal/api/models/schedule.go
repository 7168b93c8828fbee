package models

// PlanEntry is one scheduled alarm of a duty's reminder plan, as exposed by
// the API.
type PlanEntry struct {
	Kind          string    `json:"kind"`
	SlotIndex     int       `json:"slotIndex"`
	FiresAt       Timestamp `json:"firesAt"`
	MinutesBefore *int      `json:"minutesBefore,omitempty"`
	Enabled       bool      `json:"enabled"`
	Label         string    `json:"label,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	Leg           int       `json:"leg,omitempty"`
	Placeholder   bool      `json:"placeholder,omitempty"`
}

// ScheduleResult reports the outcome of a schedule or reschedule call.
type ScheduleResult struct {
	DutyID     string      `json:"dutyId"`
	Registered int         `json:"registered"`
	Plan       []PlanEntry `json:"plan,omitempty"`
}

// TriggerFireRequest is the timer facility's delivery callback payload.
type TriggerFireRequest struct {
	DutyID      string `json:"dutyId" validate:"required"`
	Kind        string `json:"kind" validate:"required"`
	SlotIndex   int    `json:"slotIndex" validate:"gte=0"`
	SnoozeCount int    `json:"snoozeCount,omitempty" validate:"gte=0,lte=3"`
}

// SnoozeStateResponse reports the wake alarm state after a user action.
type SnoozeStateResponse struct {
	DutyID      string `json:"dutyId"`
	SlotIndex   int    `json:"slotIndex"`
	SnoozeCount int    `json:"snoozeCount"`
	Dismissed   bool   `json:"dismissed"`
}
