package models

// Duty represents a saved duty ("service"): one timetabled work period with
// one or two legs.
type Duty struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Leg1Start string    `json:"leg1Start"`
	Leg1End   string    `json:"leg1End"`
	HasLeg2   bool      `json:"hasLeg2"`
	Leg2Start string    `json:"leg2Start,omitempty"`
	Leg2End   string    `json:"leg2End,omitempty"`
	Leg1Lines []string  `json:"leg1Lines,omitempty"`
	Leg2Lines []string  `json:"leg2Lines,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// DutyCreateRequest is the request body for creating a duty.
// Date is YYYY-MM-DD; leg times are HH:mm local wall clock.
type DutyCreateRequest struct {
	Date      string   `json:"date" validate:"required,date_ymd"`
	Leg1Start string   `json:"leg1Start" validate:"required,time_hhmm"`
	Leg1End   string   `json:"leg1End" validate:"required,time_hhmm"`
	HasLeg2   bool     `json:"hasLeg2"`
	Leg2Start string   `json:"leg2Start,omitempty" validate:"omitempty,time_hhmm"`
	Leg2End   string   `json:"leg2End,omitempty" validate:"omitempty,time_hhmm"`
	Leg1Lines []string `json:"leg1Lines,omitempty"`
	Leg2Lines []string `json:"leg2Lines,omitempty"`
}

// DutyUpdateRequest is the request body for updating a duty.
// Nil fields are left unchanged.
type DutyUpdateRequest struct {
	Date      *string  `json:"date,omitempty" validate:"omitempty,date_ymd"`
	Leg1Start *string  `json:"leg1Start,omitempty" validate:"omitempty,time_hhmm"`
	Leg1End   *string  `json:"leg1End,omitempty" validate:"omitempty,time_hhmm"`
	HasLeg2   *bool    `json:"hasLeg2,omitempty"`
	Leg2Start *string  `json:"leg2Start,omitempty" validate:"omitempty,time_hhmm"`
	Leg2End   *string  `json:"leg2End,omitempty" validate:"omitempty,time_hhmm"`
	Leg1Lines []string `json:"leg1Lines,omitempty"`
	Leg2Lines []string `json:"leg2Lines,omitempty"`
}

// DutyList represents a list of duties.
type DutyList struct {
	Items []Duty `json:"items"`
}
