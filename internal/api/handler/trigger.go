package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/api/models"
	"github.com/shiftwake/shiftwake/internal/api/response"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// TriggerHandler handles the timer facility's delivery callback and the
// snooze actions a user takes on a ringing wake alarm.
type TriggerHandler struct {
	dispatcher *alarm.Dispatcher
	sessions   *alarm.SnoozeSessions
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(dispatcher *alarm.Dispatcher, sessions *alarm.SnoozeSessions) *TriggerHandler {
	return &TriggerHandler{dispatcher: dispatcher, sessions: sessions}
}

// Fire handles POST /v1/triggers/fire - a trigger delivery from a timer
// facility that calls back over HTTP. Delivery is idempotent: redelivering
// the same trigger re-shows the reminder.
func (h *TriggerHandler) Fire(w http.ResponseWriter, r *http.Request) {
	var input models.TriggerFireRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateFireRequest(&input); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid trigger", fieldErrors)
		return
	}

	h.dispatcher.HandleTrigger(r.Context(), timer.Payload{
		DutyID:      input.DutyID,
		Kind:        duty.AlarmKind(input.Kind),
		SlotIndex:   input.SlotIndex,
		SnoozeCount: input.SnoozeCount,
	})

	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

// Snooze handles POST /v1/triggers/{dutyId}/wake/{slot}/snooze.
func (h *TriggerHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	dutyID, slot, ok := wakeParams(w, r)
	if !ok {
		return
	}

	state, err := h.sessions.Snooze(r.Context(), dutyID, slot)
	h.writeSnoozeState(w, r, state, err)
}

// Dismiss handles POST /v1/triggers/{dutyId}/wake/{slot}/dismiss.
func (h *TriggerHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	dutyID, slot, ok := wakeParams(w, r)
	if !ok {
		return
	}

	state, err := h.sessions.Dismiss(r.Context(), dutyID, slot)
	h.writeSnoozeState(w, r, state, err)
}

// DeleteFuture handles POST /v1/triggers/{dutyId}/wake/{slot}/delete-future -
// dismiss this wake alarm and drop every later wake slot of the same duty.
func (h *TriggerHandler) DeleteFuture(w http.ResponseWriter, r *http.Request) {
	dutyID, slot, ok := wakeParams(w, r)
	if !ok {
		return
	}

	state, err := h.sessions.DeleteFutureAlarms(r.Context(), dutyID, slot)
	h.writeSnoozeState(w, r, state, err)
}

// State handles GET /v1/triggers/{dutyId}/wake/{slot} - current snooze state.
func (h *TriggerHandler) State(w http.ResponseWriter, r *http.Request) {
	dutyID, slot, ok := wakeParams(w, r)
	if !ok {
		return
	}

	state, active := h.sessions.State(dutyID, slot)
	if !active {
		response.NotFound(w, r, "no active wake alarm")
		return
	}
	h.writeSnoozeState(w, r, state, nil)
}

func (h *TriggerHandler) writeSnoozeState(w http.ResponseWriter, r *http.Request, state alarm.SnoozeState, err error) {
	if err != nil {
		if errors.Is(err, alarm.ErrNoActiveAlarm) {
			response.NotFound(w, r, "no active wake alarm")
			return
		}
		response.InternalError(w, r, "snooze action failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.SnoozeStateResponse{
		DutyID:      state.DutyID,
		SlotIndex:   state.SlotIndex,
		SnoozeCount: state.SnoozeCount,
		Dismissed:   state.Dismissed,
	})
}

// wakeParams extracts and validates the {dutyId}/{slot} URL parameters.
func wakeParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return "", 0, false
	}

	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < 0 || slot >= duty.MaxWakeSlots {
		response.BadRequest(w, r, "slot must be an integer in [0,4]", nil)
		return "", 0, false
	}

	return dutyID, slot, true
}

func validateFireRequest(input *models.TriggerFireRequest) []models.FieldError {
	var fieldErrors []models.FieldError

	if input.DutyID == "" {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "dutyId", Message: "is required", Code: "required",
		})
	}

	maxSlot := 1
	switch duty.AlarmKind(input.Kind) {
	case duty.KindWakeApp:
		maxSlot = duty.MaxWakeSlots
	case duty.KindDeparture:
		maxSlot = duty.MaxDepartureLegs
	case duty.KindDayBefore, duty.KindNativeClock:
	default:
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "kind", Message: "unknown alarm kind", Code: "invalid_value",
		})
	}

	if input.SlotIndex < 0 || input.SlotIndex >= maxSlot {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "slotIndex", Message: "out of range for kind", Code: "out_of_range",
		})
	}

	if input.SnoozeCount < 0 || input.SnoozeCount > alarm.MaxSnoozes+1 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "snoozeCount", Message: "out of range", Code: "out_of_range",
		})
	}

	return fieldErrors
}
