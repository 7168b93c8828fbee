package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/api/models"
	"github.com/shiftwake/shiftwake/internal/api/response"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// ScheduleHandler handles alarm scheduling endpoints.
type ScheduleHandler struct {
	scheduler *alarm.Scheduler
	duties    duty.Repository
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduler *alarm.Scheduler, duties duty.Repository) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler, duties: duties}
}

// Schedule handles POST /v1/duties/{dutyId}/schedule - plan and register all
// reminders for a duty.
func (h *ScheduleHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return
	}

	registered, err := h.scheduler.ScheduleAll(r.Context(), dutyID)
	h.writeScheduleResult(w, r, dutyID, registered, err)
}

// Reschedule handles POST /v1/duties/{dutyId}/reschedule - cancel and replan.
func (h *ScheduleHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return
	}

	registered, err := h.scheduler.RescheduleAllForService(r.Context(), dutyID)
	h.writeScheduleResult(w, r, dutyID, registered, err)
}

// CancelAlarms handles DELETE /v1/duties/{dutyId}/alarms - cancel every
// registered trigger for a duty.
func (h *ScheduleHandler) CancelAlarms(w http.ResponseWriter, r *http.Request) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return
	}

	if err := h.scheduler.CancelAllForService(r.Context(), dutyID); err != nil {
		response.InternalError(w, r, "failed to cancel alarms")
		return
	}
	response.NoContent(w, r)
}

// GetPlan handles GET /v1/duties/{dutyId}/plan - the stored reminder plan.
func (h *ScheduleHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return
	}

	plan, err := h.duties.GetPlan(r.Context(), dutyID)
	if err != nil {
		if errors.Is(err, duty.ErrDutyNotFound) {
			response.NotFound(w, r, "duty not found")
			return
		}
		response.InternalError(w, r, "failed to load plan")
		return
	}

	result := models.ScheduleResult{
		DutyID: dutyID,
		Plan:   toAPIPlan(plan),
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *ScheduleHandler) writeScheduleResult(w http.ResponseWriter, r *http.Request, dutyID string, registered int, err error) {
	if err != nil {
		switch {
		case errors.Is(err, duty.ErrDutyNotFound):
			response.NotFound(w, r, "duty not found")
		case errors.Is(err, timer.ErrPermissionDenied):
			response.PermissionNeeded(w, r)
		case errors.Is(err, prefs.ErrPreferencesUnavailable):
			response.ServiceUnavailable(w, r, "preferences are temporarily unavailable")
		default:
			response.InternalError(w, r, "scheduling failed")
		}
		return
	}

	plan, err := h.duties.GetPlan(r.Context(), dutyID)
	if err != nil {
		// The triggers are registered; report the count without the plan.
		plan = nil
	}

	result := models.ScheduleResult{
		DutyID:     dutyID,
		Registered: registered,
		Plan:       toAPIPlan(plan),
	}
	response.JSON(w, r, http.StatusOK, result)
}

func toAPIPlan(plan []duty.ScheduledAlarm) []models.PlanEntry {
	if plan == nil {
		return nil
	}
	entries := make([]models.PlanEntry, 0, len(plan))
	for _, a := range plan {
		entries = append(entries, models.PlanEntry{
			Kind:          string(a.Kind),
			SlotIndex:     a.SlotIndex,
			FiresAt:       models.Timestamp(a.FiresAt),
			MinutesBefore: a.MinutesBefore,
			Enabled:       a.Enabled,
			Label:         a.Label,
			Icon:          a.Icon,
			Leg:           a.Leg,
			Placeholder:   a.Placeholder,
		})
	}
	return entries
}
