package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shiftwake/shiftwake/internal/api/models"
	"github.com/shiftwake/shiftwake/internal/api/response"
	"github.com/shiftwake/shiftwake/internal/prefs"
)

// PreferencesHandler handles notification preference endpoints.
type PreferencesHandler struct {
	provider *prefs.Provider
}

// NewPreferencesHandler creates a new PreferencesHandler.
func NewPreferencesHandler(provider *prefs.Provider) *PreferencesHandler {
	return &PreferencesHandler{provider: provider}
}

// GetPreferences handles GET /v1/me/preferences.
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.provider.Get(r.Context())
	if err != nil {
		if errors.Is(err, prefs.ErrPreferencesUnavailable) {
			response.ServiceUnavailable(w, r, "preferences are temporarily unavailable")
			return
		}
		response.InternalError(w, r, "failed to load preferences")
		return
	}
	response.JSON(w, r, http.StatusOK, toAPIPreferences(p))
}

// PutPreferences handles PUT /v1/me/preferences.
func (h *PreferencesHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var input models.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	p := fromAPIPreferences(input)
	if violations := p.Validate(); len(violations) > 0 {
		fieldErrors := make([]models.FieldError, 0, len(violations))
		for _, v := range violations {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "preferences",
				Message: v,
				Code:    "out_of_range",
			})
		}
		response.BadRequest(w, r, "invalid preferences", fieldErrors)
		return
	}

	if err := h.provider.Put(r.Context(), p); err != nil {
		response.ServiceUnavailable(w, r, "failed to store preferences")
		return
	}
	response.JSON(w, r, http.StatusOK, toAPIPreferences(p))
}

func toAPIPreferences(p prefs.NotificationPreferences) models.NotificationPreferences {
	return models.NotificationPreferences{
		DayBefore:      p.DayBefore,
		DayBeforeHour:  p.DayBeforeHour,
		DayBeforeMin:   p.DayBeforeMin,
		WakeApp:        p.WakeApp,
		WakeOffsetsMin: p.WakeOffsetsMin,
		NativeClock:    p.NativeClock,
		NativeOffset:   p.NativeOffset,
		Departure:      p.Departure,
		DepartOffset:   p.DepartOffset,
		Sound:          p.Sound,
	}
}

func fromAPIPreferences(m models.NotificationPreferences) prefs.NotificationPreferences {
	return prefs.NotificationPreferences{
		DayBefore:      m.DayBefore,
		DayBeforeHour:  m.DayBeforeHour,
		DayBeforeMin:   m.DayBeforeMin,
		WakeApp:        m.WakeApp,
		WakeOffsetsMin: m.WakeOffsetsMin,
		NativeClock:    m.NativeClock,
		NativeOffset:   m.NativeOffset,
		Departure:      m.Departure,
		DepartOffset:   m.DepartOffset,
		Sound:          m.Sound,
	}
}
