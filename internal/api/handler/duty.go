package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiftwake/shiftwake/internal/api/models"
	"github.com/shiftwake/shiftwake/internal/api/response"
	"github.com/shiftwake/shiftwake/internal/duty"
)

// DutyHandler handles duty management endpoints.
type DutyHandler struct {
	service *duty.Service
}

// NewDutyHandler creates a new DutyHandler.
func NewDutyHandler(service *duty.Service) *DutyHandler {
	return &DutyHandler{service: service}
}

// ListDuties handles GET /v1/duties - list saved duties.
func (h *DutyHandler) ListDuties(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list duties")
		return
	}
	response.JSON(w, r, http.StatusOK, list)
}

// CreateDuty handles POST /v1/duties - create a duty.
func (h *DutyHandler) CreateDuty(w http.ResponseWriter, r *http.Request) {
	var input models.DutyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	created, err := h.service.Create(r.Context(), &input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/duties/%s", created.ID)
	response.Created(w, r, location, created)
}

// GetDuty handles GET /v1/duties/{dutyId} - get a duty.
func (h *DutyHandler) GetDuty(w http.ResponseWriter, r *http.Request) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return
	}

	d, err := h.service.Get(r.Context(), dutyID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, d)
}

// UpdateDuty handles PUT /v1/duties/{dutyId} - update a duty.
func (h *DutyHandler) UpdateDuty(w http.ResponseWriter, r *http.Request) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return
	}

	var input models.DutyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	updated, err := h.service.Update(r.Context(), dutyID, &input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, updated)
}

// DeleteDuty handles DELETE /v1/duties/{dutyId} - delete a duty.
func (h *DutyHandler) DeleteDuty(w http.ResponseWriter, r *http.Request) {
	dutyID := chi.URLParam(r, "dutyId")
	if dutyID == "" {
		response.BadRequest(w, r, "dutyId is required", nil)
		return
	}

	if err := h.service.Delete(r.Context(), dutyID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// writeServiceError maps duty service errors to problem responses.
func (h *DutyHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *duty.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "validation failed", validationErr.Errors)
	case errors.Is(err, duty.ErrDutyNotFound):
		response.NotFound(w, r, "duty not found")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
