package duty

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/shiftwake/shiftwake/internal/api/models"
)

// Validation constants.
const (
	MaxLinesPerLeg = 10
	MaxLineLength  = 16
)

// Format validators for duty fields.
var (
	timeHHMMRegex = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
	dateYMDRegex  = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
)

// Service provides duty management operations: the flow that creates and
// edits the records the scheduling core plans from.
type Service struct {
	repo Repository
}

// NewService creates a new duty service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List retrieves all duties.
func (s *Service) List(ctx context.Context) (*models.DutyList, error) {
	duties, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.Duty, 0, len(duties))
	for _, d := range duties {
		items = append(items, s.toAPIDuty(d))
	}

	return &models.DutyList{Items: items}, nil
}

// Get retrieves a duty by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Duty, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.toAPIDuty(d)
	return &result, nil
}

// Create creates a new duty.
func (s *Service) Create(ctx context.Context, input *models.DutyCreateRequest) (*models.Duty, error) {
	if fieldErrors := s.validateCreateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now()
	d := &Duty{
		ID:        "dty_" + uuid.New().String()[:22],
		Date:      input.Date,
		Leg1Start: input.Leg1Start,
		Leg1End:   input.Leg1End,
		HasLeg2:   input.HasLeg2,
		Leg2Start: input.Leg2Start,
		Leg2End:   input.Leg2End,
		Leg1Lines: input.Leg1Lines,
		Leg2Lines: input.Leg2Lines,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	result := s.toAPIDuty(d)
	return &result, nil
}

// Update updates an existing duty.
func (s *Service) Update(ctx context.Context, id string, input *models.DutyUpdateRequest) (*models.Duty, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Date != nil {
		d.Date = *input.Date
	}
	if input.Leg1Start != nil {
		d.Leg1Start = *input.Leg1Start
	}
	if input.Leg1End != nil {
		d.Leg1End = *input.Leg1End
	}
	if input.HasLeg2 != nil {
		d.HasLeg2 = *input.HasLeg2
	}
	if input.Leg2Start != nil {
		d.Leg2Start = *input.Leg2Start
	}
	if input.Leg2End != nil {
		d.Leg2End = *input.Leg2End
	}
	if input.Leg1Lines != nil {
		d.Leg1Lines = input.Leg1Lines
	}
	if input.Leg2Lines != nil {
		d.Leg2Lines = input.Leg2Lines
	}

	if fieldErrors := s.validateDuty(d); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	d.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	result := s.toAPIDuty(d)
	return &result, nil
}

// Delete deletes a duty.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validateCreateInput(input *models.DutyCreateRequest) []models.FieldError {
	d := &Duty{
		Date:      input.Date,
		Leg1Start: input.Leg1Start,
		Leg1End:   input.Leg1End,
		HasLeg2:   input.HasLeg2,
		Leg2Start: input.Leg2Start,
		Leg2End:   input.Leg2End,
		Leg1Lines: input.Leg1Lines,
		Leg2Lines: input.Leg2Lines,
	}
	return s.validateDuty(d)
}

// validateDuty checks the full duty invariant set, notably that leg 2 times
// are present whenever hasLeg2 is set.
func (s *Service) validateDuty(d *Duty) []models.FieldError {
	var errs []models.FieldError

	if d.Date == "" {
		errs = append(errs, models.FieldError{Field: "date", Message: "is required"})
	} else if !dateYMDRegex.MatchString(d.Date) {
		errs = append(errs, models.FieldError{Field: "date", Message: "must be in YYYY-MM-DD format"})
	}

	errs = append(errs, s.validateLegTime(d.Leg1Start, "leg1Start", true)...)
	errs = append(errs, s.validateLegTime(d.Leg1End, "leg1End", true)...)

	if d.HasLeg2 {
		errs = append(errs, s.validateLegTime(d.Leg2Start, "leg2Start", true)...)
		errs = append(errs, s.validateLegTime(d.Leg2End, "leg2End", true)...)
	} else {
		errs = append(errs, s.validateLegTime(d.Leg2Start, "leg2Start", false)...)
		errs = append(errs, s.validateLegTime(d.Leg2End, "leg2End", false)...)
	}

	errs = append(errs, s.validateLines(d.Leg1Lines, "leg1Lines")...)
	errs = append(errs, s.validateLines(d.Leg2Lines, "leg2Lines")...)

	return errs
}

func (s *Service) validateLegTime(value, field string, required bool) []models.FieldError {
	if value == "" {
		if required {
			return []models.FieldError{{Field: field, Message: "is required"}}
		}
		return nil
	}
	if !timeHHMMRegex.MatchString(value) {
		return []models.FieldError{{Field: field, Message: "must be in HH:mm format"}}
	}
	return nil
}

func (s *Service) validateLines(lines []string, field string) []models.FieldError {
	if len(lines) > MaxLinesPerLeg {
		return []models.FieldError{{Field: field, Message: "must contain at most 10 entries"}}
	}
	for _, line := range lines {
		if line == "" || len(line) > MaxLineLength {
			return []models.FieldError{{Field: field, Message: "entries must be 1-16 characters"}}
		}
	}
	return nil
}

func (s *Service) toAPIDuty(d *Duty) models.Duty {
	return models.Duty{
		ID:        d.ID,
		Date:      d.Date,
		Leg1Start: d.Leg1Start,
		Leg1End:   d.Leg1End,
		HasLeg2:   d.HasLeg2,
		Leg2Start: d.Leg2Start,
		Leg2End:   d.Leg2End,
		Leg1Lines: d.Leg1Lines,
		Leg2Lines: d.Leg2Lines,
		CreatedAt: models.Timestamp(d.CreatedAt),
		UpdatedAt: models.Timestamp(d.UpdatedAt),
	}
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// IsNotFound reports whether err is the duty-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDutyNotFound)
}
