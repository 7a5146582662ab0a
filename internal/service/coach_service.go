package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
)

type coachReader interface {
	List(ctx context.Context) ([]models.Coach, error)
	FindByID(ctx context.Context, id string) (*models.Coach, error)
}

type availabilityReader interface {
	Get(ctx context.Context, exec sqlx.ExtContext, coachID string) (*models.CoachAvailability, error)
}

type calendarClock interface {
	Today() models.Date
}

// CoachService serves the coach directory used by the student picker.
type CoachService struct {
	coaches      coachReader
	availability availabilityReader
	clock        calendarClock
}

// NewCoachService constructs the service.
func NewCoachService(coaches coachReader, availability availabilityReader, clock calendarClock) *CoachService {
	return &CoachService{coaches: coaches, availability: availability, clock: clock}
}

// List returns every coach.
func (s *CoachService) List(ctx context.Context) ([]models.Coach, error) {
	coaches, err := s.coaches.List(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to list coaches")
	}
	return coaches, nil
}

// Profile returns a coach with open slots from today onwards.
func (s *CoachService) Profile(ctx context.Context, coachID string) (*models.CoachProfile, error) {
	coachID = strings.TrimSpace(coachID)
	if coachID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "coach id is required")
	}
	coach, err := s.coaches.FindByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to load coach")
	}
	doc, err := s.availability.Get(ctx, nil, coachID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to read availability")
	}

	from := s.clock.Today()
	upcoming := make(map[string][]models.TimeOfDay)
	for _, date := range doc.Dates(from, from.AddDays(MaxRangeDays)) {
		upcoming[date.String()] = doc.SlotsFor(date)
	}
	return &models.CoachProfile{Coach: *coach, Availability: upcoming}, nil
}
