package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/lock"
)

const defaultMaxAttempts = 3

// parseSlot validates raw caller input into a slot on the 30-minute grid.
func parseSlot(coachID, rawDate, rawStart string) (models.Slot, error) {
	coachID = strings.TrimSpace(coachID)
	if coachID == "" {
		return models.Slot{}, appErrors.Clone(appErrors.ErrValidation, "coach id is required")
	}
	date, err := models.ParseDate(strings.TrimSpace(rawDate))
	if err != nil {
		return models.Slot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	start, err := models.ParseTimeOfDay(rawStart)
	if err != nil {
		return models.Slot{}, appErrors.WrapAs(err, appErrors.ErrInvalidSlot, "start time must be HH:MM")
	}
	if !models.IsValidStartTime(start) {
		return models.Slot{}, appErrors.ErrInvalidSlot
	}
	return models.Slot{CoachID: coachID, Date: date, StartTime: start}, nil
}

// parseDate validates a raw calendar day.
func parseDate(raw string) (models.Date, error) {
	date, err := models.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return models.Date{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	return date, nil
}

// acquireCoach takes the per-coach critical section.
func acquireCoach(ctx context.Context, locker lock.Locker, metrics *MetricsService, coachID string) (lock.Release, error) {
	if locker == nil {
		return func() {}, nil
	}
	start := time.Now()
	release, err := locker.Acquire(ctx, coachID)
	metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, appErrors.WrapAs(err, appErrors.ErrLockTimeout, "")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to lock coach calendar")
	}
	return release, nil
}
