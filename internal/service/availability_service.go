package service

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/DanialBetres/stepful-scheduling/internal/dto"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/lock"
)

// MaxRangeDays bounds a single range listing.
const MaxRangeDays = 366

type availabilityStore interface {
	Get(ctx context.Context, exec sqlx.ExtContext, coachID string) (*models.CoachAvailability, error)
	ReplaceDate(ctx context.Context, exec sqlx.ExtContext, coachID string, date models.Date, slots []string, expectedRevision int64) (int64, error)
}

type slotOccupancy interface {
	ExistsForSlot(ctx context.Context, exec sqlx.ExtContext, slot models.Slot) (bool, error)
}

// AvailabilityConfig tunes the availability store.
type AvailabilityConfig struct {
	MaxAttempts int
}

// AvailabilityService manages the open slots each coach offers.
type AvailabilityService struct {
	store       availabilityStore
	meetings    slotOccupancy
	locker      lock.Locker
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	maxAttempts int
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(
	store availabilityStore,
	meetings slotOccupancy,
	locker lock.Locker,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg AvailabilityConfig,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &AvailabilityService{
		store:       store,
		meetings:    meetings,
		locker:      locker,
		validator:   validate,
		metrics:     metrics,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
	}
}

// AddSlot opens a slot. Adding a slot that is already open is a no-op success;
// adding one that a meeting occupies is rejected. Occupancy is re-checked on
// every attempt, after the snapshot whose revision guards the write.
func (s *AvailabilityService) AddSlot(ctx context.Context, req dto.SlotRequest) (*models.DaySlots, error) {
	slot, err := s.validateSlot(req)
	if err != nil {
		return nil, err
	}

	result, err := s.mutate(ctx, slot, func(doc *models.CoachAvailability) ([]string, bool, error) {
		if s.meetings != nil {
			booked, err := s.meetings.ExistsForSlot(ctx, nil, slot)
			if err != nil {
				return nil, false, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to check existing meetings")
			}
			if booked {
				return nil, false, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot is already booked")
			}
		}
		list, changed := doc.WithSlot(slot.Date, slot.StartTime)
		return list, changed, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAvailabilityChange("add", result.Changed)
	return result, nil
}

// RemoveSlot closes a slot. Removing an absent slot succeeds silently.
func (s *AvailabilityService) RemoveSlot(ctx context.Context, req dto.SlotRequest) (*models.DaySlots, error) {
	slot, err := s.validateSlot(req)
	if err != nil {
		return nil, err
	}
	result, err := s.mutate(ctx, slot, func(doc *models.CoachAvailability) ([]string, bool, error) {
		list, changed := doc.WithoutSlot(slot.Date, slot.StartTime)
		return list, changed, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAvailabilityChange("remove", result.Changed)
	return result, nil
}

// ListSlotsForDate returns the open start times of date in ascending order.
func (s *AvailabilityService) ListSlotsForDate(ctx context.Context, coachID, rawDate string) (*models.DaySlots, error) {
	coachID = strings.TrimSpace(coachID)
	if coachID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "coach id is required")
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	doc, err := s.snapshot(ctx, coachID)
	if err != nil {
		return nil, err
	}
	return &models.DaySlots{CoachID: coachID, Date: date, StartTimes: doc.SlotsFor(date)}, nil
}

// ListSlotsInRange yields (date, start) pairs in [from, to] ascending. The
// sequence reads one snapshot and can be ranged over any number of times.
func (s *AvailabilityService) ListSlotsInRange(ctx context.Context, coachID string, from, to models.Date) (iter.Seq2[models.Date, models.TimeOfDay], error) {
	coachID = strings.TrimSpace(coachID)
	if coachID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "coach id is required")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must not precede its start")
	}
	if to.Time(time.UTC).Sub(from.Time(time.UTC)) >= MaxRangeDays*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range is limited to one year")
	}

	doc, err := s.snapshot(ctx, coachID)
	if err != nil {
		return nil, err
	}

	return func(yield func(models.Date, models.TimeOfDay) bool) {
		for _, date := range doc.Dates(from, to) {
			for _, start := range doc.SlotsFor(date) {
				if !yield(date, start) {
					return
				}
			}
		}
	}, nil
}

// ResolveRange turns a range query into inclusive bounds.
func ResolveRange(q dto.RangeQuery) (models.Date, models.Date, error) {
	if month := strings.TrimSpace(q.Month); month != "" {
		first, err := models.ParseDate(month + "-01")
		if err != nil {
			return models.Date{}, models.Date{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "month must be YYYY-MM")
		}
		last := models.DateOf(first.Time(time.UTC).AddDate(0, 1, -1))
		return first, last, nil
	}
	from, err := parseDate(q.From)
	if err != nil {
		return models.Date{}, models.Date{}, err
	}
	to, err := parseDate(q.To)
	if err != nil {
		return models.Date{}, models.Date{}, err
	}
	return from, to, nil
}

func (s *AvailabilityService) validateSlot(req dto.SlotRequest) (models.Slot, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Slot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	return parseSlot(req.CoachID, req.Date, req.StartTime)
}

func (s *AvailabilityService) snapshot(ctx context.Context, coachID string) (*models.CoachAvailability, error) {
	doc, err := s.store.Get(ctx, nil, coachID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to read availability")
	}
	return doc, nil
}

// mutate applies change under the coach lock, retrying on revision conflicts.
func (s *AvailabilityService) mutate(ctx context.Context, slot models.Slot, change func(*models.CoachAvailability) ([]string, bool, error)) (*models.DaySlots, error) {
	release, err := acquireCoach(ctx, s.locker, s.metrics, slot.CoachID)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		doc, err := s.snapshot(ctx, slot.CoachID)
		if err != nil {
			return nil, err
		}
		list, changed, err := change(doc)
		if err != nil {
			return nil, err
		}
		if changed {
			_, err = s.store.ReplaceDate(ctx, nil, slot.CoachID, slot.Date, list, doc.Revision)
			if errors.Is(err, appErrors.ErrRevisionStale) {
				s.logger.Debug("availability revision moved, retrying",
					zap.String("coach_id", slot.CoachID),
					zap.Int("attempt", attempt))
				continue
			}
			if err != nil {
				return nil, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to store availability")
			}
		}
		if doc.AvailableSlots == nil {
			doc.AvailableSlots = models.SlotMap{}
		}
		doc.AvailableSlots[slot.Date.String()] = list
		return &models.DaySlots{
			CoachID:    slot.CoachID,
			Date:       slot.Date,
			StartTimes: doc.SlotsFor(slot.Date),
			Changed:    changed,
		}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrRevisionStale, "availability kept changing, try again")
}
