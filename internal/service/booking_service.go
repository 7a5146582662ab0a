package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/DanialBetres/stepful-scheduling/internal/dto"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/lock"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type bookingAvailabilityStore interface {
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, coachID string) (*models.CoachAvailability, error)
	CommitBooking(ctx context.Context, exec sqlx.ExtContext, coachID string, date models.Date, slots []string, booked []int64, expectedRevision int64) (int64, error)
}

type bookingMeetingStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error
}

type meetingCacheInvalidator interface {
	InvalidateMeetings(coachID, studentID string)
}

// BookingConfig tunes the ledger.
type BookingConfig struct {
	MaxAttempts int
}

// BookingService moves a slot from available to booked and records the meeting.
type BookingService struct {
	availability bookingAvailabilityStore
	meetings     bookingMeetingStore
	tx           txProvider
	locker       lock.Locker
	invalidator  meetingCacheInvalidator
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	maxAttempts  int
}

// NewBookingService wires the ledger dependencies.
func NewBookingService(
	availability bookingAvailabilityStore,
	meetings bookingMeetingStore,
	tx txProvider,
	locker lock.Locker,
	invalidator meetingCacheInvalidator,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg BookingConfig,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &BookingService{
		availability: availability,
		meetings:     meetings,
		tx:           tx,
		locker:       locker,
		invalidator:  invalidator,
		validator:    validate,
		metrics:      metrics,
		logger:       logger,
		maxAttempts:  cfg.MaxAttempts,
	}
}

// Book reserves the slot for the student. The slot must still be open when the
// transaction commits; otherwise the caller gets ErrSlotUnavailable.
func (s *BookingService) Book(ctx context.Context, req dto.BookingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordBooking(BookingOutcomeInvalid, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	slot, err := parseSlot(req.CoachID, req.Date, req.StartTime)
	if err != nil {
		s.metrics.RecordBooking(BookingOutcomeInvalid, 0)
		return nil, err
	}
	studentID := strings.TrimSpace(req.StudentID)

	release, err := acquireCoach(ctx, s.locker, s.metrics, slot.CoachID)
	if err != nil {
		s.metrics.RecordBooking(BookingOutcomeBusy, 0)
		return nil, err
	}
	defer release()

	logger := s.logger.With(
		zap.String("coach_id", slot.CoachID),
		zap.String("student_id", studentID),
		zap.Stringer("date", slot.Date),
		zap.Stringer("start_time", slot.StartTime),
	)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		meeting, err := s.attempt(ctx, slot, studentID)
		switch {
		case err == nil:
			s.metrics.RecordBooking(BookingOutcomeBooked, attempt)
			logger.Info("slot booked", zap.Int64("meeting_id", meeting.ID), zap.Int("attempt", attempt))
			if s.invalidator != nil {
				s.invalidator.InvalidateMeetings(slot.CoachID, studentID)
			}
			return meeting, nil
		case errors.Is(err, appErrors.ErrRevisionStale):
			logger.Debug("availability revision moved, retrying", zap.Int("attempt", attempt))
			continue
		case errors.Is(err, appErrors.ErrSlotUnavailable):
			s.metrics.RecordBooking(BookingOutcomeUnavailable, attempt)
			logger.Info("slot unavailable", zap.Int("attempt", attempt))
			return nil, err
		default:
			s.metrics.RecordBooking(BookingOutcomeError, attempt)
			logger.Error("booking failed", zap.Error(err))
			return nil, err
		}
	}

	s.metrics.RecordBooking(BookingOutcomeUnavailable, s.maxAttempts)
	logger.Warn("booking lost every revision race")
	return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot is in high demand, please pick another")
}

// attempt runs one check-then-act inside a single transaction. Every write
// either commits together or rolls back together.
func (s *BookingService) attempt(ctx context.Context, slot models.Slot, studentID string) (meeting *models.Meeting, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc, err := s.availability.GetForUpdate(ctx, tx, slot.CoachID)
	if err != nil {
		err = appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to read availability")
		return nil, err
	}
	if !doc.HasSlot(slot.Date, slot.StartTime) {
		err = appErrors.ErrSlotUnavailable
		return nil, err
	}
	remaining, _ := doc.WithoutSlot(slot.Date, slot.StartTime)

	meeting = &models.Meeting{
		CoachID:   slot.CoachID,
		StudentID: studentID,
		Date:      slot.Date,
		StartTime: slot.StartTime,
	}
	if err = s.meetings.Create(ctx, tx, meeting); err != nil {
		if !errors.Is(err, appErrors.ErrSlotUnavailable) {
			err = appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to record meeting")
		}
		return nil, err
	}

	booked := doc.BookedWith(slot.Date, meeting.ID)
	if _, err = s.availability.CommitBooking(ctx, tx, slot.CoachID, slot.Date, remaining, booked, doc.Revision); err != nil {
		if !errors.Is(err, appErrors.ErrRevisionStale) {
			err = appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to update availability")
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to commit booking")
		return nil, err
	}
	meeting.ComputeEnd()
	return meeting, nil
}
