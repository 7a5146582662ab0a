package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	"github.com/DanialBetres/stepful-scheduling/pkg/jobs"
)

// JobInvalidateMeetings drops cached meeting partitions after a booking.
const JobInvalidateMeetings = "meetings.invalidate"

type invalidationPayload struct {
	CoachID   string
	StudentID string
	// Bumped records that the generations already moved in the caller's path.
	Bumped bool
}

type jobSubmitter interface {
	Register(jobType string, handler jobs.Handler)
	Submit(jobType string, payload interface{}) (string, error)
}

// MeetingInvalidator evicts both parties' cached listings in the background.
type MeetingInvalidator struct {
	queue  jobSubmitter
	cache  *CacheService
	logger *zap.Logger
}

// NewMeetingInvalidator registers the eviction handler on queue.
func NewMeetingInvalidator(queue jobSubmitter, cache *CacheService, logger *zap.Logger) *MeetingInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	inv := &MeetingInvalidator{queue: queue, cache: cache, logger: logger}
	if queue != nil {
		queue.Register(JobInvalidateMeetings, inv.handle)
	}
	return inv
}

// InvalidateMeetings moves both parties to a new listing generation before
// returning, so neither can read a listing from before the change. Dropping
// the superseded entries is left to the queue; when the queue rejects the job
// the entries are dropped inline.
func (i *MeetingInvalidator) InvalidateMeetings(coachID, studentID string) {
	if i == nil || !i.cache.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := invalidationPayload{CoachID: coachID, StudentID: studentID}
	if err := i.bump(ctx, payload); err != nil {
		i.logger.Warn("generation bump failed, deferring to queue", zap.String("coach_id", coachID), zap.String("student_id", studentID), zap.Error(err))
	} else {
		payload.Bumped = true
	}

	if i.queue != nil {
		_, err := i.queue.Submit(JobInvalidateMeetings, payload)
		if err == nil {
			return
		}
		i.logger.Warn("queue rejected invalidation, evicting inline", zap.Error(err))
	}
	if err := i.evict(ctx, payload); err != nil {
		i.logger.Warn("inline invalidation failed", zap.String("coach_id", coachID), zap.String("student_id", studentID), zap.Error(err))
	}
}

func (i *MeetingInvalidator) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(invalidationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return i.evict(ctx, payload)
}

func (i *MeetingInvalidator) bump(ctx context.Context, payload invalidationPayload) error {
	if err := i.cache.BumpMeetings(ctx, models.RoleCoach, payload.CoachID); err != nil {
		return err
	}
	return i.cache.BumpMeetings(ctx, models.RoleStudent, payload.StudentID)
}

func (i *MeetingInvalidator) evict(ctx context.Context, payload invalidationPayload) error {
	if !payload.Bumped {
		if err := i.bump(ctx, payload); err != nil {
			return err
		}
	}
	if err := i.cache.Invalidate(ctx, MeetingsPattern(models.RoleCoach, payload.CoachID)); err != nil {
		return err
	}
	return i.cache.Invalidate(ctx, MeetingsPattern(models.RoleStudent, payload.StudentID))
}
