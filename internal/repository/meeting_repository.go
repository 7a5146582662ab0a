package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
)

const (
	meetingColumns  = `id, coach_id, student_id, date, start_time, rating, notes, created_at`
	meetingOrdering = ` ORDER BY date ASC, start_time ASC, id ASC`

	uniqueViolation = "23505"
)

// MeetingRepository persists confirmed bookings.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

func (r *MeetingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a meeting and fills its store-issued id and creation time.
// A duplicate (coach, date, start) maps to ErrSlotUnavailable.
func (r *MeetingRepository) Create(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error {
	if meeting == nil {
		return fmt.Errorf("meeting payload is nil")
	}
	const query = `
INSERT INTO meetings (coach_id, student_id, date, start_time, rating, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		meeting.CoachID,
		meeting.StudentID,
		meeting.Date,
		meeting.StartTime,
		meeting.Rating,
		meeting.Notes,
	)
	if err := row.Scan(&meeting.ID, &meeting.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return appErrors.ErrSlotUnavailable
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	meeting.ComputeEnd()
	return nil
}

// ExistsForSlot reports whether a meeting already occupies the slot.
func (r *MeetingRepository) ExistsForSlot(ctx context.Context, exec sqlx.ExtContext, slot models.Slot) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM meetings WHERE coach_id = $1 AND date = $2 AND start_time = $3)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, slot.CoachID, slot.Date, slot.StartTime); err != nil {
		return false, fmt.Errorf("check meeting for slot: %w", err)
	}
	return exists, nil
}

// FindByID returns a single meeting.
func (r *MeetingRepository) FindByID(ctx context.Context, id int64) (*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, fmt.Errorf("find meeting %d: %w", id, err)
	}
	meeting.ComputeEnd()
	return &meeting, nil
}

// ListByCoach returns every meeting of a coach ordered by date, start and id.
func (r *MeetingRepository) ListByCoach(ctx context.Context, coachID string) ([]models.Meeting, error) {
	return r.listBy(ctx, "coach_id", coachID)
}

// ListByStudent returns every meeting of a student ordered by date, start and id.
func (r *MeetingRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Meeting, error) {
	return r.listBy(ctx, "student_id", studentID)
}

func (r *MeetingRepository) listBy(ctx context.Context, column, value string) ([]models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE ` + column + ` = $1` + meetingOrdering
	meetings := []models.Meeting{}
	if err := r.db.SelectContext(ctx, &meetings, query, value); err != nil {
		return nil, fmt.Errorf("list meetings by %s: %w", column, err)
	}
	for i := range meetings {
		meetings[i].ComputeEnd()
	}
	return meetings, nil
}
