package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
)

const availabilityColumns = `coach_id, available_slots, booked_slots, revision, updated_at`

// mergeAvailabilityQuery shallow-merges per-date lists into the coach document.
// The update only applies while the stored revision still equals $5.
const mergeAvailabilityQuery = `
INSERT INTO coach_availability (coach_id, available_slots, booked_slots, revision, updated_at)
VALUES ($1, $2::jsonb, $3::jsonb, 1, $4)
ON CONFLICT (coach_id) DO UPDATE
SET available_slots = coach_availability.available_slots || EXCLUDED.available_slots,
    booked_slots = coach_availability.booked_slots || EXCLUDED.booked_slots,
    revision = coach_availability.revision + 1,
    updated_at = EXCLUDED.updated_at
WHERE coach_availability.revision = $5
RETURNING revision`

// AvailabilityRepository persists per-coach availability documents.
type AvailabilityRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db, now: time.Now}
}

func (r *AvailabilityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Get returns the coach document, or an empty revision-0 document when none exists.
func (r *AvailabilityRepository) Get(ctx context.Context, exec sqlx.ExtContext, coachID string) (*models.CoachAvailability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM coach_availability WHERE coach_id = $1`
	return r.get(ctx, exec, query, coachID)
}

// GetForUpdate is Get with a row lock; call it inside a transaction.
func (r *AvailabilityRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, coachID string) (*models.CoachAvailability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM coach_availability WHERE coach_id = $1 FOR UPDATE`
	return r.get(ctx, exec, query, coachID)
}

func (r *AvailabilityRepository) get(ctx context.Context, exec sqlx.ExtContext, query, coachID string) (*models.CoachAvailability, error) {
	var doc models.CoachAvailability
	if err := sqlx.GetContext(ctx, r.exec(exec), &doc, query, coachID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EmptyAvailability(coachID), nil
		}
		return nil, fmt.Errorf("get availability %s: %w", coachID, err)
	}
	if doc.AvailableSlots == nil {
		doc.AvailableSlots = models.SlotMap{}
	}
	if doc.BookedSlots == nil {
		doc.BookedSlots = models.BookedMap{}
	}
	return &doc, nil
}

// ReplaceDate stores the complete open list for one date. It returns the new
// revision or ErrRevisionStale when expectedRevision is outdated.
func (r *AvailabilityRepository) ReplaceDate(ctx context.Context, exec sqlx.ExtContext, coachID string, date models.Date, slots []string, expectedRevision int64) (int64, error) {
	available := models.SlotMap{date.String(): nonNil(slots)}
	return r.merge(ctx, exec, coachID, available, models.BookedMap{}, expectedRevision)
}

// CommitBooking stores the open list and booked list of one date in a single statement.
func (r *AvailabilityRepository) CommitBooking(ctx context.Context, exec sqlx.ExtContext, coachID string, date models.Date, slots []string, booked []int64, expectedRevision int64) (int64, error) {
	key := date.String()
	available := models.SlotMap{key: nonNil(slots)}
	bookedMap := models.BookedMap{key: booked}
	return r.merge(ctx, exec, coachID, available, bookedMap, expectedRevision)
}

func (r *AvailabilityRepository) merge(ctx context.Context, exec sqlx.ExtContext, coachID string, available models.SlotMap, booked models.BookedMap, expectedRevision int64) (int64, error) {
	var revision int64
	row := r.exec(exec).QueryRowxContext(ctx, mergeAvailabilityQuery, coachID, available, booked, r.now().UTC(), expectedRevision)
	if err := row.Scan(&revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.ErrRevisionStale
		}
		return 0, fmt.Errorf("merge availability %s: %w", coachID, err)
	}
	return revision, nil
}

func nonNil(slots []string) []string {
	if slots == nil {
		return []string{}
	}
	return slots
}
