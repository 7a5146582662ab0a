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

const directoryColumns = `id, first_name, last_name, created_at`

// CoachRepository reads the coach directory.
type CoachRepository struct {
	db *sqlx.DB
}

// NewCoachRepository constructs the repository.
func NewCoachRepository(db *sqlx.DB) *CoachRepository {
	return &CoachRepository{db: db}
}

// List returns all coaches ordered by name.
func (r *CoachRepository) List(ctx context.Context) ([]models.Coach, error) {
	query := `SELECT ` + directoryColumns + ` FROM coaches ORDER BY first_name ASC, last_name ASC, id ASC`
	coaches := []models.Coach{}
	if err := r.db.SelectContext(ctx, &coaches, query); err != nil {
		return nil, fmt.Errorf("list coaches: %w", err)
	}
	return coaches, nil
}

// FindByID returns a coach or ErrNotFound.
func (r *CoachRepository) FindByID(ctx context.Context, id string) (*models.Coach, error) {
	query := `SELECT ` + directoryColumns + ` FROM coaches WHERE id = $1`
	var coach models.Coach
	if err := r.db.GetContext(ctx, &coach, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "coach not found")
		}
		return nil, fmt.Errorf("find coach %s: %w", id, err)
	}
	return &coach, nil
}

// FindByIDs returns the coaches that exist among ids; unknown ids are absent from the result.
func (r *CoachRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Coach, error) {
	out := make(map[string]models.Coach, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + directoryColumns + ` FROM coaches WHERE id = ANY($1)`
	var coaches []models.Coach
	if err := r.db.SelectContext(ctx, &coaches, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find coaches: %w", err)
	}
	for _, coach := range coaches {
		out[coach.ID] = coach
	}
	return out, nil
}

// StudentRepository reads the student directory.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student or ErrNotFound.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + directoryColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("find student %s: %w", id, err)
	}
	return &student, nil
}

// FindByIDs returns the students that exist among ids.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	out := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + directoryColumns + ` FROM students WHERE id = ANY($1)`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	for _, student := range students {
		out[student.ID] = student
	}
	return out, nil
}
