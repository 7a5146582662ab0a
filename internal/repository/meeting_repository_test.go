package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
)

var meetingRowColumns = []string{"id", "coach_id", "student_id", "date", "start_time", "rating", "notes", "created_at"}

func TestMeetingRepositoryCreate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO meetings (coach_id, student_id, date, start_time, rating, notes)")).
		WithArgs("coach-1", "student-1", "2024-07-01", "14:00", nil, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), fixedNow))

	meeting := &models.Meeting{
		CoachID:   "coach-1",
		StudentID: "student-1",
		Date:      models.Date{Year: 2024, Month: time.July, Day: 1},
		StartTime: models.MustTimeOfDay("14:00"),
	}
	require.NoError(t, repo.Create(context.Background(), nil, meeting))
	assert.Equal(t, int64(11), meeting.ID)
	assert.Equal(t, "16:00", meeting.EndTime.String())
	assert.Equal(t, meeting.Date, meeting.EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryCreateDuplicateSlot(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO meetings")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "meetings_slot_unique"})

	err := repo.Create(context.Background(), nil, &models.Meeting{CoachID: "coach-1", StudentID: "student-2"})
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
}

func TestMeetingRepositoryCreateFailure(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO meetings")).
		WillReturnError(errors.New("disk full"))

	err := repo.Create(context.Background(), nil, &models.Meeting{CoachID: "coach-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrSlotUnavailable)
}

func TestMeetingRepositoryListByStudent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMeetingRepository(db)

	rating := 4.5
	rows := sqlmock.NewRows(meetingRowColumns).
		AddRow(int64(1), "coach-1", "student-1", time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), "23:00", nil, "", fixedNow).
		AddRow(int64(2), "coach-2", "student-1", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "09:30", []byte("4.5"), "great", fixedNow)
	mock.ExpectQuery(regexp.QuoteMeta("FROM meetings WHERE student_id = $1 ORDER BY date ASC, start_time ASC, id ASC")).
		WithArgs("student-1").
		WillReturnRows(rows)

	meetings, err := repo.ListByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	assert.Nil(t, meetings[0].Rating)
	assert.Equal(t, "2024-06-10", meetings[0].EndDate.String())
	assert.Equal(t, "01:00", meetings[0].EndTime.String())
	require.NotNil(t, meetings[1].Rating)
	assert.Equal(t, rating, *meetings[1].Rating)
	assert.Equal(t, "09:30", meetings[1].StartTime.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryListByCoachEmpty(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM meetings WHERE coach_id = $1")).
		WithArgs("coach-1").
		WillReturnRows(sqlmock.NewRows(meetingRowColumns))

	meetings, err := repo.ListByCoach(context.Background(), "coach-1")
	require.NoError(t, err)
	assert.NotNil(t, meetings)
	assert.Empty(t, meetings)
}

func TestMeetingRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM meetings WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(meetingRowColumns))

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestMeetingRepositoryExistsForSlot(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMeetingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM meetings WHERE coach_id = $1 AND date = $2 AND start_time = $3)")).
		WithArgs("coach-1", "2024-05-01", "09:00").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForSlot(context.Background(), nil, models.Slot{
		CoachID:   "coach-1",
		Date:      models.Date{Year: 2024, Month: time.May, Day: 1},
		StartTime: models.MustTimeOfDay("09:00"),
	})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
