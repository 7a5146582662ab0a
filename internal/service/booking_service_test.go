package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanialBetres/stepful-scheduling/internal/dto"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/lock"
)

type invalidatorSpy struct {
	mu    sync.Mutex
	calls [][2]string
}

func (s *invalidatorSpy) InvalidateMeetings(coachID, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, [2]string{coachID, studentID})
}

type lockerStub struct {
	err error
}

func (l lockerStub) Acquire(context.Context, string) (lock.Release, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

func newBookingFixture(t *testing.T, ledger *memoryLedger, locker lock.Locker) (*BookingService, *invalidatorSpy, sqlmock.Sqlmock) {
	tx, mock := newTxProviderMock(t)
	spy := &invalidatorSpy{}
	if locker == nil {
		locker = lock.NewLocal(lock.Options{Wait: time.Second})
	}
	svc := NewBookingService(ledger, ledger, tx, locker, spy, nil, NewMetricsService(), nil, BookingConfig{})
	return svc, spy, mock
}

func TestBookingServiceConcurrentBookersGetExactlyOneMeeting(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00")

	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewBookingService(ledger, ledger, tx, lock.NewLocal(lock.Options{Wait: time.Second}), nil, nil, nil, nil, BookingConfig{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, student := range []string{"student-1", "student-2"} {
		wg.Add(1)
		go func(i int, student string) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), dto.BookingRequest{
				CoachID:   "coach-1",
				StudentID: student,
				Date:      "2024-05-01",
				StartTime: "09:00",
			})
			results[i] = err
		}(i, student)
	}
	wg.Wait()

	var booked, unavailable int
	for _, err := range results {
		switch {
		case err == nil:
			booked++
		case errors.Is(err, appErrors.ErrSlotUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, booked)
	assert.Equal(t, 1, unavailable)
	assert.Equal(t, 1, ledger.meetingCount())

	doc, _ := ledger.Get(context.Background(), nil, "coach-1")
	assert.Empty(t, doc.AvailableSlots["2024-05-01"])
	assert.Len(t, doc.BookedSlots["2024-05-01"], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceRoundTrip(t *testing.T) {
	ledger := newMemoryLedger()
	locker := lock.NewLocal(lock.Options{})
	availability := NewAvailabilityService(ledger, ledger, locker, nil, nil, nil, AvailabilityConfig{})

	_, err := availability.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach1", Date: "2024-07-01", StartTime: "14:00"})
	require.NoError(t, err)

	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	spy := &invalidatorSpy{}
	svc := NewBookingService(ledger, ledger, tx, locker, spy, nil, nil, nil, BookingConfig{})

	meeting, err := svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach1", StudentID: "student1", Date: "2024-07-01", StartTime: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, "14:00", meeting.StartTime.String())
	assert.Equal(t, "16:00", meeting.EndTime.String())
	assert.Equal(t, "2024-07-01", meeting.EndDate.String())
	assert.Nil(t, meeting.Rating)
	assert.Empty(t, meeting.Notes)
	assert.NotZero(t, meeting.ID)

	day, err := availability.ListSlotsForDate(context.Background(), "coach1", "2024-07-01")
	require.NoError(t, err)
	assert.Empty(t, day.StartTimes)
	assert.Equal(t, [][2]string{{"coach1", "student1"}}, spy.calls)

	doc, _ := ledger.Get(context.Background(), nil, "coach1")
	assert.Equal(t, []int64{meeting.ID}, doc.BookedSlots["2024-07-01"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceSecondBookingFails(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00", "11:00")

	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()
	svc := NewBookingService(ledger, ledger, tx, nil, nil, nil, nil, nil, BookingConfig{})

	req := dto.BookingRequest{CoachID: "coach-1", StudentID: "student-1", Date: "2024-05-01", StartTime: "09:00"}
	_, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	req.StudentID = "student-2"
	_, err = svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)

	doc, _ := ledger.Get(context.Background(), nil, "coach-1")
	assert.Equal(t, []string{"11:00"}, doc.AvailableSlots["2024-05-01"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceRejectsOffGridWithoutMutation(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach1", "2024-07-01", "14:00")

	svc, spy, mock := newBookingFixture(t, ledger, nil)

	_, err := svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach1", StudentID: "student1", Date: "2024-07-01", StartTime: "14:15"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidSlot)

	_, err = svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach1", StudentID: "student1", Date: "2024-07-01", StartTime: "2pm"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidSlot)

	_, err = svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach1", StudentID: "student1", Date: "07/01/2024", StartTime: "14:00"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach1", Date: "2024-07-01", StartTime: "14:00"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Zero(t, ledger.meetingCount())
	assert.Zero(t, ledger.writes)
	assert.Empty(t, spy.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceStoreFailureRollsBack(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00")
	ledger.commitErr = errors.New("connection reset by peer")

	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	spy := &invalidatorSpy{}
	svc := NewBookingService(ledger, ledger, tx, nil, spy, nil, nil, nil, BookingConfig{})

	_, err := svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach-1", StudentID: "student-1", Date: "2024-05-01", StartTime: "09:00"})
	assert.ErrorIs(t, err, appErrors.ErrStoreUnavailable)
	assert.Empty(t, spy.calls)

	doc, _ := ledger.Get(context.Background(), nil, "coach-1")
	assert.Equal(t, []string{"09:00"}, doc.AvailableSlots["2024-05-01"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceRetriesOnRevisionConflict(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00")
	ledger.stale = 1

	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewBookingService(ledger, &uniqueFreeMeetings{ledger: ledger}, tx, nil, nil, nil, nil, nil, BookingConfig{})

	meeting, err := svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach-1", StudentID: "student-1", Date: "2024-05-01", StartTime: "09:00"})
	require.NoError(t, err)
	assert.NotZero(t, meeting.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceGivesUpAfterMaxAttempts(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00")
	ledger.stale = 5

	tx, mock := newTxProviderMock(t)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}
	svc := NewBookingService(ledger, &uniqueFreeMeetings{ledger: ledger}, tx, nil, nil, nil, nil, nil, BookingConfig{MaxAttempts: 2})

	_, err := svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach-1", StudentID: "student-1", Date: "2024-05-01", StartTime: "09:00"})
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceLockTimeout(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00")

	svc, _, mock := newBookingFixture(t, ledger, lockerStub{err: lock.ErrTimeout})
	_, err := svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach-1", StudentID: "student-1", Date: "2024-05-01", StartTime: "09:00"})
	assert.ErrorIs(t, err, appErrors.ErrLockTimeout)

	svc, _, _ = newBookingFixture(t, ledger, lockerStub{err: errors.New("redis: connection refused")})
	_, err = svc.Book(context.Background(), dto.BookingRequest{CoachID: "coach-1", StudentID: "student-1", Date: "2024-05-01", StartTime: "09:00"})
	assert.ErrorIs(t, err, appErrors.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// uniqueFreeMeetings records meetings without the slot uniqueness check, as a
// rolled back insert would leave nothing behind.
type uniqueFreeMeetings struct {
	ledger *memoryLedger
}

func (u *uniqueFreeMeetings) Create(_ context.Context, _ sqlx.ExtContext, meeting *models.Meeting) error {
	u.ledger.mu.Lock()
	defer u.ledger.mu.Unlock()
	meeting.ID = u.ledger.nextID
	u.ledger.nextID++
	return nil
}
