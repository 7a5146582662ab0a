package service

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanialBetres/stepful-scheduling/internal/dto"
	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
	"github.com/DanialBetres/stepful-scheduling/pkg/lock"
)

func newAvailabilityFixture(ledger *memoryLedger) *AvailabilityService {
	return NewAvailabilityService(ledger, ledger, lock.NewLocal(lock.Options{}), nil, NewMetricsService(), nil, AvailabilityConfig{})
}

func TestAvailabilityServiceAddSlotIsIdempotent(t *testing.T) {
	ledger := newMemoryLedger()
	svc := newAvailabilityFixture(ledger)
	req := dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "9:00"}

	first, err := svc.AddSlot(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := svc.AddSlot(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.Changed)

	day, err := svc.ListSlotsForDate(context.Background(), "coach-1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, []models.TimeOfDay{models.MustTimeOfDay("09:00")}, day.StartTimes)
	assert.Equal(t, 1, ledger.writes)
}

func TestAvailabilityServiceKeepsSiblingDates(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-02", "10:00")
	svc := newAvailabilityFixture(ledger)

	_, err := svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "14:00"})
	require.NoError(t, err)
	_, err = svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "08:30"})
	require.NoError(t, err)

	doc, _ := ledger.Get(context.Background(), nil, "coach-1")
	assert.Equal(t, []string{"08:30", "14:00"}, doc.AvailableSlots["2024-05-01"])
	assert.Equal(t, []string{"10:00"}, doc.AvailableSlots["2024-05-02"])
}

func TestAvailabilityServiceRemoveAbsentSlotIsNoop(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00")
	svc := newAvailabilityFixture(ledger)

	result, err := svc.RemoveSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "11:00"})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, []models.TimeOfDay{models.MustTimeOfDay("09:00")}, result.StartTimes)
	assert.Zero(t, ledger.writes)

	result, err = svc.RemoveSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "09:00"})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Empty(t, result.StartTimes)
}

func TestAvailabilityServiceRejectsInvalidInput(t *testing.T) {
	ledger := newMemoryLedger()
	svc := newAvailabilityFixture(ledger)

	_, err := svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "14:15"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidSlot)

	_, err = svc.RemoveSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "25:00"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidSlot)

	_, err = svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-13-01", StartTime: "14:00"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.AddSlot(context.Background(), dto.SlotRequest{Date: "2024-05-01", StartTime: "14:00"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Zero(t, ledger.writes)
}

func TestAvailabilityServiceRefusesBookedSlot(t *testing.T) {
	ledger := newMemoryLedger()
	require.NoError(t, ledger.Create(context.Background(), nil, &models.Meeting{
		CoachID:   "coach-1",
		StudentID: "student-1",
		Date:      mustDate(t, "2024-05-01"),
		StartTime: models.MustTimeOfDay("09:00"),
	}))
	svc := newAvailabilityFixture(ledger)

	_, err := svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "09:00"})
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
	assert.Zero(t, ledger.writes)
}

func TestAvailabilityServiceRetriesStaleRevision(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.stale = 2
	svc := newAvailabilityFixture(ledger)

	result, err := svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "09:00"})
	require.NoError(t, err)
	assert.True(t, result.Changed)

	ledger.stale = 3
	_, err = svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "10:00"})
	assert.ErrorIs(t, err, appErrors.ErrRevisionStale)
}

func TestAvailabilityServiceListSlotsInRange(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-03", "10:00")
	ledger.seed("coach-1", "2024-05-01", "14:00", "09:00")
	ledger.seed("coach-1", "2024-06-01", "09:00")
	svc := newAvailabilityFixture(ledger)

	seq, err := svc.ListSlotsInRange(context.Background(), "coach-1", mustDate(t, "2024-05-01"), mustDate(t, "2024-05-31"))
	require.NoError(t, err)

	collect := func() []string {
		var out []string
		for date, start := range seq {
			out = append(out, date.String()+" "+start.String())
		}
		return out
	}
	want := []string{"2024-05-01 09:00", "2024-05-01 14:00", "2024-05-03 10:00"}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect())

	var first string
	for date, start := range seq {
		first = date.String() + " " + start.String()
		break
	}
	assert.Equal(t, "2024-05-01 09:00", first)
}

func TestAvailabilityServiceRangeValidation(t *testing.T) {
	svc := newAvailabilityFixture(newMemoryLedger())

	_, err := svc.ListSlotsInRange(context.Background(), "coach-1", mustDate(t, "2024-05-02"), mustDate(t, "2024-05-01"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ListSlotsInRange(context.Background(), "coach-1", mustDate(t, "2024-01-01"), mustDate(t, "2025-06-01"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestResolveRange(t *testing.T) {
	from, to, err := ResolveRange(dto.RangeQuery{Month: "2024-02"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", from.String())
	assert.Equal(t, "2024-02-29", to.String())

	from, to, err = ResolveRange(dto.RangeQuery{From: "2024-05-01", To: "2024-05-07"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", from.String())
	assert.Equal(t, "2024-05-07", to.String())

	_, _, err = ResolveRange(dto.RangeQuery{Month: "May"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

// bookingDuringCheck books the slot right after the occupancy read, so the
// read result is already out of date when AddSlot acts on it.
type bookingDuringCheck struct {
	*memoryLedger
	book  func()
	fired bool
}

func (b *bookingDuringCheck) ExistsForSlot(ctx context.Context, exec sqlx.ExtContext, slot models.Slot) (bool, error) {
	exists, err := b.memoryLedger.ExistsForSlot(ctx, exec, slot)
	if !b.fired {
		b.fired = true
		b.book()
	}
	return exists, err
}

func TestAvailabilityServiceAddSlotDoesNotReopenConcurrentBooking(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.seed("coach-1", "2024-05-01", "09:00")

	booking, _, mock := newBookingFixture(t, ledger, lockerStub{})
	mock.ExpectBegin()
	mock.ExpectCommit()

	occupancy := &bookingDuringCheck{memoryLedger: ledger, book: func() {
		_, err := booking.Book(context.Background(), dto.BookingRequest{
			CoachID: "coach-1", StudentID: "student-1", Date: "2024-05-01", StartTime: "09:00",
		})
		require.NoError(t, err)
	}}
	svc := NewAvailabilityService(ledger, occupancy, lockerStub{}, nil, NewMetricsService(), nil, AvailabilityConfig{})

	_, err := svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.meetingCount())

	day, err := svc.ListSlotsForDate(context.Background(), "coach-1", "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, day.StartTimes)

	again, err := svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "09:00"})
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
	assert.Nil(t, again)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityServiceAddSlotRechecksOccupancyAfterStaleWrite(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.stale = 1
	occupancy := &countingOccupancy{memoryLedger: ledger}
	svc := NewAvailabilityService(ledger, occupancy, lockerStub{}, nil, NewMetricsService(), nil, AvailabilityConfig{})

	result, err := svc.AddSlot(context.Background(), dto.SlotRequest{CoachID: "coach-1", Date: "2024-05-01", StartTime: "10:00"})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 2, occupancy.calls)
}

type countingOccupancy struct {
	*memoryLedger
	calls int
}

func (c *countingOccupancy) ExistsForSlot(ctx context.Context, exec sqlx.ExtContext, slot models.Slot) (bool, error) {
	c.calls++
	return c.memoryLedger.ExistsForSlot(ctx, exec, slot)
}
