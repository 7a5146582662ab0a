package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
)

// memoryLedger is a thread-safe stand-in for the availability and meeting tables.
type memoryLedger struct {
	mu        sync.Mutex
	docs      map[string]*models.CoachAvailability
	meetings  []models.Meeting
	nextID    int64
	stale     int
	commitErr error
	writes    int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{docs: map[string]*models.CoachAvailability{}, nextID: 1}
}

func (m *memoryLedger) seed(coachID, date string, times ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.doc(coachID)
	doc.AvailableSlots[date] = append([]string{}, times...)
	doc.Revision++
}

func (m *memoryLedger) doc(coachID string) *models.CoachAvailability {
	doc, ok := m.docs[coachID]
	if !ok {
		doc = models.EmptyAvailability(coachID)
		m.docs[coachID] = doc
	}
	return doc
}

func (m *memoryLedger) Get(_ context.Context, _ sqlx.ExtContext, coachID string) (*models.CoachAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.doc(coachID)
	out := &models.CoachAvailability{
		CoachID:        coachID,
		AvailableSlots: models.SlotMap{},
		BookedSlots:    models.BookedMap{},
		Revision:       src.Revision,
	}
	for k, v := range src.AvailableSlots {
		out.AvailableSlots[k] = append([]string{}, v...)
	}
	for k, v := range src.BookedSlots {
		out.BookedSlots[k] = append([]int64{}, v...)
	}
	return out, nil
}

func (m *memoryLedger) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, coachID string) (*models.CoachAvailability, error) {
	return m.Get(ctx, exec, coachID)
}

func (m *memoryLedger) ReplaceDate(_ context.Context, _ sqlx.ExtContext, coachID string, date models.Date, slots []string, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.doc(coachID)
	if err := m.checkRevision(doc, expected); err != nil {
		return 0, err
	}
	doc.AvailableSlots[date.String()] = append([]string{}, slots...)
	doc.Revision++
	m.writes++
	return doc.Revision, nil
}

func (m *memoryLedger) CommitBooking(_ context.Context, _ sqlx.ExtContext, coachID string, date models.Date, slots []string, booked []int64, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return 0, m.commitErr
	}
	doc := m.doc(coachID)
	if err := m.checkRevision(doc, expected); err != nil {
		return 0, err
	}
	doc.AvailableSlots[date.String()] = append([]string{}, slots...)
	doc.BookedSlots[date.String()] = append([]int64{}, booked...)
	doc.Revision++
	m.writes++
	return doc.Revision, nil
}

func (m *memoryLedger) checkRevision(doc *models.CoachAvailability, expected int64) error {
	if m.stale > 0 {
		m.stale--
		doc.Revision++
		return appErrors.ErrRevisionStale
	}
	if doc.Revision != expected {
		return appErrors.ErrRevisionStale
	}
	return nil
}

func (m *memoryLedger) Create(_ context.Context, _ sqlx.ExtContext, meeting *models.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.meetings {
		if existing.Slot() == meeting.Slot() {
			return appErrors.ErrSlotUnavailable
		}
	}
	meeting.ID = m.nextID
	meeting.CreatedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	m.nextID++
	m.meetings = append(m.meetings, *meeting)
	return nil
}

func (m *memoryLedger) ExistsForSlot(_ context.Context, _ sqlx.ExtContext, slot models.Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.meetings {
		if existing.Slot() == slot {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) ListByCoach(_ context.Context, coachID string) ([]models.Meeting, error) {
	return m.filter(func(mt models.Meeting) bool { return mt.CoachID == coachID }), nil
}

func (m *memoryLedger) ListByStudent(_ context.Context, studentID string) ([]models.Meeting, error) {
	return m.filter(func(mt models.Meeting) bool { return mt.StudentID == studentID }), nil
}

func (m *memoryLedger) filter(keep func(models.Meeting) bool) []models.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Meeting{}
	for _, mt := range m.meetings {
		if keep(mt) {
			out = append(out, mt)
		}
	}
	return out
}

func (m *memoryLedger) meetingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.meetings)
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func mustDate(t *testing.T, raw string) models.Date {
	t.Helper()
	d, err := models.ParseDate(raw)
	require.NoError(t, err)
	return d
}
