package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
)

// Placeholders rendered when the directory has no entry for a counterpart.
const (
	UnknownCoach   = "Unknown coach"
	UnknownStudent = "Unknown student"
)

type meetingLister interface {
	ListByCoach(ctx context.Context, coachID string) ([]models.Meeting, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Meeting, error)
}

type coachDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Coach, error)
}

type studentDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Student, error)
}

// listingLoadTimeout bounds a shared listing load once it is detached from
// the request that started it.
const listingLoadTimeout = 10 * time.Second

// MeetingQueryConfig tunes the read side.
type MeetingQueryConfig struct {
	Location *time.Location
	CacheTTL time.Duration
	Now      func() time.Time
}

// MeetingQueryService lists an actor's meetings split around today.
type MeetingQueryService struct {
	meetings meetingLister
	coaches  coachDirectory
	students studentDirectory
	cache    *CacheService
	logger   *zap.Logger
	location *time.Location
	cacheTTL time.Duration
	now      func() time.Time
	group    singleflight.Group
}

// NewMeetingQueryService constructs the service.
func NewMeetingQueryService(meetings meetingLister, coaches coachDirectory, students studentDirectory, cache *CacheService, logger *zap.Logger, cfg MeetingQueryConfig) *MeetingQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MeetingQueryService{
		meetings: meetings,
		coaches:  coaches,
		students: students,
		cache:    cache,
		logger:   logger,
		location: cfg.Location,
		cacheTTL: cfg.CacheTTL,
		now:      cfg.Now,
	}
}

// Today returns the current calendar day in the configured location.
func (s *MeetingQueryService) Today() models.Date {
	return models.Today(s.now(), s.location)
}

// ListMeetingsFor returns the actor's meetings. A meeting is past iff its day
// is strictly before today; both partitions are ordered by (date, start, id).
func (s *MeetingQueryService) ListMeetingsFor(ctx context.Context, actorID string, role models.Role) (*models.MeetingPartition, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor id is required")
	}
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be COACH or STUDENT")
	}

	today := s.Today()
	// The generation is read before the store so a listing loaded across an
	// invalidation is written under a key nobody reads any more.
	generation, cacheable := s.cache.MeetingsGeneration(ctx, role, actorID)
	key := MeetingsKey(role, actorID, generation, today)

	if cacheable {
		var cached models.MeetingPartition
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	// The shared load must not die with whichever caller started it.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listingLoadTimeout)
		defer cancel()
		partition, complete, err := s.load(loadCtx, actorID, role, today)
		if err != nil {
			return nil, err
		}
		if cacheable && complete {
			_ = s.cache.Set(loadCtx, key, partition, s.cacheTTL)
		}
		return partition, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("meeting listing coalesced", zap.String("key", key))
		}
		return res.Val.(*models.MeetingPartition), nil
	}
}

// load reports complete=false when display names fell back to placeholders
// because the directory could not be reached.
func (s *MeetingQueryService) load(ctx context.Context, actorID string, role models.Role, today models.Date) (*models.MeetingPartition, bool, error) {
	var (
		meetings []models.Meeting
		err      error
	)
	if role == models.RoleCoach {
		meetings, err = s.meetings.ListByCoach(ctx, actorID)
	} else {
		meetings, err = s.meetings.ListByStudent(ctx, actorID)
	}
	if err != nil {
		return nil, false, appErrors.WrapAs(err, appErrors.ErrStoreUnavailable, "failed to list meetings")
	}

	names, complete := s.counterpartNames(ctx, role, meetings)

	partition := &models.MeetingPartition{Past: []models.MeetingView{}, Future: []models.MeetingView{}}
	for _, meeting := range meetings {
		meeting.ComputeEnd()
		view := models.MeetingView{Meeting: meeting}
		if role == models.RoleCoach {
			view.CounterpartID = meeting.StudentID
			view.CounterpartName = nameOr(names[meeting.StudentID], UnknownStudent)
		} else {
			view.CounterpartID = meeting.CoachID
			view.CounterpartName = nameOr(names[meeting.CoachID], UnknownCoach)
		}
		if meeting.IsPast(today) {
			partition.Past = append(partition.Past, view)
		} else {
			partition.Future = append(partition.Future, view)
		}
	}
	slices.SortFunc(partition.Past, compareViews)
	slices.SortFunc(partition.Future, compareViews)
	return partition, complete, nil
}

// counterpartNames resolves display names. A directory failure degrades to an
// empty map and complete=false.
func (s *MeetingQueryService) counterpartNames(ctx context.Context, role models.Role, meetings []models.Meeting) (names map[string]string, complete bool) {
	ids := make([]string, 0, len(meetings))
	for _, meeting := range meetings {
		if role == models.RoleCoach {
			ids = append(ids, meeting.StudentID)
		} else {
			ids = append(ids, meeting.CoachID)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	names = make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, true
	}

	if role == models.RoleCoach {
		if s.students == nil {
			return names, true
		}
		students, err := s.students.FindByIDs(ctx, ids)
		if err != nil {
			s.logger.Warn("student directory lookup failed, using placeholders", zap.Error(err))
			return names, false
		}
		for id, student := range students {
			names[id] = student.DisplayName()
		}
	} else {
		if s.coaches == nil {
			return names, true
		}
		coaches, err := s.coaches.FindByIDs(ctx, ids)
		if err != nil {
			s.logger.Warn("coach directory lookup failed, using placeholders", zap.Error(err))
			return names, false
		}
		for id, coach := range coaches {
			names[id] = coach.DisplayName()
		}
	}

	for _, id := range ids {
		if names[id] == "" {
			s.logger.Warn("counterpart missing from directory", zap.String("role", string(role.Counterpart())), zap.String("id", id))
		}
	}
	return names, true
}

func nameOr(name, placeholder string) string {
	if strings.TrimSpace(name) == "" {
		return placeholder
	}
	return name
}

func compareViews(a, b models.MeetingView) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
