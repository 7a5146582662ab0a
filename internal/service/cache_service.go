package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	appErrors "github.com/DanialBetres/stepful-scheduling/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// generationTTL outlives any listing TTL so a counter never resets while
// entries written under an older generation are still alive.
const generationTTL = 24 * time.Hour

// CacheService wraps the cache repository with metrics and an on/off switch.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// MeetingsKey addresses one actor's partition for a given day and cache
// generation. The day is part of the key because the past/future split moves
// at midnight; the generation changes on every invalidation.
func MeetingsKey(role models.Role, actorID string, generation int64, today models.Date) string {
	return fmt.Sprintf("meetings:%s:%s:g%d:%s", role, actorID, generation, today)
}

// MeetingsPattern matches every cached partition of an actor. Glob
// metacharacters in the actor id are escaped.
func MeetingsPattern(role models.Role, actorID string) string {
	return fmt.Sprintf("meetings:%s:%s:*", role, globEscaper.Replace(actorID))
}

func meetingsGenerationKey(role models.Role, actorID string) string {
	return fmt.Sprintf("meetings-gen:%s:%s", role, actorID)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get reports whether the key was found and decoded into dest.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores the value, falling back to the default TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// MeetingsGeneration returns the actor's current listing generation. ok is
// false when the counter could not be read, in which case nothing should be cached.
func (s *CacheService) MeetingsGeneration(ctx context.Context, role models.Role, actorID string) (generation int64, ok bool) {
	if !s.Enabled() {
		return 0, false
	}
	err := s.repo.Get(ctx, meetingsGenerationKey(role, actorID), &generation)
	if err == nil {
		return generation, true
	}
	if errors.Is(err, appErrors.ErrCacheMiss) {
		return 0, true
	}
	s.logger.Warn("cache generation read failed", zap.String("actor_id", actorID), zap.Error(err))
	return 0, false
}

// BumpMeetings moves the actor to a new generation so listings loaded before
// the bump are never served, even if their write lands afterwards.
func (s *CacheService) BumpMeetings(ctx context.Context, role models.Role, actorID string) error {
	if !s.Enabled() {
		return nil
	}
	if _, err := s.repo.Incr(ctx, meetingsGenerationKey(role, actorID), generationTTL); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("actor_id", actorID), zap.Error(err))
		return err
	}
	return nil
}
