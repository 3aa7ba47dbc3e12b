package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fieldtime-dev/rotation-engine/internal/division"
	"github.com/fieldtime-dev/rotation-engine/internal/engine"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// ScheduleCache handles Redis caching for solved rotation schedules
type ScheduleCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
	logger     *logrus.Entry
}

// CacheConfig contains configuration for the schedule cache
type CacheConfig struct {
	RedisURL     string        `json:"redis_url"`
	DefaultTTL   time.Duration `json:"default_ttl"`
	KeyPrefix    string        `json:"key_prefix"`
	MaxRetries   int           `json:"max_retries"`
	PoolSize     int           `json:"pool_size"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// CachedSolve is the payload stored per cache key.
type CachedSolve struct {
	Schedule   *types.RotationSchedule `json:"schedule"`
	Suggestion *division.Suggestion    `json:"suggestion,omitempty"`
	CachedAt   int64                   `json:"cachedAt"`
}

// NewScheduleCache creates a new schedule cache instance
func NewScheduleCache(config CacheConfig) (*ScheduleCache, error) {
	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.MaxRetries = config.MaxRetries
	if config.PoolSize > 0 {
		opt.PoolSize = config.PoolSize
	}
	opt.ReadTimeout = config.ReadTimeout
	opt.WriteTimeout = config.WriteTimeout

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &ScheduleCache{
		client:     client,
		defaultTTL: config.DefaultTTL,
		keyPrefix:  config.KeyPrefix,
		logger:     logrus.WithField("component", "schedule_cache"),
	}

	cache.logger.WithFields(logrus.Fields{
		"redis_url":   config.RedisURL,
		"default_ttl": config.DefaultTTL,
		"key_prefix":  config.KeyPrefix,
	}).Info("Schedule cache initialized")

	return cache, nil
}

// GetSolve retrieves a cached solve result. A nil result with nil error is a cache miss.
func (sc *ScheduleCache) GetSolve(ctx context.Context, cacheKey string) (*CachedSolve, error) {
	key := sc.buildSolveKey(cacheKey)
	start := time.Now()

	result, err := sc.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			sc.logger.WithField("key", key).Debug("Cache miss for solve result")
			return nil, nil
		}
		sc.logger.WithError(err).WithField("key", key).Error("Failed to get solve result from cache")
		return nil, err
	}

	var cached CachedSolve
	if err := json.Unmarshal([]byte(result), &cached); err != nil {
		sc.logger.WithError(err).WithField("key", key).Error("Failed to unmarshal cached solve result")
		return nil, err
	}

	sc.logger.WithFields(logrus.Fields{
		"key":           key,
		"response_time": time.Since(start),
	}).Debug("Cache hit for solve result")

	return &cached, nil
}

// SetSolve caches a solve result
func (sc *ScheduleCache) SetSolve(ctx context.Context, cacheKey string, result *engine.SolveResult, ttl time.Duration) error {
	if result == nil || result.Schedule == nil {
		return fmt.Errorf("solve result cannot be nil")
	}

	key := sc.buildSolveKey(cacheKey)
	start := time.Now()

	cached := CachedSolve{
		Schedule:   result.Schedule,
		Suggestion: result.Suggestion,
		CachedAt:   time.Now().UnixMilli(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		sc.logger.WithError(err).Error("Failed to marshal solve result")
		return err
	}

	if ttl == 0 {
		ttl = sc.defaultTTL
	}

	err = sc.client.Set(ctx, key, data, ttl).Err()
	if err != nil {
		sc.logger.WithError(err).WithField("key", key).Error("Failed to set solve result in cache")
		return err
	}

	sc.logger.WithFields(logrus.Fields{
		"key":           key,
		"ttl":           ttl,
		"response_time": time.Since(start),
		"size_bytes":    len(data),
	}).Debug("Cached solve result")

	return nil
}

// InvalidateSolve removes a cached solve result
func (sc *ScheduleCache) InvalidateSolve(ctx context.Context, cacheKey string) error {
	key := sc.buildSolveKey(cacheKey)

	deleted, err := sc.client.Del(ctx, key).Result()
	if err != nil {
		sc.logger.WithError(err).WithField("key", key).Error("Failed to invalidate cached solve result")
		return err
	}

	sc.logger.WithFields(logrus.Fields{
		"key":          key,
		"keys_deleted": deleted,
	}).Debug("Solve cache invalidated")

	return nil
}

// Close closes the Redis connection
func (sc *ScheduleCache) Close() error {
	return sc.client.Close()
}

// buildSolveKey creates a cache key for solve results
func (sc *ScheduleCache) buildSolveKey(cacheKey string) string {
	return fmt.Sprintf("%ssolve:%s", sc.keyPrefix, cacheKey)
}

// GenerateSolveCacheKey creates a deterministic cache key for a solve request.
// Mid-game requests and requests with active overrides are keyed too, so the
// hash covers every input that can change the resulting schedule.
func GenerateSolveCacheKey(req *engine.SolveRequest) string {
	hashable := struct {
		Players                       []types.Player                       `json:"players"`
		Config                        types.GameConfig                     `json:"config"`
		AbsentPlayerIDs               []string                             `json:"absentPlayerIds"`
		GoalieAssignments             []types.GoalieAssignment             `json:"goalieAssignments"`
		ManualOverrides               []types.ManualOverride               `json:"manualOverrides"`
		PositionContinuityPreferences []types.PositionContinuityPreference `json:"positionContinuityPreferences"`
		PeriodDivisions               []int                                `json:"periodDivisions"`
		StartFromRotation             int                                  `json:"startFromRotation"`
		PlayedRotations               int                                  `json:"playedRotations"`
		AllowConstraintRelaxation     bool                                 `json:"allowConstraintRelaxation"`
	}{
		Players:                       req.Players,
		Config:                        req.Config,
		AbsentPlayerIDs:               req.AbsentPlayerIDs,
		GoalieAssignments:             req.GoalieAssignments,
		ManualOverrides:               req.ManualOverrides,
		PositionContinuityPreferences: req.PositionContinuityPreferences,
		PeriodDivisions:               req.PeriodDivisions,
		StartFromRotation:             req.StartFromRotation,
		PlayedRotations:               len(req.ExistingRotations),
		AllowConstraintRelaxation:     req.AllowConstraintRelaxation,
	}

	data, err := json.Marshal(hashable)
	if err != nil {
		return fmt.Sprintf("players:%d_rotations:%d", len(req.Players), req.StartFromRotation)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
