package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"CapIot.webnode/internal/models"
)

const (
	latestReadingKey = "reading:latest"
	// latestReadingTTL bounds how long a reading written past the cache, by
	// another process sharing the store, can stay hidden.
	latestReadingTTL = 30 * time.Second
	// casRetries bounds the optimistic transaction when writers race.
	casRetries = 5
)

// CachedRepository keeps the newest reading in Redis so GET /data/latest does
// not hit the store. The store stays the source of truth: any Redis failure is
// logged and the call falls through to it.
type CachedRepository struct {
	Repository
	redis  *redis.Client
	logger *slog.Logger
	// stale is set when a newer reading was stored but could neither be
	// cached nor evicted. Reads bypass the cache until it is rebuilt.
	stale atomic.Bool
}

// NewCachedRepository connects to Redis and wraps repo.
func NewCachedRepository(ctx context.Context, repo Repository, addr, password string, db int, logger *slog.Logger) (*CachedRepository, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis not reachable: %w", err)
	}
	return newCachedRepository(repo, rdb, logger), nil
}

func newCachedRepository(repo Repository, rdb *redis.Client, logger *slog.Logger) *CachedRepository {
	return &CachedRepository{Repository: repo, redis: rdb, logger: logger}
}

// InsertReading persists r, then offers it to the cache.
func (c *CachedRepository) InsertReading(ctx context.Context, r *models.Reading) error {
	if err := c.Repository.InsertReading(ctx, r); err != nil {
		return err
	}
	// On equal timestamps the store orders by insertion, so the newcomer wins.
	if err := c.storeIfNewer(ctx, r, true); err != nil {
		c.logger.Warn("Could not update latest-reading cache", "id", r.ID, "error", err)
		c.invalidate(ctx)
	}
	return nil
}

// invalidate drops the cached reading, or marks the cache stale when Redis
// cannot be reached to do so.
func (c *CachedRepository) invalidate(ctx context.Context) {
	if err := c.redis.Del(ctx, latestReadingKey).Err(); err != nil {
		c.logger.Warn("Could not evict latest-reading cache", "error", err)
		c.stale.Store(true)
	}
}

// LatestReading serves from the cache, filling it from the store on a miss.
func (c *CachedRepository) LatestReading(ctx context.Context) (*models.Reading, error) {
	if c.stale.Load() {
		return c.rebuild(ctx)
	}

	cached, err := c.cachedLatest(ctx)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Latest-reading cache read failed", "error", err)
	}

	latest, err := c.Repository.LatestReading(ctx)
	if err != nil || latest == nil {
		return latest, err
	}
	if err := c.storeIfNewer(ctx, latest, false); err != nil {
		c.logger.Warn("Could not fill latest-reading cache", "id", latest.ID, "error", err)
	}
	return latest, nil
}

// rebuild evicts the stale entry and refills it from the store.
func (c *CachedRepository) rebuild(ctx context.Context) (*models.Reading, error) {
	latest, err := c.Repository.LatestReading(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.redis.Del(ctx, latestReadingKey).Err(); err != nil {
		c.logger.Warn("Latest-reading cache still unreachable", "error", err)
		return latest, nil
	}
	c.stale.Store(false)
	if latest != nil {
		if err := c.storeIfNewer(ctx, latest, false); err != nil {
			c.logger.Warn("Could not fill latest-reading cache", "id", latest.ID, "error", err)
		}
	}
	return latest, nil
}

func (c *CachedRepository) cachedLatest(ctx context.Context) (*models.Reading, error) {
	raw, err := c.redis.Get(ctx, latestReadingKey).Bytes()
	if err != nil {
		return nil, err
	}
	var r models.Reading
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode cached reading: %w", err)
	}
	return &r, nil
}

// storeIfNewer replaces the cached reading when r is more recent, using a
// WATCH transaction so concurrent writers cannot move the cache backwards.
func (c *CachedRepository) storeIfNewer(ctx context.Context, r *models.Reading, replaceEqual bool) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, latestReadingKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var cached models.Reading
			if json.Unmarshal(current, &cached) == nil && !isNewer(r, &cached, replaceEqual) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, latestReadingKey, payload, latestReadingTTL)
			return nil
		})
		return err
	}

	for range casRetries {
		err = c.redis.Watch(ctx, txf, latestReadingKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func isNewer(candidate, cached *models.Reading, replaceEqual bool) bool {
	if candidate.Timestamp.Equal(cached.Timestamp) {
		return replaceEqual
	}
	return candidate.Timestamp.After(cached.Timestamp)
}

// Close closes the Redis client and the wrapped repository.
func (c *CachedRepository) Close(ctx context.Context) error {
	redisErr := c.redis.Close()
	return errors.Join(c.Repository.Close(ctx), redisErr)
}
