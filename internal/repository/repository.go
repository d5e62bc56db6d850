package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"CapIot.webnode/internal/config"
	"CapIot.webnode/internal/models"
)

var (
	// ErrStorage wraps every failure reaching or operating on the store.
	ErrStorage = errors.New("storage error")
	// ErrStoreUnavailable is returned by every operation when the store could
	// not be opened at startup.
	ErrStoreUnavailable = fmt.Errorf("%w: store unavailable", ErrStorage)
)

// preallocLimit caps slice preallocation; limit itself is unbounded.
const preallocLimit = 64

// Repository is the storage adapter for sensor readings.
type Repository interface {
	// InsertReading persists r and sets its ID.
	InsertReading(ctx context.Context, r *models.Reading) error
	// ListReadings returns at most limit readings, most recent first.
	ListReadings(ctx context.Context, limit int) ([]models.Reading, error)
	// LatestReading returns the reading with the greatest timestamp, or nil
	// when the store is empty.
	LatestReading(ctx context.Context) (*models.Reading, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// preparer is implemented by backends that create indexes or buckets after
// connecting.
type preparer interface {
	Prepare(ctx context.Context) error
}

// Open builds the backend selected by cfg.StorageBackend and checks that it is
// reachable. On failure it returns the error together with an Unavailable
// repository, so callers that choose to keep running still have something to
// serve 500s from.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Repository, error) {
	repo, err := open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Error connecting to storage", "backend", cfg.StorageBackend, "error", err)
		return Unavailable(err), err
	}
	if err := repo.Ping(ctx); err != nil {
		logger.Error("Storage health check failed", "backend", cfg.StorageBackend, "error", err)
		_ = repo.Close(ctx)
		return Unavailable(err), err
	}
	logger.Info("Connected to storage", "backend", cfg.StorageBackend)

	if p, ok := repo.(preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			logger.Warn("Could not prepare storage", "backend", cfg.StorageBackend, "error", err)
		}
	}

	if cfg.RedisAddr != "" {
		cached, err := NewCachedRepository(ctx, repo, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			// The cache is an optimisation; run without it.
			logger.Warn("Latest-reading cache disabled", "addr", cfg.RedisAddr, "error", err)
			return repo, nil
		}
		logger.Info("Latest-reading cache enabled", "addr", cfg.RedisAddr)
		return cached, nil
	}
	return repo, nil
}

func open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Repository, error) {
	switch cfg.StorageBackend {
	case config.BackendMongoDB:
		return NewMongoRepository(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	case config.BackendInfluxDB:
		return NewInfluxDBRepository(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket, logger), nil
	case config.BackendSQLite:
		return NewSQLiteRepository(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// storageErr wraps err so that errors.Is(err, ErrStorage) holds.
func storageErr(op string, err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

type unavailableRepository struct {
	cause error
}

// Unavailable returns a Repository whose operations all fail with
// ErrStoreUnavailable.
func Unavailable(cause error) Repository {
	return &unavailableRepository{cause: cause}
}

func (u *unavailableRepository) err() error {
	if u.cause == nil {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, u.cause)
}

func (u *unavailableRepository) InsertReading(context.Context, *models.Reading) error {
	return u.err()
}

func (u *unavailableRepository) ListReadings(context.Context, int) ([]models.Reading, error) {
	return nil, u.err()
}

func (u *unavailableRepository) LatestReading(context.Context) (*models.Reading, error) {
	return nil, u.err()
}

func (u *unavailableRepository) Ping(context.Context) error { return u.err() }

func (u *unavailableRepository) Close(context.Context) error { return nil }
