package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"CapIot.webnode/internal/models"
	"CapIot.webnode/internal/publisher"
	"CapIot.webnode/internal/repository"
)

// DefaultLimit is used by ListReadings when limit is absent or not a positive integer.
const DefaultLimit = 50

const publishTimeout = 2 * time.Second

var (
	// ErrValidation marks a request rejected before reaching storage.
	ErrValidation = errors.New("validation error")
	// ErrDeviceIDRequired is returned by AcceptReading for a missing or empty device_id.
	ErrDeviceIDRequired = fmt.Errorf("%w: device_id is required", ErrValidation)
)

// ReadingService handles the business logic for sensor readings.
type ReadingService struct {
	repo      repository.Repository
	publisher publisher.Publisher
	maxLimit  int
	logger    *slog.Logger
	now       func() time.Time
}

// NewReadingService creates a new ReadingService. A maxLimit of zero leaves
// the list limit unbounded.
func NewReadingService(repo repository.Repository, pub publisher.Publisher, maxLimit int, logger *slog.Logger) *ReadingService {
	if pub == nil {
		pub = publisher.Nop{}
	}
	return &ReadingService{
		repo:      repo,
		publisher: pub,
		maxLimit:  maxLimit,
		logger:    logger,
		now:       time.Now,
	}
}

// AcceptReading validates req, stamps it with the server time when it carries
// none, and stores it. The stored reading, with its ID, is returned.
func (s *ReadingService) AcceptReading(ctx context.Context, req models.ReadingRequest) (*models.Reading, error) {
	if req.DeviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	reading := req.ToReading()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now()
	}
	// Stores differ in precision; milliseconds survive all of them.
	reading.Timestamp = reading.Timestamp.UTC().Truncate(time.Millisecond)

	if err := s.repo.InsertReading(ctx, &reading); err != nil {
		s.logger.Error("Error saving reading", "payload", req.String(), "error", err)
		return nil, fmt.Errorf("error saving reading: %w", err)
	}
	s.logger.Info("Reading saved", "id", reading.ID, "device_id", reading.DeviceID)

	s.publish(ctx, reading)
	return &reading, nil
}

// publish is best-effort: the reading is already stored.
func (s *ReadingService) publish(ctx context.Context, reading models.Reading) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, reading); err != nil {
		s.logger.Warn("Could not publish reading", "id", reading.ID, "error", err)
	}
}

// ListReadings returns the most recent readings, newest first. rawLimit is
// the unparsed limit query parameter.
func (s *ReadingService) ListReadings(ctx context.Context, rawLimit string) ([]models.Reading, error) {
	limit := ParseLimit(rawLimit, s.maxLimit)
	readings, err := s.repo.ListReadings(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing readings: %w", err)
	}
	return readings, nil
}

// ParseLimit turns the limit query parameter into a count. The whole value must
// be a decimal integer: a numeric prefix such as "10abc" is not read as 10 and,
// like absent, non-numeric, zero and negative values, gives DefaultLimit.
// maxLimit > 0 clamps.
func ParseLimit(raw string, maxLimit int) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		limit = DefaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// LatestReading returns the newest reading. A nil reading with a nil error
// means the store is empty.
func (s *ReadingService) LatestReading(ctx context.Context) (*models.Reading, error) {
	reading, err := s.repo.LatestReading(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching latest reading: %w", err)
	}
	return reading, nil
}

// Ping reports whether the store is reachable.
func (s *ReadingService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
