package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"CapIot.webnode/internal/models"
)

// SQLiteMemory opens a private in-memory database.
const SQLiteMemory = ":memory:"

// SQLiteRepository stores readings in a single SQLite table. seq keeps insertion
// order for readings that share a timestamp.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database file at path and creates the schema.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	repo := &SQLiteRepository{db: db}
	if err := repo.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == SQLiteMemory {
		db, err := sql.Open("sqlite3", SQLiteMemory)
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
		return db, nil
	}

	uri := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func (s *SQLiteRepository) createSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS readings (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		device_id TEXT NOT NULL,
		temperature REAL,
		humidity REAL,
		light REAL,
		distance_cm REAL,
		led_state BOOLEAN,
		timestamp_ms INTEGER NOT NULL
	);`); err != nil {
		return storageErr("create readings table", err)
	}

	if _, err := s.db.ExecContext(ctx, `
	CREATE INDEX IF NOT EXISTS idx_readings_timestamp_seq
	ON readings(timestamp_ms DESC, seq DESC);`); err != nil {
		return storageErr("create readings index", err)
	}
	return nil
}

// InsertReading inserts one row and sets r.ID to a new UUID.
func (s *SQLiteRepository) InsertReading(ctx context.Context, r *models.Reading) error {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (id, device_id, temperature, humidity, light, distance_cm, led_state, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.DeviceID, r.Temperature, r.Humidity, r.Light, r.DistanceCM, r.LEDState, r.Timestamp.UTC().UnixMilli())
	if err != nil {
		return storageErr("insert reading", err)
	}
	r.ID = id
	return nil
}

const selectReadings = `
	SELECT id, device_id, temperature, humidity, light, distance_cm, led_state, timestamp_ms
	FROM readings
	ORDER BY timestamp_ms DESC, seq DESC
	LIMIT ?`

// ListReadings returns at most limit readings, newest first.
func (s *SQLiteRepository) ListReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, selectReadings, limit)
	if err != nil {
		return nil, storageErr("query readings", err)
	}
	defer rows.Close()

	out := make([]models.Reading, 0, min(limit, preallocLimit))
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, storageErr("scan reading", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate readings", err)
	}
	return out, nil
}

// LatestReading returns the newest reading, or nil when the table is empty.
func (s *SQLiteRepository) LatestReading(ctx context.Context) (*models.Reading, error) {
	readings, err := s.ListReadings(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

func scanReading(rows *sql.Rows) (models.Reading, error) {
	var r models.Reading
	var tsMillis int64
	if err := rows.Scan(
		&r.ID, &r.DeviceID, &r.Temperature, &r.Humidity, &r.Light, &r.DistanceCM, &r.LEDState, &tsMillis,
	); err != nil {
		return models.Reading{}, err
	}
	r.Timestamp = time.UnixMilli(tsMillis).UTC()
	return r, nil
}

func (s *SQLiteRepository) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping sqlite db", err)
	}
	return nil
}

func (s *SQLiteRepository) Close(context.Context) error {
	return s.db.Close()
}
