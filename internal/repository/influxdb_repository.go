package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"CapIot.webnode/internal/models"
)

const (
	influxMeasurement = "sensor_data"
	// receivedField is written on every point so a reading without any
	// measurement still has a field.
	receivedField = "received"
)

// InfluxDBRepository stores each reading as its own series: device_id and the
// generated id are tags, the measurements are fields.
type InfluxDBRepository struct {
	client influxdb2.Client
	org    string
	bucket string
	logger *slog.Logger
}

// NewInfluxDBRepository creates a new InfluxDBRepository.
func NewInfluxDBRepository(url, token, org, bucket string, logger *slog.Logger) *InfluxDBRepository {
	return &InfluxDBRepository{
		client: influxdb2.NewClient(url, token),
		org:    org,
		bucket: bucket,
		logger: logger,
	}
}

// Prepare creates the bucket if it does not exist yet.
func (r *InfluxDBRepository) Prepare(ctx context.Context) error {
	exists, err := r.bucketExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	org, err := r.client.OrganizationsAPI().FindOrganizationByName(ctx, r.org)
	if err != nil {
		return storageErr(fmt.Sprintf("find organization %q", r.org), err)
	}
	if _, err := r.client.BucketsAPI().CreateBucketWithName(ctx, org, r.bucket); err != nil {
		return storageErr(fmt.Sprintf("create bucket %q", r.bucket), err)
	}
	r.logger.Info("Bucket created", "bucket", r.bucket, "org", r.org)
	return nil
}

func (r *InfluxDBRepository) bucketExists(ctx context.Context) (bool, error) {
	_, err := r.client.BucketsAPI().FindBucketByName(ctx, r.bucket)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, storageErr("check bucket existence", err)
	}
	return true, nil
}

// InsertReading writes one point and sets r.ID to a new UUID.
func (r *InfluxDBRepository) InsertReading(ctx context.Context, reading *models.Reading) error {
	id := uuid.NewString()
	if err := r.client.WriteAPIBlocking(r.org, r.bucket).WritePoint(ctx, toPoint(id, reading)); err != nil {
		return storageErr("write point", err)
	}
	reading.ID = id
	r.logger.Debug("Data point written to InfluxDB", "bucket", r.bucket, "id", id, "device_id", reading.DeviceID)
	return nil
}

func toPoint(id string, reading *models.Reading) *write.Point {
	fields := map[string]interface{}{receivedField: true}
	if reading.Temperature != nil {
		fields["temperature"] = *reading.Temperature
	}
	if reading.Humidity != nil {
		fields["humidity"] = *reading.Humidity
	}
	if reading.Light != nil {
		fields["light"] = *reading.Light
	}
	if reading.DistanceCM != nil {
		fields["distance_cm"] = *reading.DistanceCM
	}
	if reading.LEDState != nil {
		fields["led_state"] = *reading.LEDState
	}
	return influxdb2.NewPoint(
		influxMeasurement,
		map[string]string{"device_id": reading.DeviceID, "id": id},
		fields,
		reading.Timestamp,
	)
}

// ListReadings returns at most limit readings, newest first.
func (r *InfluxDBRepository) ListReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	flux := newestFirstQuery(r.bucket, limit)
	r.logger.Debug("Executing InfluxDB query", "query", flux)

	result, err := r.client.QueryAPI(r.org).Query(ctx, flux)
	if err != nil {
		return nil, storageErr("query readings", err)
	}
	defer result.Close()

	readings := make([]models.Reading, 0, min(limit, preallocLimit))
	for result.Next() {
		readings = append(readings, fromRecord(result.Record()))
	}
	if result.Err() != nil {
		return nil, storageErr("iterate readings", result.Err())
	}
	return readings, nil
}

// LatestReading returns the newest reading, or nil when the bucket is empty.
func (r *InfluxDBRepository) LatestReading(ctx context.Context) (*models.Reading, error) {
	readings, err := r.ListReadings(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// newestFirstQuery pivots the fields of each point back into one row. Tables
// are still grouped by series at the pivot, so readings sharing a timestamp stay
// apart. Timestamps before 1970 are rejected at decode time.
func newestFirstQuery(bucket string, limit int) string {
	return fmt.Sprintf(`from(bucket: %s)
	|> range(start: 0)
	|> filter(fn: (r) => r["_measurement"] == %s)
	|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
	|> group()
	|> sort(columns: ["_time", "id"], desc: true)
	|> limit(n: %d)`, strconv.Quote(bucket), strconv.Quote(influxMeasurement), limit)
}

func fromRecord(record *query.FluxRecord) models.Reading {
	reading := models.Reading{Timestamp: record.Time().UTC()}
	if id, ok := record.ValueByKey("id").(string); ok {
		reading.ID = id
	}
	if deviceID, ok := record.ValueByKey("device_id").(string); ok {
		reading.DeviceID = deviceID
	}
	reading.Temperature = floatValue(record, "temperature")
	reading.Humidity = floatValue(record, "humidity")
	reading.Light = floatValue(record, "light")
	reading.DistanceCM = floatValue(record, "distance_cm")
	if b, ok := record.ValueByKey("led_state").(bool); ok {
		reading.LEDState = &b
	}
	return reading
}

func floatValue(record *query.FluxRecord, key string) *float64 {
	switch v := record.ValueByKey(key).(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

// Ping checks the health endpoint of the server.
func (r *InfluxDBRepository) Ping(ctx context.Context) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return storageErr("health check", err)
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return storageErr("health check", fmt.Errorf("status %s: %s", health.Status, msg))
	}
	return nil
}

// Close releases the client's resources.
func (r *InfluxDBRepository) Close(context.Context) error {
	r.client.Close()
	return nil
}

var _ Repository = (*InfluxDBRepository)(nil)
