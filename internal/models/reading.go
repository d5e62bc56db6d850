package models

import "time"

// Reading is one telemetry record posted by a device.
// Measurements are pointers so that a field the device did not send stays absent.
type Reading struct {
	ID          string    `json:"_id"`
	DeviceID    string    `json:"device_id"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Light       *float64  `json:"light,omitempty"`
	DistanceCM  *float64  `json:"distance_cm,omitempty"`
	LEDState    *bool     `json:"led_state,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ReadingResponse is the body of a successful POST /data.
type ReadingResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *Reading `json:"data"`
}

// ReadingListResponse is the body of GET /data.
type ReadingListResponse struct {
	Success bool      `json:"success"`
	Count   int       `json:"count"`
	Data    []Reading `json:"data"`
}

// LatestReadingResponse is the body of GET /data/latest. When the store is empty
// Success is false and Message explains why; this is not an error.
type LatestReadingResponse struct {
	Success bool     `json:"success"`
	Data    *Reading `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
}

// BannerResponse is the body of GET /.
type BannerResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
	Status    string            `json:"status"`
}
