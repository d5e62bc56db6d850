package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"
)

// ErrNotAnObject is returned when the body is valid JSON but not an object.
var ErrNotAnObject = errors.New("request body must be a JSON object")

// ReadingRequest is the body accepted by POST /data.
//
// Devices are not trusted to send well-typed JSON: a field holding a value of
// the wrong type is dropped instead of failing the whole request. Unknown
// fields are ignored. Only a body that is not a JSON object is an error.
type ReadingRequest struct {
	DeviceID    string
	Temperature *float64
	Humidity    *float64
	Light       *float64
	DistanceCM  *float64
	LEDState    *bool
	Timestamp   *time.Time
}

// UnmarshalJSON decodes the body field by field.
func (r *ReadingRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return ErrNotAnObject
	}

	*r = ReadingRequest{
		DeviceID:    decodeDeviceID(raw["device_id"]),
		Temperature: decodeNumber(raw["temperature"]),
		Humidity:    decodeNumber(raw["humidity"]),
		Light:       decodeNumber(raw["light"]),
		DistanceCM:  decodeNumber(raw["distance_cm"]),
		LEDState:    decodeBool(raw["led_state"]),
		Timestamp:   decodeTimestamp(raw["timestamp"]),
	}
	return nil
}

// ToReading builds the reading to persist. The timestamp is left zero when the
// device did not send one; the service fills it in.
func (r ReadingRequest) ToReading() Reading {
	reading := Reading{
		DeviceID:    r.DeviceID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Light:       r.Light,
		DistanceCM:  r.DistanceCM,
		LEDState:    r.LEDState,
	}
	if r.Timestamp != nil {
		reading.Timestamp = r.Timestamp.UTC()
	}
	return reading
}

// decodeDeviceID accepts a string or a number (kept as its literal text).
func decodeDeviceID(msg json.RawMessage) string {
	if len(msg) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

func decodeNumber(msg json.RawMessage) *float64 {
	if len(msg) == 0 {
		return nil
	}
	var f *float64
	if err := json.Unmarshal(msg, &f); err != nil {
		return nil
	}
	return f
}

func decodeBool(msg json.RawMessage) *bool {
	if len(msg) == 0 {
		return nil
	}
	var b *bool
	if err := json.Unmarshal(msg, &b); err != nil {
		return nil
	}
	return b
}

// Device timestamps outside [minTimestamp, maxTimestamp] are treated as absent.
var (
	minTimestamp = time.Unix(0, 0).UTC()
	maxTimestamp = time.Date(9999, 12, 31, 23, 59, 59, 999_999_999, time.UTC)
)

// decodeTimestamp accepts an RFC 3339 string or Unix seconds.
func decodeTimestamp(msg json.RawMessage) *time.Time {
	if len(msg) == 0 {
		return nil
	}
	var t time.Time
	var s string
	var secs float64
	switch {
	case json.Unmarshal(msg, &s) == nil:
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil
		}
		t = parsed.UTC()
	case json.Unmarshal(msg, &secs) == nil:
		if secs < float64(minTimestamp.Unix()) || secs > float64(maxTimestamp.Unix()) {
			return nil
		}
		whole := math.Floor(secs)
		t = time.Unix(int64(whole), int64((secs-whole)*1e9)).UTC()
	default:
		return nil
	}
	if t.Before(minTimestamp) || t.After(maxTimestamp) {
		return nil
	}
	return &t
}

// String is used when logging a rejected or failed payload.
func (r ReadingRequest) String() string {
	b, err := json.Marshal(r.ToReading())
	if err != nil {
		return strconv.Quote(r.DeviceID)
	}
	return string(b)
}
