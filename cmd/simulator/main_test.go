package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedReading(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for tick := range 100 {
		r := simulatedReading("esp32-sim", tick, rng)

		assert.Equal(t, "esp32-sim", r["device_id"])
		assert.InDelta(t, 22, r["temperature"], 5)
		assert.InDelta(t, 45, r["humidity"], 15)
		assert.GreaterOrEqual(t, r["light"], 0.0)
		assert.GreaterOrEqual(t, r["distance_cm"], 5.0)
		assert.LessOrEqual(t, r["distance_cm"], 200.0)
		assert.IsType(t, true, r["led_state"])
	}
}

func TestRun_PostsCountReadings(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/data", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dev-test", body["device_id"])

		posts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"message":"ok","data":{"_id":"1","device_id":"dev-test","timestamp":"2024-05-01T12:00:00Z"}}`)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := options{url: srv.URL, deviceID: "dev-test", interval: time.Millisecond, count: 3}

	require.NoError(t, run(context.Background(), opts, logger))
	assert.Equal(t, int32(3), posts.Load())
}

func TestRun_RejectsBadInterval(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := run(context.Background(), options{url: "http://localhost:0", interval: 0, count: 1}, logger)
	assert.Error(t, err)
}
