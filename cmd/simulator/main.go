// Command simulator posts synthetic sensor readings to a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"CapIot.webnode/internal/models"
)

type options struct {
	url      string
	deviceID string
	interval time.Duration
	count    int
}

// simulatedReading follows slow sine waves so dashboards show plausible curves.
func simulatedReading(deviceID string, tick int, rng *rand.Rand) map[string]any {
	phase := float64(tick) / 20
	temperature := 22 + 3*math.Sin(phase) + rng.NormFloat64()*0.2
	humidity := 45 + 10*math.Cos(phase) + rng.NormFloat64()*0.5
	light := math.Max(0, 400+350*math.Sin(phase/2)+rng.NormFloat64()*10)
	distance := 5 + rng.Float64()*195

	return map[string]any{
		"device_id":   deviceID,
		"temperature": math.Round(temperature*10) / 10,
		"humidity":    math.Round(humidity*10) / 10,
		"light":       math.Round(light),
		"distance_cm": math.Round(distance*10) / 10,
		"led_state":   distance < 30,
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", opts.interval)
	}
	client := resty.New().
		SetBaseURL(opts.url).
		SetTimeout(5 * time.Second).
		SetHeader("Content-Type", "application/json")
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for tick := 0; opts.count == 0 || tick < opts.count; tick++ {
		var created models.ReadingResponse
		var apiErr models.APIError
		resp, err := client.R().
			SetContext(ctx).
			SetBody(simulatedReading(opts.deviceID, tick, rng)).
			SetResult(&created).
			SetError(&apiErr).
			Post("/data")
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.Error("Error posting reading", "error", err)
		case resp.IsError():
			logger.Warn("Reading rejected", "status", resp.StatusCode(), "error", apiErr.Message)
		case created.Data != nil:
			logger.Info("Reading sent", "status", resp.StatusCode(), "id", created.Data.ID)
		}

		if opts.count != 0 && tick == opts.count-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func main() {
	var opts options
	flag.StringVar(&opts.url, "url", "http://localhost:3000", "Base URL of the server")
	flag.StringVar(&opts.deviceID, "device", "esp32-sim", "device_id sent with every reading")
	flag.DurationVar(&opts.interval, "interval", 5*time.Second, "Time between readings")
	flag.IntVar(&opts.count, "count", 0, "Number of readings to send (0 = until interrupted)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("Simulator failed", "error", err)
		os.Exit(1)
	}
}
