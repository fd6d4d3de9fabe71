package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/eventbus"
	"github.com/dokzlo13/plantboxd/internal/model"
)

// PushOutcome is the result of one MaybePush call
type PushOutcome int

const (
	PushSkipped PushOutcome = iota
	PushSent
	PushFailed
)

func (o PushOutcome) String() string {
	switch o {
	case PushSkipped:
		return "skipped"
	case PushSent:
		return "sent"
	case PushFailed:
		return "failed"
	default:
		return fmt.Sprintf("PushOutcome(%d)", int(o))
	}
}

// TelemetryPayload is the document posted to the telemetry endpoint
type TelemetryPayload struct {
	DeviceID   string              `json:"device_id"`
	CapturedAt string              `json:"captured_at"`
	Sensors    model.SensorReading `json:"sensors"`
	Actuators  model.ActuatorState `json:"actuators"`
}

// Reporter pushes telemetry at a fixed minimum interval. Delivery is best
// effort: a failed push is logged and dropped, never queued.
type Reporter struct {
	client   *Client
	gate     *Gate
	deviceID string
	bus      eventbus.Publisher

	lastErr error
}

// NewReporter creates a reporter. A nil bus discards events.
func NewReporter(client *Client, interval time.Duration, deviceID string, bus eventbus.Publisher) *Reporter {
	if bus == nil {
		bus = eventbus.Discard
	}
	return &Reporter{
		client:   client,
		gate:     NewGate(interval),
		deviceID: deviceID,
		bus:      bus,
	}
}

// MaybePush performs at most one POST when the telemetry interval has elapsed.
func (r *Reporter) MaybePush(ctx context.Context, now time.Time, reading model.SensorReading, actuators model.ActuatorState) PushOutcome {
	if !r.gate.Allow(now) {
		return PushSkipped
	}

	capturedAt := reading.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = now
	}
	payload := TelemetryPayload{
		DeviceID:   r.deviceID,
		CapturedAt: capturedAt.UTC().Format(time.RFC3339),
		Sensors:    reading,
		Actuators:  actuators,
	}

	if err := r.client.PostJSON(ctx, payload); err != nil {
		r.lastErr = err
		log.Warn().
			Err(err).
			Str("kind", errorKind(err)).
			Str("url", r.client.TelemetryURL()).
			Msg("Failed to send telemetry")
		r.bus.Publish(eventbus.Event{
			Type: eventbus.EventTelemetryFailed,
			Time: now,
			Data: map[string]any{"error": err.Error(), "kind": errorKind(err)},
		})
		return PushFailed
	}
	r.lastErr = nil

	log.Debug().
		Float64("air_temp_c", reading.AirTempC).
		Uint8("heater_pwm", actuators.HeaterPWM).
		Msg("Telemetry sent")
	r.bus.Publish(eventbus.Event{
		Type: eventbus.EventTelemetrySent,
		Time: now,
		Data: map[string]any{"air_temp_c": reading.AirTempC, "humidity_pct": reading.HumidityPct},
	})
	return PushSent
}

// LastError returns the error of the most recent attempt, nil after a success
func (r *Reporter) LastError() error {
	return r.lastErr
}
