package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/eventbus"
	"github.com/dokzlo13/plantboxd/internal/model"
)

// FetchOutcome is the result of one MaybeFetch call
type FetchOutcome int

const (
	FetchSkipped FetchOutcome = iota
	FetchUpdated
	FetchFailed
)

func (o FetchOutcome) String() string {
	switch o {
	case FetchSkipped:
		return "skipped"
	case FetchUpdated:
		return "updated"
	case FetchFailed:
		return "failed"
	default:
		return fmt.Sprintf("FetchOutcome(%d)", int(o))
	}
}

// Range is an inclusive band reported by the backend
type Range struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func (r *Range) bounds(name string) (float64, float64, error) {
	if r.Min == nil || r.Max == nil {
		return 0, 0, fmt.Errorf("%s range needs both min and max", name)
	}
	if *r.Min > *r.Max {
		return 0, 0, fmt.Errorf("%s range min %g > max %g", name, *r.Min, *r.Max)
	}
	return *r.Min, *r.Max, nil
}

// ReferenceValues is the document served by the reference values endpoint.
// Every field is optional; absent fields leave the current target alone.
type ReferenceValues struct {
	HardwareID string `json:"hardware_id,omitempty"`
	Targets    *struct {
		AirTemp  *Range `json:"air_temp"`
		Humidity *Range `json:"humidity"`
	} `json:"targets,omitempty"`
	TargetTemperatureC *float64 `json:"target_temperature_c,omitempty"`
	TriggerWatering    *bool    `json:"trigger_watering,omitempty"`
}

// Synchronizer polls the backend for setpoints at a fixed minimum interval.
type Synchronizer struct {
	client   *Client
	gate     *Gate
	policy   SetpointPolicy
	deviceID string
	bus      eventbus.Publisher

	lastErr error
}

// NewSynchronizer creates a synchronizer. A nil policy selects the midpoint
// and a nil bus discards events.
func NewSynchronizer(client *Client, interval time.Duration, policy SetpointPolicy, deviceID string, bus eventbus.Publisher) *Synchronizer {
	if policy == nil {
		policy = Midpoint
	}
	if bus == nil {
		bus = eventbus.Discard
	}
	return &Synchronizer{
		client:   client,
		gate:     NewGate(interval),
		policy:   policy,
		deviceID: deviceID,
		bus:      bus,
	}
}

// MaybeFetch performs at most one GET when the poll interval has elapsed.
// On success it overwrites exactly the fields present in the response; on
// any failure targets is left untouched. Errors never escape: they are
// logged, published and kept for LastError.
func (s *Synchronizer) MaybeFetch(ctx context.Context, now time.Time, targets *model.SystemTargets) FetchOutcome {
	if !s.gate.Allow(now) {
		return FetchSkipped
	}

	next, err := s.fetch(ctx, *targets)
	if err != nil {
		s.lastErr = err
		log.Warn().
			Err(err).
			Str("kind", errorKind(err)).
			Str("url", s.client.ConfigURL()).
			Msg("Failed to fetch reference values")
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventSyncFailed,
			Time: now,
			Data: map[string]any{"error": err.Error(), "kind": errorKind(err)},
		})
		return FetchFailed
	}
	s.lastErr = nil

	if !next.Equal(*targets) {
		data := map[string]any{
			"target_temp_c":    next.TargetTempC,
			"trigger_watering": next.TriggerWatering,
		}
		if next.TargetHumidityPct != nil {
			data["target_humidity_pct"] = *next.TargetHumidityPct
		}
		log.Info().
			Float64("target_temp_c", next.TargetTempC).
			Bool("trigger_watering", next.TriggerWatering).
			Msg("Reference values updated")
		s.bus.Publish(eventbus.Event{Type: eventbus.EventSetpointsUpdated, Time: now, Data: data})
	} else {
		log.Debug().Msg("Reference values unchanged")
	}

	*targets = next
	return FetchUpdated
}

// LastError returns the error of the most recent attempt, nil after a success
func (s *Synchronizer) LastError() error {
	return s.lastErr
}

// fetch returns current with the response applied. current is a copy, so
// a validation failure halfway through never leaks into the caller's targets.
func (s *Synchronizer) fetch(ctx context.Context, current model.SystemTargets) (model.SystemTargets, error) {
	var doc ReferenceValues
	if err := s.client.GetJSON(ctx, &doc); err != nil {
		return current, err
	}

	protoErr := func(err error) error {
		return &ProtocolError{Op: "GET", URL: s.client.ConfigURL(), Err: err}
	}

	if doc.HardwareID != "" && doc.HardwareID != s.deviceID {
		log.Warn().
			Str("hardware_id", doc.HardwareID).
			Str("device_id", s.deviceID).
			Msg("Backend answered for a different device id")
	}

	applied := false
	next := current

	switch {
	case doc.Targets != nil && doc.Targets.AirTemp != nil:
		min, max, err := doc.Targets.AirTemp.bounds("air_temp")
		if err != nil {
			return current, protoErr(err)
		}
		target, err := s.policy.Select(ctx, min, max)
		if err != nil {
			return current, protoErr(fmt.Errorf("setpoint policy: %w", err))
		}
		next.TargetTempC = target
		applied = true
	case doc.TargetTemperatureC != nil:
		next.TargetTempC = *doc.TargetTemperatureC
		applied = true
	}

	if doc.Targets != nil && doc.Targets.Humidity != nil {
		min, max, err := doc.Targets.Humidity.bounds("humidity")
		if err != nil {
			return current, protoErr(err)
		}
		humidity := (min + max) / 2
		next.TargetHumidityPct = &humidity
		applied = true
	}

	if doc.TriggerWatering != nil {
		next.TriggerWatering = *doc.TriggerWatering
		applied = true
	}

	if !applied {
		return current, protoErr(errors.New("response carries no reference values"))
	}
	return next, nil
}

func errorKind(err error) string {
	var transport *TransportError
	var protocol *ProtocolError
	switch {
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &protocol):
		return "protocol"
	default:
		return "internal"
	}
}
