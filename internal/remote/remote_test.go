package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/plantboxd/internal/config"
	"github.com/dokzlo13/plantboxd/internal/eventbus"
	"github.com/dokzlo13/plantboxd/internal/model"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) Publish(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []eventbus.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventbus.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.BackendConfig{
		BaseURL:       srv.URL,
		ConfigPath:    "/devices/{device_id}/fetchRefVals",
		TelemetryPath: "/sendTelemetry",
	}
	return NewClient(cfg, "PlantBox-1", srv.Client()), srv
}

func ptr(v float64) *float64 { return &v }

func TestSynchronizer_MaybeFetch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		policy  SetpointPolicy
		start   model.SystemTargets
		want    model.SystemTargets
		outcome FetchOutcome
	}{
		{
			name:    "range with midpoint",
			body:    `{"hardware_id":"PlantBox-1","targets":{"air_temp":{"min":18,"max":28},"humidity":{"min":55,"max":70}},"trigger_watering":true}`,
			start:   model.DefaultTargets(),
			want:    model.SystemTargets{TargetTempC: 23, TargetHumidityPct: ptr(62.5), TriggerWatering: true},
			outcome: FetchUpdated,
		},
		{
			name:    "range with min policy",
			body:    `{"targets":{"air_temp":{"min":18,"max":28}}}`,
			policy:  Lower,
			start:   model.DefaultTargets(),
			want:    model.SystemTargets{TargetTempC: 18},
			outcome: FetchUpdated,
		},
		{
			name:    "flat temperature",
			body:    `{"target_temperature_c":21.0}`,
			start:   model.SystemTargets{TargetTempC: 24, TargetHumidityPct: ptr(60)},
			want:    model.SystemTargets{TargetTempC: 21, TargetHumidityPct: ptr(60)},
			outcome: FetchUpdated,
		},
		{
			name:    "only trigger present",
			body:    `{"trigger_watering":true}`,
			start:   model.SystemTargets{TargetTempC: 26},
			want:    model.SystemTargets{TargetTempC: 26, TriggerWatering: true},
			outcome: FetchUpdated,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			start:   model.SystemTargets{TargetTempC: 26, TriggerWatering: true},
			want:    model.SystemTargets{TargetTempC: 26, TriggerWatering: true},
			outcome: FetchFailed,
		},
		{
			name:    "malformed json",
			body:    `{"targets":`,
			start:   model.SystemTargets{TargetTempC: 26},
			want:    model.SystemTargets{TargetTempC: 26},
			outcome: FetchFailed,
		},
		{
			name:    "inverted range",
			body:    `{"targets":{"air_temp":{"min":30,"max":20}},"trigger_watering":true}`,
			start:   model.SystemTargets{TargetTempC: 26},
			want:    model.SystemTargets{TargetTempC: 26},
			outcome: FetchFailed,
		},
		{
			name:    "bad humidity after good temperature",
			body:    `{"targets":{"air_temp":{"min":20,"max":22},"humidity":{"min":50}}}`,
			start:   model.SystemTargets{TargetTempC: 26},
			want:    model.SystemTargets{TargetTempC: 26},
			outcome: FetchFailed,
		},
		{
			name:    "empty document",
			body:    `{}`,
			start:   model.SystemTargets{TargetTempC: 26},
			want:    model.SystemTargets{TargetTempC: 26},
			outcome: FetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/devices/PlantBox-1/fetchRefVals" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				io.WriteString(w, tt.body)
			})
			bus := &recorder{}
			s := NewSynchronizer(client, 5*time.Second, tt.policy, "PlantBox-1", bus)

			targets := tt.start
			if got := s.MaybeFetch(context.Background(), t0, &targets); got != tt.outcome {
				t.Fatalf("MaybeFetch() = %v, want %v", got, tt.outcome)
			}
			if !targets.Equal(tt.want) {
				t.Errorf("targets = %+v, want %+v", targets, tt.want)
			}
			if tt.outcome == FetchFailed {
				var proto *ProtocolError
				if !errors.As(s.LastError(), &proto) {
					t.Errorf("LastError() = %v, want ProtocolError", s.LastError())
				}
				if types := bus.types(); len(types) != 1 || types[0] != eventbus.EventSyncFailed {
					t.Errorf("events = %v, want sync_failed", types)
				}
			} else if s.LastError() != nil {
				t.Errorf("LastError() = %v after success", s.LastError())
			}
		})
	}
}

func TestSynchronizer_RateLimited(t *testing.T) {
	var calls int
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"target_temperature_c":22}`)
	})
	s := NewSynchronizer(client, 5*time.Second, nil, "PlantBox-1", nil)
	targets := model.DefaultTargets()

	for ms := 0; ms < 12000; ms += 100 {
		s.MaybeFetch(context.Background(), t0.Add(time.Duration(ms)*time.Millisecond), &targets)
	}
	if calls != 3 {
		t.Errorf("backend called %d times in 12s at 5s interval, want 3", calls)
	}
}

func TestSynchronizer_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(config.BackendConfig{BaseURL: url, ConfigPath: "/cfg", TelemetryPath: "/t"}, "box", nil)
	s := NewSynchronizer(client, time.Second, nil, "box", nil)
	targets := model.SystemTargets{TargetTempC: 25, TriggerWatering: true}

	if got := s.MaybeFetch(context.Background(), t0, &targets); got != FetchFailed {
		t.Fatalf("MaybeFetch() = %v, want FetchFailed", got)
	}
	if !targets.Equal(model.SystemTargets{TargetTempC: 25, TriggerWatering: true}) {
		t.Errorf("targets changed on transport failure: %+v", targets)
	}
	var transport *TransportError
	if !errors.As(s.LastError(), &transport) {
		t.Errorf("LastError() = %v, want TransportError", s.LastError())
	}
	if transport != nil && transport.Unwrap() == nil {
		t.Error("TransportError should wrap its cause")
	}
}

type failingPolicy struct{}

func (failingPolicy) Select(context.Context, float64, float64) (float64, error) {
	return 0, errors.New("script error")
}

func TestSynchronizer_PolicyFailureKeepsTargets(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"targets":{"air_temp":{"min":18,"max":28}},"trigger_watering":true}`)
	})
	s := NewSynchronizer(client, time.Second, failingPolicy{}, "PlantBox-1", nil)
	targets := model.DefaultTargets()

	if got := s.MaybeFetch(context.Background(), t0, &targets); got != FetchFailed {
		t.Fatalf("MaybeFetch() = %v, want FetchFailed", got)
	}
	if !targets.Equal(model.DefaultTargets()) {
		t.Errorf("targets = %+v, want defaults", targets)
	}
}

func TestReporter_MaybePush(t *testing.T) {
	var got TelemetryPayload
	var posts int
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		posts++
		if r.Method != http.MethodPost || r.URL.Path != "/sendTelemetry" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})
	bus := &recorder{}
	rep := NewReporter(client, 10*time.Second, "PlantBox-1", bus)

	reading := model.SensorReading{AirTempC: 22.4, HumidityPct: 60, WaterLevelPct: 85, CapturedAt: t0}
	actuators := model.ActuatorState{HeaterPWM: 7, LightsOn: true, FluidStep: "idle"}

	if out := rep.MaybePush(context.Background(), t0, reading, actuators); out != PushSent {
		t.Fatalf("MaybePush() = %v, want PushSent", out)
	}
	if out := rep.MaybePush(context.Background(), t0.Add(9*time.Second), reading, actuators); out != PushSkipped {
		t.Errorf("MaybePush() inside interval = %v, want PushSkipped", out)
	}
	if posts != 1 {
		t.Errorf("posts = %d, want 1", posts)
	}

	if got.DeviceID != "PlantBox-1" || got.CapturedAt != "2024-05-01T08:00:00Z" {
		t.Errorf("payload header = %+v", got)
	}
	if got.Sensors.AirTempC != 22.4 || got.Sensors.WaterLevelPct != 85 {
		t.Errorf("sensors = %+v", got.Sensors)
	}
	if got.Actuators.HeaterPWM != 7 || !got.Actuators.LightsOn || got.Actuators.FluidStep != "idle" {
		t.Errorf("actuators = %+v", got.Actuators)
	}
	if types := bus.types(); len(types) != 1 || types[0] != eventbus.EventTelemetrySent {
		t.Errorf("events = %v", types)
	}
}

func TestReporter_FailureIsDropped(t *testing.T) {
	var posts int
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusBadGateway)
	})
	rep := NewReporter(client, 10*time.Second, "PlantBox-1", nil)

	if out := rep.MaybePush(context.Background(), t0, model.SensorReading{}, model.ActuatorState{}); out != PushFailed {
		t.Fatalf("MaybePush() = %v, want PushFailed", out)
	}
	var proto *ProtocolError
	if !errors.As(rep.LastError(), &proto) || proto.Status != http.StatusBadGateway {
		t.Errorf("LastError() = %v", rep.LastError())
	}

	// No retry before the next interval
	rep.MaybePush(context.Background(), t0.Add(time.Second), model.SensorReading{}, model.ActuatorState{})
	if posts != 1 {
		t.Errorf("posts = %d, want 1", posts)
	}
}

func TestBuiltinPolicy(t *testing.T) {
	tests := []struct {
		name string
		want float64
	}{
		{"", 23},
		{config.PolicyMidpoint, 23},
		{config.PolicyMin, 18},
		{config.PolicyMax, 28},
	}
	for _, tt := range tests {
		p, err := BuiltinPolicy(tt.name)
		if err != nil {
			t.Fatalf("BuiltinPolicy(%q) error = %v", tt.name, err)
		}
		if got, _ := p.Select(context.Background(), 18, 28); got != tt.want {
			t.Errorf("BuiltinPolicy(%q).Select = %v, want %v", tt.name, got, tt.want)
		}
	}
	if _, err := BuiltinPolicy(config.PolicyLua); err == nil {
		t.Error("lua is not a builtin policy")
	}
}
