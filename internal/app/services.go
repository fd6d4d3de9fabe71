package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/config"
	"github.com/dokzlo13/plantboxd/internal/control"
	"github.com/dokzlo13/plantboxd/internal/db"
	"github.com/dokzlo13/plantboxd/internal/eventbus"
	"github.com/dokzlo13/plantboxd/internal/fluid"
	"github.com/dokzlo13/plantboxd/internal/ledger"
	"github.com/dokzlo13/plantboxd/internal/loop"
	"github.com/dokzlo13/plantboxd/internal/metrics"
	"github.com/dokzlo13/plantboxd/internal/mqtt"
	"github.com/dokzlo13/plantboxd/internal/remote"
	"github.com/dokzlo13/plantboxd/internal/scheduler"
	"github.com/dokzlo13/plantboxd/internal/state"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB      *db.DB
	Ledger  *ledger.Ledger
	Store   *state.Store
	Targets *state.TargetsStore
	Bus     *eventbus.Bus
	Metrics *metrics.Metrics

	// Outer surfaces
	Hardware *HardwareService
	MQTT     *mqtt.Publisher
	Status   *StatusService
	Cleanup  *LedgerService

	// Control loop, built on Start so --reset-state is honored
	Loop *loop.Orchestrator

	policy      remote.SetpointPolicy
	closePolicy func()
	loopDone    chan struct{}
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB, cfg.Device.ID)
	s.Store = state.NewStore(database.DB)
	s.Targets = state.NewTargetsStore(s.Store)
	s.Bus = eventbus.New()
	s.Metrics = metrics.New()

	if cfg.Ledger.IsEnabled() {
		s.Bus.SubscribeAll(s.Ledger.Record)
	}

	s.policy, s.closePolicy, err = loadPolicy(cfg.Sync, cfg.Dir)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("setpoint policy: %w", err)
	}

	s.Hardware, err = NewHardwareService(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Cleanup = NewLedgerService(cfg, s.Ledger)

	return s, nil
}

// Start builds the control loop and starts it with every side service.
// The onFatalError callback is called when the loop exits unexpectedly.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if s.cfg.MQTT.Enabled {
		pub, err := mqtt.Connect(s.cfg.MQTT, s.cfg.Device.ID)
		if err != nil {
			// The mirror is optional; the loop runs without it
			log.Warn().Err(err).Msg("MQTT mirror disabled")
		} else {
			s.MQTT = pub
			s.Bus.SubscribeAll(pub.Handle)
		}
	}

	orchestrator, err := s.buildLoop()
	if err != nil {
		return err
	}
	s.Loop = orchestrator

	s.Status = NewStatusService(s.cfg, s.Loop, s.Ledger, s.Metrics)

	s.loopDone = make(chan struct{})
	go func() {
		defer close(s.loopDone)
		if err := s.Loop.Run(ctx); err != nil && ctx.Err() == nil {
			onFatalError(err)
		}
	}()

	s.Status.Start(ctx)
	s.Cleanup.Start(ctx)

	return nil
}

func (s *Services) buildLoop() (*loop.Orchestrator, error) {
	cfg := s.cfg
	now := time.Now()

	targets, restored, err := s.Targets.Load(cfg.Device.ID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted targets, using defaults")
	} else if restored {
		log.Info().Float64("target_temp_c", targets.TargetTempC).Msg("Restored persisted targets")
	}

	schedule, err := newLightSchedule(cfg.Lights, now)
	if err != nil {
		return nil, fmt.Errorf("light schedule: %w", err)
	}

	client := remote.NewClient(cfg.Backend, cfg.Device.ID, &http.Client{Timeout: cfg.Backend.Timeout.Duration()})
	log.Info().
		Str("config_url", client.ConfigURL()).
		Str("telemetry_url", client.TelemetryURL()).
		Msg("Backend endpoints")

	controller := control.NewTemperatureController(control.Gains{
		Kp: cfg.PID.Kp,
		Ki: cfg.PID.Ki,
		Kd: cfg.PID.Kd,
	}, now)
	dispatcher := fluid.NewDispatcher(fluid.HoldTimes{
		Dispense:   cfg.Fluid.Dispense.Duration(),
		Mix:        cfg.Fluid.Mix.Duration(),
		Distribute: cfg.Fluid.Distribute.Duration(),
	})
	syncer := remote.NewSynchronizer(client, cfg.Sync.PollInterval.Duration(), s.policy, cfg.Device.ID, s.Bus)
	reporter := remote.NewReporter(client, cfg.Telemetry.Interval.Duration(), cfg.Device.ID, s.Bus)

	return loop.New(loop.Deps{
		DeviceID:   cfg.Device.ID,
		Cadence:    cfg.Loop.Cadence.Duration(),
		Targets:    &targets,
		Sync:       syncer,
		Reporter:   reporter,
		Sensors:    s.Hardware.Sensors,
		Sink:       s.Hardware.Sink,
		Controller: controller,
		Fluid:      dispatcher,
		Lights:     scheduler.NewLightScheduler(schedule),
		Bus:        s.Bus,
		Metrics:    s.Metrics,
		Saver:      s.Targets,
	}), nil
}

// newLightSchedule builds the configured schedule; cycle mode is anchored at boot
func newLightSchedule(cfg config.LightsConfig, boot time.Time) (scheduler.Schedule, error) {
	if cfg.Mode == config.LightsDaily {
		return scheduler.NewDailySchedule(cfg.Start, cfg.End, cfg.Timezone)
	}
	return scheduler.NewCycleSchedule(boot, cfg.Period.Duration(), cfg.OnDuration.Duration())
}

// ClearState clears persisted targets.
func (s *Services) ClearState() error {
	return s.Targets.Reset()
}

// Stop waits for the loop to park the actuators, then releases resources.
// The caller cancels the context passed to Start first.
func (s *Services) Stop() error {
	if s.loopDone != nil {
		select {
		case <-s.loopDone:
		case <-time.After(s.cfg.GetShutdownTimeout()):
			log.Warn().Msg("Control loop did not stop in time")
		}
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Hardware != nil {
		s.Hardware.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.closePolicy != nil {
		s.closePolicy()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
