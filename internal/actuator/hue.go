package actuator

import (
	"context"
	"sync"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
)

// DefaultHueTimeout bounds a single bridge request
const DefaultHueTimeout = 2 * time.Second

// LightSwitcher turns a single bridge light on or off
type LightSwitcher interface {
	SwitchLight(ctx context.Context, id int, on bool) error
}

// Bridge adapts a huego bridge to LightSwitcher
type Bridge struct {
	bridge *huego.Bridge
}

// NewBridge creates a bridge client for an already paired application key
func NewBridge(host, token string) *Bridge {
	return &Bridge{bridge: huego.New(host, token)}
}

// SwitchLight implements LightSwitcher with a single state PUT
func (b *Bridge) SwitchLight(ctx context.Context, id int, on bool) error {
	_, err := b.bridge.SetLightStateContext(ctx, id, huego.State{On: on})
	return err
}

// HueLights forwards every command to the wrapped sink and mirrors the
// grow lights onto a set of Hue lights. Bridge requests run on a separate
// goroutine; SetLights only records the latest wanted state, so a slow
// bridge never holds up the caller.
type HueLights struct {
	Sink
	bridge  LightSwitcher
	lights  []int
	timeout time.Duration

	pending   chan bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHueLights wraps inner so SetLights also drives the given Hue lights.
// Each bridge request is bounded by timeout. Close stops the worker.
func NewHueLights(inner Sink, bridge LightSwitcher, lights []int, timeout time.Duration) *HueLights {
	if timeout <= 0 {
		timeout = DefaultHueTimeout
	}
	h := &HueLights{
		Sink:    inner,
		bridge:  bridge,
		lights:  lights,
		timeout: timeout,
		pending: make(chan bool, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

// SetLights implements Sink
func (h *HueLights) SetLights(on bool) {
	h.Sink.SetLights(on)

	// Latest command wins
	select {
	case <-h.pending:
	default:
	}
	select {
	case h.pending <- on:
	default:
	}
}

// Close applies the last pending command, if any, and stops the worker.
func (h *HueLights) Close() {
	h.closeOnce.Do(func() {
		close(h.stop)
		<-h.done
	})
}

func (h *HueLights) run() {
	defer close(h.done)
	for {
		select {
		case on := <-h.pending:
			h.apply(on)
		case <-h.stop:
			select {
			case on := <-h.pending:
				h.apply(on)
			default:
			}
			return
		}
	}
}

func (h *HueLights) apply(on bool) {
	for _, id := range h.lights {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		err := h.bridge.SwitchLight(ctx, id, on)
		cancel()
		if err != nil {
			log.Error().Err(err).Int("light", id).Bool("on", on).Msg("Failed to switch Hue light")
			continue
		}
		log.Debug().Int("light", id).Bool("on", on).Msg("Hue light switched")
	}
}
