// Package lua runs user-supplied Lua scripts that pick a temperature
// setpoint from the range the backend reports.
//
// A script defines a global function:
//
//	function select_target(min, max)
//	  return min + (max - min) * 0.25
//	end
//
// The "log" module is preloaded so scripts can call log.info("msg", {k = v}).
package lua

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	glua "github.com/yuin/gopher-lua"
)

// SelectFunction is the global a policy script must define
const SelectFunction = "select_target"

// DefaultCallTimeout bounds a single select_target call
const DefaultCallTimeout = 50 * time.Millisecond

// ErrPolicyClosed is returned when Select is called after Close
var ErrPolicyClosed = errors.New("lua policy closed")

// Policy wraps a Lua VM holding a loaded policy script.
// gopher-lua states are not goroutine safe, so every call is serialized.
type Policy struct {
	mu      sync.Mutex
	L       *glua.LState
	fn      *glua.LFunction
	timeout time.Duration
	closed  bool
}

// LoadPolicy loads a policy script from a file.
func LoadPolicy(path string) (*Policy, error) {
	L := newState()
	log.Info().Str("path", path).Msg("Loading Lua setpoint policy")
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to execute Lua script: %w", err)
	}
	return bind(L)
}

// NewPolicy loads a policy script from source text.
func NewPolicy(source string) (*Policy, error) {
	L := newState()
	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to execute Lua script: %w", err)
	}
	return bind(L)
}

func newState() *glua.LState {
	L := glua.NewState()
	L.PreloadModule("log", NewLogModule().Loader)
	return L
}

func bind(L *glua.LState) (*Policy, error) {
	fn, ok := L.GetGlobal(SelectFunction).(*glua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("lua script does not define function %s(min, max)", SelectFunction)
	}
	return &Policy{L: L, fn: fn, timeout: DefaultCallTimeout}, nil
}

// Select calls select_target(min, max) and returns the chosen setpoint.
func (p *Policy) Select(ctx context.Context, min, max float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPolicyClosed
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	p.L.SetContext(callCtx)
	defer p.L.RemoveContext()

	p.L.Push(p.fn)
	p.L.Push(glua.LNumber(min))
	p.L.Push(glua.LNumber(max))
	if err := p.L.PCall(2, 1, nil); err != nil {
		return 0, fmt.Errorf("%s failed: %w", SelectFunction, err)
	}

	ret := p.L.Get(-1)
	p.L.Pop(1)

	num, ok := ret.(glua.LNumber)
	if !ok {
		return 0, fmt.Errorf("%s returned %s, want number", SelectFunction, ret.Type())
	}
	v := float64(num)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s returned non-finite value", SelectFunction)
	}
	return v, nil
}

// Close releases the Lua state.
func (p *Policy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.L.Close()
}
