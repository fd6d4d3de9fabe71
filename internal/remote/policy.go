package remote

import (
	"context"
	"fmt"

	"github.com/dokzlo13/plantboxd/internal/config"
)

// SetpointPolicy turns a target range reported by the backend into the
// single temperature the controller regulates to.
type SetpointPolicy interface {
	Select(ctx context.Context, min, max float64) (float64, error)
}

// PolicyFunc adapts a plain function to SetpointPolicy.
type PolicyFunc func(min, max float64) float64

// Select implements SetpointPolicy
func (f PolicyFunc) Select(_ context.Context, min, max float64) (float64, error) {
	return f(min, max), nil
}

var (
	Midpoint = PolicyFunc(func(min, max float64) float64 { return (min + max) / 2 })
	Lower    = PolicyFunc(func(min, _ float64) float64 { return min })
	Upper    = PolicyFunc(func(_, max float64) float64 { return max })
)

// BuiltinPolicy returns the named built-in policy. The lua policy is not
// built in; callers load it with the lua package.
func BuiltinPolicy(name string) (SetpointPolicy, error) {
	switch name {
	case "", config.PolicyMidpoint:
		return Midpoint, nil
	case config.PolicyMin:
		return Lower, nil
	case config.PolicyMax:
		return Upper, nil
	default:
		return nil, fmt.Errorf("unknown setpoint policy %q", name)
	}
}
