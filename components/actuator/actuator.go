// Package actuator defines the interface for the gate actuator: a fire-and-forget signal
// that opens the gate. Hardware-backed implementations live in subpackages.
package actuator

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/registry"
)

// Registry holds the actuator models. Subpackages register themselves from init.
var Registry = registry.New[Actuator]("actuator")

// ErrActuatorFailure matches, via errors.Is, every error produced by NewFailure.
var ErrActuatorFailure = errors.New("actuator failure")

// An Actuator signals the gate to open. There is no acknowledgment channel: a nil error only
// means the signal was sent.
type Actuator interface {
	// Trigger sends one open signal.
	Trigger(ctx context.Context) error
	// Close releases the underlying device.
	Close(ctx context.Context) error
}

// FailureError is a reportable, non-fatal trigger failure.
type FailureError struct {
	Name string
	Err  error
}

// NewFailure wraps err as an actuator failure for the named actuator.
func NewFailure(name string, err error) error {
	return &FailureError{Name: name, Err: err}
}

func (e *FailureError) Error() string {
	if e.Name == "" {
		return "actuator failure: " + e.Err.Error()
	}
	return "actuator " + e.Name + " failure: " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *FailureError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrActuatorFailure.
func (e *FailureError) Is(target error) bool {
	return target == ErrActuatorFailure
}

// Func adapts a function to the Actuator interface. Close is a no-op.
type Func func(ctx context.Context) error

// Trigger calls f.
func (f Func) Trigger(ctx context.Context) error {
	return f(ctx)
}

// Close does nothing.
func (f Func) Close(ctx context.Context) error {
	return nil
}
