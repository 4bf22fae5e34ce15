// Package fake implements an actuator that records its triggers.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Actuator records every trigger. Setting FailWith makes triggers return that error while still
// being recorded.
type Actuator struct {
	mu       sync.Mutex
	clock    clock.Clock
	triggers []time.Time
	closed   bool

	FailWith error
}

// NewActuator returns a fake actuator that timestamps triggers with clk. A nil clock means
// wall-clock time.
func NewActuator(clk clock.Clock) *Actuator {
	if clk == nil {
		clk = clock.New()
	}
	return &Actuator{clock: clk}
}

// Trigger records a trigger.
func (a *Actuator) Trigger(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.triggers = append(a.triggers, a.clock.Now())
	return a.FailWith
}

// Close marks the actuator closed.
func (a *Actuator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Triggers returns the trigger times in order.
func (a *Actuator) Triggers() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Time(nil), a.triggers...)
}

// Count returns the number of triggers.
func (a *Actuator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.triggers)
}

// Closed reports whether Close was called.
func (a *Actuator) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
