// Package fake implements a fake board whose pins remember every level they were set to.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/components/board"
)

// Board hands out fake pins, creating them on first use.
type Board struct {
	mu   sync.Mutex
	pins map[string]*GPIOPin

	// Missing names pins that GPIOPinByName refuses to return.
	Missing map[string]bool
}

// NewBoard returns an empty fake board.
func NewBoard() *Board {
	return &Board{pins: map[string]*GPIOPin{}, Missing: map[string]bool{}}
}

// GPIOPinByName returns the named pin.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.Pin(name)
}

// Pin is GPIOPinByName returning the concrete fake.
func (b *Board) Pin(name string) (*GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Missing[name] {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	pin, ok := b.pins[name]
	if !ok {
		pin = &GPIOPin{}
		b.pins[name] = pin
	}
	return pin, nil
}

// GPIOPin is a fake GPIO pin.
type GPIOPin struct {
	mu      sync.Mutex
	high    bool
	history []bool

	// FailWith makes Set fail without changing the level.
	FailWith error
}

// Set sets the pin level.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.FailWith != nil {
		return gp.FailWith
	}
	gp.high = high
	gp.history = append(gp.history, high)
	return nil
}

// Get returns the pin level.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}

// History returns every level the pin was set to, in order.
func (gp *GPIOPin) History() []bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return append([]bool(nil), gp.history...)
}
