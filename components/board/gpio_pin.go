// Package board defines the digital output pins that hardware actuators drive.
package board

import "context"

// A GPIOPin represents an individual GPIO pin on a board.
type GPIOPin interface {
	// Set sets the pin to either low or high.
	Set(ctx context.Context, high bool) error

	// Get gets the high/low state of the pin.
	Get(ctx context.Context) (bool, error)
}

// A Board hands out GPIO pins by name.
type Board interface {
	GPIOPinByName(name string) (GPIOPin, error)
}
