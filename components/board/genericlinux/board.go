// Package genericlinux drives GPIO pins on Linux single-board computers through periph.io.
package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"go.viam.com/gatekeeper/components/board"
	"go.viam.com/gatekeeper/logging"
)

var (
	hostInitOnce sync.Once
	hostInitErr  error
)

// Board is the host's GPIO header.
type Board struct {
	logger logging.Logger
}

// NewBoard initializes the periph.io host drivers once per process and returns the board.
func NewBoard(logger logging.Logger) (*Board, error) {
	hostInitOnce.Do(func() {
		state, err := host.Init()
		if err != nil {
			hostInitErr = errors.Wrap(err, "cannot initialize GPIO host drivers")
			return
		}
		for _, failure := range state.Failed {
			logger.Debugw("GPIO driver failed to load", "driver", failure.D.String(), "error", failure.Err)
		}
	})
	if hostInitErr != nil {
		return nil, hostInitErr
	}
	return &Board{logger: logger}, nil
}

// GPIOPinByName returns the pin registered with periph under name, e.g. "GPIO17".
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	return &periphGpioPin{pin: pin}, nil
}

type periphGpioPin struct {
	mu  sync.Mutex
	pin gpio.PinIO
}

func (gp *periphGpioPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp *periphGpioPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.pin.Read() == gpio.High, nil
}
