// Package gpio implements an actuator that pulses a GPIO pin wired to a relay.
package gpio

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/gatekeeper/components/actuator"
	"go.viam.com/gatekeeper/components/board"
	"go.viam.com/gatekeeper/components/board/genericlinux"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// Model is the config type of the GPIO relay actuator.
const Model = "gpio"

// DefaultPulse is how long the relay is held when pulse_ms is not set.
const DefaultPulse = 500 * time.Millisecond

// Config describes a relay on a GPIO pin.
type Config struct {
	Pin       string `json:"pin"`
	PulseMS   int    `json:"pulse_ms,omitempty"`
	ActiveLow bool   `json:"active_low,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Pin == "" {
		return errors.Errorf("%s: \"pin\" is required", path)
	}
	if conf.PulseMS < 0 {
		return errors.Errorf("%s: \"pulse_ms\" must be non-negative", path)
	}
	return nil
}

// Pulse is the configured pulse width.
func (conf *Config) Pulse() time.Duration {
	if conf.PulseMS == 0 {
		return DefaultPulse
	}
	return time.Duration(conf.PulseMS) * time.Millisecond
}

func init() {
	actuator.Registry.Register(Model, func(
		ctx context.Context, attrs config.AttributeMap, logger logging.Logger,
	) (actuator.Actuator, error) {
		var conf Config
		if err := attrs.Decode(&conf); err != nil {
			return nil, err
		}
		b, err := genericlinux.NewBoard(logger)
		if err != nil {
			return nil, err
		}
		return NewActuator(ctx, b, conf, nil, logger)
	})
}

// Actuator drives the relay pin active for one pulse per trigger.
type Actuator struct {
	mu        sync.Mutex
	pin       board.GPIOPin
	pinName   string
	pulse     time.Duration
	activeLow bool
	clock     clock.Clock
	logger    logging.Logger
}

// NewActuator looks up the configured pin on b and drives it inactive. A nil clock means
// wall-clock time.
func NewActuator(ctx context.Context, b board.Board, conf Config, clk clock.Clock, logger logging.Logger) (*Actuator, error) {
	if err := conf.Validate(Model); err != nil {
		return nil, err
	}
	pin, err := b.GPIOPinByName(conf.Pin)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	a := &Actuator{
		pin:       pin,
		pinName:   conf.Pin,
		pulse:     conf.Pulse(),
		activeLow: conf.ActiveLow,
		clock:     clk,
		logger:    logger,
	}
	if err := a.set(ctx, false); err != nil {
		return nil, errors.Wrapf(err, "cannot reset relay pin %s", conf.Pin)
	}
	return a, nil
}

func (a *Actuator) set(ctx context.Context, active bool) error {
	return a.pin.Set(ctx, active != a.activeLow)
}

// Trigger holds the relay active for the pulse width. The pin is always driven back to
// inactive, even when the context is canceled mid-pulse.
func (a *Actuator) Trigger(ctx context.Context) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.set(ctx, true); err != nil {
		return actuator.NewFailure(a.pinName, err)
	}
	a.logger.Debugw("relay active", "pin", a.pinName, "pulse", a.pulse)
	defer func() {
		if resetErr := a.set(context.Background(), false); resetErr != nil {
			err = multierr.Combine(err, actuator.NewFailure(a.pinName, resetErr))
		}
	}()

	timer := a.clock.Timer(a.pulse)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close drives the relay inactive.
func (a *Actuator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.set(ctx, false)
}
