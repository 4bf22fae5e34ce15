package gate

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/components/actuator"
	"go.viam.com/gatekeeper/logging"
)

// Snapshot is a copy of the controller's state for display purposes.
type Snapshot struct {
	Phase          Phase         `json:"phase"`
	Fired          bool          `json:"fired"`
	LastActivation time.Time     `json:"last_activation,omitempty"`
	Activations    int           `json:"activations"`
	Cooldown       time.Duration `json:"cooldown_ns"`
}

// Controller owns the gate state and fires the actuator. It is not safe for concurrent use;
// exactly one goroutine, the control loop, drives it.
type Controller struct {
	cooldown    time.Duration
	clock       clock.Clock
	actuator    actuator.Actuator
	logger      logging.Logger
	state       State
	activations int
}

// NewController returns a controller in the IDLE phase that has never fired. A nil clock
// means wall-clock time.
func NewController(
	cooldown time.Duration,
	act actuator.Actuator,
	clk clock.Clock,
	logger logging.Logger,
) (*Controller, error) {
	if cooldown <= 0 {
		return nil, errors.Errorf("cooldown must be positive, got %s", cooldown)
	}
	if act == nil {
		return nil, errors.New("gate controller needs an actuator")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		cooldown: cooldown,
		clock:    clk,
		actuator: act,
		logger:   logger,
	}, nil
}

// Step runs one cycle. It returns true when the actuator was fired. A trigger error is logged
// and otherwise ignored: the activation still counts and the cooldown still starts.
func (c *Controller) Step(ctx context.Context, qualifying bool) bool {
	now := c.clock.Now()
	next, fire := Decide(c.state, c.cooldown, qualifying, now)
	if !fire {
		if qualifying {
			c.logger.CDebugw(ctx, "qualifying detection inside cooldown",
				"remaining", c.cooldown-c.state.Elapsed(now))
		}
		return false
	}

	c.state = next
	c.activations++
	c.logger.Infow("gate opening", "activation", c.activations, "at", now)
	if err := c.actuator.Trigger(ctx); err != nil {
		c.logger.Errorw("gate actuator failed", "error", actuator.NewFailure("", err))
	}
	return true
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return c.state
}

// Clock is the clock the controller reads.
func (c *Controller) Clock() clock.Clock {
	return c.clock
}

// Cooldown is the configured cooldown duration.
func (c *Controller) Cooldown() time.Duration {
	return c.cooldown
}

// Phase reports the phase as of now.
func (c *Controller) Phase() Phase {
	return c.state.Phase(c.cooldown, c.clock.Now())
}

// Snapshot returns a copy of the controller state as of now.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Phase:          c.Phase(),
		Fired:          c.state.Fired,
		LastActivation: c.state.LastActivation,
		Activations:    c.activations,
		Cooldown:       c.cooldown,
	}
}
