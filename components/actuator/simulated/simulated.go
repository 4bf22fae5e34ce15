// Package simulated implements an actuator that only logs, for running without relay hardware.
package simulated

import (
	"context"
	"sync/atomic"

	"go.viam.com/gatekeeper/components/actuator"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// Model is the config type of the simulated actuator.
const Model = "simulated"

func init() {
	actuator.Registry.Register(Model, func(
		ctx context.Context, attrs config.AttributeMap, logger logging.Logger,
	) (actuator.Actuator, error) {
		if err := attrs.Decode(&struct{}{}); err != nil {
			return nil, err
		}
		return NewActuator(logger), nil
	})
}

// Actuator logs every trigger.
type Actuator struct {
	logger   logging.Logger
	triggers atomic.Int64
}

// NewActuator returns a simulated actuator logging to logger.
func NewActuator(logger logging.Logger) *Actuator {
	return &Actuator{logger: logger}
}

// Trigger logs the relay notice.
func (a *Actuator) Trigger(ctx context.Context) error {
	n := a.triggers.Add(1)
	a.logger.Infow("relay triggered: gate opening", "trigger", n)
	return nil
}

// Triggers returns how many times Trigger was called.
func (a *Actuator) Triggers() int64 {
	return a.triggers.Load()
}

// Close does nothing.
func (a *Actuator) Close(ctx context.Context) error {
	return nil
}
