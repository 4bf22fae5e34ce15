package simulated

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.viam.com/gatekeeper/components/actuator"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

func TestSimulatedLogsTrigger(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	act := NewActuator(logger)
	test.That(t, act.Trigger(context.Background()), test.ShouldBeNil)
	test.That(t, act.Trigger(context.Background()), test.ShouldBeNil)
	test.That(t, act.Triggers(), test.ShouldEqual, 2)
	test.That(t, observed.FilterMessage("relay triggered: gate opening").Len(), test.ShouldEqual, 2)
	test.That(t, act.Close(context.Background()), test.ShouldBeNil)
}

func TestSimulatedRegistered(t *testing.T) {
	logger := logging.NewTestLogger(t)
	act, err := actuator.Registry.Build(context.Background(), config.Component{Type: Model}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, act, test.ShouldHaveSameTypeAs, &Actuator{})

	_, err = actuator.Registry.Build(context.Background(),
		config.Component{Type: Model, Attributes: config.AttributeMap{"pin": "GPIO17"}}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
