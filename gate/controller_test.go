package gate

import (
	"context"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gatekeeper/components/actuator"
	"go.viam.com/gatekeeper/components/actuator/fake"
	"go.viam.com/gatekeeper/logging"
)

func TestNewControllerValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewController(0, fake.NewActuator(nil), nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewController(-time.Second, fake.NewActuator(nil), nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewController(time.Second, nil, nil, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, "actuator")
}

func TestControllerCooldown(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	act := fake.NewActuator(mockClock)
	c, err := NewController(10*time.Second, act, mockClock, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Phase(), test.ShouldEqual, Idle)

	// t=0 fires
	test.That(t, c.Step(ctx, true), test.ShouldBeTrue)
	test.That(t, c.Phase(), test.ShouldEqual, Cooldown)

	// t=5 is inside the cooldown
	mockClock.Add(5 * time.Second)
	test.That(t, c.Step(ctx, true), test.ShouldBeFalse)

	// t=11 fires again
	mockClock.Add(6 * time.Second)
	test.That(t, c.Phase(), test.ShouldEqual, Idle)
	test.That(t, c.Step(ctx, true), test.ShouldBeTrue)

	triggers := act.Triggers()
	test.That(t, triggers, test.ShouldHaveLength, 2)
	test.That(t, triggers[1].Sub(triggers[0]), test.ShouldEqual, 11*time.Second)

	snap := c.Snapshot()
	test.That(t, snap.Activations, test.ShouldEqual, 2)
	test.That(t, snap.Fired, test.ShouldBeTrue)
	test.That(t, snap.LastActivation, test.ShouldEqual, triggers[1])
	test.That(t, c.State().LastActivation, test.ShouldEqual, triggers[1])
}

func TestControllerFirstDetectionIgnoresStartupTime(t *testing.T) {
	mockClock := clk.NewMock()
	act := fake.NewActuator(mockClock)
	c, err := NewController(time.Hour, act, mockClock, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	// the mock clock starts at the unix epoch, so "now - zero time" tricks would not fire here
	test.That(t, c.Step(context.Background(), false), test.ShouldBeFalse)
	mockClock.Add(time.Millisecond)
	test.That(t, c.Step(context.Background(), true), test.ShouldBeTrue)
	test.That(t, act.Count(), test.ShouldEqual, 1)
}

func TestControllerDeterministic(t *testing.T) {
	run := func() []time.Duration {
		mockClock := clk.NewMock()
		start := mockClock.Now()
		act := fake.NewActuator(mockClock)
		c, err := NewController(10*time.Second, act, mockClock, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)

		offsets := []time.Duration{0, 3 * time.Second, 12 * time.Second, 13 * time.Second}
		for _, offset := range offsets {
			mockClock.Set(start.Add(offset))
			c.Step(context.Background(), true)
		}
		fired := []time.Duration{}
		for _, tr := range act.Triggers() {
			fired = append(fired, tr.Sub(start))
		}
		return fired
	}

	first := run()
	test.That(t, first, test.ShouldResemble, []time.Duration{0, 12 * time.Second})
	test.That(t, run(), test.ShouldResemble, first)
}

func TestControllerActuatorFailureIsNotFatal(t *testing.T) {
	mockClock := clk.NewMock()
	act := fake.NewActuator(mockClock)
	act.FailWith = errors.New("relay stuck")
	logger, observed := logging.NewObservedTestLogger(t)
	c, err := NewController(10*time.Second, act, mockClock, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, c.Step(context.Background(), true), test.ShouldBeTrue)
	test.That(t, c.State().Fired, test.ShouldBeTrue)

	// the failed activation still starts the cooldown
	mockClock.Add(time.Second)
	test.That(t, c.Step(context.Background(), true), test.ShouldBeFalse)
	test.That(t, act.Count(), test.ShouldEqual, 1)

	failures := observed.FilterMessage("gate actuator failed").All()
	test.That(t, failures, test.ShouldHaveLength, 1)
	loggedErr, ok := failures[0].ContextMap()["error"].(string)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, loggedErr, test.ShouldContainSubstring, "relay stuck")
	test.That(t, errors.Is(actuator.NewFailure("relay", act.FailWith), actuator.ErrActuatorFailure), test.ShouldBeTrue)
}
