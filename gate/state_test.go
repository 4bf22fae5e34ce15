package gate

import (
	"testing"
	"time"

	"go.viam.com/test"
)

const tenSeconds = 10 * time.Second

func at(seconds float64) time.Time {
	return time.Unix(1_700_000_000, 0).Add(time.Duration(seconds * float64(time.Second)))
}

type event struct {
	t          float64
	qualifying bool
}

// replay runs the pure transition function over events and returns the fire times.
func replay(cooldown time.Duration, events []event) []float64 {
	var s State
	fired := []float64{}
	for _, e := range events {
		var fire bool
		s, fire = Decide(s, cooldown, e.qualifying, at(e.t))
		if fire {
			fired = append(fired, e.t)
		}
	}
	return fired
}

func TestDecideFirstDetectionFires(t *testing.T) {
	for _, start := range []time.Time{{}, time.Unix(0, 0), at(0), at(1e6)} {
		s, fire := Decide(State{}, tenSeconds, true, start)
		test.That(t, fire, test.ShouldBeTrue)
		test.That(t, s.Fired, test.ShouldBeTrue)
		test.That(t, s.LastActivation, test.ShouldEqual, start)
	}
}

func TestDecideNoDetectionNeverFires(t *testing.T) {
	s, fire := Decide(State{}, tenSeconds, false, at(0))
	test.That(t, fire, test.ShouldBeFalse)
	test.That(t, s, test.ShouldResemble, State{})

	events := make([]event, 0, 100)
	for i := 0; i < 100; i++ {
		events = append(events, event{float64(i) * 0.5, false})
	}
	test.That(t, replay(tenSeconds, events), test.ShouldBeEmpty)
}

func TestDecideCooldown(t *testing.T) {
	test.That(t, replay(tenSeconds, []event{{0, true}, {5, true}}), test.ShouldResemble, []float64{0})
	test.That(t, replay(tenSeconds, []event{{0, true}, {5, true}, {11, true}}), test.ShouldResemble, []float64{0, 11})
	// exactly one cooldown later is still inside the window
	test.That(t, replay(tenSeconds, []event{{0, true}, {10, true}}), test.ShouldResemble, []float64{0})
	test.That(t, replay(tenSeconds, []event{{0, true}, {10.001, true}}), test.ShouldResemble, []float64{0, 10.001})
}

func TestDecideScenario(t *testing.T) {
	events := []event{{0, true}, {3, true}, {12, true}, {13, true}}
	test.That(t, replay(tenSeconds, events), test.ShouldResemble, []float64{0, 12})
}

func TestDecideLingeringVehicleRefires(t *testing.T) {
	// a vehicle in frame for longer than the cooldown triggers a second activation
	events := make([]event, 0, 50)
	for i := 0; i <= 22; i++ {
		events = append(events, event{float64(i), true})
	}
	test.That(t, replay(tenSeconds, events), test.ShouldResemble, []float64{0, 11, 22})
}

func TestDecideDeterministic(t *testing.T) {
	events := []event{
		{0, false}, {0.5, true}, {1, true}, {4, false}, {9, true}, {10.6, true},
		{11, true}, {15, false}, {20.7, true}, {20.8, true}, {40, true},
	}
	first := replay(tenSeconds, events)
	for i := 0; i < 10; i++ {
		test.That(t, replay(tenSeconds, events), test.ShouldResemble, first)
	}
	test.That(t, first, test.ShouldResemble, []float64{0.5, 10.6, 20.7, 40})
}

func TestDecideClockRegression(t *testing.T) {
	s, fire := Decide(State{}, tenSeconds, true, at(100))
	test.That(t, fire, test.ShouldBeTrue)

	next, fire := Decide(s, tenSeconds, true, at(50))
	test.That(t, fire, test.ShouldBeFalse)
	test.That(t, next.LastActivation, test.ShouldEqual, at(100))
	test.That(t, next.Elapsed(at(50)), test.ShouldEqual, time.Duration(0))
}

func TestPhase(t *testing.T) {
	var s State
	test.That(t, s.Phase(tenSeconds, at(0)), test.ShouldEqual, Idle)

	s, _ = Decide(s, tenSeconds, true, at(0))
	test.That(t, s.Phase(tenSeconds, at(0)), test.ShouldEqual, Cooldown)
	test.That(t, s.Phase(tenSeconds, at(10)), test.ShouldEqual, Cooldown)
	test.That(t, s.Phase(tenSeconds, at(10.5)), test.ShouldEqual, Idle)
	test.That(t, Cooldown.String(), test.ShouldEqual, "COOLDOWN")
	test.That(t, Idle.String(), test.ShouldEqual, "IDLE")
}
