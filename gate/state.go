// Package gate implements the cooldown-debounced trigger that decides when the gate opens.
//
// The controller is a two-state machine keyed purely on elapsed time. IDLE means the gate may
// fire on the next qualifying detection; COOLDOWN means it fired less than one cooldown ago.
// There are no timers: the phase is derived by comparing timestamps every cycle.
package gate

import "time"

// Phase is the controller's derived state.
type Phase int

const (
	// Idle means the next qualifying detection fires the actuator.
	Idle Phase = iota
	// Cooldown means the actuator fired within the last cooldown duration.
	Cooldown
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Cooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is everything the controller remembers between cycles.
type State struct {
	// LastActivation is when the actuator last fired. It never decreases.
	LastActivation time.Time
	// Fired is false until the first activation, so the first qualifying detection always fires.
	Fired bool
}

// Elapsed is the time since the last activation as seen at now. A clock that went backwards
// yields zero.
func (s State) Elapsed(now time.Time) time.Duration {
	if !s.Fired {
		return 0
	}
	if elapsed := now.Sub(s.LastActivation); elapsed > 0 {
		return elapsed
	}
	return 0
}

// Phase returns the phase at now.
func (s State) Phase(cooldown time.Duration, now time.Time) Phase {
	if s.eligible(cooldown, now) {
		return Idle
	}
	return Cooldown
}

func (s State) eligible(cooldown time.Duration, now time.Time) bool {
	return !s.Fired || s.Elapsed(now) > cooldown
}

// Decide is the transition function. It returns the next state and whether the actuator must
// fire this cycle. The gate fires only when a qualifying detection is present and strictly more
// than cooldown has elapsed since the last activation.
func Decide(s State, cooldown time.Duration, qualifying bool, now time.Time) (State, bool) {
	if !qualifying || !s.eligible(cooldown, now) {
		return s, false
	}
	return State{LastActivation: now, Fired: true}, true
}
