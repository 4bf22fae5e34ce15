// Package register registers all actuator models.
package register

import (
	// register actuators.
	_ "go.viam.com/gatekeeper/components/actuator/gpio"
	_ "go.viam.com/gatekeeper/components/actuator/serialrelay"
	_ "go.viam.com/gatekeeper/components/actuator/simulated"
)
