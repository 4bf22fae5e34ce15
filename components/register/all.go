// Package register registers all components
package register

import (
	// register components.
	_ "go.viam.com/gatekeeper/components/actuator/register"
	_ "go.viam.com/gatekeeper/components/camera/register"
)
