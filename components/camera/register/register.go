// Package register registers all frame source models.
package register

import (
	// register frame sources.
	_ "go.viam.com/gatekeeper/components/camera/ffmpeg"
	_ "go.viam.com/gatekeeper/components/camera/imagedir"
	_ "go.viam.com/gatekeeper/components/camera/webcam"
)
