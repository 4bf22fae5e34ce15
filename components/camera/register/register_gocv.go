//go:build gocv

package register

import (
	// register the OpenCV source.
	_ "go.viam.com/gatekeeper/components/camera/gocvcam"
)
