// Package register registers all detector models.
package register

import (
	// register detectors.
	_ "go.viam.com/gatekeeper/vision/objectdetection/onnx"
	_ "go.viam.com/gatekeeper/vision/objectdetection/replay"
)
