//go:build gocv

package cli

import (
	"go.viam.com/gatekeeper/components/camera/gocvcam"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// newWindow opens an OpenCV window. Pressing q in it stops the loop.
func newWindow(cfg *config.Config, logger logging.Logger) (window, error) {
	logger.Info("press q in the preview window to stop")
	return gocvcam.NewWindow("gatekeeper", cfg.TargetName()), nil
}
