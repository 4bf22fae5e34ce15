//go:build !gocv

package cli

import (
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// newWindow reports that this build has no on-screen window. The run continues without one.
func newWindow(cfg *config.Config, logger logging.Logger) (window, error) {
	logger.Warn("render.window needs a build with -tags gocv, continuing without a window")
	return nil, nil
}
