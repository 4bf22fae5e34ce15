// Package main is the gatekeeper command itself.
package main

import (
	"os"

	"go.viam.com/gatekeeper/cli"
	"go.viam.com/gatekeeper/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.Global().Errorw("gatekeeper failed", "error", err)
		os.Exit(1)
	}
}
