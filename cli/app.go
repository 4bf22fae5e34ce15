// Package cli contains the gatekeeper command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	// register frame sources, actuators and detectors.
	_ "go.viam.com/gatekeeper/components/register"
	_ "go.viam.com/gatekeeper/vision/objectdetection/register"
)

const (
	// Flags.
	configFlag       = "config"
	debugFlag        = "debug"
	noKeypressFlag   = "no-keypress"
	dbFlag           = "db"
	limitFlag        = "limit"
	imageFlag        = "image"
	outputFlag       = "output"
	previewWidthFlag = "preview-width"
)

var app = &cli.App{
	Name:            "gatekeeper",
	Usage:           "open a gate when a school bus is in view",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "run",
			Usage: "run the detection loop until the source ends, q is entered, or the process is interrupted",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     configFlag,
					Aliases:  []string{"c"},
					Usage:    "load configuration from `FILE`",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  noKeypressFlag,
					Usage: "do not watch stdin for q",
				},
			},
			Action: RunAction,
		},
		{
			Name:  "detect",
			Usage: "run the configured detector on a single image and write an annotated copy",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     configFlag,
					Aliases:  []string{"c"},
					Usage:    "load configuration from `FILE`",
					Required: true,
				},
				&cli.PathFlag{
					Name:     imageFlag,
					Usage:    "image to run detection on",
					Required: true,
				},
				&cli.PathFlag{
					Name:  outputFlag,
					Usage: "where to write the annotated PNG (default: next to the image)",
				},
				&cli.UintFlag{
					Name:  previewWidthFlag,
					Usage: "scale the annotated image to this width, keeping the aspect ratio",
				},
			},
			Action: DetectAction,
		},
		{
			Name:  "events",
			Usage: "list recent gate activations",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     dbFlag,
					Usage:    "activation log database",
					Required: true,
				},
				&cli.IntFlag{
					Name:  limitFlag,
					Usage: "maximum number of activations to list, newest first (0 lists all)",
					Value: 20,
				},
			},
			Action: EventsAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the configuration file",
			Action: SchemaAction,
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
