package cli

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	printf(w, format, a...)
}

// newLogger builds the process logger from the log section of cfg. The returned function
// closes the log file, if any.
func newLogger(cfg *config.Config, forceDebug bool) (logging.Logger, func() error, error) {
	level := logging.INFO
	if cfg.Log.Level != "" {
		parsed, err := logging.LevelFromString(cfg.Log.Level)
		if err != nil {
			return nil, nil, err
		}
		level = parsed
	}
	if forceDebug {
		level = logging.DEBUG
	}

	logger, closeLog := logging.NewProcessLogger("gatekeeper", level, cfg.Log.File)
	return logger, closeLog, nil
}

// readConfig reads the config named by the config flag.
func readConfig(c *cli.Context) (*config.Config, error) {
	path := c.Path(configFlag)
	if path == "" {
		return nil, errors.Errorf("--%s is required", configFlag)
	}
	return config.Read(path)
}

// VersionAction prints the module version and git revision the binary was built from.
func VersionAction(c *cli.Context) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("error reading build info")
	}
	if c.Bool(debugFlag) {
		printf(c.App.Writer, "%s", info.String())
	}
	revision := "?"
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
			revision = setting.Value[:8]
		}
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		version = "(dev)"
	}
	printf(c.App.Writer, "Version %s Git=%s", version, revision)
	return nil
}
