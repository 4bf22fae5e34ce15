// Package serialrelay implements an actuator that sends an open command to a microcontroller
// over a serial port.
package serialrelay

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"go.viam.com/gatekeeper/components/actuator"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// Model is the config type of the serial relay actuator.
const Model = "serialrelay"

// Defaults for unset attributes.
const (
	DefaultBaudRate = 9600
	DefaultCommand  = "OPEN\n"
)

// Config describes the serial link to the relay controller.
type Config struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud,omitempty"`
	Command  string `json:"command,omitempty"`
}

// Normalize validates the config and applies defaults for any unset values.
func (conf Config) Normalize() (Config, error) {
	if conf.Port == "" {
		return conf, errors.New(`"port" is required`)
	}
	if conf.BaudRate < 0 {
		return conf, errors.Errorf("invalid baud rate %d", conf.BaudRate)
	}
	if conf.BaudRate == 0 {
		conf.BaudRate = DefaultBaudRate
	}
	if conf.Command == "" {
		conf.Command = DefaultCommand
	}
	return conf, nil
}

func init() {
	actuator.Registry.Register(Model, func(
		ctx context.Context, attrs config.AttributeMap, logger logging.Logger,
	) (actuator.Actuator, error) {
		var conf Config
		if err := attrs.Decode(&conf); err != nil {
			return nil, err
		}
		conf, err := conf.Normalize()
		if err != nil {
			return nil, err
		}
		port, err := serial.Open(conf.Port, &serial.Mode{BaudRate: conf.BaudRate})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open serial port %s", conf.Port)
		}
		return NewActuator(port, conf, logger)
	})
}

// Actuator writes the command to the port once per trigger.
type Actuator struct {
	mu      sync.Mutex
	port    io.WriteCloser
	name    string
	command []byte
	logger  logging.Logger
}

// NewActuator returns an actuator writing to an already opened port.
func NewActuator(port io.WriteCloser, conf Config, logger logging.Logger) (*Actuator, error) {
	conf, err := conf.Normalize()
	if err != nil {
		return nil, err
	}
	return &Actuator{port: port, name: conf.Port, command: []byte(conf.Command), logger: logger}, nil
}

// Trigger writes the open command.
func (a *Actuator) Trigger(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := a.port.Write(a.command)
	if err != nil {
		return actuator.NewFailure(a.name, err)
	}
	if n != len(a.command) {
		return actuator.NewFailure(a.name, errors.Errorf("short write: %d of %d bytes", n, len(a.command)))
	}
	a.logger.Debugw("relay command sent", "port", a.name, "bytes", n)
	return nil
}

// Close closes the port.
func (a *Actuator) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port.Close()
}
