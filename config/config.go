// Package config defines the gatekeeper configuration file. The configuration is read once at
// startup and never reloaded.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/gatekeeper/logging"
)

// Defaults for the detection-to-actuation loop.
const (
	DefaultTargetClass         = 5 // "bus" in the COCO taxonomy
	DefaultTargetLabel         = "bus"
	DefaultConfidenceThreshold = 0.6
	DefaultCooldownSeconds     = 10.0
)

// Config is the whole gatekeeper configuration.
type Config struct {
	TargetClass         int     `json:"target_class" jsonschema:"minimum=0,default=5"`
	TargetLabel         string  `json:"target_label,omitempty" jsonschema:"default=bus"`
	ConfidenceThreshold float64 `json:"confidence_threshold" jsonschema:"minimum=0,maximum=1,default=0.6"`
	CooldownSeconds     float64 `json:"cooldown_seconds" jsonschema:"minimum=0,exclusiveMinimum=true,default=10"`
	MaxFPS              float64 `json:"max_fps,omitempty" jsonschema:"minimum=0"`
	Prefetch            int     `json:"prefetch,omitempty" jsonschema:"minimum=0"`

	Source   Component      `json:"source"`
	Detector DetectorConfig `json:"detector"`
	Actuator ActuatorConfig `json:"actuator"`
	Render   RenderConfig   `json:"render,omitempty"`
	Events   EventsConfig   `json:"events,omitempty"`
	Log      LogConfig      `json:"log,omitempty"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`
}

// DetectorConfig is the detector component plus model-independent postprocessing.
type DetectorConfig struct {
	Component
	// MinBoxArea drops detections whose bounding box covers fewer pixels, before filtering.
	MinBoxArea int `json:"min_box_area,omitempty" jsonschema:"minimum=0"`
	// RecordPath receives every frame's detections as JSON lines, readable by the replay detector.
	RecordPath string `json:"record_path,omitempty"`
}

// ActuatorConfig is the actuator component plus retry policy.
type ActuatorConfig struct {
	Component
	RetryAttempts  int `json:"retry_attempts,omitempty" jsonschema:"minimum=0"`
	RetryBackoffMS int `json:"retry_backoff_ms,omitempty" jsonschema:"minimum=0"`
}

// RetryBackoff is the retry backoff as a duration.
func (ac ActuatorConfig) RetryBackoff() time.Duration {
	return time.Duration(ac.RetryBackoffMS) * time.Millisecond
}

// RenderConfig configures visual feedback. All outputs are optional.
type RenderConfig struct {
	// DumpDir receives annotated JPEG frames.
	DumpDir string `json:"dump_dir,omitempty"`
	// DumpOnFireOnly limits dumped frames to those where the gate fired.
	DumpOnFireOnly bool `json:"dump_on_fire_only,omitempty"`
	// HTTPAddr serves the live view and status, e.g. ":8080".
	HTTPAddr string `json:"http_addr,omitempty"`
	// Window opens an on-screen window when built with OpenCV support.
	Window bool `json:"window,omitempty"`
}

// EventsConfig configures the activation log.
type EventsConfig struct {
	// Path is the sqlite database file. Empty disables the log.
	Path string `json:"path,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string                       `json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	File  *logging.FileAppenderConfig `json:"file,omitempty"`
}

// Default returns a configuration with every default filled in. Component attributes are left
// nil so that a config file's attributes replace, rather than merge into, the defaults.
func Default() *Config {
	return &Config{
		TargetClass:         DefaultTargetClass,
		TargetLabel:         DefaultTargetLabel,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		CooldownSeconds:     DefaultCooldownSeconds,
		Source:              Component{Type: "webcam"},
		Detector:            DetectorConfig{Component: Component{Type: "onnx"}},
		Actuator:            ActuatorConfig{Component: Component{Type: "simulated"}},
		Log:                 LogConfig{Level: "info"},
	}
}

// Cooldown is the cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds * float64(time.Second))
}

// Validate returns the first problem found with the configuration.
func (c *Config) Validate() error {
	if c.TargetClass < 0 {
		return utils.NewConfigValidationError("target_class", errors.Errorf("must be non-negative, got %d", c.TargetClass))
	}
	if math.IsNaN(c.ConfidenceThreshold) || c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return utils.NewConfigValidationError("confidence_threshold",
			errors.Errorf("must be in [0, 1], got %v", c.ConfidenceThreshold))
	}
	if math.IsNaN(c.CooldownSeconds) || math.IsInf(c.CooldownSeconds, 0) || c.Cooldown() <= 0 {
		return utils.NewConfigValidationError("cooldown_seconds", errors.Errorf("must be positive, got %v", c.CooldownSeconds))
	}
	if c.MaxFPS < 0 {
		return utils.NewConfigValidationError("max_fps", errors.Errorf("must be non-negative, got %v", c.MaxFPS))
	}
	if c.Prefetch < 0 {
		return utils.NewConfigValidationError("prefetch", errors.Errorf("must be non-negative, got %d", c.Prefetch))
	}
	if err := c.Source.Validate("source"); err != nil {
		return err
	}
	if err := c.Detector.Validate("detector"); err != nil {
		return err
	}
	if c.Detector.MinBoxArea < 0 {
		return utils.NewConfigValidationError("detector.min_box_area",
			errors.Errorf("must be non-negative, got %d", c.Detector.MinBoxArea))
	}
	if err := c.Actuator.Validate("actuator"); err != nil {
		return err
	}
	if c.Actuator.RetryAttempts < 0 || c.Actuator.RetryBackoffMS < 0 {
		return utils.NewConfigValidationError("actuator", errors.New("retry settings must be non-negative"))
	}
	if c.Log.Level != "" {
		if _, err := logging.LevelFromString(c.Log.Level); err != nil {
			return utils.NewConfigValidationError("log.level", err)
		}
	}
	if c.Log.File != nil && c.Log.File.Path == "" {
		return utils.NewConfigValidationFieldRequiredError("log.file", "path")
	}
	return nil
}

// TargetName is the display name of the target class.
func (c *Config) TargetName() string {
	if c.TargetLabel != "" {
		return c.TargetLabel
	}
	return fmt.Sprintf("class %d", c.TargetClass)
}
