package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.TargetClass, test.ShouldEqual, 5)
	test.That(t, cfg.ConfidenceThreshold, test.ShouldEqual, 0.6)
	test.That(t, cfg.Cooldown(), test.ShouldEqual, 10*time.Second)
	test.That(t, cfg.TargetName(), test.ShouldEqual, "bus")

	cfg.TargetLabel = ""
	test.That(t, cfg.TargetName(), test.ShouldEqual, "class 5")
}

func TestFromReader(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(`{
		"cooldown_seconds": 2.5,
		"source": {"type": "imagedir", "attributes": {"dir": "/frames"}},
		"detector": {"type": "replay", "attributes": {"path": "detections.jsonl"}, "min_box_area": 40, "record_path": "out.jsonl"},
		"actuator": {"type": "gpio", "attributes": {"pin": "GPIO17"}, "retry_attempts": 2, "retry_backoff_ms": 50}
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Cooldown(), test.ShouldEqual, 2500*time.Millisecond)
	test.That(t, cfg.ConfidenceThreshold, test.ShouldEqual, DefaultConfidenceThreshold)
	test.That(t, cfg.Source.Type, test.ShouldEqual, "imagedir")
	test.That(t, cfg.Source.Attributes.String("dir"), test.ShouldEqual, "/frames")
	test.That(t, cfg.Detector.Attributes, test.ShouldResemble, AttributeMap{"path": "detections.jsonl"})
	test.That(t, cfg.Detector.MinBoxArea, test.ShouldEqual, 40)
	test.That(t, cfg.Detector.RecordPath, test.ShouldEqual, "out.jsonl")
	test.That(t, cfg.Actuator.Type, test.ShouldEqual, "gpio")
	test.That(t, cfg.Actuator.RetryAttempts, test.ShouldEqual, 2)
	test.That(t, cfg.Actuator.RetryBackoff(), test.ShouldEqual, 50*time.Millisecond)
}

func TestFromReaderRejects(t *testing.T) {
	for _, tc := range []struct {
		name   string
		input  string
		errMsg string
	}{
		{"unknown field", `{"cooldown": 3}`, "unknown field"},
		{"bad json", `{`, "cannot parse"},
		{"zero cooldown", `{"cooldown_seconds": 0}`, "cooldown_seconds"},
		{"threshold above one", `{"confidence_threshold": 1.5}`, "confidence_threshold"},
		{"negative class", `{"target_class": -1}`, "target_class"},
		{"missing source type", `{"source": {"type": ""}}`, "source"},
		{"bad log level", `{"log": {"level": "loud"}}`, "log.level"},
		{"log file without path", `{"log": {"file": {"max_size_mb": 3}}}`, "log.file"},
		{"negative box area", `{"detector": {"type": "replay", "min_box_area": -1}}`, "min_box_area"},
		{"negative retries", `{"actuator": {"type": "simulated", "retry_attempts": -1}}`, "retry"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader(strings.NewReader(tc.input))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}
}

func TestReadSubstitutesEnvironment(t *testing.T) {
	t.Setenv("GATEKEEPER_TEST_DIR", "/var/frames")
	path := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(path, []byte(`{"source": {"type": "imagedir", "attributes": {"dir": "${GATEKEEPER_TEST_DIR}"}}}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Source.Attributes.String("dir"), test.ShouldEqual, "/var/frames")
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAttributeMapDecode(t *testing.T) {
	var attrs struct {
		Pin     string        `json:"pin"`
		PulseMS int           `json:"pulse_ms"`
		Delay   time.Duration `json:"delay"`
	}
	am := AttributeMap{"pin": "GPIO17", "pulse_ms": "250", "delay": "1s"}
	test.That(t, am.Decode(&attrs), test.ShouldBeNil)
	test.That(t, attrs.Pin, test.ShouldEqual, "GPIO17")
	test.That(t, attrs.PulseMS, test.ShouldEqual, 250)
	test.That(t, attrs.Delay, test.ShouldEqual, time.Second)
	test.That(t, am.Has("pin"), test.ShouldBeTrue)
	test.That(t, am.Has("nope"), test.ShouldBeFalse)

	err := AttributeMap{"pinn": "GPIO17"}.Decode(&attrs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pinn")

	test.That(t, func() { AttributeMap{"pin": 3}.String("pin") }, test.ShouldPanic)
}

func TestSchema(t *testing.T) {
	schema := Schema()
	test.That(t, schema.Title, test.ShouldEqual, "gatekeeper configuration")
	_, ok := schema.Properties.Get("cooldown_seconds")
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = schema.Properties.Get("source")
	test.That(t, ok, test.ShouldBeTrue)
}
