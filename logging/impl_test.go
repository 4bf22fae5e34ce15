package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func newBufferLogger(name string, level Level) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := &impl{name: name, level: NewAtomicLevelAt(level), inUTC: true, appenders: []Appender{NewWriterAppender(buf)}}
	return logger, buf
}

func TestConsoleFormat(t *testing.T) {
	logger, buf := newBufferLogger("gate", INFO)

	logger.Infow("gate opened", "frame", 12, "confidence", 0.91)
	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.Split(line, "\t")
	test.That(t, parts, test.ShouldHaveLength, 6)
	test.That(t, len(parts[0]), test.ShouldEqual, len("2006-01-02T15:04:05.000Z"))
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "gate")
	test.That(t, parts[3], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "gate opened")
	test.That(t, parts[5], test.ShouldEqual, `{"frame":12,"confidence":0.91}`)

	// every method reports its own caller
	buf.Reset()
	logger.Warn("slow frame")
	test.That(t, strings.Split(buf.String(), "\t")[3], test.ShouldStartWith, "logging/impl_test.go:")
}

func TestLevels(t *testing.T) {
	logger, buf := newBufferLogger("", WARN)

	logger.Debugf("hidden %d", 1)
	logger.Info("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Warn("shown")
	test.That(t, buf.String(), test.ShouldContainSubstring, "shown")

	buf.Reset()
	logger.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, ERROR)
	logger.Warnw("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.CDebugw(context.Background(), "hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	logger.CDebugw(EnableDebugMode(context.Background(), ""), "forced debug")
	test.That(t, buf.String(), test.ShouldContainSubstring, "forced debug")

	logger.Errorw("always")
	test.That(t, buf.String(), test.ShouldContainSubstring, "always")
}

func TestUnpairedKey(t *testing.T) {
	logger, buf := newBufferLogger("", DEBUG)
	logger.Debugw("odd", "lonely")
	test.That(t, buf.String(), test.ShouldContainSubstring, `"lonely":"unpaired log key"`)
}

func TestWith(t *testing.T) {
	logger, buf := newBufferLogger("camera", DEBUG)
	withModel := logger.With("model", "ffmpeg")
	withModel.Sublogger("reader").Infow("opened", "frames", 3)
	test.That(t, buf.String(), test.ShouldContainSubstring, "camera.reader")
	test.That(t, buf.String(), test.ShouldContainSubstring, `{"model":"ffmpeg","frames":3}`)

	// the parent is unchanged
	buf.Reset()
	logger.Info("plain")
	test.That(t, buf.String(), test.ShouldNotContainSubstring, "model")

	// children have their own level
	withModel.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
}

func TestSublogger(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("camera").Sublogger("ffmpeg")
	sub.Info("hello")

	test.That(t, observed.Len(), test.ShouldEqual, 1)
	test.That(t, observed.All()[0].LoggerName, test.ShouldEqual, "camera.ffmpeg")
	test.That(t, observed.All()[0].Message, test.ShouldEqual, "hello")
}

func TestLevelFromString(t *testing.T) {
	for str, expected := range map[string]Level{"debug": DEBUG, "INFO": INFO, "Warn": WARN, "error": ERROR} {
		level, err := LevelFromString(str)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, level.UnmarshalJSON([]byte(`"warn"`)), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.log")
	appender := NewFileAppender(FileAppenderConfig{Path: path})
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)

	logger.Errorw("actuator failed", "error", "timeout")
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, appender.Close(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "ERROR\tfile\t")
	test.That(t, string(contents), test.ShouldContainSubstring, "actuator failed\t{\"error\":\"timeout\"}")
}

func TestProcessLogger(t *testing.T) {
	previous := Global()
	defer ReplaceGlobal(previous)

	path := filepath.Join(t.TempDir(), "gatekeeper.log")
	logger, closeLog := NewProcessLogger("gatekeeper", WARN, &FileAppenderConfig{Path: path})
	test.That(t, Global(), test.ShouldEqual, logger)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	logger.Info("hidden")
	logger.Warnw("gate stuck", "frame", 4)
	test.That(t, closeLog(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldNotContainSubstring, "hidden")
	test.That(t, string(contents), test.ShouldContainSubstring, "gate stuck")

	_, closeLog = NewProcessLogger("gatekeeper", INFO, nil)
	test.That(t, closeLog(), test.ShouldBeNil)
}
