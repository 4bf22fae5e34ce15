package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the time format used by all appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender writes tab delimited log lines to an io.Writer.
type ConsoleAppender struct {
	io.Writer
	colored bool
	mu      sync.Mutex
}

// NewStdoutAppender creates a new appender that outputs to stdout with colored levels.
func NewStdoutAppender() *ConsoleAppender {
	return &ConsoleAppender{Writer: os.Stdout, colored: true}
}

// NewWriterAppender creates a new appender that outputs uncolored lines to the input writer.
func NewWriterAppender(writer io.Writer) *ConsoleAppender {
	return &ConsoleAppender{Writer: writer}
}

// FileAppenderConfig configures a rotating log file.
type FileAppenderConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// NewFileAppender returns an appender writing to a size-rotated log file.
func NewFileAppender(cfg FileAppenderConfig) *ConsoleAppender {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	return NewWriterAppender(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	})
}

// Write outputs the log entry to the underlying stream.
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	const maxLength = 10
	toPrint := make([]string, 0, maxLength)
	toPrint = append(toPrint, entry.Time.Format(DefaultTimeFormatStr))
	if appender.colored {
		toPrint = append(toPrint, levelColor(entry.Level))
	} else {
		toPrint = append(toPrint, strings.ToUpper(entry.Level.String()))
	}
	toPrint = append(toPrint, entry.LoggerName)
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)

	if len(fields) > 0 {
		// Use zap's json encoder which will encode our slice of fields in-order.
		jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
		if err != nil {
			return err
		}
		toPrint = append(toPrint, string(buf.Bytes()))
		buf.Free()
	}

	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err := fmt.Fprintln(appender.Writer, strings.Join(toPrint, "\t"))
	return err
}

// Sync flushes the writer when it supports syncing.
func (appender *ConsoleAppender) Sync() error {
	if syncer, ok := appender.Writer.(interface{ Sync() error }); ok {
		appender.mu.Lock()
		defer appender.mu.Unlock()
		if err := syncer.Sync(); err != nil && appender.Writer != os.Stdout {
			return err
		}
	}
	return nil
}

// Close releases the underlying writer if it holds a file.
func (appender *ConsoleAppender) Close() error {
	if closer, ok := appender.Writer.(io.Closer); ok && appender.Writer != os.Stdout {
		return closer.Close()
	}
	return nil
}

func levelColor(level zapcore.Level) string {
	const (
		red     = 31
		yellow  = 33
		blue    = 34
		magenta = 35
	)
	color := blue
	switch level {
	case zapcore.DebugLevel:
		color = magenta
	case zapcore.WarnLevel:
		color = yellow
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		color = red
	case zapcore.InfoLevel, zapcore.InvalidLevel:
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, strings.ToUpper(level.String()))
}

// callerToString renders a caller as "<dir>/<file>:<line>".
func callerToString(caller *zapcore.EntryCaller) string {
	dir, file := filepath.Split(caller.File)
	return fmt.Sprintf("%s/%s:%d", filepath.Base(dir), file, caller.Line)
}
