package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl is the Logger returned by every constructor in this package. A Sublogger or With child
// shares its parent's appenders but has its own level.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool
	// fields are attached to every entry, ahead of the per-call ones.
	fields    []zapcore.Field
	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) child(name string, fields []zapcore.Field) *impl {
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		fields:    fields,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return imp.child(name, imp.fields)
}

func (imp *impl) With(keysAndValues ...interface{}) Logger {
	fields := make([]zapcore.Field, 0, len(imp.fields)+len(keysAndValues)/2)
	fields = append(fields, imp.fields...)
	return imp.child(imp.name, append(fields, toFields(keysAndValues)...))
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Combine(err, appender.Sync())
	}
	return err
}

// emit writes one entry to every appender. It must be called directly from the exported
// logging method so that the recorded caller is the logger's caller.
func (imp *impl) emit(level Level, msg string, keysAndValues []interface{}) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	fields := imp.fields
	if len(keysAndValues) > 0 {
		fields = append(append([]zapcore.Field{}, imp.fields...), toFields(keysAndValues)...)
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.level.Get() <= DEBUG {
		imp.emit(DEBUG, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.level.Get() <= DEBUG {
		imp.emit(DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.level.Get() <= DEBUG || IsDebugMode(ctx) {
		imp.emit(DEBUG, msg, keysAndValues)
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.level.Get() <= INFO {
		imp.emit(INFO, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.level.Get() <= INFO {
		imp.emit(INFO, msg, keysAndValues)
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.level.Get() <= WARN {
		imp.emit(WARN, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.level.Get() <= WARN {
		imp.emit(WARN, msg, keysAndValues)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, msg, keysAndValues)
}

// errUnpairedKey is logged as the value of a trailing key with no value.
var errUnpairedKey = errors.New("unpaired log key")

// toFields pairs up alternating keys and values. Keys that are not strings are formatted with %v.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// getCaller returns the caller of the exported logging method, skipping getCaller and emit.
func getCaller() zapcore.EntryCaller {
	const skip = 3
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.NewEntryCaller(pc, file, line, true)
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
