package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is a one-shot set of measurement fields (duration, counts, status) attached to a
// single line on top of whatever the context logger already carries.
//
//	logger.With(logger.Fields{"new_items": n}).WithDuration(start).Info(ctx, "fetch done")
type Entry struct {
	fields Fields
}

// With starts an Entry. fields may be nil.
func With(fields Fields) *Entry {
	return (&Entry{}).With(fields)
}

// With returns a copy of e extended with fields. e is not modified.
func (e *Entry) With(fields Fields) *Entry {
	out := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return &Entry{fields: out}
}

// WithDuration records the milliseconds elapsed since start.
func (e *Entry) WithDuration(start time.Time) *Entry {
	return e.With(Fields{FieldDurationMs: time.Since(start).Milliseconds()})
}

// WithCount records an item count.
func (e *Entry) WithCount(count int) *Entry {
	return e.With(Fields{FieldCount: count})
}

// WithStatus records an outcome such as a terminal run status.
func (e *Entry) WithStatus(status string) *Entry {
	return e.With(Fields{FieldStatus: status})
}

func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.DebugLevel, format, args)
}

func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.InfoLevel, format, args)
}

func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.WarnLevel, format, args)
}

func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.ErrorLevel, format, args)
}

func (e *Entry) emit(ctx context.Context, level logrus.Level, format string, args []interface{}) {
	FromContext(ctx).WithFields(e.fields).Logf(level, format, args...)
}
