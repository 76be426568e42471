package logger

import (
	"context"
	"sync/atomic"
)

type ctxLoggerKey struct{}

// fallback serves code paths that run outside a request or job, such as init and CLI setup.
var fallback atomic.Pointer[Logger]

func init() {
	fallback.Store(New(nil))
}

// GetDefault returns the process-wide logger.
func GetDefault() *Logger {
	return fallback.Load()
}

// SetDefaultLogger replaces the process-wide logger. nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		fallback.Store(l)
	}
}

// WithContext stores l in ctx so FromContext finds it downstream.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, l)
}

// FromContext returns the logger stored in ctx or the process-wide logger.
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return GetDefault()
	}
	if l, ok := ctx.Value(ctxLoggerKey{}).(*Logger); ok {
		return l
	}
	return GetDefault()
}

// WithField derives a context whose logger carries key=value on every line.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return WithFields(ctx, Fields{key: value})
}

// WithFields derives a context whose logger carries fields on every line.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// SetRunID tags ctx with a fetch or query run id.
func SetRunID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldRunID, id)
}

// SetComponent tags ctx with the component that owns the work.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithField(ctx, FieldComponent, name)
}

// GetRequestID returns the request id tagged by the HTTP middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := FromContext(ctx).Data[FieldRequestID].(string)
	return id
}
