// Package logger provides the structured logger used throughout the
// broker, wrapping zap's SugaredLogger behind a small package-level API
// so call sites read as plain Printf-style logging.
package logger

import (
	"context"

	"go.uber.org/zap"
)

var global = zap.NewNop().Sugar()

type contextKey struct{}

// Initialize configures the global logger. debug selects a
// development (console, caller-annotated) encoder; otherwise a
// production JSON encoder is used.
func Initialize(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	global = l.Sugar()
	return nil
}

// NewContext returns a child context carrying a logger annotated with
// the given key/value pairs, retrievable via FromContext.
func NewContext(ctx context.Context, keyValues ...interface{}) context.Context {
	l := FromContext(ctx).With(keyValues...)
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger attached to ctx, or the global logger
// if none was attached.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return global
	}
	if l, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger); ok {
		return l
	}
	return global
}

// Infof logs at info level using the global logger.
func Infof(template string, args ...interface{}) { global.Infof(template, args...) }

// Debugf logs at debug level using the global logger.
func Debugf(template string, args ...interface{}) { global.Debugf(template, args...) }

// Warnf logs at warn level using the global logger.
func Warnf(template string, args ...interface{}) { global.Warnf(template, args...) }

// Errorf logs at error level using the global logger.
func Errorf(template string, args ...interface{}) { global.Errorf(template, args...) }

// Sync flushes any buffered log entries. Call before process exit.
func Sync() error { return global.Sync() }
