// Package logging builds the service logger and logs coded errors.
package logging

import (
	"fmt"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger for development and a JSON logger otherwise.
func New(env, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Error logs err at error level. For oops errors the code and context are
// attached as fields.
func Error(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	logger.Error(msg, append(fields, ErrorFields(err)...)...)
}

// Warn is Error at warn level.
func Warn(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	logger.Warn(msg, append(fields, ErrorFields(err)...)...)
}

// ErrorFields describes err as zap fields.
func ErrorFields(err error) []zap.Field {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []zap.Field{zap.Error(err)}
	}
	fields := []zap.Field{zap.String("error", oopsErr.Error())}
	if code := oopsErr.Code(); code != nil {
		fields = append(fields, zap.Any("code", code))
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		fields = append(fields, zap.Any("context", ctx))
	}
	return fields
}
