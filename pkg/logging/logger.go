// Package logging builds the zap loggers used across skillgate.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TraceLevel sits below Debug for wire-level detail.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, accepting "trace".
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return l, nil
}

// New builds a logger writing to stderr. The MCP transport owns stdout, so
// logs never go there.
func New(level, format string) (*zap.Logger, error) {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(w io.Writer, level, format string) (*zap.Logger, error) {
	lvl, err := LevelFromString(level)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(newEncoder(format), zapcore.AddSync(w), lvl)
	return zap.New(core, zap.AddCaller()), nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = encodeLevel

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// NewObserved returns a logger that records every entry for assertions.
func NewObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(TraceLevel)
	return zap.New(core), logs
}

// Sync flushes l, ignoring the harmless errors returned for terminals.
func Sync(l *zap.Logger) error {
	err := l.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
