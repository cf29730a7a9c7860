// Package logging wraps zap for autohttps.
// Diagnostic output (Debug level) is switched on and off at runtime by the
// logging preference; warnings and errors are always emitted.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with a runtime-adjustable level.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config defines logger configuration.
type Config struct {
	Development bool
	OutputPaths []string
	Diagnostics bool // Start with Debug output enabled
}

// DefaultConfig returns production logger configuration with diagnostics off.
func DefaultConfig() Config {
	return Config{
		Development: false,
		OutputPaths: []string{"stderr"},
	}
}

// New creates a new logger with the provided configuration.
func New(cfg Config) (*Logger, error) {
	level := zap.NewAtomicLevelAt(levelFor(cfg.Diagnostics))
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:             level,
		Development:       cfg.Development,
		Encoding:          encodingFormat(cfg.Development),
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger, level: level}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.WarnLevel)}
}

// NewWithCore builds a logger around a caller-supplied core. The core must use
// the given level as its LevelEnabler for SetDiagnostics to take effect.
// Tests use it with zaptest/observer.
func NewWithCore(build func(level zap.AtomicLevel) zapcore.Core) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return &Logger{Logger: zap.New(build(level)), level: level}
}

// SetDiagnostics enables or disables Debug output.
func (l *Logger) SetDiagnostics(enabled bool) {
	l.level.SetLevel(levelFor(enabled))
}

// DiagnosticsEnabled reports whether Debug output is currently emitted.
func (l *Logger) DiagnosticsEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// Named returns a child logger sharing the same level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), level: l.level}
}

func levelFor(diagnostics bool) zapcore.Level {
	if diagnostics {
		return zapcore.DebugLevel
	}
	return zapcore.WarnLevel
}

// encodingFormat returns encoding format based on environment.
func encodingFormat(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

// encoderConfig returns encoder configuration based on environment.
func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		return zapcore.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.EpochMillisTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
