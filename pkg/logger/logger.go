// Package logger exposes component-tagged helpers on top of a shared zap logger.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "info"
	}
}

func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Options configures the shared logger.
type Options struct {
	Level  string
	Format string // json | console
	File   string
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base   = newDefault()
	closer func()
)

func newDefault() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Init rebuilds the shared logger. Safe to call more than once.
func Init(opts Options) error {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	if f := strings.TrimSpace(opts.File); f != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, f)
	}
	SetLevel(ParseLevel(opts.Level))

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	prev := base
	base = l
	closer = func() { _ = l.Sync() }
	mu.Unlock()
	_ = prev.Sync()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	fn := closer
	mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Use swaps the shared logger, mainly for tests. It returns a restore func.
func Use(l *zap.Logger) func() {
	mu.Lock()
	prev := base
	base = l
	mu.Unlock()
	return func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	}
}

func SetLevel(l LogLevel) {
	switch l {
	case DEBUG:
		level.SetLevel(zapcore.DebugLevel)
	case WARN:
		level.SetLevel(zapcore.WarnLevel)
	case ERROR:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

func GetLevel() LogLevel {
	switch level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func toFields(component string, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	if component != "" {
		out = append(out, zap.String("component", component))
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}

func logAt(l zapcore.Level, component, msg string, fields map[string]interface{}) {
	lg := current()
	if ce := lg.Check(l, msg); ce != nil {
		ce.Write(toFields(component, fields)...)
	}
}

func Debug(msg string) { logAt(zapcore.DebugLevel, "", msg, nil) }
func Info(msg string) { logAt(zapcore.InfoLevel, "", msg, nil) }
func Warn(msg string) { logAt(zapcore.WarnLevel, "", msg, nil) }
func Error(msg string) { logAt(zapcore.ErrorLevel, "", msg, nil) }
func DebugC(component, msg string) { logAt(zapcore.DebugLevel, component, msg, nil) }
func InfoC(component, msg string) { logAt(zapcore.InfoLevel, component, msg, nil) }
func WarnC(component, msg string) { logAt(zapcore.WarnLevel, component, msg, nil) }
func ErrorC(component, msg string) { logAt(zapcore.ErrorLevel, component, msg, nil) }
func DebugCF(component, msg string, f map[string]interface{}) { logAt(zapcore.DebugLevel, component, msg, f) }
func InfoCF(component, msg string, f map[string]interface{}) { logAt(zapcore.InfoLevel, component, msg, f) }
func WarnCF(component, msg string, f map[string]interface{}) { logAt(zapcore.WarnLevel, component, msg, f) }
func ErrorCF(component, msg string, f map[string]interface{}) { logAt(zapcore.ErrorLevel, component, msg, f) }

// Fatal logs and exits the process.
func Fatal(msg string, err error) {
	current().Fatal(msg, zap.Error(err))
}
