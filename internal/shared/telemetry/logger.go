package telemetry

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = mustBuild("production")
)

// Init rebuilds the process logger for the given environment. Dev-like
// environments get the console encoder; everything else emits JSON lines.
func Init(env string) error {
	built, err := build(env)
	if err != nil {
		return err
	}
	mu.Lock()
	prev := logger
	logger = built
	mu.Unlock()
	_ = prev.Sync()
	return nil
}

// SetLogger swaps the underlying zap logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(zapcore.InfoLevel, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(zapcore.WarnLevel, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(zapcore.ErrorLevel, msg, fields)
}

func write(level zapcore.Level, msg string, fields map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	if ce := l.Check(level, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func toZapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case error:
			out = append(out, zap.String(k, v.Error()))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

func build(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		cfg.Sampling = nil
	}
	cfg.DisableStacktrace = true
	return cfg.Build(zap.AddCallerSkip(2))
}

func mustBuild(env string) *zap.Logger {
	l, err := build(env)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
