package log

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger atomic.Pointer[zap.SugaredLogger]
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	logger.Store(zap.New(core).Sugar())
}

// ParseLevel maps a config value ("debug", "info", "error") to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	level.SetLevel(zapLevel(l))
}

// SetOutput replaces the global logger and returns a func restoring the
// previous one. Tests use it with zaptest/observer.
func SetOutput(core zapcore.Core) (restore func()) {
	prev := logger.Swap(zap.New(core).Sugar())
	return func() { logger.Store(prev) }
}

// Enabled reports whether messages at l are currently written.
func Enabled(l Level) bool {
	return level.Enabled(zapLevel(l))
}

func Debug(msg string, kv ...any) {
	logger.Load().Debugw(msg, pairs(kv)...)
}

func Info(msg string, kv ...any) {
	logger.Load().Infow(msg, pairs(kv)...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, pairs(kv)...)
	logger.Load().Errorw(msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = logger.Load().Sync()
}

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// pairs drops a trailing key without value and any non-string key, matching
// the lenient behaviour callers rely on.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
