// Package logger provides component-tagged structured logging on top of zap.
package logger

import (
	"os"
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

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  *zap.Logger
	once  sync.Once
	mu    sync.RWMutex
)

func init() {
	if strings.EqualFold(os.Getenv("DAYBOOK_DEBUG"), "true") {
		level.SetLevel(zapcore.DebugLevel)
	}
}

func build(format string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// Zap returns the shared zap logger, building it on first use.
func Zap() *zap.Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if base == nil {
			base = build(os.Getenv("DAYBOOK_LOG_FORMAT"))
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Configure replaces the shared logger. format is "json" or "console".
func Configure(lvl LogLevel, format string) {
	SetLevel(lvl)
	l := build(format)
	once.Do(func() {})
	mu.Lock()
	base = l
	mu.Unlock()
}

// SetOutput routes all log output through core. Used by tests.
func SetOutput(core zapcore.Core) {
	once.Do(func() {})
	mu.Lock()
	base = zap.New(core)
	mu.Unlock()
}

func SetLevel(l LogLevel) {
	level.SetLevel(toZap(l))
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

// ParseLevel maps a config string to a LogLevel, defaulting to INFO.
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

func toZap(l LogLevel) zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func logMessage(l LogLevel, component, message string, fields map[string]any) {
	lg := Zap()
	zf := make([]zap.Field, 0, len(fields)+1)
	if component != "" {
		zf = append(zf, zap.String("component", component))
	}
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}

	switch l {
	case DEBUG:
		lg.Debug(message, zf...)
	case WARN:
		lg.Warn(message, zf...)
	case ERROR:
		lg.Error(message, zf...)
	default:
		lg.Info(message, zf...)
	}
}

func Debug(message string) { logMessage(DEBUG, "", message, nil) }
func Info(message string)  { logMessage(INFO, "", message, nil) }
func Warn(message string)  { logMessage(WARN, "", message, nil) }
func Error(message string) { logMessage(ERROR, "", message, nil) }

func DebugC(component, message string) { logMessage(DEBUG, component, message, nil) }
func InfoC(component, message string)  { logMessage(INFO, component, message, nil) }
func WarnC(component, message string)  { logMessage(WARN, component, message, nil) }
func ErrorC(component, message string) { logMessage(ERROR, component, message, nil) }

func DebugCF(component, message string, fields map[string]any) {
	logMessage(DEBUG, component, message, fields)
}

func InfoCF(component, message string, fields map[string]any) {
	logMessage(INFO, component, message, fields)
}

func WarnCF(component, message string, fields map[string]any) {
	logMessage(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]any) {
	logMessage(ERROR, component, message, fields)
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = Zap().Sync()
}
