package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements contracts.Logger on top of the Uber zap logger.
type ZapLogger struct {
	mu     sync.RWMutex
	logger *zap.Logger
	atom   zap.AtomicLevel
	level  contracts.LogLevel
	file   *os.File // Open log file when the destination is FileLog.
}

// NewZapLogger creates a production zap logger writing JSON to stderr at InfoLevel.
func NewZapLogger() contracts.Logger {
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	logger, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger, atom: atom, level: contracts.InfoLevel}
}

// NewZapLoggerFrom wraps an existing zap logger. The wrapper still gates
// messages by its own level, which starts at InfoLevel.
func NewZapLoggerFrom(l *zap.Logger) *ZapLogger {
	return &ZapLogger{
		logger: l.WithOptions(zap.AddCallerSkip(2)),
		atom:   zap.NewAtomicLevelAt(zapcore.InfoLevel),
		level:  contracts.InfoLevel,
	}
}

// Info logs a message at the INFO level
func (z *ZapLogger) Info(msg string, fields ...contracts.Field) {
	z.log(zapcore.InfoLevel, msg, fields...)
}

// Error logs a message at the ERROR level
func (z *ZapLogger) Error(msg string, fields ...contracts.Field) {
	z.log(zapcore.ErrorLevel, msg, fields...)
}

// Debug logs a message at the DEBUG level
func (z *ZapLogger) Debug(msg string, fields ...contracts.Field) {
	z.log(zapcore.DebugLevel, msg, fields...)
}

// Warn logs a message at the WARN level
func (z *ZapLogger) Warn(msg string, fields ...contracts.Field) {
	z.log(zapcore.WarnLevel, msg, fields...)
}

// Fatal logs a message at the FATAL level and terminates the application
func (z *ZapLogger) Fatal(msg string, fields ...contracts.Field) {
	z.log(zapcore.FatalLevel, msg, fields...)
	os.Exit(1)
}

// Field returns a new instance of Field
func (z *ZapLogger) Field() contracts.Field {
	return &zapField{}
}

// SetLevel sets the logging level
func (z *ZapLogger) SetLevel(level contracts.LogLevel) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.level = level
	z.atom.SetLevel(toZapLevel(level))
}

// Level returns the current logging level.
func (z *ZapLogger) Level() contracts.LogLevel {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.level
}

// SetDestination rebuilds the logger core on the console or on a file.
// A FileLog destination without a path keeps the current destination.
func (z *ZapLogger) SetDestination(dest contracts.LogDestination, filePath ...string) {
	var (
		sink zapcore.WriteSyncer
		file *os.File
	)
	switch dest {
	case contracts.FileLog:
		if len(filePath) == 0 || filePath[0] == "" {
			z.Warn("file log destination requested without a path")
			return
		}
		f, err := os.OpenFile(filePath[0], os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			z.Error("failed to open log file",
				z.Field().String("path", filePath[0]),
				z.Field().Error("error", err))
			return
		}
		file = f
		sink = zapcore.AddSync(f)
	default:
		sink = zapcore.Lock(os.Stderr)
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, sink, z.atom)

	z.mu.Lock()
	old := z.file
	z.logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	z.file = file
	z.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if err := z.logger.Sync(); err != nil && z.file != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	return nil
}

// log is the internal entry point for every level.
func (z *ZapLogger) log(level zapcore.Level, msg string, fields ...contracts.Field) {
	if !z.atom.Enabled(level) {
		return
	}
	z.mu.RLock()
	logger := z.logger
	z.mu.RUnlock()

	if ce := logger.Check(level, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

// toZapLevel maps a contracts level onto zap's ordering.
func toZapLevel(level contracts.LogLevel) zapcore.Level {
	switch level {
	case contracts.DebugLevel:
		return zapcore.DebugLevel
	case contracts.WarnLevel:
		return zapcore.WarnLevel
	case contracts.ErrorLevel:
		return zapcore.ErrorLevel
	case contracts.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(fields []contracts.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if f, ok := field.(*zapField); ok && f.field.Key != "" {
			out = append(out, f.field)
		}
	}
	return out
}

// zapField implements contracts.Field
type zapField struct {
	field zap.Field
}

func (f *zapField) Bool(key string, val bool) contracts.Field {
	return &zapField{zap.Bool(key, val)}
}

func (f *zapField) Int(key string, val int) contracts.Field {
	return &zapField{zap.Int(key, val)}
}

func (f *zapField) Float64(key string, val float64) contracts.Field {
	return &zapField{zap.Float64(key, val)}
}

func (f *zapField) String(key string, val string) contracts.Field {
	return &zapField{zap.String(key, val)}
}

func (f *zapField) Time(key string, val time.Time) contracts.Field {
	return &zapField{zap.Time(key, val)}
}

func (f *zapField) Duration(key string, val time.Duration) contracts.Field {
	return &zapField{zap.Duration(key, val)}
}

func (f *zapField) Int64(key string, val int64) contracts.Field {
	return &zapField{zap.Int64(key, val)}
}

func (f *zapField) Error(key string, val error) contracts.Field {
	return &zapField{zap.NamedError(key, val)}
}

func (f *zapField) Uint64(key string, val uint64) contracts.Field {
	return &zapField{zap.Uint64(key, val)}
}

func (f *zapField) Uint8(key string, val uint8) contracts.Field {
	return &zapField{zap.Uint8(key, val)}
}

// Binary logs the bytes as space separated hex, the way packets are traced.
func (f *zapField) Binary(key string, val []byte) contracts.Field {
	return &zapField{zap.String(key, fmt.Sprintf("% x", val))}
}
