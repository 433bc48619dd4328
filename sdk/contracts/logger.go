package contracts

import "time"

// LogLevel represents the severity level for logging.
type LogLevel int

const (
	// InfoLevel indicates informational messages such as session lifecycle and availability changes.
	InfoLevel LogLevel = iota
	// DebugLevel indicates per-packet traces that are useful when debugging a link.
	DebugLevel
	// ErrorLevel indicates transport failures and other serious issues.
	ErrorLevel
	// WarnLevel indicates dropped packets and rejected requests.
	WarnLevel
	// FatalLevel indicates very severe error events that will presumably lead the application to abort.
	FatalLevel
)

// String returns the lower-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case FatalLevel:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLogLevel converts a level name into a LogLevel.
// Unknown names fall back to InfoLevel and report false.
func ParseLogLevel(name string) (LogLevel, bool) {
	switch name {
	case "debug":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}

// LogDestination specifies where the log messages should be directed.
type LogDestination string

const (
	// ConsoleLog directs log messages to the console output.
	ConsoleLog LogDestination = "console"
	// FileLog directs log messages to a file.
	FileLog LogDestination = "file"
)

// Field represents a structured log field of one of several value types.
type Field interface {
	Bool(key string, val bool) Field
	Int(key string, val int) Field
	Float64(key string, val float64) Field
	String(key string, val string) Field
	Time(key string, val time.Time) Field
	Duration(key string, val time.Duration) Field
	Int64(key string, val int64) Field
	Error(key string, val error) Field
	Uint64(key string, val uint64) Field
	Uint8(key string, val uint8) Field
	Binary(key string, val []byte) Field
}

// Logger provides leveled, structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Field() Field

	SetLevel(level LogLevel)
	SetDestination(dest LogDestination, filePath ...string)
	Sync() error
}
