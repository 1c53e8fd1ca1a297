package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// DebugEnvVar turns on debug output for every logger created after it is set
const DebugEnvVar = "ANALYSIS_BROKER_DEBUG"

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

var logLevelNames = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogWarn:  "WARN",
	LogError: "ERROR",
}

// String returns the upper-case level name
func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLogLevel maps a config value to a level, defaulting to info
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogDebug
	case "warn", "warning":
		return LogWarn
	case "error":
		return LogError
	default:
		return LogInfo
	}
}

// SafeLogger provides STDIO-safe logging that never writes to stdout.
// The server's stdin/stdout pipes and the CLI's JSON output both depend on that.
type SafeLogger struct {
	mu     sync.Mutex
	prefix string
	level  LogLevel
	out    io.Writer
}

// NewSafeLogger creates a new safe logger with the given prefix
func NewSafeLogger(prefix string) *SafeLogger {
	level := LogInfo
	if v := strings.ToLower(os.Getenv(DebugEnvVar)); v == "true" || v == "1" {
		level = LogDebug
	}
	return &SafeLogger{
		prefix: prefix,
		level:  level,
	}
}

// SetLevel sets the minimum log level
func (l *SafeLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the current minimum level
func (l *SafeLogger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput redirects the logger; nil restores stderr
func (l *SafeLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

func (l *SafeLogger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	out := l.out
	if out == nil {
		out = os.Stderr
	}

	timestamp := time.Now().Format("2006/01/02 15:04:05")
	message := fmt.Sprintf(format, args...)
	fmt.Fprintf(out, "%s [%s] %s: %s\n", timestamp, level, l.prefix, message)
}

// Debug logs a debug message
func (l *SafeLogger) Debug(format string, args ...interface{}) {
	l.log(LogDebug, format, args...)
}

// Info logs an info message
func (l *SafeLogger) Info(format string, args ...interface{}) {
	l.log(LogInfo, format, args...)
}

// Warn logs a warning message
func (l *SafeLogger) Warn(format string, args ...interface{}) {
	l.log(LogWarn, format, args...)
}

// Error logs an error message
func (l *SafeLogger) Error(format string, args ...interface{}) {
	l.log(LogError, format, args...)
}

// Global logger instances for convenience
var (
	ServerLogger  = NewSafeLogger("Server")
	QueueLogger   = NewSafeLogger("Queue")
	WatcherLogger = NewSafeLogger("Watcher")
	CLILogger     = NewSafeLogger("CLI")
)

// SetGlobalLevel applies one level to every package-level logger
func SetGlobalLevel(level LogLevel) {
	for _, l := range []*SafeLogger{ServerLogger, QueueLogger, WatcherLogger, CLILogger} {
		l.SetLevel(level)
	}
}

const maxLoggedErrorLength = 200

// SanitizeErrorForLogging flattens an error value to a single bounded line.
// Analysis servers tend to return full .NET stack traces in failure messages.
func SanitizeErrorForLogging(err interface{}) string {
	if err == nil {
		return ""
	}

	var msg string
	switch e := err.(type) {
	case error:
		msg = e.Error()
	case string:
		msg = e
	default:
		msg = fmt.Sprintf("%v", e)
	}

	if idx := strings.Index(msg, "\n"); idx >= 0 {
		msg = msg[:idx]
	}
	msg = strings.TrimSpace(msg)

	if len(msg) > maxLoggedErrorLength {
		msg = msg[:maxLoggedErrorLength] + "..."
	}
	return msg
}
