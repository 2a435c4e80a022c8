package logging

// Leveled logging for evoprobe

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

var levelNames = []string{"silent", "error", "info", "verbose", "debug"}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel maps a config or flag value to a level.
func ParseLevel(s string) (LogLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return LogLevelInfo, nil
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), nil
		}
	}
	return LogLevelInfo, fmt.Errorf("invalid log level %q (valid: %s)", s, strings.Join(levelNames, ", "))
}

// Logger provides leveled logging to the console and an optional file.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	file    *os.File
	fileLog *log.Logger
	console *log.Logger
}

// NewLogger creates a new logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	l := &Logger{
		level:   level,
		console: log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	return l, nil
}

// NewWriterLogger logs everything at or below level to w. Used by the
// simulator and tests.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return &Logger{
		level:   level,
		console: log.New(w, "", 0),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWriterLogger(LogLevelSilent, io.Discard)
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.fileLog = nil
		return err
	}
	return nil
}

func (l *Logger) Error(format string, v ...any)   { l.logf(LogLevelError, format, v...) }
func (l *Logger) Info(format string, v ...any)    { l.logf(LogLevelInfo, format, v...) }
func (l *Logger) Verbose(format string, v ...any) { l.logf(LogLevelVerbose, format, v...) }
func (l *Logger) Debug(format string, v ...any)   { l.logf(LogLevelDebug, format, v...) }

// logf writes one line prefixed with the upper-case level name. Every line
// reaches the file. The console gets errors always and the rest only at
// verbose or above.
func (l *Logger) logf(level LogLevel, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level < level {
		return
	}

	msg := strings.ToUpper(level.String()) + ": " + fmt.Sprintf(format, v...)
	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}
	if level == LogLevelError || l.level >= LogLevelVerbose {
		l.console.Println(msg)
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogOperation logs one panel command with its outcome and round trip time.
// Answered commands ("ok") are verbose; everything else is info.
func (l *Logger) LogOperation(operation, target, outcome string, rtt time.Duration, err error) {
	msg := fmt.Sprintf("%s %s on %s (RTT: %.3fms)",
		strings.ToUpper(outcome), operation, target, float64(rtt.Microseconds())/1000)
	if err != nil {
		msg += ": " + err.Error()
	}
	if outcome == "ok" {
		l.Verbose("%s", msg)
		return
	}
	l.Info("%s", msg)
}

// LogStartup logs the connection parameters of a run.
func (l *Logger) LogStartup(command, address string, port int, configPath string) {
	l.Info("Starting evoprobe %s", command)
	l.Verbose("  Target: %s:%d", address, port)
	if configPath != "" {
		l.Verbose("  Config: %s", configPath)
	}
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if l.GetLevel() >= LogLevelDebug {
		l.Debug("%s (%d bytes): %s", label, len(data), protocol.HexString(data))
	}
}

// LogExchange dumps one request and its response at debug level.
func (l *Logger) LogExchange(step string, request, response []byte) {
	if l.GetLevel() < LogLevelDebug {
		return
	}
	l.LogHex(step+" >>", request)
	if response == nil {
		l.Debug("%s <<: (none)", step)
		return
	}
	l.LogHex(step+" <<", response)
}
