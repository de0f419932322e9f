package events

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel represents logging severity.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelColors = map[LogLevel]*color.Color{
	DebugLevel: color.New(color.FgCyan),
	InfoLevel:  color.New(color.FgGreen),
	WarnLevel:  color.New(color.FgYellow),
	ErrorLevel: color.New(color.FgRed),
}

// Logger provides structured logging with field chaining.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	format string
	output io.Writer
	fields map[string]interface{}
}

// New creates a logger writing to output in the given format ("text" or
// "json") at the given minimum level.
func New(level, format string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		level:  ParseLevel(level),
		format: format,
		output: output,
		fields: make(map[string]interface{}),
	}
}

// NewFile creates a logger appending to the given file path.
func NewFile(level, format, path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return New(level, format, file), nil
}

// NewTestLogger creates a discard logger for tests.
func NewTestLogger() *Logger {
	return New("debug", "text", io.Discard)
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &Logger{
		level:  l.level,
		format: l.format,
		output: l.output,
		fields: merged,
	}
}

// WithError adds an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) { l.log(DebugLevel, msg) }

// Info logs at info level.
func (l *Logger) Info(msg string) { l.log(InfoLevel, msg) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string) { l.log(WarnLevel, msg) }

// Error logs at error level.
func (l *Logger) Error(msg string) { l.log(ErrorLevel, msg) }

func (l *Logger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		l.writeJSON(level, msg)
		return
	}
	l.writeText(level, msg)
}

func (l *Logger) writeJSON(level LogLevel, msg string) {
	entry := make(map[string]interface{}, len(l.fields)+3)
	for k, v := range l.fields {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = levelString(level)
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		// Fields that cannot marshal fall back to a plain entry.
		data, _ = json.Marshal(map[string]interface{}{
			"time":  entry["time"],
			"level": entry["level"],
			"msg":   fmt.Sprintf("%s (unmarshalable fields: %v)", msg, err),
		})
	}
	_, _ = l.output.Write(append(data, '\n'))
}

func (l *Logger) writeText(level LogLevel, msg string) {
	levelStr := strings.ToUpper(levelString(level))
	if c, ok := levelColors[level]; ok {
		levelStr = c.Sprintf("[%s]", levelStr)
	} else {
		levelStr = "[" + levelStr + "]"
	}

	var sb strings.Builder
	sb.WriteString(time.Now().UTC().Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(levelStr)
	sb.WriteByte(' ')
	sb.WriteString(msg)

	// Deterministic field order keeps log lines diffable.
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
	}
	sb.WriteByte('\n')

	_, _ = l.output.Write([]byte(sb.String()))
}

// ParseLevel converts a level name to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func levelString(l LogLevel) string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}
