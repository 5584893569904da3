package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// StructuredLogger is the production Logger implementation: leveled,
// optionally JSON-formatted, and component-tagged.
type StructuredLogger struct {
	level     string
	debug     bool
	service   string
	component string
	format    string // "json" or "text"
	output    io.Writer
}

// NewStructuredLogger builds a logger for serviceName. format is "json" or
// "text"; level is one of debug/info/warn/error (case-insensitive).
func NewStructuredLogger(serviceName, level, format string) *StructuredLogger {
	if format == "" {
		format = "text"
	}
	if level == "" {
		level = "info"
	}
	return &StructuredLogger{
		level:   strings.ToLower(level),
		debug:   strings.ToLower(level) == "debug",
		service: serviceName,
		format:  format,
		output:  os.Stdout,
	}
}

func (l *StructuredLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

func (l *StructuredLogger) Debug(msg string, fields map[string]interface{}) {
	if l.debug {
		l.write("DEBUG", msg, fields)
	}
}
func (l *StructuredLogger) Info(msg string, fields map[string]interface{})  { l.write("INFO", msg, fields) }
func (l *StructuredLogger) Warn(msg string, fields map[string]interface{})  { l.write("WARN", msg, fields) }
func (l *StructuredLogger) Error(msg string, fields map[string]interface{}) { l.write("ERROR", msg, fields) }

func (l *StructuredLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Debug(msg, fields)
}
func (l *StructuredLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Info(msg, fields)
}
func (l *StructuredLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Warn(msg, fields)
}
func (l *StructuredLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Error(msg, fields)
}

func (l *StructuredLogger) write(level, msg string, fields map[string]interface{}) {
	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"level":     level,
			"service":   l.service,
			"message":   msg,
		}
		if l.component != "" {
			entry["component"] = l.component
		}
		for k, v := range fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s]", time.Now().Format(time.RFC3339), level, l.service)
	if l.component != "" {
		fmt.Fprintf(&b, " [%s]", l.component)
	}
	fmt.Fprintf(&b, " %s", msg)
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	fmt.Fprintln(l.output, b.String())
}

var _ ComponentAwareLogger = (*StructuredLogger)(nil)
