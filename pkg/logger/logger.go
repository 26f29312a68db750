// Package logger provides leveled, component-tagged logging for lumenbridge.
//
// Components pass a short tag ("session", "stream", "bridge") so log lines
// from concurrent sessions stay attributable without a full tracing stack.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	minLevel           = LevelInfo
)

// SetLevel sets the minimum level emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func log(level Level, component, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(levelNames[level])
	b.WriteString("] ")
	if component != "" {
		b.WriteString(component)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	fmt.Fprintln(out, b.String())
}

func Debug(msg string) { log(LevelDebug, "", msg, nil) }
func Info(msg string)  { log(LevelInfo, "", msg, nil) }
func Warn(msg string)  { log(LevelWarn, "", msg, nil) }
func Error(msg string) { log(LevelError, "", msg, nil) }

func DebugC(component, msg string) { log(LevelDebug, component, msg, nil) }
func InfoC(component, msg string)  { log(LevelInfo, component, msg, nil) }
func WarnC(component, msg string)  { log(LevelWarn, component, msg, nil) }
func ErrorC(component, msg string) { log(LevelError, component, msg, nil) }

// CF variants attach structured fields to a component-tagged line.

func DebugCF(component, msg string, fields map[string]any) { log(LevelDebug, component, msg, fields) }
func InfoCF(component, msg string, fields map[string]any)  { log(LevelInfo, component, msg, fields) }
func WarnCF(component, msg string, fields map[string]any)  { log(LevelWarn, component, msg, fields) }
func ErrorCF(component, msg string, fields map[string]any) { log(LevelError, component, msg, fields) }
