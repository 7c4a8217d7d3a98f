// Package logger implements a logging adapter using log/slog.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"strings"
	"sync"

	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/devshell/internal/ui/style"
)

// EnvFormat selects the log format. "json" switches to structured output.
const EnvFormat = "DEVSHELL_LOG"

// messager describes an error that can report its own message without the chain.
// zerr.Error and domain.ResolutionError both implement it.
type messager interface {
	Message() string
}

// metadataer describes an error carrying key/value context.
type metadataer interface {
	Metadata() map[string]any
}

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	jsonMode bool
	output   io.Writer
}

var _ ports.Logger = (*Logger)(nil)

// New creates a Logger writing to stderr.
// JSON output is enabled when DEVSHELL_LOG=json.
func New() *Logger {
	l := &Logger{output: os.Stderr}
	l.jsonMode = strings.EqualFold(os.Getenv(EnvFormat), "json")
	l.rebuildLocked()
	return l
}

// SetOutput updates the logger's output destination, keeping the JSON mode.
// If w is nil, os.Stderr is used.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.rebuildLocked()
}

// SetJSON switches between JSON and pretty logging.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.jsonMode = enable
	l.rebuildLocked()
}

// rebuildLocked must be called with mu held.
func (l *Logger) rebuildLocked() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if l.jsonMode {
		handler = slog.NewJSONHandler(l.output, opts)
	} else {
		handler = NewPrettyHandler(l.output, opts)
	}
	l.logger = slog.New(handler)
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Error logs an error with its cause chain.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err == nil {
		return
	}

	if l.jsonMode {
		entries := collectErrorEntries(err)
		attrs := make([]any, 0, 2)
		attrs = append(attrs, slog.String("error", err.Error()))
		if len(entries) > 1 {
			causes := make([]string, 0, len(entries)-1)
			for _, e := range entries[1:] {
				causes = append(causes, e.Message)
			}
			attrs = append(attrs, slog.Any("causes", causes))
		}
		for _, e := range entries {
			for k, v := range e.Metadata {
				attrs = append(attrs, slog.Any(k, v))
			}
		}
		l.logger.Error("operation failed", attrs...)
		return
	}

	l.logger.Error(formatErrorEntries(collectErrorEntries(err)))
}

// collectErrorEntries walks the chain while errors report their own message.
// The first plain error ends the walk with its full Error() text.
func collectErrorEntries(err error) []ErrorEntry {
	var (
		entries []ErrorEntry
		pending map[string]any
	)

	for current := err; current != nil; {
		m, ok := current.(messager)
		if !ok {
			entries = append(entries, ErrorEntry{Message: current.Error(), Metadata: pending})
			break
		}

		var meta map[string]any
		if md, ok := current.(metadataer); ok {
			meta = md.Metadata()
		}

		// zerr.With on a foreign error adds an empty-message layer;
		// its metadata belongs to the neighbouring entry.
		switch {
		case m.Message() != "":
			if len(pending) > 0 {
				meta = mergeMetadata(meta, pending)
				pending = nil
			}
			entries = append(entries, ErrorEntry{Message: m.Message(), Metadata: meta})
		case len(entries) > 0:
			prev := &entries[len(entries)-1]
			prev.Metadata = mergeMetadata(prev.Metadata, meta)
		default:
			pending = mergeMetadata(pending, meta)
		}

		current = errors.Unwrap(current)
	}

	return entries
}

// formatErrorEntries renders entries as "Error: ..." followed by a "Caused by:" list.
func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string

	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")

		indent := "      "
		if i == 0 {
			lines = append(lines, "Error: "+msgLines[0])
			indent = "       "
		} else {
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			lines = append(lines, "    "+style.Arrow+" "+msgLines[0])
		}

		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}
		for _, key := range metadataKeys(entry.Metadata) {
			lines = append(lines, fmt.Sprintf("%s%s: %v", indent, key, entry.Metadata[key]))
		}
	}

	return strings.Join(lines, "\n")
}

func mergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, src)
	return dst
}
