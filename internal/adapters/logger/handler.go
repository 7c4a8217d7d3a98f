package logger

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/devshell/internal/ui/output"
	"go.trai.ch/devshell/internal/ui/style"
)

// resolutionKeys lead every attribute list, in this order.
var resolutionKeys = []string{"package", "platform", "catalog", "attribute"}

func keyRank(key string) int {
	if i := slices.Index(resolutionKeys, key); i >= 0 {
		return i
	}
	return len(resolutionKeys)
}

// metadataKeys returns the keys of meta with resolution keys first and the rest sorted.
func metadataKeys(meta map[string]any) []string {
	return slices.SortedFunc(maps.Keys(meta), func(a, b string) int {
		if c := cmp.Compare(keyRank(a), keyRank(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

// PrettyHandler is a slog.Handler that writes one coloured line per record.
type PrettyHandler struct {
	out   *termenv.Output
	level slog.Leveler
	attrs []field
	group string
}

// field is an attribute flattened under its group prefix.
type field struct {
	prefix string
	attr   slog.Attr
}

func (f field) String() string {
	value := f.attr.Value.String()
	if value == "" || strings.ContainsAny(value, " \t\n\"=") {
		value = strconv.Quote(value)
	}
	return f.prefix + f.attr.Key + "=" + value
}

// NewPrettyHandler creates a new PrettyHandler writing to w.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &PrettyHandler{out: output.New(w), level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes the record as "<icon> message key=value ...".
// Attributes describing the failing package come first.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	icon, color := h.decoration(r.Level)

	fields := slices.Clone(h.attrs)
	r.Attrs(func(attr slog.Attr) bool {
		fields = flatten(fields, h.prefix(), attr)
		return true
	})
	slices.SortStableFunc(fields, func(a, b field) int {
		return cmp.Compare(keyRank(a.attr.Key), keyRank(b.attr.Key))
	})

	var b strings.Builder
	if icon != "" {
		b.WriteString(icon + " ")
	}
	b.WriteString(r.Message)
	line := h.out.String(b.String()).Foreground(color).String()

	if len(fields) > 0 {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = f.String()
		}
		line += " " + h.out.String(strings.Join(parts, " ")).Faint().String()
	}

	_, err := h.out.WriteString(line + "\n")
	return err
}

func (h *PrettyHandler) decoration(level slog.Level) (string, termenv.Color) {
	switch {
	case level >= slog.LevelError:
		return style.Cross, h.out.Color(string(style.Red))
	case level >= slog.LevelWarn:
		return style.Warning, h.out.Color(string(style.Yellow))
	case level < slog.LevelInfo:
		return style.Arrow, h.out.Color(string(style.Slate))
	default:
		return "", h.out.Color(string(style.Slate))
	}
}

func (h *PrettyHandler) prefix() string {
	if h.group == "" {
		return ""
	}
	return h.group + "."
}

// flatten appends attr to fields, expanding nested groups into dotted keys.
func flatten(fields []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	if attr.Value.Kind() != slog.KindGroup {
		return append(fields, field{prefix: prefix, attr: attr})
	}

	if attr.Key != "" {
		prefix += attr.Key + "."
	}
	for _, inner := range attr.Value.Group() {
		fields = flatten(fields, prefix, inner)
	}
	return fields
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := slices.Clone(h.attrs)
	for _, attr := range attrs {
		fields = flatten(fields, h.prefix(), attr)
	}
	return &PrettyHandler{out: h.out, level: h.level, attrs: fields, group: h.group}
}

// WithGroup returns a new Handler with the given group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PrettyHandler{out: h.out, level: h.level, attrs: h.attrs, group: h.prefix() + name}
}
