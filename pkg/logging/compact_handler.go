package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"
)

// CompactHandler formats logs in a compact, readable format for console output
// Format: [LEVEL] HH:MM:SS message | key=value key=value
type CompactHandler struct {
	opts    slog.HandlerOptions
	colored bool
	mu      *sync.Mutex
	out     io.Writer
	attrs   []slog.Attr // accumulated attributes from WithAttrs
	group   string      // dotted prefix from WithGroup
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		out:  w,
	}
}

// WithColor returns a copy of h that colors the level tags.
func (h *CompactHandler) WithColor(colored bool) *CompactHandler {
	c := *h
	c.colored = colored
	return &c
}

var levelTags = []struct {
	level slog.Level
	tag   string
	color *color.Color
}{
	{slog.LevelError, "[ERROR]", color.New(color.FgRed, color.Bold)},
	{slog.LevelWarn, "[WARN] ", color.New(color.FgYellow)},
	{slog.LevelInfo, "[INFO] ", color.New(color.FgCyan)},
	{slog.LevelDebug, "[DEBUG]", color.New(color.Faint)},
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	// Level with fixed width; levels between the named ones round down.
	tag, c := fmt.Sprintf("[%-5s]", r.Level), (*color.Color)(nil)
	for _, lt := range levelTags {
		if r.Level >= lt.level {
			tag, c = lt.tag, lt.color
			break
		}
	}
	if h.colored && c != nil {
		tag = c.Sprint(tag)
	}
	buf = append(buf, tag...)
	buf = append(buf, ' ')

	buf = r.Time.AppendFormat(buf, "15:04:05")
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	// Attributes, those from WithAttrs first
	first := true
	for _, a := range h.attrs {
		buf = h.appendAttr(buf, "", a, &first)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.group, a, &first)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

// appendAttr writes " key=value", prefixed by " |" for the first attribute.
// Groups are flattened into dotted keys.
func (h *CompactHandler) appendAttr(buf []byte, prefix string, a slog.Attr, first *bool) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = join(prefix, a.Key)
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, prefix, ga, first)
		}
		return buf
	}

	if *first {
		buf = append(buf, " |"...)
		*first = false
	}
	buf = append(buf, ' ')

	// Shorthands for the attributes this tool logs a lot
	switch a.Key {
	case "requestID", "runID":
		if s := a.Value.String(); len(s) > 8 {
			short := "req="
			if a.Key == "runID" {
				short = "run="
			}
			return append(append(buf, short...), s[:8]...)
		}
	case "generation":
		return append(append(buf, "gen="...), a.Value.String()...)
	case "durationMs":
		buf = append(buf, "duration="...)
		buf = append(buf, a.Value.String()...)
		return append(buf, "ms"...)
	case "error":
		buf = append(buf, "error="...)
		return strconv.AppendQuote(buf, fmt.Sprint(a.Value.Any()))
	}

	buf = append(buf, join(prefix, a.Key)...)
	buf = append(buf, '=')

	v := a.Value
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); needsQuoting(s) {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		buf = strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		buf = strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		buf = strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		buf = append(buf, v.Duration().String()...)
	case slog.KindTime:
		buf = v.Time().AppendFormat(buf, time.RFC3339)
	default:
		s := fmt.Sprintf("%v", v.Any())
		if needsQuoting(s) {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	}
	return buf
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '=' {
			return true
		}
	}
	return false
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		// Fold the current group into the key so later groups don't rename it.
		if h.group != "" {
			a = slog.Attr{Key: join(h.group, a.Key), Value: a.Value}
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = join(h.group, name)
	return &c
}
