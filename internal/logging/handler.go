package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Handler implements slog.Handler for TTY-optimized text output.
// Color is enabled only when the writer is a terminal that supports it.
type Handler struct {
	opts  slog.HandlerOptions
	out   io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
	group string

	useColor   bool
	timeColor  *color.Color
	levelColor map[slog.Level]*color.Color
	keyColor   *color.Color
}

// NewHandler creates a new TTY-optimized text handler.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	h := &Handler{
		opts: *opts,
		out:  out,
		mu:   &sync.Mutex{},
	}

	if SupportsColor(out) {
		h.useColor = true
		h.timeColor = color.New(color.FgHiBlack)
		h.keyColor = color.New(color.FgCyan)
		h.levelColor = map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgGreen),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		}
	}

	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle writes the record as a single line: time, level, message, attrs.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder

	if !r.Time.IsZero() {
		t := r.Time.Format(time.Kitchen)
		if h.timeColor != nil {
			t = h.timeColor.Sprint(t)
		}
		b.WriteString(t)
		b.WriteByte(' ')
	}

	levelStr := r.Level.String()
	if h.useColor {
		if c := h.colorFor(r.Level); c != nil {
			levelStr = c.Sprint(levelStr)
		}
	}
	fmt.Fprintf(&b, "%-5s %s", levelStr, r.Message)

	for _, a := range h.attrs {
		h.appendAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a)
		return true
	})

	b.WriteByte('\n')
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) colorFor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return h.levelColor[slog.LevelError]
	case level >= slog.LevelWarn:
		return h.levelColor[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return h.levelColor[slog.LevelInfo]
	default:
		return h.levelColor[slog.LevelDebug]
	}
}

func (h *Handler) appendAttr(b *strings.Builder, a slog.Attr) {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	if h.keyColor != nil {
		key = h.keyColor.Sprint(key)
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := *h
	newH.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newH.attrs = append(newH.attrs, h.attrs...)
	newH.attrs = append(newH.attrs, attrs...)
	return &newH
}

// WithGroup returns a new Handler that prefixes attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newH := *h
	if h.group != "" {
		newH.group = h.group + "." + name
	} else {
		newH.group = name
	}
	return &newH
}

// IsTTY returns true if the given writer is a terminal.
// It supports os.File and any wrapper that provides an Fd() method.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// SupportsColor returns true if the given writer supports ANSI color codes.
// NO_COLOR and TERM=dumb disable color regardless of the writer.
func SupportsColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return IsTTY(w)
}
