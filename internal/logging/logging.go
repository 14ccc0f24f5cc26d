package logging

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

// Format selects how log records are rendered.
type Format string

const (
	// FormatText renders records for humans, colorized when the output is
	// a terminal.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per record, for watch processes
	// whose output is collected rather than read.
	FormatJSON Format = "json"
)

// ParseFormat maps a --log-format flag value to a Format. Anything other
// than "json" means text.
func ParseFormat(s string) Format {
	if Format(s) == FormatJSON {
		return FormatJSON
	}
	return FormatText
}

// LevelFor maps the CLI verbosity flags to a level: --quiet keeps only
// errors, any number of -v flags enables debug output, default is Info.
func LevelFor(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelError
	case verbosity > 0:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Config describes the logger to build.
type Config struct {
	// Level is the minimum level a record needs to be emitted.
	Level slog.Level
	// Format picks the renderer.
	Format Format
	// Output receives the records, os.Stderr when nil.
	Output io.Writer
}

// New builds a logger from cfg.
func New(cfg Config) *slog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(NewHandler(output, opts))
}

// NewDiscard returns a logger that drops every record. The engine falls
// back to it when constructed without a logger.
func NewDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testWriter routes handler output through t.Log so records show up next
// to the test that produced them.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1] // t.Log adds its own newline
	}
	w.t.Log(msg)
	return len(p), nil
}

// ForTest returns a debug-level text logger writing to t, so engine and
// watcher tests capture backup logs alongside their own output.
func ForTest(t *testing.T) *slog.Logger {
	t.Helper()
	return New(Config{
		Level:  slog.LevelDebug,
		Format: FormatText,
		Output: &testWriter{t: t},
	})
}
