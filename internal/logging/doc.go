// Package logging configures structured logging for keepsake.
//
// It builds log/slog loggers from a small Config, with a TTY-optimized
// colorized text handler for interactive use and a JSON handler for log
// files and pipelines. ForTest routes log output through testing.T so
// engine and watcher tests capture it.
package logging
