// Package logging provides the structured-logging convention used across
// the pipeline.
//
// Design principles:
//   - Logging is dependency-injected, never global.
//   - Each component scopes its own logger once at construction time via
//     slog.With("component", "...").
//   - If no logger is supplied, a discard logger is used so components
//     never nil-check their logger.
//
// Global configuration (format, level, destination) belongs only in main().
package logging

import (
	"context"
	"log/slog"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger.
//
//	func New(cfg Config) *Thing {
//	    logger := logging.Default(cfg.Logger).With("component", "thing")
//	    return &Thing{logger: logger}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
