package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output.
//
// Note: log.Logger is a type alias for *slog.Logger, so this and
// log.NewNop() are interchangeable; prefer log.NewNop() when already
// importing the internal/log package.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
