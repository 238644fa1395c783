package logger

import (
	"log"
	"log/slog"
)

// New returns a std *log.Logger that forwards to base at the given level,
// tagged with the component name. Useful for libraries that only accept a
// std logger (sarama, http.Server.ErrorLog).
func New(base *slog.Logger, component string, level slog.Level) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), level)
}
