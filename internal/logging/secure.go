// Package logging provides secure logging utilities with credential sanitization.
package logging

import (
	"time"

	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/olegiv/battlelog-tools-go/pkg/logger"
	"github.com/rs/zerolog"
)

// SecureLogger wraps a logger.Logger and sanitizes all string values so that
// the Telegram bot token never ends up in a log file.
type SecureLogger struct {
	log *logger.Logger
}

// NewSecure creates a new SecureLogger wrapper around the provided logger.
func NewSecure(log *logger.Logger) *SecureLogger {
	return &SecureLogger{log: log}
}

// Nop returns a SecureLogger that discards everything. Used by tests.
func Nop() *SecureLogger {
	return &SecureLogger{log: logger.Nop()}
}

// SecureEvent wraps a zerolog Event to provide secure string methods.
type SecureEvent struct {
	event *zerolog.Event
}

// With returns a child logger that adds key=val to every event.
func (s *SecureLogger) With(key, val string) *SecureLogger {
	return &SecureLogger{log: s.log.WithField(key, internalerrors.SanitizeString(val))}
}

// Info starts a new info-level log event.
func (s *SecureLogger) Info() *SecureEvent {
	return &SecureEvent{event: s.log.Info()}
}

// Debug starts a new debug-level log event.
func (s *SecureLogger) Debug() *SecureEvent {
	return &SecureEvent{event: s.log.Debug()}
}

// Warn starts a new warn-level log event.
func (s *SecureLogger) Warn() *SecureEvent {
	return &SecureEvent{event: s.log.Warn()}
}

// Error starts a new error-level log event.
func (s *SecureLogger) Error() *SecureEvent {
	return &SecureEvent{event: s.log.Error()}
}

// Close closes the underlying logger.
func (s *SecureLogger) Close() error {
	return s.log.Close()
}

// Str adds a sanitized string field to the log event.
func (e *SecureEvent) Str(key, val string) *SecureEvent {
	e.event.Str(key, internalerrors.SanitizeString(val))
	return e
}

// Strs adds a sanitized string slice field to the log event.
func (e *SecureEvent) Strs(key string, vals []string) *SecureEvent {
	sanitized := make([]string, len(vals))
	for i, v := range vals {
		sanitized[i] = internalerrors.SanitizeString(v)
	}
	e.event.Strs(key, sanitized)
	return e
}

// Int adds an integer field to the log event.
func (e *SecureEvent) Int(key string, val int) *SecureEvent {
	e.event.Int(key, val)
	return e
}

// Int64 adds an int64 field to the log event.
func (e *SecureEvent) Int64(key string, val int64) *SecureEvent {
	e.event.Int64(key, val)
	return e
}

// Float64 adds a float64 field to the log event.
func (e *SecureEvent) Float64(key string, val float64) *SecureEvent {
	e.event.Float64(key, val)
	return e
}

// Bool adds a boolean field to the log event.
func (e *SecureEvent) Bool(key string, val bool) *SecureEvent {
	e.event.Bool(key, val)
	return e
}

// Dur adds a duration field to the log event.
func (e *SecureEvent) Dur(key string, val time.Duration) *SecureEvent {
	e.event.Dur(key, val)
	return e
}

// Err adds a sanitized error field to the log event.
func (e *SecureEvent) Err(err error) *SecureEvent {
	if err != nil {
		e.event.Err(internalerrors.SanitizeError(err))
	}
	return e
}

// Msg sends the log event with a sanitized message.
func (e *SecureEvent) Msg(msg string) {
	e.event.Msg(internalerrors.SanitizeString(msg))
}
