// Package errors defines the error kinds recorded for battle log files and
// utilities for sanitizing errors to prevent credential leakage.
package errors

import (
	"fmt"
	"regexp"
	"strings"
)

// Credential patterns to redact from error and log messages
var credentialPatterns = []*regexp.Regexp{
	// Telegram Bot API URL: https://api.telegram.org/bot123456789:ABC.../sendMessage
	regexp.MustCompile(`bot\d{6,12}:[a-zA-Z0-9_-]{20,}`),
	// Telegram bot token: 123456789:ABC-DEF... (token part is typically 35-36 chars)
	regexp.MustCompile(`\d{8,12}:[a-zA-Z0-9_-]{30,}`),
	// Bearer tokens in headers
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]+`),
	// Authorization headers (matches "authorization: value" or "authorization value")
	regexp.MustCompile(`(?i)authorization[:\s]+[^\s]+`),
	// API key in URLs
	regexp.MustCompile(`(?i)api[_-]?key[=:][^\s&"']+`),
}

const redactedPlaceholder = "[REDACTED]"

// SanitizeError wraps an error, redacting any credentials that may appear in the error message.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	// Nothing to redact, keep the original chain intact
	if !ContainsCredentials(err.Error()) {
		return err
	}

	return &sanitizedError{
		original:  err,
		sanitized: SanitizeString(err.Error()),
	}
}

// SanitizeString redacts credential patterns from a string.
func SanitizeString(s string) string {
	result := s
	for _, pattern := range credentialPatterns {
		result = pattern.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

// Wrapf wraps an error with a formatted message, sanitizing any credentials in the underlying error.
// Use it instead of fmt.Errorf("...: %w", err) for errors coming from the Telegram client.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, SanitizeError(err))
}

// sanitizedError wraps an error with a sanitized message.
type sanitizedError struct {
	original  error
	sanitized string
}

func (e *sanitizedError) Error() string {
	return e.sanitized
}

func (e *sanitizedError) Unwrap() error {
	return e.original
}

// ContainsCredentials checks if a string appears to contain credentials.
func ContainsCredentials(s string) bool {
	for _, pattern := range credentialPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// MaskCredential partially masks a credential string for safe display.
// Example: "123456789:ABCdef..." -> "123456789:***..."
func MaskCredential(s string) string {
	if len(s) < 10 {
		return strings.Repeat("*", len(s))
	}

	// Telegram bot token format (number:token)
	if idx := strings.Index(s, ":"); idx > 0 && idx <= 12 {
		return s[:idx] + ":***..."
	}

	return s[:4] + "***..."
}
