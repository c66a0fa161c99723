// Package common provides shared constants, errors, and utilities
// used across the vpnswitch application.
package common

import "time"

// CredentialStore defines the interface for credential storage.
// Implementations may use the system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves a secret for a profile.
	Store(profileID, secret string) error
	// Get retrieves the secret for a profile.
	Get(profileID string) (string, error)
	// Delete removes the secret for a profile.
	Delete(profileID string) error
	// Exists reports whether a secret is stored for a profile.
	Exists(profileID string) bool
}

// Notifier defines the interface for desktop notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
	// NotifyError sends a notification marked urgent.
	NotifyError(title, message string) error
}

// UsageRecorder tracks when profiles were last used. The profile
// registry consults it for the last-used sort order; recording failures
// are advisory and must never fail a connect.
type UsageRecorder interface {
	// Touch records a successful connect for the named profile.
	Touch(name string) error
	// LastUsed returns the recorded last-use time, if any.
	LastUsed(name string) (time.Time, bool)
	// Forget drops usage data for a removed profile.
	Forget(name string) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
