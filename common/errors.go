// Package common provides shared constants, errors, and utilities
// used across the vpnswitch application.
package common

import "errors"

// Sentinel errors for profile and connection operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Profile registry errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrDuplicateName   = errors.New("profile name already exists")
	ErrDuplicateAlias  = errors.New("alias already in use")
	ErrInvalidProfile  = errors.New("invalid profile data")

	// Connection errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrTimeout          = errors.New("operation timed out")
	ErrCancelled        = errors.New("operation cancelled")
	ErrSuperseded       = errors.New("operation superseded by a newer request")
	ErrQueueBusy        = errors.New("request queue is full")

	// Input errors (CLI arguments, import data).
	ErrInvalidInput = errors.New("invalid input")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
	ErrEncryption          = errors.New("encryption error")
	ErrDecryption          = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
