// Package apperrors defines the sentinel error kinds from spec.md §7,
// shared across the credential store, STS client, and authenticator so
// callers can classify failures with errors.Is.
package apperrors

import "errors"

var (
	// ErrConfig marks a fatal, missing/invalid configuration error.
	ErrConfig = errors.New("config error")

	// ErrCredentialExpired marks an install() call with a non-future expiry.
	ErrCredentialExpired = errors.New("credential already expired")

	// ErrStsTransport marks an HTTPS failure talking to STS (connect, TLS, I/O).
	ErrStsTransport = errors.New("sts transport error")

	// ErrStsProtocol marks a well-formed HTTP response whose body is an
	// STS ErrorResponse, or is missing required AssumeRole result fields.
	ErrStsProtocol = errors.New("sts protocol error")

	// ErrNoCredentialsAvailable marks snapshot() called before any
	// successful install, or STS mode active without a session token.
	ErrNoCredentialsAvailable = errors.New("no credentials available")

	// ErrAuthRejected marks a non-empty response from the broker.
	ErrAuthRejected = errors.New("authentication rejected by broker")
)
