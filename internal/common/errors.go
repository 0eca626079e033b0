// Package common defines shared constants and sentinel errors used across
// boltboard components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Session errors. ErrUnauthenticated is the sole authorization
	// failure in the system: there is no session for the presented token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// Store-level errors.
	ErrNotFound = errors.New("not found")

	// Request validation errors (missing required field).
	ErrValidation = errors.New("validation error")

	// ErrHandshake wraps the remote error of whichever connection probe
	// failed. No session survives a handshake failure.
	ErrHandshake = errors.New("node handshake failed")

	// ErrPaymentNotSettled is recoverable: the caller may re-present the
	// same hash once the invoice has been paid.
	ErrPaymentNotSettled = errors.New("invoice has not been paid")

	// Authorship verification errors.
	ErrSelfVerify       = errors.New("cannot verify own posts")
	ErrInvalidSignature = errors.New("invalid signature")
)
