package service

import "errors"

// Error taxonomy surfaced by the services. Handlers map these to status
// codes; anything else is an internal failure.
var (
	ErrNotFound            = errors.New("not found")
	ErrExhausted           = errors.New("no available slots for the requested class")
	ErrConflict            = errors.New("conflicting state")
	ErrInvalidState        = errors.New("operation not valid for the reservation's current state")
	ErrUnauthorized        = errors.New("not allowed for this user")
	ErrInvalidSpotClass    = errors.New("spot class must be standard or ev")
	ErrGeocodingFailed     = errors.New("address could not be geocoded")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	// ErrTransactionAborted means a concurrent update won; the caller may retry.
	ErrTransactionAborted = errors.New("transaction aborted by a concurrent update, retry")
)

var ErrInvalidCredentials = errors.New("invalid username or password")
var ErrTokenInvalid = errors.New("token is invalid or expired")
