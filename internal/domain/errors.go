package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidSubject        = errors.New("invalid subject")
	ErrInvalidTier           = errors.New("invalid plan tier")
	ErrDuplicateOperation    = errors.New("duplicate operation")
	ErrGardenFull            = errors.New("garden capacity reached")
	ErrSubscriptionCancelled = errors.New("subscription already cancelled")

	// ErrTransientStorage marks counter or subscription store failures. Scan
	// decisions fail closed on it.
	ErrTransientStorage = errors.New("storage temporarily unavailable")
	// ErrRateLimited is returned when the recognition provider itself is saturated.
	// It never consumes user quota.
	ErrRateLimited = errors.New("identification provider rate limited")
	// ErrServiceUnavailable covers provider failures unrelated to quota.
	ErrServiceUnavailable = errors.New("identification provider unavailable")
	// ErrIdentificationTimeout is returned when the provider call exceeds its deadline.
	ErrIdentificationTimeout = errors.New("identification timed out")
	// ErrConfiguration marks missing secrets or invalid tier tables.
	ErrConfiguration = errors.New("configuration error")
)
