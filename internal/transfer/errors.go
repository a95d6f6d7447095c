package transfer

import "errors"

// Sentinel errors for the transfer package.
var (
	// ErrValidation indicates the transferred bytes are not a valid
	// document (error page, truncated body, wrong format). It triggers
	// fallback to the next mirror.
	ErrValidation = errors.New("transferred content failed validation")

	// ErrAllMirrorsFailed indicates every mirror was tried and none
	// produced a valid document.
	ErrAllMirrorsFailed = errors.New("all mirrors failed")
)
