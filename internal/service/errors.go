// Package service implements the payment-gated access control core:
// turning verified payments into streampasses, enforcing the single
// playback session per pass, and reclaiming sessions whose heartbeat
// has gone silent. Handlers stay thin; every rule lives here or in the
// conditional SQL the repositories run.
package service

import "errors"

// ErrPaymentInvalid means the payment provider rejected the reference
// or returned no usable payload.  Handlers translate this into 402/400.
var ErrPaymentInvalid = errors.New("payment could not be verified")

// ErrAmountMismatch means the verified amount does not equal the event
// price times the recipient count.  The comparison is exact integer
// equality in currency minor units; no rounding tolerance is applied.
var ErrAmountMismatch = errors.New("paid amount does not match event price")

// ErrHolderNotFound means the buyer referenced by the payment has no
// usable profile (missing account or missing email).
var ErrHolderNotFound = errors.New("holder profile not found")

// ErrSessionConflict means the holder already has a recently active
// playback session for the event on another pass.  Clients should wait
// out the active window and retry.
var ErrSessionConflict = errors.New("another playback session is active")

// ErrInvalidSessionToken means a heartbeat or end-session call carried
// a token that does not match the open session, or no session is open.
var ErrInvalidSessionToken = errors.New("invalid session token")
