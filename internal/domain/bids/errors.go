package bids

import "errors"

// Validation errors
var (
	ErrInvalidAmount   = errors.New("bid amount must be positive")
	ErrInvalidQuantity = errors.New("bid quantity must be positive")
	ErrInvalidAction   = errors.New("unknown action")
	ErrSelfBid         = errors.New("buyer cannot bid on their own listing")
)

// State and authorization errors
var (
	ErrInvalidTransition   = errors.New("action is not valid for the current bid status")
	ErrInvalidCounterOffer = errors.New("counter offer must improve on the current effective amount")
	ErrUnauthorized        = errors.New("actor may not perform this action on the bid")
)

// Conflict errors
var (
	ErrDuplicateActiveBid     = errors.New("an active bid already exists for this buyer and product")
	ErrConcurrentModification = errors.New("bid was modified concurrently, re-read and retry")
)

// Store errors. ErrVersionConflict never escapes the service layer: the
// service retries and surfaces ErrConcurrentModification on exhaustion.
var (
	ErrBidNotFound     = errors.New("bid not found")
	ErrVersionConflict = errors.New("stored bid version does not match expected version")
)
