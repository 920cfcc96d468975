package shared

import (
	"errors"
	"fmt"
)

// Domain-specific errors
var (
	// Listing errors
	ErrListingNotFound         = errors.New("listing not found")
	ErrListingNotActive        = errors.New("listing is not active")
	ErrWrongListingType        = errors.New("listing does not accept bids")
	ErrInvalidStatusTransition = errors.New("invalid status transition for listing type")
	ErrNotSeller               = errors.New("only the seller can change the listing status")

	// Auction errors
	ErrAuctionExpired = errors.New("auction bidding window has elapsed")

	// Bid errors
	ErrNoBidsFound = errors.New("no bids found")

	// Identity errors
	ErrUnauthenticated = errors.New("no authenticated user")

	// Database errors
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrListingIDRequired   = errors.New("listing_id is required")
	ErrInvalidAmount       = errors.New("valid amount is required")
	ErrUnknownMessageType  = errors.New("unknown message type")

	// Broadcasting errors
	ErrBroadcastFailed   = errors.New("broadcast failed")
	ErrUserNotSubscribed = errors.New("user not subscribed to listing")

	// WebSocket handler specific errors
	ErrClientEventChannelNotFound = errors.New("client event channel not found")
	ErrInvalidListingIDFormat     = errors.New("invalid listing_id format")
)

// ValidationError reports the first creation-time violation detected. The
// caller is expected to fix the named field and resubmit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// BidTooLowError is returned when a bid does not clear the minimum increment.
// It carries the minimum acceptable amount so the caller can retry with a
// corrected bid immediately.
type BidTooLowError struct {
	MinimumAcceptable float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: minimum acceptable amount is %.2f", e.MinimumAcceptable)
}
