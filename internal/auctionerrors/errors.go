package auctionerrors

import "errors"

// Validation errors returned synchronously to the caller; never retried.
var (
	ErrAuctionNotActive    = errors.New("auction not active")
	ErrBidTooLow           = errors.New("bid amount too low")
	ErrInsufficientDeposit = errors.New("insufficient deposit balance")
	ErrReserveNotMet       = errors.New("reserve price not met")
	ErrInvalidBid          = errors.New("invalid bid")
)

// Fraud screening errors. A blocked bid is never recorded as accepted, but
// the attempt is persisted as a fraud alert.
var (
	ErrFraudBlocked     = errors.New("bid blocked by fraud screening")
	ErrVelocityExceeded = errors.New("bid velocity limit exceeded")
)

// Ledger and escrow errors.
var (
	ErrHoldNotFound      = errors.New("deposit hold not found")
	ErrNotConfirmed      = errors.New("escrow not confirmed")
	ErrDisputeWindowOpen = errors.New("dispute window still open")
)

// Store and scheduling errors.
var (
	ErrNotFound = errors.New("entity not found")
	// ErrConcurrentModification surfaces store-level optimistic lock
	// conflicts. Auction operations retry it once internally before
	// returning it to the caller.
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrTimeout                = errors.New("auction operation timed out")
)
