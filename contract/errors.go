package contract

import "errors"

// Error kinds surfaced to callers. Every failed transaction wraps exactly one
// of these so callers can classify failures with errors.Is through the wrap
// chain. A returned error aborts the whole transaction: no state written by
// the failing call is ever committed.
var (
	// ErrItemNotFound: lookup or transition on an unknown UPC.
	ErrItemNotFound = errors.New("item not found")

	// ErrDuplicateProductCode: harvest attempted with a UPC already in use.
	ErrDuplicateProductCode = errors.New("duplicate product code")

	// ErrUnauthorized: caller lacks the role required for the attempted
	// transition or administrative action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState: transition attempted while the item is not in the
	// required predecessor state.
	ErrInvalidState = errors.New("invalid item state")

	// ErrNotOwner: transition attempted by a caller who is not the item's
	// current owner where ownership is required.
	ErrNotOwner = errors.New("caller is not the item owner")

	// ErrInvalidPrice: listing attempted with a zero price.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInsufficientFunds: payment below the listed price, or buyer balance
	// below the tendered payment.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
