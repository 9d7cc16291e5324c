package market

import "errors"

var (
	// Listing errors
	ErrInvalidPrice = errors.New("market: price must be positive")
	ErrNotOwner     = errors.New("market: caller does not own the ticket")
	ErrNotListed    = errors.New("market: no active listing")
	ErrNotSeller    = errors.New("market: caller is not the seller")

	// Settlement errors
	ErrInsufficientPayment = errors.New("market: payment below listing price")
	ErrOverPayment         = errors.New("market: payment above listing price")
	ErrNotAuthorized       = errors.New("market: market is not an approved operator for the seller")

	// Collection errors
	ErrUnknownCollection = errors.New("market: unknown collection")
	ErrCollectionExists  = errors.New("market: collection already registered")
)
