package ledger

import "errors"

var (
	// Minting errors
	ErrNotAnArtist    = errors.New("ledger: caller is not an artist")
	ErrInvalidRoyalty = errors.New("ledger: royalty exceeds 10000 bips")
	ErrZeroAddress    = errors.New("ledger: zero address")
	ErrInvalidCount   = errors.New("ledger: batch count must be positive")

	// Transfer errors
	ErrNotAuthorized = errors.New("ledger: caller may not move this ticket")
	ErrWrongOwner    = errors.New("ledger: from is not the ticket owner")

	// Query errors
	ErrUnknownToken = errors.New("ledger: unknown ticket id")
)
