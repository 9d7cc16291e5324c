// Package market runs fixed-price resale of tickets. Sellers list tickets
// they own, buyers pay the exact asking price, and settlement routes the
// creator's royalty before the seller's share. A listing moves through
// Unlisted -> Listed -> (Sold | Cancelled) -> Unlisted with no intermediate
// states.
package market

import (
	"context"
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ticketry/account"
	"github.com/pflow-xyz/go-ticketry/bank"
	"github.com/pflow-xyz/go-ticketry/eventsource"
	"github.com/pflow-xyz/go-ticketry/ledger"
)

// Listing is an active sell offer for one ticket at a fixed price.
type Listing struct {
	Collection string
	TicketID   uint64
	Seller     account.Address
	Price      *uint256.Int
}

// Sale is the result of a completed purchase.
type Sale struct {
	Collection       string
	TicketID         uint64
	Buyer            account.Address
	Seller           account.Address
	Price            *uint256.Int
	RoyaltyRecipient account.Address
	RoyaltyAmount    *uint256.Int
	SellerShare      *uint256.Int
}

// Event types recorded by the market.
const (
	EventTicketListed     = "TicketListed"
	EventListingCancelled = "ListingCancelled"
	EventTicketBought     = "TicketBought"

	// EventSaleReverted marks a recorded sale whose settlement could not be
	// applied and was compensated. The listing and all balances are as they
	// were before the matching TicketBought event.
	EventSaleReverted = "SaleReverted"
)

// ListingData is the payload of TicketListed and ListingCancelled events.
type ListingData struct {
	Seller     account.Address `json:"seller"`
	Collection string          `json:"collection"`
	TicketID   uint64          `json:"ticketId"`
	Price      *uint256.Int    `json:"price,omitempty"`
}

// SaleData is the payload of TicketBought events.
type SaleData struct {
	Buyer            account.Address `json:"buyer"`
	Seller           account.Address `json:"seller"`
	Collection       string          `json:"collection"`
	TicketID         uint64          `json:"ticketId"`
	Price            *uint256.Int    `json:"price"`
	RoyaltyRecipient account.Address `json:"royaltyRecipient"`
	RoyaltyAmount    *uint256.Int    `json:"royaltyAmount"`
	SellerShare      *uint256.Int    `json:"sellerShare"`
}

type listingKey struct {
	collection string
	ticketID   uint64
}

// Market holds listing state for any number of registered collections. All
// mutating operations are serialized by an internal mutex; queries take a
// read lock.
type Market struct {
	mu       sync.RWMutex
	operator account.Address
	bank     *bank.Bank
	ledgers  map[string]*ledger.Ledger
	listings map[listingKey]*Listing
	journal  *eventsource.Journal
}

// StreamID is the market's event stream.
const StreamID = "market"

// New creates a market settling payments through the given bank. The
// operator address is the market's own identity: sellers grant it operator
// approval on the ledger so settlement can move their tickets.
func New(operator account.Address, b *bank.Bank, store eventsource.Store) *Market {
	return &Market{
		operator: operator,
		bank:     b,
		ledgers:  make(map[string]*ledger.Ledger),
		listings: make(map[listingKey]*Listing),
		journal:  eventsource.NewJournal(store, StreamID),
	}
}

// Operator returns the market's operator identity.
func (m *Market) Operator() account.Address {
	return m.operator
}

// RegisterCollection makes a ledger tradable on this market under its
// symbol.
func (m *Market) RegisterCollection(l *ledger.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ledgers[l.Symbol()]; ok {
		return ErrCollectionExists
	}
	m.ledgers[l.Symbol()] = l
	return nil
}

// Collection returns the registered ledger for a symbol.
func (m *Market) Collection(symbol string) (*ledger.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.ledgers[symbol]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return l, nil
}

// ListTicket offers a ticket for sale at a fixed price. The caller must own
// the ticket and the price must be positive. Listing an already-listed
// ticket replaces the prior offer.
func (m *Market) ListTicket(ctx context.Context, caller account.Address, collection string, ticketID uint64, price *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if price == nil || price.IsZero() {
		return ErrInvalidPrice
	}
	l, ok := m.ledgers[collection]
	if !ok {
		return ErrUnknownCollection
	}
	owner, err := l.OwnerOf(ticketID)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotOwner
	}

	price = new(uint256.Int).Set(price)
	if _, err := m.journal.Record(ctx, EventTicketListed, ListingData{
		Seller:     caller,
		Collection: collection,
		TicketID:   ticketID,
		Price:      price,
	}); err != nil {
		return err
	}

	m.listings[listingKey{collection, ticketID}] = &Listing{
		Collection: collection,
		TicketID:   ticketID,
		Seller:     caller,
		Price:      price,
	}
	return nil
}

// CancelListing withdraws an active offer. Only the seller that created the
// listing may cancel it.
func (m *Market) CancelListing(ctx context.Context, caller account.Address, collection string, ticketID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := listingKey{collection, ticketID}
	listing, ok := m.listings[key]
	if !ok {
		return ErrNotListed
	}
	if listing.Seller != caller {
		return ErrNotSeller
	}

	if _, err := m.journal.Record(ctx, EventListingCancelled, ListingData{
		Seller:     caller,
		Collection: collection,
		TicketID:   ticketID,
	}); err != nil {
		return err
	}

	delete(m.listings, key)
	return nil
}

// BuyTicket settles an active listing. The payment must equal the listing
// price exactly. Settlement moves the ticket to the buyer, pays the royalty
// to the creator's recipient first, pays the remainder to the seller, and
// removes the listing, all as one atomic unit: a failure at any step leaves
// no partial effect behind.
//
// Staging order: the payment is first moved into the market's own account,
// then the sale is journaled, then the ticket moves and the staged funds
// are paid out. The operator balance is touched only here, under the market
// mutex, so once the sale event is recorded the payout cannot fail; the two
// steps that can fail each undo the staged payment before returning.
func (m *Market) BuyTicket(ctx context.Context, caller account.Address, collection string, ticketID uint64, payment *uint256.Int) (*Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := listingKey{collection, ticketID}
	listing, ok := m.listings[key]
	if !ok {
		return nil, ErrNotListed
	}
	if payment == nil || payment.Lt(listing.Price) {
		return nil, ErrInsufficientPayment
	}
	if payment.Gt(listing.Price) {
		return nil, ErrOverPayment
	}

	l := m.ledgers[collection]
	owner, err := l.OwnerOf(ticketID)
	if err != nil {
		return nil, err
	}
	if owner != listing.Seller {
		// The seller lost the ticket since listing it; the offer is stale.
		return nil, ErrNotOwner
	}
	if !l.IsApprovedForAll(listing.Seller, m.operator) {
		return nil, ErrNotAuthorized
	}

	royaltyRecipient, royaltyAmount, err := l.RoyaltyInfo(ticketID, listing.Price)
	if err != nil {
		return nil, err
	}
	// The seller's share is the remainder, so the two shares always sum to
	// the price.
	sellerShare := new(uint256.Int).Sub(listing.Price, royaltyAmount)

	// Stage the payment. This is the funds check: it fails with
	// ErrInsufficientFunds before anything else has changed.
	if err := m.bank.Transfer(caller, m.operator, listing.Price); err != nil {
		return nil, err
	}

	sale := &Sale{
		Collection:       collection,
		TicketID:         ticketID,
		Buyer:            caller,
		Seller:           listing.Seller,
		Price:            listing.Price,
		RoyaltyRecipient: royaltyRecipient,
		RoyaltyAmount:    royaltyAmount,
		SellerShare:      sellerShare,
	}
	data := SaleData{
		Buyer:            sale.Buyer,
		Seller:           sale.Seller,
		Collection:       collection,
		TicketID:         ticketID,
		Price:            sale.Price,
		RoyaltyRecipient: sale.RoyaltyRecipient,
		RoyaltyAmount:    sale.RoyaltyAmount,
		SellerShare:      sale.SellerShare,
	}

	// Journal before any ownership or payout change.
	if _, err := m.journal.Record(ctx, EventTicketBought, data); err != nil {
		return nil, m.refund(caller, listing.Price, err)
	}

	if err := l.Transfer(ctx, m.operator, listing.Seller, caller, ticketID); err != nil {
		// The recorded sale did not settle; mark it so the audit trail
		// explains the reversal, then undo the staged payment.
		if _, rerr := m.journal.Record(ctx, EventSaleReverted, data); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, m.refund(caller, listing.Price, err)
	}

	// Pay out of the staged funds. The operator account holds at least the
	// full price and nothing outside this mutex debits it, so the
	// disbursement cannot fail here.
	if err := m.bank.Disburse(m.operator, []bank.Payout{
		{To: royaltyRecipient, Amount: royaltyAmount},
		{To: listing.Seller, Amount: sellerShare},
	}); err != nil {
		return nil, err
	}

	delete(m.listings, key)
	return sale, nil
}

// refund returns a staged payment to the buyer and joins any refund failure
// onto the settlement error so a torn state is never silent.
func (m *Market) refund(buyer account.Address, amount *uint256.Int, cause error) error {
	if err := m.bank.Transfer(m.operator, buyer, amount); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Listing returns the active listing for a ticket, or ErrNotListed.
func (m *Market) Listing(collection string, ticketID uint64) (*Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	listing, ok := m.listings[listingKey{collection, ticketID}]
	if !ok {
		return nil, ErrNotListed
	}
	out := *listing
	out.Price = new(uint256.Int).Set(listing.Price)
	return &out, nil
}

// Listings returns every active listing, in no particular order.
func (m *Market) Listings() []*Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Listing, 0, len(m.listings))
	for _, listing := range m.listings {
		copied := *listing
		copied.Price = new(uint256.Int).Set(listing.Price)
		out = append(out, &copied)
	}
	return out
}

// Events returns the market's event history.
func (m *Market) Events(ctx context.Context) ([]*eventsource.Event, error) {
	return m.journal.Events(ctx)
}
