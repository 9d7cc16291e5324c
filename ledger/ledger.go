// Package ledger tracks ticket ownership for one collection. Artists mint
// tickets singly or in batches, owners and their delegates transfer them,
// and every ticket carries royalty terms fixed at mint time.
package ledger

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ticketry/account"
	"github.com/pflow-xyz/go-ticketry/eventsource"
	"github.com/pflow-xyz/go-ticketry/registry"
)

// MaxRoyaltyBips is the denominator of royalty fractions: 10000 bips = 100%.
const MaxRoyaltyBips = 10000

// Ticket is the stored state of one issued ticket.
type Ticket struct {
	ID               uint64
	Owner            account.Address
	Creator          account.Address
	URI              string
	RoyaltyRecipient account.Address
	RoyaltyBips      uint16
}

// Event types recorded by the ledger.
const (
	EventTransfer       = "Transfer"
	EventApproval       = "Approval"
	EventApprovalForAll = "ApprovalForAll"
)

// TransferData is the payload of Transfer events. Mints record the zero
// address as From and carry the ticket's full terms so the ledger can be
// rebuilt from its stream.
type TransferData struct {
	From             account.Address `json:"from"`
	To               account.Address `json:"to"`
	TicketID         uint64          `json:"ticketId"`
	URI              string          `json:"uri,omitempty"`
	Creator          account.Address `json:"creator,omitempty"`
	RoyaltyRecipient account.Address `json:"royaltyRecipient,omitempty"`
	RoyaltyBips      uint16          `json:"royaltyBips,omitempty"`
}

// ApprovalData is the payload of Approval events.
type ApprovalData struct {
	Owner    account.Address `json:"owner"`
	Approved account.Address `json:"approved"`
	TicketID uint64          `json:"ticketId"`
}

// ApprovalForAllData is the payload of ApprovalForAll events.
type ApprovalForAllData struct {
	Owner    account.Address `json:"owner"`
	Operator account.Address `json:"operator"`
	Approved bool            `json:"approved"`
}

// Ledger is one ticket collection. All mutating operations are serialized by
// an internal mutex; queries take a read lock.
type Ledger struct {
	mu       sync.RWMutex
	name     string
	symbol   string
	registry *registry.Registry
	journal  *eventsource.Journal

	tickets   map[uint64]*Ticket
	balances  map[account.Address]int
	operators map[account.Address]map[account.Address]bool
	approved  map[uint64]account.Address
	nextID    uint64
}

// New creates a ledger for one collection. Ticket IDs start at 1. Events are
// journaled to a stream named after the symbol.
func New(name, symbol string, reg *registry.Registry, store eventsource.Store) *Ledger {
	return &Ledger{
		name:      name,
		symbol:    symbol,
		registry:  reg,
		journal:   eventsource.NewJournal(store, "ledger:"+symbol),
		tickets:   make(map[uint64]*Ticket),
		balances:  make(map[account.Address]int),
		operators: make(map[account.Address]map[account.Address]bool),
		approved:  make(map[uint64]account.Address),
		nextID:    1,
	}
}

// Load creates a ledger and rebuilds its state by replaying the
// collection's stream from the store. Use it to recover after a restart; on
// a fresh store it is equivalent to New.
func Load(ctx context.Context, name, symbol string, reg *registry.Registry, store eventsource.Store) (*Ledger, error) {
	l := New(name, symbol, reg, store)

	_, err := eventsource.Replay(ctx, store, "ledger:"+symbol, func(e *eventsource.Event) error {
		switch e.Type {
		case EventTransfer:
			var data TransferData
			if err := e.Decode(&data); err != nil {
				return err
			}
			if data.From.IsZero() {
				l.tickets[data.TicketID] = &Ticket{
					ID:               data.TicketID,
					Owner:            data.To,
					Creator:          data.Creator,
					URI:              data.URI,
					RoyaltyRecipient: data.RoyaltyRecipient,
					RoyaltyBips:      data.RoyaltyBips,
				}
				if data.TicketID >= l.nextID {
					l.nextID = data.TicketID + 1
				}
			} else {
				t := l.tickets[data.TicketID]
				t.Owner = data.To
				delete(l.approved, data.TicketID)
				l.balances[data.From]--
			}
			l.balances[data.To]++
		case EventApproval:
			var data ApprovalData
			if err := e.Decode(&data); err != nil {
				return err
			}
			if data.Approved.IsZero() {
				delete(l.approved, data.TicketID)
			} else {
				l.approved[data.TicketID] = data.Approved
			}
		case EventApprovalForAll:
			var data ApprovalForAllData
			if err := e.Decode(&data); err != nil {
				return err
			}
			if data.Approved {
				if l.operators[data.Owner] == nil {
					l.operators[data.Owner] = make(map[account.Address]bool)
				}
				l.operators[data.Owner][data.Operator] = true
			} else {
				delete(l.operators[data.Owner], data.Operator)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Name returns the collection name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the collection symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Mint issues one ticket to the recipient. The caller must hold the artist
// role; the royalty recipient and rate are fixed for the ticket's lifetime.
func (l *Ledger) Mint(ctx context.Context, caller, to account.Address, uri string, royaltyRecipient account.Address, royaltyBips uint16) (uint64, error) {
	ids, err := l.BatchMint(ctx, caller, to, 1, uri, royaltyRecipient, royaltyBips)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// BatchMint issues count tickets to the recipient, all sharing the same URI
// and royalty terms. The batch is atomic: either every ticket is issued with
// consecutive IDs, or none is.
func (l *Ledger) BatchMint(ctx context.Context, caller, to account.Address, count int, uri string, royaltyRecipient account.Address, royaltyBips uint16) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count <= 0 {
		return nil, ErrInvalidCount
	}
	if to.IsZero() {
		return nil, ErrZeroAddress
	}
	if !l.registry.IsArtist(caller) {
		return nil, ErrNotAnArtist
	}
	if royaltyBips > MaxRoyaltyBips {
		return nil, ErrInvalidRoyalty
	}
	if royaltyRecipient.IsZero() {
		return nil, ErrZeroAddress
	}

	ids := make([]uint64, count)
	for i := range ids {
		ids[i] = l.nextID + uint64(i)
	}

	entries := make([]eventsource.Entry, count)
	for i, id := range ids {
		entries[i] = eventsource.Entry{Type: EventTransfer, Data: TransferData{
			From:             account.ZeroAddress,
			To:               to,
			TicketID:         id,
			URI:              uri,
			Creator:          caller,
			RoyaltyRecipient: royaltyRecipient,
			RoyaltyBips:      royaltyBips,
		}}
	}
	if _, err := l.journal.RecordAll(ctx, entries); err != nil {
		return nil, err
	}

	for _, id := range ids {
		l.tickets[id] = &Ticket{
			ID:               id,
			Owner:            to,
			Creator:          caller,
			URI:              uri,
			RoyaltyRecipient: royaltyRecipient,
			RoyaltyBips:      royaltyBips,
		}
	}
	l.balances[to] += count
	l.nextID += uint64(count)
	return ids, nil
}

// Transfer moves a ticket from its owner to another account. The caller must
// be the owner, an operator approved for all of the owner's tickets, or the
// account approved for this specific ticket. Any single-ticket approval is
// cleared by the transfer.
func (l *Ledger) Transfer(ctx context.Context, caller, from, to account.Address, ticketID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if to.IsZero() {
		return ErrZeroAddress
	}
	t, ok := l.tickets[ticketID]
	if !ok {
		return ErrUnknownToken
	}
	if t.Owner != from {
		return ErrWrongOwner
	}
	if caller != t.Owner && !l.operators[t.Owner][caller] && l.approved[ticketID] != caller {
		return ErrNotAuthorized
	}

	if _, err := l.journal.Record(ctx, EventTransfer, TransferData{
		From:     from,
		To:       to,
		TicketID: ticketID,
	}); err != nil {
		return err
	}

	delete(l.approved, ticketID)
	t.Owner = to
	l.balances[from]--
	l.balances[to]++
	return nil
}

// Approve grants one account the right to transfer one specific ticket. Only
// the owner or one of its operators may call it. Approving the zero address
// clears any prior approval.
func (l *Ledger) Approve(ctx context.Context, caller, spender account.Address, ticketID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tickets[ticketID]
	if !ok {
		return ErrUnknownToken
	}
	if caller != t.Owner && !l.operators[t.Owner][caller] {
		return ErrNotAuthorized
	}

	if _, err := l.journal.Record(ctx, EventApproval, ApprovalData{
		Owner:    t.Owner,
		Approved: spender,
		TicketID: ticketID,
	}); err != nil {
		return err
	}

	if spender.IsZero() {
		delete(l.approved, ticketID)
	} else {
		l.approved[ticketID] = spender
	}
	return nil
}

// ApprovedFor returns the account approved for one specific ticket, or the
// zero address when none is.
func (l *Ledger) ApprovedFor(ticketID uint64) (account.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.tickets[ticketID]; !ok {
		return account.ZeroAddress, ErrUnknownToken
	}
	return l.approved[ticketID], nil
}

// SetApprovalForAll grants or revokes an operator's right to transfer every
// ticket the caller owns, now and in the future.
func (l *Ledger) SetApprovalForAll(ctx context.Context, caller, operator account.Address, approved bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if operator.IsZero() {
		return ErrZeroAddress
	}

	if _, err := l.journal.Record(ctx, EventApprovalForAll, ApprovalForAllData{
		Owner:    caller,
		Operator: operator,
		Approved: approved,
	}); err != nil {
		return err
	}

	if approved {
		if l.operators[caller] == nil {
			l.operators[caller] = make(map[account.Address]bool)
		}
		l.operators[caller][operator] = true
	} else {
		delete(l.operators[caller], operator)
	}
	return nil
}

// IsApprovedForAll reports whether operator may transfer all of owner's
// tickets.
func (l *Ledger) IsApprovedForAll(owner, operator account.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operators[owner][operator]
}

// OwnerOf returns the current owner of a ticket.
func (l *Ledger) OwnerOf(ticketID uint64) (account.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tickets[ticketID]
	if !ok {
		return account.ZeroAddress, ErrUnknownToken
	}
	return t.Owner, nil
}

// TokenURI returns the metadata URI fixed at mint time.
func (l *Ledger) TokenURI(ticketID uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tickets[ticketID]
	if !ok {
		return "", ErrUnknownToken
	}
	return t.URI, nil
}

// Creator returns the artist that minted the ticket.
func (l *Ledger) Creator(ticketID uint64) (account.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tickets[ticketID]
	if !ok {
		return account.ZeroAddress, ErrUnknownToken
	}
	return t.Creator, nil
}

// RoyaltyInfo returns the royalty recipient and the royalty amount owed on a
// sale at the given price. The amount is price * bips / 10000, rounded down,
// so it never exceeds the price.
func (l *Ledger) RoyaltyInfo(ticketID uint64, price *uint256.Int) (account.Address, *uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tickets[ticketID]
	if !ok {
		return account.ZeroAddress, nil, ErrUnknownToken
	}

	if price == nil {
		price = uint256.NewInt(0)
	}
	amount, _ := new(uint256.Int).MulDivOverflow(
		price,
		uint256.NewInt(uint64(t.RoyaltyBips)),
		uint256.NewInt(MaxRoyaltyBips),
	)
	return t.RoyaltyRecipient, amount, nil
}

// TotalSupply returns the number of tickets ever minted.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID - 1
}

// BalanceOf returns the number of tickets the account currently owns.
func (l *Ledger) BalanceOf(a account.Address) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[a]
}

// Events returns the ledger's event history.
func (l *Ledger) Events(ctx context.Context) ([]*eventsource.Event, error) {
	return l.journal.Events(ctx)
}
