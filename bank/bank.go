// Package bank tracks payment balances. The market debits buyers and
// credits sellers and royalty recipients through it; amounts are exact
// 256-bit integers in the payment token's smallest unit.
package bank

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ticketry/account"
)

// ErrInsufficientFunds is returned when a debit exceeds the balance.
var ErrInsufficientFunds = errors.New("bank: insufficient funds")

// Bank holds one balance per account.
type Bank struct {
	mu       sync.RWMutex
	balances map[account.Address]*uint256.Int
}

// New creates an empty bank.
func New() *Bank {
	return &Bank{balances: make(map[account.Address]*uint256.Int)}
}

// Deposit credits the account. A nil amount is a no-op.
func (b *Bank) Deposit(a account.Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(a, amount)
}

// BalanceOf returns a copy of the account's balance. Unknown accounts have
// a zero balance.
func (b *Bank) BalanceOf(a account.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bal, ok := b.balances[a]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(bal)
}

// Transfer moves amount from one account to another. The balance check and
// the move are a single atomic step.
func (b *Bank) Transfer(from, to account.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.debit(from, amount); err != nil {
		return err
	}
	b.credit(to, amount)
	return nil
}

// Disburse debits from once and credits each payout in order. Either the
// full disbursement applies or no balance changes. The debited amount is the
// sum of the payouts.
func (b *Bank) Disburse(from account.Address, payouts []Payout) error {
	total := uint256.NewInt(0)
	for _, p := range payouts {
		if p.Amount == nil {
			continue
		}
		var overflow bool
		if total, overflow = new(uint256.Int).AddOverflow(total, p.Amount); overflow {
			return ErrInsufficientFunds
		}
	}
	if total.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.debit(from, total); err != nil {
		return err
	}
	for _, p := range payouts {
		if p.Amount == nil || p.Amount.IsZero() {
			continue
		}
		b.credit(p.To, p.Amount)
	}
	return nil
}

// Payout is one leg of a disbursement.
type Payout struct {
	To     account.Address
	Amount *uint256.Int
}

func (b *Bank) credit(a account.Address, amount *uint256.Int) {
	bal, ok := b.balances[a]
	if !ok {
		bal = uint256.NewInt(0)
		b.balances[a] = bal
	}
	bal.Add(bal, amount)
}

func (b *Bank) debit(a account.Address, amount *uint256.Int) error {
	bal, ok := b.balances[a]
	if !ok || bal.Lt(amount) {
		return ErrInsufficientFunds
	}
	bal.Sub(bal, amount)
	return nil
}
