// Package ledger implements the currency ledger collaborator: multi
// currency account balances plus the liveness reference counting the
// auction manager maintains for accounts holding live bids.
package ledger

import (
	"errors"
	"sync"

	"github.com/serpfi/auctiond/pkg/auction"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger tracks free balances per (currency, account).
type Ledger struct {
	mu       sync.RWMutex
	balances map[auction.CurrencyID]map[auction.AccountID]auction.Balance
	refs     map[auction.AccountID]int
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[auction.CurrencyID]map[auction.AccountID]auction.Balance),
		refs:     make(map[auction.AccountID]int),
	}
}

// Deposit credits an account, minting the amount into existence.
func (l *Ledger) Deposit(currency auction.CurrencyID, who auction.AccountID, amount auction.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(currency, who, amount)
}

// Withdraw burns amount from an account's balance.
func (l *Ledger) Withdraw(currency auction.CurrencyID, who auction.AccountID, amount auction.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debit(currency, who, amount)
}

// Transfer moves amount between accounts in one currency.
func (l *Ledger) Transfer(currency auction.CurrencyID, from, to auction.AccountID, amount auction.Balance) error {
	if from == to || amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(currency, from, amount); err != nil {
		return err
	}
	l.credit(currency, to, amount)
	return nil
}

// Balance returns an account's free balance.
func (l *Ledger) Balance(currency auction.CurrencyID, who auction.AccountID) auction.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[currency][who]
}

func (l *Ledger) credit(currency auction.CurrencyID, who auction.AccountID, amount auction.Balance) {
	accounts := l.balances[currency]
	if accounts == nil {
		accounts = make(map[auction.AccountID]auction.Balance)
		l.balances[currency] = accounts
	}
	accounts[who] += amount
}

func (l *Ledger) debit(currency auction.CurrencyID, who auction.AccountID, amount auction.Balance) error {
	accounts := l.balances[currency]
	if accounts[who] < amount {
		return ErrInsufficientBalance
	}
	accounts[who] -= amount
	return nil
}

// IncRef acquires a liveness reference on an account.
func (l *Ledger) IncRef(who auction.AccountID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs[who]++
}

// DecRef releases a liveness reference on an account.
func (l *Ledger) DecRef(who auction.AccountID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs[who] > 0 {
		l.refs[who]--
	}
}

// Refs returns an account's current liveness reference count.
func (l *Ledger) Refs(who auction.AccountID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.refs[who]
}
