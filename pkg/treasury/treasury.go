// Package treasury implements the surplus/debit pool accounting
// collaborator. It escrows the collateral under auction, books auction
// proceeds as surplus, and records system-absorbed shortfalls and
// issuances in the debit pool.
package treasury

import (
	"errors"
	"math"
	"sync"

	"github.com/luxfi/log"

	"github.com/serpfi/auctiond/pkg/auction"
)

var (
	ErrInsufficientCollateral = errors.New("insufficient escrowed collateral")
	ErrInsufficientSurplus    = errors.New("insufficient surplus pool")
	ErrInvalidSwapPath        = errors.New("swap path must name at least two currencies")
)

// Accounts is the slice of the currency ledger the treasury settles
// against.
type Accounts interface {
	Transfer(currency auction.CurrencyID, from, to auction.AccountID, amount auction.Balance) error
	Deposit(currency auction.CurrencyID, who auction.AccountID, amount auction.Balance)
}

// Exchange executes swaps of escrowed collateral.
type Exchange interface {
	SwapWithExactSupply(who auction.AccountID, path []auction.CurrencyID, supply, minTarget auction.Balance) (auction.Balance, error)
}

// Treasury holds escrowed collateral plus the system-wide surplus and
// debit pools, all backed by its own ledger account.
type Treasury struct {
	mu          sync.RWMutex
	accounts    Accounts
	exchange    Exchange
	account     auction.AccountID
	stable      auction.CurrencyID
	surplus     auction.Balance
	debit       auction.Balance
	collaterals map[auction.CurrencyID]auction.Balance
	logger      log.Logger
}

func New(accounts Accounts, exchange Exchange, account auction.AccountID, stable auction.CurrencyID, logger log.Logger) *Treasury {
	return &Treasury{
		accounts:    accounts,
		exchange:    exchange,
		account:     account,
		stable:      stable,
		collaterals: make(map[auction.CurrencyID]auction.Balance),
		logger:      logger,
	}
}

// DepositCollateral escrows collateral from an account.
func (t *Treasury) DepositCollateral(from auction.AccountID, currency auction.CurrencyID, amount auction.Balance) error {
	if err := t.accounts.Transfer(currency, from, t.account, amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collaterals[currency] += amount
	return nil
}

// WithdrawCollateral releases escrowed collateral to an account.
func (t *Treasury) WithdrawCollateral(to auction.AccountID, currency auction.CurrencyID, amount auction.Balance) error {
	t.mu.Lock()
	if t.collaterals[currency] < amount {
		t.mu.Unlock()
		return ErrInsufficientCollateral
	}
	t.collaterals[currency] -= amount
	t.mu.Unlock()
	return t.accounts.Transfer(currency, t.account, to, amount)
}

// TotalCollaterals returns the escrowed amount of one currency.
func (t *Treasury) TotalCollaterals(currency auction.CurrencyID) auction.Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collaterals[currency]
}

// DepositSurplus moves settlement currency from an account into the
// surplus pool.
func (t *Treasury) DepositSurplus(from auction.AccountID, amount auction.Balance) error {
	if err := t.accounts.Transfer(t.stable, from, t.account, amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.surplus += amount
	return nil
}

// RefundSurplus returns settlement currency from the surplus pool to an
// account, reversing an earlier DepositSurplus.
func (t *Treasury) RefundSurplus(to auction.AccountID, amount auction.Balance) error {
	t.mu.Lock()
	if t.surplus < amount {
		t.mu.Unlock()
		return ErrInsufficientSurplus
	}
	t.surplus -= amount
	t.mu.Unlock()
	return t.accounts.Transfer(t.stable, t.account, to, amount)
}

// IssueDebit credits settlement currency to an account, recording the
// issuance in the debit pool.
func (t *Treasury) IssueDebit(to auction.AccountID, amount auction.Balance) error {
	t.accounts.Deposit(t.stable, to, amount)
	t.OnSystemDebit(amount)
	return nil
}

// OnSystemDebit records a shortfall absorbed by the system. Saturates
// rather than wrapping.
func (t *Treasury) OnSystemDebit(amount auction.Balance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount > math.MaxUint64-t.debit {
		t.debit = math.MaxUint64
		return
	}
	t.debit += amount
}

// SwapCollateralToStable swaps escrowed collateral along path and books
// the proceeds into the surplus pool.
func (t *Treasury) SwapCollateralToStable(path []auction.CurrencyID, supply auction.Balance) (auction.Balance, error) {
	if len(path) < 2 {
		return 0, ErrInvalidSwapPath
	}
	t.mu.Lock()
	if t.collaterals[path[0]] < supply {
		t.mu.Unlock()
		return 0, ErrInsufficientCollateral
	}
	t.collaterals[path[0]] -= supply
	t.mu.Unlock()

	proceeds, err := t.exchange.SwapWithExactSupply(t.account, path, supply, 0)
	if err != nil {
		t.mu.Lock()
		t.collaterals[path[0]] += supply
		t.mu.Unlock()
		return 0, err
	}

	t.mu.Lock()
	t.surplus += proceeds
	t.mu.Unlock()
	t.logger.Info("collateral swapped to surplus",
		"currency", path[0], "supply", supply, "proceeds", proceeds)
	return proceeds, nil
}

// SurplusPool returns accumulated auction proceeds.
func (t *Treasury) SurplusPool() auction.Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.surplus
}

// DebitPool returns the recorded system-absorbed debit.
func (t *Treasury) DebitPool() auction.Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.debit
}
