// Package dex implements the decentralized-exchange collaborator: a
// constant-product AMM with multi-hop quoting and atomic swap-and-
// settle execution against the currency ledger.
package dex

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/log"

	"github.com/serpfi/auctiond/pkg/auction"
)

var (
	ErrInvalidTradingPath       = errors.New("invalid trading path")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity in pool")
	ErrInsufficientTargetAmount = errors.New("swap output below accepted minimum")
)

// Exchange fee, taken from the swap output and left in the pool.
const (
	feeNumerator   = 5
	feeDenominator = 1000
)

// Accounts is the slice of the currency ledger swaps settle against.
type Accounts interface {
	Transfer(currency auction.CurrencyID, from, to auction.AccountID, amount auction.Balance) error
}

type pool struct {
	reserves map[auction.CurrencyID]auction.Balance
}

// DEX holds constant-product liquidity pools. Reserves are backed one
// to one by the DEX's own ledger account.
type DEX struct {
	mu       sync.RWMutex
	pools    map[string]*pool
	accounts Accounts
	account  auction.AccountID
	logger   log.Logger
}

func New(accounts Accounts, account auction.AccountID, logger log.Logger) *DEX {
	return &DEX{
		pools:    make(map[string]*pool),
		accounts: accounts,
		account:  account,
		logger:   logger,
	}
}

func pairKey(a, b auction.CurrencyID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + "/" + string(b)
}

// AddLiquidity funds the (a, b) pool from the provider's balances.
func (d *DEX) AddLiquidity(who auction.AccountID, a, b auction.CurrencyID, amountA, amountB auction.Balance) error {
	if a == b {
		return ErrInvalidTradingPath
	}
	if err := d.accounts.Transfer(a, who, d.account, amountA); err != nil {
		return err
	}
	if err := d.accounts.Transfer(b, who, d.account, amountB); err != nil {
		// hand the first leg back
		_ = d.accounts.Transfer(a, d.account, who, amountA)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := pairKey(a, b)
	p := d.pools[key]
	if p == nil {
		p = &pool{reserves: make(map[auction.CurrencyID]auction.Balance)}
		d.pools[key] = p
	}
	p.reserves[a] += amountA
	p.reserves[b] += amountB
	d.logger.Info("liquidity added",
		"provider", who, "pair", key, "amountA", amountA, "amountB", amountB)
	return nil
}

// GetLiquidityPool returns the reserves of the (a, b) pool, in that
// order. Missing pools report zero reserves.
func (d *DEX) GetLiquidityPool(a, b auction.CurrencyID) (auction.Balance, auction.Balance) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p := d.pools[pairKey(a, b)]
	if p == nil {
		return 0, 0
	}
	return p.reserves[a], p.reserves[b]
}

// getTargetAmount applies the constant-product formula with the
// exchange fee discounted from the supplied amount.
func getTargetAmount(reserveIn, reserveOut, supply auction.Balance) auction.Balance {
	if reserveIn == 0 || reserveOut == 0 || supply == 0 {
		return 0
	}
	supplyWithFee := new(big.Int).Mul(
		new(big.Int).SetUint64(uint64(supply)),
		big.NewInt(feeDenominator-feeNumerator),
	)
	numerator := new(big.Int).Mul(new(big.Int).SetUint64(uint64(reserveOut)), supplyWithFee)
	denominator := new(big.Int).Add(
		new(big.Int).Mul(new(big.Int).SetUint64(uint64(reserveIn)), big.NewInt(feeDenominator)),
		supplyWithFee,
	)
	out := numerator.Quo(numerator, denominator)
	if !out.IsUint64() {
		return 0
	}
	return auction.Balance(out.Uint64())
}

// GetSwapTargetAmount quotes the output of swapping supply along path.
// Returns false when any hop lacks liquidity. The same formula drives
// execution, so a quote is exact.
func (d *DEX) GetSwapTargetAmount(path []auction.CurrencyID, supply auction.Balance) (auction.Balance, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.quote(path, supply)
}

func (d *DEX) quote(path []auction.CurrencyID, supply auction.Balance) (auction.Balance, bool) {
	if len(path) < 2 {
		return 0, false
	}
	amount := supply
	for i := 0; i+1 < len(path); i++ {
		p := d.pools[pairKey(path[i], path[i+1])]
		if p == nil {
			return 0, false
		}
		amount = getTargetAmount(p.reserves[path[i]], p.reserves[path[i+1]], amount)
		if amount == 0 {
			return 0, false
		}
	}
	return amount, true
}

// SwapWithExactSupply executes the path swap atomically: the caller
// pays supply of path[0] and receives the quoted output of the final
// currency, provided it reaches minTarget.
func (d *DEX) SwapWithExactSupply(who auction.AccountID, path []auction.CurrencyID, supply, minTarget auction.Balance) (auction.Balance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	target, ok := d.quote(path, supply)
	if !ok {
		return 0, ErrInsufficientLiquidity
	}
	if target < minTarget {
		return 0, ErrInsufficientTargetAmount
	}
	if err := d.accounts.Transfer(path[0], who, d.account, supply); err != nil {
		return 0, err
	}

	amount := supply
	for i := 0; i+1 < len(path); i++ {
		p := d.pools[pairKey(path[i], path[i+1])]
		out := getTargetAmount(p.reserves[path[i]], p.reserves[path[i+1]], amount)
		p.reserves[path[i]] += amount
		p.reserves[path[i+1]] -= out
		amount = out
	}
	if err := d.accounts.Transfer(path[len(path)-1], d.account, who, amount); err != nil {
		return 0, err
	}
	d.logger.Info("swap executed",
		"who", who, "supply", supply, "target", amount,
		"from", path[0], "to", path[len(path)-1])
	return amount, nil
}
