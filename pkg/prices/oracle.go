// Package prices provides the price feed the auction engine consults
// before cancelling an auction during emergency unwind.
package prices

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/serpfi/auctiond/pkg/auction"
)

// Oracle is an in-process price feed keyed by currency. Prices are
// quoted in a common unit of account so relative prices are a ratio.
type Oracle struct {
	mu     sync.RWMutex
	prices map[auction.CurrencyID]decimal.Decimal
	locked map[auction.CurrencyID]decimal.Decimal
}

func NewOracle() *Oracle {
	return &Oracle{
		prices: make(map[auction.CurrencyID]decimal.Decimal),
		locked: make(map[auction.CurrencyID]decimal.Decimal),
	}
}

// SetPrice records the latest feed value for a currency.
func (o *Oracle) SetPrice(currency auction.CurrencyID, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[currency] = price
}

// LockPrice pins the current feed value so later feed updates do not
// move it until UnlockPrice.
func (o *Oracle) LockPrice(currency auction.CurrencyID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.prices[currency]; ok {
		o.locked[currency] = p
	}
}

// UnlockPrice releases a pinned price.
func (o *Oracle) UnlockPrice(currency auction.CurrencyID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.locked, currency)
}

// GetPrice returns the effective price for a currency, preferring a
// locked value over the live feed.
func (o *Oracle) GetPrice(currency auction.CurrencyID) (decimal.Decimal, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if p, ok := o.locked[currency]; ok {
		return p, true
	}
	p, ok := o.prices[currency]
	return p, ok
}

// GetRelativePrice returns base/quote. The second return is false when
// either feed is missing or the quote price is not positive.
func (o *Oracle) GetRelativePrice(base, quote auction.CurrencyID) (decimal.Decimal, bool) {
	bp, ok := o.GetPrice(base)
	if !ok {
		return decimal.Zero, false
	}
	qp, ok := o.GetPrice(quote)
	if !ok || !qp.IsPositive() {
		return decimal.Zero, false
	}
	return bp.Div(qp), true
}
