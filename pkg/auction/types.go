package auction

import (
	"math"
	"math/big"
)

// AuctionID identifies a collateral auction. IDs are assigned by the
// bidding house, monotonically, and are never reused.
type AuctionID uint64

// AccountID identifies an account on the host ledger.
type AccountID string

// CurrencyID identifies a currency on the host ledger.
type CurrencyID string

// Balance is a currency amount. All balance math in this package is
// saturating or checked; it never wraps.
type Balance uint64

// BlockNumber is a discrete scheduling step of the host environment.
type BlockNumber uint64

// Bid is the (bidder, price) pair the bidding house tracks per auction.
type Bid struct {
	Bidder AccountID `json:"bidder"`
	Price  Balance   `json:"price"`
}

// AuctionEndChange tells the bidding house whether the auction's end
// time should be replaced. Set distinguishes "recomputed but identical"
// from "not evaluated".
type AuctionEndChange struct {
	Set bool
	End *BlockNumber
}

// NoChange leaves the end time as it is.
func NoChange() AuctionEndChange {
	return AuctionEndChange{}
}

// NewEnd replaces the end time with the given block.
func NewEnd(end BlockNumber) AuctionEndChange {
	return AuctionEndChange{Set: true, End: &end}
}

// OnNewBidResult is returned to the bidding house after bid admission.
type OnNewBidResult struct {
	AcceptBid        bool
	AuctionEndChange AuctionEndChange
}

// CollateralAuction is the durable record of one liquidation event.
// Amount strictly decreases as reverse-stage fills release collateral;
// Target is the debt still to be recovered in the settlement currency.
type CollateralAuction struct {
	ID        AuctionID   `json:"id"`
	Owner     AccountID   `json:"owner"`
	Currency  CurrencyID  `json:"currency"`
	Amount    Balance     `json:"amount"`
	Target    Balance     `json:"target"`
	StartTime BlockNumber `json:"startTime"`
}

// AlwaysForward reports whether the auction can never flip to reverse
// accounting. A zero target means the price can only rise and the full
// bid price is always collected.
func (a *CollateralAuction) AlwaysForward() bool {
	return a.Target == 0
}

// InReverseStage reports whether the given cumulative bid price has
// reached the target, flipping the auction from "sell more collateral
// for more money" to "sell less collateral for the same money".
func (a *CollateralAuction) InReverseStage(price Balance) bool {
	return !a.AlwaysForward() && price >= a.Target
}

// PaymentAmount returns the settlement-currency amount actually
// collected from a bid of the given price.
func (a *CollateralAuction) PaymentAmount(price Balance) Balance {
	if a.AlwaysForward() {
		return price
	}
	if price > a.Target {
		return a.Target
	}
	return price
}

// CollateralAmount returns the collateral owed to a new highest bidder
// at newPrice, given the previous highest price. In the reverse stage
// the quantity shrinks proportionally so the previous winning price per
// unit is respected. newPrice is positive by admission rules; a zero
// value falls back to the full amount rather than dividing by zero.
func (a *CollateralAuction) CollateralAmount(lastPrice, newPrice Balance) Balance {
	if !a.InReverseStage(newPrice) || newPrice <= lastPrice || newPrice == 0 {
		return a.Amount
	}
	base := lastPrice
	if a.Target > base {
		base = a.Target
	}
	// amount * base / newPrice with a wide intermediate so large
	// balances cannot overflow.
	n := new(big.Int).Mul(new(big.Int).SetUint64(uint64(a.Amount)), new(big.Int).SetUint64(uint64(base)))
	n.Quo(n, new(big.Int).SetUint64(uint64(newPrice)))
	if !n.IsUint64() {
		return a.Amount
	}
	out := Balance(n.Uint64())
	if out > a.Amount {
		return a.Amount
	}
	return out
}

// checkedAdd returns a+b and whether the sum fits in a Balance.
func checkedAdd(a, b Balance) (Balance, bool) {
	if b > math.MaxUint64-a {
		return 0, false
	}
	return a + b, true
}

// satSub returns a-b, floored at zero.
func satSub(a, b Balance) Balance {
	if b > a {
		return 0
	}
	return a - b
}
