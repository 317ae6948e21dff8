package auction

import "github.com/shopspring/decimal"

// Collaborator interfaces. The engine never depends on a concrete
// implementation; cmd/auctiond wires the real ones and tests inject
// their own.

// Ledger is the slice of the currency ledger the engine needs: moving
// settlement currency between bidders and tracking account liveness
// references for accounts that hold a live bid.
type Ledger interface {
	Transfer(currency CurrencyID, from, to AccountID, amount Balance) error
	IncRef(account AccountID)
	DecRef(account AccountID)
}

// Treasury accumulates auction proceeds (surplus) and system-absorbed
// shortfalls (debit), and holds the escrowed collateral under auction.
type Treasury interface {
	// DepositSurplus moves settlement currency from an account into
	// the surplus pool.
	DepositSurplus(from AccountID, amount Balance) error
	// RefundSurplus returns settlement currency from the surplus pool
	// to an account, reversing an earlier DepositSurplus.
	RefundSurplus(to AccountID, amount Balance) error
	// IssueDebit credits settlement currency to an account, recording
	// the issuance in the debit pool.
	IssueDebit(to AccountID, amount Balance) error
	// OnSystemDebit records a shortfall absorbed by the system.
	OnSystemDebit(amount Balance)
	// WithdrawCollateral releases escrowed collateral to an account.
	WithdrawCollateral(to AccountID, currency CurrencyID, amount Balance) error
	// SwapCollateralToStable swaps escrowed collateral along the given
	// path and books the proceeds into the surplus pool.
	SwapCollateralToStable(path []CurrencyID, supply Balance) (Balance, error)
}

// DEX exposes the liquidity queries the resolution fallback needs.
// Swap execution goes through the Treasury, which owns the escrow.
type DEX interface {
	GetLiquidityPool(a, b CurrencyID) (Balance, Balance)
	GetSwapTargetAmount(path []CurrencyID, supply Balance) (Balance, bool)
}

// PriceSource supplies relative prices; used only to validate
// cancellation fairness.
type PriceSource interface {
	GetRelativePrice(base, quote CurrencyID) (decimal.Decimal, bool)
}

// EmergencyShutdown is the process-wide shutdown flag. It is set once
// by an external action and never reset within this core.
type EmergencyShutdown interface {
	IsShutdown() bool
}

// AuctionHouseInfo is the engine's view of the bidding house record.
type AuctionHouseInfo struct {
	Bid   *Bid
	Start BlockNumber
	End   *BlockNumber
}

// AuctionHouse is the generic auction-bidding collaborator that owns
// bid ordering and time-based resolution.
type AuctionHouse interface {
	CurrentBlock() BlockNumber
	NewAuction(start BlockNumber, end *BlockNumber) (AuctionID, error)
	RemoveAuction(id AuctionID)
	Auction(id AuctionID) (AuctionHouseInfo, bool)
}

// CancelSubmitter delivers self-originated cancellation work. Delivery
// is at-least-once and fire-and-forget; duplicates are harmless because
// a second cancellation attempt fails with ErrAuctionNotExists.
type CancelSubmitter interface {
	SubmitCancel(id AuctionID) error
}
