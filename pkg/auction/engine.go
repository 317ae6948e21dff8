package auction

import (
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Config holds the auction-manager parameters. Durations are block
// counts of the host's step schedule.
type Config struct {
	// SettCurrency is the settlement (stable) currency bids are paid in.
	SettCurrency CurrencyID
	// NativeCurrency is the intermediary for two-hop DEX fallback paths.
	NativeCurrency CurrencyID
	// MinimumIncrement is the required bid increment as a rate applied
	// to max(lastPrice, target). Doubled once the auction outlives its
	// total duration.
	MinimumIncrement decimal.Decimal
	// AuctionDuration is the total auction window.
	AuctionDuration BlockNumber
	// BidExtensionWindow is the soft-close window: a bid landing within
	// it of the end time pushes the end to now + window.
	BidExtensionWindow BlockNumber
	// SweepLockDuration time-boxes the unwind sweep mutual exclusion.
	SweepLockDuration time.Duration
}

// DefaultConfig mirrors the production parameters.
func DefaultConfig() Config {
	return Config{
		SettCurrency:       "SETUSD",
		NativeCurrency:     "DNAR",
		MinimumIncrement:   decimal.NewFromFloat(0.05),
		AuctionDuration:    2000,
		BidExtensionWindow: 100,
		SweepLockDuration:  100 * time.Millisecond,
	}
}

// Deps are the injected collaborators.
type Deps struct {
	House      AuctionHouse
	Ledger     Ledger
	Treasury   Treasury
	DEX        DEX
	Prices     PriceSource
	Shutdown   EmergencyShutdown
	Submitter  CancelSubmitter
	Registerer prometheus.Registerer
}

// Engine is the collateral auction manager: it owns the durable auction
// ledger and aggregates, admits bids, resolves ended auctions (settling
// with the winner or falling back to the DEX), and cancels auctions
// during emergency unwind. Every entry point runs to completion under
// one lock; partial writes are never observed.
type Engine struct {
	cfg     Config
	logger  log.Logger
	deps    Deps
	store   *Store
	events  *EventLog
	metrics *Metrics

	mu sync.Mutex
}

// NewEngine creates the auction manager on top of the given database.
func NewEngine(cfg Config, logger log.Logger, db database.Database, deps Deps) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		deps:    deps,
		store:   NewStore(db),
		events:  NewEventLog(),
		metrics: NewMetrics("auctiond", deps.Registerer),
	}
}

// SetSubmitter installs the cancellation submitter. Used when the
// submitter itself needs the engine, which makes construction circular.
func (e *Engine) SetSubmitter(s CancelSubmitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deps.Submitter = s
}

// Events exposes the append-only observable event log.
func (e *Engine) Events() *EventLog {
	return e.events
}

// Store exposes the durable auction store, for queries and operational
// overrides (sweep budget).
func (e *Engine) Store() *Store {
	return e.store
}

// Auction returns the live auction record, or nil.
func (e *Engine) Auction(id AuctionID) (*CollateralAuction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetAuction(id)
}

// TotalCollateralInAuction returns the collateral aggregate for a currency.
func (e *Engine) TotalCollateralInAuction(currency CurrencyID) Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.store.TotalCollateralInAuction(currency)
	if err != nil {
		e.logger.Error("read collateral aggregate", "currency", currency, "error", err)
	}
	return v
}

// TotalTargetInAuction returns the outstanding target aggregate.
func (e *Engine) TotalTargetInAuction() Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.store.TotalTargetInAuction()
	if err != nil {
		e.logger.Error("read target aggregate", "error", err)
	}
	return v
}

// GetAuctionTimeToClose returns the remaining bid window for display:
// the full extension window while the auction is inside its total
// duration, half of it afterwards. Control flow never uses this; it
// reads the end time directly.
func (e *Engine) GetAuctionTimeToClose(now, start BlockNumber) BlockNumber {
	if now >= start+e.cfg.AuctionDuration {
		return e.cfg.BidExtensionWindow / 2
	}
	return e.cfg.BidExtensionWindow
}

// NewCollateralAuction opens an auction selling amount of currency to
// recover target settlement currency. A zero target puts the auction in
// always-forward mode. Fails with ErrInvalidAmount when amount is zero
// or either aggregate would overflow.
func (e *Engine) NewCollateralAuction(owner AccountID, currency CurrencyID, amount, target Balance) (AuctionID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	tc, err := e.store.TotalCollateralInAuction(currency)
	if err != nil {
		return 0, err
	}
	newTC, ok := checkedAdd(tc, amount)
	if !ok {
		return 0, ErrInvalidAmount
	}
	tt, err := e.store.TotalTargetInAuction()
	if err != nil {
		return 0, err
	}
	newTT, ok := checkedAdd(tt, target)
	if !ok {
		return 0, ErrInvalidAmount
	}

	start := e.deps.House.CurrentBlock()
	end := start + e.cfg.AuctionDuration
	id, err := e.deps.House.NewAuction(start, &end)
	if err != nil {
		return 0, fmt.Errorf("open auction: %w", err)
	}

	a := &CollateralAuction{
		ID:        id,
		Owner:     owner,
		Currency:  currency,
		Amount:    amount,
		Target:    target,
		StartTime: start,
	}
	if err := e.store.PutAuction(a); err != nil {
		return 0, err
	}
	if err := e.store.SetTotalCollateralInAuction(currency, newTC); err != nil {
		return 0, err
	}
	if err := e.store.SetTotalTargetInAuction(newTT); err != nil {
		return 0, err
	}
	e.deps.Ledger.IncRef(owner)

	e.events.append(Event{
		Kind:      EventNewCollateralAuction,
		AuctionID: id,
		Currency:  currency,
		Amount:    amount,
		Target:    target,
	})
	e.metrics.auctionsCreated.Inc()
	e.metrics.openAuctions.Inc()
	e.metrics.targetInAuction.Add(float64(target))
	e.metrics.collateralGauge.WithLabelValues(string(currency)).Add(float64(amount))
	e.logger.Info("new collateral auction",
		"auction", id, "owner", owner, "currency", currency,
		"amount", amount, "target", target)
	return id, nil
}

// OnNewBid admits a bid from the bidding house. A rejected bid reports
// AcceptBid false with the reason logged; the house keeps its previous
// state.
func (e *Engine) OnNewBid(now BlockNumber, id AuctionID, bid Bid, last *Bid) OnNewBidResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	change, err := e.handleBid(now, id, bid, last)
	if err != nil {
		e.metrics.bidsRejected.Inc()
		e.logger.Debug("bid rejected",
			"auction", id, "bidder", bid.Bidder, "price", bid.Price, "error", err)
		return OnNewBidResult{AcceptBid: false, AuctionEndChange: NoChange()}
	}
	e.metrics.bidsAccepted.Inc()
	return OnNewBidResult{AcceptBid: true, AuctionEndChange: change}
}

func (e *Engine) handleBid(now BlockNumber, id AuctionID, bid Bid, last *Bid) (AuctionEndChange, error) {
	a, err := e.store.GetAuction(id)
	if err != nil {
		return NoChange(), err
	}
	if a == nil {
		return NoChange(), ErrAuctionNotExists
	}

	var lastPrice Balance
	if last != nil {
		lastPrice = last.Price
	}
	if bid.Price <= lastPrice {
		return NoChange(), ErrInvalidBidPrice
	}
	if bid.Price-lastPrice < e.minimumIncrement(now, a.StartTime, lastPrice, a.Target) {
		return NoChange(), ErrInvalidBidPrice
	}

	payment := a.PaymentAmount(bid.Price)
	var lastPayment Balance
	if last != nil {
		lastPayment = a.PaymentAmount(last.Price)
	}

	newAmount := a.Amount
	if a.InReverseStage(bid.Price) {
		newAmount = a.CollateralAmount(lastPrice, bid.Price)
		if newAmount > a.Amount {
			return NoChange(), ErrInvalidAmount
		}
	}

	// The new bidder makes the previous bidder whole, then pays the
	// payment delta into the surplus pool.
	if last != nil && lastPayment > 0 {
		if err := e.deps.Ledger.Transfer(e.cfg.SettCurrency, bid.Bidder, last.Bidder, lastPayment); err != nil {
			return NoChange(), err
		}
	}
	if delta := satSub(payment, lastPayment); delta > 0 {
		if err := e.deps.Treasury.DepositSurplus(bid.Bidder, delta); err != nil {
			if last != nil && lastPayment > 0 {
				// unwind the refund so rejection leaves state unchanged
				_ = e.deps.Ledger.Transfer(e.cfg.SettCurrency, last.Bidder, bid.Bidder, lastPayment)
			}
			return NoChange(), err
		}
	}

	// Reverse stage releases the excess collateral to the owner
	// immediately instead of waiting for resolution.
	if refund := satSub(a.Amount, newAmount); refund > 0 {
		if err := e.deps.Treasury.WithdrawCollateral(a.Owner, a.Currency, refund); err != nil {
			// unwind the payment so rejection leaves state unchanged
			if delta := satSub(payment, lastPayment); delta > 0 {
				_ = e.deps.Treasury.RefundSurplus(bid.Bidder, delta)
			}
			if last != nil && lastPayment > 0 {
				_ = e.deps.Ledger.Transfer(e.cfg.SettCurrency, last.Bidder, bid.Bidder, lastPayment)
			}
			return NoChange(), err
		}
		tc, err := e.store.TotalCollateralInAuction(a.Currency)
		if err != nil {
			return NoChange(), err
		}
		if err := e.store.SetTotalCollateralInAuction(a.Currency, satSub(tc, refund)); err != nil {
			return NoChange(), err
		}
		e.metrics.collateralGauge.WithLabelValues(string(a.Currency)).Sub(float64(refund))
		a.Amount = newAmount
		if err := e.store.PutAuction(a); err != nil {
			return NoChange(), err
		}
	}

	e.swapBidders(bid.Bidder, last)

	change := NoChange()
	if info, ok := e.deps.House.Auction(id); ok {
		if info.End == nil || *info.End <= now+e.cfg.BidExtensionWindow {
			change = NewEnd(now + e.cfg.BidExtensionWindow)
		}
	}
	return change, nil
}

// minimumIncrement is the smallest acceptable price improvement at now.
func (e *Engine) minimumIncrement(now, start BlockNumber, lastPrice, target Balance) Balance {
	rate := e.cfg.MinimumIncrement
	if now >= start+e.cfg.AuctionDuration {
		rate = rate.Add(rate)
	}
	base := lastPrice
	if target > base {
		base = target
	}
	inc := rate.Mul(decimal.NewFromUint64(uint64(base)))
	return Balance(inc.IntPart())
}

// swapBidders keeps the ledger's liveness reference counting exact: the
// incoming bidder acquires a reference, the evicted one releases it.
func (e *Engine) swapBidders(newBidder AccountID, last *Bid) {
	e.deps.Ledger.IncRef(newBidder)
	if last != nil {
		e.deps.Ledger.DecRef(last.Bidder)
	}
}

// OnAuctionEnded resolves an auction whose end time was reached. It
// returns true when the auction was destroyed; false leaves it open for
// the next scheduling step (no DEX path and no bid).
func (e *Engine) OnAuctionEnded(id AuctionID, winner *Bid) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.store.GetAuction(id)
	if err != nil {
		// Keep the house record so the next block retries; dropping it
		// here would orphan the durable auction and its aggregates.
		e.logger.Error("load auction for resolution", "auction", id, "error", err)
		return false
	}
	if a == nil {
		return true
	}

	if winner != nil {
		payment := a.PaymentAmount(winner.Price)
		if !a.InReverseStage(winner.Price) {
			// A forward-stage bid can still be beaten by the DEX.
			if quote, path, ok := e.bestSwapQuote(a.Currency, a.Amount); ok && quote > winner.Price {
				if e.dexTake(a, path, winner, payment) {
					e.finish(a)
					return true
				}
			}
		}
		e.deal(a, winner, payment)
		e.finish(a)
		return true
	}

	_, path, ok := e.bestSwapQuote(a.Currency, a.Amount)
	if !ok {
		e.logger.Debug("no DEX path for auction, leaving open", "auction", id, "currency", a.Currency)
		return false
	}
	if !e.dexTake(a, path, nil, 0) {
		return false
	}
	e.finish(a)
	return true
}

// bestSwapQuote searches the direct pair first, then the two-hop path
// through the native currency.
func (e *Engine) bestSwapQuote(currency CurrencyID, supply Balance) (Balance, []CurrencyID, bool) {
	direct := []CurrencyID{currency, e.cfg.SettCurrency}
	if ra, rb := e.deps.DEX.GetLiquidityPool(currency, e.cfg.SettCurrency); ra > 0 && rb > 0 {
		if out, ok := e.deps.DEX.GetSwapTargetAmount(direct, supply); ok && out > 0 {
			return out, direct, true
		}
	}
	alt := []CurrencyID{currency, e.cfg.NativeCurrency, e.cfg.SettCurrency}
	if out, ok := e.deps.DEX.GetSwapTargetAmount(alt, supply); ok && out > 0 {
		return out, alt, true
	}
	return 0, nil, false
}

// dexTake swaps the auction's remaining collateral for settlement
// currency. Proceeds land in the surplus pool; the excess above target
// goes to the owner and any shortfall is absorbed by the debit pool, so
// resolution always completes once a path exists. refund, when set, is
// the standing bid made whole out of the debit pool.
func (e *Engine) dexTake(a *CollateralAuction, path []CurrencyID, refund *Bid, refundPayment Balance) bool {
	proceeds, err := e.deps.Treasury.SwapCollateralToStable(path, a.Amount)
	if err != nil {
		e.logger.Error("DEX liquidation failed", "auction", a.ID, "error", err)
		return false
	}
	if refund != nil {
		if err := e.deps.Treasury.IssueDebit(refund.Bidder, refundPayment); err != nil {
			e.logger.Error("refund standing bid", "auction", a.ID, "bidder", refund.Bidder, "error", err)
		}
		e.deps.Ledger.DecRef(refund.Bidder)
	}
	if proceeds > a.Target {
		if err := e.deps.Treasury.IssueDebit(a.Owner, proceeds-a.Target); err != nil {
			e.logger.Error("pay auction owner excess", "auction", a.ID, "error", err)
		}
	} else if short := satSub(a.Target, proceeds); short > 0 {
		e.deps.Treasury.OnSystemDebit(short)
	}

	e.events.append(Event{
		Kind:      EventDEXTakeCollateralAuction,
		AuctionID: a.ID,
		Currency:  a.Currency,
		Amount:    a.Amount,
		Proceeds:  proceeds,
	})
	e.metrics.dexTakes.Inc()
	e.logger.Info("auction taken by DEX",
		"auction", a.ID, "currency", a.Currency, "amount", a.Amount, "proceeds", proceeds)
	return true
}

// deal settles with the highest bidder: the escrowed collateral is
// released to them at the payment implied by their bid.
func (e *Engine) deal(a *CollateralAuction, winner *Bid, payment Balance) {
	if err := e.deps.Treasury.WithdrawCollateral(winner.Bidder, a.Currency, a.Amount); err != nil {
		e.logger.Error("release collateral to winner", "auction", a.ID, "bidder", winner.Bidder, "error", err)
	}
	e.deps.Ledger.DecRef(winner.Bidder)

	e.events.append(Event{
		Kind:      EventCollateralAuctionDealt,
		AuctionID: a.ID,
		Currency:  a.Currency,
		Amount:    a.Amount,
		Bidder:    winner.Bidder,
		Price:     payment,
	})
	e.metrics.auctionsDealt.Inc()
	e.logger.Info("auction dealt",
		"auction", a.ID, "currency", a.Currency, "amount", a.Amount,
		"bidder", winner.Bidder, "payment", payment)
}

// finish destroys the auction record and rolls its remaining amount and
// target out of the aggregates.
func (e *Engine) finish(a *CollateralAuction) {
	tc, err := e.store.TotalCollateralInAuction(a.Currency)
	if err == nil {
		err = e.store.SetTotalCollateralInAuction(a.Currency, satSub(tc, a.Amount))
	}
	if err == nil {
		var tt Balance
		tt, err = e.store.TotalTargetInAuction()
		if err == nil {
			err = e.store.SetTotalTargetInAuction(satSub(tt, a.Target))
		}
	}
	if err == nil {
		err = e.store.DeleteAuction(a.ID)
	}
	if err != nil {
		e.logger.Error("destroy auction record", "auction", a.ID, "error", err)
	}
	e.deps.Ledger.DecRef(a.Owner)
	e.metrics.openAuctions.Dec()
	e.metrics.targetInAuction.Sub(float64(a.Target))
	e.metrics.collateralGauge.WithLabelValues(string(a.Currency)).Sub(float64(a.Amount))
}

// Cancel unwinds an auction during emergency shutdown: the standing bid
// is refunded, the collateral returns to the owner, the unrecovered
// target is booked as system debit, and the record is destroyed.
// Canceling a reverse-stage auction would be unfair to a bidder who
// already improved pricing, so it is refused.
func (e *Engine) Cancel(id AuctionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.deps.Shutdown.IsShutdown() {
		return ErrMustAfterShutdown
	}
	a, err := e.store.GetAuction(id)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrAuctionNotExists
	}

	var lastBid *Bid
	if info, ok := e.deps.House.Auction(id); ok {
		lastBid = info.Bid
	}
	if lastBid != nil && a.InReverseStage(lastBid.Price) {
		return ErrInReverseStage
	}
	if p, ok := e.deps.Prices.GetRelativePrice(e.cfg.SettCurrency, a.Currency); !ok || !p.IsPositive() {
		return ErrInvalidFeedPrice
	}

	var recovered Balance
	if lastBid != nil {
		refund := a.PaymentAmount(lastBid.Price)
		if err := e.deps.Treasury.IssueDebit(lastBid.Bidder, refund); err != nil {
			return err
		}
		recovered = refund
		e.deps.Ledger.DecRef(lastBid.Bidder)
	}
	if err := e.deps.Treasury.WithdrawCollateral(a.Owner, a.Currency, a.Amount); err != nil {
		return err
	}
	// The market is no longer covering this target; whatever the
	// standing bid did not recover lands on the system.
	e.deps.Treasury.OnSystemDebit(satSub(a.Target, recovered))

	e.finish(a)
	e.deps.House.RemoveAuction(id)

	e.events.append(Event{Kind: EventCancelAuction, AuctionID: id})
	e.metrics.auctionsCancelled.Inc()
	e.logger.Info("auction cancelled", "auction", id)
	return nil
}
