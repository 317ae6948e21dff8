// Package bidding implements a generic block-driven auction house. It
// owns auction lifetimes and bid ordering; domain semantics (pricing,
// settlement) live behind the Handler interface.
package bidding

import (
	"errors"
	"sync"

	"github.com/luxfi/log"

	"github.com/serpfi/auctiond/pkg/auction"
)

var (
	ErrAuctionNotExists = errors.New("auction does not exist")
	ErrBidNotAccepted   = errors.New("bid not accepted")
	ErrInvalidEnd       = errors.New("auction end must be after start")
)

// Handler receives bid admission and auction resolution callbacks. The
// house never holds its own lock while calling into a Handler.
type Handler interface {
	// OnNewBid judges a candidate bid against the standing one.
	OnNewBid(now auction.BlockNumber, id auction.AuctionID, bid auction.Bid, last *auction.Bid) auction.OnNewBidResult
	// OnAuctionEnded settles a closing auction. A false return means
	// the auction could not be resolved yet and stays open.
	OnAuctionEnded(id auction.AuctionID, winner *auction.Bid) bool
}

type record struct {
	bid   *auction.Bid
	start auction.BlockNumber
	end   *auction.BlockNumber
}

// House tracks open auctions and drives their closing on block
// boundaries.
type House struct {
	mu       sync.Mutex
	auctions map[auction.AuctionID]*record
	next     auction.AuctionID
	current  auction.BlockNumber
	handler  Handler
	logger   log.Logger
}

func NewHouse(logger log.Logger) *House {
	return &House{
		auctions: make(map[auction.AuctionID]*record),
		logger:   logger,
	}
}

// SetHandler installs the settlement handler. Must be called before the
// first bid or block.
func (h *House) SetHandler(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// CurrentBlock returns the latest block passed to OnBlock.
func (h *House) CurrentBlock() auction.BlockNumber {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// NewAuction registers an auction opening at start, closing at end if
// set.
func (h *House) NewAuction(start auction.BlockNumber, end *auction.BlockNumber) (auction.AuctionID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if end != nil && *end <= start {
		return 0, ErrInvalidEnd
	}
	id := h.next
	h.next++
	h.auctions[id] = &record{start: start, end: cloneBlock(end)}
	return id, nil
}

// RemoveAuction drops an auction without resolving it.
func (h *House) RemoveAuction(id auction.AuctionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.auctions, id)
}

// Auction returns the house record for an auction.
func (h *House) Auction(id auction.AuctionID) (auction.AuctionHouseInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.auctions[id]
	if !ok {
		return auction.AuctionHouseInfo{}, false
	}
	return auction.AuctionHouseInfo{
		Bid:   cloneBid(rec.bid),
		Start: rec.start,
		End:   cloneBlock(rec.end),
	}, true
}

// Bid places a bid. The handler decides admission; on acceptance the
// bid becomes the standing one and the close time may move.
func (h *House) Bid(bidder auction.AccountID, id auction.AuctionID, price auction.Balance) error {
	h.mu.Lock()
	rec, ok := h.auctions[id]
	if !ok {
		h.mu.Unlock()
		return ErrAuctionNotExists
	}
	now := h.current
	last := cloneBid(rec.bid)
	handler := h.handler
	h.mu.Unlock()

	bid := auction.Bid{Bidder: bidder, Price: price}
	result := handler.OnNewBid(now, id, bid, last)
	if !result.AcceptBid {
		return ErrBidNotAccepted
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok = h.auctions[id]
	if !ok {
		return ErrAuctionNotExists
	}
	rec.bid = &bid
	if result.AuctionEndChange.Set {
		rec.end = cloneBlock(result.AuctionEndChange.End)
	}
	h.logger.Info("bid accepted", "auction", id, "bidder", bidder, "price", price)
	return nil
}

// OnBlock advances the house clock and resolves auctions whose close
// time has arrived. Unresolved auctions are retried next block.
func (h *House) OnBlock(now auction.BlockNumber) {
	h.mu.Lock()
	h.current = now
	due := make([]auction.AuctionID, 0)
	for id, rec := range h.auctions {
		if rec.end != nil && *rec.end <= now {
			due = append(due, id)
		}
	}
	handler := h.handler
	h.mu.Unlock()

	for _, id := range due {
		h.mu.Lock()
		rec, ok := h.auctions[id]
		if !ok {
			h.mu.Unlock()
			continue
		}
		winner := cloneBid(rec.bid)
		h.mu.Unlock()

		if handler.OnAuctionEnded(id, winner) {
			h.mu.Lock()
			delete(h.auctions, id)
			h.mu.Unlock()
			continue
		}

		h.mu.Lock()
		if rec, ok := h.auctions[id]; ok {
			retry := now + 1
			rec.end = &retry
		}
		h.mu.Unlock()
	}
}

// OpenAuctions returns the number of auctions the house tracks.
func (h *House) OpenAuctions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.auctions)
}

func cloneBid(b *auction.Bid) *auction.Bid {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func cloneBlock(n *auction.BlockNumber) *auction.BlockNumber {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
