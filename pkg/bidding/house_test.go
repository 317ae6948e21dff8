package bidding

import (
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpfi/auctiond/pkg/auction"
)

type stubHandler struct {
	accept  bool
	change  auction.AuctionEndChange
	resolve bool

	bids  []auction.Bid
	ended []auction.AuctionID
}

func (h *stubHandler) OnNewBid(now auction.BlockNumber, id auction.AuctionID, bid auction.Bid, last *auction.Bid) auction.OnNewBidResult {
	h.bids = append(h.bids, bid)
	return auction.OnNewBidResult{AcceptBid: h.accept, AuctionEndChange: h.change}
}

func (h *stubHandler) OnAuctionEnded(id auction.AuctionID, winner *auction.Bid) bool {
	h.ended = append(h.ended, id)
	return h.resolve
}

func newTestHouse(handler Handler) *House {
	level, _ := log.ToLevel("debug")
	h := NewHouse(log.NewTestLogger(level))
	h.SetHandler(handler)
	return h
}

func TestNewAuctionAssignsSequentialIDs(t *testing.T) {
	h := newTestHouse(&stubHandler{})

	end := auction.BlockNumber(10)
	id0, err := h.NewAuction(1, &end)
	require.NoError(t, err)
	id1, err := h.NewAuction(1, nil)
	require.NoError(t, err)
	assert.Equal(t, auction.AuctionID(0), id0)
	assert.Equal(t, auction.AuctionID(1), id1)
	assert.Equal(t, 2, h.OpenAuctions())

	_, err = h.NewAuction(10, &end)
	assert.ErrorIs(t, err, ErrInvalidEnd)
}

func TestBidUnknownAuction(t *testing.T) {
	h := newTestHouse(&stubHandler{accept: true})
	assert.ErrorIs(t, h.Bid("bob", 42, 10), ErrAuctionNotExists)
}

func TestBidRejectedKeepsState(t *testing.T) {
	handler := &stubHandler{accept: false}
	h := newTestHouse(handler)
	end := auction.BlockNumber(10)
	id, _ := h.NewAuction(1, &end)

	assert.ErrorIs(t, h.Bid("bob", id, 10), ErrBidNotAccepted)

	info, ok := h.Auction(id)
	require.True(t, ok)
	assert.Nil(t, info.Bid)
	assert.Equal(t, auction.BlockNumber(10), *info.End)
	assert.Len(t, handler.bids, 1)
}

func TestBidAcceptedUpdatesRecord(t *testing.T) {
	handler := &stubHandler{accept: true, change: auction.NewEnd(20)}
	h := newTestHouse(handler)
	end := auction.BlockNumber(10)
	id, _ := h.NewAuction(1, &end)

	require.NoError(t, h.Bid("bob", id, 10))

	info, ok := h.Auction(id)
	require.True(t, ok)
	require.NotNil(t, info.Bid)
	assert.Equal(t, auction.AccountID("bob"), info.Bid.Bidder)
	assert.Equal(t, auction.Balance(10), info.Bid.Price)
	assert.Equal(t, auction.BlockNumber(20), *info.End)
}

func TestBidAcceptedWithoutEndChange(t *testing.T) {
	handler := &stubHandler{accept: true, change: auction.NoChange()}
	h := newTestHouse(handler)
	end := auction.BlockNumber(10)
	id, _ := h.NewAuction(1, &end)

	require.NoError(t, h.Bid("bob", id, 10))

	info, _ := h.Auction(id)
	assert.Equal(t, auction.BlockNumber(10), *info.End)
}

func TestOnBlockResolvesDueAuctions(t *testing.T) {
	handler := &stubHandler{accept: true, resolve: true}
	h := newTestHouse(handler)
	end := auction.BlockNumber(10)
	id, _ := h.NewAuction(1, &end)

	h.OnBlock(9)
	assert.Empty(t, handler.ended)
	assert.Equal(t, auction.BlockNumber(9), h.CurrentBlock())

	h.OnBlock(10)
	assert.Equal(t, []auction.AuctionID{id}, handler.ended)
	assert.Equal(t, 0, h.OpenAuctions())
}

func TestOnBlockReschedulesUnresolved(t *testing.T) {
	handler := &stubHandler{resolve: false}
	h := newTestHouse(handler)
	end := auction.BlockNumber(10)
	id, _ := h.NewAuction(1, &end)

	h.OnBlock(10)
	assert.Equal(t, []auction.AuctionID{id}, handler.ended)
	assert.Equal(t, 1, h.OpenAuctions())

	info, ok := h.Auction(id)
	require.True(t, ok)
	assert.Equal(t, auction.BlockNumber(11), *info.End)

	// It comes due again on the next block.
	h.OnBlock(11)
	assert.Equal(t, []auction.AuctionID{id, id}, handler.ended)
}

func TestAuctionsWithoutEndNeverResolve(t *testing.T) {
	handler := &stubHandler{resolve: true}
	h := newTestHouse(handler)
	h.NewAuction(1, nil)

	h.OnBlock(1_000_000)
	assert.Empty(t, handler.ended)
	assert.Equal(t, 1, h.OpenAuctions())
}

func TestRemoveAuction(t *testing.T) {
	h := newTestHouse(&stubHandler{})
	end := auction.BlockNumber(10)
	id, _ := h.NewAuction(1, &end)

	h.RemoveAuction(id)
	_, ok := h.Auction(id)
	assert.False(t, ok)
	assert.Equal(t, 0, h.OpenAuctions())
}
