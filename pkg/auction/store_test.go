package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpfi/auctiond/pkg/storage"
)

func TestStoreAuctionRoundTrip(t *testing.T) {
	s := NewStore(storage.New())

	a, err := s.GetAuction(7)
	require.NoError(t, err)
	assert.Nil(t, a)

	in := &CollateralAuction{ID: 7, Owner: "alice", Currency: "BTC", Amount: 10, Target: 100, StartTime: 1}
	require.NoError(t, s.PutAuction(in))

	out, err := s.GetAuction(7)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, out)

	require.NoError(t, s.DeleteAuction(7))
	out, err = s.GetAuction(7)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStoreAscendAuctionsOrderAndResume(t *testing.T) {
	s := NewStore(storage.New())

	for _, id := range []AuctionID{9, 1, 5} {
		require.NoError(t, s.PutAuction(&CollateralAuction{ID: id, Amount: 1}))
	}

	var seen []AuctionID
	require.NoError(t, s.AscendAuctions(0, func(a *CollateralAuction) bool {
		seen = append(seen, a.ID)
		return true
	}))
	assert.Equal(t, []AuctionID{1, 5, 9}, seen)

	// Resuming from an id with no live record skips forward.
	seen = nil
	require.NoError(t, s.AscendAuctions(2, func(a *CollateralAuction) bool {
		seen = append(seen, a.ID)
		return true
	}))
	assert.Equal(t, []AuctionID{5, 9}, seen)

	// An early false stops the walk.
	seen = nil
	require.NoError(t, s.AscendAuctions(0, func(a *CollateralAuction) bool {
		seen = append(seen, a.ID)
		return false
	}))
	assert.Equal(t, []AuctionID{1}, seen)
}

func TestStoreAggregates(t *testing.T) {
	s := NewStore(storage.New())

	v, err := s.TotalCollateralInAuction("BTC")
	require.NoError(t, err)
	assert.Equal(t, Balance(0), v)

	require.NoError(t, s.SetTotalCollateralInAuction("BTC", 42))
	require.NoError(t, s.SetTotalTargetInAuction(1000))

	v, err = s.TotalCollateralInAuction("BTC")
	require.NoError(t, err)
	assert.Equal(t, Balance(42), v)

	other, err := s.TotalCollateralInAuction("ETH")
	require.NoError(t, err)
	assert.Equal(t, Balance(0), other)

	tt, err := s.TotalTargetInAuction()
	require.NoError(t, err)
	assert.Equal(t, Balance(1000), tt)
}

func TestStoreSweepCursor(t *testing.T) {
	s := NewStore(storage.New())

	_, ok, err := s.SweepCursor()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSweepCursor(17))
	id, ok, err := s.SweepCursor()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, AuctionID(17), id)

	require.NoError(t, s.ClearSweepCursor())
	_, ok, err = s.SweepCursor()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSweepLockTimeBoxed(t *testing.T) {
	s := NewStore(storage.New())
	now := time.Unix(1000, 0)

	got, err := s.TryAcquireSweepLock(now, time.Second)
	require.NoError(t, err)
	assert.True(t, got)

	// Held within the window, including by the original holder.
	got, err = s.TryAcquireSweepLock(now.Add(500*time.Millisecond), time.Second)
	require.NoError(t, err)
	assert.False(t, got)

	// Lapses once the window passes, no release step needed.
	got, err = s.TryAcquireSweepLock(now.Add(time.Second), time.Second)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestStoreSweepBudgetDefaultAndOverride(t *testing.T) {
	s := NewStore(storage.New())

	n, err := s.SweepBudget()
	require.NoError(t, err)
	assert.Equal(t, DefaultSweepBudget, n)

	require.NoError(t, s.SetSweepBudget(3))
	n, err = s.SweepBudget()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
