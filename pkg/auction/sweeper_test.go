package auction_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpfi/auctiond/pkg/auction"
)

func TestUnwindSweepRequiresShutdown(t *testing.T) {
	f := newFixture(t)
	f.escrowAuction(alice, btc, 10, 100)

	n, err := f.engine.RunUnwindSweep(time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.submits.submitted())
}

func TestUnwindSweepBudgetAndCursor(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.escrowAuction(alice, btc, 10, 100)
	}
	require.NoError(t, f.engine.Store().SetSweepBudget(2))
	f.shutdown.Trigger()

	base := time.Unix(1000, 0)

	n, err := f.engine.RunUnwindSweep(base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []auction.AuctionID{0, 1}, f.submits.submitted())

	cursor, ok, err := f.engine.Store().SweepCursor()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auction.AuctionID(2), cursor)

	n, err = f.engine.RunUnwindSweep(base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []auction.AuctionID{0, 1, 2, 3}, f.submits.submitted())

	n, err = f.engine.RunUnwindSweep(base.Add(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []auction.AuctionID{0, 1, 2, 3, 4}, f.submits.submitted())

	// Exhaustion clears the cursor so the next pass starts over.
	_, ok, err = f.engine.Store().SweepCursor()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnwindSweepLockSkipsConcurrentStep(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.escrowAuction(alice, btc, 10, 100)
	}
	require.NoError(t, f.engine.Store().SetSweepBudget(1))
	f.shutdown.Trigger()

	base := time.Unix(1000, 0)

	n, err := f.engine.RunUnwindSweep(base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Within the lock window the step is suppressed.
	n, err = f.engine.RunUnwindSweep(base.Add(10 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// After it lapses the sweep resumes from the cursor.
	n, err = f.engine.RunUnwindSweep(base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []auction.AuctionID{0, 1}, f.submits.submitted())
}

func TestUnwindSweepCursorSkipsDestroyedAuction(t *testing.T) {
	f := newFixture(t)
	f.setFeedPrices()
	for i := 0; i < 4; i++ {
		f.escrowAuction(alice, btc, 10, 100)
	}
	require.NoError(t, f.engine.Store().SetSweepBudget(2))
	f.shutdown.Trigger()

	base := time.Unix(1000, 0)

	n, err := f.engine.RunUnwindSweep(base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The auction the cursor points at disappears before the next step;
	// iteration resumes at the next live id instead of stalling.
	require.NoError(t, f.engine.Cancel(2))

	n, err = f.engine.RunUnwindSweep(base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []auction.AuctionID{0, 1, 3}, f.submits.submitted())
}
