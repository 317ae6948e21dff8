package ledger

import (
	"testing"

	"github.com/serpfi/auctiond/pkg/auction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositWithdraw(t *testing.T) {
	l := New()

	l.Deposit("SETUSD", "alice", 100)
	assert.Equal(t, auction.Balance(100), l.Balance("SETUSD", "alice"))

	require.NoError(t, l.Withdraw("SETUSD", "alice", 40))
	assert.Equal(t, auction.Balance(60), l.Balance("SETUSD", "alice"))

	assert.ErrorIs(t, l.Withdraw("SETUSD", "alice", 61), ErrInsufficientBalance)
	assert.Equal(t, auction.Balance(60), l.Balance("SETUSD", "alice"))
}

func TestTransfer(t *testing.T) {
	l := New()
	l.Deposit("SETUSD", "alice", 100)

	require.NoError(t, l.Transfer("SETUSD", "alice", "bob", 30))
	assert.Equal(t, auction.Balance(70), l.Balance("SETUSD", "alice"))
	assert.Equal(t, auction.Balance(30), l.Balance("SETUSD", "bob"))

	assert.ErrorIs(t, l.Transfer("SETUSD", "bob", "alice", 31), ErrInsufficientBalance)

	// Self transfers and zero amounts are no-ops.
	require.NoError(t, l.Transfer("SETUSD", "alice", "alice", 1000))
	require.NoError(t, l.Transfer("SETUSD", "bob", "alice", 0))
	assert.Equal(t, auction.Balance(70), l.Balance("SETUSD", "alice"))
}

func TestCurrenciesAreIndependent(t *testing.T) {
	l := New()
	l.Deposit("SETUSD", "alice", 100)

	assert.Equal(t, auction.Balance(0), l.Balance("BTC", "alice"))
	assert.ErrorIs(t, l.Withdraw("BTC", "alice", 1), ErrInsufficientBalance)
}

func TestRefCounting(t *testing.T) {
	l := New()

	assert.Equal(t, 0, l.Refs("alice"))
	l.IncRef("alice")
	l.IncRef("alice")
	assert.Equal(t, 2, l.Refs("alice"))

	l.DecRef("alice")
	assert.Equal(t, 1, l.Refs("alice"))

	// Never goes negative.
	l.DecRef("alice")
	l.DecRef("alice")
	assert.Equal(t, 0, l.Refs("alice"))
}
