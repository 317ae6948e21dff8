package treasury_test

import (
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpfi/auctiond/pkg/auction"
	"github.com/serpfi/auctiond/pkg/dex"
	"github.com/serpfi/auctiond/pkg/ledger"
	"github.com/serpfi/auctiond/pkg/treasury"
)

const (
	btc    auction.CurrencyID = "BTC"
	setusd auction.CurrencyID = "SETUSD"

	alice auction.AccountID = "alice"
	lp    auction.AccountID = "lp"
)

func newTreasury(t *testing.T) (*treasury.Treasury, *dex.DEX, *ledger.Ledger) {
	t.Helper()
	level, _ := log.ToLevel("debug")
	logger := log.NewTestLogger(level)
	accounts := ledger.New()
	exchange := dex.New(accounts, "dex", logger)
	return treasury.New(accounts, exchange, "treasury", setusd, logger), exchange, accounts
}

func TestCollateralEscrow(t *testing.T) {
	tr, _, accounts := newTreasury(t)
	accounts.Deposit(btc, alice, 100)

	require.NoError(t, tr.DepositCollateral(alice, btc, 60))
	assert.Equal(t, auction.Balance(60), tr.TotalCollaterals(btc))
	assert.Equal(t, auction.Balance(40), accounts.Balance(btc, alice))

	require.NoError(t, tr.WithdrawCollateral(alice, btc, 10))
	assert.Equal(t, auction.Balance(50), tr.TotalCollaterals(btc))
	assert.Equal(t, auction.Balance(50), accounts.Balance(btc, alice))

	assert.ErrorIs(t, tr.WithdrawCollateral(alice, btc, 51), treasury.ErrInsufficientCollateral)
}

func TestDepositCollateralInsufficientFunds(t *testing.T) {
	tr, _, accounts := newTreasury(t)
	accounts.Deposit(btc, alice, 5)

	assert.ErrorIs(t, tr.DepositCollateral(alice, btc, 10), ledger.ErrInsufficientBalance)
	assert.Equal(t, auction.Balance(0), tr.TotalCollaterals(btc))
}

func TestSurplusPool(t *testing.T) {
	tr, _, accounts := newTreasury(t)
	accounts.Deposit(setusd, alice, 100)

	require.NoError(t, tr.DepositSurplus(alice, 70))
	assert.Equal(t, auction.Balance(70), tr.SurplusPool())
	assert.Equal(t, auction.Balance(30), accounts.Balance(setusd, alice))

	assert.ErrorIs(t, tr.DepositSurplus(alice, 31), ledger.ErrInsufficientBalance)
	assert.Equal(t, auction.Balance(70), tr.SurplusPool())
}

func TestRefundSurplusReversesDeposit(t *testing.T) {
	tr, _, accounts := newTreasury(t)
	accounts.Deposit(setusd, alice, 100)
	require.NoError(t, tr.DepositSurplus(alice, 70))

	require.NoError(t, tr.RefundSurplus(alice, 70))
	assert.Equal(t, auction.Balance(0), tr.SurplusPool())
	assert.Equal(t, auction.Balance(100), accounts.Balance(setusd, alice))

	assert.ErrorIs(t, tr.RefundSurplus(alice, 1), treasury.ErrInsufficientSurplus)
}

func TestIssueDebitMints(t *testing.T) {
	tr, _, accounts := newTreasury(t)

	require.NoError(t, tr.IssueDebit(alice, 80))
	assert.Equal(t, auction.Balance(80), accounts.Balance(setusd, alice))
	assert.Equal(t, auction.Balance(80), tr.DebitPool())

	tr.OnSystemDebit(20)
	assert.Equal(t, auction.Balance(100), tr.DebitPool())
}

func TestOnSystemDebitSaturates(t *testing.T) {
	tr, _, _ := newTreasury(t)

	tr.OnSystemDebit(^auction.Balance(0) - 1)
	tr.OnSystemDebit(100)
	assert.Equal(t, ^auction.Balance(0), tr.DebitPool())
}

func TestSwapCollateralToStable(t *testing.T) {
	tr, exchange, accounts := newTreasury(t)

	accounts.Deposit(btc, lp, 100)
	accounts.Deposit(setusd, lp, 1000)
	require.NoError(t, exchange.AddLiquidity(lp, btc, setusd, 100, 1000))

	accounts.Deposit(btc, alice, 100)
	require.NoError(t, tr.DepositCollateral(alice, btc, 100))

	proceeds, err := tr.SwapCollateralToStable([]auction.CurrencyID{btc, setusd}, 100)
	require.NoError(t, err)
	assert.Equal(t, auction.Balance(498), proceeds)
	assert.Equal(t, auction.Balance(498), tr.SurplusPool())
	assert.Equal(t, auction.Balance(0), tr.TotalCollaterals(btc))
}

func TestSwapCollateralToStableFailureRestoresEscrow(t *testing.T) {
	tr, _, accounts := newTreasury(t)

	accounts.Deposit(btc, alice, 100)
	require.NoError(t, tr.DepositCollateral(alice, btc, 100))

	// No pool exists, so the swap fails and the escrow is untouched.
	_, err := tr.SwapCollateralToStable([]auction.CurrencyID{btc, setusd}, 100)
	assert.ErrorIs(t, err, dex.ErrInsufficientLiquidity)
	assert.Equal(t, auction.Balance(100), tr.TotalCollaterals(btc))
	assert.Equal(t, auction.Balance(0), tr.SurplusPool())

	_, err = tr.SwapCollateralToStable([]auction.CurrencyID{btc, setusd}, 200)
	assert.ErrorIs(t, err, treasury.ErrInsufficientCollateral)

	_, err = tr.SwapCollateralToStable([]auction.CurrencyID{btc}, 10)
	assert.ErrorIs(t, err, treasury.ErrInvalidSwapPath)
}
