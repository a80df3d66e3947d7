package service

import (
	"context"
	"testing"

	"coinmarket/internal/model"
	"coinmarket/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBalance_ProvisionsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	balance, err := f.svc.Accounts.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.biz.StartingBalance, balance)

	balance, err = f.svc.Accounts.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.biz.StartingBalance, balance)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.Account{}, "user_id = ?", "alice"))
}

func TestGetBalance_RequiresActor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Accounts.GetBalance(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestDebitNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedAccount(t, f.db, "bob", 100)

	t.Run("more than balance is rejected without mutation", func(t *testing.T) {
		_, err := f.svc.Accounts.DebitNow(ctx, "bob", 101, LedgerRef{})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, int64(100), f.balance(t, "bob"))
		assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.AccountTransaction{}, "1 = 1"))
	})

	t.Run("zero is a no-op", func(t *testing.T) {
		balance, err := f.svc.Accounts.DebitNow(ctx, "bob", 0, LedgerRef{})
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)
		assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.AccountTransaction{}, "1 = 1"))
	})

	t.Run("negative is a validation error", func(t *testing.T) {
		_, err := f.svc.Accounts.DebitNow(ctx, "bob", -5, LedgerRef{})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("exact balance empties the account", func(t *testing.T) {
		balance, err := f.svc.Accounts.DebitNow(ctx, "bob", 100, LedgerRef{Remark: "all in"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
		assert.Equal(t, int64(0), f.balance(t, "bob"))
		assert.Equal(t, int64(-100), f.journalSum(t, "bob"))
	})
}

func TestCreditNow_JournalMatchesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Accounts.CreditNow(ctx, "carol", 50, LedgerRef{})
	require.NoError(t, err)
	balance, err := f.svc.Accounts.DebitNow(ctx, "carol", 30, LedgerRef{})
	require.NoError(t, err)

	assert.Equal(t, f.biz.StartingBalance+20, balance)
	assert.Equal(t, balance-f.biz.StartingBalance, f.journalSum(t, "carol"))

	var rows []model.AccountTransaction
	require.NoError(t, f.db.Order("id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, model.TransactionTypeGrant, rows[0].Type)
	assert.Equal(t, rows[0].BalanceAfter, rows[1].BalanceBefore)
	assert.Equal(t, model.TransactionTypePurchase, rows[1].Type)
	assert.Equal(t, int64(-30), rows[1].Amount)
}

func TestCreditNow_LockFailureIsRetryable(t *testing.T) {
	db := testutil.NewDB(t)
	accounts := NewAccountService(Deps{DB: db, Locker: failingLocker{err: errDiskFull}})

	_, err := accounts.CreditNow(context.Background(), "dave", 10, LedgerRef{})
	assert.ErrorIs(t, err, ErrTransientStore)
	assert.True(t, IsRetryable(err))
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	testutil.SeedAccount(t, f.db, "low", 10)
	testutil.SeedAccount(t, f.db, "high", 900)
	testutil.SeedAccount(t, f.db, "mid", 300)

	entries, err := f.svc.Accounts.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "high", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "mid", entries[1].UserID)

	entries, err = f.svc.Accounts.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
