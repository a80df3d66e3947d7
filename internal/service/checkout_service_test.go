package service

import (
	"context"
	"sync"
	"testing"

	"coinmarket/internal/model"
	"coinmarket/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettle_ThousandMinusThreeHundred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hat := testutil.SeedProduct(t, f.db, "hat", 100, model.FulfillmentDigital)
	cape := testutil.SeedProduct(t, f.db, "cape", 200, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", hat.ID))
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", cape.ID))

	res, err := f.svc.Checkout.Settle(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Total)
	assert.Equal(t, int64(700), res.Balance)
	assert.Equal(t, 2, res.Granted)
	assert.Equal(t, model.DigitalDeliveryAddress, res.Address)
	assert.Equal(t, model.OrderStatusPreparing, res.Status)

	assert.Equal(t, int64(700), f.balance(t, "alice"))

	var order model.Order
	require.NoError(t, f.db.Where("order_no = ?", res.OrderNo).First(&order).Error)
	assert.Equal(t, int64(300), order.TotalPrice)
	assert.Equal(t, model.OrderSourceCart, order.Source)
	assert.Equal(t, 2, order.ItemCount)

	assert.Equal(t, int64(2), testutil.Count(t, f.db, &model.InventoryItem{}, "order_no = ?", res.OrderNo))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.CartLine{}, "1 = 1"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.OutboxMessage{}, "event_type = ? AND message_key = ?", model.EventOrderSettled, res.OrderNo))
	assert.Equal(t, int64(-300), f.journalSum(t, "alice"))
}

func TestSettle_SameItemTwiceThenEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lamp := testutil.SeedProduct(t, f.db, "lamp", 300, model.FulfillmentPhysical)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", lamp.ID))
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", lamp.ID))

	view, err := f.svc.Cart.Lines(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, int64(600), view.Total)

	res, err := f.svc.Checkout.Settle(ctx, "alice", "home address")
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Total)
	assert.Equal(t, int64(400), res.Balance)
	assert.Equal(t, "home address", res.Address)

	var orders []model.Order
	require.NoError(t, f.db.Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(600), orders[0].TotalPrice)
	assert.Equal(t, int64(2), testutil.Count(t, f.db, &model.InventoryItem{}, "order_no = ?", res.OrderNo))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.CartLine{}, "1 = 1"))

	_, err = f.svc.Checkout.Settle(ctx, "alice", "home address")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, int64(400), f.balance(t, "alice"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.Order{}, "1 = 1"))
	assert.Equal(t, f.orderTotals(t, "alice"), -f.journalSum(t, "alice"))
}

func TestSettle_OverflowingCartIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jewel := testutil.SeedProduct(t, f.db, "jewel", 1<<62, model.FulfillmentDigital)
	pin := testutil.SeedProduct(t, f.db, "pin", 100, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", jewel.ID))
	require.NoError(t, f.svc.Cart.SetQuantity(ctx, "alice", jewel.ID, 4))
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", pin.ID))

	view, err := f.svc.Cart.Lines(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, view.Overflow)
	assert.Equal(t, int64(0), view.Total)

	_, err = f.svc.Checkout.Settle(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrCartOverflow)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, IsRetryable(err))

	assert.Equal(t, f.biz.StartingBalance, f.balance(t, "alice"))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.Order{}, "1 = 1"))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.InventoryItem{}, "1 = 1"))
	assert.Equal(t, int64(2), testutil.Count(t, f.db, &model.CartLine{}, "1 = 1"))
}

func TestSettle_QuantityFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gem := testutil.SeedProduct(t, f.db, "gem", 50, model.FulfillmentDigital)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", gem.ID))
	}

	res, err := f.svc.Checkout.Settle(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Granted)
	assert.Equal(t, int64(3), testutil.Count(t, f.db, &model.InventoryItem{}, "product_id = ?", gem.ID))
}

func TestSettle_InsufficientFundsChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedAccount(t, f.db, "poor", 50)
	statue := testutil.SeedProduct(t, f.db, "statue", 100, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "poor", statue.ID))

	_, err := f.svc.Checkout.Settle(ctx, "poor", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, IsRetryable(err))

	assert.Equal(t, int64(50), f.balance(t, "poor"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.CartLine{}, "1 = 1"))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.Order{}, "1 = 1"))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.InventoryItem{}, "1 = 1"))
}

func TestSettle_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout.Settle(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, f.biz.StartingBalance, f.balance(t, "alice"))
}

func TestSettle_FreeCartIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	freebie := testutil.SeedProduct(t, f.db, "freebie", 0, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", freebie.ID))

	_, err := f.svc.Checkout.Settle(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.InventoryItem{}, "1 = 1"))
}

func TestSettle_RemovedProductBlocksCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ok := testutil.SeedProduct(t, f.db, "ok", 10, model.FulfillmentDigital)
	gone := testutil.SeedProduct(t, f.db, "gone", 10, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", ok.ID))
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", gone.ID))
	require.NoError(t, f.db.Delete(&model.Product{}, gone.ID).Error)

	_, err := f.svc.Checkout.Settle(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrInvalidCart)
	assert.Equal(t, f.biz.StartingBalance, f.balance(t, "alice"))
	assert.Equal(t, int64(2), testutil.Count(t, f.db, &model.CartLine{}, "1 = 1"))
}

func TestSettle_AddressPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shirt := testutil.SeedProduct(t, f.db, "shirt", 80, model.FulfillmentPhysical)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", shirt.ID))

	_, err := f.svc.Checkout.Settle(ctx, "alice", "   ")
	assert.ErrorIs(t, err, ErrAddressRequired)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, f.biz.StartingBalance, f.balance(t, "alice"))

	res, err := f.svc.Checkout.Settle(ctx, "alice", " 1 Harbour Road ")
	require.NoError(t, err)
	assert.Equal(t, "1 Harbour Road", res.Address)
}

func TestSettle_FailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lamp := testutil.SeedProduct(t, f.db, "lamp", 120, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", lamp.ID))
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", lamp.ID))
	outboxBefore := testutil.Count(t, f.db, &model.OutboxMessage{}, "1 = 1")

	failCreatesOn(t, f.db, "inventory_item", errDiskFull)

	_, err := f.svc.Checkout.Settle(ctx, "alice", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettlementFailed)
	assert.ErrorIs(t, err, ErrTransientStore)
	assert.ErrorIs(t, err, errDiskFull)
	assert.True(t, IsRetryable(err))

	assert.Equal(t, f.biz.StartingBalance, f.balance(t, "alice"))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.Order{}, "1 = 1"))
	assert.Equal(t, int64(0), testutil.Count(t, f.db, &model.AccountTransaction{}, "1 = 1"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.CartLine{}, "quantity = ?", 2))
	assert.Equal(t, outboxBefore, testutil.Count(t, f.db, &model.OutboxMessage{}, "1 = 1"))
}

func TestSettle_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	throne := testutil.SeedProduct(t, f.db, "throne", 600, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", throne.ID))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout.Settle(ctx, "alice", "")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrEmptyCart)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(400), f.balance(t, "alice"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.Order{}, "1 = 1"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.InventoryItem{}, "1 = 1"))
}

func TestSettle_RacesDirectPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	throne := testutil.SeedProduct(t, f.db, "throne", 600, model.FulfillmentDigital)
	require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", throne.ID))

	var (
		wg          sync.WaitGroup
		settleErr   error
		purchaseErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, settleErr = f.svc.Checkout.Settle(ctx, "alice", "")
	}()
	go func() {
		defer wg.Done()
		_, purchaseErr = f.svc.Purchase.BuyNow(ctx, "alice", throne.ID, "")
	}()
	wg.Wait()

	if settleErr == nil {
		assert.ErrorIs(t, purchaseErr, ErrInsufficientFunds)
	} else {
		assert.ErrorIs(t, settleErr, ErrInsufficientFunds)
		assert.NoError(t, purchaseErr)
	}
	assert.Equal(t, int64(400), f.balance(t, "alice"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.InventoryItem{}, "1 = 1"))
}

func TestConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cheap := testutil.SeedProduct(t, f.db, "cheap", 70, model.FulfillmentDigital)
	pricey := testutil.SeedProduct(t, f.db, "pricey", 900, model.FulfillmentDigital)

	var granted int64
	for day := 0; day < 3; day++ {
		res, err := f.svc.Income.Claim(ctx, "alice")
		require.NoError(t, err)
		granted += res.Amount

		require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", cheap.ID))
		require.NoError(t, f.svc.Cart.AddLine(ctx, "alice", cheap.ID))
		_, err = f.svc.Checkout.Settle(ctx, "alice", "")
		require.NoError(t, err)

		_, err = f.svc.Purchase.BuyNow(ctx, "alice", pricey.ID, "")
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
		f.clock.Advance(f.biz.GrantCooldown)
	}

	spent := f.orderTotals(t, "alice")
	balance := f.balance(t, "alice")
	assert.Equal(t, f.biz.StartingBalance+granted-spent, balance)
	assert.Equal(t, balance-f.biz.StartingBalance, f.journalSum(t, "alice"))
	assert.GreaterOrEqual(t, balance, int64(0))

	// 每件库存都对应一笔已提交的订单
	var orphans int64
	require.NoError(t, f.db.Table("inventory_item AS i").
		Joins("LEFT JOIN order_record AS o ON o.order_no = i.order_no").
		Where("o.id IS NULL").
		Count(&orphans).Error)
	assert.Equal(t, int64(0), orphans)
}
