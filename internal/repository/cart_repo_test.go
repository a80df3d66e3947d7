package repository

import (
	"context"
	"testing"

	"coinmarket/internal/model"
	"coinmarket/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRepository_IncrementUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCartRepository(db)
	ctx := context.Background()
	product := testutil.SeedProduct(t, db, "scarf", 15, model.FulfillmentPhysical)

	require.NoError(t, repo.Increment(ctx, nil, 1, product.ID))
	require.NoError(t, repo.Increment(ctx, nil, 1, product.ID))
	require.NoError(t, repo.Increment(ctx, nil, 2, product.ID))

	rows, err := repo.ListWithProducts(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Quantity)
	require.NotNil(t, rows[0].Price)
	assert.Equal(t, int64(15), *rows[0].Price)
	require.NotNil(t, rows[0].FulfillmentKind)
	assert.Equal(t, model.FulfillmentPhysical, *rows[0].FulfillmentKind)

	removed, err := repo.Clear(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, int64(1), testutil.Count(t, db, &model.CartLine{}, "account_id = ?", 2))
}

func TestCartRepository_MissingProductLeavesNulls(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCartRepository(db)
	require.NoError(t, db.Create(&model.CartLine{AccountID: 1, ProductID: 99, Quantity: 1}).Error)

	rows, err := repo.ListWithProducts(context.Background(), nil, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].CatalogID)
	assert.Nil(t, rows[0].Price)
}

func TestCartRepository_IncrementMySQL(t *testing.T) {
	db, mock := newMySQLMock(t)
	repo := NewCartRepository(db)

	mock.ExpectExec("INSERT INTO `cart_line` .* ON DUPLICATE KEY UPDATE `quantity`=cart_line.quantity \\+ \\?").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Increment(context.Background(), nil, 1, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartRepository_SetQuantityMissingLine(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCartRepository(db)
	err := repo.SetQuantity(context.Background(), nil, 1, 1, 3)
	assert.ErrorIs(t, err, ErrCartLineNotFound)
}
