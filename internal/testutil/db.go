// Package testutil 测试用的内存 SQLite，带真实的事务与回滚语义
package testutil

import (
	"fmt"
	"testing"

	"coinmarket/internal/infrastructure/database"
	"coinmarket/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 打开独立的内存库并完成建表。
// 连接池只保留一个连接，并发事务依次排队执行。
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedProduct 写入一个商品
func SeedProduct(t testing.TB, db *gorm.DB, name string, price int64, kind string) *model.Product {
	t.Helper()
	product := &model.Product{Name: name, Price: price, Category: "test", FulfillmentKind: kind}
	require.NoError(t, db.Create(product).Error)
	return product
}

// SeedAccount 写入指定余额的账户
func SeedAccount(t testing.TB, db *gorm.DB, userID string, balance int64) *model.Account {
	t.Helper()
	account := &model.Account{UserID: userID, Balance: balance}
	require.NoError(t, db.Create(account).Error)
	return account
}

// ReloadAccount 直接从库里读取账户
func ReloadAccount(t testing.TB, db *gorm.DB, userID string) *model.Account {
	t.Helper()
	var account model.Account
	require.NoError(t, db.Where("user_id = ?", userID).First(&account).Error)
	return &account
}

// Count 统计满足条件的行数
func Count(t testing.TB, db *gorm.DB, value interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(value).Where(query, args...).Count(&n).Error)
	return n
}
