package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"coinmarket/internal/config"
	"coinmarket/internal/infrastructure/cache"
	"coinmarket/internal/model"
	"coinmarket/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db    *gorm.DB
	svc   *Services
	clock *fakeClock
	biz   config.BusinessConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithViews(t, nil)
}

func newFixtureWithViews(t *testing.T, views ViewCache) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	biz := config.Default().Business
	svc := NewServices(Deps{DB: db, Business: biz, Views: views, Now: clock.Now})
	return &fixture{db: db, svc: svc, clock: clock, biz: biz}
}

// memViews 内存版视图缓存，代数语义与 Redis 实现一致
type memViews struct {
	mu          sync.Mutex
	gens        map[string]int64
	data        map[string][]byte
	beforeStore func()
}

func newMemViews() *memViews {
	return &memViews{gens: map[string]int64{}, data: map[string][]byte{}}
}

func (m *memViews) key(userID, view string) string {
	return userID + "/" + view
}

func (m *memViews) cached(userID, view string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[m.key(userID, view)]
	return ok
}

func (m *memViews) Load(_ context.Context, userID, view string, dst interface{}) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[m.key(userID, view)]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memViews) Generation(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[userID], nil
}

func (m *memViews) Store(_ context.Context, userID, view string, gen int64, value interface{}) (bool, error) {
	m.mu.Lock()
	hook := m.beforeStore
	m.beforeStore = nil
	m.mu.Unlock()
	// 模拟读库之后、回填之前有写操作提交
	if hook != nil {
		hook()
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[userID] != gen {
		return false, nil
	}
	m.data[m.key(userID, view)] = raw
	return true, nil
}

func (m *memViews) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[userID]++
	for _, view := range []string{cache.ViewCart, cache.ViewInventory} {
		delete(m.data, m.key(userID, view))
	}
	return nil
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	return testutil.ReloadAccount(t, f.db, userID).Balance
}

func (f *fixture) accountID(t *testing.T, userID string) int64 {
	t.Helper()
	return testutil.ReloadAccount(t, f.db, userID).ID
}

// journalSum 流水合计，应始终等于余额减去初始余额
func (f *fixture) journalSum(t *testing.T, userID string) int64 {
	t.Helper()
	var sum struct{ Total int64 }
	require.NoError(t, f.db.Model(&model.AccountTransaction{}).
		Select("coalesce(sum(amount), 0) AS total").
		Where("account_id = ?", f.accountID(t, userID)).
		Scan(&sum).Error)
	return sum.Total
}

func (f *fixture) orderTotals(t *testing.T, userID string) int64 {
	t.Helper()
	var sum struct{ Total int64 }
	require.NoError(t, f.db.Model(&model.Order{}).
		Select("coalesce(sum(total_price), 0) AS total").
		Where("account_id = ?", f.accountID(t, userID)).
		Scan(&sum).Error)
	return sum.Total
}

// failCreatesOn 让指定表的插入失败，用于验证事务整体回滚
func failCreatesOn(t *testing.T, db *gorm.DB, table string, cause error) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(cause)
		}
	}))
}

type failingLocker struct{ err error }

func (l failingLocker) Acquire(context.Context, string) (func(), error) {
	return nil, l.err
}

var errDiskFull = errors.New("disk full")
