package service

import (
	"context"
	"time"

	"coinmarket/internal/config"
	"coinmarket/internal/infrastructure/cache"
	"coinmarket/internal/infrastructure/lock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Locker 用户级互斥锁，返回的函数用于释放
type Locker interface {
	Acquire(ctx context.Context, userID string) (func(), error)
}

// ViewCache 按用户缓存的只读视图。
// 读库前取 Generation，回填时带上；期间发生过 Invalidate 则 Store 放弃写入。
type ViewCache interface {
	Load(ctx context.Context, userID, view string, dst interface{}) (bool, error)
	Generation(ctx context.Context, userID string) (int64, error)
	Store(ctx context.Context, userID, view string, gen int64, value interface{}) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

// fillView 读库并在代数未变时回填缓存，缓存故障只记日志
func fillView[T any](ctx context.Context, views ViewCache, log *zap.Logger, userID, view string, read func() (T, error)) (T, error) {
	gen, genErr := views.Generation(ctx, userID)
	value, err := read()
	if err != nil {
		return value, err
	}
	if genErr != nil {
		log.Warn("读取缓存代数失败", zap.String("user_id", userID), zap.String("view", view), zap.Error(genErr))
		return value, nil
	}
	if _, err := views.Store(ctx, userID, view, gen, value); err != nil {
		log.Warn("写入视图缓存失败", zap.String("user_id", userID), zap.String("view", view), zap.Error(err))
	}
	return value, nil
}

// Deps 各服务共享的依赖
type Deps struct {
	DB       *gorm.DB
	Business config.BusinessConfig
	Locker   Locker
	Views    ViewCache
	Logger   *zap.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = lock.Nop{}
	}
	if d.Views == nil {
		d.Views = cache.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Services 进程内全部业务服务
type Services struct {
	Accounts  *AccountService
	Income    *IncomeService
	Cart      *CartService
	Checkout  *CheckoutService
	Purchase  *PurchaseService
	Orders    *OrderService
	Inventory *InventoryService
	Catalog   *CatalogService
}

func NewServices(d Deps) *Services {
	d = d.withDefaults()
	accounts := NewAccountService(d)
	return &Services{
		Accounts:  accounts,
		Income:    NewIncomeService(d, accounts),
		Cart:      NewCartService(d, accounts),
		Checkout:  NewCheckoutService(d, accounts),
		Purchase:  NewPurchaseService(d, accounts),
		Orders:    NewOrderService(d.DB, accounts),
		Inventory: NewInventoryService(d.DB, d.Views, d.Logger, accounts),
		Catalog:   NewCatalogService(d.DB),
	}
}
