package service

import (
	"context"
	"errors"
	"math"
	"time"

	"coinmarket/internal/infrastructure/cache"
	"coinmarket/internal/model"
	"coinmarket/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	cartActionAdd   = "add"
	cartActionSet   = "set"
	cartActionClear = "clear"
)

// CartLineView 购物车行，价格取商品表当前值
type CartLineView struct {
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	Name            string `json:"name,omitempty"`
	UnitPrice       int64  `json:"unit_price"`
	Subtotal        int64  `json:"subtotal"`
	Category        string `json:"category,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	FulfillmentKind string `json:"fulfillment_kind,omitempty"`
	// Resolvable 为 false 表示商品已不在目录中，该行不计入总价
	Resolvable bool `json:"resolvable"`
	// Overflow 小计或累计总价超出 int64 范围
	Overflow bool `json:"overflow,omitempty"`
}

type CartView struct {
	Lines      []CartLineView `json:"lines"`
	Total      int64          `json:"total"`
	ItemCount  int            `json:"item_count"`
	HasInvalid bool           `json:"has_invalid"`
	// Overflow 为 true 时 Total 不可信，不能结算
	Overflow bool `json:"overflow,omitempty"`
}

// mulPrice 价格乘数量，溢出时 ok 为 false
func mulPrice(price int64, quantity int) (int64, bool) {
	if price < 0 || quantity < 0 {
		return 0, false
	}
	q := int64(quantity)
	if q != 0 && price > math.MaxInt64/q {
		return 0, false
	}
	return price * q, true
}

func addTotal(total, subtotal int64) (int64, bool) {
	if subtotal > math.MaxInt64-total {
		return 0, false
	}
	return total + subtotal, true
}

func buildCartView(rows []repository.CartRow) *CartView {
	view := &CartView{Lines: make([]CartLineView, 0, len(rows))}
	for _, row := range rows {
		line := CartLineView{
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
		}
		if row.CatalogID == nil || row.Price == nil {
			view.HasInvalid = true
			view.Lines = append(view.Lines, line)
			continue
		}

		line.Resolvable = true
		line.UnitPrice = *row.Price
		line.Name = deref(row.Name)
		line.Category = deref(row.Category)
		line.ImageURL = deref(row.ImageURL)
		line.FulfillmentKind = deref(row.FulfillmentKind)
		view.ItemCount += row.Quantity

		subtotal, ok := mulPrice(*row.Price, row.Quantity)
		if ok {
			line.Subtotal = subtotal
			view.Total, ok = addTotal(view.Total, subtotal)
		}
		if !ok {
			line.Overflow = true
			view.Overflow = true
		}
		view.Lines = append(view.Lines, line)
	}
	if view.Overflow {
		view.Total = 0
	}
	return view
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type CartService struct {
	db          *gorm.DB
	views       ViewCache
	log         *zap.Logger
	now         func() time.Time
	accounts    *AccountService
	cartRepo    *repository.CartRepository
	productRepo *repository.ProductRepository
	outboxRepo  *repository.OutboxRepository
}

func NewCartService(d Deps, accounts *AccountService) *CartService {
	d = d.withDefaults()
	return &CartService{
		db:          d.DB,
		views:       d.Views,
		log:         d.Logger,
		now:         d.Now,
		accounts:    accounts,
		cartRepo:    repository.NewCartRepository(d.DB),
		productRepo: repository.NewProductRepository(d.DB),
		outboxRepo:  repository.NewOutboxRepository(d.DB),
	}
}

// AddLine 加购一件，已存在的行数量加一
func (s *CartService) AddLine(ctx context.Context, userID string, productID int64) error {
	account, err := s.accounts.Provision(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.productRepo.GetByID(ctx, nil, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return storeError("查询商品", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.cartRepo.Increment(ctx, tx, account.ID, productID); err != nil {
			return err
		}
		return s.appendChange(ctx, tx, userID, productID, 1, cartActionAdd)
	})
	if err != nil {
		return storeError("加入购物车", err)
	}

	s.accounts.invalidate(ctx, userID)
	s.log.Debug("加入购物车", zap.String("user_id", userID), zap.Int64("product_id", productID))
	return nil
}

func (s *CartService) SetQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	account, err := s.accounts.Provision(ctx, userID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.cartRepo.SetQuantity(ctx, tx, account.ID, productID, quantity); err != nil {
			return err
		}
		return s.appendChange(ctx, tx, userID, productID, quantity, cartActionSet)
	})
	if errors.Is(err, repository.ErrCartLineNotFound) {
		return ErrCartLineNotFound
	}
	if err != nil {
		return storeError("修改购物车数量", err)
	}

	s.accounts.invalidate(ctx, userID)
	return nil
}

func (s *CartService) Lines(ctx context.Context, userID string) (*CartView, error) {
	account, err := s.accounts.Provision(ctx, userID)
	if err != nil {
		return nil, err
	}

	var view CartView
	if hit, err := s.views.Load(ctx, userID, cache.ViewCart, &view); err == nil && hit {
		return &view, nil
	}

	return fillView(ctx, s.views, s.log, userID, cache.ViewCart, func() (*CartView, error) {
		rows, err := s.cartRepo.ListWithProducts(ctx, nil, account.ID)
		if err != nil {
			return nil, storeError("查询购物车", err)
		}
		return buildCartView(rows), nil
	})
}

func (s *CartService) Total(ctx context.Context, userID string) (int64, error) {
	view, err := s.Lines(ctx, userID)
	if err != nil {
		return 0, err
	}
	return view.Total, nil
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	account, err := s.accounts.Provision(ctx, userID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.cartRepo.Clear(ctx, tx, account.ID); err != nil {
			return err
		}
		return s.appendChange(ctx, tx, userID, 0, 0, cartActionClear)
	})
	if err != nil {
		return storeError("清空购物车", err)
	}

	s.accounts.invalidate(ctx, userID)
	return nil
}

func (s *CartService) appendChange(ctx context.Context, tx *gorm.DB, userID string, productID int64, quantity int, action string) error {
	event := CartChangedEvent{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Action:    action,
		ChangedAt: s.now(),
	}
	return s.outboxRepo.Append(ctx, tx, model.EventCartChanged, userID, event)
}
