package service

import (
	"context"
	"errors"
	"time"

	"coinmarket/internal/infrastructure/cache"
	"coinmarket/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InventoryEntry struct {
	ID              int64     `json:"id"`
	ProductID       int64     `json:"product_id"`
	OrderNo         string    `json:"order_no"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	ImageURL        string    `json:"image_url"`
	FulfillmentKind string    `json:"fulfillment_kind"`
	AcquiredAt      time.Time `json:"acquired_at"`
	// Resolvable 为 false 表示商品已从目录移除，物品仍归用户所有
	Resolvable bool `json:"resolvable"`
}

type InventoryService struct {
	views         ViewCache
	log           *zap.Logger
	accounts      *AccountService
	inventoryRepo *repository.InventoryRepository
}

func NewInventoryService(db *gorm.DB, views ViewCache, log *zap.Logger, accounts *AccountService) *InventoryService {
	if views == nil {
		views = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InventoryService{
		views:         views,
		log:           log,
		accounts:      accounts,
		inventoryRepo: repository.NewInventoryRepository(db),
	}
}

// List 最新获得的排在前面
func (s *InventoryService) List(ctx context.Context, userID string) ([]InventoryEntry, error) {
	account, err := s.accounts.lookup(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return []InventoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var cached []InventoryEntry
	if hit, err := s.views.Load(ctx, userID, cache.ViewInventory, &cached); err == nil && hit {
		return cached, nil
	}

	return fillView(ctx, s.views, s.log, userID, cache.ViewInventory, func() ([]InventoryEntry, error) {
		rows, err := s.inventoryRepo.ListWithProducts(ctx, account.ID)
		if err != nil {
			return nil, storeError("查询库存", err)
		}
		entries := make([]InventoryEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, InventoryEntry{
				ID:              row.ID,
				ProductID:       row.ProductID,
				OrderNo:         row.OrderNo,
				Name:            deref(row.Name),
				Category:        deref(row.Category),
				ImageURL:        deref(row.ImageURL),
				FulfillmentKind: deref(row.FulfillmentKind),
				AcquiredAt:      row.AcquiredAt,
				Resolvable:      row.CatalogID != nil,
			})
		}
		return entries, nil
	})
}
