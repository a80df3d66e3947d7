package repository

import (
	"context"
	"time"

	"coinmarket/internal/model"

	"gorm.io/gorm"
)

const inventoryBatchSize = 200

// InventoryRow 库存与商品信息的联结结果。
// 商品已下架时 CatalogID 为 nil，库存行本身仍然保留。
type InventoryRow struct {
	ID              int64
	ProductID       int64
	OrderNo         string
	AcquiredAt      time.Time
	CatalogID       *int64
	Name            *string
	Category        *string
	ImageURL        *string
	FulfillmentKind *string
}

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// CreateBatch 批量写入库存，每件商品一行
func (r *InventoryRepository) CreateBatch(ctx context.Context, tx *gorm.DB, items []*model.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).CreateInBatches(items, inventoryBatchSize).Error
}

func (r *InventoryRepository) ListWithProducts(ctx context.Context, accountID int64) ([]InventoryRow, error) {
	var rows []InventoryRow
	err := r.db.WithContext(ctx).
		Table("inventory_item AS i").
		Select("i.id, i.product_id, i.order_no, i.acquired_at, p.id AS catalog_id, p.name, p.category, p.image_url, p.fulfillment_kind").
		Joins("LEFT JOIN product AS p ON p.id = i.product_id").
		Where("i.account_id = ?", accountID).
		Order("i.acquired_at DESC").
		Order("i.id DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *InventoryRepository) CountByProduct(ctx context.Context, accountID, productID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.InventoryItem{}).
		Where("account_id = ? AND product_id = ?", accountID, productID).
		Count(&n).Error
	return n, err
}
