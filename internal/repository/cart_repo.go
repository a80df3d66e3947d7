package repository

import (
	"context"
	"errors"

	"coinmarket/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCartLineNotFound = errors.New("购物车中没有该商品")

// CartRow 购物车行与实时商品信息的联结结果。
// 商品已下架时 CatalogID 为 nil，其余商品字段也为空。
type CartRow struct {
	LineID          int64
	ProductID       int64
	Quantity        int
	CatalogID       *int64
	Name            *string
	Price           *int64
	Category        *string
	ImageURL        *string
	FulfillmentKind *string
}

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Increment 已有该商品则数量加一，否则插入数量为 1 的新行
func (r *CartRepository) Increment(ctx context.Context, tx *gorm.DB, accountID, productID int64) error {
	line := &model.CartLine{
		AccountID: accountID,
		ProductID: productID,
		Quantity:  1,
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity": gorm.Expr("cart_line.quantity + ?", 1),
			}),
		}).
		Create(line).Error
}

func (r *CartRepository) SetQuantity(ctx context.Context, tx *gorm.DB, accountID, productID int64, quantity int) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.CartLine{}).
		Where("account_id = ? AND product_id = ?", accountID, productID).
		Update("quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

// ListWithProducts 读取购物车行并左联结商品表，价格以商品表当前值为准
func (r *CartRepository) ListWithProducts(ctx context.Context, tx *gorm.DB, accountID int64) ([]CartRow, error) {
	var rows []CartRow
	err := r.conn(tx).WithContext(ctx).
		Table("cart_line AS c").
		Select("c.id AS line_id, c.product_id, c.quantity, p.id AS catalog_id, p.name, p.price, p.category, p.image_url, p.fulfillment_kind").
		Joins("LEFT JOIN product AS p ON p.id = c.product_id").
		Where("c.account_id = ?", accountID).
		Order("c.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *CartRepository) Clear(ctx context.Context, tx *gorm.DB, accountID int64) (int64, error) {
	result := r.conn(tx).WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&model.CartLine{})
	return result.RowsAffected, result.Error
}
