package repository

import (
	"context"
	"errors"

	"coinmarket/internal/model"

	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("商品不存在")

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Product, error) {
	if tx == nil {
		tx = r.db
	}
	var product model.Product
	err := tx.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) List(ctx context.Context, category string) ([]*model.Product, error) {
	var products []*model.Product
	query := r.db.WithContext(ctx).Model(&model.Product{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("id ASC").Find(&products).Error
	return products, err
}
