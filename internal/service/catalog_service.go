package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coinmarket/internal/model"
	"coinmarket/internal/repository"

	"gorm.io/gorm"
)

type CreateProductInput struct {
	Name            string
	Description     string
	Price           int64
	Category        string
	ImageURL        string
	FulfillmentKind string
}

// CatalogService 商品目录的薄封装，供商城页和管理员上架使用
type CatalogService struct {
	productRepo *repository.ProductRepository
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{productRepo: repository.NewProductRepository(db)}
}

func (s *CatalogService) List(ctx context.Context, category string) ([]*model.Product, error) {
	products, err := s.productRepo.List(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, storeError("查询商品列表", err)
	}
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, storeError("查询商品", err)
	}
	return product, nil
}

func (s *CatalogService) Create(ctx context.Context, in CreateProductInput) (*model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: 商品名称不能为空", ErrValidation)
	}
	if in.Price < 0 {
		return nil, ErrInvalidAmount
	}
	if in.Price > model.MaxPrice {
		return nil, ErrPriceTooHigh
	}
	kind := strings.ToUpper(strings.TrimSpace(in.FulfillmentKind))
	if kind == "" {
		kind = model.FulfillmentDigital
	}
	if !model.ValidFulfillment(kind) {
		return nil, fmt.Errorf("%w: 不支持的交付方式 %q", ErrValidation, in.FulfillmentKind)
	}

	product := &model.Product{
		Name:            name,
		Description:     in.Description,
		Price:           in.Price,
		Category:        strings.TrimSpace(in.Category),
		ImageURL:        strings.TrimSpace(in.ImageURL),
		FulfillmentKind: kind,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, storeError("创建商品", err)
	}
	return product, nil
}
