package service

import (
	"context"
	"errors"

	"coinmarket/internal/model"
	"coinmarket/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type OrderPage struct {
	List     []*model.Order `json:"list"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// OrderService 订单只读查询，订单写入只发生在结算事务中
type OrderService struct {
	accounts  *AccountService
	orderRepo *repository.OrderRepository
}

func NewOrderService(db *gorm.DB, accounts *AccountService) *OrderService {
	return &OrderService{
		accounts:  accounts,
		orderRepo: repository.NewOrderRepository(db),
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func (s *OrderService) List(ctx context.Context, userID string, page, pageSize int) (*OrderPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	result := &OrderPage{List: []*model.Order{}, Page: page, PageSize: pageSize}

	account, err := s.accounts.lookup(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	orders, total, err := s.orderRepo.ListByAccountID(ctx, account.ID, page, pageSize)
	if err != nil {
		return nil, storeError("查询订单列表", err)
	}
	result.List = orders
	result.Total = total
	return result, nil
}

// Get 只能查询自己的订单
func (s *OrderService) Get(ctx context.Context, userID, orderNo string) (*model.Order, error) {
	account, err := s.accounts.lookup(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByOrderNo(ctx, account.ID, orderNo)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, storeError("查询订单", err)
	}
	return order, nil
}
