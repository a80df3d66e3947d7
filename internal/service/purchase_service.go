package service

import (
	"context"
	"errors"
	"time"

	"coinmarket/internal/model"
	"coinmarket/internal/repository"
	"coinmarket/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PurchaseResult struct {
	OrderNo   string `json:"order_no"`
	ProductID int64  `json:"product_id"`
	Price     int64  `json:"price"`
	Balance   int64  `json:"balance"`
	Address   string `json:"address"`
	Status    string `json:"status"`
}

// PurchaseService 立即购买，绕过购物车，购物车内容保持不变
type PurchaseService struct {
	log           *zap.Logger
	now           func() time.Time
	accounts      *AccountService
	productRepo   *repository.ProductRepository
	orderRepo     *repository.OrderRepository
	inventoryRepo *repository.InventoryRepository
	outboxRepo    *repository.OutboxRepository
}

func NewPurchaseService(d Deps, accounts *AccountService) *PurchaseService {
	d = d.withDefaults()
	return &PurchaseService{
		log:           d.Logger,
		now:           d.Now,
		accounts:      accounts,
		productRepo:   repository.NewProductRepository(d.DB),
		orderRepo:     repository.NewOrderRepository(d.DB),
		inventoryRepo: repository.NewInventoryRepository(d.DB),
		outboxRepo:    repository.NewOutboxRepository(d.DB),
	}
}

func (s *PurchaseService) BuyNow(ctx context.Context, userID string, productID int64, address string) (*PurchaseResult, error) {
	var result *PurchaseResult
	err := s.accounts.withLockedAccount(ctx, userID, func(tx *gorm.DB, account *model.Account) error {
		product, err := s.productRepo.GetByID(ctx, tx, productID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return ErrProductNotFound
			}
			return storeError("查询商品", err)
		}

		shipTo, err := resolveAddress(address, []string{product.FulfillmentKind})
		if err != nil {
			return err
		}
		if account.Balance < product.Price {
			return ErrInsufficientFunds
		}

		res, err := s.apply(ctx, tx, userID, account, product, shipTo)
		if err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return err
			}
			return settlementError(err)
		}
		result = res
		return nil
	})
	if err != nil {
		if result != nil {
			err = settlementError(err)
		}
		logFailure(s.log, "立即购买失败", userID, err)
		return nil, err
	}

	s.accounts.invalidate(ctx, userID)
	s.log.Info("立即购买成功",
		zap.String("user_id", userID),
		zap.String("order_no", result.OrderNo),
		zap.Int64("product_id", productID),
		zap.Int64("amount", result.Price),
	)
	return result, nil
}

func (s *PurchaseService) apply(ctx context.Context, tx *gorm.DB, userID string, account *model.Account, product *model.Product, address string) (*PurchaseResult, error) {
	orderNo := idgen.GenerateOrderNo()
	now := s.now()

	ref := LedgerRef{
		Type:    model.TransactionTypePurchase,
		OrderNo: orderNo,
		Remark:  "立即购买-" + product.Name,
	}
	if err := s.accounts.Debit(ctx, tx, account, product.Price, ref); err != nil {
		return nil, err
	}

	order := &model.Order{
		OrderNo:    orderNo,
		AccountID:  account.ID,
		TotalPrice: product.Price,
		ItemCount:  1,
		Status:     model.OrderStatusPreparing,
		Source:     model.OrderSourceDirect,
		Address:    address,
	}
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, storeError("创建订单", err)
	}

	item := &model.InventoryItem{
		AccountID:  account.ID,
		ProductID:  product.ID,
		OrderNo:    orderNo,
		AcquiredAt: now,
	}
	if err := s.inventoryRepo.CreateBatch(ctx, tx, []*model.InventoryItem{item}); err != nil {
		return nil, storeError("写入库存", err)
	}

	event := PurchaseCompletedEvent{
		OrderNo:     orderNo,
		UserID:      userID,
		ProductID:   product.ID,
		Price:       product.Price,
		Address:     address,
		Balance:     account.Balance,
		PurchasedAt: now,
	}
	if err := s.outboxRepo.Append(ctx, tx, model.EventPurchaseCompleted, orderNo, event); err != nil {
		return nil, storeError("写入消息", err)
	}

	return &PurchaseResult{
		OrderNo:   orderNo,
		ProductID: product.ID,
		Price:     product.Price,
		Balance:   account.Balance,
		Address:   address,
		Status:    order.Status,
	}, nil
}
