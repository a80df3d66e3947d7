package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinmarket/internal/model"
	"coinmarket/internal/repository"
	"coinmarket/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SettleResult struct {
	OrderNo string `json:"order_no"`
	Total   int64  `json:"total"`
	Balance int64  `json:"balance"`
	// Granted 本次写入库存的件数
	Granted int    `json:"granted"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

// CheckoutService 购物车结算。扣款、订单、库存、清空购物车和消息在同一事务中提交
type CheckoutService struct {
	log           *zap.Logger
	now           func() time.Time
	accounts      *AccountService
	cartRepo      *repository.CartRepository
	orderRepo     *repository.OrderRepository
	inventoryRepo *repository.InventoryRepository
	outboxRepo    *repository.OutboxRepository
}

func NewCheckoutService(d Deps, accounts *AccountService) *CheckoutService {
	d = d.withDefaults()
	return &CheckoutService{
		log:           d.Logger,
		now:           d.Now,
		accounts:      accounts,
		cartRepo:      repository.NewCartRepository(d.DB),
		orderRepo:     repository.NewOrderRepository(d.DB),
		inventoryRepo: repository.NewInventoryRepository(d.DB),
		outboxRepo:    repository.NewOutboxRepository(d.DB),
	}
}

func (s *CheckoutService) Settle(ctx context.Context, userID, address string) (*SettleResult, error) {
	var result *SettleResult
	err := s.accounts.withLockedAccount(ctx, userID, func(tx *gorm.DB, account *model.Account) error {
		// 锁内重新读取购物车，价格以此刻的商品表为准
		rows, err := s.cartRepo.ListWithProducts(ctx, tx, account.ID)
		if err != nil {
			return storeError("读取购物车", err)
		}
		cart := buildCartView(rows)
		if cart.HasInvalid {
			return ErrInvalidCart
		}
		if cart.Overflow {
			return ErrCartOverflow
		}
		if len(cart.Lines) == 0 || cart.Total == 0 {
			return ErrEmptyCart
		}

		kinds := make([]string, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			kinds = append(kinds, line.FulfillmentKind)
		}
		shipTo, err := resolveAddress(address, kinds)
		if err != nil {
			return err
		}

		if account.Balance < cart.Total {
			return ErrInsufficientFunds
		}

		res, err := s.apply(ctx, tx, userID, account, cart, shipTo)
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
			// 写入全部成功但提交失败
			err = settlementError(err)
		}
		s.logFailure("购物车结算失败", userID, err)
		return nil, err
	}

	s.accounts.invalidate(ctx, userID)
	s.log.Info("购物车结算成功",
		zap.String("user_id", userID),
		zap.String("order_no", result.OrderNo),
		zap.Int64("amount", result.Total),
		zap.Int("items", result.Granted),
	)
	return result, nil
}

func (s *CheckoutService) apply(ctx context.Context, tx *gorm.DB, userID string, account *model.Account, cart *CartView, address string) (*SettleResult, error) {
	orderNo := idgen.GenerateOrderNo()
	now := s.now()

	ref := LedgerRef{
		Type:    model.TransactionTypePurchase,
		OrderNo: orderNo,
		Remark:  fmt.Sprintf("购物车结算-%d件", cart.ItemCount),
	}
	if err := s.accounts.Debit(ctx, tx, account, cart.Total, ref); err != nil {
		return nil, err
	}

	order := &model.Order{
		OrderNo:    orderNo,
		AccountID:  account.ID,
		TotalPrice: cart.Total,
		ItemCount:  cart.ItemCount,
		Status:     model.OrderStatusPreparing,
		Source:     model.OrderSourceCart,
		Address:    address,
	}
	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, storeError("创建订单", err)
	}

	items := make([]*model.InventoryItem, 0, cart.ItemCount)
	for _, line := range cart.Lines {
		for i := 0; i < line.Quantity; i++ {
			items = append(items, &model.InventoryItem{
				AccountID:  account.ID,
				ProductID:  line.ProductID,
				OrderNo:    orderNo,
				AcquiredAt: now,
			})
		}
	}
	if err := s.inventoryRepo.CreateBatch(ctx, tx, items); err != nil {
		return nil, storeError("写入库存", err)
	}

	if _, err := s.cartRepo.Clear(ctx, tx, account.ID); err != nil {
		return nil, storeError("清空购物车", err)
	}

	event := OrderSettledEvent{
		OrderNo:   orderNo,
		UserID:    userID,
		Total:     cart.Total,
		ItemCount: len(items),
		Address:   address,
		Balance:   account.Balance,
		SettledAt: now,
	}
	if err := s.outboxRepo.Append(ctx, tx, model.EventOrderSettled, orderNo, event); err != nil {
		return nil, storeError("写入消息", err)
	}

	return &SettleResult{
		OrderNo: orderNo,
		Total:   cart.Total,
		Balance: account.Balance,
		Granted: len(items),
		Address: address,
		Status:  order.Status,
	}, nil
}

// logFailure 业务拒绝记 Info，存储故障记 Error
func (s *CheckoutService) logFailure(msg, userID string, err error) {
	logFailure(s.log, msg, userID, err)
}

func logFailure(log *zap.Logger, msg, userID string, err error) {
	if IsRetryable(err) || errors.Is(err, ErrSettlementFailed) {
		log.Error(msg, zap.String("user_id", userID), zap.Error(err))
		return
	}
	log.Info(msg, zap.String("user_id", userID), zap.Error(err))
}
