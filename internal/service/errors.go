package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("未登录或身份无效")

	// ErrValidation 是所有入参校验错误的父错误
	ErrValidation      = errors.New("参数校验失败")
	ErrInvalidAmount   = fmt.Errorf("%w: 金额不能为负数", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: 数量必须大于0", ErrValidation)
	ErrAddressRequired = fmt.Errorf("%w: 实体商品需要填写收货地址", ErrValidation)
	ErrAddressTooLong  = fmt.Errorf("%w: 收货地址过长", ErrValidation)
	ErrPriceTooHigh    = fmt.Errorf("%w: 商品价格超出上限", ErrValidation)
	ErrCartOverflow    = fmt.Errorf("%w: 购物车金额超出上限", ErrValidation)

	ErrInsufficientFunds = errors.New("余额不足")
	ErrEmptyCart         = errors.New("购物车为空")
	ErrInvalidCart       = errors.New("购物车中有已下架的商品")
	ErrCartLineNotFound  = errors.New("购物车中没有该商品")

	ErrProductNotFound = errors.New("商品不存在")
	ErrAccountNotFound = errors.New("账户不存在")
	ErrOrderNotFound   = errors.New("订单不存在")

	// ErrSettlementFailed 结算写入阶段失败，事务已整体回滚
	ErrSettlementFailed = errors.New("结算失败")
	// ErrTransientStore 存储层或锁的临时故障，整个操作可以重试
	ErrTransientStore = errors.New("存储暂时不可用")
)

// IsRetryable 只有临时故障值得重试，业务拒绝重试也不会成功
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransientStore, op, err)
}

func settlementError(err error) error {
	return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
}
