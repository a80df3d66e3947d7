package model

import (
	"time"
)

const (
	OrderStatusPreparing = "PREPARING"
)

const (
	OrderSourceCart   = "CART"
	OrderSourceDirect = "DIRECT"
)

// DigitalDeliveryAddress 纯数字商品订单在未填写地址时使用的占位地址
const DigitalDeliveryAddress = "DIGITAL_DELIVERY"

// Order 订单表
// 每次成功结算（购物车或立即购买）只追加一条，核心逻辑不修改、不删除。
type Order struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	AccountID  int64     `gorm:"index;not null" json:"account_id"`
	TotalPrice int64     `gorm:"not null" json:"total_price"`
	ItemCount  int       `gorm:"not null" json:"item_count"`
	Status     string    `gorm:"type:varchar(20);not null" json:"status"`
	Source     string    `gorm:"type:varchar(16);not null" json:"source"`
	Address    string    `gorm:"type:varchar(512);not null" json:"address"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Order) TableName() string {
	return "order_record"
}
