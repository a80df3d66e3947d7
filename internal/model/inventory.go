package model

import (
	"time"
)

// InventoryItem 用户库存
// 一行代表一件商品，不做数量合并；OrderNo 指向为其付款的订单。
type InventoryItem struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID  int64     `gorm:"not null;index:idx_inventory_account_product,priority:1" json:"account_id"`
	ProductID  int64     `gorm:"not null;index:idx_inventory_account_product,priority:2" json:"product_id"`
	OrderNo    string    `gorm:"type:varchar(64);index;not null" json:"order_no"`
	AcquiredAt time.Time `gorm:"autoCreateTime" json:"acquired_at"`
}

func (InventoryItem) TableName() string {
	return "inventory_item"
}
