package model

import (
	"time"
)

// CartLine 购物车行
// 同一账户同一商品只有一行，重复加购只增加数量。
type CartLine struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"not null;uniqueIndex:uk_cart_account_product,priority:1" json:"account_id"`
	ProductID int64     `gorm:"not null;uniqueIndex:uk_cart_account_product,priority:2" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CartLine) TableName() string {
	return "cart_line"
}
