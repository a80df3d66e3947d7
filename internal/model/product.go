package model

import (
	"time"
)

const (
	FulfillmentDigital  = "DIGITAL"
	FulfillmentPhysical = "PHYSICAL"
	FulfillmentHybrid   = "HYBRID"
)

// MaxPrice 单件商品价格上限
const MaxPrice int64 = 1_000_000_000

// RequiresShipping 实体或混合商品需要收货地址
func RequiresShipping(kind string) bool {
	return kind == FulfillmentPhysical || kind == FulfillmentHybrid
}

func ValidFulfillment(kind string) bool {
	switch kind {
	case FulfillmentDigital, FulfillmentPhysical, FulfillmentHybrid:
		return true
	}
	return false
}

// Product 商品目录
// 对结算核心只读，价格在结算事务内实时读取，不信任客户端传入的价格。
type Product struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"type:varchar(128);not null" json:"name"`
	Description     string    `gorm:"type:text" json:"description"`
	Price           int64     `gorm:"not null" json:"price"`
	Category        string    `gorm:"type:varchar(64);index" json:"category"`
	ImageURL        string    `gorm:"type:varchar(512)" json:"image_url"`
	FulfillmentKind string    `gorm:"type:varchar(16);not null;default:DIGITAL" json:"fulfillment_kind"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Product) TableName() string {
	return "product"
}
