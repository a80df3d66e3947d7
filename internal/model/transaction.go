package model

import (
	"time"
)

const (
	TransactionTypeGrant    = "GRANT"    // 每日收入
	TransactionTypePurchase = "PURCHASE" // 购买扣款
)

// AccountTransaction 账户流水表
// 只追加，记录交易前后余额，便于校验余额一致性。
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	AccountID     int64     `gorm:"index;not null" json:"account_id"`
	OrderNo       string    `gorm:"type:varchar(64);index" json:"order_no"`
	Amount        int64     `gorm:"not null" json:"amount"` // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
