package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const (
	EventOrderSettled      = "order.settled"
	EventPurchaseCompleted = "purchase.completed"
	EventIncomeGranted     = "income.granted"
	EventCartChanged       = "cart.changed"
)

// OutboxMessage 事务消息表
// 与业务数据在同一事务中写入，由 OutboxSender 异步投递到 Kafka。
type OutboxMessage struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string         `gorm:"type:varchar(128);not null" json:"message_key"`
	EventType  string         `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload    datatypes.JSON `gorm:"not null" json:"payload"`
	Status     string         `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int            `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// All 返回需要迁移的全部表
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Product{},
		&CartLine{},
		&Order{},
		&InventoryItem{},
		&AccountTransaction{},
		&OutboxMessage{},
	}
}
