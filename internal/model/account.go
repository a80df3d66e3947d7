package model

import (
	"time"
)

// Account 用户账户表
// 记录用户的硬币余额，是整个经济系统的核心数据。
// 余额的每一次变动都必须在持有该行锁的事务中完成。
type Account struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"user_id"` // 外部身份ID
	Balance       int64      `gorm:"not null;default:0" json:"balance"`                     // 可用余额（硬币数）
	LastGrantAt   *time.Time `json:"last_grant_at"`                                        // 上次领取每日收入的时间
	EquippedBadge string     `gorm:"type:varchar(64)" json:"equipped_badge"`
	Version       int        `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
