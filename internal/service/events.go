package service

import "time"

// 消息表中事件的载荷，下游据此刷新余额、库存等视图

type OrderSettledEvent struct {
	OrderNo   string    `json:"order_no"`
	UserID    string    `json:"user_id"`
	Total     int64     `json:"total"`
	ItemCount int       `json:"item_count"`
	Address   string    `json:"address"`
	Balance   int64     `json:"balance"`
	SettledAt time.Time `json:"settled_at"`
}

type PurchaseCompletedEvent struct {
	OrderNo     string    `json:"order_no"`
	UserID      string    `json:"user_id"`
	ProductID   int64     `json:"product_id"`
	Price       int64     `json:"price"`
	Address     string    `json:"address"`
	Balance     int64     `json:"balance"`
	PurchasedAt time.Time `json:"purchased_at"`
}

type IncomeGrantedEvent struct {
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
	GrantedAt time.Time `json:"granted_at"`
}

type CartChangedEvent struct {
	UserID    string    `json:"user_id"`
	ProductID int64     `json:"product_id,omitempty"`
	Quantity  int       `json:"quantity"`
	Action    string    `json:"action"`
	ChangedAt time.Time `json:"changed_at"`
}
