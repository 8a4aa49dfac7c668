package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

var ValidStatusTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusCompleted},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	for _, s := range ValidStatusTransitions[currentStatus] {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsKnownOrderStatus 判断状态值是否合法
func IsKnownOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order 食堂订单，下单即扣款
type Order struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	RequestID   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"`
	AccountID   int64           `gorm:"index;not null" json:"account_id"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status      string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "cafeteria_order"
}

type OrderItem struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      int64           `gorm:"index;not null" json:"order_id"`
	MenuItemID   int64           `gorm:"not null" json:"menu_item_id"`
	MenuItemName string          `gorm:"type:varchar(128);not null" json:"menu_item_name"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
}

func (OrderItem) TableName() string {
	return "cafeteria_order_item"
}

// Subtotal 单行小计
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
