package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant 食堂档口
type Restaurant struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Location      string     `gorm:"type:varchar(255)" json:"location"`
	ContactNumber string     `gorm:"type:varchar(32)" json:"contact_number"`
	MenuItems     []MenuItem `gorm:"foreignKey:RestaurantID" json:"menu_items"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Restaurant) TableName() string {
	return "cafeteria_restaurant"
}

// MenuItem 菜品，下单时的名称与单价以此为准
type MenuItem struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RestaurantID int64           `gorm:"index;not null" json:"restaurant_id"`
	Name         string          `gorm:"type:varchar(128);not null" json:"name"`
	Description  string          `gorm:"type:varchar(255)" json:"description"`
	Price        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	// Available 下架的菜品不能下单
	Available bool      `gorm:"not null" json:"available"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MenuItem) TableName() string {
	return "cafeteria_menu_item"
}
