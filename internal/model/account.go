package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmployeeAccount 员工账户表
// 余额只能由账本服务修改，月度充值累计额相对于 LastDepositMonth 才有意义
type EmployeeAccount struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeNumber      string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"employee_number"`
	Name                string          `gorm:"type:varchar(64);not null" json:"name"`
	UserID              string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"` // 外部身份系统的用户标识
	Balance             decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"`
	MonthlyDepositTotal decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"monthly_deposit_total"`
	LastDepositMonth    string          `gorm:"type:varchar(7);not null" json:"last_deposit_month"` // YYYY-MM，空串表示从未充值
	Version             int             `gorm:"not null;default:0" json:"version"`                           // 乐观锁版本号
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EmployeeAccount) TableName() string {
	return "employee_account"
}
