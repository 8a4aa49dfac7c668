package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit = "DEPOSIT" // 充值
	TransactionTypeBonus   = "BONUS"   // 月度充值奖励
	TransactionTypeCharge  = "CHARGE"  // 下单扣款
	TransactionTypeRefund  = "REFUND"  // 取消订单退款
)

// LedgerTransaction 账户流水表
//
// 只追加，不修改，不删除。
// 同一账户所有流水 Amount 之和必须等于账户当前余额，对账任务据此校验。
type LedgerTransaction struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	AccountID           int64           `gorm:"index;not null" json:"account_id"`
	OrderNo             string          `gorm:"type:varchar(64);index;not null" json:"order_no,omitempty"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"` // 正数入账，负数出账
	Type                string          `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_before"`
	BalanceAfter        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_after"`
	MonthlyDepositTotal decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"monthly_deposit_total"` // 入账后的月度累计快照
	Remark              string          `gorm:"type:varchar(256)" json:"remark"`
	OccurredAt          time.Time       `gorm:"index;not null" json:"occurred_at"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transaction"
}
