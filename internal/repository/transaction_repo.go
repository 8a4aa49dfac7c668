package repository

import (
	"context"

	"cafeteria/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 只允许插入，流水表没有更新和删除方法
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.LedgerTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// ListByAccountID 按写入顺序返回账户全部流水，newestFirst 为 true 时倒序
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID int64, newestFirst bool) ([]*model.LedgerTransaction, error) {
	order := "id ASC"
	if newestFirst {
		order = "id DESC"
	}
	var transactions []*model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order(order).
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) ListByOrderNo(ctx context.Context, orderNo string) ([]*model.LedgerTransaction, error) {
	var transactions []*model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

// SumByAccountID 在应用层用 decimal 求和，避免不同数据库 SUM 的精度差异
//
// tx 为 nil 时直接查询，对账时传入与读取账户相同的事务。
func (r *TransactionRepository) SumByAccountID(ctx context.Context, tx *gorm.DB, accountID int64) (decimal.Decimal, int, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []*model.LedgerTransaction
	err := tx.WithContext(ctx).
		Select("amount").
		Where("account_id = ?", accountID).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Amount)
	}
	return sum, len(rows), nil
}
