package repository

import (
	"context"
	"errors"
	"strings"

	"cafeteria/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound   = errors.New("账户不存在")
	ErrOptimisticLock    = errors.New("乐观锁冲突，请重试")
	ErrDuplicateEmployee = errors.New("员工编号或用户已登记")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *AccountRepository) Create(ctx context.Context, account *model.EmployeeAccount) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if isDuplicateKey(err) {
		return ErrDuplicateEmployee
	}
	return err
}

// isDuplicateKey 兼容未做错误翻译的驱动
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

func (r *AccountRepository) first(ctx context.Context, tx *gorm.DB, query string, arg interface{}) (*model.EmployeeAccount, error) {
	var account model.EmployeeAccount
	err := r.conn(tx).WithContext(ctx).Where(query, arg).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.EmployeeAccount, error) {
	return r.first(ctx, nil, "id = ?", id)
}

// GetByIDTx 在事务内读取账户，调用方需已持有账户锁
func (r *AccountRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*model.EmployeeAccount, error) {
	return r.first(ctx, tx, "id = ?", id)
}

func (r *AccountRepository) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*model.EmployeeAccount, error) {
	return r.first(ctx, nil, "employee_number = ?", employeeNumber)
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*model.EmployeeAccount, error) {
	return r.first(ctx, nil, "user_id = ?", userID)
}

// UpdateWithVersion 以读取时的版本号为条件写回余额与月度累计
//
// 影响行数为 0 说明其他请求已经修改过该账户，返回 ErrOptimisticLock，
// 调用方需要重新读取并完整重算。
func (r *AccountRepository) UpdateWithVersion(ctx context.Context, tx *gorm.DB, account *model.EmployeeAccount) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.EmployeeAccount{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance":               account.Balance,
			"monthly_deposit_total": account.MonthlyDepositTotal,
			"last_deposit_month":    account.LastDepositMonth,
			"version":               gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	account.Version++
	return nil
}

func (r *AccountRepository) List(ctx context.Context, page, pageSize int) ([]*model.EmployeeAccount, int64, error) {
	var accounts []*model.EmployeeAccount
	var total int64

	query := r.db.WithContext(ctx).Model(&model.EmployeeAccount{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&accounts).Error
	return accounts, total, err
}

// ListIDs 按主键分批遍历账户，afterID 为上一批最后一个 ID
func (r *AccountRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.EmployeeAccount{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
