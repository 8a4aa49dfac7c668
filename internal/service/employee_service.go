package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"cafeteria/internal/model"
	"cafeteria/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EmployeeService struct {
	accountRepo *repository.AccountRepository
}

func NewEmployeeService(db *gorm.DB) *EmployeeService {
	return &EmployeeService{
		accountRepo: repository.NewAccountRepository(db),
	}
}

type RegisterRequest struct {
	EmployeeNumber string
	Name           string
	UserID         string
}

// Register 登记员工账户，初始余额为 0，尚无充值月份
func (s *EmployeeService) Register(ctx context.Context, req *RegisterRequest) (*model.EmployeeAccount, error) {
	employeeNumber := strings.TrimSpace(req.EmployeeNumber)
	userID := strings.TrimSpace(req.UserID)
	if employeeNumber == "" || userID == "" {
		return nil, newError(KindInvalidArgument, "员工编号和用户ID不能为空", nil)
	}

	if _, err := s.accountRepo.GetByEmployeeNumber(ctx, employeeNumber); err == nil {
		return nil, ErrDuplicateEmployee
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, classify(err)
	}
	if _, err := s.accountRepo.GetByUserID(ctx, userID); err == nil {
		return nil, ErrDuplicateEmployee
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, classify(err)
	}

	account := &model.EmployeeAccount{
		EmployeeNumber:      employeeNumber,
		Name:                strings.TrimSpace(req.Name),
		UserID:              userID,
		Balance:             decimal.Zero,
		MonthlyDepositTotal: decimal.Zero,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, classify(err)
	}

	log.Printf("[Employee] 账户登记成功: accountID=%d, employeeNumber=%s", account.ID, account.EmployeeNumber)
	return account, nil
}

func (s *EmployeeService) GetByID(ctx context.Context, accountID int64) (*model.EmployeeAccount, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, classify(err)
	}
	return account, nil
}

func (s *EmployeeService) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*model.EmployeeAccount, error) {
	account, err := s.accountRepo.GetByEmployeeNumber(ctx, employeeNumber)
	if err != nil {
		return nil, classify(err)
	}
	return account, nil
}

func (s *EmployeeService) GetByUserID(ctx context.Context, userID string) (*model.EmployeeAccount, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return account, nil
}

func (s *EmployeeService) List(ctx context.Context, page, pageSize int) ([]*model.EmployeeAccount, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	accounts, total, err := s.accountRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, persistence("查询账户列表失败", err)
	}
	return accounts, total, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
