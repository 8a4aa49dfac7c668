package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cafeteria/internal/config"
	"cafeteria/internal/infrastructure/lock"
	"cafeteria/internal/infrastructure/metrics"
	"cafeteria/internal/model"
	"cafeteria/internal/repository"
	"cafeteria/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService 员工账本：充值（含月度奖励）、扣款、退款与流水查询
//
// 所有改动余额的操作都遵循同一流程：
//  1. 获取账户锁，同一账户串行
//  2. 开启事务，读取账户最新状态并计算
//  3. 以版本号为条件写回账户，追加流水，写入 outbox 事件
//  4. 版本冲突时回滚并从第 2 步重跑，超过重试次数返回 Persistence 错误
type LedgerService struct {
	db              *gorm.DB
	locker          lock.Locker
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewLedgerService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *LedgerService {
	return &LedgerService{
		db:              db,
		locker:          locker,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type DepositResult struct {
	AccountID    int64                      `json:"account_id"`
	NewBalance   decimal.Decimal            `json:"new_balance"`
	MonthlyTotal decimal.Decimal            `json:"monthly_total"`
	AppliedBonus decimal.Decimal            `json:"applied_bonus"`
	BonusTiers   int64                      `json:"bonus_tiers"`
	Records      []*model.LedgerTransaction `json:"records"`
}

type ChargeResult struct {
	AccountID  int64                    `json:"account_id"`
	NewBalance decimal.Decimal          `json:"new_balance"`
	Record     *model.LedgerTransaction `json:"record"`
}

// HistoryOrder 流水排序方式
type HistoryOrder string

const (
	HistoryOldestFirst HistoryOrder = "asc"
	HistoryNewestFirst HistoryOrder = "desc"
)

// Statement 账户对账单：当前余额、本月充值累计与全部流水
type Statement struct {
	AccountID           int64                      `json:"account_id"`
	EmployeeNumber      string                     `json:"employee_number"`
	Name                string                     `json:"name"`
	CurrentBalance      decimal.Decimal            `json:"current_balance"`
	Month               string                     `json:"month"`
	MonthlyDepositTotal decimal.Decimal            `json:"monthly_deposit_total"`
	Records             []*model.LedgerTransaction `json:"records"`
}

type ReconcileReport struct {
	AccountID      int64           `json:"account_id"`
	EmployeeNumber string          `json:"employee_number"`
	Balance        decimal.Decimal `json:"balance"`
	LedgerSum      decimal.Decimal `json:"ledger_sum"`
	RecordCount    int             `json:"record_count"`
	Difference     decimal.Decimal `json:"difference"`
	Balanced       bool            `json:"balanced"`
}

// ledgerEvent 写入 outbox 的流水事件
type ledgerEvent struct {
	TransactionNo  string `json:"transaction_no"`
	AccountID      int64  `json:"account_id"`
	EmployeeNumber string `json:"employee_number"`
	OrderNo        string `json:"order_no,omitempty"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	BalanceAfter   string `json:"balance_after"`
	OccurredAt     string `json:"occurred_at"`
}

// Deposit 充值并按月度累计计算奖励
//
// occurredAt 换算到 business.timezone 后决定所属自然月，传零值时取当前时间。
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, occurredAt time.Time) (result *DepositResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLedger("deposit", start, err) }()

	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	occurredAt = occurredAt.In(s.cfg.Business.Location())

	threshold := s.cfg.Business.Threshold()
	bonusPerTier := s.cfg.Business.Bonus()

	err = s.withAccount(ctx, accountID, func(tx *gorm.DB, account *model.EmployeeAccount) error {
		if ShouldResetMonthly(account.LastDepositMonth, occurredAt) {
			account.MonthlyDepositTotal = decimal.Zero
			account.LastDepositMonth = MonthKey(occurredAt)
		}

		previousTotal := account.MonthlyDepositTotal
		newTotal := previousTotal.Add(amount)
		bonus, tiers := ComputeBonus(previousTotal, newTotal, threshold, bonusPerTier)
		account.MonthlyDepositTotal = newTotal

		records := []*model.LedgerTransaction{
			s.credit(account, model.TransactionTypeDeposit, amount, "", "员工充值", occurredAt),
		}
		if bonus.IsPositive() {
			remark := fmt.Sprintf("月度充值奖励 x%d", tiers)
			records = append(records, s.credit(account, model.TransactionTypeBonus, bonus, "", remark, occurredAt))
		}

		if err := s.persist(ctx, tx, account, records...); err != nil {
			return err
		}

		result = &DepositResult{
			AccountID:    account.ID,
			NewBalance:   account.Balance,
			MonthlyTotal: account.MonthlyDepositTotal,
			AppliedBonus: bonus,
			BonusTiers:   tiers,
			Records:      records,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.BonusTiers > 0 {
		metrics.LedgerBonusAwarded.Add(float64(result.BonusTiers))
	}
	log.Printf("[Ledger] 充值成功: accountID=%d, amount=%s, bonus=%s, balance=%s, monthly=%s",
		accountID, amount.StringFixed(2), result.AppliedBonus.StringFixed(2),
		result.NewBalance.StringFixed(2), result.MonthlyTotal.StringFixed(2))
	return result, nil
}

// Charge 从余额扣款，余额不足时拒绝，不涉及奖励计算
func (s *LedgerService) Charge(ctx context.Context, accountID int64, amount decimal.Decimal, reason string) (result *ChargeResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLedger("charge", start, err) }()

	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}

	err = s.withAccount(ctx, accountID, func(tx *gorm.DB, account *model.EmployeeAccount) error {
		record, err := s.applyCharge(ctx, tx, account, amount, "", reason, time.Now())
		if err != nil {
			return err
		}
		result = &ChargeResult{AccountID: account.ID, NewBalance: account.Balance, Record: record}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Ledger] 扣款成功: accountID=%d, amount=%s, balance=%s", accountID, amount.StringFixed(2), result.NewBalance.StringFixed(2))
	return result, nil
}

// GetHistory 返回账户全部流水，order 为空时使用配置的默认排序
func (s *LedgerService) GetHistory(ctx context.Context, accountID int64, order HistoryOrder) ([]*model.LedgerTransaction, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, classify(err)
	}

	if order == "" {
		order = HistoryOrder(strings.ToLower(s.cfg.Business.HistoryOrder))
	}
	records, err := s.transactionRepo.ListByAccountID(ctx, accountID, order == HistoryNewestFirst)
	if err != nil {
		return nil, persistence("查询流水失败", err)
	}
	return records, nil
}

// GetStatement 对账单中的月度累计按 now 所在月份解释，跨月后显示为 0
func (s *LedgerService) GetStatement(ctx context.Context, accountID int64, now time.Time) (*Statement, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, classify(err)
	}
	records, err := s.GetHistory(ctx, accountID, "")
	if err != nil {
		return nil, err
	}

	now = now.In(s.cfg.Business.Location())
	monthly := account.MonthlyDepositTotal
	if ShouldResetMonthly(account.LastDepositMonth, now) {
		monthly = decimal.Zero
	}

	return &Statement{
		AccountID:           account.ID,
		EmployeeNumber:      account.EmployeeNumber,
		Name:                account.Name,
		CurrentBalance:      account.Balance,
		Month:               MonthKey(now),
		MonthlyDepositTotal: monthly,
		Records:             records,
	}, nil
}

// Reconcile 校验 余额 == 全部流水之和
//
// 持有账户锁，并在同一事务内读取账户与汇总流水，两次读取看到同一快照。
func (s *LedgerService) Reconcile(ctx context.Context, accountID int64) (*ReconcileReport, error) {
	release, err := s.locker.Acquire(ctx, accountID, uuid.NewString())
	if err != nil {
		return nil, persistence("获取账户锁失败", err)
	}
	defer release()

	var (
		account *model.EmployeeAccount
		sum     decimal.Decimal
		count   int
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if account, err = s.accountRepo.GetByIDTx(ctx, tx, accountID); err != nil {
			return err
		}
		if sum, count, err = s.transactionRepo.SumByAccountID(ctx, tx, accountID); err != nil {
			return fmt.Errorf("汇总流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	report := &ReconcileReport{
		AccountID:      account.ID,
		EmployeeNumber: account.EmployeeNumber,
		Balance:        account.Balance,
		LedgerSum:      sum,
		RecordCount:    count,
		Difference:     account.Balance.Sub(sum),
		Balanced:       account.Balance.Equal(sum),
	}
	if !report.Balanced {
		metrics.ReconcileMismatches.Inc()
		log.Printf("[Ledger] 对账不平: accountID=%d, balance=%s, ledgerSum=%s",
			account.ID, account.Balance.StringFixed(2), sum.StringFixed(2))
	}
	return report, nil
}

// ReconcileAll 分批校验全部账户，返回不平的账户与校验总数
func (s *LedgerService) ReconcileAll(ctx context.Context, batchSize int) ([]*ReconcileReport, int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var mismatched []*ReconcileReport
	checked := 0
	var afterID int64
	for {
		ids, err := s.accountRepo.ListIDs(ctx, afterID, batchSize)
		if err != nil {
			return mismatched, checked, persistence("查询账户失败", err)
		}
		if len(ids) == 0 {
			return mismatched, checked, nil
		}
		for _, id := range ids {
			report, err := s.Reconcile(ctx, id)
			if err != nil {
				return mismatched, checked, err
			}
			checked++
			if !report.Balanced {
				mismatched = append(mismatched, report)
			}
		}
		afterID = ids[len(ids)-1]
	}
}

// withAccount 在账户锁与事务内执行 fn，版本冲突时用最新状态整体重跑
//
// fn 每次都会拿到重新读取的账户，闭包中记录的结果必须在 fn 内重新赋值。
func (s *LedgerService) withAccount(ctx context.Context, accountID int64, fn func(tx *gorm.DB, account *model.EmployeeAccount) error) error {
	release, err := s.locker.Acquire(ctx, accountID, uuid.NewString())
	if err != nil {
		return persistence("获取账户锁失败", err)
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.Business.MaxRetryCount; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			account, err := s.accountRepo.GetByIDTx(ctx, tx, accountID)
			if err != nil {
				return err
			}
			return fn(tx, account)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return classify(err)
		}
		lastErr = err
		metrics.LedgerConflictRetries.Inc()
		log.Printf("[Ledger] 账户版本冲突，重新计算: accountID=%d, attempt=%d", accountID, attempt+1)
	}
	return persistence("账户并发修改冲突，重试次数已用尽", lastErr)
}

// applyCharge 在已加锁的事务内扣款并追加 CHARGE 流水
func (s *LedgerService) applyCharge(ctx context.Context, tx *gorm.DB, account *model.EmployeeAccount, amount decimal.Decimal, orderNo, remark string, at time.Time) (*model.LedgerTransaction, error) {
	if account.Balance.LessThan(amount) {
		return nil, insufficientFunds(account.Balance, amount)
	}
	record := s.credit(account, model.TransactionTypeCharge, amount.Neg(), orderNo, remark, at)
	if err := s.persist(ctx, tx, account, record); err != nil {
		return nil, err
	}
	return record, nil
}

// applyRefund 在已加锁的事务内退款并追加 REFUND 流水
func (s *LedgerService) applyRefund(ctx context.Context, tx *gorm.DB, account *model.EmployeeAccount, amount decimal.Decimal, orderNo, remark string, at time.Time) (*model.LedgerTransaction, error) {
	record := s.credit(account, model.TransactionTypeRefund, amount, orderNo, remark, at)
	if err := s.persist(ctx, tx, account, record); err != nil {
		return nil, err
	}
	return record, nil
}

// credit 把带符号的金额记到内存中的账户上并生成对应流水，尚未落库
func (s *LedgerService) credit(account *model.EmployeeAccount, txType string, amount decimal.Decimal, orderNo, remark string, at time.Time) *model.LedgerTransaction {
	before := account.Balance
	account.Balance = before.Add(amount)
	return &model.LedgerTransaction{
		TransactionNo:       idgen.GenerateTransactionNo(),
		AccountID:           account.ID,
		OrderNo:             orderNo,
		Amount:              amount,
		Type:                txType,
		BalanceBefore:       before,
		BalanceAfter:        account.Balance,
		MonthlyDepositTotal: account.MonthlyDepositTotal,
		Remark:              remark,
		OccurredAt:          at,
	}
}

// persist 写回账户并追加流水与事件，必须在 withAccount 的事务内调用
func (s *LedgerService) persist(ctx context.Context, tx *gorm.DB, account *model.EmployeeAccount, records ...*model.LedgerTransaction) error {
	if err := s.accountRepo.UpdateWithVersion(ctx, tx, account); err != nil {
		return err
	}
	for _, record := range records {
		if err := s.transactionRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		if err := s.publishLedgerEvent(ctx, tx, account, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) publishLedgerEvent(ctx context.Context, tx *gorm.DB, account *model.EmployeeAccount, record *model.LedgerTransaction) error {
	if !s.cfg.Kafka.Enabled {
		return nil
	}
	payload, err := json.Marshal(ledgerEvent{
		TransactionNo:  record.TransactionNo,
		AccountID:      account.ID,
		EmployeeNumber: account.EmployeeNumber,
		OrderNo:        record.OrderNo,
		Type:           record.Type,
		Amount:         record.Amount.StringFixed(2),
		BalanceAfter:   record.BalanceAfter.StringFixed(2),
		OccurredAt:     record.OccurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	msg := &model.OutboxMessage{
		MessageKey: account.EmployeeNumber,
		Topic:      s.cfg.Kafka.Topic.LedgerEvent,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

// classify 把仓储层错误归入账本错误分类
func classify(err error) error {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr
	}
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return newError(KindAccountNotFound, "账户不存在", err)
	case errors.Is(err, repository.ErrOrderNotFound):
		return newError(KindOrderNotFound, "订单不存在", err)
	case errors.Is(err, repository.ErrOrderStatusInvalid):
		return newError(KindInvalidOrderStatus, "订单状态不允许此操作", err)
	case errors.Is(err, repository.ErrDuplicateEmployee):
		return newError(KindDuplicateEmployee, "员工编号或用户已登记", err)
	case errors.Is(err, repository.ErrRestaurantNotFound):
		return newError(KindRestaurantNotFound, "餐厅不存在", err)
	case errors.Is(err, repository.ErrMenuItemNotFound):
		return newError(KindMenuItemNotFound, "菜品不存在", err)
	case errors.Is(err, repository.ErrDuplicateRestaurant):
		return newError(KindInvalidArgument, "餐厅名称已存在", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return persistence("请求已取消", err)
	}
	return persistence("账本写入失败", err)
}
