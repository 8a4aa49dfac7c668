package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cafeteria/internal/config"
	"cafeteria/internal/infrastructure/database"
	"cafeteria/internal/infrastructure/lock"
	"cafeteria/internal/infrastructure/metrics"
	"cafeteria/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

var october = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db         *gorm.DB
	cfg        *config.Config
	ledger     *LedgerService
	employee   *EmployeeService
	order      *OrderService
	restaurant *RestaurantService

	// 预置菜单：牛肉面 18.50，豆浆 3.00
	noodles *model.MenuItem
	soyMilk *model.MenuItem
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.InitSQLite(":memory:", "silent")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Kafka.Enabled = true
	cfg.Business.Timezone = "UTC"

	ledger := NewLedgerService(db, lock.NewLocalLocker(), cfg)
	env := &testEnv{
		db:         db,
		cfg:        cfg,
		ledger:     ledger,
		employee:   NewEmployeeService(db),
		order:      NewOrderService(db, ledger, cfg),
		restaurant: NewRestaurantService(db),
	}

	ctx := context.Background()
	canteen, err := env.restaurant.AddRestaurant(ctx, &AddRestaurantRequest{Name: "一号食堂"})
	if err != nil {
		t.Fatalf("add restaurant: %v", err)
	}
	if env.noodles, err = env.restaurant.AddMenuItem(ctx, &AddMenuItemRequest{
		RestaurantID: canteen.ID, Name: "牛肉面", Price: d("18.50"),
	}); err != nil {
		t.Fatalf("add menu item: %v", err)
	}
	if env.soyMilk, err = env.restaurant.AddMenuItem(ctx, &AddMenuItemRequest{
		RestaurantID: canteen.ID, Name: "豆浆", Price: d("3"),
	}); err != nil {
		t.Fatalf("add menu item: %v", err)
	}
	return env
}

func (e *testEnv) register(t *testing.T, employeeNumber string) *model.EmployeeAccount {
	t.Helper()
	account, err := e.employee.Register(context.Background(), &RegisterRequest{
		EmployeeNumber: employeeNumber,
		Name:           "员工" + employeeNumber,
		UserID:         "user-" + employeeNumber,
	})
	if err != nil {
		t.Fatalf("register %s: %v", employeeNumber, err)
	}
	return account
}

func (e *testEnv) deposit(t *testing.T, accountID int64, amount string, at time.Time) *DepositResult {
	t.Helper()
	result, err := e.ledger.Deposit(context.Background(), accountID, d(amount), at)
	if err != nil {
		t.Fatalf("deposit %s: %v", amount, err)
	}
	return result
}

func (e *testEnv) assertBalanced(t *testing.T, accountID int64) {
	t.Helper()
	report, err := e.ledger.Reconcile(context.Background(), accountID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !report.Balanced {
		t.Fatalf("balance %s != ledger sum %s", report.Balance, report.LedgerSum)
	}
}

func TestDepositBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	result := env.deposit(t, account.ID, "100", october)

	if !result.NewBalance.Equal(d("100")) || !result.MonthlyTotal.Equal(d("100")) {
		t.Fatalf("got balance=%s monthly=%s", result.NewBalance, result.MonthlyTotal)
	}
	if !result.AppliedBonus.IsZero() || len(result.Records) != 1 {
		t.Fatalf("unexpected bonus %s with %d records", result.AppliedBonus, len(result.Records))
	}
	if result.Records[0].Type != model.TransactionTypeDeposit {
		t.Fatalf("record type = %s", result.Records[0].Type)
	}
	env.assertBalanced(t, account.ID)
}

func TestDepositCrossingThresholdAddsBonusRecord(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	env.deposit(t, account.ID, "200", october)
	result := env.deposit(t, account.ID, "60", october)

	if !result.AppliedBonus.Equal(d("500")) || !result.NewBalance.Equal(d("760")) {
		t.Fatalf("got bonus=%s balance=%s", result.AppliedBonus, result.NewBalance)
	}
	if !result.MonthlyTotal.Equal(d("260")) {
		t.Fatalf("bonus must not count toward monthly total, got %s", result.MonthlyTotal)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected deposit and bonus records, got %d", len(result.Records))
	}
	dep, bonus := result.Records[0], result.Records[1]
	if dep.Type != model.TransactionTypeDeposit || !dep.Amount.Equal(d("60")) {
		t.Fatalf("deposit record = %s %s", dep.Type, dep.Amount)
	}
	if bonus.Type != model.TransactionTypeBonus || !bonus.Amount.Equal(d("500")) {
		t.Fatalf("bonus record = %s %s", bonus.Type, bonus.Amount)
	}
	if !dep.OccurredAt.Equal(bonus.OccurredAt) {
		t.Fatalf("deposit and bonus timestamps differ: %v vs %v", dep.OccurredAt, bonus.OccurredAt)
	}
	env.assertBalanced(t, account.ID)
}

func TestDepositAwardsEveryCrossedTier(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	result := env.deposit(t, account.ID, "760", october)

	if result.BonusTiers != 3 || !result.AppliedBonus.Equal(d("1500")) {
		t.Fatalf("got tiers=%d bonus=%s", result.BonusTiers, result.AppliedBonus)
	}
	if !result.NewBalance.Equal(d("2260")) {
		t.Fatalf("balance = %s", result.NewBalance)
	}
	env.assertBalanced(t, account.ID)
}

func TestDepositExactlyAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	first := env.deposit(t, account.ID, "250", october)
	second := env.deposit(t, account.ID, "249.99", october)

	if !first.AppliedBonus.Equal(d("500")) {
		t.Fatalf("first bonus = %s", first.AppliedBonus)
	}
	if !second.AppliedBonus.IsZero() {
		t.Fatalf("second bonus = %s", second.AppliedBonus)
	}
	if !second.NewBalance.Equal(d("999.99")) {
		t.Fatalf("balance = %s", second.NewBalance)
	}
}

func TestDepositResetsMonthlyTotalInNewMonth(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	env.deposit(t, account.ID, "240", october)
	november := time.Date(2026, time.November, 1, 8, 0, 0, 0, time.UTC)
	result := env.deposit(t, account.ID, "20", november)

	if !result.MonthlyTotal.Equal(d("20")) || !result.AppliedBonus.IsZero() {
		t.Fatalf("got monthly=%s bonus=%s", result.MonthlyTotal, result.AppliedBonus)
	}
	if !result.NewBalance.Equal(d("260")) {
		t.Fatalf("balance = %s", result.NewBalance)
	}

	stored, err := env.employee.GetByID(context.Background(), account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastDepositMonth != "2026-11" {
		t.Fatalf("last deposit month = %q", stored.LastDepositMonth)
	}
}

func TestDepositMonthFollowsConfiguredTimezone(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	// 同一时刻的两种写法：UTC 下已是 11 月，UTC-5 下仍是 10 月 31 日
	eastern := time.FixedZone("EST", -5*3600)
	first := time.Date(2026, time.November, 1, 3, 0, 0, 0, time.UTC).In(eastern)
	second := time.Date(2026, time.November, 1, 3, 1, 0, 0, time.UTC)

	env.deposit(t, account.ID, "200", first)
	result := env.deposit(t, account.ID, "200", second)

	if !result.MonthlyTotal.Equal(d("400")) || !result.AppliedBonus.Equal(d("500")) {
		t.Fatalf("monthly=%s bonus=%s", result.MonthlyTotal, result.AppliedBonus)
	}
	if !result.NewBalance.Equal(d("900")) {
		t.Fatalf("balance = %s", result.NewBalance)
	}
	stored, _ := env.employee.GetByID(context.Background(), account.ID)
	if stored.LastDepositMonth != "2026-11" {
		t.Fatalf("last deposit month = %q", stored.LastDepositMonth)
	}

	statement, err := env.ledger.GetStatement(context.Background(), account.ID, first)
	if err != nil {
		t.Fatal(err)
	}
	if statement.Month != "2026-11" || !statement.MonthlyDepositTotal.Equal(d("400")) {
		t.Fatalf("statement month=%s monthly=%s", statement.Month, statement.MonthlyDepositTotal)
	}
	env.assertBalanced(t, account.ID)
}

func TestDepositRejectsInvalidAmount(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	for _, amount := range []string{"-5", "0", "1.234", "10000000000000000", "92233720368547758070000"} {
		_, err := env.ledger.Deposit(context.Background(), account.ID, d(amount), october)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: err = %v", amount, err)
		}
	}

	records, err := env.ledger.GetHistory(context.Background(), account.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("rejected deposits left %d records", len(records))
	}
}

func TestOperationsOnUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.ledger.Deposit(ctx, 42, d("10"), october); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("deposit err = %v", err)
	}
	if _, err := env.ledger.Charge(ctx, 42, d("10"), "lunch"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("charge err = %v", err)
	}
	if _, err := env.ledger.GetHistory(ctx, 42, ""); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("history err = %v", err)
	}
}

func TestChargeDeductsBalance(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "100", october)

	result, err := env.ledger.Charge(context.Background(), account.ID, d("35.50"), "午餐")
	if err != nil {
		t.Fatal(err)
	}
	if !result.NewBalance.Equal(d("64.5")) {
		t.Fatalf("balance = %s", result.NewBalance)
	}
	if result.Record.Type != model.TransactionTypeCharge || !result.Record.Amount.Equal(d("-35.5")) {
		t.Fatalf("record = %s %s", result.Record.Type, result.Record.Amount)
	}
	env.assertBalanced(t, account.ID)
}

func TestChargeInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "30", october)

	_, err := env.ledger.Charge(context.Background(), account.ID, d("50"), "午餐")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v", err)
	}
	var ledgerErr *LedgerError
	if !errors.As(err, &ledgerErr) {
		t.Fatalf("expected *LedgerError, got %T", err)
	}
	if !ledgerErr.Available.Equal(d("30")) || !ledgerErr.Required.Equal(d("50")) {
		t.Fatalf("available=%s required=%s", ledgerErr.Available, ledgerErr.Required)
	}

	records, _ := env.ledger.GetHistory(context.Background(), account.ID, "")
	if len(records) != 1 {
		t.Fatalf("failed charge appended a record: %d records", len(records))
	}
	env.assertBalanced(t, account.ID)
}

func TestChargeDoesNotTouchMonthlyTotal(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "200", october)

	if _, err := env.ledger.Charge(context.Background(), account.ID, d("150"), "晚餐"); err != nil {
		t.Fatal(err)
	}
	result := env.deposit(t, account.ID, "50", october)
	if !result.AppliedBonus.Equal(d("500")) {
		t.Fatalf("charges must not lower the monthly total, bonus = %s", result.AppliedBonus)
	}
}

func TestGetHistoryOrdering(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "100", october)
	if _, err := env.ledger.Charge(context.Background(), account.ID, d("10"), "咖啡"); err != nil {
		t.Fatal(err)
	}

	oldest, err := env.ledger.GetHistory(context.Background(), account.ID, HistoryOldestFirst)
	if err != nil {
		t.Fatal(err)
	}
	newest, err := env.ledger.GetHistory(context.Background(), account.ID, HistoryNewestFirst)
	if err != nil {
		t.Fatal(err)
	}
	if len(oldest) != 2 || len(newest) != 2 {
		t.Fatalf("got %d and %d records", len(oldest), len(newest))
	}
	if oldest[0].Type != model.TransactionTypeDeposit || newest[0].Type != model.TransactionTypeCharge {
		t.Fatalf("order wrong: oldest[0]=%s newest[0]=%s", oldest[0].Type, newest[0].Type)
	}

	env.cfg.Business.HistoryOrder = "desc"
	byDefault, err := env.ledger.GetHistory(context.Background(), account.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if byDefault[0].Type != model.TransactionTypeCharge {
		t.Fatalf("configured default order ignored")
	}
}

func TestConcurrentDepositsAwardSingleBonus(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Deposit(context.Background(), account.ID, d("200"), october)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	stmt, err := env.ledger.GetStatement(context.Background(), account.ID, october)
	if err != nil {
		t.Fatal(err)
	}
	if !stmt.MonthlyDepositTotal.Equal(d("400")) || !stmt.CurrentBalance.Equal(d("900")) {
		t.Fatalf("monthly=%s balance=%s", stmt.MonthlyDepositTotal, stmt.CurrentBalance)
	}
	bonuses := 0
	for _, r := range stmt.Records {
		if r.Type == model.TransactionTypeBonus {
			bonuses++
		}
	}
	if bonuses != 1 {
		t.Fatalf("expected exactly one bonus record, got %d", bonuses)
	}
}

func TestConcurrentMixedOperationsKeepInvariant(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "E001")
	b := env.register(t, "E002")
	env.deposit(t, a.ID, "100", october)
	env.deposit(t, b.ID, "100", october)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, id := range []int64{a.ID, b.ID} {
			wg.Add(2)
			go func(id int64) {
				defer wg.Done()
				_, _ = env.ledger.Charge(context.Background(), id, d("7.25"), "午餐")
			}(id)
			go func(id int64) {
				defer wg.Done()
				_, _ = env.ledger.Deposit(context.Background(), id, d("12.5"), october)
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []int64{a.ID, b.ID} {
		env.assertBalanced(t, id)
		account, err := env.employee.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if account.Balance.IsNegative() {
			t.Fatalf("account %d went negative: %s", id, account.Balance)
		}
	}

	mismatched, checked, err := env.ledger.ReconcileAll(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if checked != 2 || len(mismatched) != 0 {
		t.Fatalf("checked=%d mismatched=%d", checked, len(mismatched))
	}
}

func TestDepositIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	inserts := 0
	err := env.db.Callback().Create().Before("gorm:create").Register("test:fail_bonus_record", func(tx *gorm.DB) {
		if tx.Statement.Table != "ledger_transaction" {
			return
		}
		inserts++
		if inserts == 2 {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.ledger.Deposit(context.Background(), account.ID, d("300"), october)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v", err)
	}

	stored, err := env.employee.GetByID(context.Background(), account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Balance.IsZero() || !stored.MonthlyDepositTotal.IsZero() || stored.LastDepositMonth != "" {
		t.Fatalf("partial write: balance=%s monthly=%s month=%q",
			stored.Balance, stored.MonthlyDepositTotal, stored.LastDepositMonth)
	}
	records, _ := env.ledger.GetHistory(context.Background(), account.ID, "")
	if len(records) != 0 {
		t.Fatalf("partial write left %d records", len(records))
	}
	pending, _ := env.ledger.outboxRepo.CountByStatus(context.Background(), model.OutboxStatusPending)
	if pending != 0 {
		t.Fatalf("partial write left %d outbox messages", pending)
	}
}

// bumpVersionOnUpdate 在账户写回前模拟另一个写入者修改了版本号
func bumpVersionOnUpdate(t *testing.T, db *gorm.DB, times int) *int {
	t.Helper()
	bumped := 0
	err := db.Callback().Update().Before("gorm:update").Register("test:bump_version", func(tx *gorm.DB) {
		if tx.Statement.Table != "employee_account" || bumped >= times {
			return
		}
		bumped++
		tx.Session(&gorm.Session{NewDB: true}).Exec("UPDATE employee_account SET version = version + 1")
	})
	if err != nil {
		t.Fatal(err)
	}
	return &bumped
}

func TestDepositRetriesAfterVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	bumped := bumpVersionOnUpdate(t, env.db, 1)
	retriesBefore := testutil.ToFloat64(metrics.LedgerConflictRetries)

	result := env.deposit(t, account.ID, "260", october)

	if *bumped != 1 {
		t.Fatalf("conflict injected %d times", *bumped)
	}
	if got := testutil.ToFloat64(metrics.LedgerConflictRetries) - retriesBefore; got != 1 {
		t.Fatalf("retries = %v", got)
	}
	if !result.NewBalance.Equal(d("760")) || !result.AppliedBonus.Equal(d("500")) {
		t.Fatalf("balance=%s bonus=%s", result.NewBalance, result.AppliedBonus)
	}
	records, _ := env.ledger.GetHistory(context.Background(), account.ID, "")
	if len(records) != 2 {
		t.Fatalf("retry duplicated records: %d", len(records))
	}
	env.assertBalanced(t, account.ID)
}

func TestDepositGivesUpAfterRepeatedConflicts(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	bumped := bumpVersionOnUpdate(t, env.db, 1000)

	_, err := env.ledger.Deposit(context.Background(), account.ID, d("50"), october)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v", err)
	}
	if want := env.cfg.Business.MaxRetryCount + 1; *bumped != want {
		t.Fatalf("attempts = %d, want %d", *bumped, want)
	}

	stored, err := env.employee.GetByID(context.Background(), account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Balance.IsZero() {
		t.Fatalf("balance = %s", stored.Balance)
	}
}

func TestGetStatementInterpretsMonthlyTotalForCurrentMonth(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "120", october)

	same, err := env.ledger.GetStatement(context.Background(), account.ID, october)
	if err != nil {
		t.Fatal(err)
	}
	if !same.MonthlyDepositTotal.Equal(d("120")) || same.Month != "2026-10" {
		t.Fatalf("month=%s monthly=%s", same.Month, same.MonthlyDepositTotal)
	}

	later, err := env.ledger.GetStatement(context.Background(), account.ID, october.AddDate(0, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !later.MonthlyDepositTotal.IsZero() || !later.CurrentBalance.Equal(d("120")) {
		t.Fatalf("monthly=%s balance=%s", later.MonthlyDepositTotal, later.CurrentBalance)
	}
}

func TestReconcileDetectsTamperedBalance(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "80", october)

	if err := env.db.Exec("UPDATE employee_account SET balance = 81 WHERE id = ?", account.ID).Error; err != nil {
		t.Fatal(err)
	}

	mismatched, checked, err := env.ledger.ReconcileAll(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if checked != 1 || len(mismatched) != 1 {
		t.Fatalf("checked=%d mismatched=%d", checked, len(mismatched))
	}
	if !mismatched[0].Difference.Equal(d("1")) {
		t.Fatalf("difference = %s", mismatched[0].Difference)
	}
}

func TestReconcileReadsInOneTransaction(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "300", october)

	var mu sync.Mutex
	outside := map[string]int{}
	inside := map[string]int{}
	err := env.db.Callback().Query().Before("gorm:query").Register("test:track_tx", func(tx *gorm.DB) {
		table := tx.Statement.Table
		if table != "employee_account" && table != "ledger_transaction" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, ok := tx.Statement.ConnPool.(gorm.TxCommitter); ok {
			inside[table]++
		} else {
			outside[table]++
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = env.db.Callback().Query().Remove("test:track_tx") })

	report, err := env.ledger.Reconcile(context.Background(), account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Balanced || report.RecordCount != 2 || !report.LedgerSum.Equal(d("800")) {
		t.Fatalf("report = %+v", report)
	}

	mu.Lock()
	defer mu.Unlock()
	if inside["employee_account"] != 1 || inside["ledger_transaction"] != 1 || len(outside) != 0 {
		t.Fatalf("reads inside tx = %v, outside = %v", inside, outside)
	}
}

func TestDepositWritesOutboxEvents(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")
	env.deposit(t, account.ID, "250", october)

	messages, err := env.ledger.outboxRepo.GetPendingMessages(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected deposit and bonus events, got %d", len(messages))
	}
	for _, m := range messages {
		if m.Topic != env.cfg.Kafka.Topic.LedgerEvent || m.MessageKey != "E001" {
			t.Fatalf("message = %+v", m)
		}
	}

	env.cfg.Kafka.Enabled = false
	env.deposit(t, account.ID, "1", october)
	pending, _ := env.ledger.outboxRepo.CountByStatus(context.Background(), model.OutboxStatusPending)
	if pending != 2 {
		t.Fatalf("outbox written while kafka disabled: %d", pending)
	}
}

func TestDepositHonorsCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "E001")

	release, err := env.ledger.locker.Acquire(context.Background(), account.ID, "holder")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = env.ledger.Deposit(ctx, account.ID, d("10"), october)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause lost: %v", err)
	}
}
