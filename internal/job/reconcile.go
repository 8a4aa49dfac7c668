package job

import (
	"context"
	"log"
	"time"

	"cafeteria/internal/service"
)

// ReconcileJob 定期校验每个账户 余额 == 流水之和
type ReconcileJob struct {
	ledger    *service.LedgerService
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewReconcileJob(ledger *service.LedgerService, interval time.Duration) *ReconcileJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReconcileJob{
		ledger:    ledger,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 100,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	log.Println("[ReconcileJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

// RunOnce 完整对账一轮，返回不平的账户
func (j *ReconcileJob) RunOnce(ctx context.Context) []*service.ReconcileReport {
	mismatched, checked, err := j.ledger.ReconcileAll(ctx, j.batchSize)
	if err != nil {
		log.Printf("[ReconcileJob] 对账中断: checked=%d, err=%v", checked, err)
		return mismatched
	}

	if len(mismatched) == 0 {
		log.Printf("[ReconcileJob] 对账完成，%d 个账户全部平衡", checked)
		return nil
	}

	for _, r := range mismatched {
		log.Printf("[ReconcileJob] 账户不平: accountID=%d, employeeNumber=%s, balance=%s, ledgerSum=%s, diff=%s",
			r.AccountID, r.EmployeeNumber, r.Balance.StringFixed(2), r.LedgerSum.StringFixed(2), r.Difference.StringFixed(2))
	}
	log.Printf("[ReconcileJob] 对账完成: checked=%d, mismatched=%d", checked, len(mismatched))
	return mismatched
}
