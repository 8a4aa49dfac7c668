package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cafeteria/internal/config"
	"cafeteria/internal/handler"
	"cafeteria/internal/infrastructure/cache"
	"cafeteria/internal/infrastructure/database"
	"cafeteria/internal/infrastructure/lock"
	"cafeteria/internal/infrastructure/mq"
	"cafeteria/internal/job"
	"cafeteria/internal/service"
	"cafeteria/pkg/idgen"

	"github.com/spf13/cobra"
)

var (
	configPath string
	workerID   int64
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cafeteria",
		Short:        "食堂员工账本服务",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "配置文件路径")
	root.PersistentFlags().Int64Var(&workerID, "worker-id", 1, "雪花算法机器号")

	root.AddCommand(serveCmd(), migrateCmd(), reconcileCmd())
	return root
}

// newLocker 多实例部署必须启用 Redis 账户锁，单实例使用进程内锁
//
// 对账命令与服务进程共用同一把锁，返回的 cleanup 负责关闭 Redis 连接。
func newLocker(cfg *config.Config) (lock.Locker, func(), error) {
	if !cfg.Redis.Enabled {
		return lock.NewLocalLocker(), func() {}, nil
	}
	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	locker := lock.NewRedisLocker(redisClient,
		cfg.Business.LockTTL(), cfg.Business.LockRetryInterval(), cfg.Business.LockMaxRetries)
	return locker, func() { _ = redisClient.Close() }, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务与后台任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或升级表结构",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)
			log.Println("表结构迁移完成")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var accountID int64
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "校验账户余额与流水之和，存在不平账户时以非零状态退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			locker, cleanup, err := newLocker(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ledger := service.NewLedgerService(db, locker, cfg)
			ctx := cmd.Context()

			var mismatched []*service.ReconcileReport
			checked := 1
			if accountID > 0 {
				report, err := ledger.Reconcile(ctx, accountID)
				if err != nil {
					return err
				}
				if !report.Balanced {
					mismatched = append(mismatched, report)
				}
			} else {
				mismatched, checked, err = ledger.ReconcileAll(ctx, 100)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, r := range mismatched {
				fmt.Fprintf(out, "MISMATCH account=%d employee=%s balance=%s ledger_sum=%s diff=%s\n",
					r.AccountID, r.EmployeeNumber, r.Balance.StringFixed(2), r.LedgerSum.StringFixed(2), r.Difference.StringFixed(2))
			}
			fmt.Fprintf(out, "checked=%d mismatched=%d\n", checked, len(mismatched))
			if len(mismatched) > 0 {
				return fmt.Errorf("%d 个账户对账不平", len(mismatched))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&accountID, "account-id", 0, "只校验指定账户")
	return cmd
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := idgen.Init(workerID); err != nil {
		return err
	}

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	locker, cleanup, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		producer, err := mq.InitKafka(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()

		outboxSender := job.NewOutboxSender(db, producer, cfg)
		go outboxSender.Start(ctx)
	}

	reconcileJob := job.NewReconcileJob(service.NewLedgerService(db, locker, cfg), cfg.Business.ReconcileInterval())
	go reconcileJob.Start(ctx)

	router := handler.SetupRouter(db, locker, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
	return nil
}
