package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"cafeteria/internal/config"
	"cafeteria/internal/model"
	"cafeteria/internal/repository"
	"cafeteria/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService 下单扣款、状态流转与取消退款，余额变动全部经由 LedgerService
type OrderService struct {
	db             *gorm.DB
	ledger         *LedgerService
	orderRepo      *repository.OrderRepository
	outboxRepo     *repository.OutboxRepository
	restaurantRepo *repository.RestaurantRepository
	cfg            *config.Config
}

func NewOrderService(db *gorm.DB, ledger *LedgerService, cfg *config.Config) *OrderService {
	return &OrderService{
		db:             db,
		ledger:         ledger,
		orderRepo:      repository.NewOrderRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
		restaurantRepo: repository.NewRestaurantRepository(db),
		cfg:            cfg,
	}
}

// OrderItemRequest 只带菜品与数量，名称和单价以菜单为准
type OrderItemRequest struct {
	MenuItemID int64
	Quantity   int
}

type PlaceOrderRequest struct {
	RequestID string
	AccountID int64
	Items     []OrderItemRequest
}

type PlaceOrderResult struct {
	Order      *model.Order    `json:"order"`
	NewBalance decimal.Decimal `json:"new_balance"`
	// Duplicate 为 true 表示 request_id 已处理过，返回的是原订单
	Duplicate bool `json:"duplicate"`
}

type orderEvent struct {
	OrderNo     string `json:"order_no"`
	AccountID   int64  `json:"account_id"`
	Status      string `json:"status"`
	TotalAmount string `json:"total_amount"`
	OccurredAt  string `json:"occurred_at"`
}

// PlaceOrder 按菜单单价计算 Σ 数量×单价 扣款并创建待处理订单，
// 订单、明细与扣款流水同一事务提交
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	if strings.TrimSpace(req.RequestID) == "" {
		return nil, newError(KindInvalidArgument, "request_id 不能为空", nil)
	}
	if err := validateOrderItems(req.Items); err != nil {
		return nil, err
	}

	// 幂等：同一 request_id 直接返回原订单
	if existing, err := s.findDuplicate(ctx, nil, req, nil); existing != nil || err != nil {
		return existing, err
	}

	items, total, err := s.priceOrderItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var result *PlaceOrderResult
	err = s.ledger.withAccount(ctx, req.AccountID, func(tx *gorm.DB, account *model.EmployeeAccount) error {
		dup, err := s.findDuplicate(ctx, tx, req, account)
		if err != nil {
			return err
		}
		if dup != nil {
			result = dup
			return nil
		}

		now := time.Now()
		order := &model.Order{
			OrderNo:     idgen.GenerateOrderNo(),
			RequestID:   req.RequestID,
			AccountID:   account.ID,
			TotalAmount: total,
			Status:      model.OrderStatusPending,
			Items:       cloneItems(items),
		}
		if _, err := s.ledger.applyCharge(ctx, tx, account, total, order.OrderNo, "食堂订单扣款", now); err != nil {
			return err
		}
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}
		if err := s.publishOrderEvent(ctx, tx, order, now); err != nil {
			return err
		}

		result = &PlaceOrderResult{Order: order, NewBalance: account.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		log.Printf("[Order] 下单成功: orderNo=%s, accountID=%d, total=%s, balance=%s",
			result.Order.OrderNo, req.AccountID, total.StringFixed(2), result.NewBalance.StringFixed(2))
	}
	return result, nil
}

// findDuplicate account 为 nil 时单独读取账户当前余额
func (s *OrderService) findDuplicate(ctx context.Context, tx *gorm.DB, req *PlaceOrderRequest, account *model.EmployeeAccount) (*PlaceOrderResult, error) {
	existing, err := s.orderRepo.GetByRequestID(ctx, tx, req.RequestID)
	if err != nil {
		return nil, classify(err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.AccountID != req.AccountID {
		return nil, newError(KindInvalidArgument, "request_id 已被其他账户使用", nil)
	}
	if account == nil {
		if account, err = s.ledger.accountRepo.GetByID(ctx, existing.AccountID); err != nil {
			return nil, classify(err)
		}
	}
	return &PlaceOrderResult{Order: existing, NewBalance: account.Balance, Duplicate: true}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, classify(err)
	}
	return order, nil
}

// ListOrders accountID 为 0 时查询全部订单
func (s *OrderService) ListOrders(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Order, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	orders, total, err := s.orderRepo.ListByAccountID(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, 0, persistence("查询订单失败", err)
	}
	return orders, total, nil
}

// UpdateStatus 推进订单状态，目标为 CANCELLED 时走取消退款流程
func (s *OrderService) UpdateStatus(ctx context.Context, orderNo, status string) (*model.Order, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !model.IsKnownOrderStatus(status) {
		return nil, newError(KindInvalidArgument, fmt.Sprintf("未知的订单状态: %s", status), nil)
	}
	if status == model.OrderStatusCancelled {
		return s.CancelOrder(ctx, orderNo, "")
	}

	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, classify(err)
	}

	// 状态更新与事件同一事务提交，事件写入失败时状态一并回滚
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, order.Status, status); err != nil {
			return err
		}
		return s.publishOrderEvent(ctx, tx, &model.Order{
			OrderNo:     order.OrderNo,
			AccountID:   order.AccountID,
			TotalAmount: order.TotalAmount,
			Status:      status,
		}, time.Now())
	})
	if err != nil {
		return nil, classify(err)
	}

	log.Printf("[Order] 状态更新: orderNo=%s, %s -> %s", orderNo, order.Status, status)
	order.Status = status
	return order, nil
}

// CancelOrder 取消待处理或制作中的订单，并把已扣金额以 REFUND 流水退回
func (s *OrderService) CancelOrder(ctx context.Context, orderNo, reason string) (*model.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, classify(err)
	}
	if reason == "" {
		reason = "订单取消退款"
	}

	var cancelled *model.Order
	err = s.ledger.withAccount(ctx, order.AccountID, func(tx *gorm.DB, account *model.EmployeeAccount) error {
		current, err := s.orderRepo.GetByOrderNoTx(ctx, tx, orderNo)
		if err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, current.Status, model.OrderStatusCancelled); err != nil {
			return err
		}
		now := time.Now()
		if _, err := s.ledger.applyRefund(ctx, tx, account, current.TotalAmount, orderNo, reason, now); err != nil {
			return err
		}

		current.Status = model.OrderStatusCancelled
		current.CancelledAt = &now
		if err := s.publishOrderEvent(ctx, tx, current, now); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Order] 订单已取消并退款: orderNo=%s, amount=%s", orderNo, cancelled.TotalAmount.StringFixed(2))
	return cancelled, nil
}

func (s *OrderService) publishOrderEvent(ctx context.Context, tx *gorm.DB, order *model.Order, at time.Time) error {
	if !s.cfg.Kafka.Enabled {
		return nil
	}
	payload, err := json.Marshal(orderEvent{
		OrderNo:     order.OrderNo,
		AccountID:   order.AccountID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount.StringFixed(2),
		OccurredAt:  at.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      s.cfg.Kafka.Topic.OrderEvent,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

// validateOrderItems 只校验明细结构，不访问菜单
func validateOrderItems(reqs []OrderItemRequest) error {
	if len(reqs) == 0 {
		return newError(KindInvalidArgument, "订单至少包含一个菜品", nil)
	}
	for _, r := range reqs {
		if r.Quantity <= 0 {
			return newError(KindInvalidArgument, fmt.Sprintf("菜品 %d 数量必须大于0", r.MenuItemID), nil)
		}
	}
	return nil
}

// priceOrderItems 按菜单填充名称与单价并计算订单总额
func (s *OrderService) priceOrderItems(ctx context.Context, reqs []OrderItemRequest) ([]model.OrderItem, decimal.Decimal, error) {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.MenuItemID)
	}
	menu, err := s.restaurantRepo.GetMenuItemsByIDs(ctx, nil, ids)
	if err != nil {
		return nil, decimal.Zero, persistence("查询菜单失败", err)
	}

	items := make([]model.OrderItem, 0, len(reqs))
	total := decimal.Zero
	for _, r := range reqs {
		menuItem, ok := menu[r.MenuItemID]
		if !ok {
			return nil, decimal.Zero, newError(KindMenuItemNotFound, fmt.Sprintf("菜品 %d 不存在", r.MenuItemID), nil)
		}
		if !menuItem.Available {
			return nil, decimal.Zero, newError(KindInvalidArgument, fmt.Sprintf("菜品 %s 已下架", menuItem.Name), nil)
		}
		item := model.OrderItem{
			MenuItemID:   menuItem.ID,
			MenuItemName: menuItem.Name,
			Quantity:     r.Quantity,
			UnitPrice:    menuItem.Price,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}
	if total.GreaterThan(maxAmount) {
		return nil, decimal.Zero, ErrInvalidAmount
	}
	return items, total, nil
}

// cloneItems 重试时每次都需要未写入过的明细
func cloneItems(items []model.OrderItem) []model.OrderItem {
	out := make([]model.OrderItem, len(items))
	copy(out, items)
	return out
}
