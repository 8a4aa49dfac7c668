package handler

import (
	"errors"
	"strconv"
	"time"

	"cafeteria/internal/config"
	"cafeteria/internal/infrastructure/lock"
	"cafeteria/internal/model"
	"cafeteria/internal/service"
	"cafeteria/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledgerService     *service.LedgerService
	employeeService   *service.EmployeeService
	orderService      *service.OrderService
	restaurantService *service.RestaurantService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, locker lock.Locker, cfg *config.Config) *Handler {
	ledger := service.NewLedgerService(db, locker, cfg)
	return &Handler{
		ledgerService:     ledger,
		employeeService:   service.NewEmployeeService(db),
		orderService:      service.NewOrderService(db, ledger, cfg),
		restaurantService: service.NewRestaurantService(db),
	}
}

// writeError 把服务层错误分类映射为业务错误码
func writeError(c *gin.Context, err error) {
	var ledgerErr *service.LedgerError
	if !errors.As(err, &ledgerErr) {
		response.ServerError(c, err.Error())
		return
	}

	switch ledgerErr.Kind {
	case service.KindInvalidAmount:
		response.BusinessError(c, response.CodeInvalidAmount, ledgerErr.Message)
	case service.KindAccountNotFound:
		response.BusinessError(c, response.CodeAccountNotFound, ledgerErr.Message)
	case service.KindInsufficientFunds:
		response.ErrorWithData(c, response.CodeInsufficientFunds, ledgerErr.Message, gin.H{
			"available": ledgerErr.Available,
			"required":  ledgerErr.Required,
		})
	case service.KindDuplicateEmployee:
		response.BusinessError(c, response.CodeDuplicateEmployee, ledgerErr.Message)
	case service.KindOrderNotFound:
		response.BusinessError(c, response.CodeOrderNotFound, ledgerErr.Message)
	case service.KindInvalidOrderStatus:
		response.BusinessError(c, response.CodeOrderStatusInvalid, ledgerErr.Message)
	case service.KindRestaurantNotFound:
		response.BusinessError(c, response.CodeRestaurantNotFound, ledgerErr.Message)
	case service.KindMenuItemNotFound:
		response.BusinessError(c, response.CodeMenuItemNotFound, ledgerErr.Message)
	case service.KindInvalidArgument:
		response.ParamError(c, ledgerErr.Message)
	default:
		response.BusinessError(c, response.CodePersistence, ledgerErr.Message)
	}
}

func queryInt64(c *gin.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || v <= 0 {
		response.ParamError(c, key+" 参数错误")
		return 0, false
	}
	return v, true
}

func queryPage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ============================================================
// 员工账户
// ============================================================

type RegisterRequest struct {
	EmployeeNumber string `json:"employee_number" binding:"required"`
	Name           string `json:"name"`
	UserID         string `json:"user_id" binding:"required"`
}

// Register 登记员工账户
// POST /api/v1/employee/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.employeeService.Register(c.Request.Context(), &service.RegisterRequest{
		EmployeeNumber: req.EmployeeNumber,
		Name:           req.Name,
		UserID:         req.UserID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, account)
}

// GetEmployee 查询员工账户
// GET /api/v1/employee/detail?account_id=xxx | employee_number=xxx | user_id=xxx
func (h *Handler) GetEmployee(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		account *model.EmployeeAccount
		err     error
	)
	switch {
	case c.Query("employee_number") != "":
		account, err = h.employeeService.GetByEmployeeNumber(ctx, c.Query("employee_number"))
	case c.Query("user_id") != "":
		account, err = h.employeeService.GetByUserID(ctx, c.Query("user_id"))
	default:
		accountID, ok := queryInt64(c, "account_id")
		if !ok {
			return
		}
		account, err = h.employeeService.GetByID(ctx, accountID)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, account)
}

// ListEmployees 分页查询员工账户
// GET /api/v1/employee/list?page=1&page_size=20
func (h *Handler) ListEmployees(c *gin.Context) {
	page, pageSize := queryPage(c)

	accounts, total, err := h.employeeService.List(c.Request.Context(), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  accounts,
		"total": total,
		"page":  page,
	})
}

// ============================================================
// 账本
// ============================================================

type DepositRequest struct {
	AccountID  int64           `json:"account_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt *time.Time      `json:"occurred_at"`
}

// Deposit 充值，跨过月度档位时自动发放奖励
// POST /api/v1/ledger/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var occurredAt time.Time
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	result, err := h.ledgerService.Deposit(c.Request.Context(), req.AccountID, req.Amount, occurredAt)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

type ChargeRequest struct {
	AccountID int64           `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// Charge 扣款
// POST /api/v1/ledger/charge
func (h *Handler) Charge(c *gin.Context) {
	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledgerService.Charge(c.Request.Context(), req.AccountID, req.Amount, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// GetHistory 查询流水
// GET /api/v1/ledger/history?account_id=xxx&order=asc|desc
func (h *Handler) GetHistory(c *gin.Context) {
	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}

	order := service.HistoryOrder(c.Query("order"))
	if order != "" && order != service.HistoryOldestFirst && order != service.HistoryNewestFirst {
		response.ParamError(c, "order 只能是 asc 或 desc")
		return
	}

	records, err := h.ledgerService.GetHistory(c.Request.Context(), accountID, order)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": accountID,
		"records":    records,
	})
}

// GetStatement 对账单：余额、本月充值累计与全部流水
// GET /api/v1/ledger/statement?account_id=xxx
func (h *Handler) GetStatement(c *gin.Context) {
	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}

	statement, err := h.ledgerService.GetStatement(c.Request.Context(), accountID, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, statement)
}

// Reconcile 校验余额与流水之和，不带 account_id 时校验全部账户
// GET /api/v1/ledger/reconcile?account_id=xxx
func (h *Handler) Reconcile(c *gin.Context) {
	if c.Query("account_id") == "" {
		mismatched, checked, err := h.ledgerService.ReconcileAll(c.Request.Context(), 100)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, gin.H{
			"checked":    checked,
			"mismatched": mismatched,
		})
		return
	}

	accountID, ok := queryInt64(c, "account_id")
	if !ok {
		return
	}
	report, err := h.ledgerService.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, report)
}

// ============================================================
// 订单
// ============================================================

// OrderItemRequest 名称与单价由服务端按菜单填充
type OrderItemRequest struct {
	MenuItemID int64 `json:"menu_item_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,gt=0"`
}

type PlaceOrderRequest struct {
	RequestID string             `json:"request_id" binding:"required"` // 幂等ID
	AccountID int64              `json:"account_id" binding:"required"`
	Items     []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// PlaceOrder 下单并扣款
// POST /api/v1/order/place
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	items := make([]service.OrderItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.OrderItemRequest{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
		})
	}

	result, err := h.orderService.PlaceOrder(c.Request.Context(), &service.PlaceOrderRequest{
		RequestID: req.RequestID,
		AccountID: req.AccountID,
		Items:     items,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// GetOrder 查询订单详情
// GET /api/v1/order/detail?order_no=xxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrders 查询订单列表，不带 account_id 时返回全部订单
// GET /api/v1/order/list?account_id=xxx&page=1&page_size=20
func (h *Handler) ListOrders(c *gin.Context) {
	var accountID int64
	if c.Query("account_id") != "" {
		id, ok := queryInt64(c, "account_id")
		if !ok {
			return
		}
		accountID = id
	}
	page, pageSize := queryPage(c)

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  orders,
		"total": total,
		"page":  page,
	})
}

type UpdateOrderStatusRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

// UpdateOrderStatus 推进订单状态
// POST /api/v1/order/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), req.OrderNo, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, order)
}

type CancelOrderRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	Reason  string `json:"reason"`
}

// CancelOrder 取消订单并退款
// POST /api/v1/order/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), req.OrderNo, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, order)
}

// ============================================================
// 餐厅与菜单
// ============================================================

type AddRestaurantRequest struct {
	Name          string `json:"name" binding:"required"`
	Location      string `json:"location"`
	ContactNumber string `json:"contact_number"`
}

// AddRestaurant 添加餐厅
// POST /api/v1/restaurant/add
func (h *Handler) AddRestaurant(c *gin.Context) {
	var req AddRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	restaurant, err := h.restaurantService.AddRestaurant(c.Request.Context(), &service.AddRestaurantRequest{
		Name:          req.Name,
		Location:      req.Location,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, restaurant)
}

// ListRestaurants 全部餐厅及菜单
// GET /api/v1/restaurant/list
func (h *Handler) ListRestaurants(c *gin.Context) {
	restaurants, err := h.restaurantService.GetAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, restaurants)
}

// GetRestaurant GET /api/v1/restaurant/detail?restaurant_id=xxx
func (h *Handler) GetRestaurant(c *gin.Context) {
	restaurantID, ok := queryInt64(c, "restaurant_id")
	if !ok {
		return
	}

	restaurant, err := h.restaurantService.GetByID(c.Request.Context(), restaurantID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, restaurant)
}

type AddMenuItemRequest struct {
	RestaurantID int64           `json:"restaurant_id" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
}

// AddMenuItem 为餐厅添加菜品
// POST /api/v1/restaurant/menu/add
func (h *Handler) AddMenuItem(c *gin.Context) {
	var req AddMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	item, err := h.restaurantService.AddMenuItem(c.Request.Context(), &service.AddMenuItemRequest{
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, item)
}

// ListMenuItems GET /api/v1/restaurant/menu/list?restaurant_id=xxx
func (h *Handler) ListMenuItems(c *gin.Context) {
	restaurantID, ok := queryInt64(c, "restaurant_id")
	if !ok {
		return
	}

	items, err := h.restaurantService.ListMenuItems(c.Request.Context(), restaurantID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, items)
}

type MenuItemAvailabilityRequest struct {
	MenuItemID int64 `json:"menu_item_id" binding:"required"`
	Available  *bool `json:"available" binding:"required"`
}

// SetMenuItemAvailability 上架或下架菜品
// POST /api/v1/restaurant/menu/availability
func (h *Handler) SetMenuItemAvailability(c *gin.Context) {
	var req MenuItemAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	item, err := h.restaurantService.SetMenuItemAvailability(c.Request.Context(), req.MenuItemID, *req.Available)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, item)
}
