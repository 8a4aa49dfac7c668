package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind 账本操作的错误分类，HTTP 层据此映射业务错误码
type ErrorKind string

const (
	KindInvalidAmount      ErrorKind = "INVALID_AMOUNT"
	KindAccountNotFound    ErrorKind = "ACCOUNT_NOT_FOUND"
	KindInsufficientFunds  ErrorKind = "INSUFFICIENT_FUNDS"
	KindPersistence        ErrorKind = "PERSISTENCE"
	KindDuplicateEmployee  ErrorKind = "DUPLICATE_EMPLOYEE"
	KindOrderNotFound      ErrorKind = "ORDER_NOT_FOUND"
	KindInvalidOrderStatus ErrorKind = "INVALID_ORDER_STATUS"
	KindInvalidArgument    ErrorKind = "INVALID_ARGUMENT"
	KindRestaurantNotFound ErrorKind = "RESTAURANT_NOT_FOUND"
	KindMenuItemNotFound   ErrorKind = "MENU_ITEM_NOT_FOUND"
)

// LedgerError 服务层统一返回的错误
//
// 用 errors.Is(err, ErrInsufficientFunds) 按分类判断，
// 余额不足时 Available/Required 携带可用余额与所需金额。
type LedgerError struct {
	Kind      ErrorKind
	Message   string
	Available decimal.Decimal
	Required  decimal.Decimal
	Err       error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidAmount      = &LedgerError{Kind: KindInvalidAmount, Message: "金额必须大于0且最多两位小数"}
	ErrAccountNotFound    = &LedgerError{Kind: KindAccountNotFound, Message: "账户不存在"}
	ErrInsufficientFunds  = &LedgerError{Kind: KindInsufficientFunds, Message: "余额不足"}
	ErrPersistence        = &LedgerError{Kind: KindPersistence, Message: "账本写入失败"}
	ErrDuplicateEmployee  = &LedgerError{Kind: KindDuplicateEmployee, Message: "员工编号或用户已登记"}
	ErrOrderNotFound      = &LedgerError{Kind: KindOrderNotFound, Message: "订单不存在"}
	ErrInvalidOrderStatus = &LedgerError{Kind: KindInvalidOrderStatus, Message: "订单状态不允许此操作"}
	ErrInvalidArgument    = &LedgerError{Kind: KindInvalidArgument, Message: "参数错误"}
	ErrRestaurantNotFound = &LedgerError{Kind: KindRestaurantNotFound, Message: "餐厅不存在"}
	ErrMenuItemNotFound   = &LedgerError{Kind: KindMenuItemNotFound, Message: "菜品不存在"}
)

func newError(kind ErrorKind, message string, err error) *LedgerError {
	return &LedgerError{Kind: kind, Message: message, Err: err}
}

func insufficientFunds(available, required decimal.Decimal) *LedgerError {
	return &LedgerError{
		Kind:      KindInsufficientFunds,
		Message:   fmt.Sprintf("余额不足: 可用 %s, 需要 %s", available.StringFixed(2), required.StringFixed(2)),
		Available: available,
		Required:  required,
	}
}

func persistence(message string, err error) *LedgerError {
	return newError(KindPersistence, message, err)
}
