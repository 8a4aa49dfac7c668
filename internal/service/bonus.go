package service

import (
	"time"

	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

// MonthKey 返回 t 所在自然月，格式 YYYY-MM
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}

// ShouldResetMonthly 本次充值与上次计入累计的充值不在同一自然月时，月度累计清零
func ShouldResetMonthly(lastMonth string, now time.Time) bool {
	return lastMonth != MonthKey(now)
}

// ComputeBonus 计算本次充值新跨过的档位奖励
//
// 奖励按月度累计额计算而不是按单笔：累计额每跨过一个 threshold 的整数倍奖励一次 bonus，
// 一笔充值跨过多个档位时按档位数奖励。返回奖励金额和跨过的档位数。
func ComputeBonus(previousTotal, newTotal, threshold, bonus decimal.Decimal) (decimal.Decimal, int64) {
	if !threshold.IsPositive() {
		return decimal.Zero, 0
	}
	previousCount := tierCount(previousTotal, threshold)
	newCount := tierCount(newTotal, threshold)
	tiers := newCount - previousCount
	if tiers <= 0 {
		return decimal.Zero, 0
	}
	return bonus.Mul(decimal.NewFromInt(tiers)), tiers
}

// tierCount floor(total / threshold)，累计额非负
func tierCount(total, threshold decimal.Decimal) int64 {
	if !total.IsPositive() {
		return 0
	}
	q, _ := total.QuoRem(threshold, 0)
	return q.IntPart()
}

// validAmount 金额必须为正且不超过两位小数
// maxAmount decimal(18,2) 列能存下的最大金额
var maxAmount = decimal.RequireFromString("9999999999999999.99")

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(2)) && amount.LessThanOrEqual(maxAmount)
}
