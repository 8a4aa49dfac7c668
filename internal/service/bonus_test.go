package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestShouldResetMonthly(t *testing.T) {
	oct := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		lastMonth string
		now       time.Time
		want      bool
	}{
		{"never deposited", "", oct, true},
		{"same month", "2026-10", oct, false},
		{"same month last second", "2026-10", time.Date(2026, time.October, 31, 23, 59, 59, 0, time.UTC), false},
		{"next month", "2026-10", time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), true},
		{"same month number different year", "2025-10", oct, true},
		{"earlier month", "2026-11", oct, true},
	}
	for _, c := range cases {
		if got := ShouldResetMonthly(c.lastMonth, c.now); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestComputeBonus(t *testing.T) {
	threshold, bonus := d("250"), d("500")

	cases := []struct {
		prev, next string
		want       string
		tiers      int64
	}{
		{"0", "100", "0", 0},
		{"0", "249.99", "0", 0},
		{"249.99", "250.01", "500", 1},
		{"0", "250", "500", 1},
		{"0", "260", "500", 1},
		{"0", "500", "1000", 2},
		{"240", "760", "1500", 3},
		{"260", "400", "0", 0},
		{"250", "499.99", "0", 0},
		{"499.99", "500", "500", 1},
	}
	for _, c := range cases {
		got, tiers := ComputeBonus(d(c.prev), d(c.next), threshold, bonus)
		if !got.Equal(d(c.want)) || tiers != c.tiers {
			t.Fatalf("%s -> %s: expected %s (%d tiers), got %s (%d tiers)", c.prev, c.next, c.want, c.tiers, got, tiers)
		}
	}
}

func TestComputeBonusZeroThreshold(t *testing.T) {
	got, tiers := ComputeBonus(d("0"), d("1000"), decimal.Zero, d("500"))
	if !got.IsZero() || tiers != 0 {
		t.Fatalf("expected no bonus with zero threshold, got %s", got)
	}
}

func TestValidAmount(t *testing.T) {
	for _, s := range []string{"0.01", "1", "249.99", "10.10", "9999999999999999.99"} {
		if !validAmount(d(s)) {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	for _, s := range []string{"0", "-5", "0.001", "1.999", "10000000000000000", "92233720368547758070000"} {
		if validAmount(d(s)) {
			t.Fatalf("expected %s to be invalid", s)
		}
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)); got != "2026-02" {
		t.Fatalf("unexpected month key %q", got)
	}
}
