package investment

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/payout/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaired, true},
		{StatusPending, StatusMatured, true},
		{StatusPending, StatusCompleted, false},
		{StatusMatured, StatusPartiallyPaired, true},
		{StatusMatured, StatusCompleted, false},
		{StatusPaired, StatusMatured, true},
		{StatusPaired, StatusPartiallyPaired, true},
		{StatusPartiallyPaired, StatusPartiallyPaired, true},
		{StatusPartiallyPaid, StatusCompleted, true},
		{StatusPartiallyPaid, StatusPaired, false},
		{StatusCompleted, StatusPending, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inv := &Investment{Status: StatusCompleted}

	err := inv.Transition(StatusPending, now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if inv.Status != StatusCompleted {
		t.Errorf("status changed to %s", inv.Status)
	}
}

func TestComputeReturn(t *testing.T) {
	tests := []struct {
		name      string
		principal int64
		days      int
		rate      string
		bonus     int64
		want      int64
	}{
		{"no interest", 100000, 30, "0", 0, 100000},
		{"two percent daily", 100000, 10, "0.02", 0, 120000},
		{"with bonus", 100000, 10, "0.02", 4500, 124500},
		{"fractional rounds", 333, 1, "0.015", 0, 338},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeReturn(types.KES(tt.principal), tt.days, decimal.RequireFromString(tt.rate), types.KES(tt.bonus))
			if got.Amount != tt.want {
				t.Errorf("ComputeReturn = %d, want %d", got.Amount, tt.want)
			}
		})
	}
}

func TestDueForMaturity(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	matured := past

	tests := []struct {
		name       string
		inv        Investment
		fundedOnly bool
		want       bool
	}{
		{"pending due", Investment{Status: StatusPending, MaturesAt: past}, false, true},
		{"pending due funded only", Investment{Status: StatusPending, MaturesAt: past}, true, false},
		{"paired due", Investment{Status: StatusPaired, MaturesAt: past}, true, true},
		{"not yet", Investment{Status: StatusPending, MaturesAt: now.Add(time.Hour)}, false, false},
		{"exactly now", Investment{Status: StatusPending, MaturesAt: now}, false, true},
		{"already matured", Investment{Status: StatusPaired, MaturesAt: past, MaturedAt: &matured}, false, false},
		{"completed", Investment{Status: StatusCompleted, MaturesAt: past}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.DueForMaturity(now, tt.fundedOnly); got != tt.want {
				t.Errorf("DueForMaturity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDemand(t *testing.T) {
	inv := Investment{
		Status:        StatusPending,
		Amount:        types.KES(1000),
		AmountMatched: types.KES(400),
	}
	if !inv.IsDemand() {
		t.Fatal("partly funded pending investment should be demand")
	}
	inv.AmountMatched = types.KES(1000)
	if inv.IsDemand() {
		t.Fatal("fully funded investment is not demand")
	}
}

func TestNewTransactionRef(t *testing.T) {
	ref := NewTransactionRef()
	if len(ref) != len("INV-")+8 || ref[:4] != "INV-" {
		t.Errorf("unexpected reference %q", ref)
	}
}
