package extension

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/payout"
)

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		Currency:    "usd",
		GraceWindow: 12 * time.Hour,
	}
	prog := Config{
		Currency:       "eur",
		BonusRate:      "0.05",
		RequeueOverdue: true,
		MaturityDays:   []int{7, 14},
	}

	got := mergeConfigurations(yaml, prog)

	if got.Currency != "usd" {
		t.Errorf("Currency = %q, want yaml value usd", got.Currency)
	}
	if got.BonusRate != "0.05" {
		t.Errorf("BonusRate = %q, want programmatic 0.05", got.BonusRate)
	}
	if got.GraceWindow != 12*time.Hour {
		t.Errorf("GraceWindow = %v", got.GraceWindow)
	}
	if !got.RequeueOverdue {
		t.Error("programmatic RequeueOverdue lost")
	}
	if len(got.MaturityDays) != 2 {
		t.Errorf("MaturityDays = %v", got.MaturityDays)
	}
	if got.ReminderLead != 6*time.Hour {
		t.Errorf("ReminderLead default not applied: %v", got.ReminderLead)
	}
	if len(got.BiddingWindows) != 2 {
		t.Errorf("default bidding windows not applied: %v", got.BiddingWindows)
	}
}

func TestAlwaysOpenKeepsWindowsEmpty(t *testing.T) {
	cfg := mergeWithDefaults(Config{AlwaysOpen: true})
	if len(cfg.BiddingWindows) != 0 {
		t.Fatalf("BiddingWindows = %v, want none", cfg.BiddingWindows)
	}

	engine, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if len(engine.BiddingWindows) != 0 {
		t.Fatalf("engine windows = %v, want none", engine.BiddingWindows)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := mergeWithDefaults(Config{
		DailyInterestRate: "0.015",
		MinInvestment:     1000,
		MaxInvestment:     500000,
		BiddingWindows:    []payout.Window{{Start: "22:00", End: "02:00"}},
		Timezone:          "UTC",
	})

	got, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	if got.DailyInterestRate.String() != "0.015" {
		t.Errorf("DailyInterestRate = %s", got.DailyInterestRate)
	}
	if got.BonusRate.String() != "0.03" {
		t.Errorf("BonusRate = %s", got.BonusRate)
	}
	if got.MinInvestment != 1000 || got.MaxInvestment != 500000 {
		t.Errorf("bounds = %d..%d", got.MinInvestment, got.MaxInvestment)
	}
	if len(got.BiddingWindows) != 1 || got.Timezone != "UTC" {
		t.Errorf("windows = %v in %s", got.BiddingWindows, got.Timezone)
	}
}

func TestEngineConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad rate", Config{BonusRate: "three percent"}},
		{"negative rate", Config{DailyInterestRate: "-0.01"}},
		{"bad window", Config{BiddingWindows: []payout.Window{{Start: "9am", End: "10am"}}}},
		{"bounds", Config{MinInvestment: 10, MaxInvestment: 5}},
		{"timezone", Config{Timezone: "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.EngineConfig()
			if !errors.Is(err, payout.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
