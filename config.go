package payout

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the business parameters of the engine.
type Config struct {
	// Currency of every investment, ISO 4217 lower-case.
	Currency string `json:"currency"`

	// BonusRate is paid to every ancestor of an investing investor, as a
	// fraction of the principal.
	BonusRate decimal.Decimal `json:"bonus_rate"`

	// DailyInterestRate accrues on the principal for every day of the
	// holding period.
	DailyInterestRate decimal.Decimal `json:"daily_interest_rate"`

	// MaxReferralDepth bounds the cascade; 0 walks the whole chain.
	MaxReferralDepth int `json:"max_referral_depth"`

	// GraceWindow is how long a new investor has to pay a pairing.
	GraceWindow time.Duration `json:"grace_window"`

	// ReminderLead is how long before the due time a reminder goes out.
	ReminderLead time.Duration `json:"reminder_lead"`

	// BiddingWindows gate RunMatchingPass. Empty means always open.
	BiddingWindows []Window `json:"bidding_windows"`

	// Timezone the bidding windows are expressed in.
	Timezone string `json:"timezone"`

	// MinInvestment and MaxInvestment bound the principal in minor units.
	// Zero disables the bound.
	MinInvestment int64 `json:"min_investment"`
	MaxInvestment int64 `json:"max_investment"`

	// MaturityDays lists the allowed holding periods. Empty allows any
	// positive number of days.
	MaturityDays []int `json:"maturity_days"`

	// RequeueOverdue puts the unpaid part of a failed pairing back on the
	// queue.
	RequeueOverdue bool `json:"requeue_overdue"`

	// FundedMaturityOnly restricts maturity to investments whose demand was
	// fully funded.
	FundedMaturityOnly bool `json:"funded_maturity_only"`

	// AllowSelfPairing lets an investor's new investment be funded by their
	// own matured investment.
	AllowSelfPairing bool `json:"allow_self_pairing"`

	// NotifyTimeout bounds one notification delivery.
	NotifyTimeout time.Duration `json:"notify_timeout"`

	// NotifyBuffer is the capacity of the notification queue.
	NotifyBuffer int `json:"notify_buffer"`

	// PluginTimeout bounds one plugin hook call.
	PluginTimeout time.Duration `json:"plugin_timeout"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Currency:          "kes",
		BonusRate:         decimal.RequireFromString("0.03"),
		DailyInterestRate: decimal.RequireFromString("0.02"),
		MaxReferralDepth:  2,
		GraceWindow:       24 * time.Hour,
		ReminderLead:      6 * time.Hour,
		BiddingWindows: []Window{
			{Start: "09:00", End: "09:40"},
			{Start: "17:00", End: "17:40"},
		},
		Timezone:      "Africa/Nairobi",
		NotifyTimeout: 10 * time.Second,
		NotifyBuffer:  1024,
		PluginTimeout: 5 * time.Second,
	}
}

// Validate reports every problem with c.
func (c Config) Validate() error {
	var errs MultiError

	if c.Currency == "" {
		errs.Add(fmt.Errorf("%w: currency is required", ErrInvalidConfig))
	}
	if c.BonusRate.IsNegative() {
		errs.Add(fmt.Errorf("%w: bonus_rate %s is negative", ErrInvalidConfig, c.BonusRate))
	}
	if c.DailyInterestRate.IsNegative() {
		errs.Add(fmt.Errorf("%w: daily_interest_rate %s is negative", ErrInvalidConfig, c.DailyInterestRate))
	}
	if c.MaxReferralDepth < 0 {
		errs.Add(fmt.Errorf("%w: max_referral_depth %d is negative", ErrInvalidConfig, c.MaxReferralDepth))
	}
	if c.GraceWindow <= 0 {
		errs.Add(fmt.Errorf("%w: grace_window must be positive", ErrInvalidConfig))
	}
	if c.ReminderLead < 0 {
		errs.Add(fmt.Errorf("%w: reminder_lead is negative", ErrInvalidConfig))
	}
	if c.MinInvestment < 0 || c.MaxInvestment < 0 {
		errs.Add(fmt.Errorf("%w: investment bounds are negative", ErrInvalidConfig))
	}
	if c.MinInvestment > 0 && c.MaxInvestment > 0 && c.MinInvestment > c.MaxInvestment {
		errs.Add(fmt.Errorf("%w: min_investment %d exceeds max_investment %d", ErrInvalidConfig, c.MinInvestment, c.MaxInvestment))
	}
	if slices.ContainsFunc(c.MaturityDays, func(d int) bool { return d <= 0 }) {
		errs.Add(fmt.Errorf("%w: maturity_days must be positive", ErrInvalidConfig))
	}
	if _, err := compileWindows(c.BiddingWindows); err != nil {
		errs.Add(err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs.Add(fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err))
	}

	return errs.ErrOrNil()
}
