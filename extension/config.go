package extension

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/payout"
)

// Config holds the payout extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.payout" or "payout" keys).
// Zero values fall back to payout.DefaultConfig.
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableMetrics skips registering the Prometheus metrics plugin even
	// when a registerer was supplied.
	DisableMetrics bool `json:"disable_metrics" mapstructure:"disable_metrics" yaml:"disable_metrics"`

	// Currency of every investment (default: "kes").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// BonusRate and DailyInterestRate are decimal strings such as "0.03".
	BonusRate         string `json:"bonus_rate" mapstructure:"bonus_rate" yaml:"bonus_rate"`
	DailyInterestRate string `json:"daily_interest_rate" mapstructure:"daily_interest_rate" yaml:"daily_interest_rate"`

	// MaxReferralDepth bounds the referral cascade (default: 2).
	MaxReferralDepth int `json:"max_referral_depth" mapstructure:"max_referral_depth" yaml:"max_referral_depth"`

	// GraceWindow is how long a pairing may stay unpaid (default: 24h).
	GraceWindow time.Duration `json:"grace_window" mapstructure:"grace_window" yaml:"grace_window"`

	// ReminderLead is how long before the deadline a reminder goes out
	// (default: 6h).
	ReminderLead time.Duration `json:"reminder_lead" mapstructure:"reminder_lead" yaml:"reminder_lead"`

	// BiddingWindows gate matching. Leave empty for the defaults; set
	// AlwaysOpen to match at any time.
	BiddingWindows []payout.Window `json:"bidding_windows" mapstructure:"bidding_windows" yaml:"bidding_windows"`
	AlwaysOpen     bool            `json:"always_open" mapstructure:"always_open" yaml:"always_open"`

	// Timezone of the bidding windows (default: "Africa/Nairobi").
	Timezone string `json:"timezone" mapstructure:"timezone" yaml:"timezone"`

	MinInvestment int64 `json:"min_investment" mapstructure:"min_investment" yaml:"min_investment"`
	MaxInvestment int64 `json:"max_investment" mapstructure:"max_investment" yaml:"max_investment"`
	MaturityDays  []int `json:"maturity_days" mapstructure:"maturity_days" yaml:"maturity_days"`

	RequeueOverdue     bool `json:"requeue_overdue" mapstructure:"requeue_overdue" yaml:"requeue_overdue"`
	FundedMaturityOnly bool `json:"funded_maturity_only" mapstructure:"funded_maturity_only" yaml:"funded_maturity_only"`
	AllowSelfPairing   bool `json:"allow_self_pairing" mapstructure:"allow_self_pairing" yaml:"allow_self_pairing"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	d := payout.DefaultConfig()
	return Config{
		Currency:          d.Currency,
		BonusRate:         d.BonusRate.String(),
		DailyInterestRate: d.DailyInterestRate.String(),
		MaxReferralDepth:  d.MaxReferralDepth,
		GraceWindow:       d.GraceWindow,
		ReminderLead:      d.ReminderLead,
		BiddingWindows:    d.BiddingWindows,
		Timezone:          d.Timezone,
	}
}

// EngineConfig converts c into the engine configuration, starting from
// payout.DefaultConfig and overriding every field c sets.
func (c Config) EngineConfig() (payout.Config, error) {
	out := payout.DefaultConfig()

	if c.Currency != "" {
		out.Currency = c.Currency
	}
	if c.BonusRate != "" {
		rate, err := decimal.NewFromString(c.BonusRate)
		if err != nil {
			return out, fmt.Errorf("%w: bonus_rate %q: %w", payout.ErrInvalidConfig, c.BonusRate, err)
		}
		out.BonusRate = rate
	}
	if c.DailyInterestRate != "" {
		rate, err := decimal.NewFromString(c.DailyInterestRate)
		if err != nil {
			return out, fmt.Errorf("%w: daily_interest_rate %q: %w", payout.ErrInvalidConfig, c.DailyInterestRate, err)
		}
		out.DailyInterestRate = rate
	}
	if c.MaxReferralDepth != 0 {
		out.MaxReferralDepth = c.MaxReferralDepth
	}
	if c.GraceWindow != 0 {
		out.GraceWindow = c.GraceWindow
	}
	if c.ReminderLead != 0 {
		out.ReminderLead = c.ReminderLead
	}
	switch {
	case c.AlwaysOpen:
		out.BiddingWindows = nil
	case len(c.BiddingWindows) > 0:
		out.BiddingWindows = c.BiddingWindows
	}
	if c.Timezone != "" {
		out.Timezone = c.Timezone
	}
	out.MinInvestment = c.MinInvestment
	out.MaxInvestment = c.MaxInvestment
	out.MaturityDays = c.MaturityDays
	out.RequeueOverdue = c.RequeueOverdue
	out.FundedMaturityOnly = c.FundedMaturityOnly
	out.AllowSelfPairing = c.AllowSelfPairing

	return out, out.Validate()
}
