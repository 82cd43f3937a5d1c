package investment

import (
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/types"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusMatured         Status = "matured"
	StatusPaired          Status = "paired"
	StatusPartiallyPaired Status = "partially_paired"
	StatusPartiallyPaid   Status = "partially_paid"
	StatusCompleted       Status = "completed"
)

// Investment is both sides of the scheme over its life. While MaturedAt is
// nil it is demand waiting to be funded (AmountMatched tracks progress);
// once matured it is supply whose ReturnAmount is paid down (AmountPaid).
type Investment struct {
	types.Entity
	ID                 id.InvestmentID   `json:"id"`
	InvestorID         id.InvestorID     `json:"investor_id"`
	Amount             types.Money       `json:"amount"`
	MaturityDays       int               `json:"maturity_days"`
	MaturesAt          time.Time         `json:"matures_at"`
	ReturnAmount       types.Money       `json:"return_amount"`
	ReferralBonusUsed  types.Money       `json:"referral_bonus_used"`
	AmountMatched      types.Money       `json:"amount_matched"`
	AmountPaid         types.Money       `json:"amount_paid"`
	Status             Status            `json:"status"`
	FundedAt           *time.Time        `json:"funded_at,omitempty"`
	MaturedAt          *time.Time        `json:"matured_at,omitempty"`
	LastPaymentAt      *time.Time        `json:"last_payment_at,omitempty"`
	PaymentConfirmedAt *time.Time        `json:"payment_confirmed_at,omitempty"`
	TransactionRef     string            `json:"transaction_ref,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Unmet is the part of the principal not yet covered by pairings.
func (i *Investment) Unmet() types.Money {
	return i.Amount.Subtract(i.AmountMatched)
}

// Outstanding is the part of the return amount not yet repaid.
func (i *Investment) Outstanding() types.Money {
	return i.ReturnAmount.Subtract(i.AmountPaid)
}

// IsMatured reports whether the investment has reached maturity and entered
// the supply side.
func (i *Investment) IsMatured() bool { return i.MaturedAt != nil }

// IsDemand reports whether the investment still waits for funding.
func (i *Investment) IsDemand() bool {
	return i.Status == StatusPending && !i.IsMatured() && i.Unmet().IsPositive()
}

// DueForMaturity reports whether the holding period has elapsed at now and
// the investment is in a state that may mature.
func (i *Investment) DueForMaturity(now time.Time, fundedOnly bool) bool {
	if i.IsMatured() || now.Before(i.MaturesAt) {
		return false
	}
	switch i.Status {
	case StatusPaired:
		return true
	case StatusPending:
		return !fundedOnly
	default:
		return false
	}
}

// IsPayable reports whether payments may be credited against the return.
func (i *Investment) IsPayable() bool {
	if !i.IsMatured() {
		return false
	}
	switch i.Status {
	case StatusPaired, StatusPartiallyPaired, StatusPartiallyPaid:
		return true
	default:
		return false
	}
}
