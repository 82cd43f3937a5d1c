package referral

import (
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/types"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusUsed    Status = "used"
)

// Record is one bonus earned by ReferrerID when ReferredID placed
// InvestmentID. Level 1 is the direct referrer.
type Record struct {
	types.Entity
	ID             id.ReferralID   `json:"id"`
	ReferrerID     id.InvestorID   `json:"referrer_id"`
	ReferredID     id.InvestorID   `json:"referred_id"`
	InvestmentID   id.InvestmentID `json:"investment_id"`
	Level          int             `json:"level"`
	AmountInvested types.Money     `json:"amount_invested"`
	BonusEarned    types.Money     `json:"bonus_earned"`
	Status         Status          `json:"status"`
	UsedAt         *time.Time      `json:"used_at,omitempty"`
	SplitFrom      id.ReferralID   `json:"split_from"`
}

// MarkUsed flags the record as consumed at now.
func (r *Record) MarkUsed(now time.Time) {
	r.Status = StatusUsed
	t := now.UTC()
	r.UsedAt = &t
	r.TouchAt(now)
}
