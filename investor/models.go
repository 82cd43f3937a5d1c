package investor

import (
	"strings"

	"github.com/google/uuid"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/types"
)

type Investor struct {
	types.Entity
	ID           id.InvestorID     `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email,omitempty"`
	ReferralCode string            `json:"referral_code"`
	ReferredBy   id.InvestorID     `json:"referred_by"`
	BonusBalance types.Money       `json:"bonus_balance"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// HasReferrer reports whether the investor joined through a referral code.
func (i *Investor) HasReferrer() bool { return !i.ReferredBy.IsNil() }

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 8

// NewReferralCode returns a random upper-case hexadecimal referral code.
func NewReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:ReferralCodeLength])
}

// NormalizeReferralCode trims and upper-cases a user supplied code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
