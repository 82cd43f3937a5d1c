package payment

import (
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/types"
)

type Method string

const (
	MethodManual Method = "manual"
	MethodMobile Method = "mobile_money"
	MethodBank   Method = "bank_transfer"
)

// Payment is one recorded transfer credited to a matured investment. Amount
// is the applied amount after clamping to what was still owed.
type Payment struct {
	types.Entity
	ID             id.PaymentID    `json:"id"`
	PairingID      id.PairingID    `json:"pairing_id"`
	InvestmentID   id.InvestmentID `json:"investment_id"`
	FromInvestorID id.InvestorID   `json:"from_investor_id"`
	ToInvestorID   id.InvestorID   `json:"to_investor_id"`
	Amount         types.Money     `json:"amount"`
	Reference      string          `json:"reference"`
	Method         Method          `json:"method"`
	Notes          string          `json:"notes,omitempty"`
}
