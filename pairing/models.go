package pairing

import (
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/types"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Pairing records one match: the new investor owes AmountMatched to the
// matured investor by DueAt. Only the payment status fields change after
// creation.
type Pairing struct {
	ID                  id.PairingID    `json:"id"`
	MaturedInvestmentID id.InvestmentID `json:"matured_investment_id"`
	MaturedInvestorID   id.InvestorID   `json:"matured_investor_id"`
	NewInvestmentID     id.InvestmentID `json:"new_investment_id"`
	NewInvestorID       id.InvestorID   `json:"new_investor_id"`
	QueueEntryID        id.QueueEntryID `json:"queue_entry_id"`
	AmountMatched       types.Money     `json:"amount_matched"`
	PairedAt            time.Time       `json:"paired_at"`
	DueAt               time.Time       `json:"due_at"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
	FailedAt            *time.Time      `json:"failed_at,omitempty"`
	ReminderSentAt      *time.Time      `json:"reminder_sent_at,omitempty"`
}

// IsOverdue reports whether the pairing is still unpaid past its deadline.
func (p *Pairing) IsOverdue(now time.Time) bool {
	return p.PaymentStatus == PaymentPending && p.DueAt.Before(now)
}

// NeedsReminder reports whether a reminder should go out at now for a
// deadline within lead.
func (p *Pairing) NeedsReminder(now time.Time, lead time.Duration) bool {
	return p.PaymentStatus == PaymentPending &&
		p.ReminderSentAt == nil &&
		!p.DueAt.Before(now) &&
		p.DueAt.Sub(now) <= lead
}
