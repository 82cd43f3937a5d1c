package queue

import (
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/types"
)

// Entry is the unpaired remainder of one matured investment's return.
// Entries are served oldest EnqueuedAt first, then by Seq; an entry whose
// remainder reaches zero is deleted, never stored empty.
type Entry struct {
	ID              id.QueueEntryID `json:"id"`
	InvestmentID    id.InvestmentID `json:"investment_id"`
	InvestorID      id.InvestorID   `json:"investor_id"`
	AmountRemaining types.Money     `json:"amount_remaining"`
	EnqueuedAt      time.Time       `json:"enqueued_at"`
	Seq             int64           `json:"seq"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Before reports whether e is served before other.
func (e *Entry) Before(other *Entry) bool {
	if !e.EnqueuedAt.Equal(other.EnqueuedAt) {
		return e.EnqueuedAt.Before(other.EnqueuedAt)
	}
	return e.Seq < other.Seq
}

// Stats summarizes the queue.
type Stats struct {
	Entries   int64 `json:"entries"`
	Remaining int64 `json:"remaining"`
}
