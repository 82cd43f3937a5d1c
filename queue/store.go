package queue

import (
	"context"

	"github.com/xraph/payout/id"
)

type Store interface {
	ListQueue(ctx context.Context, opts ListOpts) ([]*Entry, error)
	GetQueueEntryByInvestment(ctx context.Context, investmentID id.InvestmentID) (*Entry, error)
	QueueStats(ctx context.Context) (Stats, error)
}

type ListOpts struct {
	InvestorID id.InvestorID
	Limit      int
	Offset     int
}
