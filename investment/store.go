package investment

import (
	"context"
	"time"

	"github.com/xraph/payout/id"
)

type Store interface {
	GetInvestment(ctx context.Context, investmentID id.InvestmentID) (*Investment, error)
	ListInvestments(ctx context.Context, opts ListOpts) ([]*Investment, error)
	CountInvestmentsByStatus(ctx context.Context) (map[Status]int64, error)
}

// ListOpts filters investments. Results are ordered by creation time, then ID.
type ListOpts struct {
	InvestorID id.InvestorID
	Statuses   []Status
	// Unmatured restricts results to investments with no MaturedAt.
	Unmatured bool
	// MaturesBefore restricts results to investments whose holding period
	// ends at or before the instant.
	MaturesBefore time.Time
	Limit         int
	Offset        int
}
