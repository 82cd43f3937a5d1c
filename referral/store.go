package referral

import (
	"context"

	"github.com/xraph/payout/id"
)

type Store interface {
	ListReferrals(ctx context.Context, opts ListOpts) ([]*Record, error)
}

// ListOpts filters referral records. Results are ordered oldest first.
type ListOpts struct {
	ReferrerID id.InvestorID
	ReferredID id.InvestorID
	Status     Status
	Limit      int
	Offset     int
}
