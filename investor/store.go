package investor

import (
	"context"

	"github.com/xraph/payout/id"
)

type Store interface {
	CreateInvestor(ctx context.Context, inv *Investor) error
	GetInvestor(ctx context.Context, investorID id.InvestorID) (*Investor, error)
	GetInvestorByReferralCode(ctx context.Context, code string) (*Investor, error)
	ListInvestors(ctx context.Context, opts ListOpts) ([]*Investor, error)
}

type ListOpts struct {
	ReferredBy id.InvestorID
	Limit      int
	Offset     int
}
