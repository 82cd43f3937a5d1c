package payment

import (
	"context"

	"github.com/xraph/payout/id"
)

type Store interface {
	ListPayments(ctx context.Context, opts ListOpts) ([]*Payment, error)
}

type ListOpts struct {
	InvestmentID id.InvestmentID
	PairingID    id.PairingID
	// InvestorID matches payer or payee.
	InvestorID id.InvestorID
	Limit      int
	Offset     int
}
