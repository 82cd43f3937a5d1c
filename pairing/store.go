package pairing

import (
	"context"
	"time"

	"github.com/xraph/payout/id"
)

type Store interface {
	GetPairing(ctx context.Context, pairingID id.PairingID) (*Pairing, error)
	ListPairings(ctx context.Context, opts ListOpts) ([]*Pairing, error)
}

// ListOpts filters pairings. Results are ordered by PairedAt, then ID.
type ListOpts struct {
	// InvestorID matches either side.
	InvestorID id.InvestorID
	// InvestmentID matches either side.
	InvestmentID  id.InvestmentID
	PaymentStatus PaymentStatus
	DueBefore     time.Time
	Limit         int
	Offset        int
}
