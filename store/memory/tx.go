package memory

import (
	"context"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/store"
)

// tx operates on the live tables; the caller already holds the write lock.
type tx struct {
	t *tables
}

// AcquireMatchingLock is satisfied by the store-wide lock RunInTx holds.
func (x *tx) AcquireMatchingLock(_ context.Context) error { return nil }

// ==================== Investors ====================

func (x *tx) GetInvestor(_ context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	return getInvestor(x.t, investorID)
}

func (x *tx) GetInvestorForUpdate(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	return x.GetInvestor(ctx, investorID)
}

func (x *tx) UpdateInvestor(_ context.Context, inv *investor.Investor) error {
	key := inv.ID.String()
	if _, ok := x.t.investors[key]; !ok {
		return store.ErrNotFound
	}
	x.t.investors[key] = *inv
	return nil
}

// ==================== Investments ====================

func (x *tx) CreateInvestment(_ context.Context, inv *investment.Investment) error {
	key := inv.ID.String()
	if _, exists := x.t.investments[key]; exists {
		return store.ErrAlreadyExists
	}
	x.t.investments[key] = *inv
	return nil
}

func (x *tx) GetInvestmentForUpdate(_ context.Context, investmentID id.InvestmentID) (*investment.Investment, error) {
	if inv, ok := x.t.investments[investmentID.String()]; ok {
		return &inv, nil
	}
	return nil, store.ErrNotFound
}

func (x *tx) UpdateInvestment(_ context.Context, inv *investment.Investment) error {
	key := inv.ID.String()
	if _, ok := x.t.investments[key]; !ok {
		return store.ErrNotFound
	}
	x.t.investments[key] = *inv
	return nil
}

// ==================== Queue ====================

func (x *tx) EnqueueEntry(_ context.Context, e *queue.Entry) error {
	if _, err := entryByInvestment(x.t, e.InvestmentID); err == nil {
		return store.ErrAlreadyExists
	}
	x.t.seq++
	e.Seq = x.t.seq
	x.t.queue[e.ID.String()] = *e
	return nil
}

func (x *tx) LockQueueHead(_ context.Context, exclude id.InvestorID) (*queue.Entry, error) {
	var head *queue.Entry
	for _, e := range x.t.queue {
		if !exclude.IsNil() && e.InvestorID.String() == exclude.String() {
			continue
		}
		if head == nil || e.Before(head) {
			head = &e
		}
	}
	if head == nil {
		return nil, store.ErrQueueEmpty
	}
	return head, nil
}

func (x *tx) GetQueueEntryForUpdate(_ context.Context, investmentID id.InvestmentID) (*queue.Entry, error) {
	return entryByInvestment(x.t, investmentID)
}

func (x *tx) UpdateQueueEntry(_ context.Context, e *queue.Entry) error {
	key := e.ID.String()
	if _, ok := x.t.queue[key]; !ok {
		return store.ErrNotFound
	}
	x.t.queue[key] = *e
	return nil
}

func (x *tx) DeleteQueueEntry(_ context.Context, entryID id.QueueEntryID) error {
	key := entryID.String()
	if _, ok := x.t.queue[key]; !ok {
		return store.ErrNotFound
	}
	delete(x.t.queue, key)
	return nil
}

// ==================== Pairings ====================

func (x *tx) CreatePairing(_ context.Context, p *pairing.Pairing) error {
	key := p.ID.String()
	if _, exists := x.t.pairings[key]; exists {
		return store.ErrAlreadyExists
	}
	x.t.pairings[key] = *p
	return nil
}

func (x *tx) GetPairingForUpdate(_ context.Context, pairingID id.PairingID) (*pairing.Pairing, error) {
	if p, ok := x.t.pairings[pairingID.String()]; ok {
		return &p, nil
	}
	return nil, store.ErrNotFound
}

func (x *tx) UpdatePairing(_ context.Context, p *pairing.Pairing) error {
	key := p.ID.String()
	if _, ok := x.t.pairings[key]; !ok {
		return store.ErrNotFound
	}
	x.t.pairings[key] = *p
	return nil
}

func (x *tx) ListPendingPairingsForUpdate(_ context.Context, investmentID id.InvestmentID) ([]*pairing.Pairing, error) {
	result := make([]*pairing.Pairing, 0)
	for _, p := range x.t.pairings {
		if p.PaymentStatus == pairing.PaymentPending && p.MaturedInvestmentID.String() == investmentID.String() {
			result = append(result, &p)
		}
	}
	sortPairings(result)
	return result, nil
}

// ==================== Referrals ====================

func (x *tx) CreateReferral(_ context.Context, r *referral.Record) error {
	key := r.ID.String()
	if _, exists := x.t.referrals[key]; exists {
		return store.ErrAlreadyExists
	}
	x.t.referrals[key] = *r
	return nil
}

func (x *tx) ListPendingReferralsForUpdate(_ context.Context, referrerID id.InvestorID) ([]*referral.Record, error) {
	result := make([]*referral.Record, 0)
	for _, r := range x.t.referrals {
		if r.Status == referral.StatusPending && r.ReferrerID.String() == referrerID.String() {
			result = append(result, &r)
		}
	}
	sortReferrals(result)
	return result, nil
}

func (x *tx) UpdateReferral(_ context.Context, r *referral.Record) error {
	key := r.ID.String()
	if _, ok := x.t.referrals[key]; !ok {
		return store.ErrNotFound
	}
	x.t.referrals[key] = *r
	return nil
}

// ==================== Payments ====================

func (x *tx) CreatePayment(_ context.Context, p *payment.Payment) error {
	key := p.ID.String()
	if _, exists := x.t.payments[key]; exists {
		return store.ErrAlreadyExists
	}
	x.t.payments[key] = *p
	return nil
}

func (x *tx) SumPairingPayments(_ context.Context, pairingID id.PairingID) (int64, error) {
	var sum int64
	for _, p := range x.t.payments {
		if p.PairingID.String() == pairingID.String() {
			sum += p.Amount.Amount
		}
	}
	return sum, nil
}
