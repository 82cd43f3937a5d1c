// Package memory provides an in-process store.Store for tests and
// single-process deployments.
//
// A transaction holds the store-wide write lock for its whole duration and
// restores a snapshot of every table when its callback fails, so
// transactions are serializable and all-or-nothing.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/store"
)

// compile-time interface checks
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

type tables struct {
	investors   map[string]investor.Investor
	investments map[string]investment.Investment
	queue       map[string]queue.Entry
	pairings    map[string]pairing.Pairing
	referrals   map[string]referral.Record
	payments    map[string]payment.Payment
	seq         int64
}

func (t *tables) clone() tables {
	return tables{
		investors:   maps.Clone(t.investors),
		investments: maps.Clone(t.investments),
		queue:       maps.Clone(t.queue),
		pairings:    maps.Clone(t.pairings),
		referrals:   maps.Clone(t.referrals),
		payments:    maps.Clone(t.payments),
		seq:         t.seq,
	}
}

type Store struct {
	mu sync.RWMutex
	t  tables
}

func New() *Store {
	return &Store{
		t: tables{
			investors:   make(map[string]investor.Investor),
			investments: make(map[string]investment.Investment),
			queue:       make(map[string]queue.Entry),
			pairings:    make(map[string]pairing.Pairing),
			referrals:   make(map[string]referral.Record),
			payments:    make(map[string]payment.Payment),
		},
	}
}

// RunInTx runs fn under the store-wide write lock. Store read methods must
// not be called from inside fn.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.t.clone()
	if err := fn(ctx, &tx{t: &s.t}); err != nil {
		s.t = snapshot
		return err
	}
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }

// ==================== Investor reads ====================

func (s *Store) CreateInvestor(_ context.Context, inv *investor.Investor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.t.investors[inv.ID.String()]; exists {
		return store.ErrAlreadyExists
	}
	for _, other := range s.t.investors {
		if other.ReferralCode == inv.ReferralCode {
			return fmt.Errorf("%w: referral code %s", store.ErrAlreadyExists, inv.ReferralCode)
		}
	}
	s.t.investors[inv.ID.String()] = *inv
	return nil
}

func (s *Store) GetInvestor(_ context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getInvestor(&s.t, investorID)
}

func (s *Store) GetInvestorByReferralCode(_ context.Context, code string) (*investor.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.t.investors {
		if inv.ReferralCode == code {
			return &inv, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListInvestors(_ context.Context, opts investor.ListOpts) ([]*investor.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*investor.Investor, 0)
	for _, inv := range s.t.investors {
		if !opts.ReferredBy.IsNil() && inv.ReferredBy.String() != opts.ReferredBy.String() {
			continue
		}
		result = append(result, &inv)
	}
	slices.SortFunc(result, func(a, b *investor.Investor) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), a.ID.Compare(b.ID))
	})
	return page(result, opts.Offset, opts.Limit), nil
}

// ==================== Investment reads ====================

func (s *Store) GetInvestment(_ context.Context, investmentID id.InvestmentID) (*investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.t.investments[investmentID.String()]; ok {
		return &inv, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListInvestments(_ context.Context, opts investment.ListOpts) ([]*investment.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*investment.Investment, 0)
	for _, inv := range s.t.investments {
		if !opts.InvestorID.IsNil() && inv.InvestorID.String() != opts.InvestorID.String() {
			continue
		}
		if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, inv.Status) {
			continue
		}
		if opts.Unmatured && inv.MaturedAt != nil {
			continue
		}
		if !opts.MaturesBefore.IsZero() && inv.MaturesAt.After(opts.MaturesBefore) {
			continue
		}
		result = append(result, &inv)
	}
	slices.SortFunc(result, func(a, b *investment.Investment) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), a.ID.Compare(b.ID))
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountInvestmentsByStatus(_ context.Context) (map[investment.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[investment.Status]int64)
	for _, inv := range s.t.investments {
		counts[inv.Status]++
	}
	return counts, nil
}

// ==================== Queue reads ====================

func (s *Store) ListQueue(_ context.Context, opts queue.ListOpts) ([]*queue.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*queue.Entry, 0, len(s.t.queue))
	for _, e := range s.t.queue {
		if !opts.InvestorID.IsNil() && e.InvestorID.String() != opts.InvestorID.String() {
			continue
		}
		result = append(result, &e)
	}
	sortQueue(result)
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetQueueEntryByInvestment(_ context.Context, investmentID id.InvestmentID) (*queue.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return entryByInvestment(&s.t, investmentID)
}

func (s *Store) QueueStats(_ context.Context) (queue.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st queue.Stats
	for _, e := range s.t.queue {
		st.Entries++
		st.Remaining += e.AmountRemaining.Amount
	}
	return st, nil
}

// ==================== Pairing reads ====================

func (s *Store) GetPairing(_ context.Context, pairingID id.PairingID) (*pairing.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.t.pairings[pairingID.String()]; ok {
		return &p, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListPairings(_ context.Context, opts pairing.ListOpts) ([]*pairing.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*pairing.Pairing, 0)
	for _, p := range s.t.pairings {
		if !opts.InvestorID.IsNil() &&
			p.MaturedInvestorID.String() != opts.InvestorID.String() &&
			p.NewInvestorID.String() != opts.InvestorID.String() {
			continue
		}
		if !opts.InvestmentID.IsNil() &&
			p.MaturedInvestmentID.String() != opts.InvestmentID.String() &&
			p.NewInvestmentID.String() != opts.InvestmentID.String() {
			continue
		}
		if opts.PaymentStatus != "" && p.PaymentStatus != opts.PaymentStatus {
			continue
		}
		if !opts.DueBefore.IsZero() && !p.DueAt.Before(opts.DueBefore) {
			continue
		}
		result = append(result, &p)
	}
	sortPairings(result)
	return page(result, opts.Offset, opts.Limit), nil
}

// ==================== Referral reads ====================

func (s *Store) ListReferrals(_ context.Context, opts referral.ListOpts) ([]*referral.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*referral.Record, 0)
	for _, r := range s.t.referrals {
		if !opts.ReferrerID.IsNil() && r.ReferrerID.String() != opts.ReferrerID.String() {
			continue
		}
		if !opts.ReferredID.IsNil() && r.ReferredID.String() != opts.ReferredID.String() {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		result = append(result, &r)
	}
	sortReferrals(result)
	return page(result, opts.Offset, opts.Limit), nil
}

// ==================== Payment reads ====================

func (s *Store) ListPayments(_ context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.t.payments {
		if !opts.InvestmentID.IsNil() && p.InvestmentID.String() != opts.InvestmentID.String() {
			continue
		}
		if !opts.PairingID.IsNil() && p.PairingID.String() != opts.PairingID.String() {
			continue
		}
		if !opts.InvestorID.IsNil() &&
			p.FromInvestorID.String() != opts.InvestorID.String() &&
			p.ToInvestorID.String() != opts.InvestorID.String() {
			continue
		}
		result = append(result, &p)
	}
	slices.SortFunc(result, func(a, b *payment.Payment) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), a.ID.Compare(b.ID))
	})
	return page(result, opts.Offset, opts.Limit), nil
}

// ==================== Helpers ====================

func getInvestor(t *tables, investorID id.InvestorID) (*investor.Investor, error) {
	if inv, ok := t.investors[investorID.String()]; ok {
		return &inv, nil
	}
	return nil, store.ErrNotFound
}

func entryByInvestment(t *tables, investmentID id.InvestmentID) (*queue.Entry, error) {
	for _, e := range t.queue {
		if e.InvestmentID.String() == investmentID.String() {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func sortQueue(entries []*queue.Entry) {
	slices.SortFunc(entries, func(a, b *queue.Entry) int {
		return cmp.Or(a.EnqueuedAt.Compare(b.EnqueuedAt), cmp.Compare(a.Seq, b.Seq))
	})
}

func sortPairings(pairings []*pairing.Pairing) {
	slices.SortFunc(pairings, func(a, b *pairing.Pairing) int {
		return cmp.Or(a.PairedAt.Compare(b.PairedAt), a.ID.Compare(b.ID))
	})
}

func sortReferrals(records []*referral.Record) {
	slices.SortFunc(records, func(a, b *referral.Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), a.ID.Compare(b.ID))
	})
}

func page[T any](items []T, offset, limit int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 {
		end = min(start+limit, len(items))
	}
	return items[start:end]
}
