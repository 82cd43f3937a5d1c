package payout

import (
	"context"
	"fmt"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/types"
)

// QueueDepth is the size of the payout queue.
type QueueDepth struct {
	Entries   int64       `json:"entries"`
	Remaining types.Money `json:"remaining"`
}

// InvestorSummary is the dashboard view of one investor.
type InvestorSummary struct {
	InvestorID        id.InvestorID `json:"investor_id"`
	ActiveInvestments int           `json:"active_investments"`
	TotalInvested     types.Money   `json:"total_invested"`
	// PendingPayments is what the investor still owes on open pairings.
	PendingPayments types.Money `json:"pending_payments"`
	// AwaitingPayout is the outstanding return on the investor's matured
	// investments.
	AwaitingPayout          types.Money `json:"awaiting_payout"`
	ReferralBalance         types.Money `json:"referral_balance"`
	PendingReferralRecords  int         `json:"pending_referral_records"`
	PendingReferralEarnings types.Money `json:"pending_referral_earnings"`
}

// Statistics are scheme-wide totals.
type Statistics struct {
	Investments     int64                       `json:"investments"`
	ByStatus        map[investment.Status]int64 `json:"by_status"`
	TotalInvested   types.Money                 `json:"total_invested"`
	TotalReturned   types.Money                 `json:"total_returned"`
	PendingPayments types.Money                 `json:"pending_payments"`
	OpenPairings    int                         `json:"open_pairings"`
	FailedPairings  int                         `json:"failed_pairings"`
	Queue           QueueDepth                  `json:"queue"`
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// QueueDepth returns the number of queue entries and their total remainder.
func (e *Engine) QueueDepth(ctx context.Context) (QueueDepth, error) {
	st, err := e.store.QueueStats(ctx)
	if err != nil {
		return QueueDepth{}, err
	}
	return e.depth(st), nil
}

func (e *Engine) depth(st queue.Stats) QueueDepth {
	return QueueDepth{
		Entries:   st.Entries,
		Remaining: types.New(st.Remaining, e.config.Currency),
	}
}

// ListQueue lists queue entries in service order.
func (e *Engine) ListQueue(ctx context.Context, opts queue.ListOpts) ([]*queue.Entry, error) {
	return e.store.ListQueue(ctx, opts)
}

// StatusBreakdown counts investments per status.
func (e *Engine) StatusBreakdown(ctx context.Context) (map[investment.Status]int64, error) {
	return e.store.CountInvestmentsByStatus(ctx)
}

// InvestorSummary aggregates an investor's investments, open pairings and
// referral earnings.
func (e *Engine) InvestorSummary(ctx context.Context, investorID id.InvestorID) (*InvestorSummary, error) {
	owner, err := e.store.GetInvestor(ctx, investorID)
	if err != nil {
		return nil, notFound(err, ErrInvestorNotFound, investorID)
	}

	cur := e.config.Currency
	sum := &InvestorSummary{
		InvestorID:              owner.ID,
		TotalInvested:           types.Zero(cur),
		PendingPayments:         types.Zero(cur),
		AwaitingPayout:          types.Zero(cur),
		ReferralBalance:         owner.BonusBalance,
		PendingReferralEarnings: types.Zero(cur),
	}
	if sum.ReferralBalance.Currency == "" {
		sum.ReferralBalance = types.Zero(cur)
	}

	investments, err := e.store.ListInvestments(ctx, investment.ListOpts{InvestorID: investorID})
	if err != nil {
		return nil, fmt.Errorf("payout: list investments: %w", err)
	}
	for _, inv := range investments {
		sum.TotalInvested = sum.TotalInvested.Add(inv.Amount)
		if inv.Status == investment.StatusCompleted {
			continue
		}
		sum.ActiveInvestments++
		if inv.IsMatured() {
			sum.AwaitingPayout = sum.AwaitingPayout.Add(inv.Outstanding())
		}
	}

	open, err := e.store.ListPairings(ctx, pairing.ListOpts{
		InvestorID:    investorID,
		PaymentStatus: pairing.PaymentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("payout: list pairings: %w", err)
	}
	paid, err := e.paidByPairing(ctx, payment.ListOpts{InvestorID: investorID})
	if err != nil {
		return nil, err
	}
	for _, p := range open {
		if p.NewInvestorID.String() != investorID.String() {
			continue
		}
		sum.PendingPayments = sum.PendingPayments.Add(owedOn(p, paid))
	}

	pending, err := e.store.ListReferrals(ctx, referral.ListOpts{
		ReferrerID: investorID,
		Status:     referral.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("payout: list referrals: %w", err)
	}
	sum.PendingReferralRecords = len(pending)
	for _, rec := range pending {
		sum.PendingReferralEarnings = sum.PendingReferralEarnings.Add(rec.BonusEarned)
	}

	return sum, nil
}

// Statistics computes scheme-wide totals.
func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	cur := e.config.Currency
	stats := &Statistics{
		TotalInvested:   types.Zero(cur),
		TotalReturned:   types.Zero(cur),
		PendingPayments: types.Zero(cur),
	}

	byStatus, err := e.store.CountInvestmentsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats.ByStatus = byStatus
	for _, n := range byStatus {
		stats.Investments += n
	}

	investments, err := e.store.ListInvestments(ctx, investment.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("payout: list investments: %w", err)
	}
	for _, inv := range investments {
		stats.TotalInvested = stats.TotalInvested.Add(inv.Amount)
		stats.TotalReturned = stats.TotalReturned.Add(inv.AmountPaid)
	}

	pairings, err := e.store.ListPairings(ctx, pairing.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("payout: list pairings: %w", err)
	}
	paid, err := e.paidByPairing(ctx, payment.ListOpts{})
	if err != nil {
		return nil, err
	}
	for _, p := range pairings {
		switch p.PaymentStatus {
		case pairing.PaymentPending:
			stats.OpenPairings++
			stats.PendingPayments = stats.PendingPayments.Add(owedOn(p, paid))
		case pairing.PaymentFailed:
			stats.FailedPairings++
		}
	}

	st, err := e.store.QueueStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Queue = e.depth(st)

	return stats, nil
}

// paidByPairing totals the payments matching opts per pairing.
func (e *Engine) paidByPairing(ctx context.Context, opts payment.ListOpts) (map[string]int64, error) {
	payments, err := e.store.ListPayments(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("payout: list payments: %w", err)
	}
	paid := make(map[string]int64, len(payments))
	for _, p := range payments {
		if p.PairingID.IsNil() {
			continue
		}
		paid[p.PairingID.String()] += p.Amount.Amount
	}
	return paid, nil
}

func owedOn(p *pairing.Pairing, paid map[string]int64) types.Money {
	owed := p.AmountMatched.Subtract(types.New(paid[p.ID.String()], p.AmountMatched.Currency))
	if owed.IsNegative() {
		return types.Zero(owed.Currency)
	}
	return owed
}

// GetPairing retrieves a pairing by ID.
func (e *Engine) GetPairing(ctx context.Context, pairingID id.PairingID) (*pairing.Pairing, error) {
	p, err := e.store.GetPairing(ctx, pairingID)
	if err != nil {
		return nil, notFound(err, ErrPairingNotFound, pairingID)
	}
	return p, nil
}

// ListPairings lists pairings ordered by pairing time.
func (e *Engine) ListPairings(ctx context.Context, opts pairing.ListOpts) ([]*pairing.Pairing, error) {
	return e.store.ListPairings(ctx, opts)
}

// ListReferrals lists referral records oldest first.
func (e *Engine) ListReferrals(ctx context.Context, opts referral.ListOpts) ([]*referral.Record, error) {
	return e.store.ListReferrals(ctx, opts)
}

// ListPayments lists recorded payments.
func (e *Engine) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	return e.store.ListPayments(ctx, opts)
}
