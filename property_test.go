package payout_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/types"
)

func unmetTotal(t require.TestingT, h *harness) int64 {
	list, err := h.e.ListInvestments(h.ctx, investment.ListOpts{
		Statuses:  []investment.Status{investment.StatusPending},
		Unmatured: true,
	})
	require.NoError(t, err)
	var total int64
	for _, inv := range list {
		total += inv.Unmet().Amount
	}
	return total
}

func queueTotal(t require.TestingT, h *harness) int64 {
	depth, err := h.e.QueueDepth(h.ctx)
	require.NoError(t, err)
	return depth.Remaining.Amount
}

// Every unit moved by a matching pass leaves the queue and the unmet demand
// in equal measure, and nothing goes negative or over-funds a principal.
func TestMatchingConservesValue(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		gen := rapid.SliceOfN(rapid.Int64Range(1, 500000), 0, 6)
		supplyAmounts := gen.Draw(rt, "supply")
		demandAmounts := gen.Draw(rt, "demand")

		h := newHarness()
		if len(supplyAmounts) > 0 {
			h.supply(rt, supplyAmounts...)
		}
		h.demand(rt, demandAmounts...)

		queueBefore := queueTotal(rt, h)
		unmetBefore := unmetTotal(rt, h)

		sum, err := h.e.RunMatchingPass(h.ctx)
		require.NoError(rt, err)
		require.Zero(rt, sum.Failed)

		queueAfter := queueTotal(rt, h)
		unmetAfter := unmetTotal(rt, h)

		ps, err := h.e.ListPairings(h.ctx, pairing.ListOpts{})
		require.NoError(rt, err)
		var paired int64
		for _, p := range ps {
			require.Positive(rt, p.AmountMatched.Amount)
			paired += p.AmountMatched.Amount
		}

		require.Equal(rt, sum.AmountMatched.Amount, paired)
		require.Equal(rt, paired, queueBefore-queueAfter)
		require.Equal(rt, paired, unmetBefore-unmetAfter)

		// One side is exhausted after a full pass.
		require.True(rt, queueAfter == 0 || unmetAfter == 0)

		entries, err := h.e.ListQueue(h.ctx, queue.ListOpts{})
		require.NoError(rt, err)
		for _, e := range entries {
			require.Positive(rt, e.AmountRemaining.Amount)
		}

		all, err := h.e.ListInvestments(h.ctx, investment.ListOpts{})
		require.NoError(rt, err)
		for _, inv := range all {
			require.LessOrEqual(rt, inv.AmountMatched.Amount, inv.Amount.Amount)
		}
	})
}

// completed holds exactly when the return is fully paid, whatever sequence
// of payments arrives.
func TestCompletionInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		principal := rapid.Int64Range(1, 100000).Draw(rt, "principal")
		payments := rapid.SliceOfN(rapid.Int64Range(1, 60000), 1, 8).Draw(rt, "payments")

		h := newHarness()
		sup := h.supply(rt, principal)[0]
		h.demand(rt, principal)
		h.match(rt)

		for _, amount := range payments {
			_, err := h.e.RecordPayment(h.ctx, sup.ID, types.KES(amount))
			got := h.get(rt, sup.ID)
			require.LessOrEqual(rt, got.AmountPaid.Amount, got.ReturnAmount.Amount)
			require.Equal(rt,
				got.AmountPaid.Amount >= got.ReturnAmount.Amount,
				got.Status == investment.StatusCompleted,
			)
			if got.Status == investment.StatusCompleted {
				require.NotNil(rt, got.PaymentConfirmedAt)
			} else {
				require.NoError(rt, err)
			}
		}
	})
}
