package payout_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/payout"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/types"
)

// Matching, settlement and overdue passes racing on one store never move
// more value than the queue held, never push the queue negative and never
// fund an investment past its principal.
func TestConcurrentPassesConserveValue(t *testing.T) {
	h := newHarness()
	supply := h.supply(t, 70000, 30000, 90000, 45000)
	demand := h.demand(t, 40000, 40000, 40000, 40000, 40000, 25000)
	require.Equal(t, int64(235000), queueTotal(t, h))

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			sum, err := h.e.RunMatchingPass(h.ctx)
			if err != nil {
				return err
			}
			if sum.Failed > 0 {
				return errors.New("matching pass reported failures")
			}
			return nil
		})
	}
	for _, sup := range supply {
		g.Go(func() error {
			for range 3 {
				_, err := h.e.RecordPayment(h.ctx, sup.ID, types.KES(15000))
				if err != nil && !errors.Is(err, payout.ErrNotPayable) {
					return err
				}
			}
			return nil
		})
	}
	for range 4 {
		g.Go(func() error {
			ps, err := h.e.ListPairings(h.ctx, pairing.ListOpts{PaymentStatus: pairing.PaymentPending})
			if err != nil {
				return err
			}
			for _, p := range ps {
				_, err := h.e.SettlePairing(h.ctx, p.ID, types.KES(20000))
				if err != nil && !errors.Is(err, payout.ErrPairingClosed) && !errors.Is(err, payout.ErrNotPayable) {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		h.clock.Advance(h.e.Config().GraceWindow + time.Minute)
		for range 3 {
			if _, err := h.e.RunOverdueCheck(h.ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	ps, err := h.e.ListPairings(h.ctx, pairing.ListOpts{})
	require.NoError(t, err)
	var paired int64
	for _, p := range ps {
		require.Positive(t, p.AmountMatched.Amount)
		paired += p.AmountMatched.Amount
	}
	require.LessOrEqual(t, paired, int64(235000))

	var funded int64
	for _, d := range demand {
		got := h.get(t, d.ID)
		require.LessOrEqual(t, got.AmountMatched.Amount, got.Amount.Amount)
		funded += got.AmountMatched.Amount
	}
	require.Equal(t, paired, funded)

	entries, err := h.e.ListQueue(h.ctx, queue.ListOpts{})
	require.NoError(t, err)
	for _, e := range entries {
		require.Positive(t, e.AmountRemaining.Amount)
	}

	// A queued return is split between its entry and its pairings. A
	// completed one left the queue with whatever was unmatched.
	for _, sup := range supply {
		got := h.get(t, sup.ID)
		var drawn int64
		for _, p := range h.pairingsOf(t, sup.ID) {
			drawn += p.AmountMatched.Amount
		}
		entry, err := h.store.GetQueueEntryByInvestment(h.ctx, sup.ID)
		if err == nil {
			require.Equal(t, got.ReturnAmount.Amount, entry.AmountRemaining.Amount+drawn)
		} else {
			require.LessOrEqual(t, drawn, got.ReturnAmount.Amount)
		}

		require.LessOrEqual(t, got.AmountPaid.Amount, got.ReturnAmount.Amount)
		require.Equal(t,
			got.AmountPaid.Amount == got.ReturnAmount.Amount,
			got.Status == investment.StatusCompleted,
		)
	}
}
