package payout_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xraph/payout"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/queue"
)

func TestMatchingSingleEntryFundsSingleInvestment(t *testing.T) {
	h := newHarness()
	sup := h.supply(t, 100000)[0]
	dem := h.demand(t, 100000)[0]

	sum := h.match(t)
	require.Equal(t, 1, sum.DemandConsidered)
	require.Equal(t, 1, sum.DemandFunded)
	require.Equal(t, 1, sum.PairingsCreated)
	require.Equal(t, int64(100000), sum.AmountMatched.Amount)

	ps := h.pairingsOf(t, dem.ID)
	require.Len(t, ps, 1)
	require.Equal(t, int64(100000), ps[0].AmountMatched.Amount)
	require.Equal(t, sup.ID, ps[0].MaturedInvestmentID)
	require.Equal(t, pairing.PaymentPending, ps[0].PaymentStatus)
	require.Equal(t, ps[0].PairedAt.Add(h.e.Config().GraceWindow), ps[0].DueAt)

	depth, err := h.e.QueueDepth(h.ctx)
	require.NoError(t, err)
	require.Zero(t, depth.Entries)

	got := h.get(t, dem.ID)
	require.Equal(t, investment.StatusPaired, got.Status)
	require.NotNil(t, got.FundedAt)
	require.True(t, got.Unmet().IsZero())

	require.Equal(t, investment.StatusPaired, h.get(t, sup.ID).Status)
	require.Len(t, h.notes.of(notify.KindPaired), 2)
}

func TestMatchingOneInvestmentDrawsFromSeveralEntries(t *testing.T) {
	h := newHarness()
	sup := h.supply(t, 100000, 200000)
	dem := h.demand(t, 300000)[0]

	sum := h.match(t)
	require.Equal(t, 2, sum.PairingsCreated)
	require.Equal(t, 1, sum.DemandFunded)

	ps := h.pairingsOf(t, dem.ID)
	require.Len(t, ps, 2)
	require.ElementsMatch(t, []int64{100000, 200000}, amounts(ps))
	for _, p := range ps {
		switch p.MaturedInvestmentID.String() {
		case sup[0].ID.String():
			require.Equal(t, int64(100000), p.AmountMatched.Amount)
		case sup[1].ID.String():
			require.Equal(t, int64(200000), p.AmountMatched.Amount)
		default:
			t.Fatalf("unexpected supply %s", p.MaturedInvestmentID)
		}
	}

	depth, err := h.e.QueueDepth(h.ctx)
	require.NoError(t, err)
	require.Zero(t, depth.Entries)
	require.Equal(t, investment.StatusPaired, h.get(t, dem.ID).Status)
}

func TestMatchingOneEntryFundsSeveralInvestments(t *testing.T) {
	h := newHarness()
	sup := h.supply(t, 500000)[0]
	dems := h.demand(t, 200000, 150000, 150000)

	sum := h.match(t)
	require.Equal(t, 3, sum.PairingsCreated)
	require.Equal(t, 3, sum.DemandFunded)
	require.Equal(t, int64(500000), sum.AmountMatched.Amount)

	ps := h.pairingsOf(t, sup.ID)
	require.Len(t, ps, 3)
	require.ElementsMatch(t, []int64{200000, 150000, 150000}, amounts(ps))

	for _, d := range dems {
		require.Equal(t, investment.StatusPaired, h.get(t, d.ID).Status)
	}
	depth, err := h.e.QueueDepth(h.ctx)
	require.NoError(t, err)
	require.Zero(t, depth.Entries)
	require.Equal(t, investment.StatusPaired, h.get(t, sup.ID).Status)
}

func TestMatchingWithEmptyQueueLeavesDemandUntouched(t *testing.T) {
	h := newHarness()
	dem := h.demand(t, 100000)[0]

	sum := h.match(t)
	require.Equal(t, 1, sum.DemandConsidered)
	require.Zero(t, sum.PairingsCreated)

	got := h.get(t, dem.ID)
	require.Equal(t, investment.StatusPending, got.Status)
	require.True(t, got.AmountMatched.IsZero())
	require.Nil(t, got.FundedAt)
	require.Equal(t, dem.UpdatedAt, got.UpdatedAt)
}

func TestMatchingPartialFundingCarriesOver(t *testing.T) {
	h := newHarness()
	first := h.supply(t, 100000)[0]
	dem := h.demand(t, 300000)[0]

	sum := h.match(t)
	require.Equal(t, 1, sum.DemandPartial)
	require.Zero(t, sum.DemandFunded)

	got := h.get(t, dem.ID)
	require.Equal(t, investment.StatusPending, got.Status)
	require.Equal(t, int64(100000), got.AmountMatched.Amount)
	require.Equal(t, int64(200000), got.Unmet().Amount)
	require.Equal(t, investment.StatusPaired, h.get(t, first.ID).Status)

	// The next matured return finishes the job.
	h.supply(t, 250000)
	sum = h.match(t)
	require.Equal(t, 1, sum.DemandFunded)

	got = h.get(t, dem.ID)
	require.Equal(t, investment.StatusPaired, got.Status)
	require.True(t, got.Unmet().IsZero())

	entries, err := h.e.ListQueue(h.ctx, queue.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(50000), entries[0].AmountRemaining.Amount)
}

func TestMatchingLeavesPartlyConsumedEntryAtHead(t *testing.T) {
	h := newHarness()
	sup := h.supply(t, 100000, 100000)
	h.demand(t, 60000)
	h.match(t)

	require.Equal(t, investment.StatusPartiallyPaired, h.get(t, sup[0].ID).Status)
	require.Equal(t, investment.StatusMatured, h.get(t, sup[1].ID).Status)

	dem := h.demand(t, 60000)[0]
	h.match(t)

	ps := h.pairingsOf(t, dem.ID)
	require.Len(t, ps, 2)
	for _, p := range ps {
		switch p.MaturedInvestmentID.String() {
		case sup[0].ID.String():
			require.Equal(t, int64(40000), p.AmountMatched.Amount)
		case sup[1].ID.String():
			require.Equal(t, int64(20000), p.AmountMatched.Amount)
		default:
			t.Fatalf("unexpected supply %s", p.MaturedInvestmentID)
		}
	}
	require.Equal(t, investment.StatusPaired, h.get(t, sup[0].ID).Status)
	require.Equal(t, investment.StatusPartiallyPaired, h.get(t, sup[1].ID).Status)
}

func TestMatchingNeverRematchesFundedInvestment(t *testing.T) {
	h := newHarness()
	h.supply(t, 100000)
	dem := h.demand(t, 100000)[0]
	h.match(t)

	h.supply(t, 100000)
	sum := h.match(t)
	require.Zero(t, sum.DemandConsidered)
	require.Zero(t, sum.PairingsCreated)
	require.Len(t, h.pairingsOf(t, dem.ID), 1)
}

func TestMatchingSkipsOwnQueueEntries(t *testing.T) {
	h := newHarness()
	sup := h.supply(t, 100000)[0]
	h.invest(t, sup.InvestorID, 100000, 30)

	sum := h.match(t)
	require.Zero(t, sum.PairingsCreated)

	depth, err := h.e.QueueDepth(h.ctx)
	require.NoError(t, err)
	require.Equal(t, int64(100000), depth.Remaining.Amount)
}

func TestMatchingAllowsSelfPairingWhenConfigured(t *testing.T) {
	cfg := payout.DefaultConfig()
	cfg.AllowSelfPairing = true
	h := newHarness(payout.WithConfig(cfg), payout.WithBiddingWindows(), payout.WithDailyInterestRate(decimal.Zero))
	sup := h.supply(t, 100000)[0]
	h.invest(t, sup.InvestorID, 100000, 30)

	sum := h.match(t)
	require.Equal(t, 1, sum.PairingsCreated)
}

func TestMatchingOutsideBiddingWindowIsNoop(t *testing.T) {
	h := newHarness(payout.WithBiddingWindows(payout.Window{Start: "09:00", End: "09:40"}))
	h.supply(t, 100000)
	dem := h.demand(t, 100000)[0]

	// 10:00 in Nairobi.
	h.clock.Set(t0.Add(50 * time.Minute))
	require.False(t, h.e.InBiddingWindow(h.clock.Now()))

	sum := h.match(t)
	require.True(t, sum.Skipped)
	require.Zero(t, sum.PairingsCreated)
	require.Equal(t, investment.StatusPending, h.get(t, dem.ID).Status)

	// 09:10 a few days later.
	h.clock.Set(t0.AddDate(0, 0, 3))
	require.True(t, h.e.InBiddingWindow(h.clock.Now()))
	sum = h.match(t)
	require.False(t, sum.Skipped)
	require.Equal(t, 1, sum.PairingsCreated)
}

func TestBiddingWindowIncludesBothEnds(t *testing.T) {
	cfg := payout.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.BiddingWindows = []payout.Window{{Start: "09:00", End: "09:40"}}
	h := newHarness(payout.WithConfig(cfg))

	day := t0.Truncate(24 * time.Hour)
	require.False(t, h.e.InBiddingWindow(day.Add(9*time.Hour-time.Second)))
	require.True(t, h.e.InBiddingWindow(day.Add(9*time.Hour)))
	require.True(t, h.e.InBiddingWindow(day.Add(9*time.Hour+40*time.Minute)))
	require.False(t, h.e.InBiddingWindow(day.Add(9*time.Hour+40*time.Minute+time.Second)))
}

func TestBiddingWindowWrapsMidnight(t *testing.T) {
	cfg := payout.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.BiddingWindows = []payout.Window{{Start: "23:30", End: "00:30"}}
	h := newHarness(payout.WithConfig(cfg))

	day := t0.Truncate(24 * time.Hour)
	require.True(t, h.e.InBiddingWindow(day.Add(23*time.Hour + 45*time.Minute)))
	require.True(t, h.e.InBiddingWindow(day.Add(15 * time.Minute)))
	require.False(t, h.e.InBiddingWindow(day.Add(time.Hour)))
}

func TestInvalidBiddingWindowClosesMatching(t *testing.T) {
	h := newHarness(payout.WithBiddingWindows(payout.Window{Start: "9am", End: "10am"}))
	require.False(t, h.e.InBiddingWindow(h.clock.Now()))
	require.Error(t, h.e.Config().Validate())
}
