package payout_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xraph/payout"
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/store/memory"
	"github.com/xraph/payout/types"
)

// 06:10 UTC is 09:10 in Nairobi, inside the default morning window.
var t0 = time.Date(2024, 3, 1, 6, 10, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type notes struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *notes) Notify(_ context.Context, evt notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func (n *notes) of(kind notify.Kind) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, e := range n.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	ctx   context.Context
	e     *payout.Engine
	store *memory.Store
	clock *clock
	notes *notes
}

// newHarness builds an engine on the memory store with matching always
// open and no interest, so a matured return equals its principal. Later
// options override these defaults.
func newHarness(opts ...payout.Option) *harness {
	h := &harness{
		ctx:   context.Background(),
		store: memory.New(),
		clock: &clock{now: t0},
		notes: &notes{},
	}
	base := []payout.Option{
		payout.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		payout.WithClock(h.clock.Now),
		payout.WithNotifier(h.notes),
		payout.WithBiddingWindows(),
		payout.WithDailyInterestRate(decimal.Zero),
	}
	h.e = payout.New(h.store, append(base, opts...)...)
	return h
}

func (h *harness) register(t require.TestingT, name, referralCode string) *investor.Investor {
	inv, err := h.e.RegisterInvestor(h.ctx, payout.Registration{Name: name, ReferralCode: referralCode})
	require.NoError(t, err)
	return inv
}

func (h *harness) invest(t require.TestingT, owner id.InvestorID, amount int64, days int) *investment.Investment {
	inv, err := h.e.CreateInvestment(h.ctx, owner, types.KES(amount), days)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	return inv
}

// supply creates one matured investment per amount, each owned by a fresh
// investor, in the given queue order.
func (h *harness) supply(t require.TestingT, amounts ...int64) []*investment.Investment {
	created := make([]*investment.Investment, 0, len(amounts))
	for _, amount := range amounts {
		owner := h.register(t, "supplier", "")
		created = append(created, h.invest(t, owner.ID, amount, 1))
	}
	h.clock.Advance(48 * time.Hour)

	sum, err := h.e.RunMaturityDetection(h.ctx)
	require.NoError(t, err)
	require.Equal(t, len(amounts), sum.Matured)

	out := make([]*investment.Investment, 0, len(created))
	for _, c := range created {
		out = append(out, h.get(t, c.ID))
	}
	return out
}

// demand creates one pending investment per amount, each owned by a fresh
// investor.
func (h *harness) demand(t require.TestingT, amounts ...int64) []*investment.Investment {
	out := make([]*investment.Investment, 0, len(amounts))
	for _, amount := range amounts {
		owner := h.register(t, "newcomer", "")
		out = append(out, h.invest(t, owner.ID, amount, 30))
	}
	return out
}

func (h *harness) get(t require.TestingT, investmentID id.InvestmentID) *investment.Investment {
	inv, err := h.e.GetInvestment(h.ctx, investmentID)
	require.NoError(t, err)
	return inv
}

func (h *harness) pairingsOf(t require.TestingT, investmentID id.InvestmentID) []*pairing.Pairing {
	ps, err := h.e.ListPairings(h.ctx, pairing.ListOpts{InvestmentID: investmentID})
	require.NoError(t, err)
	return ps
}

func (h *harness) match(t require.TestingT) *payout.MatchingSummary {
	sum, err := h.e.RunMatchingPass(h.ctx)
	require.NoError(t, err)
	return sum
}

func amounts(ps []*pairing.Pairing) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.AmountMatched.Amount)
	}
	return out
}
