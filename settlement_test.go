package payout_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/payout"
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/types"
)

// paired sets up one matured investment fully paired with one new investment
// and returns both with the pairing.
func paired(t *testing.T, h *harness, amount int64) (*investment.Investment, *investment.Investment, *pairing.Pairing) {
	t.Helper()
	sup := h.supply(t, amount)[0]
	dem := h.demand(t, amount)[0]
	h.match(t)
	ps := h.pairingsOf(t, dem.ID)
	require.Len(t, ps, 1)
	return h.get(t, sup.ID), h.get(t, dem.ID), ps[0]
}

func TestSettlePairingCompletesMaturedInvestment(t *testing.T) {
	h := newHarness()
	sup, _, p := paired(t, h, 100000)

	pay, err := h.e.SettlePairing(h.ctx, p.ID, types.KES(40000), payout.WithReference("MPESA-1"), payout.WithMethod(payment.MethodMobile))
	require.NoError(t, err)
	require.Equal(t, int64(40000), pay.Amount.Amount)
	require.Equal(t, "MPESA-1", pay.Reference)
	require.Equal(t, payment.MethodMobile, pay.Method)
	require.Equal(t, p.NewInvestorID, pay.FromInvestorID)
	require.Equal(t, sup.InvestorID, pay.ToInvestorID)

	got := h.get(t, sup.ID)
	require.Equal(t, investment.StatusPartiallyPaid, got.Status)
	require.Equal(t, int64(40000), got.AmountPaid.Amount)
	require.True(t, strings.HasPrefix(got.TransactionRef, "INV-"))
	require.Len(t, got.TransactionRef, len("INV-")+8)
	require.Nil(t, got.PaymentConfirmedAt)
	ref := got.TransactionRef

	open, err := h.e.GetPairing(h.ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, pairing.PaymentPending, open.PaymentStatus)

	// Overpaying is clamped to what the pairing still owes.
	pay, err = h.e.SettlePairing(h.ctx, p.ID, types.KES(90000))
	require.NoError(t, err)
	require.Equal(t, int64(60000), pay.Amount.Amount)

	got = h.get(t, sup.ID)
	require.Equal(t, investment.StatusCompleted, got.Status)
	require.Equal(t, got.ReturnAmount, got.AmountPaid)
	require.NotNil(t, got.PaymentConfirmedAt)
	require.Equal(t, ref, got.TransactionRef)

	closed, err := h.e.GetPairing(h.ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, pairing.PaymentPaid, closed.PaymentStatus)
	require.NotNil(t, closed.PaidAt)

	_, err = h.e.SettlePairing(h.ctx, p.ID, types.KES(1))
	require.ErrorIs(t, err, payout.ErrPairingClosed)

	require.Len(t, h.notes.of(notify.KindPaymentReceived), 2)
}

func TestRecordPaymentClampsToOutstanding(t *testing.T) {
	h := newHarness()
	sup, _, _ := paired(t, h, 100000)

	pay, err := h.e.RecordPayment(h.ctx, sup.ID, types.KES(250000))
	require.NoError(t, err)
	require.Equal(t, int64(100000), pay.Amount.Amount)
	require.True(t, pay.PairingID.IsNil())

	got := h.get(t, sup.ID)
	require.Equal(t, investment.StatusCompleted, got.Status)
	require.Equal(t, int64(100000), got.AmountPaid.Amount)

	_, err = h.e.RecordPayment(h.ctx, sup.ID, types.KES(1))
	require.ErrorIs(t, err, payout.ErrNotPayable)
}

func TestCompletionClosesPendingPairings(t *testing.T) {
	h := newHarness()
	sup := h.supply(t, 100000)[0]
	dems := h.demand(t, 50000, 50000)
	h.match(t)
	first := h.pairingsOf(t, dems[0].ID)[0]
	second := h.pairingsOf(t, dems[1].ID)[0]

	_, err := h.e.RecordPayment(h.ctx, sup.ID, types.KES(60000))
	require.NoError(t, err)

	// Only 40000 is still outstanding on the investment.
	pay, err := h.e.SettlePairing(h.ctx, first.ID, types.KES(50000))
	require.NoError(t, err)
	require.Equal(t, int64(40000), pay.Amount.Amount)

	got := h.get(t, sup.ID)
	require.Equal(t, investment.StatusCompleted, got.Status)
	require.Equal(t, got.ReturnAmount, got.AmountPaid)

	for _, pid := range []id.PairingID{first.ID, second.ID} {
		p, err := h.e.GetPairing(h.ctx, pid)
		require.NoError(t, err)
		require.Equal(t, pairing.PaymentPaid, p.PaymentStatus)
		require.NotNil(t, p.PaidAt)

		_, err = h.e.SettlePairing(h.ctx, pid, types.KES(100))
		require.ErrorIs(t, err, payout.ErrPairingClosed)
	}

	h.clock.Advance(h.e.Config().GraceWindow + time.Minute)
	sum, err := h.e.RunOverdueCheck(h.ctx)
	require.NoError(t, err)
	require.Zero(t, sum.PairingsFailed)
	require.Empty(t, h.notes.of(notify.KindPairingFailed))
}

func TestRecordPaymentRejections(t *testing.T) {
	h := newHarness()
	sup, dem, _ := paired(t, h, 100000)

	_, err := h.e.RecordPayment(h.ctx, sup.ID, types.KES(0))
	require.ErrorIs(t, err, payout.ErrInvalidAmount)

	_, err = h.e.RecordPayment(h.ctx, sup.ID, types.USD(100))
	require.ErrorIs(t, err, payout.ErrCurrencyMismatch)

	// Demand that has not matured owes nothing to its investor yet.
	_, err = h.e.RecordPayment(h.ctx, dem.ID, types.KES(100))
	require.ErrorIs(t, err, payout.ErrNotPayable)

	_, err = h.e.RecordPayment(h.ctx, id.NewInvestmentID(), types.KES(100))
	require.True(t, payout.IsNotFound(err))

	require.Equal(t, investment.StatusPaired, h.get(t, sup.ID).Status)
}

func TestCompletionRemovesQueueEntry(t *testing.T) {
	h := newHarness()
	sup := h.supply(t, 100000)[0]

	// Matured but never paired, so nobody owes it anything yet.
	_, err := h.e.RecordPayment(h.ctx, sup.ID, types.KES(30000))
	require.ErrorIs(t, err, payout.ErrNotPayable)

	h.demand(t, 40000)
	h.match(t)
	require.Equal(t, investment.StatusPartiallyPaired, h.get(t, sup.ID).Status)

	_, err = h.e.RecordPayment(h.ctx, sup.ID, types.KES(100000))
	require.NoError(t, err)
	require.Equal(t, investment.StatusCompleted, h.get(t, sup.ID).Status)

	entries, err := h.e.ListQueue(h.ctx, queue.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestOverdueCheckFailsPairing(t *testing.T) {
	h := newHarness()
	sup, _, p := paired(t, h, 100000)

	sum, err := h.e.RunOverdueCheck(h.ctx)
	require.NoError(t, err)
	require.Zero(t, sum.PairingsFailed)

	h.clock.Advance(h.e.Config().GraceWindow + time.Minute)
	sum, err = h.e.RunOverdueCheck(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.PairingsFailed)
	require.Zero(t, sum.Requeued)

	got, err := h.e.GetPairing(h.ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, pairing.PaymentFailed, got.PaymentStatus)
	require.NotNil(t, got.FailedAt)

	failed := h.notes.of(notify.KindPairingFailed)
	require.Len(t, failed, 2)

	// Without requeueing the matured side stays off the queue.
	depth, err := h.e.QueueDepth(h.ctx)
	require.NoError(t, err)
	require.Zero(t, depth.Entries)
	require.Equal(t, investment.StatusPaired, h.get(t, sup.ID).Status)

	_, err = h.e.SettlePairing(h.ctx, p.ID, types.KES(100))
	require.ErrorIs(t, err, payout.ErrPairingClosed)

	sum, err = h.e.RunOverdueCheck(h.ctx)
	require.NoError(t, err)
	require.Zero(t, sum.Checked)
}

func TestOverdueRequeuesUnpaidRemainder(t *testing.T) {
	h := newHarness(payout.WithRequeueOverdue(true))
	sup, _, p := paired(t, h, 100000)

	_, err := h.e.SettlePairing(h.ctx, p.ID, types.KES(30000))
	require.NoError(t, err)

	h.clock.Advance(h.e.Config().GraceWindow + time.Minute)
	sum, err := h.e.RunOverdueCheck(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Requeued)
	require.Equal(t, int64(70000), sum.AmountRequeued.Amount)

	entry, err := h.store.GetQueueEntryByInvestment(h.ctx, sup.ID)
	require.NoError(t, err)
	require.Equal(t, int64(70000), entry.AmountRemaining.Amount)
	require.Equal(t, h.clock.Now(), entry.EnqueuedAt)

	// Partly paid supply keeps its status while queued again.
	require.Equal(t, investment.StatusPartiallyPaid, h.get(t, sup.ID).Status)

	// The requeued remainder funds the next newcomer.
	dem := h.demand(t, 70000)[0]
	h.match(t)
	require.Equal(t, investment.StatusPaired, h.get(t, dem.ID).Status)
}

func TestOverdueRequeueReturnsPairedSupplyToPartiallyPaired(t *testing.T) {
	h := newHarness(payout.WithRequeueOverdue(true))
	sup, _, _ := paired(t, h, 100000)

	h.clock.Advance(h.e.Config().GraceWindow + time.Minute)
	_, err := h.e.RunOverdueCheck(h.ctx)
	require.NoError(t, err)

	require.Equal(t, investment.StatusPartiallyPaired, h.get(t, sup.ID).Status)
	depth, err := h.e.QueueDepth(h.ctx)
	require.NoError(t, err)
	require.Equal(t, int64(100000), depth.Remaining.Amount)
}

func TestPaymentRemindersSentOnce(t *testing.T) {
	h := newHarness()
	_, dem, p := paired(t, h, 100000)

	sum, err := h.e.RunPaymentReminders(h.ctx)
	require.NoError(t, err)
	require.Zero(t, sum.Sent)

	h.clock.Advance(h.e.Config().GraceWindow - h.e.Config().ReminderLead + time.Minute)
	sum, err = h.e.RunPaymentReminders(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Sent)

	reminders := h.notes.of(notify.KindPaymentReminder)
	require.Len(t, reminders, 1)
	require.Equal(t, dem.InvestorID, reminders[0].InvestorID)
	require.Equal(t, p.ID.String(), reminders[0].Details["pairing_id"])

	got, err := h.e.GetPairing(h.ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReminderSentAt)

	sum, err = h.e.RunPaymentReminders(h.ctx)
	require.NoError(t, err)
	require.Zero(t, sum.Sent)
}

func TestRunCycleMaturesThenMatches(t *testing.T) {
	h := newHarness()
	owner := h.register(t, "early", "")
	sup := h.invest(t, owner.ID, 100000, 1)
	h.clock.Advance(48 * time.Hour)
	dem := h.demand(t, 100000)[0]

	out, err := h.e.RunCycle(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, out.Maturity.Matured)
	require.Equal(t, 1, out.Matching.PairingsCreated)
	require.Equal(t, investment.StatusPaired, h.get(t, sup.ID).Status)
	require.Equal(t, investment.StatusPaired, h.get(t, dem.ID).Status)
}

func TestStatistics(t *testing.T) {
	h := newHarness()
	sup, dem, p := paired(t, h, 100000)
	_, err := h.e.SettlePairing(h.ctx, p.ID, types.KES(25000))
	require.NoError(t, err)
	h.supply(t, 50000)

	stats, err := h.e.Statistics(h.ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Investments)
	require.Equal(t, int64(250000), stats.TotalInvested.Amount)
	require.Equal(t, int64(25000), stats.TotalReturned.Amount)
	require.Equal(t, int64(75000), stats.PendingPayments.Amount)
	require.Equal(t, 1, stats.OpenPairings)
	require.Equal(t, int64(1), stats.Queue.Entries)
	require.Equal(t, int64(50000), stats.Queue.Remaining.Amount)
	require.Equal(t, int64(1), stats.ByStatus[investment.StatusPartiallyPaid])

	payer, err := h.e.InvestorSummary(h.ctx, dem.InvestorID)
	require.NoError(t, err)
	require.Equal(t, 1, payer.ActiveInvestments)
	require.Equal(t, int64(75000), payer.PendingPayments.Amount)

	payee, err := h.e.InvestorSummary(h.ctx, sup.InvestorID)
	require.NoError(t, err)
	require.Zero(t, payee.PendingPayments.Amount)
	require.Equal(t, int64(75000), payee.AwaitingPayout.Amount)
}
