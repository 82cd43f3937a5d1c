package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/store/memory"
	"github.com/xraph/payout/types"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newInvestor(t *testing.T, s *memory.Store, code string) *investor.Investor {
	t.Helper()
	inv := &investor.Investor{
		Entity:       types.NewEntityAt(t0),
		ID:           id.NewInvestorID(),
		Name:         code,
		ReferralCode: code,
		BonusBalance: types.Zero("kes"),
	}
	require.NoError(t, s.CreateInvestor(context.Background(), inv))
	return inv
}

func enqueue(t *testing.T, s *memory.Store, owner id.InvestorID, amount int64, at time.Time) *queue.Entry {
	t.Helper()
	e := &queue.Entry{
		ID:              id.NewQueueEntryID(),
		InvestmentID:    id.NewInvestmentID(),
		InvestorID:      owner,
		AmountRemaining: types.KES(amount),
		EnqueuedAt:      at,
		UpdatedAt:       at,
	}
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.EnqueueEntry(ctx, e)
	})
	require.NoError(t, err)
	return e
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := newInvestor(t, s, "AAAA0001")

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inv := &investment.Investment{
			Entity:     types.NewEntityAt(t0),
			ID:         id.NewInvestmentID(),
			InvestorID: owner.ID,
			Amount:     types.KES(1000),
			Status:     investment.StatusPending,
		}
		require.NoError(t, tx.CreateInvestment(ctx, inv))

		owner.BonusBalance = types.KES(500)
		require.NoError(t, tx.UpdateInvestor(ctx, owner))
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := s.ListInvestments(ctx, investment.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, list)

	got, err := s.GetInvestor(ctx, owner.ID)
	require.NoError(t, err)
	require.True(t, got.BonusBalance.IsZero())
}

func TestRunInTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.New().RunInTx(ctx, func(context.Context, store.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestQueueOrdering(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := newInvestor(t, s, "AAAA0001")
	b := newInvestor(t, s, "BBBB0002")

	late := enqueue(t, s, a.ID, 300, t0.Add(time.Hour))
	first := enqueue(t, s, b.ID, 100, t0)
	tied := enqueue(t, s, a.ID, 200, t0)

	entries, err := s.ListQueue(ctx, queue.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, first.ID, entries[0].ID)
	require.Equal(t, tied.ID, entries[1].ID)
	require.Equal(t, late.ID, entries[2].ID)

	stats, err := s.QueueStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Entries)
	require.Equal(t, int64(600), stats.Remaining)

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		head, err := tx.LockQueueHead(ctx, id.Nil)
		require.NoError(t, err)
		require.Equal(t, first.ID, head.ID)

		head, err = tx.LockQueueHead(ctx, b.ID)
		require.NoError(t, err)
		require.Equal(t, tied.ID, head.ID)

		require.NoError(t, tx.DeleteQueueEntry(ctx, first.ID))
		require.NoError(t, tx.DeleteQueueEntry(ctx, tied.ID))
		require.NoError(t, tx.DeleteQueueEntry(ctx, late.ID))

		_, err = tx.LockQueueHead(ctx, id.Nil)
		require.ErrorIs(t, err, store.ErrQueueEmpty)
		return nil
	})
	require.NoError(t, err)
}

func TestEnqueueRejectsSecondEntryForInvestment(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := newInvestor(t, s, "AAAA0001")
	e := enqueue(t, s, owner.ID, 100, t0)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.EnqueueEntry(ctx, &queue.Entry{
			ID:              id.NewQueueEntryID(),
			InvestmentID:    e.InvestmentID,
			InvestorID:      owner.ID,
			AmountRemaining: types.KES(50),
			EnqueuedAt:      t0,
		})
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestReferralCodeUnique(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	first := newInvestor(t, s, "CAFE0001")

	dup := &investor.Investor{
		Entity:       types.NewEntityAt(t0),
		ID:           id.NewInvestorID(),
		ReferralCode: "CAFE0001",
	}
	require.ErrorIs(t, s.CreateInvestor(ctx, dup), store.ErrAlreadyExists)

	got, err := s.GetInvestorByReferralCode(ctx, "CAFE0001")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	_, err = s.GetInvestorByReferralCode(ctx, "NOPE0000")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := newInvestor(t, s, "AAAA0001")

	got, err := s.GetInvestor(ctx, owner.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetInvestor(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "AAAA0001", again.Name)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	owner := newInvestor(t, s, "AAAA0001")
	for i := range 5 {
		enqueue(t, s, owner.ID, int64(100+i), t0.Add(time.Duration(i)*time.Minute))
	}

	page, err := s.ListQueue(ctx, queue.ListOpts{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(102), page[0].AmountRemaining.Amount)

	tail, err := s.ListQueue(ctx, queue.ListOpts{Offset: 10})
	require.NoError(t, err)
	require.Empty(t, tail)
}
