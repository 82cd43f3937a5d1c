package referral_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/types"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func record(invested, bonus int64) *referral.Record {
	return &referral.Record{
		Entity:         types.NewEntityAt(now),
		ID:             id.NewReferralID(),
		ReferrerID:     id.NewInvestorID(),
		ReferredID:     id.NewInvestorID(),
		InvestmentID:   id.NewInvestmentID(),
		Level:          1,
		AmountInvested: types.KES(invested),
		BonusEarned:    types.KES(bonus),
		Status:         referral.StatusPending,
	}
}

func TestSplitPreservesTotals(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bonus := rapid.Int64Range(2, 1_000_000).Draw(rt, "bonus")
		invested := rapid.Int64Range(1, 100_000_000).Draw(rt, "invested")
		amount := rapid.Int64Range(1, bonus-1).Draw(rt, "amount")

		rec := record(invested, bonus)
		origID := rec.ID

		used, err := referral.Split(rec, types.KES(amount), now)
		require.NoError(rt, err)

		require.Equal(rt, bonus, used.BonusEarned.Amount+rec.BonusEarned.Amount)
		require.Equal(rt, invested, used.AmountInvested.Amount+rec.AmountInvested.Amount)
		require.Equal(rt, amount, used.BonusEarned.Amount)

		require.Equal(rt, origID, rec.ID)
		require.Equal(rt, referral.StatusPending, rec.Status)
		require.Equal(rt, referral.StatusUsed, used.Status)
		require.Equal(rt, origID, used.SplitFrom)
		require.NotNil(rt, used.UsedAt)
	})
}

func TestSplitRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		amount types.Money
	}{
		{"zero", types.KES(0)},
		{"whole", types.KES(3000)},
		{"more", types.KES(3001)},
		{"currency", types.USD(100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record(100000, 3000)
			_, err := referral.Split(rec, tt.amount, now)
			require.ErrorIs(t, err, referral.ErrInvalidSplit)
			require.Equal(t, int64(3000), rec.BonusEarned.Amount)
		})
	}
}

func TestProcessorDefaults(t *testing.T) {
	p := referral.NewProcessor(decimal.RequireFromString("0.03"), 2)
	require.Equal(t, "0.03", p.Rate().String())
	require.Equal(t, 2, p.MaxDepth())
}

func TestMarkUsed(t *testing.T) {
	rec := record(100000, 3000)
	rec.MarkUsed(now.Add(time.Hour))
	require.Equal(t, referral.StatusUsed, rec.Status)
	require.Equal(t, now.Add(time.Hour), *rec.UsedAt)
	require.Equal(t, now.Add(time.Hour), rec.UpdatedAt)
}
