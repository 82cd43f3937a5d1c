package payout

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/types"
)

// ──────────────────────────────────────────────────
// Investment creation
// ──────────────────────────────────────────────────

// CreateInvestment places a new investment for investorID. Any referral
// bonus the investor holds is consumed and folded into the return when the
// principal covers it. The referral cascade for the new investment runs after
// the investment has committed; its failure is logged and never fails the
// call.
func (e *Engine) CreateInvestment(ctx context.Context, investorID id.InvestorID, amount types.Money, maturityDays int) (*investment.Investment, error) {
	if amount.Currency == "" {
		amount.Currency = e.config.Currency
	}
	if err := e.validateInvestment(amount, maturityDays); err != nil {
		return nil, err
	}

	var created *investment.Investment
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := e.now()

		owner, err := tx.GetInvestorForUpdate(ctx, investorID)
		if err != nil {
			return notFound(err, ErrInvestorNotFound, investorID)
		}

		bonus, _, err := e.referrals.Consume(ctx, tx, owner, amount, now)
		if err != nil {
			return fmt.Errorf("payout: consume referral bonus: %w", err)
		}

		inv := &investment.Investment{
			Entity:            types.NewEntityAt(now),
			ID:                id.NewInvestmentID(),
			InvestorID:        owner.ID,
			Amount:            amount,
			MaturityDays:      maturityDays,
			MaturesAt:         now.Add(time.Duration(maturityDays) * 24 * time.Hour),
			ReturnAmount:      investment.ComputeReturn(amount, maturityDays, e.config.DailyInterestRate, bonus),
			ReferralBonusUsed: bonus,
			AmountMatched:     types.Zero(amount.Currency),
			AmountPaid:        types.Zero(amount.Currency),
			Status:            investment.StatusPending,
		}
		if err := tx.CreateInvestment(ctx, inv); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("investment created",
		"investment_id", created.ID.String(),
		"investor_id", investorID.String(),
		"amount", created.Amount.Amount,
		"return_amount", created.ReturnAmount.Amount,
		"bonus_used", created.ReferralBonusUsed.Amount,
	)
	e.plugins.EmitInvestmentCreated(ctx, created)

	e.runCascade(ctx, created)

	return created, nil
}

func (e *Engine) validateInvestment(amount types.Money, maturityDays int) error {
	if amount.Currency != e.config.Currency {
		return fmt.Errorf("%w: got %s, engine runs in %s", ErrCurrencyMismatch, amount.Currency, e.config.Currency)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if minimum := e.config.MinInvestment; minimum > 0 && amount.Amount < minimum {
		return fmt.Errorf("%w: %s is below the minimum %s", ErrInvalidAmount, amount, types.New(minimum, amount.Currency))
	}
	if maximum := e.config.MaxInvestment; maximum > 0 && amount.Amount > maximum {
		return fmt.Errorf("%w: %s is above the maximum %s", ErrInvalidAmount, amount, types.New(maximum, amount.Currency))
	}
	if maturityDays <= 0 {
		return fmt.Errorf("%w: %d days", ErrInvalidPeriod, maturityDays)
	}
	if len(e.config.MaturityDays) > 0 && !slices.Contains(e.config.MaturityDays, maturityDays) {
		return fmt.Errorf("%w: %d days, allowed %v", ErrInvalidPeriod, maturityDays, e.config.MaturityDays)
	}
	return nil
}

// runCascade credits the referral chain of inv in its own transaction. The
// cascade is all-or-nothing; a failure is logged, reported to plugins and
// otherwise swallowed.
func (e *Engine) runCascade(ctx context.Context, inv *investment.Investment) {
	ctx = context.WithoutCancel(ctx)

	var records []*referral.Record
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		records, err = e.referrals.Cascade(ctx, tx, inv, e.now())
		return err
	})
	if err != nil {
		e.logger.Error("referral cascade failed",
			"investment_id", inv.ID.String(),
			"investor_id", inv.InvestorID.String(),
			"error", err,
		)
		e.plugins.EmitCascadeFailed(ctx, inv.ID, err)
		return
	}

	for _, rec := range records {
		e.plugins.EmitReferralBonus(ctx, rec)
		e.notify(ctx, notify.Event{
			Kind:         notify.KindReferralBonus,
			InvestorID:   rec.ReferrerID,
			InvestmentID: inv.ID,
			Details: map[string]any{
				"referred_id": rec.ReferredID.String(),
				"level":       rec.Level,
				"bonus":       rec.BonusEarned.Amount,
				"currency":    rec.BonusEarned.Currency,
			},
		})
	}
	if len(records) > 0 {
		e.logger.Debug("referral cascade credited",
			"investment_id", inv.ID.String(),
			"levels", len(records),
		)
	}
}

// GetInvestment retrieves an investment by ID.
func (e *Engine) GetInvestment(ctx context.Context, investmentID id.InvestmentID) (*investment.Investment, error) {
	inv, err := e.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, notFound(err, ErrInvestmentNotFound, investmentID)
	}
	return inv, nil
}

// ListInvestments lists investments ordered oldest first.
func (e *Engine) ListInvestments(ctx context.Context, opts investment.ListOpts) ([]*investment.Investment, error) {
	return e.store.ListInvestments(ctx, opts)
}
