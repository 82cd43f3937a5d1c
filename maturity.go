package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/types"
)

// MaturitySummary reports one maturity detection run.
type MaturitySummary struct {
	Candidates     int         `json:"candidates"`
	Matured        int         `json:"matured"`
	Failed         int         `json:"failed"`
	AmountEnqueued types.Money `json:"amount_enqueued"`
}

// RunMaturityDetection moves every investment whose holding period has
// elapsed to matured and enqueues its return for repayment. Each investment
// is handled in its own transaction and re-checked under lock, so a repeat
// run finds nothing to do.
func (e *Engine) RunMaturityDetection(ctx context.Context) (*MaturitySummary, error) {
	start := time.Now()
	now := e.now()
	summary := &MaturitySummary{AmountEnqueued: types.Zero(e.config.Currency)}

	candidates, err := e.store.ListInvestments(ctx, investment.ListOpts{
		Statuses:      []investment.Status{investment.StatusPending, investment.StatusPaired},
		Unmatured:     true,
		MaturesBefore: now,
	})
	if err != nil {
		return nil, fmt.Errorf("payout: list maturity candidates: %w", err)
	}

	for _, c := range candidates {
		if !c.DueForMaturity(now, e.config.FundedMaturityOnly) {
			continue
		}
		summary.Candidates++

		inv, entry, err := e.matureOne(ctx, c.ID, now)
		if err != nil {
			summary.Failed++
			e.logger.Warn("maturity failed",
				"investment_id", c.ID.String(),
				"error", err,
			)
			continue
		}
		if inv == nil {
			continue
		}

		summary.Matured++
		summary.AmountEnqueued = summary.AmountEnqueued.Add(entry.AmountRemaining)

		e.plugins.EmitInvestmentMatured(ctx, inv, entry)
		e.notify(ctx, notify.Event{
			Kind:         notify.KindMatured,
			InvestorID:   inv.InvestorID,
			InvestmentID: inv.ID,
			Details: map[string]any{
				"return_amount": inv.ReturnAmount.Amount,
				"currency":      inv.ReturnAmount.Currency,
				"queue_entry":   entry.ID.String(),
			},
		})
	}

	elapsed := time.Since(start)
	e.logger.Info("maturity detection complete",
		"candidates", summary.Candidates,
		"matured", summary.Matured,
		"failed", summary.Failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	e.plugins.EmitPassCompleted(ctx, "maturity", summary, elapsed)

	return summary, nil
}

// matureOne returns nil values when the investment is no longer eligible.
func (e *Engine) matureOne(ctx context.Context, investmentID id.InvestmentID, now time.Time) (*investment.Investment, *queue.Entry, error) {
	var (
		matured *investment.Investment
		entry   *queue.Entry
	)
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		matured, entry = nil, nil

		inv, err := tx.GetInvestmentForUpdate(ctx, investmentID)
		if err != nil {
			return notFound(err, ErrInvestmentNotFound, investmentID)
		}
		if !inv.DueForMaturity(now, e.config.FundedMaturityOnly) {
			return nil
		}

		if err := inv.Transition(investment.StatusMatured, now); err != nil {
			return err
		}
		maturedAt := now
		inv.MaturedAt = &maturedAt
		if err := tx.UpdateInvestment(ctx, inv); err != nil {
			return err
		}

		qe := &queue.Entry{
			ID:              id.NewQueueEntryID(),
			InvestmentID:    inv.ID,
			InvestorID:      inv.InvestorID,
			AmountRemaining: inv.ReturnAmount,
			EnqueuedAt:      now,
			UpdatedAt:       now,
		}
		if err := tx.EnqueueEntry(ctx, qe); err != nil {
			return err
		}

		matured, entry = inv, qe
		return nil
	})
	return matured, entry, err
}
