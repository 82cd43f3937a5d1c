package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/types"
)

// MatchingSummary reports one matching pass.
type MatchingSummary struct {
	DemandConsidered int         `json:"demand_considered"`
	DemandFunded     int         `json:"demand_funded"`
	DemandPartial    int         `json:"demand_partial"`
	PairingsCreated  int         `json:"pairings_created"`
	AmountMatched    types.Money `json:"amount_matched"`
	Failed           int         `json:"failed"`
	Skipped          bool        `json:"skipped"`
}

// matchResult is the committed outcome of one demand item.
type matchResult struct {
	demand   *investment.Investment
	pairings []*pairing.Pairing
	funded   bool
}

// RunMatchingPass funds pending investments from the payout queue, oldest
// demand first and oldest queue entry first. Each demand investment is
// matched in its own transaction; a failure rolls back only that item. The
// pass is a no-op outside the bidding windows.
func (e *Engine) RunMatchingPass(ctx context.Context) (*MatchingSummary, error) {
	start := time.Now()
	now := e.now()
	summary := &MatchingSummary{AmountMatched: types.Zero(e.config.Currency)}

	if !e.InBiddingWindow(now) {
		summary.Skipped = true
		e.logger.Debug("matching skipped outside bidding window", "at", now)
		e.plugins.EmitPassCompleted(ctx, "matching", summary, time.Since(start))
		return summary, nil
	}

	demand, err := e.store.ListInvestments(ctx, investment.ListOpts{
		Statuses:  []investment.Status{investment.StatusPending},
		Unmatured: true,
	})
	if err != nil {
		return nil, fmt.Errorf("payout: list demand: %w", err)
	}

	for _, d := range demand {
		if !d.IsDemand() {
			continue
		}
		summary.DemandConsidered++

		res, err := e.matchDemand(ctx, d.ID, now)
		if err != nil {
			summary.Failed++
			e.logger.Warn("matching failed",
				"investment_id", d.ID.String(),
				"error", err,
			)
			continue
		}
		if res == nil || len(res.pairings) == 0 {
			continue
		}

		if res.funded {
			summary.DemandFunded++
		} else {
			summary.DemandPartial++
		}
		summary.PairingsCreated += len(res.pairings)
		for _, p := range res.pairings {
			summary.AmountMatched = summary.AmountMatched.Add(p.AmountMatched)
		}

		e.announcePairings(ctx, res)
	}

	elapsed := time.Since(start)
	e.logger.Info("matching pass complete",
		"demand", summary.DemandConsidered,
		"funded", summary.DemandFunded,
		"partial", summary.DemandPartial,
		"pairings", summary.PairingsCreated,
		"amount", summary.AmountMatched.Amount,
		"failed", summary.Failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	e.plugins.EmitPassCompleted(ctx, "matching", summary, elapsed)

	return summary, nil
}

// matchDemand funds one demand investment as far as the queue allows.
func (e *Engine) matchDemand(ctx context.Context, investmentID id.InvestmentID, now time.Time) (*matchResult, error) {
	var res *matchResult
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res = nil

		if err := tx.AcquireMatchingLock(ctx); err != nil {
			return err
		}

		demand, err := tx.GetInvestmentForUpdate(ctx, investmentID)
		if err != nil {
			return notFound(err, ErrInvestmentNotFound, investmentID)
		}
		if !demand.IsDemand() {
			return nil
		}

		exclude := demand.InvestorID
		if e.config.AllowSelfPairing {
			exclude = id.Nil
		}

		r := &matchResult{demand: demand}
		matched := types.Zero(demand.Amount.Currency)
		unmet := demand.Unmet()

		for unmet.IsPositive() {
			head, err := tx.LockQueueHead(ctx, exclude)
			if errors.Is(err, store.ErrQueueEmpty) {
				break
			}
			if err != nil {
				return fmt.Errorf("payout: lock queue head: %w", err)
			}
			if !head.AmountRemaining.SameCurrency(unmet) {
				return fmt.Errorf("%w: queue entry %s is %s", ErrCurrencyMismatch, head.ID, head.AmountRemaining.Currency)
			}

			supply, err := tx.GetInvestmentForUpdate(ctx, head.InvestmentID)
			if err != nil {
				return notFound(err, ErrInvestmentNotFound, head.InvestmentID)
			}

			amount := head.AmountRemaining.Min(unmet)
			p := &pairing.Pairing{
				ID:                  id.NewPairingID(),
				MaturedInvestmentID: supply.ID,
				MaturedInvestorID:   supply.InvestorID,
				NewInvestmentID:     demand.ID,
				NewInvestorID:       demand.InvestorID,
				QueueEntryID:        head.ID,
				AmountMatched:       amount,
				PairedAt:            now,
				DueAt:               now.Add(e.config.GraceWindow),
				PaymentStatus:       pairing.PaymentPending,
			}
			if err := tx.CreatePairing(ctx, p); err != nil {
				return err
			}

			head.AmountRemaining = head.AmountRemaining.Subtract(amount)
			head.UpdatedAt = now
			next := investment.StatusPartiallyPaired
			if head.AmountRemaining.IsZero() {
				if err := tx.DeleteQueueEntry(ctx, head.ID); err != nil {
					return err
				}
				next = investment.StatusPaired
			} else if err := tx.UpdateQueueEntry(ctx, head); err != nil {
				return err
			}

			if supply.Status != investment.StatusPartiallyPaid {
				if err := supply.Transition(next, now); err != nil {
					return fmt.Errorf("payout: supply %s: %w", supply.ID, err)
				}
				if err := tx.UpdateInvestment(ctx, supply); err != nil {
					return err
				}
			}

			unmet = unmet.Subtract(amount)
			matched = matched.Add(amount)
			r.pairings = append(r.pairings, p)
		}

		if len(r.pairings) == 0 {
			res = r
			return nil
		}

		demand.AmountMatched = demand.AmountMatched.Add(matched)
		if demand.Unmet().IsPositive() {
			demand.TouchAt(now)
		} else {
			if err := demand.Transition(investment.StatusPaired, now); err != nil {
				return err
			}
			fundedAt := now
			demand.FundedAt = &fundedAt
			r.funded = true
		}
		if err := tx.UpdateInvestment(ctx, demand); err != nil {
			return err
		}

		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) announcePairings(ctx context.Context, res *matchResult) {
	for _, p := range res.pairings {
		e.plugins.EmitPairingCreated(ctx, p)

		details := map[string]any{
			"pairing_id": p.ID.String(),
			"amount":     p.AmountMatched.Amount,
			"currency":   p.AmountMatched.Currency,
			"due_at":     p.DueAt,
		}
		e.notify(ctx, notify.Event{
			Kind:         notify.KindPaired,
			InvestorID:   p.NewInvestorID,
			InvestmentID: p.NewInvestmentID,
			Details:      withRole(details, "payer", p.MaturedInvestorID),
		})
		e.notify(ctx, notify.Event{
			Kind:         notify.KindPaired,
			InvestorID:   p.MaturedInvestorID,
			InvestmentID: p.MaturedInvestmentID,
			Details:      withRole(details, "payee", p.NewInvestorID),
		})
	}
}

func withRole(details map[string]any, role string, counterparty id.InvestorID) map[string]any {
	out := make(map[string]any, len(details)+2)
	for k, v := range details {
		out[k] = v
	}
	out["role"] = role
	out["counterparty_id"] = counterparty.String()
	return out
}
