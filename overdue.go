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
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/types"
)

// OverdueSummary reports one overdue check.
type OverdueSummary struct {
	Checked        int         `json:"checked"`
	PairingsFailed int         `json:"pairings_failed"`
	Requeued       int         `json:"requeued"`
	AmountRequeued types.Money `json:"amount_requeued"`
	Errors         int         `json:"errors"`
}

// ReminderSummary reports one reminder run.
type ReminderSummary struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Errors  int `json:"errors"`
}

// RunOverdueCheck fails every pending pairing whose due time has passed.
// With RequeueOverdue set, the unpaid part of a failed pairing goes back on
// the matured investment's queue entry.
func (e *Engine) RunOverdueCheck(ctx context.Context) (*OverdueSummary, error) {
	start := time.Now()
	now := e.now()
	summary := &OverdueSummary{AmountRequeued: types.Zero(e.config.Currency)}

	overdue, err := e.store.ListPairings(ctx, pairing.ListOpts{
		PaymentStatus: pairing.PaymentPending,
		DueBefore:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("payout: list overdue pairings: %w", err)
	}

	for _, p := range overdue {
		summary.Checked++

		failed, requeued, err := e.failPairing(ctx, p.ID, now)
		if err != nil {
			summary.Errors++
			e.logger.Warn("overdue check failed",
				"pairing_id", p.ID.String(),
				"error", err,
			)
			continue
		}
		if failed == nil {
			continue
		}

		summary.PairingsFailed++
		if requeued.IsPositive() {
			summary.Requeued++
			summary.AmountRequeued = summary.AmountRequeued.Add(requeued)
		}

		e.plugins.EmitPairingFailed(ctx, failed)
		details := map[string]any{
			"pairing_id": failed.ID.String(),
			"amount":     failed.AmountMatched.Amount,
			"currency":   failed.AmountMatched.Currency,
			"due_at":     failed.DueAt,
			"requeued":   requeued.Amount,
		}
		e.notify(ctx, notify.Event{
			Kind:         notify.KindPairingFailed,
			InvestorID:   failed.NewInvestorID,
			InvestmentID: failed.NewInvestmentID,
			Details:      withRole(details, "payer", failed.MaturedInvestorID),
		})
		e.notify(ctx, notify.Event{
			Kind:         notify.KindPairingFailed,
			InvestorID:   failed.MaturedInvestorID,
			InvestmentID: failed.MaturedInvestmentID,
			Details:      withRole(details, "payee", failed.NewInvestorID),
		})
	}

	elapsed := time.Since(start)
	e.logger.Info("overdue check complete",
		"checked", summary.Checked,
		"failed", summary.PairingsFailed,
		"requeued", summary.Requeued,
		"errors", summary.Errors,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	e.plugins.EmitPassCompleted(ctx, "overdue", summary, elapsed)

	return summary, nil
}

// failPairing returns a nil pairing when it is no longer overdue.
func (e *Engine) failPairing(ctx context.Context, pairingID id.PairingID, now time.Time) (*pairing.Pairing, types.Money, error) {
	var (
		failed   *pairing.Pairing
		requeued types.Money
	)
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		failed, requeued = nil, types.Zero(e.config.Currency)

		if err := tx.AcquireMatchingLock(ctx); err != nil {
			return err
		}

		p, err := tx.GetPairingForUpdate(ctx, pairingID)
		if err != nil {
			return notFound(err, ErrPairingNotFound, pairingID)
		}
		if !p.IsOverdue(now) {
			return nil
		}

		p.PaymentStatus = pairing.PaymentFailed
		failedAt := now
		p.FailedAt = &failedAt
		if err := tx.UpdatePairing(ctx, p); err != nil {
			return err
		}
		failed = p

		if !e.config.RequeueOverdue {
			return nil
		}
		amount, err := e.requeueRemainder(ctx, tx, p, now)
		if err != nil {
			return err
		}
		requeued = amount
		return nil
	})
	return failed, requeued, err
}

// requeueRemainder puts the unpaid part of p back on the queue for its
// matured investment. The amount never exceeds what the investment still
// has outstanding beyond its current queue entry.
func (e *Engine) requeueRemainder(ctx context.Context, tx store.Tx, p *pairing.Pairing, now time.Time) (types.Money, error) {
	none := types.Zero(p.AmountMatched.Currency)

	paid, err := tx.SumPairingPayments(ctx, p.ID)
	if err != nil {
		return none, err
	}
	remainder := p.AmountMatched.Subtract(types.New(paid, p.AmountMatched.Currency))
	if !remainder.IsPositive() {
		return none, nil
	}

	supply, err := tx.GetInvestmentForUpdate(ctx, p.MaturedInvestmentID)
	if err != nil {
		return none, notFound(err, ErrInvestmentNotFound, p.MaturedInvestmentID)
	}
	if !supply.IsPayable() {
		return none, nil
	}

	entry, err := tx.GetQueueEntryForUpdate(ctx, supply.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return none, err
	}

	room := supply.Outstanding()
	if entry != nil {
		room = room.Subtract(entry.AmountRemaining)
	}
	remainder = remainder.Min(room)
	if !remainder.IsPositive() {
		return none, nil
	}

	if entry != nil {
		entry.AmountRemaining = entry.AmountRemaining.Add(remainder)
		entry.UpdatedAt = now
		if err := tx.UpdateQueueEntry(ctx, entry); err != nil {
			return none, err
		}
	} else {
		entry = &queue.Entry{
			ID:              id.NewQueueEntryID(),
			InvestmentID:    supply.ID,
			InvestorID:      supply.InvestorID,
			AmountRemaining: remainder,
			EnqueuedAt:      now,
			UpdatedAt:       now,
		}
		if err := tx.EnqueueEntry(ctx, entry); err != nil {
			return none, err
		}
	}

	if supply.Status == investment.StatusPaired {
		if err := supply.Transition(investment.StatusPartiallyPaired, now); err != nil {
			return none, err
		}
		if err := tx.UpdateInvestment(ctx, supply); err != nil {
			return none, err
		}
	}

	e.logger.Debug("overdue remainder requeued",
		"pairing_id", p.ID.String(),
		"investment_id", supply.ID.String(),
		"amount", remainder.Amount,
	)
	return remainder, nil
}

// RunPaymentReminders reminds the paying investor of every pending pairing
// due within ReminderLead. Each pairing is reminded at most once. A zero
// ReminderLead disables reminders.
func (e *Engine) RunPaymentReminders(ctx context.Context) (*ReminderSummary, error) {
	start := time.Now()
	now := e.now()
	lead := e.config.ReminderLead
	summary := &ReminderSummary{}

	if lead <= 0 {
		return summary, nil
	}

	due, err := e.store.ListPairings(ctx, pairing.ListOpts{
		PaymentStatus: pairing.PaymentPending,
		DueBefore:     now.Add(lead + time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("payout: list pairings for reminders: %w", err)
	}

	for _, p := range due {
		if !p.NeedsReminder(now, lead) {
			continue
		}
		summary.Checked++

		reminded, err := e.stampReminder(ctx, p.ID, now, lead)
		if err != nil {
			summary.Errors++
			e.logger.Warn("payment reminder failed",
				"pairing_id", p.ID.String(),
				"error", err,
			)
			continue
		}
		if reminded == nil {
			continue
		}

		summary.Sent++
		e.notify(ctx, notify.Event{
			Kind:         notify.KindPaymentReminder,
			InvestorID:   reminded.NewInvestorID,
			InvestmentID: reminded.NewInvestmentID,
			Details: withRole(map[string]any{
				"pairing_id": reminded.ID.String(),
				"amount":     reminded.AmountMatched.Amount,
				"currency":   reminded.AmountMatched.Currency,
				"due_at":     reminded.DueAt,
			}, "payer", reminded.MaturedInvestorID),
		})
	}

	elapsed := time.Since(start)
	e.logger.Info("payment reminders complete",
		"checked", summary.Checked,
		"sent", summary.Sent,
		"errors", summary.Errors,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	e.plugins.EmitPassCompleted(ctx, "reminders", summary, elapsed)

	return summary, nil
}

func (e *Engine) stampReminder(ctx context.Context, pairingID id.PairingID, now time.Time, lead time.Duration) (*pairing.Pairing, error) {
	var reminded *pairing.Pairing
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		reminded = nil

		p, err := tx.GetPairingForUpdate(ctx, pairingID)
		if err != nil {
			return notFound(err, ErrPairingNotFound, pairingID)
		}
		if !p.NeedsReminder(now, lead) {
			return nil
		}

		sentAt := now
		p.ReminderSentAt = &sentAt
		if err := tx.UpdatePairing(ctx, p); err != nil {
			return err
		}
		reminded = p
		return nil
	})
	return reminded, err
}
