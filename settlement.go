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
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/types"
)

// PaymentOption configures a recorded payment.
type PaymentOption func(*payment.Payment)

// WithReference sets the external transfer reference.
func WithReference(ref string) PaymentOption {
	return func(p *payment.Payment) { p.Reference = ref }
}

// WithMethod sets how the money moved.
func WithMethod(m payment.Method) PaymentOption {
	return func(p *payment.Payment) { p.Method = m }
}

// WithNotes attaches free-form notes.
func WithNotes(notes string) PaymentOption {
	return func(p *payment.Payment) { p.Notes = notes }
}

// settled is the committed outcome of one payment.
type settled struct {
	payment   *payment.Payment
	inv       *investment.Investment
	pairing   *pairing.Pairing
	completed bool
	// closed counts pending pairings settled by completion.
	closed int
}

// ──────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────

// RecordPayment credits amount against the return of a matured investment.
// The amount is clamped to what is still owed. The investment completes once
// its return is fully paid.
func (e *Engine) RecordPayment(ctx context.Context, investmentID id.InvestmentID, amount types.Money, opts ...PaymentOption) (*payment.Payment, error) {
	if err := e.validatePayment(&amount); err != nil {
		return nil, err
	}

	var out *settled
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		out = nil
		now := e.now()

		if err := tx.AcquireMatchingLock(ctx); err != nil {
			return err
		}

		inv, err := tx.GetInvestmentForUpdate(ctx, investmentID)
		if err != nil {
			return notFound(err, ErrInvestmentNotFound, investmentID)
		}

		pay := newPayment(inv, amount, now, opts)
		res, err := e.applyPayment(ctx, tx, inv, pay, now)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.announcePayment(ctx, out)
	return out.payment, nil
}

// SettlePairing records a payment made by the new investor of a pairing to
// its matured investor. The amount is clamped to what the pairing still
// owes; the pairing is marked paid once its payments cover it or the
// matured investment completes.
func (e *Engine) SettlePairing(ctx context.Context, pairingID id.PairingID, amount types.Money, opts ...PaymentOption) (*payment.Payment, error) {
	if err := e.validatePayment(&amount); err != nil {
		return nil, err
	}

	var out *settled
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		out = nil
		now := e.now()

		if err := tx.AcquireMatchingLock(ctx); err != nil {
			return err
		}

		p, err := tx.GetPairingForUpdate(ctx, pairingID)
		if err != nil {
			return notFound(err, ErrPairingNotFound, pairingID)
		}
		if p.PaymentStatus != pairing.PaymentPending {
			return fmt.Errorf("%w: %s is %s", ErrPairingClosed, p.ID, p.PaymentStatus)
		}

		paid, err := tx.SumPairingPayments(ctx, p.ID)
		if err != nil {
			return err
		}
		owed := p.AmountMatched.Subtract(types.New(paid, p.AmountMatched.Currency))
		if !owed.IsPositive() {
			return fmt.Errorf("%w: %s is fully paid", ErrPairingClosed, p.ID)
		}
		if !amount.SameCurrency(owed) {
			return fmt.Errorf("%w: got %s, pairing is in %s", ErrCurrencyMismatch, amount.Currency, owed.Currency)
		}

		inv, err := tx.GetInvestmentForUpdate(ctx, p.MaturedInvestmentID)
		if err != nil {
			return notFound(err, ErrInvestmentNotFound, p.MaturedInvestmentID)
		}

		pay := newPayment(inv, amount.Min(owed), now, opts)
		pay.PairingID = p.ID
		pay.FromInvestorID = p.NewInvestorID

		res, err := e.applyPayment(ctx, tx, inv, pay, now)
		if err != nil {
			return err
		}

		if res.completed || !owed.GreaterThan(pay.Amount) {
			p.PaymentStatus = pairing.PaymentPaid
			paidAt := now
			p.PaidAt = &paidAt
			if err := tx.UpdatePairing(ctx, p); err != nil {
				return err
			}
		}
		res.pairing = p

		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.announcePayment(ctx, out)
	return out.payment, nil
}

func (e *Engine) validatePayment(amount *types.Money) error {
	if amount.Currency == "" {
		amount.Currency = e.config.Currency
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: payment %s", ErrInvalidAmount, amount)
	}
	return nil
}

func newPayment(inv *investment.Investment, amount types.Money, now time.Time, opts []PaymentOption) *payment.Payment {
	pay := &payment.Payment{
		Entity:       types.NewEntityAt(now),
		ID:           id.NewPaymentID(),
		InvestmentID: inv.ID,
		ToInvestorID: inv.InvestorID,
		Amount:       amount,
		Method:       payment.MethodManual,
	}
	for _, opt := range opts {
		opt(pay)
	}
	return pay
}

// applyPayment credits pay against the locked investment inv, clamping
// pay.Amount to the outstanding return, and stores both. Completing inv
// marks every pairing still pending against it paid.
func (e *Engine) applyPayment(ctx context.Context, tx store.Tx, inv *investment.Investment, pay *payment.Payment, now time.Time) (*settled, error) {
	if !inv.IsPayable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPayable, inv.ID, inv.Status)
	}
	if !pay.Amount.SameCurrency(inv.ReturnAmount) {
		return nil, fmt.Errorf("%w: got %s, investment is in %s", ErrCurrencyMismatch, pay.Amount.Currency, inv.ReturnAmount.Currency)
	}

	pay.Amount = pay.Amount.Min(inv.Outstanding())
	if !pay.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s has nothing outstanding", ErrNotPayable, inv.ID)
	}

	inv.AmountPaid = inv.AmountPaid.Add(pay.Amount)
	paidAt := now
	inv.LastPaymentAt = &paidAt
	if inv.TransactionRef == "" {
		inv.TransactionRef = investment.NewTransactionRef()
	}

	res := &settled{payment: pay, inv: inv}
	if inv.Outstanding().IsPositive() {
		if err := inv.Transition(investment.StatusPartiallyPaid, now); err != nil {
			return nil, err
		}
	} else {
		if err := inv.Transition(investment.StatusCompleted, now); err != nil {
			return nil, err
		}
		confirmed := now
		inv.PaymentConfirmedAt = &confirmed
		res.completed = true

		entry, err := tx.GetQueueEntryForUpdate(ctx, inv.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			if err := tx.DeleteQueueEntry(ctx, entry.ID); err != nil {
				return nil, err
			}
		}

		open, err := tx.ListPendingPairingsForUpdate(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range open {
			p.PaymentStatus = pairing.PaymentPaid
			p.PaidAt = &confirmed
			if err := tx.UpdatePairing(ctx, p); err != nil {
				return nil, err
			}
		}
		res.closed = len(open)
	}

	if err := tx.UpdateInvestment(ctx, inv); err != nil {
		return nil, err
	}
	if err := tx.CreatePayment(ctx, pay); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) announcePayment(ctx context.Context, s *settled) {
	e.logger.Info("payment recorded",
		"payment_id", s.payment.ID.String(),
		"investment_id", s.inv.ID.String(),
		"amount", s.payment.Amount.Amount,
		"outstanding", s.inv.Outstanding().Amount,
		"completed", s.completed,
		"pairings_closed", s.closed,
	)

	e.plugins.EmitPaymentRecorded(ctx, s.payment, s.inv)
	if s.completed {
		e.plugins.EmitInvestmentCompleted(ctx, s.inv)
	}

	details := map[string]any{
		"payment_id":      s.payment.ID.String(),
		"amount":          s.payment.Amount.Amount,
		"currency":        s.payment.Amount.Currency,
		"outstanding":     s.inv.Outstanding().Amount,
		"transaction_ref": s.inv.TransactionRef,
		"completed":       s.completed,
	}
	if s.pairing != nil {
		details["pairing_id"] = s.pairing.ID.String()
		details["pairing_status"] = string(s.pairing.PaymentStatus)
	}
	e.notify(ctx, notify.Event{
		Kind:         notify.KindPaymentReceived,
		InvestorID:   s.inv.InvestorID,
		InvestmentID: s.inv.ID,
		Details:      details,
	})
}
