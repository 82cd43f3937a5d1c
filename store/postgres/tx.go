package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	payoutstore "github.com/xraph/payout/store"
)

// matchingLockKey is the pg_advisory_xact_lock key shared by every process
// that matches, settles or fails pairings.
const matchingLockKey int64 = 0x7061796f7574 // "payout"

type tx struct {
	tx pgx.Tx
}

func (x *tx) AcquireMatchingLock(ctx context.Context) error {
	_, err := x.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, matchingLockKey)
	return mapError(err)
}

// exec runs a single-row write and reports ErrNotFound when nothing matched.
func (x *tx) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := x.tx.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return payoutstore.ErrNotFound
	}
	return nil
}

// ==================== Investors ====================

func (x *tx) GetInvestor(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	return x.investor(ctx, investorID, "")
}

func (x *tx) GetInvestorForUpdate(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	return x.investor(ctx, investorID, " FOR UPDATE")
}

func (x *tx) investor(ctx context.Context, investorID id.InvestorID, lock string) (*investor.Investor, error) {
	m, err := scanRow[investorModel](x.tx.QueryRow(ctx,
		`SELECT `+investorColumns+` FROM payout_investors WHERE id = $1`+lock, investorID.String()))
	if err != nil {
		return nil, notFound(mapError(err))
	}
	return fromInvestorModel(m)
}

func (x *tx) UpdateInvestor(ctx context.Context, inv *investor.Investor) error {
	m := toInvestorModel(inv)
	return x.exec(ctx, `
UPDATE payout_investors SET
    name = $2, email = $3, referred_by = $4, bonus_balance = $5, currency = $6, metadata = $7, updated_at = $8
WHERE id = $1`,
		m.ID, m.Name, m.Email, m.ReferredBy, m.BonusBalance, m.Currency, m.Metadata, m.UpdatedAt)
}

// ==================== Investments ====================

func (x *tx) CreateInvestment(ctx context.Context, inv *investment.Investment) error {
	m := toInvestmentModel(inv)
	_, err := x.tx.Exec(ctx, `INSERT INTO payout_investments (`+investmentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		m.ID, m.InvestorID, m.Currency, m.Amount, m.MaturityDays, m.MaturesAt, m.ReturnAmount,
		m.ReferralBonusUsed, m.AmountMatched, m.AmountPaid, m.Status, m.FundedAt, m.MaturedAt, m.LastPaymentAt,
		m.PaymentConfirmedAt, m.TransactionRef, m.Metadata, m.CreatedAt, m.UpdatedAt)
	return mapError(err)
}

func (x *tx) GetInvestmentForUpdate(ctx context.Context, investmentID id.InvestmentID) (*investment.Investment, error) {
	m, err := scanRow[investmentModel](x.tx.QueryRow(ctx,
		`SELECT `+investmentColumns+` FROM payout_investments WHERE id = $1 FOR UPDATE`, investmentID.String()))
	if err != nil {
		return nil, notFound(mapError(err))
	}
	return fromInvestmentModel(m)
}

func (x *tx) UpdateInvestment(ctx context.Context, inv *investment.Investment) error {
	m := toInvestmentModel(inv)
	return x.exec(ctx, `
UPDATE payout_investments SET
    return_amount = $2, referral_bonus_used = $3, amount_matched = $4, amount_paid = $5, status = $6,
    funded_at = $7, matured_at = $8, last_payment_at = $9, payment_confirmed_at = $10,
    transaction_ref = $11, metadata = $12, updated_at = $13
WHERE id = $1`,
		m.ID, m.ReturnAmount, m.ReferralBonusUsed, m.AmountMatched, m.AmountPaid, m.Status,
		m.FundedAt, m.MaturedAt, m.LastPaymentAt, m.PaymentConfirmedAt,
		m.TransactionRef, m.Metadata, m.UpdatedAt)
}

// ==================== Queue ====================

func (x *tx) EnqueueEntry(ctx context.Context, e *queue.Entry) error {
	err := x.tx.QueryRow(ctx, `
INSERT INTO payout_queue (id, investment_id, investor_id, currency, amount_remaining, enqueued_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING seq`,
		e.ID.String(), e.InvestmentID.String(), e.InvestorID.String(), e.AmountRemaining.Currency,
		e.AmountRemaining.Amount, e.EnqueuedAt, e.UpdatedAt,
	).Scan(&e.Seq)
	return mapError(err)
}

func (x *tx) LockQueueHead(ctx context.Context, exclude id.InvestorID) (*queue.Entry, error) {
	m, err := scanRow[queueEntryModel](x.tx.QueryRow(ctx, `
SELECT `+queueColumns+` FROM payout_queue
WHERE ($1::TEXT = '' OR investor_id <> $1::TEXT)
ORDER BY enqueued_at ASC, seq ASC
LIMIT 1
FOR UPDATE`, exclude.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, payoutstore.ErrQueueEmpty
		}
		return nil, mapError(err)
	}
	return fromQueueEntryModel(m)
}

func (x *tx) GetQueueEntryForUpdate(ctx context.Context, investmentID id.InvestmentID) (*queue.Entry, error) {
	m, err := scanRow[queueEntryModel](x.tx.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM payout_queue WHERE investment_id = $1 FOR UPDATE`, investmentID.String()))
	if err != nil {
		return nil, notFound(mapError(err))
	}
	return fromQueueEntryModel(m)
}

func (x *tx) UpdateQueueEntry(ctx context.Context, e *queue.Entry) error {
	return x.exec(ctx,
		`UPDATE payout_queue SET amount_remaining = $2, enqueued_at = $3, updated_at = $4 WHERE id = $1`,
		e.ID.String(), e.AmountRemaining.Amount, e.EnqueuedAt, e.UpdatedAt)
}

func (x *tx) DeleteQueueEntry(ctx context.Context, entryID id.QueueEntryID) error {
	return x.exec(ctx, `DELETE FROM payout_queue WHERE id = $1`, entryID.String())
}

// ==================== Pairings ====================

func (x *tx) CreatePairing(ctx context.Context, p *pairing.Pairing) error {
	m := toPairingModel(p)
	_, err := x.tx.Exec(ctx, `INSERT INTO payout_pairings (`+pairingColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.MaturedInvestmentID, m.MaturedInvestorID, m.NewInvestmentID, m.NewInvestorID,
		m.QueueEntryID, m.Currency, m.AmountMatched, m.PairedAt, m.DueAt, m.PaymentStatus, m.PaidAt, m.FailedAt, m.ReminderSentAt)
	return mapError(err)
}

func (x *tx) GetPairingForUpdate(ctx context.Context, pairingID id.PairingID) (*pairing.Pairing, error) {
	m, err := scanRow[pairingModel](x.tx.QueryRow(ctx,
		`SELECT `+pairingColumns+` FROM payout_pairings WHERE id = $1 FOR UPDATE`, pairingID.String()))
	if err != nil {
		return nil, notFound(mapError(err))
	}
	return fromPairingModel(m)
}

func (x *tx) UpdatePairing(ctx context.Context, p *pairing.Pairing) error {
	return x.exec(ctx, `
UPDATE payout_pairings SET payment_status = $2, paid_at = $3, failed_at = $4, reminder_sent_at = $5
WHERE id = $1`,
		p.ID.String(), string(p.PaymentStatus), p.PaidAt, p.FailedAt, p.ReminderSentAt)
}

func (x *tx) ListPendingPairingsForUpdate(ctx context.Context, investmentID id.InvestmentID) ([]*pairing.Pairing, error) {
	rows, err := x.tx.Query(ctx, `
SELECT `+pairingColumns+` FROM payout_pairings
WHERE matured_investment_id = $1 AND payment_status = $2
ORDER BY paired_at ASC, id ASC
FOR UPDATE`, investmentID.String(), string(pairing.PaymentPending))
	if err != nil {
		return nil, mapError(err)
	}
	pairings, err := collect[pairingModel](rows, fromPairingModel)
	if err != nil {
		return nil, fmt.Errorf("payout/postgres: pending pairings: %w", mapError(err))
	}
	return pairings, nil
}

// ==================== Referrals ====================

func (x *tx) CreateReferral(ctx context.Context, r *referral.Record) error {
	_, err := x.tx.Exec(ctx, `INSERT INTO payout_referrals (`+referralColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID.String(), r.ReferrerID.String(), r.ReferredID.String(), r.InvestmentID.String(), r.Level,
		r.BonusEarned.Currency, r.AmountInvested.Amount, r.BonusEarned.Amount, string(r.Status),
		r.UsedAt, r.SplitFrom.String(), r.CreatedAt, r.UpdatedAt)
	return mapError(err)
}

func (x *tx) ListPendingReferralsForUpdate(ctx context.Context, referrerID id.InvestorID) ([]*referral.Record, error) {
	rows, err := x.tx.Query(ctx, `
SELECT `+referralColumns+` FROM payout_referrals
WHERE referrer_id = $1 AND status = $2
ORDER BY created_at ASC, id ASC
FOR UPDATE`, referrerID.String(), string(referral.StatusPending))
	if err != nil {
		return nil, mapError(err)
	}
	records, err := collect[referralModel](rows, fromReferralModel)
	if err != nil {
		return nil, fmt.Errorf("payout/postgres: pending referrals: %w", mapError(err))
	}
	return records, nil
}

func (x *tx) UpdateReferral(ctx context.Context, r *referral.Record) error {
	return x.exec(ctx, `
UPDATE payout_referrals SET
    amount_invested = $2, bonus_earned = $3, status = $4, used_at = $5, updated_at = $6
WHERE id = $1`,
		r.ID.String(), r.AmountInvested.Amount, r.BonusEarned.Amount, string(r.Status), r.UsedAt, r.UpdatedAt)
}

// ==================== Payments ====================

func (x *tx) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := x.tx.Exec(ctx, `
INSERT INTO payout_payments (id, pairing_id, investment_id, from_investor_id, to_investor_id, currency,
    amount, reference, method, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID.String(), p.PairingID.String(), p.InvestmentID.String(), p.FromInvestorID.String(), p.ToInvestorID.String(),
		p.Amount.Currency, p.Amount.Amount, p.Reference, string(p.Method), p.Notes, p.CreatedAt, p.UpdatedAt)
	return mapError(err)
}

func (x *tx) SumPairingPayments(ctx context.Context, pairingID id.PairingID) (int64, error) {
	var sum int64
	err := x.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::BIGINT FROM payout_payments WHERE pairing_id = $1`,
		pairingID.String()).Scan(&sum)
	return sum, mapError(err)
}
