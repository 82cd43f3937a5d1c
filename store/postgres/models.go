package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xraph/grove"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/types"
)

// ==================== Investor models ====================

type investorModel struct {
	grove.BaseModel `grove:"table:payout_investors"`

	ID           string            `grove:"id,pk"`
	Name         string            `grove:"name"`
	Email        string            `grove:"email"`
	ReferralCode string            `grove:"referral_code"`
	ReferredBy   string            `grove:"referred_by"`
	BonusBalance int64             `grove:"bonus_balance"`
	Currency     string            `grove:"currency"`
	Metadata     map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt    time.Time         `grove:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"`
}

const investorColumns = `id, name, email, referral_code, referred_by, bonus_balance, currency, metadata, created_at, updated_at`

func (m *investorModel) fields() []any {
	return []any{&m.ID, &m.Name, &m.Email, &m.ReferralCode, &m.ReferredBy, &m.BonusBalance, &m.Currency, &m.Metadata, &m.CreatedAt, &m.UpdatedAt}
}

func toInvestorModel(i *investor.Investor) *investorModel {
	return &investorModel{
		ID:           i.ID.String(),
		Name:         i.Name,
		Email:        i.Email,
		ReferralCode: i.ReferralCode,
		ReferredBy:   i.ReferredBy.String(),
		BonusBalance: i.BonusBalance.Amount,
		Currency:     i.BonusBalance.Currency,
		Metadata:     metadata(i.Metadata),
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

func fromInvestorModel(m *investorModel) (*investor.Investor, error) {
	ivrID, err := id.ParseInvestorID(m.ID)
	if err != nil {
		return nil, err
	}
	referredBy, err := optionalID(m.ReferredBy)
	if err != nil {
		return nil, err
	}
	return &investor.Investor{
		Entity:       types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:           ivrID,
		Name:         m.Name,
		Email:        m.Email,
		ReferralCode: m.ReferralCode,
		ReferredBy:   referredBy,
		BonusBalance: types.New(m.BonusBalance, m.Currency),
		Metadata:     m.Metadata,
	}, nil
}

// ==================== Investment models ====================

type investmentModel struct {
	grove.BaseModel `grove:"table:payout_investments"`

	ID                 string            `grove:"id,pk"`
	InvestorID         string            `grove:"investor_id"`
	Currency           string            `grove:"currency"`
	Amount             int64             `grove:"amount"`
	MaturityDays       int               `grove:"maturity_days"`
	MaturesAt          time.Time         `grove:"matures_at"`
	ReturnAmount       int64             `grove:"return_amount"`
	ReferralBonusUsed  int64             `grove:"referral_bonus_used"`
	AmountMatched      int64             `grove:"amount_matched"`
	AmountPaid         int64             `grove:"amount_paid"`
	Status             string            `grove:"status"`
	FundedAt           *time.Time        `grove:"funded_at"`
	MaturedAt          *time.Time        `grove:"matured_at"`
	LastPaymentAt      *time.Time        `grove:"last_payment_at"`
	PaymentConfirmedAt *time.Time        `grove:"payment_confirmed_at"`
	TransactionRef     string            `grove:"transaction_ref"`
	Metadata           map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
}

const investmentColumns = `id, investor_id, currency, amount, maturity_days, matures_at, return_amount,
	referral_bonus_used, amount_matched, amount_paid, status, funded_at, matured_at, last_payment_at,
	payment_confirmed_at, transaction_ref, metadata, created_at, updated_at`

func (m *investmentModel) fields() []any {
	return []any{
		&m.ID, &m.InvestorID, &m.Currency, &m.Amount, &m.MaturityDays, &m.MaturesAt, &m.ReturnAmount,
		&m.ReferralBonusUsed, &m.AmountMatched, &m.AmountPaid, &m.Status, &m.FundedAt, &m.MaturedAt, &m.LastPaymentAt,
		&m.PaymentConfirmedAt, &m.TransactionRef, &m.Metadata, &m.CreatedAt, &m.UpdatedAt,
	}
}

func toInvestmentModel(i *investment.Investment) *investmentModel {
	return &investmentModel{
		ID:                 i.ID.String(),
		InvestorID:         i.InvestorID.String(),
		Currency:           i.Amount.Currency,
		Amount:             i.Amount.Amount,
		MaturityDays:       i.MaturityDays,
		MaturesAt:          i.MaturesAt,
		ReturnAmount:       i.ReturnAmount.Amount,
		ReferralBonusUsed:  i.ReferralBonusUsed.Amount,
		AmountMatched:      i.AmountMatched.Amount,
		AmountPaid:         i.AmountPaid.Amount,
		Status:             string(i.Status),
		FundedAt:           i.FundedAt,
		MaturedAt:          i.MaturedAt,
		LastPaymentAt:      i.LastPaymentAt,
		PaymentConfirmedAt: i.PaymentConfirmedAt,
		TransactionRef:     i.TransactionRef,
		Metadata:           metadata(i.Metadata),
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
}

func fromInvestmentModel(m *investmentModel) (*investment.Investment, error) {
	ivtID, err := id.ParseInvestmentID(m.ID)
	if err != nil {
		return nil, err
	}
	ivrID, err := id.ParseInvestorID(m.InvestorID)
	if err != nil {
		return nil, err
	}
	return &investment.Investment{
		Entity:             types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:                 ivtID,
		InvestorID:         ivrID,
		Amount:             types.New(m.Amount, m.Currency),
		MaturityDays:       m.MaturityDays,
		MaturesAt:          m.MaturesAt.UTC(),
		ReturnAmount:       types.New(m.ReturnAmount, m.Currency),
		ReferralBonusUsed:  types.New(m.ReferralBonusUsed, m.Currency),
		AmountMatched:      types.New(m.AmountMatched, m.Currency),
		AmountPaid:         types.New(m.AmountPaid, m.Currency),
		Status:             investment.Status(m.Status),
		FundedAt:           utc(m.FundedAt),
		MaturedAt:          utc(m.MaturedAt),
		LastPaymentAt:      utc(m.LastPaymentAt),
		PaymentConfirmedAt: utc(m.PaymentConfirmedAt),
		TransactionRef:     m.TransactionRef,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Queue models ====================

type queueEntryModel struct {
	grove.BaseModel `grove:"table:payout_queue"`

	ID              string    `grove:"id,pk"`
	InvestmentID    string    `grove:"investment_id"`
	InvestorID      string    `grove:"investor_id"`
	Currency        string    `grove:"currency"`
	AmountRemaining int64     `grove:"amount_remaining"`
	EnqueuedAt      time.Time `grove:"enqueued_at"`
	Seq             int64     `grove:"seq"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

const queueColumns = `id, investment_id, investor_id, currency, amount_remaining, enqueued_at, seq, updated_at`

func (m *queueEntryModel) fields() []any {
	return []any{&m.ID, &m.InvestmentID, &m.InvestorID, &m.Currency, &m.AmountRemaining, &m.EnqueuedAt, &m.Seq, &m.UpdatedAt}
}

func fromQueueEntryModel(m *queueEntryModel) (*queue.Entry, error) {
	qenID, err := id.ParseQueueEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	ivtID, err := id.ParseInvestmentID(m.InvestmentID)
	if err != nil {
		return nil, err
	}
	ivrID, err := id.ParseInvestorID(m.InvestorID)
	if err != nil {
		return nil, err
	}
	return &queue.Entry{
		ID:              qenID,
		InvestmentID:    ivtID,
		InvestorID:      ivrID,
		AmountRemaining: types.New(m.AmountRemaining, m.Currency),
		EnqueuedAt:      m.EnqueuedAt.UTC(),
		Seq:             m.Seq,
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}

// ==================== Pairing models ====================

type pairingModel struct {
	grove.BaseModel `grove:"table:payout_pairings"`

	ID                  string     `grove:"id,pk"`
	MaturedInvestmentID string     `grove:"matured_investment_id"`
	MaturedInvestorID   string     `grove:"matured_investor_id"`
	NewInvestmentID     string     `grove:"new_investment_id"`
	NewInvestorID       string     `grove:"new_investor_id"`
	QueueEntryID        string     `grove:"queue_entry_id"`
	Currency            string     `grove:"currency"`
	AmountMatched       int64      `grove:"amount_matched"`
	PairedAt            time.Time  `grove:"paired_at"`
	DueAt               time.Time  `grove:"due_at"`
	PaymentStatus       string     `grove:"payment_status"`
	PaidAt              *time.Time `grove:"paid_at"`
	FailedAt            *time.Time `grove:"failed_at"`
	ReminderSentAt      *time.Time `grove:"reminder_sent_at"`
}

const pairingColumns = `id, matured_investment_id, matured_investor_id, new_investment_id, new_investor_id,
	queue_entry_id, currency, amount_matched, paired_at, due_at, payment_status, paid_at, failed_at, reminder_sent_at`

func (m *pairingModel) fields() []any {
	return []any{
		&m.ID, &m.MaturedInvestmentID, &m.MaturedInvestorID, &m.NewInvestmentID, &m.NewInvestorID,
		&m.QueueEntryID, &m.Currency, &m.AmountMatched, &m.PairedAt, &m.DueAt, &m.PaymentStatus, &m.PaidAt, &m.FailedAt, &m.ReminderSentAt,
	}
}

func toPairingModel(p *pairing.Pairing) *pairingModel {
	return &pairingModel{
		ID:                  p.ID.String(),
		MaturedInvestmentID: p.MaturedInvestmentID.String(),
		MaturedInvestorID:   p.MaturedInvestorID.String(),
		NewInvestmentID:     p.NewInvestmentID.String(),
		NewInvestorID:       p.NewInvestorID.String(),
		QueueEntryID:        p.QueueEntryID.String(),
		Currency:            p.AmountMatched.Currency,
		AmountMatched:       p.AmountMatched.Amount,
		PairedAt:            p.PairedAt,
		DueAt:               p.DueAt,
		PaymentStatus:       string(p.PaymentStatus),
		PaidAt:              p.PaidAt,
		FailedAt:            p.FailedAt,
		ReminderSentAt:      p.ReminderSentAt,
	}
}

func fromPairingModel(m *pairingModel) (*pairing.Pairing, error) {
	ids := make([]id.ID, 5)
	for i, raw := range []string{m.ID, m.MaturedInvestmentID, m.MaturedInvestorID, m.NewInvestmentID, m.NewInvestorID} {
		parsed, err := id.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids[i] = parsed
	}
	entryID, err := optionalID(m.QueueEntryID)
	if err != nil {
		return nil, err
	}
	return &pairing.Pairing{
		ID:                  ids[0],
		MaturedInvestmentID: ids[1],
		MaturedInvestorID:   ids[2],
		NewInvestmentID:     ids[3],
		NewInvestorID:       ids[4],
		QueueEntryID:        entryID,
		AmountMatched:       types.New(m.AmountMatched, m.Currency),
		PairedAt:            m.PairedAt.UTC(),
		DueAt:               m.DueAt.UTC(),
		PaymentStatus:       pairing.PaymentStatus(m.PaymentStatus),
		PaidAt:              utc(m.PaidAt),
		FailedAt:            utc(m.FailedAt),
		ReminderSentAt:      utc(m.ReminderSentAt),
	}, nil
}

// ==================== Referral models ====================

type referralModel struct {
	grove.BaseModel `grove:"table:payout_referrals"`

	ID             string     `grove:"id,pk"`
	ReferrerID     string     `grove:"referrer_id"`
	ReferredID     string     `grove:"referred_id"`
	InvestmentID   string     `grove:"investment_id"`
	Level          int        `grove:"level"`
	Currency       string     `grove:"currency"`
	AmountInvested int64      `grove:"amount_invested"`
	BonusEarned    int64      `grove:"bonus_earned"`
	Status         string     `grove:"status"`
	UsedAt         *time.Time `grove:"used_at"`
	SplitFrom      string     `grove:"split_from"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

const referralColumns = `id, referrer_id, referred_id, investment_id, level, currency, amount_invested,
	bonus_earned, status, used_at, split_from, created_at, updated_at`

func (m *referralModel) fields() []any {
	return []any{
		&m.ID, &m.ReferrerID, &m.ReferredID, &m.InvestmentID, &m.Level, &m.Currency, &m.AmountInvested,
		&m.BonusEarned, &m.Status, &m.UsedAt, &m.SplitFrom, &m.CreatedAt, &m.UpdatedAt,
	}
}

func fromReferralModel(m *referralModel) (*referral.Record, error) {
	ids := make([]id.ID, 4)
	for i, raw := range []string{m.ID, m.ReferrerID, m.ReferredID, m.InvestmentID} {
		parsed, err := id.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids[i] = parsed
	}
	splitFrom, err := optionalID(m.SplitFrom)
	if err != nil {
		return nil, err
	}
	return &referral.Record{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             ids[0],
		ReferrerID:     ids[1],
		ReferredID:     ids[2],
		InvestmentID:   ids[3],
		Level:          m.Level,
		AmountInvested: types.New(m.AmountInvested, m.Currency),
		BonusEarned:    types.New(m.BonusEarned, m.Currency),
		Status:         referral.Status(m.Status),
		UsedAt:         utc(m.UsedAt),
		SplitFrom:      splitFrom,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:payout_payments"`

	ID             string    `grove:"id,pk"`
	PairingID      string    `grove:"pairing_id"`
	InvestmentID   string    `grove:"investment_id"`
	FromInvestorID string    `grove:"from_investor_id"`
	ToInvestorID   string    `grove:"to_investor_id"`
	Currency       string    `grove:"currency"`
	Amount         int64     `grove:"amount"`
	Reference      string    `grove:"reference"`
	Method         string    `grove:"method"`
	Notes          string    `grove:"notes"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	ivtID, err := id.ParseInvestmentID(m.InvestmentID)
	if err != nil {
		return nil, err
	}
	optional := make([]id.ID, 3)
	for i, raw := range []string{m.PairingID, m.FromInvestorID, m.ToInvestorID} {
		if optional[i], err = optionalID(raw); err != nil {
			return nil, err
		}
	}
	return &payment.Payment{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             payID,
		PairingID:      optional[0],
		InvestmentID:   ivtID,
		FromInvestorID: optional[1],
		ToInvestorID:   optional[2],
		Amount:         types.New(m.Amount, m.Currency),
		Reference:      m.Reference,
		Method:         payment.Method(m.Method),
		Notes:          m.Notes,
	}, nil
}

// ==================== Helpers ====================

// optionalID parses an ID column that stores the empty string for Nil.
func optionalID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}

func metadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// scanRow scans one row into a model exposing its column targets.
func scanRow[M any, PM interface {
	*M
	fields() []any
}](row pgx.Row) (*M, error) {
	m := PM(new(M))
	if err := row.Scan(m.fields()...); err != nil {
		return nil, err
	}
	return (*M)(m), nil
}

// collect scans every row into a model and converts it.
func collect[M any, PM interface {
	*M
	fields() []any
}, T any](rows pgx.Rows, convert func(*M) (*T, error)) ([]*T, error) {
	defer rows.Close()

	result := make([]*T, 0)
	for rows.Next() {
		m, err := scanRow[M, PM](rows)
		if err != nil {
			return nil, err
		}
		item, err := convert(m)
		if err != nil {
			return nil, fmt.Errorf("payout/postgres: decode row: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
