package mongo

import (
	"time"

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
	grove.BaseModel `grove:"table:payout_investors" bson:"-"`

	ID           string            `grove:"id,pk"         bson:"_id"`
	Name         string            `grove:"name"          bson:"name"`
	Email        string            `grove:"email"         bson:"email"`
	ReferralCode string            `grove:"referral_code" bson:"referral_code"`
	ReferredBy   string            `grove:"referred_by"   bson:"referred_by"`
	BonusBalance int64             `grove:"bonus_balance" bson:"bonus_balance"`
	Currency     string            `grove:"currency"      bson:"currency"`
	Metadata     map[string]string `grove:"metadata"      bson:"metadata,omitempty"`
	CreatedAt    time.Time         `grove:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"    bson:"updated_at"`
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
		Metadata:     i.Metadata,
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
	grove.BaseModel `grove:"table:payout_investments" bson:"-"`

	ID                 string            `grove:"id,pk"                bson:"_id"`
	InvestorID         string            `grove:"investor_id"          bson:"investor_id"`
	Currency           string            `grove:"currency"             bson:"currency"`
	Amount             int64             `grove:"amount"               bson:"amount"`
	MaturityDays       int               `grove:"maturity_days"        bson:"maturity_days"`
	MaturesAt          time.Time         `grove:"matures_at"           bson:"matures_at"`
	ReturnAmount       int64             `grove:"return_amount"        bson:"return_amount"`
	ReferralBonusUsed  int64             `grove:"referral_bonus_used"  bson:"referral_bonus_used"`
	AmountMatched      int64             `grove:"amount_matched"       bson:"amount_matched"`
	AmountPaid         int64             `grove:"amount_paid"          bson:"amount_paid"`
	Status             string            `grove:"status"               bson:"status"`
	FundedAt           *time.Time        `grove:"funded_at"            bson:"funded_at"`
	MaturedAt          *time.Time        `grove:"matured_at"           bson:"matured_at"`
	LastPaymentAt      *time.Time        `grove:"last_payment_at"      bson:"last_payment_at"`
	PaymentConfirmedAt *time.Time        `grove:"payment_confirmed_at" bson:"payment_confirmed_at"`
	TransactionRef     string            `grove:"transaction_ref"      bson:"transaction_ref"`
	Metadata           map[string]string `grove:"metadata"             bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"           bson:"updated_at"`
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
		Metadata:           i.Metadata,
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
	grove.BaseModel `grove:"table:payout_queue" bson:"-"`

	ID              string    `grove:"id,pk"            bson:"_id"`
	InvestmentID    string    `grove:"investment_id"    bson:"investment_id"`
	InvestorID      string    `grove:"investor_id"      bson:"investor_id"`
	Currency        string    `grove:"currency"         bson:"currency"`
	AmountRemaining int64     `grove:"amount_remaining" bson:"amount_remaining"`
	EnqueuedAt      time.Time `grove:"enqueued_at"      bson:"enqueued_at"`
	Seq             int64     `grove:"seq"              bson:"seq"`
	UpdatedAt       time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toQueueEntryModel(e *queue.Entry) *queueEntryModel {
	return &queueEntryModel{
		ID:              e.ID.String(),
		InvestmentID:    e.InvestmentID.String(),
		InvestorID:      e.InvestorID.String(),
		Currency:        e.AmountRemaining.Currency,
		AmountRemaining: e.AmountRemaining.Amount,
		EnqueuedAt:      e.EnqueuedAt,
		Seq:             e.Seq,
		UpdatedAt:       e.UpdatedAt,
	}
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
	grove.BaseModel `grove:"table:payout_pairings" bson:"-"`

	ID                  string     `grove:"id,pk"                 bson:"_id"`
	MaturedInvestmentID string     `grove:"matured_investment_id" bson:"matured_investment_id"`
	MaturedInvestorID   string     `grove:"matured_investor_id"   bson:"matured_investor_id"`
	NewInvestmentID     string     `grove:"new_investment_id"     bson:"new_investment_id"`
	NewInvestorID       string     `grove:"new_investor_id"       bson:"new_investor_id"`
	QueueEntryID        string     `grove:"queue_entry_id"        bson:"queue_entry_id"`
	Currency            string     `grove:"currency"              bson:"currency"`
	AmountMatched       int64      `grove:"amount_matched"        bson:"amount_matched"`
	PairedAt            time.Time  `grove:"paired_at"             bson:"paired_at"`
	DueAt               time.Time  `grove:"due_at"                bson:"due_at"`
	PaymentStatus       string     `grove:"payment_status"        bson:"payment_status"`
	PaidAt              *time.Time `grove:"paid_at"               bson:"paid_at"`
	FailedAt            *time.Time `grove:"failed_at"             bson:"failed_at"`
	ReminderSentAt      *time.Time `grove:"reminder_sent_at"      bson:"reminder_sent_at"`
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
	pairID, err := id.ParsePairingID(m.ID)
	if err != nil {
		return nil, err
	}
	refs := make([]id.ID, 4)
	for i, raw := range []string{m.MaturedInvestmentID, m.MaturedInvestorID, m.NewInvestmentID, m.NewInvestorID} {
		if refs[i], err = id.Parse(raw); err != nil {
			return nil, err
		}
	}
	entryID, err := optionalID(m.QueueEntryID)
	if err != nil {
		return nil, err
	}
	return &pairing.Pairing{
		ID:                  pairID,
		MaturedInvestmentID: refs[0],
		MaturedInvestorID:   refs[1],
		NewInvestmentID:     refs[2],
		NewInvestorID:       refs[3],
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
	grove.BaseModel `grove:"table:payout_referrals" bson:"-"`

	ID             string     `grove:"id,pk"           bson:"_id"`
	ReferrerID     string     `grove:"referrer_id"     bson:"referrer_id"`
	ReferredID     string     `grove:"referred_id"     bson:"referred_id"`
	InvestmentID   string     `grove:"investment_id"   bson:"investment_id"`
	Level          int        `grove:"level"           bson:"level"`
	Currency       string     `grove:"currency"        bson:"currency"`
	AmountInvested int64      `grove:"amount_invested" bson:"amount_invested"`
	BonusEarned    int64      `grove:"bonus_earned"    bson:"bonus_earned"`
	Status         string     `grove:"status"          bson:"status"`
	UsedAt         *time.Time `grove:"used_at"         bson:"used_at"`
	SplitFrom      string     `grove:"split_from"      bson:"split_from"`
	CreatedAt      time.Time  `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"      bson:"updated_at"`
}

func toReferralModel(r *referral.Record) *referralModel {
	return &referralModel{
		ID:             r.ID.String(),
		ReferrerID:     r.ReferrerID.String(),
		ReferredID:     r.ReferredID.String(),
		InvestmentID:   r.InvestmentID.String(),
		Level:          r.Level,
		Currency:       r.BonusEarned.Currency,
		AmountInvested: r.AmountInvested.Amount,
		BonusEarned:    r.BonusEarned.Amount,
		Status:         string(r.Status),
		UsedAt:         r.UsedAt,
		SplitFrom:      r.SplitFrom.String(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromReferralModel(m *referralModel) (*referral.Record, error) {
	refID, err := id.ParseReferralID(m.ID)
	if err != nil {
		return nil, err
	}
	refs := make([]id.ID, 3)
	for i, raw := range []string{m.ReferrerID, m.ReferredID, m.InvestmentID} {
		if refs[i], err = id.Parse(raw); err != nil {
			return nil, err
		}
	}
	splitFrom, err := optionalID(m.SplitFrom)
	if err != nil {
		return nil, err
	}
	return &referral.Record{
		Entity:         types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:             refID,
		ReferrerID:     refs[0],
		ReferredID:     refs[1],
		InvestmentID:   refs[2],
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
	grove.BaseModel `grove:"table:payout_payments" bson:"-"`

	ID             string    `grove:"id,pk"            bson:"_id"`
	PairingID      string    `grove:"pairing_id"       bson:"pairing_id"`
	InvestmentID   string    `grove:"investment_id"    bson:"investment_id"`
	FromInvestorID string    `grove:"from_investor_id" bson:"from_investor_id"`
	ToInvestorID   string    `grove:"to_investor_id"   bson:"to_investor_id"`
	Currency       string    `grove:"currency"         bson:"currency"`
	Amount         int64     `grove:"amount"           bson:"amount"`
	Reference      string    `grove:"reference"        bson:"reference"`
	Method         string    `grove:"method"           bson:"method"`
	Notes          string    `grove:"notes"            bson:"notes"`
	CreatedAt      time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:             p.ID.String(),
		PairingID:      p.PairingID.String(),
		InvestmentID:   p.InvestmentID.String(),
		FromInvestorID: p.FromInvestorID.String(),
		ToInvestorID:   p.ToInvestorID.String(),
		Currency:       p.Amount.Currency,
		Amount:         p.Amount.Amount,
		Reference:      p.Reference,
		Method:         string(p.Method),
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
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

func optionalID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
