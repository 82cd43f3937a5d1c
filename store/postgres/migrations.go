package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the payout store.
var Migrations = migrate.NewGroup("payout")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_payout_investors",
			Version: "20240301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payout_investors (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL DEFAULT '',
    referral_code TEXT NOT NULL,
    referred_by   TEXT NOT NULL DEFAULT '',
    bonus_balance BIGINT NOT NULL DEFAULT 0 CHECK (bonus_balance >= 0),
    currency      TEXT NOT NULL DEFAULT '',
    metadata      JSONB NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payout_investors_referral_code ON payout_investors (referral_code);
CREATE INDEX IF NOT EXISTS idx_payout_investors_referred_by ON payout_investors (referred_by);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payout_investors`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_payout_investments",
			Version: "20240301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payout_investments (
    id                   TEXT PRIMARY KEY,
    investor_id          TEXT NOT NULL REFERENCES payout_investors (id),
    currency             TEXT NOT NULL,
    amount               BIGINT NOT NULL CHECK (amount > 0),
    maturity_days        INT NOT NULL CHECK (maturity_days > 0),
    matures_at           TIMESTAMPTZ NOT NULL,
    return_amount        BIGINT NOT NULL,
    referral_bonus_used  BIGINT NOT NULL DEFAULT 0,
    amount_matched       BIGINT NOT NULL DEFAULT 0 CHECK (amount_matched >= 0 AND amount_matched <= amount),
    amount_paid          BIGINT NOT NULL DEFAULT 0 CHECK (amount_paid >= 0 AND amount_paid <= return_amount),
    status               TEXT NOT NULL DEFAULT 'pending',
    funded_at            TIMESTAMPTZ,
    matured_at           TIMESTAMPTZ,
    last_payment_at      TIMESTAMPTZ,
    payment_confirmed_at TIMESTAMPTZ,
    transaction_ref      TEXT NOT NULL DEFAULT '',
    metadata             JSONB NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_payout_investments_investor ON payout_investments (investor_id, created_at);
CREATE INDEX IF NOT EXISTS idx_payout_investments_status ON payout_investments (status, matures_at);
CREATE INDEX IF NOT EXISTS idx_payout_investments_demand ON payout_investments (created_at) WHERE matured_at IS NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payout_investments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_payout_queue",
			Version: "20240301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payout_queue (
    id               TEXT PRIMARY KEY,
    investment_id    TEXT NOT NULL REFERENCES payout_investments (id),
    investor_id      TEXT NOT NULL,
    currency         TEXT NOT NULL,
    amount_remaining BIGINT NOT NULL CHECK (amount_remaining > 0),
    enqueued_at      TIMESTAMPTZ NOT NULL,
    seq              BIGSERIAL NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payout_queue_investment ON payout_queue (investment_id);
CREATE INDEX IF NOT EXISTS idx_payout_queue_order ON payout_queue (enqueued_at, seq);
CREATE INDEX IF NOT EXISTS idx_payout_queue_investor ON payout_queue (investor_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payout_queue`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_payout_pairings",
			Version: "20240301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payout_pairings (
    id                    TEXT PRIMARY KEY,
    matured_investment_id TEXT NOT NULL REFERENCES payout_investments (id),
    matured_investor_id   TEXT NOT NULL,
    new_investment_id     TEXT NOT NULL REFERENCES payout_investments (id),
    new_investor_id       TEXT NOT NULL,
    queue_entry_id        TEXT NOT NULL DEFAULT '',
    currency              TEXT NOT NULL,
    amount_matched        BIGINT NOT NULL CHECK (amount_matched > 0),
    paired_at             TIMESTAMPTZ NOT NULL,
    due_at                TIMESTAMPTZ NOT NULL,
    payment_status        TEXT NOT NULL DEFAULT 'pending',
    paid_at               TIMESTAMPTZ,
    failed_at             TIMESTAMPTZ,
    reminder_sent_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_payout_pairings_matured ON payout_pairings (matured_investment_id);
CREATE INDEX IF NOT EXISTS idx_payout_pairings_new ON payout_pairings (new_investment_id);
CREATE INDEX IF NOT EXISTS idx_payout_pairings_due ON payout_pairings (payment_status, due_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payout_pairings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_payout_referrals",
			Version: "20240301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payout_referrals (
    id              TEXT PRIMARY KEY,
    referrer_id     TEXT NOT NULL REFERENCES payout_investors (id),
    referred_id     TEXT NOT NULL REFERENCES payout_investors (id),
    investment_id   TEXT NOT NULL REFERENCES payout_investments (id),
    level           INT NOT NULL CHECK (level > 0),
    currency        TEXT NOT NULL,
    amount_invested BIGINT NOT NULL DEFAULT 0,
    bonus_earned    BIGINT NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'pending',
    used_at         TIMESTAMPTZ,
    split_from      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_payout_referrals_referrer ON payout_referrals (referrer_id, status, created_at);
CREATE INDEX IF NOT EXISTS idx_payout_referrals_referred ON payout_referrals (referred_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payout_referrals`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_payout_payments",
			Version: "20240301000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payout_payments (
    id               TEXT PRIMARY KEY,
    pairing_id       TEXT NOT NULL DEFAULT '',
    investment_id    TEXT NOT NULL REFERENCES payout_investments (id),
    from_investor_id TEXT NOT NULL DEFAULT '',
    to_investor_id   TEXT NOT NULL DEFAULT '',
    currency         TEXT NOT NULL,
    amount           BIGINT NOT NULL CHECK (amount > 0),
    reference        TEXT NOT NULL DEFAULT '',
    method           TEXT NOT NULL DEFAULT 'manual',
    notes            TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_payout_payments_investment ON payout_payments (investment_id, created_at);
CREATE INDEX IF NOT EXISTS idx_payout_payments_pairing ON payout_payments (pairing_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payout_payments`)
				return err
			},
		},
	)
}
