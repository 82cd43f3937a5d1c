// Package plugin provides an extensible plugin system for payout.
// Plugins hook into investment, matching and settlement events. Every hook
// fires after the transaction that produced the event has committed.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Investor and investment hooks
// ──────────────────────────────────────────────────

// OnInvestorRegistered is called when a new investor is registered.
type OnInvestorRegistered interface {
	Plugin
	OnInvestorRegistered(ctx context.Context, inv *investor.Investor) error
}

// OnInvestmentCreated is called when an investment is placed.
type OnInvestmentCreated interface {
	Plugin
	OnInvestmentCreated(ctx context.Context, inv *investment.Investment) error
}

// OnInvestmentMatured is called when an investment matures and joins the
// payout queue.
type OnInvestmentMatured interface {
	Plugin
	OnInvestmentMatured(ctx context.Context, inv *investment.Investment, entry *queue.Entry) error
}

// OnInvestmentCompleted is called when an investment has been repaid in full.
type OnInvestmentCompleted interface {
	Plugin
	OnInvestmentCompleted(ctx context.Context, inv *investment.Investment) error
}

// ──────────────────────────────────────────────────
// Matching and settlement hooks
// ──────────────────────────────────────────────────

// OnPairingCreated is called for every pairing a matching pass commits.
type OnPairingCreated interface {
	Plugin
	OnPairingCreated(ctx context.Context, p *pairing.Pairing) error
}

// OnPaymentRecorded is called after a payment is applied to an investment.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, p *payment.Payment, inv *investment.Investment) error
}

// OnPairingFailed is called when a pairing passes its due time unpaid.
type OnPairingFailed interface {
	Plugin
	OnPairingFailed(ctx context.Context, p *pairing.Pairing) error
}

// ──────────────────────────────────────────────────
// Referral hooks
// ──────────────────────────────────────────────────

// OnReferralBonus is called once per ancestor credited by a cascade.
type OnReferralBonus interface {
	Plugin
	OnReferralBonus(ctx context.Context, rec *referral.Record) error
}

// OnCascadeFailed is called when a referral cascade rolls back.
type OnCascadeFailed interface {
	Plugin
	OnCascadeFailed(ctx context.Context, investmentID id.InvestmentID, cause error) error
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnPassCompleted is called when a batch trigger (maturity, matching,
// overdue, reminders) finishes. summary is the trigger's summary struct.
type OnPassCompleted interface {
	Plugin
	OnPassCompleted(ctx context.Context, pass string, summary any, elapsed time.Duration) error
}
