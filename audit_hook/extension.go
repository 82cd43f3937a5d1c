// Package audithook bridges payout lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/plugin"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnInvestorRegistered  = (*Extension)(nil)
	_ plugin.OnInvestmentCreated   = (*Extension)(nil)
	_ plugin.OnInvestmentMatured   = (*Extension)(nil)
	_ plugin.OnInvestmentCompleted = (*Extension)(nil)
	_ plugin.OnPairingCreated      = (*Extension)(nil)
	_ plugin.OnPairingFailed       = (*Extension)(nil)
	_ plugin.OnPaymentRecorded     = (*Extension)(nil)
	_ plugin.OnReferralBonus       = (*Extension)(nil)
	_ plugin.OnCascadeFailed       = (*Extension)(nil)
	_ plugin.OnPassCompleted       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges payout lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Investor and investment hooks
// ──────────────────────────────────────────────────

// OnInvestorRegistered implements plugin.OnInvestorRegistered.
func (e *Extension) OnInvestorRegistered(ctx context.Context, inv *investor.Investor) error {
	return e.record(ctx, ActionInvestorRegistered, SeverityInfo, OutcomeSuccess,
		ResourceInvestor, inv.ID.String(), CategoryInvestment, nil,
		"referral_code", inv.ReferralCode,
		"referred_by", inv.ReferredBy.String(),
	)
}

// OnInvestmentCreated implements plugin.OnInvestmentCreated.
func (e *Extension) OnInvestmentCreated(ctx context.Context, inv *investment.Investment) error {
	return e.record(ctx, ActionInvestmentCreated, SeverityInfo, OutcomeSuccess,
		ResourceInvestment, inv.ID.String(), CategoryInvestment, nil,
		"investor_id", inv.InvestorID.String(),
		"amount", inv.Amount.Amount,
		"currency", inv.Amount.Currency,
		"return_amount", inv.ReturnAmount.Amount,
		"bonus_used", inv.ReferralBonusUsed.Amount,
		"maturity_days", inv.MaturityDays,
	)
}

// OnInvestmentMatured implements plugin.OnInvestmentMatured.
func (e *Extension) OnInvestmentMatured(ctx context.Context, inv *investment.Investment, entry *queue.Entry) error {
	return e.record(ctx, ActionInvestmentMatured, SeverityInfo, OutcomeSuccess,
		ResourceInvestment, inv.ID.String(), CategoryInvestment, nil,
		"queue_entry_id", entry.ID.String(),
		"amount_due", entry.AmountRemaining.Amount,
	)
}

// OnInvestmentCompleted implements plugin.OnInvestmentCompleted.
func (e *Extension) OnInvestmentCompleted(ctx context.Context, inv *investment.Investment) error {
	return e.record(ctx, ActionInvestmentCompleted, SeverityInfo, OutcomeSuccess,
		ResourceInvestment, inv.ID.String(), CategorySettlement, nil,
		"amount_paid", inv.AmountPaid.Amount,
		"transaction_ref", inv.TransactionRef,
	)
}

// ──────────────────────────────────────────────────
// Matching and settlement hooks
// ──────────────────────────────────────────────────

// OnPairingCreated implements plugin.OnPairingCreated.
func (e *Extension) OnPairingCreated(ctx context.Context, p *pairing.Pairing) error {
	return e.record(ctx, ActionPairingCreated, SeverityInfo, OutcomeSuccess,
		ResourcePairing, p.ID.String(), CategoryMatching, nil,
		"matured_investment_id", p.MaturedInvestmentID.String(),
		"new_investment_id", p.NewInvestmentID.String(),
		"amount", p.AmountMatched.Amount,
		"due_at", p.DueAt,
	)
}

// OnPairingFailed implements plugin.OnPairingFailed.
func (e *Extension) OnPairingFailed(ctx context.Context, p *pairing.Pairing) error {
	return e.record(ctx, ActionPairingFailed, SeverityWarning, OutcomeFailure,
		ResourcePairing, p.ID.String(), CategorySettlement, nil,
		"new_investor_id", p.NewInvestorID.String(),
		"amount", p.AmountMatched.Amount,
		"due_at", p.DueAt,
	)
}

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, p *payment.Payment, inv *investment.Investment) error {
	outcome := OutcomePartial
	if inv.Status == investment.StatusCompleted {
		outcome = OutcomeSuccess
	}
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, outcome,
		ResourcePayment, p.ID.String(), CategorySettlement, nil,
		"investment_id", inv.ID.String(),
		"pairing_id", p.PairingID.String(),
		"amount", p.Amount.Amount,
		"outstanding", inv.Outstanding().Amount,
		"reference", p.Reference,
	)
}

// ──────────────────────────────────────────────────
// Referral hooks
// ──────────────────────────────────────────────────

// OnReferralBonus implements plugin.OnReferralBonus.
func (e *Extension) OnReferralBonus(ctx context.Context, rec *referral.Record) error {
	return e.record(ctx, ActionReferralBonus, SeverityInfo, OutcomeSuccess,
		ResourceReferral, rec.ID.String(), CategoryReferral, nil,
		"referrer_id", rec.ReferrerID.String(),
		"referred_id", rec.ReferredID.String(),
		"level", rec.Level,
		"bonus", rec.BonusEarned.Amount,
	)
}

// OnCascadeFailed implements plugin.OnCascadeFailed.
func (e *Extension) OnCascadeFailed(ctx context.Context, investmentID id.InvestmentID, cause error) error {
	return e.record(ctx, ActionCascadeFailed, SeverityError, OutcomeFailure,
		ResourceInvestment, investmentID.String(), CategoryReferral, cause,
	)
}

// OnPassCompleted implements plugin.OnPassCompleted.
func (e *Extension) OnPassCompleted(ctx context.Context, pass string, summary any, elapsed time.Duration) error {
	return e.record(ctx, ActionPassCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePass, pass, CategoryOperations, nil,
		"summary", summary,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
