// Package observability provides a metrics extension for payout that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/payout"
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/plugin"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnInvestorRegistered  = (*MetricsExtension)(nil)
	_ plugin.OnInvestmentCreated   = (*MetricsExtension)(nil)
	_ plugin.OnInvestmentMatured   = (*MetricsExtension)(nil)
	_ plugin.OnInvestmentCompleted = (*MetricsExtension)(nil)
	_ plugin.OnPairingCreated      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded     = (*MetricsExtension)(nil)
	_ plugin.OnPairingFailed       = (*MetricsExtension)(nil)
	_ plugin.OnReferralBonus       = (*MetricsExtension)(nil)
	_ plugin.OnCascadeFailed       = (*MetricsExtension)(nil)
	_ plugin.OnPassCompleted       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a payout plugin to track investment flow.
type MetricsExtension struct {
	factory MetricFactory

	// Investor and investment metrics
	InvestorRegistered  Counter
	InvestmentCreated   Counter
	InvestmentAmount    Histogram
	InvestmentMatured   Counter
	InvestmentCompleted Counter

	// Matching metrics
	PairingCreated   Counter
	PairingAmount    Histogram
	MatchingFailed   Counter
	MatchingSkipped  Counter
	DemandFunded     Counter
	DemandPartial    Counter
	MatchingDuration Histogram

	// Settlement metrics
	PaymentRecorded Counter
	PaymentAmount   Histogram
	PairingFailed   Counter

	// Referral metrics
	ReferralBonus  Counter
	BonusAmount    Histogram
	CascadeFailure Counter

	// Pass metrics
	PassLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		InvestorRegistered:  factory.Counter("payout.investor.registered"),
		InvestmentCreated:   factory.Counter("payout.investment.created"),
		InvestmentAmount:    factory.Histogram("payout.investment.amount"),
		InvestmentMatured:   factory.Counter("payout.investment.matured"),
		InvestmentCompleted: factory.Counter("payout.investment.completed"),

		PairingCreated:   factory.Counter("payout.pairing.created"),
		PairingAmount:    factory.Histogram("payout.pairing.amount"),
		MatchingFailed:   factory.Counter("payout.matching.failed"),
		MatchingSkipped:  factory.Counter("payout.matching.skipped"),
		DemandFunded:     factory.Counter("payout.matching.demand.funded"),
		DemandPartial:    factory.Counter("payout.matching.demand.partial"),
		MatchingDuration: factory.Histogram("payout.matching.latency_ms"),

		PaymentRecorded: factory.Counter("payout.payment.recorded"),
		PaymentAmount:   factory.Histogram("payout.payment.amount"),
		PairingFailed:   factory.Counter("payout.pairing.failed"),

		ReferralBonus:  factory.Counter("payout.referral.bonus"),
		BonusAmount:    factory.Histogram("payout.referral.bonus.amount"),
		CascadeFailure: factory.Counter("payout.referral.cascade.failed"),

		PassLatency: factory.Histogram("payout.pass.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Investor and investment hooks
// ──────────────────────────────────────────────────

// OnInvestorRegistered implements plugin.OnInvestorRegistered.
func (m *MetricsExtension) OnInvestorRegistered(_ context.Context, _ *investor.Investor) error {
	m.InvestorRegistered.Inc()
	return nil
}

// OnInvestmentCreated implements plugin.OnInvestmentCreated.
func (m *MetricsExtension) OnInvestmentCreated(_ context.Context, inv *investment.Investment) error {
	m.InvestmentCreated.Inc()
	m.InvestmentAmount.Observe(float64(inv.Amount.Amount))
	return nil
}

// OnInvestmentMatured implements plugin.OnInvestmentMatured.
func (m *MetricsExtension) OnInvestmentMatured(_ context.Context, _ *investment.Investment, _ *queue.Entry) error {
	m.InvestmentMatured.Inc()
	return nil
}

// OnInvestmentCompleted implements plugin.OnInvestmentCompleted.
func (m *MetricsExtension) OnInvestmentCompleted(_ context.Context, _ *investment.Investment) error {
	m.InvestmentCompleted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Matching and settlement hooks
// ──────────────────────────────────────────────────

// OnPairingCreated implements plugin.OnPairingCreated.
func (m *MetricsExtension) OnPairingCreated(_ context.Context, p *pairing.Pairing) error {
	m.PairingCreated.Inc()
	m.PairingAmount.Observe(float64(p.AmountMatched.Amount))
	return nil
}

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, p *payment.Payment, _ *investment.Investment) error {
	m.PaymentRecorded.Inc()
	m.PaymentAmount.Observe(float64(p.Amount.Amount))
	return nil
}

// OnPairingFailed implements plugin.OnPairingFailed.
func (m *MetricsExtension) OnPairingFailed(_ context.Context, _ *pairing.Pairing) error {
	m.PairingFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Referral hooks
// ──────────────────────────────────────────────────

// OnReferralBonus implements plugin.OnReferralBonus.
func (m *MetricsExtension) OnReferralBonus(_ context.Context, rec *referral.Record) error {
	m.ReferralBonus.Inc()
	m.BonusAmount.Observe(float64(rec.BonusEarned.Amount))
	return nil
}

// OnCascadeFailed implements plugin.OnCascadeFailed.
func (m *MetricsExtension) OnCascadeFailed(_ context.Context, _ id.InvestmentID, _ error) error {
	m.CascadeFailure.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnPassCompleted implements plugin.OnPassCompleted.
func (m *MetricsExtension) OnPassCompleted(_ context.Context, _ string, summary any, elapsed time.Duration) error {
	m.PassLatency.Observe(float64(elapsed.Milliseconds()))

	if s, ok := summary.(*payout.MatchingSummary); ok {
		m.MatchingDuration.Observe(float64(elapsed.Milliseconds()))
		if s.Skipped {
			m.MatchingSkipped.Inc()
			return nil
		}
		m.MatchingFailed.Add(float64(s.Failed))
		m.DemandFunded.Add(float64(s.DemandFunded))
		m.DemandPartial.Add(float64(s.DemandPartial))
	}
	return nil
}
