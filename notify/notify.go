// Package notify defines the outbound notification contract of the payout
// engine and a fire-and-forget dispatcher for it.
//
// The engine never delivers messages itself. It hands Events to a Notifier
// after the transaction that produced them has committed; a failed or slow
// delivery never affects engine state.
package notify

import (
	"context"
	"log/slog"

	"github.com/xraph/payout/id"
)

// Kind names a notification.
type Kind string

const (
	KindMatured         Kind = "matured"
	KindPaired          Kind = "paired"
	KindPaymentReminder Kind = "payment_reminder"
	KindPairingFailed   Kind = "pairing_failed"
	KindReferralBonus   Kind = "referral_bonus"
	KindPaymentReceived Kind = "payment_received"
)

// Event is one message for one investor.
type Event struct {
	Kind         Kind           `json:"kind"`
	InvestorID   id.InvestorID  `json:"investor_id"`
	InvestmentID id.ID          `json:"investment_id"`
	Details      map[string]any `json:"details,omitempty"`
}

// Notifier delivers events. Implementations may block; the Dispatcher bounds
// each call with a timeout.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// NotifierFunc is an adapter to use a plain function as a Notifier.
type NotifierFunc func(ctx context.Context, evt Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(context.Context, Event) error { return nil })

// LogNotifier writes every event to a slog.Logger at Info.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, evt Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"kind", evt.Kind,
		"investor_id", evt.InvestorID.String(),
		"investment_id", evt.InvestmentID.String(),
		"details", evt.Details,
	)
	return nil
}

// Multi fans an event out to several notifiers and returns the first error.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, evt Event) error {
		var first error
		for _, n := range notifiers {
			if err := n.Notify(ctx, evt); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
