package payout

import (
	"context"
)

// CycleSummary collects the summaries of one RunCycle.
type CycleSummary struct {
	Maturity  *MaturitySummary `json:"maturity"`
	Reminders *ReminderSummary `json:"reminders"`
	Overdue   *OverdueSummary  `json:"overdue"`
	Matching  *MatchingSummary `json:"matching"`
}

// RunCycle runs every scheduled pass once: maturity first so newly matured
// returns are on the queue, then reminders and the overdue check so failed
// remainders are requeued, and matching last. The first pass that fails
// stops the cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleSummary, error) {
	var (
		out CycleSummary
		err error
	)
	if out.Maturity, err = e.RunMaturityDetection(ctx); err != nil {
		return &out, err
	}
	if out.Reminders, err = e.RunPaymentReminders(ctx); err != nil {
		return &out, err
	}
	if out.Overdue, err = e.RunOverdueCheck(ctx); err != nil {
		return &out, err
	}
	if out.Matching, err = e.RunMatchingPass(ctx); err != nil {
		return &out, err
	}
	return &out, nil
}
