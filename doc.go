// Package payout is a maturity, queue and pairing engine for peer-funded
// investment schemes.
//
// New investments (demand) are funded by matching them against a FIFO queue
// of matured investments awaiting repayment (supply). Every match becomes a
// Pairing that the new investor settles by paying the matured investor
// directly. Referral bonuses cascade up the referrer chain when an investment
// is placed and are folded into the return of the referrer's next
// investment.
//
// payout is a library. Import it into your service, give it a store, and
// call the batch triggers on whatever schedule suits you:
//
//	import (
//	    "github.com/xraph/payout"
//	    "github.com/xraph/payout/store/memory"
//	)
//
//	eng := payout.New(memory.New(),
//	    payout.WithLogger(slog.Default()),
//	    payout.WithNotifier(myNotifier),
//	)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	inv, err := eng.CreateInvestment(ctx, investorID, payout.KES(100000), 7)
//
//	eng.RunMaturityDetection(ctx)
//	eng.RunMatchingPass(ctx)
//	eng.RunOverdueCheck(ctx)
//
// # Money
//
// All amounts are integer minor units (types.Money). Rates are
// shopspring/decimal values and products are rounded to the minor unit, so
// conservation checks are exact: the amount paired in a pass equals both the
// reduction in queued supply and the reduction in unmet demand.
//
// # Side effects
//
// Notifications, plugin hooks and the referral cascade run after the
// transaction that produced them commits. A failure in any of them is logged
// and never rolls back or fails the primary write.
//
// # Stores
//
// store/memory serves tests and single-process use. store/postgres (grove
// plus pgx) and store/mongo (grove plus the official driver) lock rows inside
// transactions so concurrent passes never double-spend a queue entry.
package payout
