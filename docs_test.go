package payout_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/payout"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/store/memory"
	"github.com/xraph/payout/types"
)

// TestDocumentationExamples verifies that the package documentation examples compile and run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		eng := payout.New(store,
			payout.WithLogger(slog.Default()),
			payout.WithNotifier(notify.LogNotifier{}),
		)

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop()

		alice, err := eng.RegisterInvestor(ctx, payout.Registration{Name: "Alice", Email: "alice@example.com"})
		if err != nil {
			t.Fatal(err)
		}

		// Bob signs up with Alice's referral code
		bob, err := eng.RegisterInvestor(ctx, payout.Registration{
			Name:         "Bob",
			Email:        "bob@example.com",
			ReferralCode: alice.ReferralCode,
		})
		if err != nil {
			t.Fatal(err)
		}

		inv, err := eng.CreateInvestment(ctx, bob.ID, payout.KES(100000), 7)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Investment %s returns %s\n", inv.ID, inv.ReturnAmount)

		// Batch triggers, normally run on a schedule
		if _, err := eng.RunMaturityDetection(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := eng.RunMatchingPass(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := eng.RunOverdueCheck(ctx); err != nil {
			t.Fatal(err)
		}

		summary, err := eng.InvestorSummary(ctx, alice.ID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Alice referral balance: %s\n", summary.ReferralBalance)
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.KES(100000) // KSh 1000.00
		_ = types.USD(4900)   // $49.00
		_ = types.Zero("kes") // KSh 0.00

		// Arithmetic
		m1 := types.KES(100)
		m2 := types.KES(200)
		_ = m1.Add(m2)     // KSh 3.00
		_ = m1.Multiply(3) // KSh 3.00
		_ = m2.Scale(1, 3) // KSh 0.67

		// Comparison
		if !m1.LessThan(m2) {
			t.Error("expected m1 < m2")
		}

		// Parsing major units
		m, err := payout.ParseMoney("1140.50", "kes")
		if err != nil {
			t.Fatal(err)
		}
		if m.Amount != 114050 {
			t.Errorf("ParseMoney = %d, want 114050", m.Amount)
		}
	})
}
