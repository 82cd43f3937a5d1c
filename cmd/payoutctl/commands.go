package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/payout"
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/queue"
)

// passFunc runs one engine pass and returns its summary.
type passFunc func(ctx context.Context, e *payout.Engine) (any, error)

func runMature(ctx context.Context, e *payout.Engine) (any, error) {
	return e.RunMaturityDetection(ctx)
}

func runMatch(ctx context.Context, e *payout.Engine) (any, error) {
	return e.RunMatchingPass(ctx)
}

func runRemind(ctx context.Context, e *payout.Engine) (any, error) {
	return e.RunPaymentReminders(ctx)
}

func runOverdue(ctx context.Context, e *payout.Engine) (any, error) {
	return e.RunOverdueCheck(ctx)
}

func runCycle(ctx context.Context, e *payout.Engine) (any, error) {
	return e.RunCycle(ctx)
}

// withSession loads the config and scenario, replays it and moves the
// clock to --at before calling fn.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("%s", describeConfigError(err))
	}
	sc, err := loadScenario(opts.scenarioFile)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg, sc, newLogger(cmd.ErrOrStderr(), opts.verbose))
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	if opts.at != "" {
		at, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		if at.Before(s.last()) {
			return fmt.Errorf("--at %s is before the last scenario step %s", opts.at, s.last().Format(time.RFC3339))
		}
		s.clock.now = at
	}

	return fn(ctx, s)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func validateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the engine configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return fmt.Errorf("%s", describeConfigError(err))
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Configuration OK")
			fmt.Fprintln(w, strings.Repeat("=", 40))
			fmt.Fprintf(w, "  Currency:        %s\n", cfg.Currency)
			fmt.Fprintf(w, "  Bonus rate:      %s\n", cfg.BonusRate)
			fmt.Fprintf(w, "  Daily interest:  %s\n", cfg.DailyInterestRate)
			fmt.Fprintf(w, "  Referral depth:  %d\n", cfg.MaxReferralDepth)
			fmt.Fprintf(w, "  Grace window:    %s\n", cfg.GraceWindow)
			fmt.Fprintf(w, "  Reminder lead:   %s\n", cfg.ReminderLead)
			if len(cfg.BiddingWindows) == 0 {
				fmt.Fprintln(w, "  Bidding:         always open")
			} else {
				windows := make([]string, 0, len(cfg.BiddingWindows))
				for _, win := range cfg.BiddingWindows {
					windows = append(windows, win.String())
				}
				fmt.Fprintf(w, "  Bidding:         %s (%s)\n", strings.Join(windows, ", "), cfg.Timezone)
			}
			fmt.Fprintf(w, "  Requeue overdue: %t\n", cfg.RequeueOverdue)
			return nil
		},
	}
}

func passCmd(opts *rootOptions, use, short string, run passFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				summary, err := run(ctx, s.engine)
				if err != nil {
					return err
				}
				// Summaries are flat structs, so JSON doubles as the text form.
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), summary)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s at %s\n", use, s.clock.now.Format(time.RFC3339))
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}

func statsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show scheme-wide totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				stats, err := s.engine.Statistics(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), stats)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintln(w, "Payout Statistics")
				fmt.Fprintln(w, strings.Repeat("=", 40))
				fmt.Fprintf(w, "  Investments:      %d\n", stats.Investments)
				for _, st := range sortedStatuses(stats.ByStatus) {
					fmt.Fprintf(w, "    %-18s %d\n", string(st)+":", stats.ByStatus[st])
				}
				fmt.Fprintf(w, "  Total invested:   %s\n", stats.TotalInvested)
				fmt.Fprintf(w, "  Total returned:   %s\n", stats.TotalReturned)
				fmt.Fprintf(w, "  Pending payments: %s\n", stats.PendingPayments)
				fmt.Fprintf(w, "  Open pairings:    %d\n", stats.OpenPairings)
				fmt.Fprintf(w, "  Failed pairings:  %d\n", stats.FailedPairings)
				fmt.Fprintf(w, "  Queue:            %d entries, %s\n", stats.Queue.Entries, stats.Queue.Remaining)
				return nil
			})
		},
	}
}

func queueCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List the payout queue in service order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				entries, err := s.engine.ListQueue(ctx, queue.ListOpts{Limit: limit})
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), entries)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "POS\tINVESTMENT\tINVESTOR\tREMAINING\tENQUEUED")
				for i, e := range entries {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1,
						s.investmentKey(e.InvestmentID), s.investorKey(e.InvestorID),
						e.AmountRemaining, e.EnqueuedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries (0 for all)")
	return cmd
}

func investorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "investor [key]",
		Short: "Show the dashboard summary of one investor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				investorID, err := s.lookupInvestor(args[0])
				if err != nil {
					return err
				}
				sum, err := s.engine.InvestorSummary(ctx, investorID)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), sum)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Investor %s\n", args[0])
				fmt.Fprintln(w, strings.Repeat("=", 40))
				fmt.Fprintf(w, "  Active investments: %d\n", sum.ActiveInvestments)
				fmt.Fprintf(w, "  Total invested:     %s\n", sum.TotalInvested)
				fmt.Fprintf(w, "  Pending payments:   %s\n", sum.PendingPayments)
				fmt.Fprintf(w, "  Awaiting payout:    %s\n", sum.AwaitingPayout)
				fmt.Fprintf(w, "  Referral balance:   %s\n", sum.ReferralBalance)
				fmt.Fprintf(w, "  Pending referrals:  %d (%s)\n", sum.PendingReferralRecords, sum.PendingReferralEarnings)
				return nil
			})
		},
	}
}

func pairingsCmd(opts *rootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "List pairings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				pairings, err := s.engine.ListPairings(ctx, pairing.ListOpts{
					PaymentStatus: pairing.PaymentStatus(status),
				})
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), pairings)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PAYER\tPAYEE\tAMOUNT\tSTATUS\tDUE")
				for _, p := range pairings {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						s.investmentKey(p.NewInvestmentID), s.investmentKey(p.MaturedInvestmentID),
						p.AmountMatched, p.PaymentStatus, p.DueAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by payment status (pending, paid, failed)")
	return cmd
}

// lookupInvestor resolves a scenario key or an investor ID.
func (s *session) lookupInvestor(key string) (id.InvestorID, error) {
	if investorID, ok := s.investors[key]; ok {
		return investorID, nil
	}
	investorID, err := id.ParseInvestorID(key)
	if err != nil {
		return id.Nil, fmt.Errorf("unknown investor %q", key)
	}
	return investorID, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
