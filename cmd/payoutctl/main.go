// Command payoutctl replays a payout scenario against an in-memory engine
// and runs the scheduled passes or reports on demand.
//
// A scenario file lists investors, investments and payments with the time
// each one happens. payoutctl applies them in time order, running a full
// cycle at every step, then sets the clock to --at and runs the requested
// command. This makes it possible to check a configuration (rates, bidding
// windows, grace window) before it goes live.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "payoutctl",
		Short:         "Run payout engine passes and reports against a scenario",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "engine config file (yaml, json or toml)")
	flags.StringVarP(&opts.scenarioFile, "scenario", "s", "", "scenario file to replay")
	flags.StringVar(&opts.at, "at", "", "clock for the command (RFC 3339, default: last scenario event)")
	flags.BoolVarP(&opts.jsonOut, "json", "j", false, "output as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity and notifications to stderr")

	rootCmd.AddCommand(
		validateCmd(opts),
		passCmd(opts, "mature", "Move investments past their holding period onto the queue", runMature),
		passCmd(opts, "match", "Fund pending investments from the payout queue", runMatch),
		passCmd(opts, "remind", "Send reminders for pairings close to their deadline", runRemind),
		passCmd(opts, "overdue", "Fail pairings whose payment deadline has passed", runOverdue),
		passCmd(opts, "cycle", "Run every scheduled pass once", runCycle),
		statsCmd(opts),
		queueCmd(opts),
		investorCmd(opts),
		pairingsCmd(opts),
	)

	return rootCmd
}
