package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/payout"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/queue"
)

const testConfig = `
payout:
  currency: kes
  daily_interest_rate: "0.02"
  always_open: true
  grace_window: 24h
`

// alice matures at +168h with a 1140.00 return; bob's investment is paired
// against it by the cycle that runs before bob pays.
const testScenario = `
start: "2024-03-01T09:00:00Z"
investors:
  - key: alice
    name: Alice
    email: alice@example.com
  - key: bob
    name: Bob
    email: bob@example.com
    referred_by: alice
investments:
  - key: a1
    investor: alice
    amount: "1000.00"
    days: 7
  - key: b1
    investor: bob
    amount: "1140.00"
    days: 7
    after: 169h
payments:
  - payer: b1
    reference: MPESA-001
    after: 170h
`

func writeFiles(t *testing.T, config, scenario string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "payout.yaml")
	scPath := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(config), 0o600))
	require.NoError(t, os.WriteFile(scPath, []byte(scenario), 0o600))
	return cfgPath, scPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	cfgPath, _ := writeFiles(t, testConfig, "")

	out, err := run(t, "validate", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "Configuration OK")
	require.Contains(t, out, "always open")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfgPath, _ := writeFiles(t, `
payout:
  bonus_rate: "-0.1"
  min_investment: 500
  max_investment: 100
`, "")

	_, err := run(t, "validate", "--config", cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bonus_rate")
	require.Contains(t, err.Error(), "min_investment")
}

func TestScenarioSettlesPairing(t *testing.T) {
	cfgPath, scPath := writeFiles(t, testConfig, testScenario)

	out, err := run(t, "stats", "--json", "--config", cfgPath, "--scenario", scPath)
	require.NoError(t, err)

	var stats payout.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, int64(2), stats.Investments)
	require.Equal(t, int64(1), stats.ByStatus[investment.StatusCompleted])
	require.Equal(t, int64(214000), stats.TotalInvested.Amount)
	require.Equal(t, int64(114000), stats.TotalReturned.Amount)
	require.Zero(t, stats.OpenPairings)
	require.Zero(t, stats.Queue.Entries)
}

func TestMatureAtLaterClock(t *testing.T) {
	cfgPath, scPath := writeFiles(t, testConfig, testScenario)
	args := []string{"--json", "--config", cfgPath, "--scenario", scPath, "--at", "2024-03-15T11:00:00Z"}

	// b1 was created at +169h and matures a week later with 1299.60 due.
	out, err := run(t, append([]string{"mature"}, args...)...)
	require.NoError(t, err)

	var summary payout.MaturitySummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, 1, summary.Matured)
	require.Equal(t, int64(129960), summary.AmountEnqueued.Amount)

	out, err = run(t, append([]string{"queue"}, args...)...)
	require.NoError(t, err)
	var entries []*queue.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Empty(t, entries, "queue is a read-only report and runs no pass")
}

func TestAtBeforeScenarioEnd(t *testing.T) {
	cfgPath, scPath := writeFiles(t, testConfig, testScenario)

	_, err := run(t, "cycle", "--config", cfgPath, "--scenario", scPath, "--at", "2024-03-01T10:00:00Z")
	require.ErrorContains(t, err, "before the last scenario step")
}

func TestUnknownInvestor(t *testing.T) {
	cfgPath, scPath := writeFiles(t, testConfig, testScenario)

	_, err := run(t, "investor", "carol", "--config", cfgPath, "--scenario", scPath)
	require.ErrorContains(t, err, "unknown investor")
}
