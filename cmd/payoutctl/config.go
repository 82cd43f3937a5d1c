package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/xraph/payout"
	"github.com/xraph/payout/extension"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configFile   string
	scenarioFile string
	at           string
	jsonOut      bool
	verbose      bool
}

// configKeys are tried in order; the first one present in the file wins.
// A file with neither key is read from its top level.
var configKeys = []string{"extensions.payout", "payout"}

// loadConfig reads the engine configuration from path and the PAYOUT_*
// environment. An empty path yields the defaults plus the environment.
func loadConfig(path string) (payout.Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return payout.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	sub := v
	for _, key := range configKeys {
		if v.IsSet(key) {
			sub = v.Sub(key)
			break
		}
	}

	// Scalar settings can be overridden from the environment.
	for _, key := range []string{
		"currency", "bonus_rate", "daily_interest_rate", "max_referral_depth",
		"grace_window", "reminder_lead", "always_open", "timezone",
		"min_investment", "max_investment", "requeue_overdue",
		"funded_maturity_only", "allow_self_pairing",
	} {
		if err := sub.BindEnv(key, "PAYOUT_"+strings.ToUpper(key)); err != nil {
			return payout.Config{}, err
		}
	}

	var cfg extension.Config
	if err := sub.Unmarshal(&cfg); err != nil {
		return payout.Config{}, fmt.Errorf("%w: decode config: %w", payout.ErrInvalidConfig, err)
	}
	return cfg.EngineConfig()
}

// describeConfigError flattens a validation MultiError into one line per
// problem.
func describeConfigError(err error) string {
	var multi payout.MultiError
	if !errors.As(err, &multi) {
		return err.Error()
	}
	lines := make([]string, 0, len(multi.Errors))
	for _, e := range multi.Errors {
		lines = append(lines, "  - "+e.Error())
	}
	return "invalid configuration:\n" + strings.Join(lines, "\n")
}
