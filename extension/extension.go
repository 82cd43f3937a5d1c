// Package extension provides the Forge extension adapter for payout.
//
// It implements the forge.Extension interface to integrate the payout
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.payout" or "payout" keys.
package extension

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/payout"
	"github.com/xraph/payout/observability"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "payout"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Maturity queue and pairing engine for peer-funded payouts"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the payout engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *payout.Engine
	store      store.Store
	registerer prometheus.Registerer
	engineOpts []payout.Option
}

// New creates a new payout Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying payout engine.
// This is nil until Register is called.
func (e *Extension) Engine() *payout.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.Logger().Warn("payout: no store configured, using in-memory store")
		e.store = memory.New()
	}

	e.engine = payout.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*payout.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("payout: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("payout: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs payout.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]payout.Option, error) {
	cfg, err := e.config.EngineConfig()
	if err != nil {
		return nil, err
	}

	opts := make([]payout.Option, 0, len(e.engineOpts)+3)
	opts = append(opts, payout.WithConfig(cfg))
	if e.config.DisableMigrate {
		opts = append(opts, payout.WithoutMigrate())
	}
	if e.registerer != nil && !e.config.DisableMetrics {
		metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(e.registerer))
		opts = append(opts, payout.WithPlugin(metrics))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("payout: configuration is required but not found in config files; " +
				"ensure 'extensions.payout' or 'payout' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("payout: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("currency", e.config.Currency),
		forge.F("bonus_rate", e.config.BonusRate),
		forge.F("daily_interest_rate", e.config.DailyInterestRate),
		forge.F("grace_window", e.config.GraceWindow),
		forge.F("bidding_windows", len(e.config.BiddingWindows)),
		forge.F("always_open", e.config.AlwaysOpen),
		forge.F("requeue_overdue", e.config.RequeueOverdue),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.payout", "payout"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("payout: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("payout: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.BonusRate == "" {
		cfg.BonusRate = defaults.BonusRate
	}
	if cfg.DailyInterestRate == "" {
		cfg.DailyInterestRate = defaults.DailyInterestRate
	}
	if cfg.MaxReferralDepth == 0 {
		cfg.MaxReferralDepth = defaults.MaxReferralDepth
	}
	if cfg.GraceWindow == 0 {
		cfg.GraceWindow = defaults.GraceWindow
	}
	if cfg.ReminderLead == 0 {
		cfg.ReminderLead = defaults.ReminderLead
	}
	if len(cfg.BiddingWindows) == 0 && !cfg.AlwaysOpen {
		cfg.BiddingWindows = defaults.BiddingWindows
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaults.Timezone
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps
// and programmatic bool flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableMetrics {
		yamlConfig.DisableMetrics = true
	}
	if programmaticConfig.AlwaysOpen {
		yamlConfig.AlwaysOpen = true
	}
	if programmaticConfig.RequeueOverdue {
		yamlConfig.RequeueOverdue = true
	}
	if programmaticConfig.FundedMaturityOnly {
		yamlConfig.FundedMaturityOnly = true
	}
	if programmaticConfig.AllowSelfPairing {
		yamlConfig.AllowSelfPairing = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.BonusRate == "" {
		yamlConfig.BonusRate = programmaticConfig.BonusRate
	}
	if yamlConfig.DailyInterestRate == "" {
		yamlConfig.DailyInterestRate = programmaticConfig.DailyInterestRate
	}
	if yamlConfig.Timezone == "" {
		yamlConfig.Timezone = programmaticConfig.Timezone
	}

	// Duration/int/slice fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.MaxReferralDepth == 0 {
		yamlConfig.MaxReferralDepth = programmaticConfig.MaxReferralDepth
	}
	if yamlConfig.GraceWindow == 0 {
		yamlConfig.GraceWindow = programmaticConfig.GraceWindow
	}
	if yamlConfig.ReminderLead == 0 {
		yamlConfig.ReminderLead = programmaticConfig.ReminderLead
	}
	if len(yamlConfig.BiddingWindows) == 0 {
		yamlConfig.BiddingWindows = programmaticConfig.BiddingWindows
	}
	if yamlConfig.MinInvestment == 0 {
		yamlConfig.MinInvestment = programmaticConfig.MinInvestment
	}
	if yamlConfig.MaxInvestment == 0 {
		yamlConfig.MaxInvestment = programmaticConfig.MaxInvestment
	}
	if len(yamlConfig.MaturityDays) == 0 {
		yamlConfig.MaturityDays = programmaticConfig.MaturityDays
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
