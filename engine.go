package payout

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/plugin"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/store"
)

// Engine is the payout matching engine.
type Engine struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	notifier   notify.Notifier
	dispatcher *notify.Dispatcher
	referrals  *referral.Processor
	clock      func() time.Time

	config      Config
	skipMigrate bool
	loc         *time.Location
	windows     []span
	windowErr   error
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		notifier: notify.Nop,
		clock:    time.Now,
		config:   DefaultConfig(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.plugins.WithTimeout(e.config.PluginTimeout)
	e.referrals = referral.NewProcessor(e.config.BonusRate, e.config.MaxReferralDepth)
	e.dispatcher = notify.NewDispatcher(e.notifier,
		notify.WithLogger(e.logger),
		notify.WithTimeout(e.config.NotifyTimeout),
		notify.WithBufferSize(max(e.config.NotifyBuffer, 1)),
	)

	e.windows, e.windowErr = compileWindows(e.config.BiddingWindows)
	loc, err := time.LoadLocation(e.config.Timezone)
	if err != nil {
		e.logger.Warn("payout: unknown timezone, bidding windows use UTC",
			"timezone", e.config.Timezone,
			"error", err,
		)
		loc = time.UTC
	}
	e.loc = loc

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithBonusRate sets the referral bonus rate.
func WithBonusRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		e.config.BonusRate = rate
	}
}

// WithDailyInterestRate sets the daily interest rate.
func WithDailyInterestRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		e.config.DailyInterestRate = rate
	}
}

// WithGraceWindow sets how long a pairing may stay unpaid.
func WithGraceWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.config.GraceWindow = d
	}
}

// WithBiddingWindows replaces the bidding windows. Calling it with no
// windows keeps matching always open.
func WithBiddingWindows(windows ...Window) Option {
	return func(e *Engine) {
		e.config.BiddingWindows = windows
	}
}

// WithRequeueOverdue enables re-queueing the unpaid part of failed pairings.
func WithRequeueOverdue(enabled bool) Option {
	return func(e *Engine) {
		e.config.RequeueOverdue = enabled
	}
}

// WithoutMigrate makes Start skip store migration.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start validates the configuration, migrates the store unless
// WithoutMigrate was given, and starts the notification worker.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.config.Validate(); err != nil {
		return err
	}

	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)
	e.dispatcher.Start()

	e.logger.Info("payout started",
		"currency", e.config.Currency,
		"bonus_rate", e.config.BonusRate.String(),
		"daily_interest_rate", e.config.DailyInterestRate.String(),
		"grace_window", e.config.GraceWindow,
		"bidding_windows", len(e.config.BiddingWindows),
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop drains pending notifications and closes the store.
func (e *Engine) Stop() error {
	e.dispatcher.Stop()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// notify hands evt to the dispatcher. Delivery problems are logged there.
func (e *Engine) notify(ctx context.Context, evt notify.Event) {
	_ = e.dispatcher.Send(ctx, evt) //nolint:errcheck // best-effort notification
}
