package extension

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/grove"

	"github.com/xraph/payout"
	audithook "github.com/xraph/payout/audit_hook"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/plugin"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/store/mongo"
	"github.com/xraph/payout/store/postgres"
)

// Option configures the payout Forge extension.
type Option func(*Extension)

// WithStore sets the store for the payout engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPostgres backs the engine with PostgreSQL. db serves reads and
// migrations, pool serves transactions.
func WithPostgres(db *grove.DB, pool *pgxpool.Pool) Option {
	return func(e *Extension) {
		e.store = postgres.New(db, pool)
	}
}

// WithMongo backs the engine with MongoDB. The deployment must be a
// replica set.
func WithMongo(db *grove.DB) Option {
	return func(e *Extension) {
		e.store = mongo.New(db)
	}
}

// WithEngineOption passes a payout.Option through to the underlying engine.
func WithEngineOption(opt payout.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a payout plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, payout.WithPlugin(p))
	}
}

// WithNotifier sets where investor notifications are delivered.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, payout.WithNotifier(n))
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, payout.WithLogger(logger))
	}
}

// WithMetrics registers lifecycle metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Extension) { e.registerer = reg }
}

// WithAuditRecorder records lifecycle events through r.
func WithAuditRecorder(r audithook.Recorder, opts ...audithook.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, payout.WithPlugin(audithook.New(r, opts...)))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGraceWindow sets how long a pairing may stay unpaid.
func WithGraceWindow(d time.Duration) Option {
	return func(e *Extension) { e.config.GraceWindow = d }
}

// WithBiddingWindows replaces the bidding windows. Calling it with no
// windows keeps matching always open.
func WithBiddingWindows(windows ...payout.Window) Option {
	return func(e *Extension) {
		e.config.BiddingWindows = windows
		e.config.AlwaysOpen = len(windows) == 0
	}
}

// WithRequeueOverdue enables re-queueing the unpaid part of failed pairings.
func WithRequeueOverdue(enabled bool) Option {
	return func(e *Extension) { e.config.RequeueOverdue = enabled }
}
