package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting an event only touches plugins
// that implement the hook.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onInvestorRegistered  []OnInvestorRegistered
	onInvestmentCreated   []OnInvestmentCreated
	onInvestmentMatured   []OnInvestmentMatured
	onInvestmentCompleted []OnInvestmentCompleted
	onPairingCreated      []OnPairingCreated
	onPaymentRecorded     []OnPaymentRecorded
	onPairingFailed       []OnPairingFailed
	onReferralBonus       []OnReferralBonus
	onCascadeFailed       []OnCascadeFailed
	onPassCompleted       []OnPassCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInvestorRegistered); ok {
		r.onInvestorRegistered = append(r.onInvestorRegistered, v)
	}
	if v, ok := p.(OnInvestmentCreated); ok {
		r.onInvestmentCreated = append(r.onInvestmentCreated, v)
	}
	if v, ok := p.(OnInvestmentMatured); ok {
		r.onInvestmentMatured = append(r.onInvestmentMatured, v)
	}
	if v, ok := p.(OnInvestmentCompleted); ok {
		r.onInvestmentCompleted = append(r.onInvestmentCompleted, v)
	}
	if v, ok := p.(OnPairingCreated); ok {
		r.onPairingCreated = append(r.onPairingCreated, v)
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
	}
	if v, ok := p.(OnPairingFailed); ok {
		r.onPairingFailed = append(r.onPairingFailed, v)
	}
	if v, ok := p.(OnReferralBonus); ok {
		r.onReferralBonus = append(r.onReferralBonus, v)
	}
	if v, ok := p.(OnCascadeFailed); ok {
		r.onCascadeFailed = append(r.onCascadeFailed, v)
	}
	if v, ok := p.(OnPassCompleted); ok {
		r.onPassCompleted = append(r.onPassCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnInvestorRegistered", reflect.TypeFor[OnInvestorRegistered]()},
	{"OnInvestmentCreated", reflect.TypeFor[OnInvestmentCreated]()},
	{"OnInvestmentMatured", reflect.TypeFor[OnInvestmentMatured]()},
	{"OnInvestmentCompleted", reflect.TypeFor[OnInvestmentCompleted]()},
	{"OnPairingCreated", reflect.TypeFor[OnPairingCreated]()},
	{"OnPaymentRecorded", reflect.TypeFor[OnPaymentRecorded]()},
	{"OnPairingFailed", reflect.TypeFor[OnPairingFailed]()},
	{"OnReferralBonus", reflect.TypeFor[OnReferralBonus]()},
	{"OnCascadeFailed", reflect.TypeFor[OnCascadeFailed]()},
	{"OnPassCompleted", reflect.TypeFor[OnPassCompleted]()},
}

// implementedInterfaces returns the names of the hooks p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit snapshots a cached hook list and calls fn for each entry, logging
// failures. Hooks never fail the operation that triggered them.
func emit[T Plugin](r *Registry, ctx context.Context, hook string, list func(*Registry) []T, fn func(T) error) {
	r.mu.RLock()
	plugins := list(r)
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(r, ctx, "OnInit", func(r *Registry) []OnInit { return r.onInit },
		func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, ctx, "OnShutdown", func(r *Registry) []OnShutdown { return r.onShutdown },
		func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitInvestorRegistered emits an investor registered event.
func (r *Registry) EmitInvestorRegistered(ctx context.Context, inv *investor.Investor) {
	emit(r, ctx, "OnInvestorRegistered", func(r *Registry) []OnInvestorRegistered { return r.onInvestorRegistered },
		func(p OnInvestorRegistered) error { return p.OnInvestorRegistered(ctx, inv) })
}

// EmitInvestmentCreated emits an investment created event.
func (r *Registry) EmitInvestmentCreated(ctx context.Context, inv *investment.Investment) {
	emit(r, ctx, "OnInvestmentCreated", func(r *Registry) []OnInvestmentCreated { return r.onInvestmentCreated },
		func(p OnInvestmentCreated) error { return p.OnInvestmentCreated(ctx, inv) })
}

// EmitInvestmentMatured emits an investment matured event.
func (r *Registry) EmitInvestmentMatured(ctx context.Context, inv *investment.Investment, entry *queue.Entry) {
	emit(r, ctx, "OnInvestmentMatured", func(r *Registry) []OnInvestmentMatured { return r.onInvestmentMatured },
		func(p OnInvestmentMatured) error { return p.OnInvestmentMatured(ctx, inv, entry) })
}

// EmitInvestmentCompleted emits an investment completed event.
func (r *Registry) EmitInvestmentCompleted(ctx context.Context, inv *investment.Investment) {
	emit(r, ctx, "OnInvestmentCompleted", func(r *Registry) []OnInvestmentCompleted { return r.onInvestmentCompleted },
		func(p OnInvestmentCompleted) error { return p.OnInvestmentCompleted(ctx, inv) })
}

// EmitPairingCreated emits a pairing created event.
func (r *Registry) EmitPairingCreated(ctx context.Context, pr *pairing.Pairing) {
	emit(r, ctx, "OnPairingCreated", func(r *Registry) []OnPairingCreated { return r.onPairingCreated },
		func(p OnPairingCreated) error { return p.OnPairingCreated(ctx, pr) })
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, pay *payment.Payment, inv *investment.Investment) {
	emit(r, ctx, "OnPaymentRecorded", func(r *Registry) []OnPaymentRecorded { return r.onPaymentRecorded },
		func(p OnPaymentRecorded) error { return p.OnPaymentRecorded(ctx, pay, inv) })
}

// EmitPairingFailed emits a pairing failed event.
func (r *Registry) EmitPairingFailed(ctx context.Context, pr *pairing.Pairing) {
	emit(r, ctx, "OnPairingFailed", func(r *Registry) []OnPairingFailed { return r.onPairingFailed },
		func(p OnPairingFailed) error { return p.OnPairingFailed(ctx, pr) })
}

// EmitReferralBonus emits a referral bonus event.
func (r *Registry) EmitReferralBonus(ctx context.Context, rec *referral.Record) {
	emit(r, ctx, "OnReferralBonus", func(r *Registry) []OnReferralBonus { return r.onReferralBonus },
		func(p OnReferralBonus) error { return p.OnReferralBonus(ctx, rec) })
}

// EmitCascadeFailed emits a cascade failed event.
func (r *Registry) EmitCascadeFailed(ctx context.Context, investmentID id.InvestmentID, cause error) {
	emit(r, ctx, "OnCascadeFailed", func(r *Registry) []OnCascadeFailed { return r.onCascadeFailed },
		func(p OnCascadeFailed) error { return p.OnCascadeFailed(ctx, investmentID, cause) })
}

// EmitPassCompleted emits a batch pass completed event.
func (r *Registry) EmitPassCompleted(ctx context.Context, pass string, summary any, elapsed time.Duration) {
	emit(r, ctx, "OnPassCompleted", func(r *Registry) []OnPassCompleted { return r.onPassCompleted },
		func(p OnPassCompleted) error { return p.OnPassCompleted(ctx, pass, summary, elapsed) })
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payout pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
