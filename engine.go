package consolelogin

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Engine is the composition root of the login core. It owns the country
// cache, the metrics set and the audit dispatcher, and creates one Flow per
// login attempt.
//
// Engine methods are safe to call from multiple goroutines after Build.
type Engine struct {
	config    Config
	api       SecurityAPI
	store     KeyValueStore
	tokens    TokenSaver
	countries *CountryCache
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *slog.Logger

	navigator Navigator
	notifier  Notifier
	onSuccess func(context.Context)

	clock func() time.Time
	newID func() string
}

// FlowOptions customizes one login attempt. Zero fields fall back to the
// engine-wide values given to the Builder.
type FlowOptions struct {
	// CallbackURL is where the user lands after login (or is carried through
	// business selection).
	CallbackURL string
	Navigator   Navigator
	Notifier    Notifier
	OnSuccess   func(context.Context)
}

// NewFlow starts a login attempt on the identifier step. When the country
// catalog is already cached the default country is applied synchronously;
// otherwise the catalog is fetched before NewFlow returns. A catalog failure
// does not fail NewFlow: it is surfaced as a notice and LoadCountries may be
// retried.
func (e *Engine) NewFlow(ctx context.Context, opts FlowOptions) (*Flow, error) {
	if e == nil || e.api == nil || e.store == nil || e.tokens == nil || e.countries == nil {
		return nil, ErrEngineNotReady
	}

	f := &Flow{
		engine:      e,
		id:          e.newID(),
		callbackURL: opts.CallbackURL,
		navigator:   opts.Navigator,
		notifier:    opts.Notifier,
		onSuccess:   opts.OnSuccess,
		step:        StepIdentifier,
	}
	if f.callbackURL == "" {
		f.callbackURL = e.config.Redirect.DefaultCallback
	}
	if f.navigator == nil {
		f.navigator = e.navigator
	}
	if f.notifier == nil {
		f.notifier = e.notifier
	}
	if f.onSuccess == nil {
		f.onSuccess = e.onSuccess
	}

	if countries, ok := e.countries.Peek(); ok {
		f.commitCountries(ctx, countries)
		return f, nil
	}
	_ = f.LoadCountries(ctx)
	return f, nil
}

// Countries returns the engine's shared country cache.
func (e *Engine) Countries() *CountryCache {
	if e == nil {
		return nil
	}
	return e.countries
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeAuth(start time.Time) {
	if e == nil || e.metrics == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(MetricAuthLatency, e.now().Sub(start))
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

func newFlowID() string {
	return uuid.NewString()
}
