package consolelogin

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/consolelogin/storage"
	"github.com/MrEthical07/consolelogin/token"
)

// Builder assembles an Engine.
//
// Builder instances are single-use: Build may be called once.
type Builder struct {
	config Config
	api    SecurityAPI
	store  KeyValueStore
	tokens TokenSaver
	cache  *CountryCache

	auditSink AuditSink
	logger    *slog.Logger

	navigator Navigator
	notifier  Notifier
	onSuccess func(context.Context)
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAPI sets the security API backend. Required.
func (b *Builder) WithAPI(api SecurityAPI) *Builder {
	b.api = api
	return b
}

// WithStorage sets the persisted key-value store. Defaults to an in-memory
// store, which does not survive the process.
func (b *Builder) WithStorage(store KeyValueStore) *Builder {
	b.store = store
	return b
}

// WithTokenSaver overrides where the session token is persisted. Defaults to
// a token.Store over the key-value store.
func (b *Builder) WithTokenSaver(ts TokenSaver) *Builder {
	b.tokens = ts
	return b
}

// WithCountryCache shares an existing cache between engines. By default the
// engine creates its own cache over the API's country endpoint.
func (b *Builder) WithCountryCache(c *CountryCache) *Builder {
	b.cache = c
	return b
}

// WithAuditSink sets the audit sink and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithNavigator sets the default post-login navigator.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithNotifier sets the default notification receiver.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithOnSuccess sets the callback run when a flow reaches success, typically
// to refresh global session state.
func (b *Builder) WithOnSuccess(fn func(context.Context)) *Builder {
	b.onSuccess = fn
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the auth latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.api == nil {
		return nil, errors.New("security API required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "consolelogin")

	store := b.store
	if store == nil {
		store = storage.NewMemory()
	}
	tokens := b.tokens
	if tokens == nil {
		tokens = token.NewStore(store, cfg.Storage.TokenKey)
	}

	e := &Engine{
		config:    cfg,
		api:       b.api,
		store:     store,
		tokens:    tokens,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		navigator: b.navigator,
		notifier:  b.notifier,
		onSuccess: b.onSuccess,
		clock:     b.clock,
		newID:     newFlowID,
	}

	e.audit = newAuditDispatcher(cfg.Audit, b.auditSink, func(total uint64) {
		// log once per power of two to keep a stuck sink from flooding
		if total&(total-1) == 0 {
			logger.Warn("audit events dropped", "total", strconv.FormatUint(total, 10))
		}
	})

	cache := b.cache
	if cache == nil {
		cache = NewCountryCache(b.api.Countries)
		cache.onHit = func() {
			e.metricInc(MetricCountryFetch)
			e.emitAudit(context.Background(), auditEventCountryFetch, true, "", "", nil, nil)
		}
		cache.onErr = func(err error) {
			e.metricInc(MetricCountryFetchFailure)
			e.emitAudit(context.Background(), auditEventCountryFetch, false, "", "", err, nil)
			logger.Warn("country catalog fetch failed", "error", err)
		}
	}
	e.countries = cache

	b.built = true
	return e, nil
}
