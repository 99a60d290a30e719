// Package controller wires the reliability pipeline around engine
// invocation: replay guard, per-tenant circuit breaker, concurrency
// limiter, retry with backoff, and dead-letter capture, in that order.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/backoff"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/hook"
	"github.com/xraph/sentinel/limiter"
	"github.com/xraph/sentinel/middleware"
	"github.com/xraph/sentinel/replay"
	"github.com/xraph/sentinel/store"
	"github.com/xraph/sentinel/tenant"
)

// Invoker executes one workflow attempt against the underlying engine.
type Invoker interface {
	Invoke(ctx context.Context, exec *sentinel.Execution) error
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, exec *sentinel.Execution) error

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, exec *sentinel.Execution) error {
	return f(ctx, exec)
}

// Option configures a Controller.
type Option func(*Controller) error

// WithConfig replaces the default configuration.
func WithConfig(cfg sentinel.Config) Option {
	return func(c *Controller) error {
		c.cfg = cfg
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) error {
		c.logger = logger
		return nil
	}
}

// WithBackoff replaces the retry delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(c *Controller) error {
		c.strategy = s
		return nil
	}
}

// WithMiddleware appends invocation middleware inside the built-in
// recovery, logging, and timeout wrappers.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Controller) error {
		c.userMW = append(c.userMW, mws...)
		return nil
	}
}

// WithExtension registers a hook extension.
func WithExtension(ext hook.Extension) Option {
	return func(c *Controller) error {
		c.exts = append(c.exts, ext)
		return nil
	}
}

// Controller is the reliability control layer. Create one with New,
// Start it to run background maintenance, and route every workflow
// trigger through Dispatch.
type Controller struct {
	cfg      sentinel.Config
	logger   *slog.Logger
	store    store.Store
	invoker  Invoker
	strategy backoff.Strategy
	userMW   []middleware.Middleware
	exts     []hook.Extension

	breakers *breaker.Registry
	limiter  *limiter.Limiter
	guard    *replay.Guard
	dlqSvc   *dlq.Service
	sweeper  *dlq.Sweeper
	hooks    *hook.Registry
	handler  middleware.Handler

	// rates tracks installed per-tenant rate buckets so a re-read of
	// tenant config does not reset a live bucket.
	ratesMu sync.Mutex
	rates   map[string]float64

	lifeMu  sync.Mutex
	started bool
}

var _ dlq.Redispatcher = (*Controller)(nil)

// New creates a controller over the given store and engine invoker.
func New(st store.Store, invoker Invoker, opts ...Option) (*Controller, error) {
	if st == nil {
		return nil, sentinel.ErrNoStore
	}
	if invoker == nil {
		return nil, sentinel.ErrNoInvoker
	}

	c := &Controller{
		cfg:     sentinel.DefaultConfig(),
		logger:  slog.Default(),
		store:   st,
		invoker: invoker,
		rates:   make(map[string]float64),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.strategy == nil {
		c.strategy = backoff.DefaultStrategy()
	}

	c.hooks = hook.NewRegistry(c.logger)
	for _, ext := range c.exts {
		c.hooks.Register(ext)
	}

	c.breakers = breaker.NewRegistry(st, c.logger, breaker.WithEmitter(c.hooks))
	c.limiter = limiter.New(c.cfg.GlobalConcurrency)
	c.guard = replay.NewGuard(st, c.logger)
	c.dlqSvc = dlq.NewService(st, c.cfg.DLQTTL, c.logger,
		dlq.WithRedispatcher(c),
		dlq.WithEmitter(c.hooks),
	)

	sweeper, err := dlq.NewSweeper(c.dlqSvc, c.cfg.SweepSchedule, c.logger)
	if err != nil {
		return nil, err
	}
	c.sweeper = sweeper

	mws := []middleware.Middleware{
		middleware.Recover(),
		middleware.Logging(c.logger),
		middleware.Timeout(c.cfg.ExecutionTimeout),
	}
	mws = append(mws, c.userMW...)
	c.handler = middleware.Chain(c.invoker.Invoke, mws...)

	return c, nil
}

// Start runs migrations and launches background maintenance. Safe for
// concurrent use with Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.started {
		return nil
	}
	if err := c.store.Migrate(ctx); err != nil {
		return err
	}
	c.sweeper.Start()
	c.started = true
	return nil
}

// Stop halts background maintenance, notifies shutdown hooks, and
// closes the store.
func (c *Controller) Stop(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.started {
		c.sweeper.Stop()
		c.started = false
	}
	c.hooks.Shutdown(ctx)
	return c.store.Close()
}

// Config returns a copy of the controller's configuration.
func (c *Controller) Config() sentinel.Config { return c.cfg }

// Logger returns the controller's logger.
func (c *Controller) Logger() *slog.Logger { return c.logger }

// DLQ returns the dead-letter service for the admin surface.
func (c *Controller) DLQ() *dlq.Service { return c.dlqSvc }

// Breakers returns the circuit breaker registry for the admin surface.
func (c *Controller) Breakers() *breaker.Registry { return c.breakers }

// Store returns the controller's store.
func (c *Controller) Store() store.Store { return c.store }

// ResetBreaker forces a tenant's circuit back to closed.
func (c *Controller) ResetBreaker(ctx context.Context, tenantID, reason string) error {
	return c.breakers.Reset(ctx, tenantID, reason)
}

// tenantConfig resolves effective per-tenant settings: the stored
// tenant config when present, filled from controller defaults
// otherwise. Resolution failures fall back to defaults so a degraded
// config store never blocks dispatch.
func (c *Controller) tenantConfig(ctx context.Context, tenantID string) *tenant.Config {
	tcfg, err := c.store.GetTenantConfig(ctx, tenantID)
	switch {
	case err == nil:
		norm := tcfg.Normalize()
		tcfg = &norm
	case errors.Is(err, sentinel.ErrTenantNotFound):
		tcfg = c.defaultTenantConfig(tenantID)
	default:
		c.logger.Error("tenant config load failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		tcfg = c.defaultTenantConfig(tenantID)
	}

	c.applyRate(tenantID, tcfg)
	return tcfg
}

func (c *Controller) defaultTenantConfig(tenantID string) *tenant.Config {
	tcfg := tenant.Defaults(tenantID)
	tcfg.ConcurrencyLimit = c.cfg.TenantConcurrency
	tcfg.BreakerThreshold = c.cfg.BreakerThreshold
	tcfg.BreakerWindow = c.cfg.BreakerWindow
	tcfg.BreakerRecovery = c.cfg.BreakerRecovery
	tcfg.MaxRetries = c.cfg.MaxRetries
	return &tcfg
}

func (c *Controller) applyRate(tenantID string, tcfg *tenant.Config) {
	c.ratesMu.Lock()
	defer c.ratesMu.Unlock()

	if prev, ok := c.rates[tenantID]; ok && prev == tcfg.RateLimit {
		return
	}
	c.rates[tenantID] = tcfg.RateLimit
	c.limiter.SetRate(tenantID, tcfg.RateLimit, tcfg.RateBurst)
}
