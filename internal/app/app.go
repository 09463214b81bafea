// Package app assembles the grievbot server from its parts: configuration,
// storage, the complaint service (built-in or remote), SMS delivery, the
// WebSocket channels, and the HTTP listener. The cmd layer only parses flags
// and hands the config here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bontonsw/grievbot/internal/channel"
	"github.com/bontonsw/grievbot/internal/complaints"
	"github.com/bontonsw/grievbot/internal/config"
	"github.com/bontonsw/grievbot/internal/dialog"
	"github.com/bontonsw/grievbot/internal/health"
	"github.com/bontonsw/grievbot/internal/nlu"
	"github.com/bontonsw/grievbot/internal/observe"
	"github.com/bontonsw/grievbot/internal/resilience"
	"github.com/bontonsw/grievbot/internal/server"
	"github.com/bontonsw/grievbot/internal/sms"
	"github.com/bontonsw/grievbot/internal/store"
)

const (
	defaultListenAddr  = ":8080"
	readHeaderTimeout  = 10 * time.Second
	defaultCallTimeout = 10 * time.Second
)

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
	otelInitErr  error
)

// Option customises construction, mostly for tests.
type Option func(*App)

// WithStore overrides the complaint store selected from the config.
func WithStore(st store.Store) Option {
	return func(a *App) { a.store = st }
}

// WithNotifier overrides the SMS notifier selected from the config.
func WithNotifier(n sms.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithClient overrides the complaint-service client the dialogue engine
// uses, bypassing both the built-in service and the remote HTTP client.
func WithClient(c complaints.Client) Option {
	return func(a *App) { a.client = c }
}

// App is the assembled server. Create with [New], drive with [Run], and
// tear down with [Shutdown].
type App struct {
	cfg *config.Config

	store    store.Store
	pool     *pgxpool.Pool
	notifier sms.Notifier
	client   complaints.Client
	metrics  *observe.Metrics

	// dialogCfg holds the live dialogue tuning; a config reload swaps it
	// and sessions started afterwards pick it up.
	dialogCfg atomic.Pointer[config.DialogConfig]

	httpServer   *http.Server
	shutdownOTel func(context.Context) error
}

// New wires an App from cfg. The pieces are chosen by configuration:
//
//   - database.postgres_dsn selects PostgreSQL storage; empty falls back to
//     the in-memory store.
//   - service.base_url points sessions at a remote complaint service;
//     empty serves the built-in one from this process.
//   - sms.provider selects the notifier; empty disables SMS.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	a.dialogCfg.Store(&cfg.Dialog)
	for _, o := range opts {
		o(a)
	}

	// The Prometheus exporter registers collectors globally, so telemetry
	// is initialised once per process no matter how many Apps are built.
	otelOnce.Do(func() {
		otelShutdown, otelInitErr = observe.InitProvider(ctx, observe.ProviderConfig{})
	})
	if otelInitErr != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", otelInitErr)
	}
	a.shutdownOTel = otelShutdown
	a.metrics = observe.DefaultMetrics()

	if a.notifier == nil {
		var err error
		a.notifier, err = sms.New(cfg.SMS)
		if err != nil {
			return nil, fmt.Errorf("app: sms notifier: %w", err)
		}
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initClient(); err != nil {
		return nil, err
	}

	a.httpServer = &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           a.buildMux(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		slog.Warn("app: no postgres_dsn configured, complaints are stored in memory only")
		a.store = store.NewMemoryStore()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("app: connect postgres: %w", err)
	}
	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("app: migrate schema: %w", err)
	}
	a.pool = pool
	a.store = pg
	slog.Info("app: postgres store ready")
	return nil
}

func (a *App) initClient() error {
	if a.client != nil {
		return nil
	}
	if base := a.cfg.Service.BaseURL; base != "" {
		timeout := a.cfg.Service.Timeout
		if timeout == 0 {
			timeout = defaultCallTimeout
		}
		clientOpts := []complaints.Option{complaints.WithTimeout(timeout)}
		if a.cfg.Service.Retries != 0 {
			clientOpts = append(clientOpts, complaints.WithRetries(max(a.cfg.Service.Retries, 0)))
		}
		hc, err := complaints.NewHTTPClient(base, clientOpts...)
		if err != nil {
			return fmt.Errorf("app: service client: %w", err)
		}
		a.client = resilience.NewClient(hc, resilience.BreakerConfig{})
		slog.Info("app: using remote complaint service", "base_url", base)
		return nil
	}

	svcOpts := []server.ServiceOption{
		server.WithNotifier(a.notifier),
		server.WithMetrics(a.metrics),
	}
	if cats := a.cfg.Service.IssueCategories; len(cats) > 0 {
		svcOpts = append(svcOpts, server.WithCategories(cats))
	}
	a.client = server.NewService(a.store, svcOpts...)
	slog.Info("app: using built-in complaint service")
	return nil
}

func (a *App) buildMux() http.Handler {
	mux := http.NewServeMux()

	var checkers []health.Checker
	if a.pool != nil {
		pool := a.pool
		checkers = append(checkers, health.Checker{Name: "database", Check: pool.Ping})
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	if svc, ok := a.client.(*server.Service); ok {
		svc.Register(mux)
	}

	ch := channel.NewHandler(a.client,
		channel.WithMetrics(a.metrics),
		channel.WithEngineOptionsFunc(a.engineOptions),
	)
	ch.Register(mux)

	return observe.Middleware(a.metrics)(mux)
}

// engineOptions derives per-session engine options from the live dialogue
// tuning.
func (a *App) engineOptions() []dialog.EngineOption {
	dc := a.dialogCfg.Load()
	table := nlu.DefaultIntentTable()
	if len(dc.Synonyms) > 0 {
		overrides := make(map[nlu.Intent][]string, len(dc.Synonyms))
		for intent, phrases := range dc.Synonyms {
			overrides[nlu.Intent(intent)] = phrases
		}
		table = nlu.OverrideSynonyms(table, overrides)
	}
	rules := dialog.Rules{
		Intents: nlu.NewIntentClassifier(table),
		Issues: nlu.NewIssueMatcher(nlu.MatcherConfig{
			Threshold:       dc.MatchThreshold,
			AmbiguityMargin: dc.AmbiguityMargin,
		}),
	}
	opts := []dialog.EngineOption{dialog.WithRules(rules)}
	if dc.QueueSize > 0 {
		opts = append(opts, dialog.WithQueueSize(dc.QueueSize))
	}
	return opts
}

// ApplyConfig applies a config reload. Log level and dialogue tuning take
// effect immediately (tuning for new sessions); everything else needs a
// restart and is only reported.
func (a *App) ApplyConfig(diff config.ConfigDiff, next *config.Config, level *slog.LevelVar) {
	if !diff.Any() {
		return
	}
	if diff.LogLevelChanged && level != nil {
		level.Set(slogLevel(diff.NewLogLevel))
		slog.Info("app: log level changed", "level", diff.NewLogLevel)
	}
	if diff.DialogChanged {
		dc := next.Dialog
		a.dialogCfg.Store(&dc)
		slog.Info("app: dialogue tuning updated, applies to new sessions",
			"match_threshold", dc.MatchThreshold,
			"ambiguity_margin", dc.AmbiguityMargin,
		)
	}
	if diff.CategoriesChanged {
		slog.Warn("app: issue_categories changed, restart to apply")
	}
	if diff.SMSChanged {
		slog.Warn("app: sms settings changed, restart to apply")
	}
}

// Run serves HTTP until ctx is cancelled, then drains the listener.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("app: listening", "addr", a.httpServer.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: run: %w", err)
	}
	return nil
}

// Shutdown releases the resources Run does not own: the database pool and
// the telemetry providers.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: telemetry shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return defaultListenAddr
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
