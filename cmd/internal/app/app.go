// Package app wires the fansite auth server runtime: config, logging,
// storage, migrations, HTTP routes, metrics and background maintenance.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"fansite/cmd/identity"
	authapi "fansite/cmd/internal/auth/api"
	"fansite/cmd/internal/auth/session"
	"fansite/cmd/internal/migrations"
	"fansite/cmd/security/password"
)

const shutdownTimeout = 10 * time.Second

// App is the server runtime: it owns the DB pool, the HTTP handler and the
// purge loop.
type App struct {
	cfg    Config
	apiCfg authapi.Config
	log    Logger

	dbPool   *pgxpool.Pool
	sessions *session.Service
	handler  http.Handler
}

// New constructs a fully wired App from config. All other settings
// (session, password, lockout, API) are read from the environment here.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, sessCfg); err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	lockout, err := identity.LockoutPolicyFromEnv()
	if err != nil {
		return nil, fmt.Errorf("lockout config: %w", err)
	}
	apiCfg := authapi.LoadConfigFromEnv()

	hasher, err := identity.NewHasher(pwCfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, apiCfg: apiCfg, log: log}

	var (
		users   identity.Store
		ledger  session.Store
		auditor authapi.Auditor
	)
	if cfg.DatabaseURL == "" {
		log.Warn("db.disabled.inmemory_store")
		mem, err := identity.NewMemoryStore(hasher, lockout)
		if err != nil {
			return nil, err
		}
		users, ledger, auditor = mem, session.NewMemoryStore(), authapi.NewMemoryAuditor()
	} else {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		a.dbPool = pool
		log.Info("db.enabled.postgres_store")

		users, ledger, auditor, err = a.newPostgresStores(ctx, hasher, lockout)
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := session.NewMetrics(reg)
	if err != nil {
		a.Close()
		return nil, err
	}

	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sessions, err = session.NewService(sessCfg, users, ledger, tokens,
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithDecoy(hasher),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, a.sessions, auditor, apiCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := SeedAdmin(ctx, users, cfg, log); err != nil {
		a.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, a.dbPool, reg, authHandler)
	a.handler = WithRequestID(WithRequestLogging(mux, log))

	return a, nil
}

func (a *App) newPostgresStores(ctx context.Context, hasher *identity.Hasher, lockout identity.LockoutPolicy) (identity.Store, session.Store, authapi.Auditor, error) {
	if a.cfg.DBAutoMigrate {
		if err := migrations.Up(ctx, a.cfg.DatabaseURL, ""); err != nil {
			return nil, nil, nil, err
		}
		a.log.Info("db.migrate.done")
	}

	users, err := identity.NewPostgresStore(a.dbPool, hasher, lockout)
	if err != nil {
		return nil, nil, nil, err
	}
	ledger, err := session.NewPostgresStore(a.dbPool)
	if err != nil {
		return nil, nil, nil, err
	}
	auditor, err := authapi.NewPostgresAuditor(a.dbPool, "")
	if err != nil {
		return nil, nil, nil, err
	}
	return users, ledger, auditor, nil
}

// Handler returns the root HTTP handler with middleware applied.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP and the purge loop until ctx is canceled or the server
// fails. It closes the pool before returning.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})
	if a.cfg.PurgeInterval > 0 {
		g.Go(func() error {
			a.runPurgeLoop(gctx, a.cfg.PurgeInterval)
			return nil
		})
	}

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

// runPurgeLoop deletes stale ledger rows every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (a *App) runPurgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.purgeOnce(ctx)
		}
	}
}

func (a *App) purgeOnce(ctx context.Context) {
	n, err := a.sessions.PurgeExpired(ctx, a.apiCfg.PurgeRetention)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Error("auth.purge.fail", "err", err)
		}
		return
	}
	if n > 0 {
		a.log.Info("auth.purge.done", "purged", n)
	}
}

// Close releases the DB pool. It is safe to call more than once.
func (a *App) Close() {
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
