package blogapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Youssef-Hossam5/Blog-app/pkg/store"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/dualwrite"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/memory"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/postgres"
	"github.com/Youssef-Hossam5/Blog-app/pkg/store/surreal"
)

// App is the application facade: mutations go through the dual-write
// coordinator, reads through the phase router, and the operator surface
// exposes bulk migration, reconciliation, phase control and store stats.
type App struct {
	cfg *Config
	log zerolog.Logger

	primary   store.Backend
	secondary store.Backend
	ledger    store.Ledger

	phases     *dualwrite.Controller
	coord      *dualwrite.Coordinator
	router     *dualwrite.Router
	migrator   *dualwrite.Migrator
	reconciler *dualwrite.Reconciler

	metrics  *dualwrite.Metrics
	registry *prometheus.Registry
}

// New connects both stores and assembles the dual-write stack. The context
// bounds the connection attempts, not the app's lifetime.
func New(ctx context.Context, cfg *Config, log zerolog.Logger) (*App, error) {
	phase, err := dualwrite.ParsePhase(cfg.Phase)
	if err != nil {
		return nil, fmt.Errorf("starting phase: %w", err)
	}

	a := &App{cfg: cfg, log: log}
	a.registry = prometheus.NewRegistry()
	a.metrics = dualwrite.NewMetricsWith(a.registry)

	if cfg.MemoryOnly {
		a.primary = memory.NewStore()
		a.secondary = memory.NewStore()
		a.ledger = memory.NewLedger()
		log.Info().Msg("using two in-memory stores")
	} else {
		pg, err := postgres.NewStore(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect primary (postgres): %w", err)
		}
		log.Info().Msg("connected to postgres (primary)")

		sdb, err := surreal.NewStore(ctx, cfg.SurrealURL, cfg.SurrealNS, cfg.SurrealDB, cfg.SurrealUser, cfg.SurrealPass)
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("connect secondary (surrealdb): %w", err)
		}
		log.Info().Str("url", cfg.SurrealURL).Msg("connected to surrealdb (secondary)")

		a.primary = pg
		a.secondary = sdb
		// The ledger shares the primary's database so divergence survives
		// process restarts. It lives outside the blog tables and outlives
		// primary retirement.
		a.ledger = postgres.NewLedger(pg, log)
	}

	a.phases, err = dualwrite.NewController(phase, log)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	opts := dualwrite.Options{
		CallTimeout: cfg.BackendTimeout,
		Workers:     cfg.MigrateWorkers,
		Logger:      log,
		Metrics:     a.metrics,
	}
	a.coord = dualwrite.NewCoordinator(a.primary, a.secondary, a.phases, a.ledger, opts)
	a.router = dualwrite.NewRouter(a.primary, a.secondary, a.phases, opts)
	a.migrator = dualwrite.NewMigrator(a.primary, a.secondary, a.phases, opts)
	a.reconciler = dualwrite.NewReconciler(a.primary, a.secondary, a.phases, a.ledger, opts)

	a.metrics.SetPhase(phase)
	log.Info().Str("phase", phase.String()).Msg("application ready")
	return a, nil
}

// Close releases both store connections.
func (a *App) Close() error {
	return a.closeStores()
}

func (a *App) closeStores() error {
	var errs []error
	if a.primary != nil {
		errs = append(errs, a.primary.Close())
	}
	if a.secondary != nil {
		errs = append(errs, a.secondary.Close())
	}
	return errors.Join(errs...)
}

// Setup runs schema migration on both stores. Safe to repeat.
func (a *App) Setup(ctx context.Context) error {
	if err := a.primary.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate primary schema: %w", err)
	}
	if err := a.secondary.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate secondary schema: %w", err)
	}
	a.log.Info().Msg("schema ready on both stores")
	return nil
}

// Coordinator exposes the dual-write coordinator, mainly so tests and
// operators can inspect per-mutation receipts.
func (a *App) Coordinator() *dualwrite.Coordinator {
	return a.coord
}

// Registry returns the app's metrics registry for exposition or test
// scraping.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}
