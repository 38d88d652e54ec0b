// Package app assembles the ledger backend from configuration. The API
// server and the background worker share it so both processes see the same
// stores, policies and notifier.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/affiliate-ledger/internal/audit"
	"github.com/ignite/affiliate-ledger/internal/catalog"
	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/notify"
	"github.com/ignite/affiliate-ledger/internal/pkg/distlock"
	"github.com/ignite/affiliate-ledger/internal/pkg/httpretry"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/repository/memory"
	"github.com/ignite/affiliate-ledger/internal/repository/postgres"
	redisrepo "github.com/ignite/affiliate-ledger/internal/repository/redis"
	"github.com/ignite/affiliate-ledger/internal/service/analytics"
	"github.com/ignite/affiliate-ledger/internal/service/attribution"
	"github.com/ignite/affiliate-ledger/internal/service/commission"
	"github.com/ignite/affiliate-ledger/internal/service/ledger"
	"github.com/ignite/affiliate-ledger/internal/service/recorder"
	"github.com/ignite/affiliate-ledger/internal/service/review"
	"github.com/ignite/affiliate-ledger/internal/service/withdrawal"
)

// App holds the connections and services built from one Config.
type App struct {
	DB    *sql.DB
	Redis *redis.Client

	// InMemory is true when no DATABASE_URL was configured. State is lost
	// on exit and only one process may serve it.
	InMemory bool

	Recorder    *recorder.Service
	Commissions *commission.Service
	Ledger      *ledger.Service
	Withdrawals *withdrawal.Service
	Review      *review.Service
	Analytics   *analytics.Service

	// Entries feeds the daily audit export.
	Entries audit.EntrySource

	notifier *notify.Async
	closers  []func() error
}

type stores struct {
	events      recorder.Repository
	clicks      attribution.ClickSource
	sales       commission.Repository
	ledger      ledger.Store
	withdrawals withdrawal.Repository
	entries     audit.EntrySource
}

// New connects to the configured stores and wires the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	var st stores

	if cfg.Database.URL == "" {
		logger.Warn("[App] DATABASE_URL not set, using in-memory store")
		mem := memory.New()
		st = stores{
			events:      mem.Events(),
			clicks:      mem.Events(),
			sales:       mem.Sales(),
			ledger:      mem.Ledger(),
			withdrawals: mem.Withdrawals(),
			entries:     mem.Ledger(),
		}
		a.InMemory = true
	} else {
		db, err := openDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		pg := postgres.New(db)
		st = stores{
			events:      pg.Events(),
			clicks:      pg.Events(),
			sales:       pg.Sales(),
			ledger:      pg.Ledger(),
			withdrawals: pg.Withdrawals(),
			entries:     pg.Ledger(),
		}
	}

	var cache ledger.Cache
	if cfg.Redis.URL != "" {
		rdb, err := openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		a.closers = append(a.closers, rdb.Close)
		cache = redisrepo.NewBalanceCache(rdb, cfg.Redis.BalanceTTL())
	}

	sender, err := newSender(cfg.Notify)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := sender.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.notifier = notify.NewAsync(sender, cfg.Notify.Timeout())

	a.Ledger = ledger.NewService(st.ledger, cache).WithMinorUnits(cfg.Currency.MinorUnits)
	a.Recorder = recorder.NewService(st.events)
	a.Commissions = commission.NewService(commission.Config{
		Repo:       st.sales,
		Resolver:   attribution.NewResolver(st.clicks, cfg.Attribution.Window()),
		Catalog:    newCatalog(cfg.Catalog),
		Ledger:     a.Ledger,
		Notifier:   a.notifier,
		MinorUnits: cfg.Currency.MinorUnits,
	})
	a.Withdrawals = withdrawal.NewService(st.withdrawals, a.Ledger, a.notifier)
	a.Review = review.NewService(a.Commissions, a.Withdrawals, a.Ledger)
	a.Analytics = analytics.NewService(a.Recorder, a.Commissions)
	a.Entries = st.entries
	return a, nil
}

// Close waits for in-flight notifications and closes every connection.
func (a *App) Close() {
	if a.notifier != nil {
		a.notifier.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("[App] close failed", "error", err)
		}
	}
	a.closers = nil
}

// Lock returns the singleton lock for a background job, or nil in
// in-memory mode where only one process runs.
func (a *App) Lock(key string, ttl time.Duration) distlock.DistLock {
	if a.InMemory {
		return nil
	}
	return distlock.NewLock(a.Redis, a.DB, key, ttl)
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("[App] connected to PostgreSQL", "max_open_conns", cfg.MaxOpenConns)
	return db, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("[App] connected to Redis", "addr", opts.Addr)
	return rdb, nil
}

func newSender(cfg config.NotifyConfig) (notify.Sender, error) {
	switch cfg.Driver {
	case "kafka":
		s, err := notify.NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka notifier: %w", err)
		}
		return s, nil
	case "log", "":
		return notify.LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// newCatalog returns the HTTP catalog client, or an empty static catalog
// when no base URL is configured.
func newCatalog(cfg config.CatalogConfig) commission.Catalog {
	if cfg.BaseURL == "" {
		logger.Warn("[App] CATALOG_BASE_URL not set, commission rules must be loaded into the static catalog")
		return catalog.NewStatic()
	}
	doer := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, cfg.MaxRetries)
	return catalog.NewClient(cfg.BaseURL, cfg.APIKey, doer)
}
