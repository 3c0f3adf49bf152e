package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/fetch"
	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/metrics"
	"github.com/spigell/jobscout/internal/scrape"
	"github.com/spigell/jobscout/internal/secrets"
	"github.com/spigell/jobscout/internal/source"
	"github.com/spigell/jobscout/internal/storage"
)

// deps is everything a command needs, built from the config.
type deps struct {
	config   *Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    jobs.Store
	closers  []func() error
}

// setup builds the logger, reads the config and opens the store. Failures are fatal.
func setup(ctx context.Context) *deps {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	dsn, err := storageDSN(config.Storage)
	if err != nil {
		l.Fatal("resolving the storage dsn", zap.Error(err))
	}

	store, err := storage.Open(ctx, dsn, logger.Named(l, "storage"))
	if err != nil {
		l.Fatal("opening the store", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &deps{
		config:   config,
		logger:   l,
		registry: reg,
		metrics:  metrics.New(reg),
		store:    store,
		closers:  []func() error{store.Close},
	}
}

// storageDSN keeps database credentials out of the config file when dsn-file is set.
func storageDSN(c *StorageConfig) (string, error) {
	if c.DSNFile == "" {
		return c.DSN, nil
	}
	return secrets.Load(secrets.Source{Name: "storage dsn", File: c.DSNFile})
}

// orchestrator wires the fetcher, the selected adapters and the cooldown.
func (d *deps) orchestrator(ctx context.Context, extra ...scrape.Option) (*scrape.Orchestrator, error) {
	fetcher := fetch.New(d.config.Fetch,
		fetch.WithLogger(logger.Named(d.logger, "fetch")),
		fetch.WithMetrics(d.metrics),
	)

	registry := source.NewRegistry(
		source.NewIndeed(logger.Named(d.logger, "indeed")),
		source.NewLinkedIn(logger.Named(d.logger, "linkedin")),
		source.NewHeadHunter(logger.Named(d.logger, "headhunter")),
	)
	adapters, err := registry.Select(d.config.Scrape.Sources...)
	if err != nil {
		return nil, err
	}

	cooldown, err := d.cooldown(ctx)
	if err != nil {
		return nil, err
	}

	opts := []scrape.Option{
		scrape.WithLogger(logger.Named(d.logger, "scrape")),
		scrape.WithMetrics(d.metrics),
		scrape.WithCooldown(cooldown),
		scrape.WithConcurrency(d.config.Scrape.Concurrency),
	}
	for name, delay := range d.config.Scrape.PageDelays {
		opts = append(opts, scrape.WithPageDelay(name, delay))
	}
	opts = append(opts, extra...)

	return scrape.New(fetcher, adapters, d.store, opts...), nil
}

// cooldown prefers redis so cooldowns survive restarts and are shared between instances.
func (d *deps) cooldown(ctx context.Context) (scrape.Cooldown, error) {
	addr := d.config.Storage.Redis
	if addr == "" {
		return storage.NewMemoryCooldown(), nil
	}

	rc, err := storage.NewRedisCooldown(addr)
	if err != nil {
		return nil, err
	}
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	d.closers = append(d.closers, rc.Close)
	d.logger.Debug("using redis cooldown")
	return rc, nil
}

func (d *deps) freshness() *scrape.Freshness {
	return scrape.NewFreshness(d.store, d.config.Scrape.FreshnessThreshold, d.config.Scrape.MinJobs)
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("closing a resource", zap.Error(err))
		}
	}
	_ = d.logger.Sync()
}
