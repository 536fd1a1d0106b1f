package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/hexselect/internal/auth"
	"github.com/mohammed-shakir/hexselect/internal/cache"
	"github.com/mohammed-shakir/hexselect/internal/cache/redisstore"
	"github.com/mohammed-shakir/hexselect/internal/core/config"
	"github.com/mohammed-shakir/hexselect/internal/core/health"
	"github.com/mohammed-shakir/hexselect/internal/core/router"
	"github.com/mohammed-shakir/hexselect/internal/core/server"
	"github.com/mohammed-shakir/hexselect/internal/dataset"
	"github.com/mohammed-shakir/hexselect/internal/engine"
	"github.com/mohammed-shakir/hexselect/internal/history"
	"github.com/mohammed-shakir/hexselect/internal/hotness/expdecay"
	"github.com/mohammed-shakir/hexselect/internal/hotness/metricswrap"
	"github.com/mohammed-shakir/hexselect/internal/invalidation/kafkaconsumer"
	h3mapper "github.com/mohammed-shakir/hexselect/internal/mapper/h3"
	"github.com/mohammed-shakir/hexselect/internal/metrics"
	"github.com/mohammed-shakir/hexselect/internal/runevents"
	"github.com/mohammed-shakir/hexselect/pkg/adaptive/simple"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// keys below this score are dropped by the periodic hotness sweep
const pruneBelow = 0.01

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	log := newLogger(cfg, "server", nil)
	log.Info("starting hexselect",
		"addr", cfg.Server.Addr,
		"version", Version,
		"dataset", cfg.Dataset.Path,
		"cache", cfg.Cache.Enabled,
		"auth", cfg.Auth.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := metrics.Init(metrics.Config{Build: metrics.BuildInfo{
		Version: Version, Revision: Revision, Branch: Branch, BuildDate: BuildDate,
	}})

	reg, err := dataset.NewRegistry(dataset.Config{
		DefaultPath:    cfg.Dataset.Path,
		Size:           cfg.Dataset.CacheSize,
		MaxUploadBytes: cfg.Dataset.UploadMaxBytes,
	}, log)
	if err != nil {
		return err
	}
	geo := h3mapper.New()

	tracker := expdecay.New(cfg.Hotness.HalfLife)
	hot := metricswrap.New(tracker, metricswrap.Config{
		HotThreshold: cfg.Hotness.Threshold,
		LogSample:    cfg.Hotness.LogSample,
	}, log)
	go sweepHotness(ctx, tracker, cfg.Hotness.HalfLife, log)

	ready := map[string]health.Check{
		"dataset": func(ctx context.Context) error {
			_, err := reg.Get(ctx, dataset.DefaultID)
			return err
		},
	}

	opts := engine.Options{Hotness: hot, Logger: log}
	if cfg.Cache.Enabled {
		store, err := redisstore.New(ctx, cfg.Cache.RedisAddr,
			redisstore.WithDialTimeout(2*time.Second),
			redisstore.WithReadTimeout(cfg.Cache.OpTimeout),
			redisstore.WithWriteTimeout(cfg.Cache.OpTimeout))
		if err != nil {
			return fmt.Errorf("result cache: %w", err)
		}
		defer func() { _ = store.Close() }()
		decider := simple.New(simple.Config{
			Threshold: cfg.Hotness.Threshold,
			TTLCold:   cfg.Cache.TTLCold,
			TTLWarm:   cfg.Cache.TTLWarm,
			TTLHot:    cfg.Cache.TTLHot,
		})
		opts.Cache = cache.NewResults(store, decider, hot, cfg.Cache.OpTimeout, log)
		ready["redis"] = store.Ping
	}

	deps := router.Deps{
		Registry:       reg,
		Geo:            geo,
		Auth:           newAuth(cfg, log),
		Logger:         log,
		MaxUploadBytes: cfg.Dataset.UploadMaxBytes,
	}
	if cfg.History.Path != "" {
		runs, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer func() { _ = runs.Close() }()
		opts.History = runs
		deps.History = runs
	}
	if cfg.Invalidation.RunEvents {
		pub, err := runevents.NewPublisher(cfg.Invalidation.Brokers, cfg.Invalidation.RunsTopic, 0, log)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		opts.Events = pub
	}
	deps.Engine = engine.New(reg, geo, opts)

	if cfg.Invalidation.Enabled {
		c := kafkaconsumer.New(kafkaconsumer.Config{
			Brokers: cfg.Invalidation.Brokers,
			Topic:   cfg.Invalidation.Topic,
			GroupID: cfg.Invalidation.GroupID,
		}, log, reg, hot)
		go func() {
			if err := c.Start(ctx); err != nil {
				log.Error("invalidation consumer stopped", "err", err)
			}
		}()
	}

	srvOpts := server.Options{
		Addr:  cfg.Server.Addr,
		Ready: ready,
		API:   router.New(deps),
	}
	if cfg.Metrics.Enabled {
		srvOpts.Metrics = p.Handler()
	}
	if err := server.Run(ctx, log, srvOpts); err != nil {
		log.Error("server exited with error", "err", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

func newAuth(cfg config.Config, log *slog.Logger) *auth.Authenticator {
	return auth.New(auth.Config{
		Enabled:    cfg.Auth.Enabled,
		Users:      cfg.Auth.Users,
		SessionTTL: cfg.Auth.SessionTTL,
		MaxSession: cfg.Auth.SessionMax,
	}, log)
}

func sweepHotness(ctx context.Context, t *expdecay.Tracker, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		every = 5 * time.Minute
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := t.Prune(pruneBelow); n > 0 {
				log.Debug("hotness pruned", "keys", n, "remaining", t.Size())
			}
		}
	}
}
