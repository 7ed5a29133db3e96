package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/params"
	"github.com/uhyunpark/matchbook/pkg/api"
	"github.com/uhyunpark/matchbook/pkg/app/core/market"
	"github.com/uhyunpark/matchbook/pkg/app/exchange"
	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/kafka"
	"github.com/uhyunpark/matchbook/pkg/metrics"
	"github.com/uhyunpark/matchbook/pkg/p2p"
	"github.com/uhyunpark/matchbook/pkg/storage"
	"github.com/uhyunpark/matchbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "verbose", cfg.Node.Verbose)

	if err := run(cfg, sugar); err != nil {
		sugar.Fatalw("node_failed", "err", err)
	}
}

func run(cfg params.Config, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Markets ----
	defs, err := market.LoadMarkets(cfg.Node.MarketsFile)
	if err != nil {
		return err
	}
	markets, err := market.NewMarketRegistryFrom(defs)
	if err != nil {
		return err
	}
	for _, m := range markets.ListMarkets() {
		sugar.Infow("market_loaded",
			"symbol", m.Symbol,
			"base_precision", m.BasePrecision,
			"quote_precision", m.QuotePrecision,
			"status", m.Status.String())
	}

	m := metrics.New()

	// ---- Event sinks ----
	// WebSocket hub always; Kafka and gossip only when configured
	hub := api.NewHub(api.HubConfig{
		Known:   markets.Exists,
		Logger:  sugar.Named("ws"),
		Metrics: m,
	})
	go hub.Run(ctx)
	sinks := events.MultiSink{hub}

	if len(cfg.Kafka.Brokers) > 0 {
		ks := kafka.NewSink(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Logger:  sugar.Named("kafka"),
			Metrics: m,
		})
		go func() {
			if err := ks.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				sugar.Errorw("kafka_sink_stopped", "err", err)
			}
		}()
		sinks = append(sinks, ks)
		sugar.Infow("kafka_sink_enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.P2P.Listen != "" {
		gossip, err := p2p.NewGossip(ctx, p2p.GossipConfig{
			ListenAddr: cfg.P2P.Listen,
			Bootstrap:  cfg.P2P.Bootstrap,
			Logger:     sugar.Named("p2p"),
			Metrics:    m,
		})
		if err != nil {
			return err
		}
		defer gossip.Close()
		go func() {
			if err := gossip.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				sugar.Errorw("gossip_stopped", "err", err)
			}
		}()
		sinks = append(sinks, gossip)
		sugar.Infow("gossip_enabled", "addrs", gossip.Addrs())
	}

	// ---- Exchange ----
	svc, err := exchange.New(exchange.Config{
		Markets: markets,
		Sink:    sinks,
		Logger:  sugar.Named("exchange"),
		Metrics: m,
	})
	if err != nil {
		return err
	}

	// ---- Snapshot ----
	var store *storage.PebbleStore
	if path := cfg.SnapshotPath(); path != "" {
		store, err = storage.NewPebbleStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := svc.Restore(store); err != nil {
			return err
		}
		sugar.Infow("books_restored", "path", path)
	}

	sampler := exchange.NewSampler(svc, exchange.SamplerConfig{
		Interval: cfg.Sampler.Interval,
		Depth:    cfg.Sampler.Depth,
		Sink:     sinks,
		Logger:   sugar.Named("sampler"),
		Metrics:  m,
	})
	go sampler.Run(ctx)

	// ---- API Server ----
	server := api.NewServer(svc, hub, api.Config{
		AllowedOrigins: cfg.API.AllowedOrigins,
		Logger:         sugar.Named("api"),
		Metrics:        m,
	})
	sugar.Infow("node_starting",
		"markets", markets.Count(),
		"api_addr", cfg.API.Addr,
		"sample_interval_ms", cfg.Sampler.Interval.Milliseconds())

	serveErr := server.Start(ctx, cfg.API.Addr)
	stop()

	if store != nil {
		if err := svc.Persist(store); err != nil {
			sugar.Errorw("books_persist_failed", "err", err)
			return err
		}
		sugar.Infow("books_persisted", "path", cfg.SnapshotPath())
	}
	return serveErr
}
