package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/truecex/exchange/internal/adapter/cache"
	"github.com/truecex/exchange/internal/adapter/in_memory"
	"github.com/truecex/exchange/internal/adapter/notify"
	"github.com/truecex/exchange/internal/adapter/pg"
	httpapi "github.com/truecex/exchange/internal/api/http"
	"github.com/truecex/exchange/internal/api/ws"
	"github.com/truecex/exchange/internal/config"
	"github.com/truecex/exchange/internal/core"
	"github.com/truecex/exchange/internal/port"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var repo port.Repository
	if cfg.PostgresDSN != "" {
		pgRepo, err := pg.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer pgRepo.Close()
		repo = pgRepo
	} else {
		logger.Info("no POSTGRES_DSN configured, using in-memory store")
		repo = in_memory.NewMemoryRepo()
	}

	var bookCache port.Cache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		defer func() { _ = rc.Close() }()
		bookCache = rc
	}

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	sinks := notify.Fanout{hub}
	if len(cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kn.Close() }()
		sinks = append(sinks, kn)
	}

	engine := core.NewEngine(core.EngineConfig{
		Symbols:         cfg.Symbols,
		SelfTradePolicy: core.SelfTradePolicy(cfg.SelfTradePolicy),
	}, repo, bookCache, sinks, logger)

	if err := engine.LoadOpenOrders(ctx, cfg.Symbols); err != nil {
		logger.Fatal("rebuild order books", zap.Error(err))
	}

	server := httpapi.NewServer(engine, hub, logger, cfg.RateLimit, cfg.AllowedOrigins)
	logger.Info("starting HTTP server", zap.String("addr", cfg.ListenAddr))
	if err := server.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}
