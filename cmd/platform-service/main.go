package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aicolabsdev/aicolabs/internal/market/repo"
	"github.com/aicolabsdev/aicolabs/internal/platform/feed"
	phttp "github.com/aicolabsdev/aicolabs/internal/platform/http"
	"github.com/aicolabsdev/aicolabs/internal/platform/producer"
	"github.com/aicolabsdev/aicolabs/internal/platform/pubsub"
	prepo "github.com/aicolabsdev/aicolabs/internal/platform/repo"
	"github.com/aicolabsdev/aicolabs/internal/platform/ws"
	sharedcache "github.com/aicolabsdev/aicolabs/internal/shared/cache"
	"github.com/aicolabsdev/aicolabs/internal/shared/config"
	"github.com/aicolabsdev/aicolabs/internal/shared/db"
	skafka "github.com/aicolabsdev/aicolabs/internal/shared/kafka"
	"github.com/aicolabsdev/aicolabs/internal/shared/logger"
	"github.com/aicolabsdev/aicolabs/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (feed cache + pub/sub do hub WS)
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (bet_placed, market_resolved)
	betWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer betWriter.Close()
	resolvedWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketResolved)
	defer resolvedWriter.Close()

	// deps
	ledger := repo.NewPostgres(pg, cfg.MinStakeCents)
	social := prepo.NewPostgres(pg)
	publ := producer.NewKafkaPublisher(betWriter, resolvedWriter)
	feedCache := feed.New(rdb)
	bcast := pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)

	// WebSocket hub alimentado pelo Redis Pub/Sub
	hub := ws.NewHub(func(_ *http.Request) bool { return true })
	ws.StartRedisSubscriber(context.Background(), log, rdb, hub, cfg.RedisPubSubChannel)

	// Métricas do ledger
	betsPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "platform_bets_placed_total", Help: "apostas aceitas pelo ledger"})
	marketsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_markets_resolved_total", Help: "mercados resolvidos por desfecho"}, []string{"outcome"})
	prometheus.MustRegister(betsPlaced, marketsResolved)

	api := phttp.NewServer(log, ledger, social, publ, bcast, feedCache, hub, cfg.OperatorToken)
	api.OnBetPlaced = func() { betsPlaced.Inc() }
	api.OnMarketResolved = func(outcome string) { marketsResolved.WithLabelValues(outcome).Inc() }

	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort,
		func(ctx context.Context) error { return pg.PingContext(ctx) },
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	)
	log.Info("metrics/health", zap.String("addr", fmt.Sprintf(":%s", cfg.MetricsPort)))

	log.Info("platform-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
