package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/cashflow/internal/cache"
	"github.com/punchamoorthee/cashflow/internal/config"
	"github.com/punchamoorthee/cashflow/internal/events"
	"github.com/punchamoorthee/cashflow/internal/service"
	"github.com/punchamoorthee/cashflow/internal/store"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "consolidation-worker").Logger()

	cfg := config.Load()
	if cfg.ConsolidationDBSource == "" {
		log.Fatal().Msg("CONSOLIDATION_DB_SOURCE environment variable is required")
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.ConsolidationDBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer dbPool.Close()

	redisCache := cache.NewRedis(cfg.RedisAddr, log)
	defer redisCache.Close()

	consStore := store.NewConsolidationStore(dbPool)
	processor := service.NewConsolidationProcessor(consStore, redisCache, log)
	consumer := events.NewConsumer(cfg.AMQPURL, processor, log)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
			log.Error().Err(err).Msg("metrics listener failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("consumer failed")
	}
	log.Info().Msg("consolidation worker stopped")
}
