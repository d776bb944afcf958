package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/cashflow/internal/api"
	"github.com/punchamoorthee/cashflow/internal/cache"
	"github.com/punchamoorthee/cashflow/internal/config"
	"github.com/punchamoorthee/cashflow/internal/dedup"
	"github.com/punchamoorthee/cashflow/internal/events"
	"github.com/punchamoorthee/cashflow/internal/service"
	"github.com/punchamoorthee/cashflow/internal/store"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "transactions-api").Logger()

	cfg := config.Load()
	if cfg.TransactionsDBSource == "" {
		log.Fatal().Msg("TRANSACTIONS_DB_SOURCE environment variable is required")
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.TransactionsDBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer dbPool.Close()

	publisher, err := events.NewPublisher(cfg.AMQPURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to message broker")
	}
	defer publisher.Close()

	redisCache := cache.NewRedis(cfg.RedisAddr, log)
	defer redisCache.Close()

	txStore := store.NewTransactionStore(dbPool)
	detector := dedup.NewDetector(txStore, log)
	ingest := service.NewIngestService(txStore, detector, publisher, redisCache, log)
	handler := api.NewTransactionsHandler(ingest, log)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Register(r.PathPrefix("/api/v1").Subrouter())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("transactions API starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
	log.Info().Msg("transactions API stopped")
}
