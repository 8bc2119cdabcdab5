package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediqueue/queue-service/internal/api"
	"github.com/mediqueue/queue-service/internal/appointment"
	"github.com/mediqueue/queue-service/internal/config"
	"github.com/mediqueue/queue-service/internal/db"
	"github.com/mediqueue/queue-service/internal/history"
	"github.com/mediqueue/queue-service/internal/queue"
	redisclient "github.com/mediqueue/queue-service/internal/redis"
)

const version = "0.3.0"

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	tokens := redisclient.NewTokenCounter(rdb, cfg.CounterTTL)
	notifier := redisclient.NewQueueNotifier(rdb)

	apptRepo := appointment.NewPgRepository(pgPool, cfg.StoreTimeout)
	apptSvc := appointment.NewService(apptRepo, tokens, locker, log)

	queueRepo := queue.NewPgRepository(pgPool, cfg.StoreTimeout)
	queueSvc := queue.NewService(queueRepo, locker, notifier, log)
	queueView := queue.NewProjection(queueRepo, notifier, cfg.AvgConsultTime, log)

	historySvc := history.NewService(history.NewPgRepository(pgPool, cfg.StoreTimeout), log)

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Queue:        queueSvc,
		QueueView:    queueView,
		History:      historySvc,
		PgPool:       pgPool,
		Redis:        rdb,
		JWTSecret:    cfg.JWTSecret,
		Env:          cfg.Env,
		Version:      version,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()

	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
